package trial

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsdlab/dp-stroop/internal/config"
)

func testLanguage() config.Language {
	return config.Language{
		Name: "english",
		Words: []config.WordColor{
			{Word: "red", Color: config.RGBA{R: 255, A: 255}},
			{Word: "blue", Color: config.RGBA{B: 255, A: 255}},
			{Word: "green", Color: config.RGBA{G: 255, A: 255}},
			{Word: "yellow", Color: config.RGBA{R: 255, G: 255, A: 255}},
		},
	}
}

func TestGenerateRatioExact(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seq, err := Generate(testLanguage(), 60, 1.0/3.0, config.FocusColor, rng)
	require.NoError(t, err)

	require.Len(t, seq, 60)
	assert.Equal(t, 20, seq.CountCongruent())
	assert.Equal(t, 20, seq.CountNeutral(), "default ratio yields equal thirds")

	// a YAML-rounded third must be accepted too
	seq, err = Generate(testLanguage(), 60, 0.333333333, config.FocusColor, rng)
	require.NoError(t, err)
	assert.Equal(t, 20, seq.CountCongruent())
}

func TestGenerateInvalidCounts(t *testing.T) {
	lang := testLanguage()
	rng := rand.New(rand.NewSource(1))

	cases := []struct {
		name  string
		n     int
		ratio float64
	}{
		{"not multiple of balance unit", 5, 1.0 / 3.0},
		{"zero", 0, 1.0 / 3.0},
		{"negative", -6, 1.0 / 3.0},
		{"ratio does not divide evenly", 6, 0.3},
		{"odd remainder split", 6, 0.5},
		{"odd class sizes", 12, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(lang, tc.n, tc.ratio, config.FocusColor, rng)
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfig)
		})
	}
}

func TestGenerateDeterministicUnderSeed(t *testing.T) {
	lang := testLanguage()

	a, err := Generate(lang, 6, 1.0/3.0, config.FocusColor, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := Generate(lang, 6, 1.0/3.0, config.FocusColor, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, a, b)

	c, err := Generate(lang, 6, 1.0/3.0, config.FocusColor, rand.New(rand.NewSource(43)))
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different seeds should shuffle differently")
}

func TestGenerateClassSemantics(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seq, err := Generate(testLanguage(), 60, 1.0/3.0, config.FocusColor, rng)
	require.NoError(t, err)

	for _, s := range seq {
		switch {
		case s.Neutral:
			assert.Equal(t, NeutralWord, s.Word)
			assert.False(t, s.Congruent)
			assert.NotEqual(t, NeutralWord, s.InkName)
		case s.Congruent:
			assert.Equal(t, s.Word, s.InkName)
		default:
			assert.NotEqual(t, s.Word, s.InkName)
		}
		require.NotEmpty(t, s.Probe)
	}
}

func TestGenerateExpectedResponseBalance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	seq, err := Generate(testLanguage(), 60, 1.0/3.0, config.FocusColor, rng)
	require.NoError(t, err)

	type class struct{ congruent, neutral bool }
	count := map[class]map[Response]int{}
	for _, s := range seq {
		c := class{s.Congruent, s.Neutral}
		if count[c] == nil {
			count[c] = map[Response]int{}
		}
		count[c][s.Expected]++
	}

	// each class holds a third, split evenly by correct direction
	for _, c := range []class{
		{congruent: true}, {}, {neutral: true},
	} {
		assert.Equal(t, 10, count[c][ResponseLeft], "%+v", c)
		assert.Equal(t, 10, count[c][ResponseRight], "%+v", c)
	}
}

func TestGenerateProbeMatchesFocus(t *testing.T) {
	for _, focus := range []config.Focus{config.FocusColor, config.FocusText} {
		rng := rand.New(rand.NewSource(9))
		seq, err := Generate(testLanguage(), 12, 1.0/3.0, focus, rng)
		require.NoError(t, err)

		for _, s := range seq {
			// neutral trials are always judged on their ink
			target := s.InkName
			if focus == config.FocusText && !s.Neutral {
				target = s.Word
			}
			if s.Expected == ResponseRight {
				assert.Equal(t, target, s.Probe, "right-response probe must match the focused property")
			} else {
				assert.NotEqual(t, target, s.Probe, "left-response probe must differ from the focused property")
			}
		}
	}
}
