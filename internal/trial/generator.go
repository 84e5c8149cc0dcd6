// Package trial generates balanced Stroop trial sequences.
package trial

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/bsdlab/dp-stroop/internal/config"
)

// BalanceUnit is the smallest block over which the three stimulus
// classes and the expected responses can be balanced for the default
// 1/3 ratio.
const BalanceUnit = 6

// NeutralWord is the placeholder shown instead of a color word in
// neutral trials.
const NeutralWord = "XXXX"

// Response is the key the participant is expected to press.
type Response int

const (
	ResponseNone Response = iota
	ResponseLeft
	ResponseRight
)

func (r Response) String() string {
	switch r {
	case ResponseLeft:
		return "left"
	case ResponseRight:
		return "right"
	default:
		return "none"
	}
}

// Spec is a single trial. Immutable once generated.
//
// Word is shown in ink color Ink on top; Probe is the comparison word
// shown below in the neutral text color. Neutral trials show the
// XXXX placeholder instead of a color word, so only their ink carries
// information. Expected encodes the correct answer given the
// configured focus.
type Spec struct {
	Word      string
	InkName   string
	Ink       config.RGBA
	Probe     string
	Congruent bool
	Neutral   bool
	Expected  Response
}

// Label is the marker label for the stimulus onset event.
func (s Spec) Label() string {
	return s.Word + "|" + s.InkName + "|" + s.Probe
}

// Sequence is the ordered trial list for one run.
type Sequence []Spec

// CountCongruent returns how many trials in the sequence are congruent.
func (seq Sequence) CountCongruent() int {
	n := 0
	for _, s := range seq {
		if s.Congruent {
			n++
		}
	}
	return n
}

// CountNeutral returns how many trials in the sequence are neutral.
func (seq Sequence) CountNeutral() int {
	n := 0
	for _, s := range seq {
		if s.Neutral {
			n++
		}
	}
	return n
}

type stimClass int

const (
	classCongruent stimClass = iota
	classIncongruent
	classNeutral
)

// classCounts splits n into congruent/incongruent/neutral counts and
// checks that the split can be balanced. The congruent count follows
// the ratio; the remainder is shared evenly between the incongruent
// and neutral classes, which yields equal thirds at the default 1/3.
func classCounts(n int, ratio float64) (nCon, nInc, nNeut int, err error) {
	if n <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: n_trials must be positive, got %d", config.ErrConfig, n)
	}
	if n%BalanceUnit != 0 {
		return 0, 0, 0, fmt.Errorf("%w: n_trials=%d is not a multiple of %d",
			config.ErrConfig, n, BalanceUnit)
	}
	// tolerate rounding in YAML ratios like 0.333333333
	exact := ratio * float64(n)
	nCon = int(math.Round(exact))
	if math.Abs(exact-float64(nCon)) > 1e-6 {
		return 0, 0, 0, fmt.Errorf("%w: congruent ratio %v does not divide n_trials=%d evenly",
			config.ErrConfig, ratio, n)
	}
	rem := n - nCon
	if rem%2 != 0 {
		return 0, 0, 0, fmt.Errorf("%w: n_trials=%d with ratio %v cannot split the remaining %d "+
			"trials between the incongruent and neutral classes", config.ErrConfig, n, ratio, rem)
	}
	nInc = rem / 2
	nNeut = rem / 2
	if nCon%2 != 0 || nInc%2 != 0 {
		return 0, 0, 0, fmt.Errorf("%w: n_trials=%d with ratio %v yields odd class sizes (%d/%d/%d); "+
			"expected responses cannot be balanced", config.ErrConfig, n, ratio, nCon, nInc, nNeut)
	}
	return nCon, nInc, nNeut, nil
}

// Generate produces a shuffled sequence of n trials with exactly
// round(ratio*n) congruent trials; the remainder is split evenly
// between the incongruent and neutral classes. Within each class the
// expected responses are split evenly between left and right.
// Deterministic for a fixed rng.
func Generate(lang config.Language, n int, ratio float64, focus config.Focus, rng *rand.Rand) (Sequence, error) {
	nCon, nInc, nNeut, err := classCounts(n, ratio)
	if err != nil {
		return nil, err
	}
	if len(lang.Words) < 2 {
		return nil, fmt.Errorf("%w: language %q needs at least two words", config.ErrConfig, lang.Name)
	}

	seq := make(Sequence, 0, n)
	seq = append(seq, makeClass(lang, nCon, classCongruent, focus, rng)...)
	seq = append(seq, makeClass(lang, nInc, classIncongruent, focus, rng)...)
	seq = append(seq, makeClass(lang, nNeut, classNeutral, focus, rng)...)

	rng.Shuffle(len(seq), func(i, j int) {
		seq[i], seq[j] = seq[j], seq[i]
	})
	return seq, nil
}

// makeClass builds count trials of one stimulus class with expected
// responses split half right, half left.
func makeClass(lang config.Language, count int, class stimClass, focus config.Focus, rng *rand.Rand) []Spec {
	words := lang.Words
	specs := make([]Spec, 0, count)

	for i := 0; i < count; i++ {
		wi := rng.Intn(len(words))
		word := words[wi]

		var ink config.WordColor
		switch class {
		case classCongruent, classNeutral:
			ink = word
		default:
			// pick a different color for the ink
			ci := rng.Intn(len(words) - 1)
			if ci >= wi {
				ci++
			}
			ink = words[ci]
		}

		upper := word.Word
		if class == classNeutral {
			upper = NeutralWord
		}

		// First half expects right (probe matches the focused
		// property), second half expects left.
		expected := ResponseRight
		if i >= count/2 {
			expected = ResponseLeft
		}

		// The placeholder carries no lexical content, so a neutral
		// trial is always judged on its ink.
		target := ink.Word
		if focus == config.FocusText && class != classNeutral {
			target = word.Word
		}

		probe := target
		if expected == ResponseLeft {
			// any word that differs from the focused property
			pi := rng.Intn(len(words))
			for words[pi].Word == target {
				pi = rng.Intn(len(words))
			}
			probe = words[pi].Word
		}

		specs = append(specs, Spec{
			Word:      upper,
			InkName:   ink.Word,
			Ink:       ink.Color,
			Probe:     probe,
			Congruent: class == classCongruent,
			Neutral:   class == classNeutral,
			Expected:  expected,
		})
	}
	return specs
}
