package trial

import (
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsdlab/dp-stroop/internal/config"
)

func TestWordListCreatedOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	lang := testLanguage()

	seq, err := LoadOrCreateWordList(dir, lang, 12, 1.0/3.0, rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	require.Len(t, seq, 12)

	path := WordListPath(dir, lang.Name, 12, 1.0/3.0)
	_, err = os.Stat(path)
	require.NoError(t, err, "word list should be persisted on first run")
}

func TestWordListReloadedOnSecondUse(t *testing.T) {
	dir := t.TempDir()
	lang := testLanguage()

	first, err := LoadOrCreateWordList(dir, lang, 12, 1.0/3.0, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	// a different seed must not matter: the persisted table wins
	second, err := LoadOrCreateWordList(dir, lang, 12, 1.0/3.0, rand.New(rand.NewSource(99)))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Word, second[i].Word)
		assert.Equal(t, first[i].InkName, second[i].InkName)
		assert.Equal(t, first[i].Congruent, second[i].Congruent)
	}
}

func TestWordListKeyedByParametrization(t *testing.T) {
	dir := t.TempDir()
	lang := testLanguage()

	a := WordListPath(dir, lang.Name, 12, 1.0/3.0)
	b := WordListPath(dir, lang.Name, 24, 1.0/3.0)
	c := WordListPath(dir, "dutch", 12, 1.0/3.0)
	d := WordListPath(dir, lang.Name, 12, 0.5)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestWordListMismatchRejected(t *testing.T) {
	dir := t.TempDir()
	lang := testLanguage()

	_, err := LoadOrCreateWordList(dir, lang, 12, 1.0/3.0, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	// rewrite the header so it no longer matches the parametrization
	path := WordListPath(dir, lang.Name, 12, 1.0/3.0)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "language: english", "language: klingon", 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	_, err = LoadOrCreateWordList(dir, lang, 12, 1.0/3.0, rand.New(rand.NewSource(5)))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}
