package trial

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bsdlab/dp-stroop/internal/config"
)

// wordListFile is the on-disk asset for the classical variant. It is
// generated on first run and may be inspected or regenerated by
// external tooling; the key fields pin it to one parametrization.
type wordListFile struct {
	Language       string          `yaml:"language"`
	NTrials        int             `yaml:"n_trials"`
	CongruentRatio float64         `yaml:"congruent_ratio"`
	Entries        []wordListEntry `yaml:"entries"`
}

type wordListEntry struct {
	Word string `yaml:"word"`
	Ink  string `yaml:"ink"`
}

// WordListPath returns the cache file for one parametrization.
func WordListPath(dir string, lang string, n int, ratio float64) string {
	return filepath.Join(dir, fmt.Sprintf("wordlist_%s_%d_%.3f.yaml", lang, n, ratio))
}

// LoadOrCreateWordList returns the classical word table for the given
// parametrization. On first use the table is generated and persisted
// under dir; later runs reload the same table so repeated blocks show
// identical layouts.
func LoadOrCreateWordList(dir string, lang config.Language, n int, ratio float64, rng *rand.Rand) (Sequence, error) {
	path := WordListPath(dir, lang.Name, n, ratio)

	raw, err := os.ReadFile(path)
	if err == nil {
		return parseWordList(raw, lang, n, ratio, path)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read word list %s: %w", path, err)
	}

	seq, err := Generate(lang, n, ratio, config.FocusColor, rng)
	if err != nil {
		return nil, err
	}

	wf := wordListFile{
		Language:       lang.Name,
		NTrials:        n,
		CongruentRatio: ratio,
	}
	for _, s := range seq {
		wf.Entries = append(wf.Entries, wordListEntry{Word: s.Word, Ink: s.InkName})
	}
	out, err := yaml.Marshal(&wf)
	if err != nil {
		return nil, fmt.Errorf("marshal word list: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure word list dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return nil, fmt.Errorf("write word list %s: %w", path, err)
	}
	return seq, nil
}

func parseWordList(raw []byte, lang config.Language, n int, ratio float64, path string) (Sequence, error) {
	var wf wordListFile
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse word list %s: %w", path, err)
	}
	if wf.Language != lang.Name || wf.NTrials != n || len(wf.Entries) != n {
		return nil, fmt.Errorf("%w: word list %s does not match language=%s n_trials=%d",
			config.ErrConfig, path, lang.Name, n)
	}
	seq := make(Sequence, 0, n)
	for _, e := range wf.Entries {
		ink, ok := lang.ColorOf(e.Ink)
		if !ok {
			return nil, fmt.Errorf("%w: word list %s references unknown ink %q",
				config.ErrConfig, path, e.Ink)
		}
		seq = append(seq, Spec{
			Word:      e.Word,
			InkName:   e.Ink,
			Ink:       ink,
			Congruent: e.Word == e.Ink,
			Neutral:   e.Word == NeutralWord,
		})
	}
	return seq, nil
}
