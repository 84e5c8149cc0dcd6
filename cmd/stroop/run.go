package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bsdlab/dp-stroop/internal/config"
	"github.com/bsdlab/dp-stroop/internal/logging"
	"github.com/bsdlab/dp-stroop/internal/marker"
	"github.com/bsdlab/dp-stroop/internal/present"
	"github.com/bsdlab/dp-stroop/internal/present/sdl3"
	"github.com/bsdlab/dp-stroop/internal/present/term"
	"github.com/bsdlab/dp-stroop/internal/task"
	"github.com/bsdlab/dp-stroop/internal/trial"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one block of the Stroop paradigm",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := buildConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := runBlock(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)

	// running without a subcommand starts a block
	rootCmd.Run = runCmd.Run
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("n-trials", 0, "Number of trials per block (multiple of 6)")
	cmd.Flags().String("language", "english", "Language table to use (english, dutch, german)")
	cmd.Flags().String("focus", "", "Which property counts as correct: color or text")
	cmd.Flags().Bool("classical", false, "Run the classical word-table variant")
	cmd.Flags().Bool("random-wait", false, "Pace trials with a random inter-trial wait instead of a held key")
	cmd.Flags().Float64("classic-stroop-time-s", 0, "Table display time for the classical variant")
	cmd.Flags().Bool("debug-marker-writer", false, "Route all markers to the debug sink, never open hardware")
	cmd.Flags().Int64("seed", 0, "RNG seed for the trial sequence (0 means time-based)")
	cmd.Flags().String("backend", "", "Presentation backend: sdl or term")
	cmd.Flags().Bool("fullscreen", false, "Present fullscreen")
}

// buildConfig layers defaults, YAML tables and flag overrides, then
// validates. Everything here fails before a window is opened.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("config-dir")
	language, _ := cmd.Flags().GetString("language")

	cfg, err := config.Load(dir, language)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, cmd); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags is the last configuration layer: explicit CLI flags win
// over the YAML tables.
func applyFlags(cfg *config.Config, cmd *cobra.Command) error {
	if cmd.Flags().Changed("n-trials") {
		cfg.NTrials, _ = cmd.Flags().GetInt("n-trials")
	}
	if cmd.Flags().Changed("focus") {
		s, _ := cmd.Flags().GetString("focus")
		f, err := config.ParseFocus(s)
		if err != nil {
			return err
		}
		cfg.Focus = f
	}

	classical, _ := cmd.Flags().GetBool("classical")
	randomWait, _ := cmd.Flags().GetBool("random-wait")
	switch {
	case classical && randomWait:
		return fmt.Errorf("%w: --classical and --random-wait are mutually exclusive", config.ErrConfig)
	case classical:
		cfg.Mode = config.ModeClassical
	case randomWait:
		cfg.Mode = config.ModeRandomWait
	}

	if cmd.Flags().Changed("classic-stroop-time-s") {
		s, _ := cmd.Flags().GetFloat64("classic-stroop-time-s")
		cfg.Timing.Classical = time.Duration(s * float64(time.Second))
	}
	if debug, _ := cmd.Flags().GetBool("debug-marker-writer"); debug {
		cfg.Transport.Debug = true
	}
	cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	if cmd.Flags().Changed("backend") {
		cfg.Backend, _ = cmd.Flags().GetString("backend")
	}
	if fs, _ := cmd.Flags().GetBool("fullscreen"); fs {
		cfg.GUI.Fullscreen = true
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	return nil
}

func runBlock(cfg *config.Config) error {
	log, closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer closeLog()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// the sequence is generated before any window opens so that
	// configuration errors never flash a display
	var seq trial.Sequence
	if cfg.Mode == config.ModeClassical {
		seq, err = trial.LoadOrCreateWordList(cfg.WordListDir, cfg.Language,
			cfg.NTrials, cfg.CongruentRatio, rng)
	} else {
		seq, err = trial.Generate(cfg.Language, cfg.NTrials, cfg.CongruentRatio,
			cfg.Focus, rng)
	}
	if err != nil {
		return err
	}

	log.Info("starting block",
		"mode", cfg.Mode.String(), "language", cfg.Language.Name,
		"n_trials", cfg.NTrials, "focus", cfg.Focus.String(),
		"backend", cfg.Backend, "seed", seed)

	mw := marker.FromConfig(cfg, log)
	defer mw.Close()

	mgr := task.New(cfg, seq, mw, log, rng)

	var adapter present.Adapter
	switch cfg.Backend {
	case "term":
		adapter = term.New()
	default:
		adapter = sdl3.New()
	}

	if err := present.NewRunner(cfg, mgr, adapter, log).Run(); err != nil {
		return err
	}
	if mgr.Aborted() {
		log.Info("block aborted by quit signal")
	}
	return nil
}
