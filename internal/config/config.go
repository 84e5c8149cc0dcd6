// Package config holds the immutable run configuration for the Stroop
// paradigm. A Config is built once at startup by layering defaults,
// the task YAML, the per-language YAML and CLI overrides; after
// Validate it is never mutated.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the paradigm variant. Chosen once at startup.
type Mode int

const (
	// ModeSelfPaced starts each trial once the participant holds the
	// down key; releasing it during the response window marks the
	// response onset.
	ModeSelfPaced Mode = iota
	// ModeRandomWait paces trials with a uniform-random inter-trial
	// interval instead of a held key.
	ModeRandomWait
	// ModeClassical shows the whole word table at once and the
	// participant reads aloud until the classical timeout.
	ModeClassical
)

func (m Mode) String() string {
	switch m {
	case ModeSelfPaced:
		return "self-paced"
	case ModeRandomWait:
		return "random-wait"
	case ModeClassical:
		return "classical"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Focus determines which property of the upper word counts as correct.
type Focus int

const (
	FocusColor Focus = iota
	FocusText
)

func (f Focus) String() string {
	switch f {
	case FocusColor:
		return "color"
	case FocusText:
		return "text"
	default:
		return fmt.Sprintf("focus(%d)", int(f))
	}
}

// ParseFocus maps the CLI/YAML value onto a Focus.
func ParseFocus(s string) (Focus, error) {
	switch s {
	case "color":
		return FocusColor, nil
	case "text":
		return FocusText, nil
	default:
		return 0, fmt.Errorf("%w: unknown focus %q (want color or text)", ErrConfig, s)
	}
}

// RGBA is a display color. Parsed from "r,g,b,a" strings as used in
// the YAML tables.
type RGBA struct {
	R, G, B, A uint8
}

// ParseColor parses an "r,g,b,a" string. Malformed components come
// out as zero, matching a black/transparent fallback.
func ParseColor(s string) RGBA {
	var r, g, b, a uint8
	fmt.Sscanf(s, "%d,%d,%d,%d", &r, &g, &b, &a)
	return RGBA{R: r, G: g, B: b, A: a}
}

func (c RGBA) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", c.R, c.G, c.B, c.A)
}

// WordColor is one entry of a language table. The slice order in
// Language is significant: it fixes the RNG draw order and therefore
// the determinism of seeded runs.
type WordColor struct {
	Word  string
	Color RGBA
}

// Messages are the language-specific instruction strings.
type Messages struct {
	InstructionHeadline  string
	PressDownInstruction string
	InstructionFooter    string
	ClassicalInstruction string
	MeanReactionTime     string
}

// Language is one per-language word/color/instruction table.
type Language struct {
	Name     string
	Words    []WordColor
	Messages Messages
}

// ColorOf returns the ink color for a word name from the table.
func (l Language) ColorOf(name string) (RGBA, bool) {
	for _, wc := range l.Words {
		if wc.Word == name {
			return wc.Color, true
		}
	}
	return RGBA{}, false
}

// MarkerCodes are the event codes written per transition.
type MarkerCodes struct {
	StartBlock  int
	EndBlock    int
	StartTrial  int
	EndTrial    int
	Congruent   int
	Incongruent int
	Reaction    int
	Timeout     int
	LiftOff     int
}

// Timing groups all durations of the trial sequence.
type Timing struct {
	Fixation        time.Duration // fixation display before the stimulus
	Stimulus        time.Duration // response window before timeout
	ProbeOnsetDelay time.Duration // delay before the lower word appears
	WaitMin         time.Duration // inter-trial wait lower bound (random-wait)
	WaitMax         time.Duration // inter-trial wait upper bound
	HoldToStart     time.Duration // down key hold required in self-paced mode
	Feedback        time.Duration // per-trial feedback display
	ResultsShow     time.Duration // results screen at the end of the block
	Classical       time.Duration // table display time in classical mode
	Instruction     time.Duration // instruction screen limit (effectively until key press)
}

// GUI carries window geometry and font parameters.
type GUI struct {
	ScreenWidth         int
	ScreenHeight        int
	Fullscreen          bool
	VSync               bool
	FontFile            string
	FontSize            int
	InstructionFontSize int
	BGColor             RGBA
	TextColor           RGBA
	FixationColor       RGBA
}

// Transport configures the marker sinks.
type Transport struct {
	SerialPort string
	BaudRate   int
	PulseWidth time.Duration
	UTF8Write  bool
	Debug      bool // route everything to the debug sink, never open hardware
}

// Log configures the ambient logger.
type Log struct {
	Level string
	File  string
}

// Config is the immutable run configuration.
type Config struct {
	NTrials        int
	CongruentRatio float64
	Focus          Focus
	Mode           Mode
	Seed           int64
	Backend        string // "sdl" or "term"
	ConfigDir      string
	WordListDir    string

	Language  Language
	Timing    Timing
	Markers   MarkerCodes
	GUI       GUI
	Transport Transport
	Log       Log
}

// DefaultConfig returns the built-in defaults, matching the task YAML
// shipped in configs/.
func DefaultConfig() *Config {
	return &Config{
		NTrials:        60,
		CongruentRatio: 1.0 / 3.0,
		Focus:          FocusColor,
		Mode:           ModeSelfPaced,
		Backend:        "sdl",
		ConfigDir:      "configs",
		WordListDir:    "wordlists",
		Timing: Timing{
			Fixation:        1 * time.Second,
			Stimulus:        3 * time.Second,
			ProbeOnsetDelay: 100 * time.Millisecond,
			WaitMin:         1 * time.Second,
			WaitMax:         2 * time.Second,
			HoldToStart:     500 * time.Millisecond,
			Feedback:        500 * time.Millisecond,
			ResultsShow:     5 * time.Second,
			Classical:       45 * time.Second,
			Instruction:     1000 * time.Second,
		},
		Markers: MarkerCodes{
			StartBlock:  64,
			EndBlock:    64,
			StartTrial:  2,
			EndTrial:    4,
			Congruent:   0,
			Incongruent: 0,
			Reaction:    16,
			Timeout:     16,
			LiftOff:     8,
		},
		GUI: GUI{
			ScreenWidth:         1024,
			ScreenHeight:        768,
			Fullscreen:          false,
			VSync:               true,
			FontSize:            36,
			InstructionFontSize: 20,
			BGColor:             RGBA{0, 0, 0, 255},
			TextColor:           RGBA{255, 255, 255, 255},
			FixationColor:       RGBA{128, 128, 128, 255},
		},
		Transport: Transport{
			BaudRate:   9600,
			PulseWidth: 10 * time.Millisecond,
		},
		Log: Log{
			Level: "info",
			File:  "stroop_task.log",
		},
	}
}

// Load builds a Config from the YAML tables under dir for the given
// language. CLI overrides are applied by the caller afterwards;
// Validate must be called before the config is used.
func Load(dir, language string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.ConfigDir = dir

	if err := cfg.loadTask(filepath.Join(dir, "task.yaml")); err != nil {
		return nil, err
	}
	if err := cfg.loadLanguage(dir, language); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks everything that must hold before a window is
// opened. Trial-count balancing is validated by the trial generator.
func (c *Config) Validate() error {
	if c.NTrials <= 0 {
		return fmt.Errorf("%w: n_trials must be positive, got %d", ErrConfig, c.NTrials)
	}
	if c.CongruentRatio < 0 || c.CongruentRatio > 1 {
		return fmt.Errorf("%w: congruent ratio %v outside [0,1]", ErrConfig, c.CongruentRatio)
	}
	if len(c.Language.Words) < 2 {
		return fmt.Errorf("%w: language %q needs at least two words, got %d",
			ErrConfig, c.Language.Name, len(c.Language.Words))
	}
	if c.Backend != "sdl" && c.Backend != "term" {
		return fmt.Errorf("%w: unknown backend %q (want sdl or term)", ErrConfig, c.Backend)
	}
	if c.Timing.WaitMax < c.Timing.WaitMin {
		return fmt.Errorf("%w: wait_time_max_s below wait_time_min_s", ErrConfig)
	}
	return nil
}

// taskFile mirrors configs/task.yaml.
type taskFile struct {
	General struct {
		NTrials        int     `yaml:"n_trials"`
		CongruentRatio float64 `yaml:"congruent_ratio"`
		Focus          string  `yaml:"focus"`
	} `yaml:"general"`
	Markers map[string]int `yaml:"markers"`
	Timing  struct {
		FixationS        float64 `yaml:"pre_stimulus_time_s"`
		StimulusS        float64 `yaml:"stimulus_time_s"`
		ProbeOnsetDelayS float64 `yaml:"probe_onset_delay_s"`
		WaitMinS         float64 `yaml:"wait_time_min_s"`
		WaitMaxS         float64 `yaml:"wait_time_max_s"`
		HoldToStartS     float64 `yaml:"arrow_down_press_to_continue_s"`
		FeedbackS        float64 `yaml:"feedback_time_s"`
		ResultsShowS     float64 `yaml:"results_show_time_s"`
		ClassicalS       float64 `yaml:"classic_stroop_time_s"`
	} `yaml:"timing"`
	GUI struct {
		ScreenWidth         int    `yaml:"screen_width"`
		ScreenHeight        int    `yaml:"screen_height"`
		Fullscreen          *bool  `yaml:"fullscreen"`
		VSync               *bool  `yaml:"vsync"`
		FontFile            string `yaml:"font_file"`
		FontSize            int    `yaml:"font_size"`
		InstructionFontSize int    `yaml:"instruction_font_size"`
		BGColor             string `yaml:"bg_color"`
		TextColor           string `yaml:"text_color"`
		FixationColor       string `yaml:"fixation_color"`
	} `yaml:"gui"`
	Marker struct {
		SerialPort  string  `yaml:"serial_port"`
		BaudRate    int     `yaml:"baud_rate"`
		PulseWidthS float64 `yaml:"pulse_width_s"`
		UTF8Write   bool    `yaml:"utf8_write"`
	} `yaml:"marker"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"log_file"`
	} `yaml:"logging"`
}

func (c *Config) loadTask(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read task table: %v", ErrConfig, err)
	}
	var tf taskFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}

	if tf.General.NTrials != 0 {
		c.NTrials = tf.General.NTrials
	}
	if tf.General.CongruentRatio != 0 {
		c.CongruentRatio = tf.General.CongruentRatio
	}
	if tf.General.Focus != "" {
		f, err := ParseFocus(tf.General.Focus)
		if err != nil {
			return err
		}
		c.Focus = f
	}

	for name, code := range tf.Markers {
		switch name {
		case "startblock_mrk":
			c.Markers.StartBlock = code
		case "endblock_mrk":
			c.Markers.EndBlock = code
		case "starttrial_mrk":
			c.Markers.StartTrial = code
		case "endtrial_mrk":
			c.Markers.EndTrial = code
		case "congruent_mrk":
			c.Markers.Congruent = code
		case "incongruent_mrk":
			c.Markers.Incongruent = code
		case "reaction_mrk":
			c.Markers.Reaction = code
		case "timeout_mrk":
			c.Markers.Timeout = code
		case "lift_off_mrk":
			c.Markers.LiftOff = code
		default:
			return fmt.Errorf("%w: unknown marker name %q in %s", ErrConfig, name, path)
		}
	}

	t := tf.Timing
	setDur(&c.Timing.Fixation, t.FixationS)
	setDur(&c.Timing.Stimulus, t.StimulusS)
	setDur(&c.Timing.ProbeOnsetDelay, t.ProbeOnsetDelayS)
	setDur(&c.Timing.WaitMin, t.WaitMinS)
	setDur(&c.Timing.WaitMax, t.WaitMaxS)
	setDur(&c.Timing.HoldToStart, t.HoldToStartS)
	setDur(&c.Timing.Feedback, t.FeedbackS)
	setDur(&c.Timing.ResultsShow, t.ResultsShowS)
	setDur(&c.Timing.Classical, t.ClassicalS)

	g := tf.GUI
	if g.ScreenWidth != 0 {
		c.GUI.ScreenWidth = g.ScreenWidth
	}
	if g.ScreenHeight != 0 {
		c.GUI.ScreenHeight = g.ScreenHeight
	}
	if g.Fullscreen != nil {
		c.GUI.Fullscreen = *g.Fullscreen
	}
	if g.VSync != nil {
		c.GUI.VSync = *g.VSync
	}
	if g.FontFile != "" {
		c.GUI.FontFile = g.FontFile
	}
	if g.FontSize != 0 {
		c.GUI.FontSize = g.FontSize
	}
	if g.InstructionFontSize != 0 {
		c.GUI.InstructionFontSize = g.InstructionFontSize
	}
	if g.BGColor != "" {
		c.GUI.BGColor = ParseColor(g.BGColor)
	}
	if g.TextColor != "" {
		c.GUI.TextColor = ParseColor(g.TextColor)
	}
	if g.FixationColor != "" {
		c.GUI.FixationColor = ParseColor(g.FixationColor)
	}

	m := tf.Marker
	if m.SerialPort != "" {
		c.Transport.SerialPort = m.SerialPort
	}
	if m.BaudRate != 0 {
		c.Transport.BaudRate = m.BaudRate
	}
	if m.PulseWidthS != 0 {
		c.Transport.PulseWidth = time.Duration(m.PulseWidthS * float64(time.Second))
	}
	c.Transport.UTF8Write = m.UTF8Write

	if tf.Logging.Level != "" {
		c.Log.Level = tf.Logging.Level
	}
	if tf.Logging.File != "" {
		c.Log.File = tf.Logging.File
	}
	return nil
}

func setDur(dst *time.Duration, seconds float64) {
	if seconds != 0 {
		*dst = time.Duration(seconds * float64(time.Second))
	}
}

// languageFile mirrors configs/<language>.yaml.
type languageFile struct {
	Words    yaml.Node         `yaml:"words"`
	Messages map[string]string `yaml:"messages"`
}

func (c *Config) loadLanguage(dir, language string) error {
	path := filepath.Join(dir, language+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: language table %q missing: %v", ErrConfig, language, err)
	}
	var lf languageFile
	if err := yaml.Unmarshal(raw, &lf); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}

	lang := Language{Name: language}

	// The words mapping is decoded from the raw node to preserve the
	// file order; a plain map would randomize it and break seeded
	// determinism.
	if lf.Words.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s: words must be a mapping", ErrConfig, path)
	}
	for i := 0; i+1 < len(lf.Words.Content); i += 2 {
		word := lf.Words.Content[i].Value
		color := lf.Words.Content[i+1].Value
		lang.Words = append(lang.Words, WordColor{Word: word, Color: ParseColor(color)})
	}

	lang.Messages = Messages{
		InstructionHeadline:  lf.Messages["instruction_headline"],
		PressDownInstruction: lf.Messages["press_down_instruction"],
		InstructionFooter:    lf.Messages["instruction_footer"],
		ClassicalInstruction: lf.Messages["classical_instruction"],
		MeanReactionTime:     lf.Messages["mean_reaction_time"],
	}

	c.Language = lang
	return nil
}
