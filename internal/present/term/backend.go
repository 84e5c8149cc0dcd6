// Package term is the terminal presentation backend, rendering the
// task with tcell. It exists for setups without a display server and
// for quick protocol checks; timing precision is whatever the
// terminal gives you.
package term

import (
	"fmt"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/bsdlab/dp-stroop/internal/config"
	"github.com/bsdlab/dp-stroop/internal/task"
)

// Backend renders the task onto a tcell screen.
//
// Terminals report key presses only, never releases. The state
// machine's hold-to-start arming still works (a press arms the timer
// and nothing cancels it); the lift-off marker of self-paced mode is
// simply never emitted here.
type Backend struct {
	cfg    *config.Config
	screen tcell.Screen
	events chan tcell.Event
	done   chan struct{}
}

func New() *Backend {
	return &Backend{
		events: make(chan tcell.Event, 64),
		done:   make(chan struct{}),
	}
}

func (b *Backend) Init(cfg *config.Config) error {
	b.cfg = cfg

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("tcell screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("tcell init: %w", err)
	}
	screen.HideCursor()
	b.screen = screen

	// pump blocking PollEvent into a channel so the tick loop can
	// drain it without waiting
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case b.events <- ev:
			case <-b.done:
				return
			}
		}
	}()
	return nil
}

func (b *Backend) Close() {
	close(b.done)
	b.screen.Fini()
}

func (b *Backend) Poll() ([]task.KeyEvent, bool) {
	var events []task.KeyEvent
	for {
		select {
		case ev := <-b.events:
			switch tev := ev.(type) {
			case *tcell.EventKey:
				if k := mapKey(tev); k != task.KeyNone {
					events = append(events, task.KeyEvent{Key: k, Pressed: true})
				}
			case *tcell.EventResize:
				b.screen.Sync()
			}
		default:
			return events, false
		}
	}
}

func mapKey(ev *tcell.EventKey) task.Key {
	switch ev.Key() {
	case tcell.KeyLeft:
		return task.KeyLeft
	case tcell.KeyRight:
		return task.KeyRight
	case tcell.KeyDown:
		return task.KeyDown
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return task.KeyEscape
	case tcell.KeyRune:
		if ev.Rune() == ' ' {
			return task.KeySpace
		}
	}
	return task.KeyNone
}

func (b *Backend) Render(ds task.DisplayState) error {
	b.screen.Clear()

	w, h := b.screen.Size()
	cx, cy := w/2, h/2
	base := b.style(b.cfg.GUI.TextColor)
	dim := b.style(b.cfg.GUI.FixationColor)

	switch ds.Screen {
	case task.ScreenInstruction:
		b.drawInstructions(cx, cy)

	case task.ScreenFixation:
		b.drawCentered(cx, cy, "+", dim)

	case task.ScreenStimulus:
		b.drawCentered(cx, cy-1, ds.Trial.Word, b.style(ds.Trial.Ink))
		if ds.ShowProbe && ds.Trial.Probe != "" {
			b.drawCentered(cx, cy+1, ds.Trial.Probe, base)
		}

	case task.ScreenFeedback:
		text := fmt.Sprintf("%.0f ms", ds.Reaction.RT.Seconds()*1000)
		if ds.Reaction.TimedOut {
			text = "--"
		}
		b.drawCentered(cx, cy, text, dim)

	case task.ScreenTable:
		b.drawTable(ds, w, h)

	case task.ScreenResults:
		text := fmt.Sprintf("%s %.2fs",
			b.cfg.Language.Messages.MeanReactionTime, ds.Results.MeanRT.Seconds())
		b.drawCentered(cx, cy, text, base)

	case task.ScreenBlank:
		// background only
	}

	b.screen.Show()
	return nil
}

func (b *Backend) drawInstructions(cx, cy int) {
	msgs := b.cfg.Language.Messages
	parts := []string{msgs.InstructionHeadline}
	if b.cfg.Mode == config.ModeClassical {
		parts = append(parts, msgs.ClassicalInstruction)
	} else {
		parts = append(parts, msgs.PressDownInstruction)
	}
	parts = append(parts, msgs.InstructionFooter)

	var lines []string
	for _, p := range parts {
		for _, ln := range strings.Split(strings.TrimSpace(p), "\n") {
			lines = append(lines, strings.TrimSpace(ln))
		}
		lines = append(lines, "")
	}

	style := b.style(b.cfg.GUI.TextColor)
	y := cy - len(lines)/2
	for _, ln := range lines {
		if ln != "" {
			b.drawCentered(cx, y, ln, style)
		}
		y++
	}
}

func (b *Backend) drawTable(ds task.DisplayState, w, h int) {
	n := len(ds.Table)
	if n == 0 {
		return
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols

	cellW := w / cols
	cellH := h / (rows + 1)
	if cellH < 1 {
		cellH = 1
	}

	for i, s := range ds.Table {
		col := i % cols
		row := i / cols
		x := cellW/2 + col*cellW
		y := cellH/2 + row*cellH
		b.drawCentered(x, y, s.Word, b.style(s.Ink))
	}
}

func (b *Backend) drawCentered(cx, y int, text string, style tcell.Style) {
	runes := []rune(text)
	x := cx - len(runes)/2
	for i, r := range runes {
		b.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (b *Backend) style(c config.RGBA) tcell.Style {
	return tcell.StyleDefault.
		Foreground(toTcell(c)).
		Background(toTcell(b.cfg.GUI.BGColor))
}

// toTcell converts an ink color, lifting very dark inks so they stay
// readable on dark terminal backgrounds.
func toTcell(c config.RGBA) tcell.Color {
	col := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
	if _, _, l := col.Hsl(); l > 0 && l < 0.2 {
		col = col.BlendLuv(colorful.Color{R: 1, G: 1, B: 1}, 0.3).Clamped()
	}
	r, g, bb := col.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(bb))
}
