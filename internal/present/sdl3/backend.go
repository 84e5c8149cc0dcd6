// Package sdl3 is the graphical presentation backend, an SDL3 window
// with TTF text rendering.
package sdl3

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"
	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"

	"github.com/bsdlab/dp-stroop/internal/config"
	"github.com/bsdlab/dp-stroop/internal/task"
)

const crossSize = 20

type label struct {
	tex  *sdl.Texture
	w, h float32
}

// Backend renders the task to an SDL3 window and polls its keyboard.
type Backend struct {
	cfg       *config.Config
	window    *sdl.Window
	renderer  *sdl.Renderer
	font      *ttf.Font
	instrFont *ttf.Font

	// word textures are rendered once per (text, color, font)
	labels    map[string]label
	unloaders []func()
}

func New() *Backend {
	return &Backend{labels: make(map[string]label)}
}

func (b *Backend) Init(cfg *config.Config) error {
	b.cfg = cfg

	sdlLib := binsdl.Load()
	b.unloaders = append(b.unloaders, sdlLib.Unload)
	ttfLib := binttf.Load()
	b.unloaders = append(b.unloaders, ttfLib.Unload)

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("sdl init: %w", err)
	}
	if err := ttf.Init(); err != nil {
		return fmt.Errorf("ttf init: %w", err)
	}

	windowFlags := sdl.WINDOW_RESIZABLE
	if cfg.GUI.Fullscreen {
		windowFlags |= sdl.WINDOW_FULLSCREEN
	}

	window, renderer, err := sdl.CreateWindowAndRenderer("Stroop task",
		cfg.GUI.ScreenWidth, cfg.GUI.ScreenHeight, windowFlags)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	b.window = window
	b.renderer = renderer

	if cfg.GUI.VSync {
		renderer.SetVSync(1)
	} else {
		renderer.SetVSync(0)
	}

	fontPath := cfg.GUI.FontFile
	if fontPath == "" {
		fontPath = defaultFontPath()
	}
	if fontPath == "" {
		return fmt.Errorf("no usable TTF font found; set gui.font_file")
	}
	if b.font, err = ttf.OpenFont(fontPath, float32(cfg.GUI.FontSize)); err != nil {
		return fmt.Errorf("open font %s: %w", fontPath, err)
	}
	if b.instrFont, err = ttf.OpenFont(fontPath, float32(cfg.GUI.InstructionFontSize)); err != nil {
		return fmt.Errorf("open font %s: %w", fontPath, err)
	}
	return nil
}

func (b *Backend) Close() {
	for _, l := range b.labels {
		if l.tex != nil {
			l.tex.Destroy()
		}
	}
	if b.instrFont != nil {
		b.instrFont.Close()
	}
	if b.font != nil {
		b.font.Close()
	}
	if b.renderer != nil {
		b.renderer.Destroy()
	}
	if b.window != nil {
		b.window.Destroy()
	}
	ttf.Quit()
	sdl.Quit()
	for _, unload := range b.unloaders {
		unload()
	}
}

func (b *Backend) Poll() ([]task.KeyEvent, bool) {
	var events []task.KeyEvent
	for {
		var ev sdl.Event
		if !sdl.PollEvent(&ev) {
			break
		}
		switch ev.Type {
		case sdl.EVENT_QUIT:
			return events, true
		case sdl.EVENT_KEY_DOWN:
			if k := mapKey(ev.KeyboardEvent().Key); k != task.KeyNone {
				events = append(events, task.KeyEvent{Key: k, Pressed: true})
			}
		case sdl.EVENT_KEY_UP:
			if k := mapKey(ev.KeyboardEvent().Key); k != task.KeyNone {
				events = append(events, task.KeyEvent{Key: k, Pressed: false})
			}
		}
	}
	return events, false
}

func mapKey(k sdl.Keycode) task.Key {
	switch k {
	case sdl.K_ESCAPE:
		return task.KeyEscape
	case sdl.K_LEFT:
		return task.KeyLeft
	case sdl.K_RIGHT:
		return task.KeyRight
	case sdl.K_DOWN:
		return task.KeyDown
	case sdl.K_SPACE:
		return task.KeySpace
	default:
		return task.KeyNone
	}
}

func (b *Backend) Render(ds task.DisplayState) error {
	bg := b.cfg.GUI.BGColor
	b.renderer.SetDrawColor(bg.R, bg.G, bg.B, bg.A)
	b.renderer.Clear()

	var err error
	switch ds.Screen {
	case task.ScreenInstruction:
		err = b.drawInstructions()
	case task.ScreenFixation:
		b.drawFixationCross()
	case task.ScreenStimulus:
		err = b.drawStimulus(ds)
	case task.ScreenFeedback:
		err = b.drawFeedback(ds)
	case task.ScreenTable:
		err = b.drawTable(ds)
	case task.ScreenResults:
		err = b.drawResults(ds)
	case task.ScreenBlank:
		// background only
	}
	if err != nil {
		return err
	}

	b.renderer.Present()
	return nil
}

func (b *Backend) drawFixationCross() {
	c := b.cfg.GUI.FixationColor
	b.renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	mx := float32(b.cfg.GUI.ScreenWidth) / 2
	my := float32(b.cfg.GUI.ScreenHeight) / 2
	b.renderer.RenderLine(mx-crossSize, my, mx+crossSize, my)
	b.renderer.RenderLine(mx, my-crossSize, mx, my+crossSize)
}

func (b *Backend) drawStimulus(ds task.DisplayState) error {
	cx := float32(b.cfg.GUI.ScreenWidth) / 2
	cy := float32(b.cfg.GUI.ScreenHeight) / 2
	gap := float32(b.cfg.GUI.FontSize)

	if err := b.drawLabel(ds.Trial.Word, ds.Trial.Ink, b.font, cx, cy-gap); err != nil {
		return err
	}
	if ds.ShowProbe && ds.Trial.Probe != "" {
		if err := b.drawLabel(ds.Trial.Probe, b.cfg.GUI.TextColor, b.font, cx, cy+gap); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) drawFeedback(ds task.DisplayState) error {
	text := fmt.Sprintf("%.0f ms", ds.Reaction.RT.Seconds()*1000)
	if ds.Reaction.TimedOut {
		text = "--"
	}
	cx := float32(b.cfg.GUI.ScreenWidth) / 2
	cy := float32(b.cfg.GUI.ScreenHeight) / 2
	return b.drawLabel(text, b.cfg.GUI.FixationColor, b.font, cx, cy)
}

func (b *Backend) drawInstructions() error {
	msgs := b.cfg.Language.Messages
	parts := []string{msgs.InstructionHeadline}
	switch b.cfg.Mode {
	case config.ModeClassical:
		parts = append(parts, msgs.ClassicalInstruction)
	default:
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

	cx := float32(b.cfg.GUI.ScreenWidth) / 2
	lineH := float32(b.cfg.GUI.InstructionFontSize) * 1.6
	y := float32(b.cfg.GUI.ScreenHeight)/2 - lineH*float32(len(lines))/2
	for _, ln := range lines {
		if ln != "" {
			if err := b.drawLabel(ln, b.cfg.GUI.TextColor, b.instrFont, cx, y); err != nil {
				return err
			}
		}
		y += lineH
	}
	return nil
}

func (b *Backend) drawTable(ds task.DisplayState) error {
	n := len(ds.Table)
	if n == 0 {
		return nil
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols

	cellW := float32(b.cfg.GUI.ScreenWidth) / float32(cols)
	cellH := float32(b.cfg.GUI.ScreenHeight) / float32(rows+1)

	for i, s := range ds.Table {
		col := i % cols
		row := i / cols
		x := cellW/2 + float32(col)*cellW
		y := cellH + float32(row)*cellH
		if err := b.drawLabel(s.Word, s.Ink, b.font, x, y); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) drawResults(ds task.DisplayState) error {
	text := fmt.Sprintf("%s %.2fs",
		b.cfg.Language.Messages.MeanReactionTime, ds.Results.MeanRT.Seconds())
	cx := float32(b.cfg.GUI.ScreenWidth) / 2
	cy := float32(b.cfg.GUI.ScreenHeight) / 2
	return b.drawLabel(text, b.cfg.GUI.TextColor, b.instrFont, cx, cy)
}

// drawLabel renders text centered at (cx, cy), caching the texture.
func (b *Backend) drawLabel(text string, c config.RGBA, font *ttf.Font, cx, cy float32) error {
	l, err := b.label(text, c, font)
	if err != nil {
		return err
	}
	dst := sdl.FRect{X: cx - l.w/2, Y: cy - l.h/2, W: l.w, H: l.h}
	b.renderer.RenderTexture(l.tex, nil, &dst)
	return nil
}

func (b *Backend) label(text string, c config.RGBA, font *ttf.Font) (label, error) {
	key := fmt.Sprintf("%s|%s|%p", text, c, font)
	if l, ok := b.labels[key]; ok {
		return l, nil
	}

	surf, err := font.RenderTextBlended(text, sdl.Color{R: c.R, G: c.G, B: c.B, A: c.A})
	if err != nil {
		return label{}, fmt.Errorf("render %q: %w", text, err)
	}
	w, h := float32(surf.W), float32(surf.H)
	tex, err := b.renderer.CreateTextureFromSurface(surf)
	surf.Destroy()
	if err != nil {
		return label{}, fmt.Errorf("texture for %q: %w", text, err)
	}

	l := label{tex: tex, w: w, h: h}
	b.labels[key] = l
	return l, nil
}

// defaultFontPath mirrors the usual system font locations; a local
// fonts/ directory wins.
func defaultFontPath() string {
	entries, err := os.ReadDir("fonts")
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext == ".ttf" || ext == ".ttc" {
				return filepath.Join("fonts", entry.Name())
			}
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{"C:\\Windows\\Fonts\\arial.ttf"}
	case "darwin":
		paths = []string{"/System/Library/Fonts/Helvetica.ttc"}
	default:
		paths = []string{
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
