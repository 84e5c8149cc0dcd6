// Package present defines the presentation adapter capability and the
// cooperative tick loop driving the task state machine.
package present

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bsdlab/dp-stroop/internal/config"
	"github.com/bsdlab/dp-stroop/internal/task"
)

// Adapter is the presentation capability: render the display state,
// poll keyboard input. Implementations are selected once at startup;
// all calls happen from the tick loop's goroutine.
type Adapter interface {
	Init(cfg *config.Config) error
	// Poll drains pending input. quit means the window was closed.
	Poll() (events []task.KeyEvent, quit bool)
	Render(ds task.DisplayState) error
	Close()
}

// tickDelay paces the loop when the backend does not block on the
// display refresh itself.
const tickDelay = time.Millisecond

// Runner drives one run: poll, step, render, until the state machine
// reaches DONE, then holds the results screen.
type Runner struct {
	cfg     *config.Config
	mgr     *task.Manager
	adapter Adapter
	log     *slog.Logger
}

func NewRunner(cfg *config.Config, mgr *task.Manager, a Adapter, log *slog.Logger) *Runner {
	return &Runner{cfg: cfg, mgr: mgr, adapter: a, log: log}
}

// Run executes the presentation loop. It returns once the run is done
// (completed or aborted) or on a render error.
func (r *Runner) Run() error {
	if err := r.adapter.Init(r.cfg); err != nil {
		return fmt.Errorf("presentation init: %w", err)
	}
	defer r.adapter.Close()

	r.mgr.Start(time.Now())

	for !r.mgr.Done() {
		events, quit := r.adapter.Poll()
		now := time.Now()
		if quit {
			r.mgr.Abort(now)
			return nil
		}
		r.mgr.Tick(now, events)
		if err := r.adapter.Render(r.mgr.Display()); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		time.Sleep(tickDelay)
	}

	if r.mgr.Aborted() {
		return nil
	}
	return r.holdResults()
}

// holdResults keeps the results screen up for the configured duration;
// escape or window close ends it early.
func (r *Runner) holdResults() error {
	deadline := time.Now().Add(r.cfg.Timing.ResultsShow)
	for time.Now().Before(deadline) {
		events, quit := r.adapter.Poll()
		if quit {
			return nil
		}
		for _, ev := range events {
			if ev.Key == task.KeyEscape && ev.Pressed {
				return nil
			}
		}
		if err := r.adapter.Render(r.mgr.Display()); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		time.Sleep(tickDelay)
	}
	return nil
}
