// Package task implements the trial-sequencing state machine of the
// Stroop paradigm. The machine is stepped by the presentation loop's
// tick; it never blocks and owns the only mutable run state.
package task

import (
	"time"

	"github.com/bsdlab/dp-stroop/internal/trial"
)

// State of the task state machine.
type State int

const (
	StateInstruction State = iota
	StateFixation
	StateStimulus
	StateAwaitResponse
	StateFeedback
	StateInterTrial
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInstruction:
		return "INSTRUCTION"
	case StateFixation:
		return "FIXATION"
	case StateStimulus:
		return "STIMULUS"
	case StateAwaitResponse:
		return "AWAIT_RESPONSE"
	case StateFeedback:
		return "FEEDBACK"
	case StateInterTrial:
		return "INTER_TRIAL"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Key is a logical input key, decoupled from the backend's key codes.
// Anything a backend cannot map stays KeyNone and is ignored.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyDown
	KeySpace
	KeyEscape
)

func (k Key) String() string {
	switch k {
	case KeyLeft:
		return "LEFT"
	case KeyRight:
		return "RIGHT"
	case KeyDown:
		return "DOWN"
	case KeySpace:
		return "SPACE"
	case KeyEscape:
		return "ESCAPE"
	default:
		return "NONE"
	}
}

// KeyEvent is one key press or release delivered to a tick.
type KeyEvent struct {
	Key     Key
	Pressed bool // false means release
}

// Reaction is the captured response for one trial.
type Reaction struct {
	Key      Key
	RT       time.Duration // from stimulus onset
	TimedOut bool
	Correct  bool
}

// ScreenKind tells the presentation adapter what to draw.
type ScreenKind int

const (
	ScreenInstruction ScreenKind = iota
	ScreenFixation
	ScreenStimulus
	ScreenFeedback
	ScreenBlank
	ScreenTable
	ScreenResults
)

// DisplayState is the render contract between the state machine and
// the presentation adapter. Rebuilt on demand, never cached.
type DisplayState struct {
	Screen    ScreenKind
	Trial     *trial.Spec // set for ScreenStimulus
	ShowProbe bool        // lower word visible yet
	Reaction  *Reaction   // set for ScreenFeedback
	Table     trial.Sequence
	Results   Summary
}

// Summary is the in-memory run outcome shown on the results screen.
// Nothing is persisted.
type Summary struct {
	Trials   int
	Correct  int
	Timeouts int
	MeanRT   time.Duration
}
