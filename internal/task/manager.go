package task

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/bsdlab/dp-stroop/internal/config"
	"github.com/bsdlab/dp-stroop/internal/marker"
	"github.com/bsdlab/dp-stroop/internal/trial"
)

// Manager steps a run through
// instruction -> fixation -> stimulus -> await-response -> feedback
// -> inter-trial -> ... -> done, driven by Tick. It owns the single
// mutable TaskState of the run and emits markers as side effects of
// transitions. Per trial the marker order is fixed: trial-start,
// stimulus-onset, response-or-timeout, trial-end.
type Manager struct {
	cfg     *config.Config
	seq     trial.Sequence
	markers *marker.Writer
	log     *slog.Logger
	rng     *rand.Rand

	state   State
	entered time.Time // when the current state was entered
	idx     int       // current trial, strictly increasing
	trials  int       // logical trial count (1 for the classical table)

	onset     time.Time     // stimulus onset of the current trial
	waitDur   time.Duration // inter-trial wait drawn for the upcoming gap
	downHeld  bool
	heldSince time.Time

	reactions []Reaction
	aborted   bool
}

// New builds a manager for one run. The sequence must already be
// validated by the generator.
func New(cfg *config.Config, seq trial.Sequence, w *marker.Writer, log *slog.Logger, rng *rand.Rand) *Manager {
	trials := len(seq)
	if cfg.Mode == config.ModeClassical {
		// the whole table is presented as a single trial
		trials = 1
	}
	return &Manager{
		cfg:     cfg,
		seq:     seq,
		markers: w,
		log:     log,
		rng:     rng,
		state:   StateInstruction,
		trials:  trials,
	}
}

// Start emits the block-start marker and arms the instruction screen.
func (m *Manager) Start(now time.Time) {
	m.markers.Write(m.cfg.Markers.StartBlock, "start_block")
	m.state = StateInstruction
	m.entered = now
}

// State returns the current machine state.
func (m *Manager) State() State { return m.state }

// Done reports whether the run has reached its terminal state.
func (m *Manager) Done() bool { return m.state == StateDone }

// Aborted reports whether the run ended by quit signal rather than by
// completing the sequence.
func (m *Manager) Aborted() bool { return m.aborted }

// Reactions returns the captured responses so far.
func (m *Manager) Reactions() []Reaction { return m.reactions }

// Tick advances the machine: key events first, then elapsed-time
// transitions. Unexpected keys cause no transition.
func (m *Manager) Tick(now time.Time, events []KeyEvent) {
	if m.state == StateDone {
		return
	}
	for _, ev := range events {
		m.handleKey(now, ev)
		if m.state == StateDone {
			return
		}
	}
	m.stepTime(now)
}

// Abort is the global quit signal: end-block marker, straight to DONE.
func (m *Manager) Abort(now time.Time) {
	if m.state == StateDone {
		return
	}
	m.log.Info("run aborted", "state", m.state.String(), "trial", m.idx)
	m.aborted = true
	m.markers.Write(m.cfg.Markers.EndBlock, "end_block")
	m.state = StateDone
	m.entered = now
}

func (m *Manager) handleKey(now time.Time, ev KeyEvent) {
	if ev.Key == KeyEscape && ev.Pressed {
		m.Abort(now)
		return
	}

	switch m.state {
	case StateInstruction:
		if ev.Key == KeySpace && ev.Pressed {
			m.log.Debug("instructions finished by key press")
			m.enterFixation(now)
		}

	case StateFixation:
		if m.cfg.Mode != config.ModeSelfPaced {
			return
		}
		switch {
		case ev.Key == KeyDown && ev.Pressed && !m.downHeld:
			m.downHeld = true
			m.heldSince = now
			m.log.Debug("down key pressed, arming trial start")
		case ev.Key == KeyDown && !ev.Pressed:
			// releasing before the hold elapses resets the timer
			m.downHeld = false
		}

	// responses are live from stimulus onset, before the probe appears
	case StateStimulus, StateAwaitResponse:
		if m.cfg.Mode == config.ModeClassical {
			return // reading task, no per-key response expected
		}
		switch {
		case (ev.Key == KeyLeft || ev.Key == KeyRight) && ev.Pressed:
			m.respond(now, ev.Key)
		case ev.Key == KeyDown && !ev.Pressed && m.cfg.Mode == config.ModeSelfPaced && m.downHeld:
			// lift-off marks the response onset in self-paced mode
			m.downHeld = false
			m.markers.Write(m.cfg.Markers.LiftOff, "lift_off")
			m.log.Debug("down key released", "since_onset_s", now.Sub(m.onset).Seconds())
		}
	}
	// all other keys and states: no transition
}

func (m *Manager) stepTime(now time.Time) {
	elapsed := now.Sub(m.entered)

	switch m.state {
	case StateInstruction:
		if elapsed >= m.cfg.Timing.Instruction {
			m.enterFixation(now)
		}

	case StateFixation:
		switch m.cfg.Mode {
		case config.ModeSelfPaced:
			if m.downHeld && now.Sub(m.heldSince) >= m.cfg.Timing.HoldToStart {
				m.enterStimulus(now)
			}
		default:
			if elapsed >= m.cfg.Timing.Fixation {
				m.enterStimulus(now)
			}
		}

	case StateStimulus:
		if elapsed >= m.cfg.Timing.ProbeOnsetDelay {
			m.state = StateAwaitResponse
			m.entered = now
		}

	case StateAwaitResponse:
		timeout := m.cfg.Timing.Stimulus
		if m.cfg.Mode == config.ModeClassical {
			timeout = m.cfg.Timing.Classical
		}
		if now.Sub(m.onset) >= timeout {
			m.timeout(now)
		}

	case StateFeedback:
		if elapsed >= m.cfg.Timing.Feedback {
			m.endTrial(now)
		}

	case StateInterTrial:
		if m.idx >= m.trials {
			m.enterDone(now)
		} else if elapsed >= m.waitDur {
			m.enterFixation(now)
		}
	}
}

func (m *Manager) enterFixation(now time.Time) {
	m.markers.Write(m.cfg.Markers.StartTrial, "start_trial")
	m.state = StateFixation
	m.entered = now
	m.downHeld = false
	m.log.Debug("trial start", "trial", m.idx, "of", m.trials)
}

func (m *Manager) enterStimulus(now time.Time) {
	if m.cfg.Mode == config.ModeClassical {
		// the table is the stimulus; there is no probe delay
		m.markers.Write(m.cfg.Markers.Incongruent, "classical_table")
		m.onset = now
		m.state = StateAwaitResponse
		m.entered = now
		return
	}

	cur := m.seq[m.idx]
	code := m.cfg.Markers.Incongruent
	if cur.Congruent {
		code = m.cfg.Markers.Congruent
	}
	m.markers.Write(code, cur.Label())
	m.log.Info("stimulus onset",
		"word", cur.Word, "ink", cur.InkName, "probe", cur.Probe,
		"congruent", cur.Congruent, "expected", cur.Expected.String())

	m.onset = now
	m.state = StateStimulus
	m.entered = now
}

func (m *Manager) respond(now time.Time, key Key) {
	rt := now.Sub(m.onset)
	expected := KeyLeft
	if m.seq[m.idx].Expected == trial.ResponseRight {
		expected = KeyRight
	}
	r := Reaction{Key: key, RT: rt, Correct: key == expected}
	m.reactions = append(m.reactions, r)

	m.markers.Write(m.cfg.Markers.Reaction,
		fmt.Sprintf("reaction_%s|rt_s=%.3f", key.String(), rt.Seconds()))
	m.log.Info("reaction", "key", key.String(), "rt_s", rt.Seconds(), "correct", r.Correct)

	m.state = StateFeedback
	m.entered = now
}

func (m *Manager) timeout(now time.Time) {
	rt := now.Sub(m.onset)
	if m.cfg.Mode != config.ModeClassical {
		m.reactions = append(m.reactions, Reaction{RT: rt, TimedOut: true})
	}
	m.markers.Write(m.cfg.Markers.Timeout,
		fmt.Sprintf("timeout|rt_s=%.3f", rt.Seconds()))
	m.log.Info("response timeout", "rt_s", rt.Seconds())

	m.state = StateFeedback
	m.entered = now
}

func (m *Manager) endTrial(now time.Time) {
	m.markers.Write(m.cfg.Markers.EndTrial, "end_trial")
	m.idx++

	m.state = StateInterTrial
	m.entered = now
	m.waitDur = 0
	if m.cfg.Mode == config.ModeRandomWait && m.idx < m.trials {
		span := m.cfg.Timing.WaitMax - m.cfg.Timing.WaitMin
		m.waitDur = m.cfg.Timing.WaitMin + time.Duration(m.rng.Float64()*float64(span))
	}
}

func (m *Manager) enterDone(now time.Time) {
	m.markers.Write(m.cfg.Markers.EndBlock, "end_block")
	m.state = StateDone
	m.entered = now
	s := m.Summary()
	m.log.Info("block finished",
		"trials", s.Trials, "correct", s.Correct,
		"timeouts", s.Timeouts, "mean_rt_s", s.MeanRT.Seconds())
}

// Display builds the render contract for the current state.
func (m *Manager) Display() DisplayState {
	switch m.state {
	case StateInstruction:
		return DisplayState{Screen: ScreenInstruction}

	case StateFixation:
		return DisplayState{Screen: ScreenFixation}

	case StateStimulus, StateAwaitResponse:
		if m.cfg.Mode == config.ModeClassical {
			return DisplayState{Screen: ScreenTable, Table: m.seq}
		}
		return DisplayState{
			Screen:    ScreenStimulus,
			Trial:     &m.seq[m.idx],
			ShowProbe: m.state == StateAwaitResponse,
		}

	case StateFeedback:
		if m.cfg.Mode == config.ModeClassical {
			// soften the stop: show the fixation cross briefly
			return DisplayState{Screen: ScreenFixation}
		}
		r := m.reactions[len(m.reactions)-1]
		return DisplayState{Screen: ScreenFeedback, Reaction: &r}

	case StateInterTrial:
		return DisplayState{Screen: ScreenBlank}

	default:
		return DisplayState{Screen: ScreenResults, Results: m.Summary()}
	}
}

// Summary computes the in-memory run outcome.
func (m *Manager) Summary() Summary {
	s := Summary{Trials: len(m.reactions)}
	var total time.Duration
	for _, r := range m.reactions {
		total += r.RT
		if r.TimedOut {
			s.Timeouts++
		} else if r.Correct {
			s.Correct++
		}
	}
	if s.Trials > 0 {
		s.MeanRT = total / time.Duration(s.Trials)
	}
	return s
}
