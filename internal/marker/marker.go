// Package marker emits timestamped event codes to one or more sinks
// for synchronization with external recording equipment.
package marker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bsdlab/dp-stroop/internal/config"
)

// Event is one timestamped marker. Ephemeral: written immediately,
// never retained.
type Event struct {
	Code    int
	Elapsed time.Duration // since block start
	Label   string
}

// Sink is a single marker transport.
type Sink interface {
	Write(Event) error
	Close() error
}

// NopSink discards everything. Used as the fallback once a transport
// has failed.
type NopSink struct{}

func (NopSink) Write(Event) error { return nil }
func (NopSink) Close() error      { return nil }

// LogSink writes markers to the structured log. It doubles as the
// debug transport and as the software analog of a stream outlet.
type LogSink struct {
	Log *slog.Logger
}

func (s *LogSink) Write(ev Event) error {
	s.Log.Debug("marker",
		"code", ev.Code,
		"t_s", ev.Elapsed.Seconds(),
		"label", ev.Label,
	)
	return nil
}

func (s *LogSink) Close() error { return nil }

// Writer fans events out to its sinks in call order. Markers are
// never reordered or batched, and a failing sink never fails the run:
// it is logged once and replaced by NopSink.
type Writer struct {
	sinks []Sink
	log   *slog.Logger
	start time.Time
}

// NewWriter builds a writer over the given sinks. The block epoch for
// timestamps is the time of this call.
func NewWriter(log *slog.Logger, sinks ...Sink) *Writer {
	return &Writer{sinks: sinks, log: log, start: time.Now()}
}

// FromConfig assembles the writer for a run: the log sink always, and
// the serial trigger box unless debug mode is on. A missing or broken
// serial device degrades to log-only with a warning, the run
// continues.
func FromConfig(cfg *config.Config, log *slog.Logger) *Writer {
	sinks := []Sink{&LogSink{Log: log}}

	if !cfg.Transport.Debug && cfg.Transport.SerialPort != "" {
		ss, err := OpenSerial(cfg.Transport.SerialPort, cfg.Transport.BaudRate,
			cfg.Transport.PulseWidth, cfg.Transport.UTF8Write)
		if err != nil {
			log.Warn("serial marker transport unavailable, continuing with debug sink",
				"port", cfg.Transport.SerialPort, "err", err)
		} else {
			sinks = append(sinks, ss)
		}
	}
	return NewWriter(log, sinks...)
}

// Write emits one marker to every sink, in order.
func (w *Writer) Write(code int, label string) {
	ev := Event{Code: code, Elapsed: time.Since(w.start), Label: label}
	for i, s := range w.sinks {
		if err := s.Write(ev); err != nil {
			w.log.Warn("marker sink failed, falling back to nop",
				"sink", fmt.Sprintf("%T", s), "err", err)
			s.Close()
			w.sinks[i] = NopSink{}
		}
	}
}

// Close closes all sinks.
func (w *Writer) Close() {
	for _, s := range w.sinks {
		if err := s.Close(); err != nil {
			w.log.Debug("closing marker sink", "err", err)
		}
	}
}
