package marker

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsdlab/dp-stroop/internal/config"
)

type recordSink struct {
	events []Event
}

func (r *recordSink) Write(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recordSink) Close() error { return nil }

type failSink struct {
	writes int
	closed bool
}

func (f *failSink) Write(Event) error {
	f.writes++
	return errors.New("device gone")
}

func (f *failSink) Close() error {
	f.closed = true
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriterPreservesCallOrder(t *testing.T) {
	rec := &recordSink{}
	w := NewWriter(discard(), rec)

	w.Write(2, "start_trial")
	w.Write(0, "red|red|red")
	w.Write(16, "reaction_RIGHT")
	w.Write(4, "end_trial")

	require.Len(t, rec.events, 4)
	labels := []string{}
	for _, ev := range rec.events {
		labels = append(labels, ev.Label)
	}
	assert.Equal(t, []string{"start_trial", "red|red|red", "reaction_RIGHT", "end_trial"}, labels)

	for i := 1; i < len(rec.events); i++ {
		assert.GreaterOrEqual(t, rec.events[i].Elapsed, rec.events[i-1].Elapsed)
	}
}

func TestWriterFallsBackOnSinkError(t *testing.T) {
	rec := &recordSink{}
	bad := &failSink{}
	w := NewWriter(discard(), bad, rec)

	w.Write(1, "a")
	w.Write(2, "b")
	w.Write(3, "c")

	// the broken sink was tried once, closed, and replaced
	assert.Equal(t, 1, bad.writes)
	assert.True(t, bad.closed)

	// the healthy sink saw every event, in order
	require.Len(t, rec.events, 3)
	assert.Equal(t, "a", rec.events[0].Label)
	assert.Equal(t, "c", rec.events[2].Label)
}

func TestFromConfigDebugNeverOpensHardware(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transport.SerialPort = "/dev/does-not-exist"
	cfg.Transport.Debug = true

	w := FromConfig(cfg, discard())
	defer w.Close()

	// debug mode must not even attempt the serial device
	require.Len(t, w.sinks, 1)
	_, ok := w.sinks[0].(*LogSink)
	assert.True(t, ok)
}

func TestFromConfigBrokenSerialDegrades(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transport.SerialPort = "/dev/does-not-exist"

	w := FromConfig(cfg, discard())
	defer w.Close()

	// the open failure degrades to the log sink; the run continues
	require.Len(t, w.sinks, 1)
	assert.NotPanics(t, func() { w.Write(1, "still alive") })
}
