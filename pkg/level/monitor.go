package level

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Errors reported when the audio engine cannot be read.
var (
	ErrSuspended = errors.New("level: audio engine suspended")
	ErrClosed    = errors.New("level: audio engine closed")
)

// DefaultInterval matches a 60 Hz frame rate.
const DefaultInterval = time.Second / 60

// Gate reports whether the analyser may be read. It returns nil, or
// ErrSuspended or ErrClosed.
type Gate interface {
	Readable() error
}

// Reducer maps frequency bins to a level.
type Reducer func(bins []byte) float64

// Monitor samples an analyser at frame cadence and forwards the reduced
// level. A frame the gate refuses is skipped and reported, not treated as
// silence. Stop always emits a final 0.
type Monitor struct {
	name     string
	analyser *Analyser
	gate     Gate
	reduce   Reducer
	emit     func(float64)
	interval time.Duration
	onError  func(error)
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the sampling period.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

// WithOnError is called for every skipped frame.
func WithOnError(fn func(error)) MonitorOption {
	return func(m *Monitor) { m.onError = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.log = l }
}

// NewMonitor creates a stopped monitor. gate may be nil.
func NewMonitor(name string, a *Analyser, gate Gate, reduce Reducer, emit func(float64), opts ...MonitorOption) *Monitor {
	m := &Monitor{
		name:     name,
		analyser: a,
		gate:     gate,
		reduce:   reduce,
		emit:     emit,
		interval: DefaultInterval,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("component", "level", "monitor", name)
	return m
}

// Start begins sampling. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, m.done)
	m.log.Debug("monitor started")
}

// Stop halts sampling, waits for the loop to exit, and emits 0. It is safe
// to call on a stopped monitor.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
		m.log.Debug("monitor stopped")
	}
	m.emit(0)
}

// Running reports whether the monitor is sampling.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	t := time.NewTicker(m.interval)
	defer t.Stop()

	var buf []byte
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		if m.gate != nil {
			if err := m.gate.Readable(); err != nil {
				if !errors.Is(err, lastErr) {
					m.log.Warn("level read skipped", "error", err)
				}
				lastErr = err
				if m.onError != nil {
					m.onError(err)
				}
				continue
			}
		}
		lastErr = nil

		buf = m.analyser.ByteFrequencyData(buf)
		v := m.reduce(buf)
		if ctx.Err() != nil {
			return
		}
		m.emit(v)
	}
}
