// Package audio owns the process-wide audio engine and clip playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-orb/pkg/audioio"
	"github.com/teslashibe/go-orb/pkg/level"
)

// State is the engine lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingGesture
	StateReady
	StateSuspended
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingGesture:
		return "awaiting-gesture"
	case StateReady:
		return "ready"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotSuspended is returned by Resume on an engine that is not suspended.
var ErrNotSuspended = errors.New("audio: engine not suspended")

// Engine gates all audio work on a first user gesture. Ready is the single
// awaitable gate shared by playback, monitors and recognition.
type Engine struct {
	sink audioio.Sink
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	changed  chan struct{}
	onChange func(State)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithStateHook is called after every state change, outside the lock.
func WithStateHook(fn func(State)) EngineOption {
	return func(e *Engine) { e.onChange = fn }
}

// NewEngine creates an engine over sink, waiting for a gesture.
func NewEngine(sink audioio.Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		sink:    sink,
		log:     slog.Default(),
		state:   StateAwaitingGesture,
		changed: make(chan struct{}),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("component", "audio-engine")
	return e
}

// Sink returns the output device.
func (e *Engine) Sink() audioio.Sink {
	return e.sink
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// setLocked changes state and wakes every Ready waiter. Caller holds e.mu
// and must call notify after unlocking.
func (e *Engine) setLocked(s State) func() {
	e.state = s
	close(e.changed)
	e.changed = make(chan struct{})
	hook := e.onChange
	return func() {
		e.log.Info("audio engine state", "state", s)
		if hook != nil {
			hook(s)
		}
	}
}

// Gesture unlocks the engine by opening the output device. Repeated
// gestures are harmless.
func (e *Engine) Gesture(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case StateReady, StateSuspended:
		e.mu.Unlock()
		return nil
	case StateClosed:
		e.mu.Unlock()
		return level.ErrClosed
	}
	if err := e.sink.Start(ctx); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("audio: open output: %w", err)
	}
	notify := e.setLocked(StateReady)
	e.mu.Unlock()
	notify()
	return nil
}

// Ready blocks until the engine is ready, the engine closes, or ctx ends.
func (e *Engine) Ready(ctx context.Context) error {
	for {
		e.mu.Lock()
		state, changed := e.state, e.changed
		e.mu.Unlock()

		switch state {
		case StateReady:
			return nil
		case StateClosed:
			return level.ErrClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Readable reports whether analysers fed by the engine may be read.
func (e *Engine) Readable() error {
	switch e.State() {
	case StateReady:
		return nil
	case StateClosed:
		return level.ErrClosed
	default:
		return level.ErrSuspended
	}
}

// Suspend pauses the output device.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	if e.state != StateReady {
		e.mu.Unlock()
		return nil
	}
	err := e.sink.Stop()
	notify := e.setLocked(StateSuspended)
	e.mu.Unlock()
	notify()
	return err
}

// Resume reopens a suspended output device.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateSuspended {
		e.mu.Unlock()
		return ErrNotSuspended
	}
	if err := e.sink.Start(ctx); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("audio: resume output: %w", err)
	}
	notify := e.setLocked(StateReady)
	e.mu.Unlock()
	notify()
	return nil
}

// Close releases the output device. Waiters return level.ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	err := e.sink.Close()
	notify := e.setLocked(StateClosed)
	e.mu.Unlock()
	notify()
	return err
}
