// Package conversation coordinates speech recognition with reply playback.
//
// The Machine keeps exactly one of listening, processing/speaking or idle
// active. Recognition is stopped before a turn begins and is not restarted
// until the turn, including playback, has ended. Every restart is debounced
// by a short settle delay so the recognizer never re-triggers on the tail
// of its own stop.
//
// Example usage:
//
//	m := conversation.New(recognizer, engine,
//	    conversation.WithIndicator(coordinator),
//	    conversation.WithMicMonitor(micMonitor),
//	)
//	m.OnFinal = func(text string) { pipeline.Process(ctx, text) }
//	go m.Run(ctx)
//	if err := m.Enable(ctx); err != nil {
//	    log.Fatal(err)
//	}
package conversation

import (
	"context"
	"errors"
)

// State is the conversation turn state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Gate is the shared audio readiness signal.
type Gate interface {
	Ready(ctx context.Context) error
}

// Indicator is told which animation regime holds.
type Indicator interface {
	SetListening(listening bool)
	SetSpeaking(speaking bool)
}

// MicMonitor samples the microphone level while recognition runs. Stop
// zeroes the reported level.
type MicMonitor interface {
	Start(ctx context.Context)
	Stop()
}

// Snapshot is the machine state reported to the dashboard.
type Snapshot struct {
	State       State `json:"state"`
	Enabled     bool  `json:"enabled"`
	Processing  bool  `json:"processing"`
	Playing     bool  `json:"playing"`
	Recognizing bool  `json:"recognizing"`
}

// ErrNotProcessing is returned by transitions that require a turn.
var ErrNotProcessing = errors.New("conversation: no turn in progress")
