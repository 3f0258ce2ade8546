// Package speech defines the speech recognition contract used by the
// conversation state machine, with an AssemblyAI streaming implementation
// and a mock.
//
// Recognizers deliver events on a buffered channel and never call back into
// the caller synchronously. A slow consumer loses events rather than
// blocking the recognizer.
package speech

import (
	"context"
	"errors"
	"fmt"
)

// Recognizer is a continuous speech recognizer.
type Recognizer interface {
	// Start opens a recognition session. Starting a running recognizer
	// returns ErrAlreadyStarted.
	Start(ctx context.Context) error

	// Stop ends the session and returns once no more results for it can be
	// produced. Stopping an idle recognizer is a no-op.
	Stop() error

	// Events returns the event stream. The channel is never closed.
	Events() <-chan Event
}

// AudioSink is implemented by recognizers that consume PCM16 audio pushed
// by the caller.
type AudioSink interface {
	WriteAudio(pcm []byte) error
}

// Kind classifies an Event.
type Kind int

const (
	KindStarted Kind = iota + 1
	KindEnded
	KindResult
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindEnded:
		return "ended"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is a recognizer notification. Session identifies the Start call
// that produced it so late events from an old session can be discarded.
type Event struct {
	Kind       Kind
	Session    uint64
	Transcript string
	IsFinal    bool
	Err        error
}

// Errors returned by recognizers.
var (
	ErrAlreadyStarted = errors.New("speech: recognizer already started")
	ErrNotRunning     = errors.New("speech: recognizer not running")
	ErrMissingAPIKey  = errors.New("speech: missing API key")
)

// EventBuffer is the capacity of a recognizer's event channel.
const EventBuffer = 64

// emit sends ev without blocking. It reports whether the event was queued.
func emit(ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}
