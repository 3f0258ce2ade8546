// Package turn runs one conversational turn: user text in, streamed reply
// on the chat display, synthesized speech out.
//
// A Pipeline is driven by the conversation Machine's final transcripts and
// by typed input from the dashboard. Only one turn runs at a time; a second
// submission while a turn is in progress returns ErrBusy without touching
// the display.
package turn

import (
	"context"
	"errors"

	"github.com/teslashibe/go-orb/pkg/audio"
	"github.com/teslashibe/go-orb/pkg/tts"
)

var (
	// ErrBusy is returned when a turn is already in progress.
	ErrBusy = errors.New("turn: busy")

	// ErrEmptyInput is returned for blank user text.
	ErrEmptyInput = errors.New("turn: empty input")
)

// Turns is the state machine side of a turn.
type Turns interface {
	BeginTurn() bool
	BeginSpeaking() error
	EndPlayback()
	EndTurn()
}

// Gate blocks until audio may be used.
type Gate interface {
	Ready(ctx context.Context) error
}

// Generator streams a reply to user text.
type Generator interface {
	Generate(ctx context.Context, text string, onChunk func(string)) (string, error)
}

// Synthesizer turns reply text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.AudioResult, error)
}

// Player plays a clip until it ends or Stop is called.
type Player interface {
	Play(ctx context.Context, clip audio.Clip) error
	Stop()
}

var _ Player = (*audio.Player)(nil)
