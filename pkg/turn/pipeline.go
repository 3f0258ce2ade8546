package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-orb/pkg/audio"
	"github.com/teslashibe/go-orb/pkg/chat"
	"github.com/teslashibe/go-orb/pkg/tts"
)

// Pipeline sequences generation, synthesis and playback for each turn.
type Pipeline struct {
	turns   Turns
	gen     Generator
	synth   Synthesizer
	player  Player
	display chat.Display
	gate    Gate
	log     *slog.Logger

	// OnError is called with every failed turn.
	OnError func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGate waits on g before a turn touches the display or audio.
func WithGate(g Gate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithDisplay sets where the conversation is shown.
func WithDisplay(d chat.Display) Option {
	return func(p *Pipeline) { p.display = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a pipeline. Every collaborator is required.
func New(turns Turns, gen Generator, synth Synthesizer, player Player, opts ...Option) (*Pipeline, error) {
	switch {
	case turns == nil:
		return nil, errors.New("turn: state machine is required")
	case gen == nil:
		return nil, errors.New("turn: generator is required")
	case synth == nil:
		return nil, errors.New("turn: synthesizer is required")
	case player == nil:
		return nil, errors.New("turn: player is required")
	}
	p := &Pipeline{
		turns:   turns,
		gen:     gen,
		synth:   synth,
		player:  player,
		display: nopDisplay{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "turn")
	return p, nil
}

// Process runs a full turn for user text. Errors are returned after the
// turn has been unwound, so listening has already been restored.
func (p *Pipeline) Process(ctx context.Context, text string) error {
	text, err := p.accept(text)
	if err != nil {
		return err
	}
	return p.run(ctx, text)
}

// Submit starts a turn and returns once it has been accepted. The turn
// continues under ctx; its failure goes to OnError.
func (p *Pipeline) Submit(ctx context.Context, text string) error {
	text, err := p.accept(text)
	if err != nil {
		return err
	}
	go p.run(ctx, text)
	return nil
}

// accept claims the turn for text.
func (p *Pipeline) accept(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	if !p.turns.BeginTurn() {
		p.log.Debug("turn in progress, input ignored", "text", text)
		return "", ErrBusy
	}
	return text, nil
}

func (p *Pipeline) run(ctx context.Context, text string) (err error) {
	start := time.Now()
	defer func() { p.finish(err, start) }()

	if err := p.waitReady(ctx); err != nil {
		return err
	}

	ctx, done := p.begin(ctx)
	defer done()

	p.display.AddMessage(text, true)
	p.display.StartAIMessage()
	reply, err := p.gen.Generate(ctx, text, p.display.UpdateAIMessage)
	p.display.EndAIMessage()
	if err != nil {
		return fmt.Errorf("turn: generate: %w", err)
	}

	return p.speak(ctx, reply)
}

// Greet speaks text as an assistant message without a user message.
func (p *Pipeline) Greet(ctx context.Context, text string) (err error) {
	text, err = p.accept(text)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { p.finish(err, start) }()

	if err := p.waitReady(ctx); err != nil {
		return err
	}

	ctx, done := p.begin(ctx)
	defer done()

	p.display.StartAIMessage()
	p.display.UpdateAIMessage(text)
	p.display.EndAIMessage()

	return p.speak(ctx, text)
}

// Interrupt stops playback and cancels the reply in flight.
func (p *Pipeline) Interrupt() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	p.player.Stop()
	if cancel != nil {
		cancel()
		p.log.Info("turn interrupted")
	}
}

// Busy reports whether a reply is being generated or spoken.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Pipeline) waitReady(ctx context.Context) error {
	if p.gate == nil {
		return nil
	}
	if err := p.gate.Ready(ctx); err != nil {
		return fmt.Errorf("turn: audio not ready: %w", err)
	}
	return nil
}

// begin derives the turn context, cancelling any generation still running.
func (p *Pipeline) begin(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.seq++
	id := p.seq
	p.mu.Unlock()

	return ctx, func() {
		cancel()
		p.mu.Lock()
		if p.seq == id {
			p.cancel = nil
		}
		p.mu.Unlock()
	}
}

// speak synthesizes reply and plays it. A stopped playback is not an error.
func (p *Pipeline) speak(ctx context.Context, reply string) error {
	result, err := p.synth.Synthesize(ctx, reply)
	if err != nil {
		return fmt.Errorf("turn: synthesize: %w", err)
	}
	if result == nil || len(result.Audio) < 2 {
		return fmt.Errorf("turn: synthesize: %w", tts.ErrEmptyAudio)
	}
	clip := audio.ClipFromPCM(result.Audio, result.Format.SampleRate)

	if err := p.turns.BeginSpeaking(); err != nil {
		return err
	}
	err = p.player.Play(ctx, clip)
	p.turns.EndPlayback()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, audio.ErrStopped), errors.Is(err, context.Canceled) && ctx.Err() != nil:
		p.log.Debug("playback interrupted")
		return nil
	default:
		return fmt.Errorf("turn: play: %w", err)
	}
}

func (p *Pipeline) finish(err error, start time.Time) {
	p.turns.EndTurn()
	if err == nil {
		p.log.Info("turn complete", "duration", time.Since(start))
		return
	}
	if errors.Is(err, context.Canceled) {
		p.log.Info("turn cancelled")
		return
	}
	p.log.Warn("turn failed", "error", err)
	if p.OnError != nil {
		p.OnError(err)
	}
}

type nopDisplay struct{}

func (nopDisplay) AddMessage(string, bool) {}
func (nopDisplay) StartAIMessage()         {}
func (nopDisplay) UpdateAIMessage(string)  {}
func (nopDisplay) EndAIMessage()           {}
