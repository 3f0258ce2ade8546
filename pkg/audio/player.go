package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-orb/pkg/audioio"
	"github.com/teslashibe/go-orb/pkg/level"
)

// Playback errors.
var (
	ErrPlaybackFailed = errors.New("audio: playback failed")
	ErrStopped        = errors.New("audio: playback stopped")
	ErrEmptyClip      = errors.New("audio: empty clip")
)

// Playback defaults.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultChunk      = 20 * time.Millisecond
)

// Clip is mono PCM16 audio ready to play.
type Clip struct {
	Samples    []int16
	SampleRate int
}

// ClipFromPCM wraps little-endian PCM16 bytes.
func ClipFromPCM(data []byte, sampleRate int) Clip {
	return Clip{Samples: audioio.BytesToSamples(data), SampleRate: sampleRate}
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// PlayerConfig configures a Player.
type PlayerConfig struct {
	// Retries is the number of attempts to start playback.
	Retries int
	// RetryDelay is the wait between attempts.
	RetryDelay time.Duration
	// Chunk is the amount of audio written per sink call.
	Chunk  time.Duration
	Logger *slog.Logger
}

// DefaultPlayerConfig returns three attempts 500 ms apart.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		Chunk:      DefaultChunk,
	}
}

// Player plays one clip at a time to the engine's sink and feeds the
// playback analyser as it goes.
type Player struct {
	engine   *Engine
	analyser *level.Analyser
	cfg      PlayerConfig
	log      *slog.Logger

	// Callbacks
	OnPlaybackStart func()
	OnPlaybackEnd   func()

	mu      sync.Mutex
	cancel  context.CancelCauseFunc
	gen     uint64
	playing atomic.Bool
}

// NewPlayer creates a player. analyser may be nil.
func NewPlayer(engine *Engine, analyser *level.Analyser, cfg PlayerConfig) *Player {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Chunk <= 0 {
		cfg.Chunk = DefaultChunk
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		engine:   engine,
		analyser: analyser,
		cfg:      cfg,
		log:      logger.With("component", "player"),
	}
}

// Play blocks until clip has played, Stop is called, or ctx ends. Start
// failures are retried; after the last attempt Play returns an error
// wrapping ErrPlaybackFailed. OnPlaybackEnd fires for every playback that
// fired OnPlaybackStart.
func (p *Player) Play(ctx context.Context, clip Clip) error {
	if len(clip.Samples) == 0 || clip.SampleRate <= 0 {
		return ErrEmptyClip
	}
	if err := p.engine.Ready(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel(ErrStopped)
	}
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.gen == gen {
			p.cancel = nil
		}
		p.mu.Unlock()
	}()

	sink := p.engine.Sink()
	chunks := p.split(clip, sink.Config())
	if err := p.begin(ctx, sink, chunks[0]); err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrStopped) {
			return ErrStopped
		}
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	p.playing.Store(true)
	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
	defer func() {
		p.playing.Store(false)
		if p.analyser != nil {
			p.analyser.Reset()
		}
		if p.OnPlaybackEnd != nil {
			p.OnPlaybackEnd()
		}
	}()

	for _, c := range chunks[1:] {
		if err := sink.Write(ctx, c.out); err != nil {
			return p.interrupted(ctx, sink, err)
		}
		p.feed(c.mono)
	}
	if err := sink.Flush(ctx); err != nil {
		return p.interrupted(ctx, sink, err)
	}
	p.log.Debug("playback complete", "duration", clip.Duration())
	return nil
}

// begin writes the first chunk, retrying the device start between attempts.
func (p *Player) begin(ctx context.Context, sink audioio.Sink, first chunk) error {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = sink.Write(ctx, first.out)
		if lastErr == nil {
			p.feed(first.mono)
			return nil
		}
		p.log.Warn("playback start failed", "attempt", attempt, "of", p.cfg.Retries, "error", lastErr)
		if attempt == p.cfg.Retries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.RetryDelay):
		}
		if err := sink.Start(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (p *Player) interrupted(ctx context.Context, sink audioio.Sink, err error) error {
	_ = sink.Clear()
	if errors.Is(context.Cause(ctx), ErrStopped) {
		p.log.Debug("playback stopped")
		return ErrStopped
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
}

func (p *Player) feed(mono []int16) {
	if p.analyser != nil {
		p.analyser.Write(mono)
	}
}

// Stop interrupts the current clip. Play returns ErrStopped.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel(ErrStopped)
		_ = p.engine.Sink().Clear()
	}
}

// Playing reports whether a clip is audible.
func (p *Player) Playing() bool {
	return p.playing.Load()
}

type chunk struct {
	mono []int16
	out  audioio.Chunk
}

// split cuts clip into sink-sized chunks converted to the sink format.
func (p *Player) split(clip Clip, cfg audioio.Config) []chunk {
	per := max(1, int(float64(clip.SampleRate)*p.cfg.Chunk.Seconds()))
	rate, channels := cfg.SampleRate, max(cfg.Channels, 1)
	if rate <= 0 {
		rate = clip.SampleRate
	}

	out := make([]chunk, 0, len(clip.Samples)/per+1)
	for i := 0; i < len(clip.Samples); i += per {
		mono := clip.Samples[i:min(i+per, len(clip.Samples))]
		samples := audioio.Interleave(audioio.Resample(mono, clip.SampleRate, rate), channels)
		out = append(out, chunk{
			mono: mono,
			out:  audioio.Chunk{Samples: samples, SampleRate: rate, Channels: channels},
		})
	}
	return out
}
