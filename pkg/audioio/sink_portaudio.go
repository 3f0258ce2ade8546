//go:build portaudio

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

func init() {
	registerSink(BackendPortAudio, func(cfg Config, logger *slog.Logger) (Sink, error) {
		return newPortAudioSink(cfg, logger)
	})
}

// PortAudioSink plays through the default output device. Write blocks
// until the device has accepted the samples, which paces the caller.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	out     []int16
	running bool
	closed  bool
	cleared atomic.Bool

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &PortAudioSink{cfg: cfg, logger: logger}, nil
}

// Start opens the default output stream.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	s.out = make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(0, s.cfg.Channels, float64(s.cfg.SampleRate), s.cfg.BufferSize(), s.out)
	if err != nil {
		return fmt.Errorf("portaudio open: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio start: %w", err)
	}
	s.stream = stream
	s.running = true
	s.logger.Info("portaudio playback started", "sample_rate", s.cfg.SampleRate)
	return nil
}

// Stop closes the stream.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	_ = s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	return err
}

// Write plays chunk one device buffer at a time. A Clear between buffers
// abandons the rest of the chunk.
func (s *PortAudioSink) Write(ctx context.Context, chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return io.ErrClosedPipe
	}
	s.cleared.Store(false)

	samples := chunk.Samples
	if chunk.Channels != s.cfg.Channels {
		samples = Interleave(chunk.Mono(), s.cfg.Channels)
	}
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cleared.Load() {
			return nil
		}
		n := copy(s.out, samples)
		clear(s.out[n:])
		samples = samples[n:]
		if err := s.stream.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				s.underruns.Add(1)
				continue
			}
			return fmt.Errorf("portaudio write: %w", err)
		}
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush is a no-op: Write returns once the device holds the samples.
func (s *PortAudioSink) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Clear abandons the chunk currently being written.
func (s *PortAudioSink) Clear() error {
	s.cleared.Store(true)
	return nil
}

func (s *PortAudioSink) Config() Config { return s.cfg }
func (s *PortAudioSink) Name() string   { return string(BackendPortAudio) }

// Close stops playback and terminates PortAudio.
func (s *PortAudioSink) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return portaudio.Terminate()
}

func (s *PortAudioSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Underruns:      s.underruns.Load(),
		Running:        running,
		Backend:        string(BackendPortAudio),
	}
}

var _ SinkWithStats = (*PortAudioSink)(nil)
