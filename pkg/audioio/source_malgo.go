//go:build malgo

package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

func init() {
	registerSource(BackendMalgo, func(cfg Config, logger *slog.Logger) (Source, error) {
		return newMalgoSource(cfg, logger)
	})
}

// MalgoSource captures the default input device through miniaudio.
type MalgoSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	running  bool
	closed   bool
	streamCh chan Chunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newMalgoSource(cfg Config, logger *slog.Logger) (*MalgoSource, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}
	return &MalgoSource{
		cfg:      cfg,
		logger:   logger,
		mctx:     mctx,
		streamCh: make(chan Chunk, 32),
	}, nil
}

// Start opens the capture device.
func (s *MalgoSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	dc := malgo.DefaultDeviceConfig(malgo.Capture)
	dc.Capture.Format = malgo.FormatS16
	dc.Capture.Channels = uint32(s.cfg.Channels)
	dc.SampleRate = uint32(s.cfg.SampleRate)
	dc.PeriodSizeInMilliseconds = uint32(s.cfg.BufferDuration.Milliseconds())

	out := make(chan Chunk, 32)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			chunk := ChunkFromBytes(input, s.cfg.SampleRate, s.cfg.Channels)
			select {
			case out <- chunk:
				s.chunksRead.Add(1)
				s.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				s.overruns.Add(1)
			}
		},
	}

	device, err := malgo.InitDevice(s.mctx.Context, dc, callbacks)
	if err != nil {
		return fmt.Errorf("malgo init device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("malgo start device: %w", err)
	}

	s.device = device
	s.streamCh = out
	s.stopCh = make(chan struct{})
	s.running = true
	s.logger.Info("malgo capture started", "sample_rate", s.cfg.SampleRate, "channels", s.cfg.Channels)

	go func(stop <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stop:
		}
	}(s.stopCh)
	return nil
}

// Stop closes the capture device. The device callback has returned once
// Uninit does, so closing the stream afterwards is safe.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	_ = s.device.Stop()
	s.device.Uninit()
	s.device = nil
	close(s.streamCh)
	close(s.stopCh)
	s.logger.Info("malgo capture stopped")
	return nil
}

// Read returns the next chunk, or io.EOF after Stop.
func (s *MalgoSource) Read(ctx context.Context) (Chunk, error) {
	ch := s.Stream()
	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case c, ok := <-ch:
		if !ok {
			return Chunk{}, io.EOF
		}
		return c, nil
	}
}

func (s *MalgoSource) Stream() <-chan Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

func (s *MalgoSource) Config() Config { return s.cfg }
func (s *MalgoSource) Name() string   { return string(BackendMalgo) }

// Close stops capture and frees the miniaudio context.
func (s *MalgoSource) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.mctx.Uninit()
	s.mctx.Free()
	return nil
}

func (s *MalgoSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     string(BackendMalgo),
	}
}

var _ SourceWithStats = (*MalgoSource)(nil)
