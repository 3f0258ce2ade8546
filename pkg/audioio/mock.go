package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource generates silence, a sine wave, or a fixed sample script.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan Chunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	phase     float64
	frequency float64
	amplitude float64
	script    []int16
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave generates a tone at frequency Hz and amplitude in [0,1].
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithSamples plays samples once and then silence.
func WithSamples(samples []int16) MockSourceOption {
	return func(m *MockSource) { m.script = samples }
}

// NewMockSource creates a mock source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan Chunk, 10),
		stopCh:    make(chan struct{}),
		amplitude: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating chunks every buffer period.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan Chunk, 10)
	go m.generateLoop(ctx, m.stopCh, m.streamCh)

	m.logger.Debug("mock audio source started", "sample_rate", m.cfg.SampleRate, "frequency", m.frequency)
	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stop <-chan struct{}, out chan<- Chunk) {
	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			chunk := m.generateChunk()
			m.mu.Lock()
			if !m.running {
				m.mu.Unlock()
				return
			}
			select {
			case out <- chunk:
				m.chunksRead.Add(1)
				m.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				m.overruns.Add(1)
			}
			m.mu.Unlock()
		}
	}
}

func (m *MockSource) generateChunk() Chunk {
	frames := m.cfg.BufferSize()
	channels := max(m.cfg.Channels, 1)
	samples := make([]int16, frames*channels)

	for i := 0; i < frames; i++ {
		var v int16
		switch {
		case len(m.script) > 0:
			v = m.script[0]
			m.script = m.script[1:]
		case m.frequency > 0:
			v = int16(m.amplitude * 32767 * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}

	return Chunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: channels}
}

// Stop halts generation and closes the stream.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	close(m.streamCh)
	m.logger.Debug("mock audio source stopped")
	return nil
}

// Read returns the next chunk, or io.EOF after Stop.
func (m *MockSource) Read(ctx context.Context) (Chunk, error) {
	m.mu.Lock()
	ch := m.streamCh
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return Chunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the chunk channel of the current run.
func (m *MockSource) Stream() <-chan Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

func (m *MockSource) Config() Config { return m.cfg }
func (m *MockSource) Name() string   { return string(BackendMock) }

// Close stops the source permanently.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     string(BackendMock),
	}
}

var _ SourceWithStats = (*MockSource)(nil)

// MockSink records written audio. When Realtime is set, Write blocks for
// the chunk's duration like a device would. StartFunc and WriteFunc, when
// set, replace the default behavior so tests can inject failures.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	Realtime  bool
	StartFunc func(ctx context.Context) error
	WriteFunc func(ctx context.Context, chunk Chunk) error

	mu      sync.Mutex
	running bool
	closed  bool
	buffer  []Chunk
	played  []int16
	starts  int
	clears  int

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// NewMockSink creates a mock sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start marks the sink running.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	m.starts++
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return io.ErrClosedPipe
	}
	if m.StartFunc != nil {
		if err := m.StartFunc(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	return nil
}

// Stop marks the sink stopped.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

// Write records a chunk.
func (m *MockSink) Write(ctx context.Context, chunk Chunk) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, chunk); err != nil {
			return err
		}
	}

	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	m.buffer = append(m.buffer, chunk)
	m.played = append(m.played, chunk.Samples...)
	m.mu.Unlock()

	m.chunksWritten.Add(1)
	m.samplesWritten.Add(int64(len(chunk.Samples)))

	if m.Realtime {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(chunk.Duration() * float64(time.Second))):
		}
	}
	return nil
}

// Flush drops the simulated device buffer.
func (m *MockSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.buffer = m.buffer[:0]
	m.mu.Unlock()
	return nil
}

// Clear discards buffered audio.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	m.buffer = m.buffer[:0]
	m.clears++
	m.mu.Unlock()
	return nil
}

func (m *MockSink) Config() Config { return m.cfg }
func (m *MockSink) Name() string   { return string(BackendMock) }

// Close stops the sink permanently.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.running = false
	m.mu.Unlock()
	return nil
}

// Played returns a copy of every sample written so far.
func (m *MockSink) Played() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.played...)
}

// Starts returns how many times Start was called.
func (m *MockSink) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Clears returns how many times Clear was called.
func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	var buffered int64
	for _, c := range m.buffer {
		buffered += int64(len(c.Samples))
	}
	m.mu.Unlock()

	return SinkStats{
		ChunksWritten:   m.chunksWritten.Load(),
		SamplesWritten:  m.samplesWritten.Load(),
		Running:         running,
		Backend:         string(BackendMock),
		BufferedSamples: buffered,
	}
}

var _ SinkWithStats = (*MockSink)(nil)
