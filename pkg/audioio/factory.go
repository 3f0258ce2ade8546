package audioio

import (
	"fmt"
	"log/slog"
	"sort"
)

type (
	sourceFactory func(cfg Config, logger *slog.Logger) (Source, error)
	sinkFactory   func(cfg Config, logger *slog.Logger) (Sink, error)
)

// Hardware backends register themselves from build-tagged files.
var (
	sourceBackends = map[Backend]sourceFactory{}
	sinkBackends   = map[Backend]sinkFactory{}
)

func registerSource(b Backend, f sourceFactory) { sourceBackends[b] = f }
func registerSink(b Backend, f sinkFactory)     { sinkBackends[b] = f }

// NewSource creates a capture source. BackendAuto picks a compiled-in
// hardware backend, or the mock when there is none.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = pick(keys(sourceBackends))
	}
	cfg.Backend = backend

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	if backend == BackendMock {
		return NewMockSource(cfg, logger), nil
	}
	f, ok := sourceBackends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, backend)
	}
	return f(cfg, logger)
}

// NewSink creates a playback sink. BackendAuto picks a compiled-in
// hardware backend, or the mock when there is none.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = pick(keys(sinkBackends))
	}
	cfg.Backend = backend

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	if backend == BackendMock {
		return NewMockSink(cfg, logger), nil
	}
	f, ok := sinkBackends[backend]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, backend)
	}
	return f(cfg, logger)
}

// AvailableBackends lists the backends compiled into this binary.
func AvailableBackends() []Backend {
	seen := map[Backend]bool{BackendMock: true}
	for b := range sourceBackends {
		seen[b] = true
	}
	for b := range sinkBackends {
		seen[b] = true
	}
	out := make([]Backend, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func keys[V any](m map[Backend]V) []Backend {
	out := make([]Backend, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func pick(available []Backend) Backend {
	if len(available) == 0 {
		return BackendMock
	}
	return available[0]
}
