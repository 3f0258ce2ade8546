package audioio

import (
	"context"
	"io"
)

// Sink plays audio on a speaker.
type Sink interface {
	// Start opens the output device. Writes fail until Start succeeds.
	Start(ctx context.Context) error

	// Stop halts playback. It is safe to call Stop more than once.
	Stop() error

	// Write queues a chunk for playback. It may block while the device
	// buffer is full.
	Write(ctx context.Context, chunk Chunk) error

	// Flush waits until queued audio has been played.
	Flush(ctx context.Context) error

	// Clear drops queued audio immediately.
	Clear() error

	Config() Config

	// Name returns the backend name ("portaudio", "mock").
	Name() string

	io.Closer
}

// SinkStats contains playback counters.
type SinkStats struct {
	ChunksWritten   int64  `json:"chunks_written"`
	SamplesWritten  int64  `json:"samples_written"`
	Underruns       int64  `json:"underruns"`
	Running         bool   `json:"running"`
	Backend         string `json:"backend"`
	BufferedSamples int64  `json:"buffered_samples"`
}

// SinkWithStats extends Sink with statistics.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
