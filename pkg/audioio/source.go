package audioio

import (
	"context"
	"io"
)

// Chunk is a block of interleaved PCM16 samples.
type Chunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the samples as little-endian PCM16.
func (c Chunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// ChunkFromBytes builds a chunk from little-endian PCM16.
func ChunkFromBytes(data []byte, sampleRate, channels int) Chunk {
	return Chunk{
		Samples:    BytesToSamples(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Duration returns the playback length in seconds.
func (c Chunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Mono returns the first channel of an interleaved chunk.
func (c Chunk) Mono() []int16 {
	if c.Channels <= 1 {
		return c.Samples
	}
	out := make([]int16, len(c.Samples)/c.Channels)
	for i := range out {
		out[i] = c.Samples[i*c.Channels]
	}
	return out
}

// Source captures audio from a microphone or a remote peer.
type Source interface {
	// Start begins capture. Chunks are then available from Read or Stream.
	Start(ctx context.Context) error

	// Stop halts capture. It is safe to call Stop more than once.
	Stop() error

	// Read blocks for the next chunk. It returns io.EOF once stopped.
	Read(ctx context.Context) (Chunk, error)

	// Stream returns a channel of chunks, closed when the source stops.
	Stream() <-chan Chunk

	Config() Config

	// Name returns the backend name ("malgo", "webrtc", "mock").
	Name() string

	io.Closer
}

// SourceStats contains capture counters.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
