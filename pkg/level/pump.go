package level

import (
	"context"

	"github.com/teslashibe/go-orb/pkg/audioio"
)

// Pump copies chunks from src into a and then to every tap, until the
// source's stream closes or ctx is done. Multi-channel input is reduced to
// its first channel.
func Pump(ctx context.Context, src audioio.Source, a *Analyser, taps ...func(audioio.Chunk)) {
	stream := src.Stream()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-stream:
			if !ok {
				return
			}
			a.Write(chunk.Mono())
			for _, tap := range taps {
				tap(chunk)
			}
		}
	}
}
