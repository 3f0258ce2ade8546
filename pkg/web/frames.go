package web

import (
	"bytes"
	"context"
	"image/png"
	"time"
)

// streamFrames pushes PNG snapshots of the orb surface to /ws/frames.
// Ticks with no viewers or no new frame are skipped.
func (s *Server) streamFrames(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FrameRate))
	defer ticker.Stop()

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	var buf bytes.Buffer
	var last uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		surface := s.collaborators().Surface
		if surface == nil || s.framesHub.ClientCount() == 0 {
			continue
		}
		n := surface.Frames()
		if n == last {
			continue
		}
		last = n

		buf.Reset()
		if err := enc.Encode(&buf, surface.Snapshot()); err != nil {
			s.log.Warn("encode frame", "error", err)
			continue
		}
		s.framesHub.BroadcastBinary(bytes.Clone(buf.Bytes()))
	}
}
