package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Generator produces replies from a Provider using a bounded History.
type Generator struct {
	history *History
	logger  *slog.Logger

	mu       sync.RWMutex
	provider Provider
}

// NewGenerator creates a generator. A nil history uses the defaults.
func NewGenerator(p Provider, h *History, logger *slog.Logger) *Generator {
	if h == nil {
		h = NewHistory("", 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider: p,
		history:  h,
		logger:   logger.With("component", "inference.generator"),
	}
}

// Generate streams a reply to text, calling onChunk with each fragment in
// order, and returns the concatenated reply. The exchange is added to the
// history only when the stream completes with text.
func (g *Generator) Generate(ctx context.Context, text string, onChunk func(string)) (string, error) {
	messages := append(g.history.Messages(), NewUserMessage(text))

	g.mu.RLock()
	provider := g.provider
	g.mu.RUnlock()

	stream, err := provider.Stream(ctx, &ChatRequest{Messages: messages})
	if err != nil {
		return "", fmt.Errorf("inference: open stream: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("inference: read stream: %w", err)
		}
		if chunk.Delta != "" {
			reply.WriteString(chunk.Delta)
			if onChunk != nil {
				onChunk(chunk.Delta)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := reply.String()
	if strings.TrimSpace(full) == "" {
		return "", ErrEmptyReply
	}
	g.history.Add(text, full)
	g.logger.Debug("reply generated", "chars", len(full), "history_pairs", g.history.Pairs())
	return full, nil
}

// SetProvider switches the backend for subsequent replies.
func (g *Generator) SetProvider(p Provider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.provider = p
}

// History returns the generator's history.
func (g *Generator) History() *History {
	return g.history
}
