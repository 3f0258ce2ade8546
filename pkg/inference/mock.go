package inference

import (
	"context"
	"sync"
)

// Mock is a Provider for tests. Each function field replaces the default
// behavior of its method.
type Mock struct {
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// StreamFunc defaults to streaming the ChatFunc reply as one chunk.
	StreamFunc func(ctx context.Context, req *ChatRequest) (Stream, error)

	HealthFunc func(ctx context.Context) error
	CloseFunc  func() error

	mu       sync.Mutex
	counts   map[string]int
	requests []ChatRequest
}

// NewMock returns a mock that answers "Mock response".
func NewMock() *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage("Mock response"),
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
	}
}

// NewStreamMock returns a mock whose streams deliver chunks in order.
func NewStreamMock(chunks ...string) *Mock {
	m := NewMock()
	m.StreamFunc = func(ctx context.Context, req *ChatRequest) (Stream, error) {
		return StreamOf(ctx, chunks...), nil
	}
	return m
}

// WithError returns a mock where every call fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc:   func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) { return nil, err },
		StreamFunc: func(ctx context.Context, req *ChatRequest) (Stream, error) { return nil, err },
		HealthFunc: func(ctx context.Context) error { return err },
	}
}

func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.record("Chat", req)
	if m.ChatFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.ChatFunc(ctx, req)
}

func (m *Mock) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	m.record("Stream", req)
	switch {
	case m.StreamFunc != nil:
		return m.StreamFunc(ctx, req)
	case m.ChatFunc != nil:
		resp, err := m.ChatFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		return StreamOf(ctx, resp.Message.Content), nil
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", nil)
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.record("Close", nil)
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

func (m *Mock) record(method string, req *ChatRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
	if req != nil {
		r := *req
		r.Messages = append([]Message(nil), req.Messages...)
		m.requests = append(m.requests, r)
	}
}

// CallCount returns how often method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// Requests returns copies of every chat request received, oldest first.
func (m *Mock) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.requests...)
}

// LastRequest returns the most recent chat request.
func (m *Mock) LastRequest() (ChatRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// StreamOf returns a stream that yields chunks and then completes. Recv
// fails with the context error once ctx ends.
func StreamOf(ctx context.Context, chunks ...string) Stream {
	return &chunkStream{ctx: ctx, chunks: chunks}
}

type chunkStream struct {
	ctx    context.Context
	chunks []string
}

func (s *chunkStream) Recv() (*StreamChunk, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		return &StreamChunk{FinishReason: "stop", Done: true}, nil
	}
	delta := s.chunks[0]
	s.chunks = s.chunks[1:]
	return &StreamChunk{Delta: delta}, nil
}

func (s *chunkStream) Close() error { return nil }

var _ Provider = (*Mock)(nil)
