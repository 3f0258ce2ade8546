package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/teslashibe/go-orb/internal/httpc"
)

const providerOneMind = "1mind"

// DefaultSessionURL is the 1mind session endpoint.
const DefaultSessionURL = "https://dialogue-v2.dev.1mind.com/api/v1/session"

// Assistant is a known 1mind AI.
type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assistants lists the 1mind AIs offered in the dashboard. Any other id may
// be entered by hand.
var Assistants = []Assistant{
	{ID: "61d8c8d0-bc62-4d7f-9c71-4cbc84dd5d2d", Name: "Mindy Website AI"},
	{ID: "58a72e80-1bbd-4fad-a1f0-934718b1a363", Name: "Amanda AI - Sales"},
	{ID: "cc9191a5-2b24-4018-8bcd-7bc2cd2b689f", Name: "Amanda AI - Investor"},
	{ID: "MEADOWS", Name: "Rob-bot"},
}

// Session is an open 1mind dialogue session.
type Session struct {
	ID       string `json:"sessionId"`
	AIID     string `json:"aiId"`
	UserID   string `json:"userId"`
	Greeting string `json:"greeting,omitempty"`
}

// SessionClient opens 1mind sessions.
type SessionClient struct {
	url    string
	apiKey string
	http   *http.Client
	logger *slog.Logger
}

// SessionOption configures a SessionClient.
type SessionOption func(*SessionClient)

// WithSessionURL overrides the session endpoint.
func WithSessionURL(url string) SessionOption {
	return func(c *SessionClient) { c.url = url }
}

// WithSessionHTTPClient overrides the HTTP client.
func WithSessionHTTPClient(client *http.Client) SessionOption {
	return func(c *SessionClient) { c.http = client }
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(c *SessionClient) { c.logger = l }
}

// NewSessionClient creates a session client for the given x-api-key.
func NewSessionClient(apiKey string, opts ...SessionOption) (*SessionClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	c := &SessionClient{
		url:    DefaultSessionURL,
		apiKey: apiKey,
		http:   httpc.Client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "inference.session")
	return c, nil
}

// Create opens a session with the given AI under a fresh user id. A
// response without a session id is ErrNoSession.
func (c *SessionClient) Create(ctx context.Context, aiID string) (*Session, error) {
	if aiID == "" {
		return nil, WrapError(providerOneMind, fmt.Errorf("ai id required"))
	}
	userID := uuid.NewString()

	body, err := json.Marshal(map[string]string{"aiId": aiID, "userId": userID})
	if err != nil {
		return nil, WrapError(providerOneMind, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOneMind, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, WrapError(providerOneMind, fmt.Errorf("create session: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, parseAPIError(resp, providerOneMind)
	}

	var result struct {
		SessionID string `json:"session_id"`
		Result    string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerOneMind, fmt.Errorf("decode response: %w", err))
	}
	if result.SessionID == "" {
		return nil, WrapError(providerOneMind, ErrNoSession)
	}

	c.logger.Info("session created", "ai_id", aiID, "session_id", result.SessionID)
	return &Session{
		ID:       result.SessionID,
		AIID:     aiID,
		UserID:   userID,
		Greeting: result.Result,
	}, nil
}

// SessionCreator opens sessions. *SessionClient satisfies it.
type SessionCreator interface {
	Create(ctx context.Context, aiID string) (*Session, error)
}

// Sessions binds 1mind sessions into a Generator: the history is cleared and
// its system message becomes the session directive, and replies switch to
// the 1mind provider.
type Sessions struct {
	creator  SessionCreator
	gen      *Generator
	provider Provider

	mu      sync.RWMutex
	current *Session
}

// NewSessions creates a session binder. provider serves replies once a
// session is open; nil keeps the generator's provider.
func NewSessions(creator SessionCreator, gen *Generator, provider Provider) *Sessions {
	return &Sessions{creator: creator, gen: gen, provider: provider}
}

// StartSession opens a session with aiID and binds it. On failure the
// previous binding is kept.
func (s *Sessions) StartSession(ctx context.Context, aiID string) (Session, error) {
	sess, err := s.creator.Create(ctx, aiID)
	if err != nil {
		return Session{}, err
	}

	h := s.gen.History()
	h.Clear()
	h.BindSession(sess.ID)
	if s.provider != nil {
		s.gen.SetProvider(s.provider)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return *sess, nil
}

// Session returns the bound session, if any.
func (s *Sessions) Session() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

var _ SessionCreator = (*SessionClient)(nil)
