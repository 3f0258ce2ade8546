package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestSessionCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "mind-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		var body struct {
			AIID   string `json:"aiId"`
			UserID string `json:"userId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body.AIID != "MEADOWS" {
			t.Errorf("aiId = %q", body.AIID)
		}
		if _, err := uuid.Parse(body.UserID); err != nil {
			t.Errorf("userId %q is not a uuid: %v", body.UserID, err)
		}
		fmt.Fprint(w, `{"session_id":"s-1","result":"Welcome back!"}`)
	}))
	defer server.Close()

	c, err := NewSessionClient("mind-key", WithSessionURL(server.URL))
	if err != nil {
		t.Fatalf("NewSessionClient: %v", err)
	}
	s, err := c.Create(context.Background(), "MEADOWS")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID != "s-1" || s.Greeting != "Welcome back!" || s.AIID != "MEADOWS" {
		t.Errorf("session = %+v", s)
	}
}

func TestSessionCreateFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"missing id", http.StatusOK, `{"result":"hi"}`, ErrNoSession},
		{"server error", http.StatusInternalServerError, "down", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			c, _ := NewSessionClient("k", WithSessionURL(server.URL))
			_, err := c.Create(context.Background(), "ai")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			var apiErr *APIError
			if tt.status >= 400 && (!errors.As(err, &apiErr) || apiErr.StatusCode != tt.status) {
				t.Errorf("err = %v, want APIError %d", err, tt.status)
			}
		})
	}

	if _, err := NewSessionClient(""); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

type fakeCreator struct {
	session *Session
	err     error
}

func (f fakeCreator) Create(ctx context.Context, aiID string) (*Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.session
	s.AIID = aiID
	return &s, nil
}

func TestSessionsBindGenerator(t *testing.T) {
	gpt := NewStreamMock("from gpt")
	mind := NewStreamMock("from 1mind")
	h := NewHistory("be brief", 5)
	h.Add("hello", "hi")
	gen := NewGenerator(gpt, h, nil)

	s := NewSessions(fakeCreator{session: &Session{ID: "s-9", Greeting: "Welcome"}}, gen, mind)
	if _, ok := s.Session(); ok {
		t.Fatal("session bound before StartSession")
	}

	sess, err := s.StartSession(context.Background(), "MEADOWS")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if sess.ID != "s-9" || sess.AIID != "MEADOWS" || sess.Greeting != "Welcome" {
		t.Errorf("session = %+v", sess)
	}
	if got := h.System().Content; got != "[[session: s-9]]" {
		t.Errorf("system = %q", got)
	}
	if h.Pairs() != 0 {
		t.Errorf("pairs = %d, want history cleared", h.Pairs())
	}

	reply, err := gen.Generate(context.Background(), "question", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != "from 1mind" {
		t.Errorf("reply = %q", reply)
	}
	if gpt.CallCount("Stream") != 0 {
		t.Error("previous provider still used")
	}
	if cur, ok := s.Session(); !ok || cur.ID != "s-9" {
		t.Errorf("Session() = %+v, %v", cur, ok)
	}
}

func TestSessionsFailureKeepsBinding(t *testing.T) {
	h := NewHistory("be brief", 5)
	gen := NewGenerator(NewStreamMock("x"), h, nil)
	s := NewSessions(fakeCreator{err: ErrNoSession}, gen, nil)

	if _, err := s.StartSession(context.Background(), "MEADOWS"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
	if got := h.System().Content; got != "be brief" {
		t.Errorf("system = %q", got)
	}
	if _, ok := s.Session(); ok {
		t.Error("failed start bound a session")
	}
}
