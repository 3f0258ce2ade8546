package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-orb/pkg/audio"
	"github.com/teslashibe/go-orb/pkg/chat"
	"github.com/teslashibe/go-orb/pkg/conversation"
	"github.com/teslashibe/go-orb/pkg/inference"
	"github.com/teslashibe/go-orb/pkg/orb"
	"github.com/teslashibe/go-orb/pkg/tts"
	"github.com/teslashibe/go-orb/pkg/turn"
)

type fakeAudio struct {
	mu    sync.Mutex
	state audio.State
}

func (f *fakeAudio) Gesture(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = audio.StateReady
	return nil
}

func (f *fakeAudio) Suspend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != audio.StateReady {
		return errors.New("not ready")
	}
	f.state = audio.StateSuspended
	return nil
}

func (f *fakeAudio) Resume(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != audio.StateSuspended {
		return audio.ErrNotSuspended
	}
	f.state = audio.StateReady
	return nil
}

func (f *fakeAudio) State() audio.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

type fakeListener struct {
	mu      sync.Mutex
	enabled bool
}

func (f *fakeListener) Enable(ctx context.Context) error {
	f.mu.Lock()
	f.enabled = true
	f.mu.Unlock()
	return nil
}

func (f *fakeListener) Disable() {
	f.mu.Lock()
	f.enabled = false
	f.mu.Unlock()
}

func (f *fakeListener) Snapshot() conversation.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := conversation.Snapshot{Enabled: f.enabled, State: conversation.StateIdle}
	if f.enabled {
		s.State = conversation.StateListening
	}
	return s
}

type fakeTurns struct {
	SubmitFunc func(text string) error

	mu          sync.Mutex
	submitted   []string
	interrupted int
	greeted     chan string
}

func (f *fakeTurns) Submit(ctx context.Context, text string) error {
	if f.SubmitFunc != nil {
		if err := f.SubmitFunc(text); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.submitted = append(f.submitted, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeTurns) Greet(ctx context.Context, text string) error {
	f.greeted <- text
	return nil
}

func (f *fakeTurns) Interrupt() {
	f.mu.Lock()
	f.interrupted++
	f.mu.Unlock()
}

type fakeOrb struct {
	mu    sync.Mutex
	state orb.State
}

func (f *fakeOrb) Swap(v orb.Variant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Variant = v
	return nil
}

func (f *fakeOrb) Reconfigure(p orb.Partial) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.state.Config.Merge(p)
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.state.Config = cfg
	return nil
}

func (f *fakeOrb) State() orb.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

type fakeChat struct {
	messages []chat.Message
	cleared  bool
}

func (f *fakeChat) Messages() []chat.Message { return f.messages }
func (f *fakeChat) Clear()                   { f.cleared = true; f.messages = nil }

type fakeSessions struct {
	err     error
	current *inference.Session
}

func (f *fakeSessions) StartSession(ctx context.Context, aiID string) (inference.Session, error) {
	if f.err != nil {
		return inference.Session{}, f.err
	}
	f.current = &inference.Session{ID: "s-1", AIID: aiID, Greeting: "Hello there"}
	return *f.current, nil
}

func (f *fakeSessions) Session() (inference.Session, bool) {
	if f.current == nil {
		return inference.Session{}, false
	}
	return *f.current, true
}

type fixture struct {
	server   *Server
	audio    *fakeAudio
	listener *fakeListener
	turns    *fakeTurns
	orb      *fakeOrb
	chat     *fakeChat
	voice    *tts.Mock
	sessions *fakeSessions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := orb.DefaultConfig(orb.Fluid)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		server:   NewServer(Config{Addr: ":0"}),
		audio:    &fakeAudio{state: audio.StateAwaitingGesture},
		listener: &fakeListener{},
		turns:    &fakeTurns{greeted: make(chan string, 1)},
		orb:      &fakeOrb{state: orb.State{Variant: orb.Fluid, Config: cfg}},
		chat:     &fakeChat{messages: []chat.Message{{ID: "m1", Text: "hi", User: true}}},
		voice:    tts.NewMock(),
		sessions: &fakeSessions{},
	}
	f.server.Bind(Deps{
		Audio:    f.audio,
		Listener: f.listener,
		Turns:    f.turns,
		Orb:      f.orb,
		Chat:     f.chat,
		Voice:    f.voice,
		Sessions: f.sessions,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.server.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return resp.StatusCode, out
}

func TestIndexServed(t *testing.T) {
	f := newFixture(t)
	resp, err := f.server.app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/ws/frames") {
		t.Errorf("index: status %d", resp.StatusCode)
	}
}

func TestGestureThenListen(t *testing.T) {
	f := newFixture(t)

	if code, _ := f.do(t, http.MethodPost, "/api/listen", `{"enabled":true}`); code != http.StatusConflict {
		t.Errorf("listen before gesture = %d, want 409", code)
	}

	code, body := f.do(t, http.MethodPost, "/api/gesture", "")
	if code != http.StatusOK || body["audio"] != "ready" {
		t.Fatalf("gesture = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/listen", `{"enabled":true}`)
	if code != http.StatusOK || body["enabled"] != true || body["state"] != "listening" {
		t.Errorf("listen = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/listen", `{"enabled":false}`)
	if code != http.StatusOK || body["enabled"] != false {
		t.Errorf("stop listening = %d %v", code, body)
	}
}

func TestAudioSuspendResume(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/gesture", "")

	if code, body := f.do(t, http.MethodPost, "/api/audio/suspend", ""); code != http.StatusOK || body["audio"] != "suspended" {
		t.Errorf("suspend = %d %v", code, body)
	}
	if code, body := f.do(t, http.MethodPost, "/api/audio/resume", ""); code != http.StatusOK || body["audio"] != "ready" {
		t.Errorf("resume = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/audio/resume", ""); code != http.StatusConflict {
		t.Errorf("resume while ready = %d, want 409", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/audio/reboot", ""); code != http.StatusNotFound {
		t.Errorf("unknown action = %d, want 404", code)
	}
}

func TestSay(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"accepted", nil, `{"text":"hello"}`, http.StatusAccepted},
		{"busy", turn.ErrBusy, `{"text":"hello"}`, http.StatusConflict},
		{"empty", turn.ErrEmptyInput, `{"text":"  "}`, http.StatusBadRequest},
		{"bad body", nil, `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.turns.SubmitFunc = func(string) error { return tt.err }

			code, body := f.do(t, http.MethodPost, "/api/say", tt.body)
			if code != tt.status {
				t.Errorf("status = %d, want %d (%v)", code, tt.status, body)
			}
			if code >= 400 && body["error"] == nil {
				t.Error("error response without message")
			}
		})
	}
}

func TestInterrupt(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, http.MethodPost, "/api/interrupt", ""); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if f.turns.interrupted != 1 {
		t.Errorf("interrupted = %d", f.turns.interrupted)
	}
}

func TestOrbRoutes(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orb/variants", nil)
	resp, err := f.server.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(names) != len(orb.Variants()) {
		t.Errorf("variants = %v", names)
	}

	code, body := f.do(t, http.MethodPost, "/api/orb/variant", `{"variant":"wave"}`)
	if code != http.StatusOK || body["variant"] != string(orb.Wave) {
		t.Errorf("swap = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/orb/variant", `{"variant":"cube"}`); code != http.StatusBadRequest {
		t.Errorf("unknown variant = %d, want 400", code)
	}

	if code, _ := f.do(t, http.MethodPost, "/api/orb/config", `{"radius":0}`); code != http.StatusBadRequest {
		t.Errorf("invalid config = %d, want 400", code)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/orb/config", `{"radius":150}`); code != http.StatusOK {
		t.Errorf("valid config = %d", code)
	}
	if f.orb.State().Config.Radius != 150 {
		t.Errorf("radius = %v", f.orb.State().Config.Radius)
	}
}

func TestVoiceRoutes(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/voices", "")
	if code != http.StatusOK || body["openai"] == nil || body["elevenlabs"] == nil {
		t.Fatalf("voices = %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/api/voice", `{"voice":"shimmer"}`)
	if code != http.StatusOK || body["voice"] != "shimmer" {
		t.Errorf("set voice = %d %v", code, body)
	}
	if code, _ := f.do(t, http.MethodPost, "/api/voice", `{"voice":"robot"}`); code != http.StatusBadRequest {
		t.Errorf("unknown voice = %d, want 400", code)
	}
	if f.voice.Voice() != "shimmer" {
		t.Errorf("voice = %q", f.voice.Voice())
	}
}

func TestSessionGreets(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/session", `{"aiId":"MEADOWS"}`)
	if code != http.StatusOK || body["sessionId"] != "s-1" {
		t.Fatalf("session = %d %v", code, body)
	}
	select {
	case got := <-f.turns.greeted:
		if got != "Hello there" {
			t.Errorf("greeting = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("greeting not spoken")
	}

	st := f.server.State()
	if st.Session == nil || st.Session.ID != "s-1" {
		t.Errorf("state session = %+v", st.Session)
	}
}

func TestSessionFailures(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, http.MethodPost, "/api/session", `{}`); code != http.StatusBadRequest {
		t.Errorf("missing aiId = %d, want 400", code)
	}

	f.sessions.err = inference.WrapError("1mind", inference.ErrNoSession)
	code, body := f.do(t, http.MethodPost, "/api/session", `{"aiId":"MEADOWS"}`)
	if code != http.StatusBadGateway || body["error"] == nil {
		t.Errorf("failed session = %d %v", code, body)
	}
}

func TestChatRoutes(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	resp, err := f.server.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var msgs []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(msgs) != 1 || msgs[0].Text != "hi" {
		t.Errorf("messages = %+v", msgs)
	}

	if code, _ := f.do(t, http.MethodDelete, "/api/chat", ""); code != http.StatusNoContent {
		t.Errorf("clear = %d", code)
	}
	if !f.chat.cleared {
		t.Error("transcript not cleared")
	}
}

func TestUnboundRoutes(t *testing.T) {
	s := NewServer(Config{})
	f := &fixture{server: s}
	for _, path := range []string{"/api/gesture", "/api/say", "/api/interrupt", "/api/voice", "/api/session"} {
		if code, _ := f.do(t, http.MethodPost, path, `{}`); code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d, want 503", path, code)
		}
	}
	if code, body := f.do(t, http.MethodGet, "/api/health", ""); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	if code, _ := f.do(t, http.MethodGet, "/ws/state", ""); code != http.StatusUpgradeRequired {
		t.Errorf("plain GET /ws/state = %d, want 426", code)
	}
}

func TestStateGreeting(t *testing.T) {
	f := newFixture(t)
	msg, ok := f.server.stateGreeting()
	if !ok {
		t.Fatal("no greeting")
	}
	var st State
	if err := json.Unmarshal(msg.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Audio != "awaiting-gesture" || st.Orb == nil || st.Orb.Variant != orb.Fluid {
		t.Errorf("state = %+v", st)
	}

	msg, ok = f.server.chatGreeting()
	if !ok || !strings.Contains(string(msg.Data), `"history"`) {
		t.Errorf("chat greeting = %s, %v", msg.Data, ok)
	}
}

func TestChatSocketInput(t *testing.T) {
	f := newFixture(t)
	f.server.receiveChat([]byte(`{"type":"say","text":"typed hello"}`))
	f.server.receiveChat([]byte(`{"type":"other","text":"ignored"}`))
	f.server.receiveChat([]byte(`not json`))

	f.turns.mu.Lock()
	defer f.turns.mu.Unlock()
	if len(f.turns.submitted) != 1 || f.turns.submitted[0] != "typed hello" {
		t.Errorf("submitted = %v", f.turns.submitted)
	}
}
