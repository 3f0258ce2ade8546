package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeServer struct {
	t        *testing.T
	auth     chan string
	query    chan string
	audio    chan []byte
	messages []string
	srv      *httptest.Server
}

func newFakeServer(t *testing.T, messages ...string) *fakeServer {
	t.Helper()
	f := &fakeServer{
		t:        t,
		auth:     make(chan string, 1),
		query:    make(chan string, 1),
		audio:    make(chan []byte, 16),
		messages: messages,
	}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.auth <- r.Header.Get("Authorization")
		f.query <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range f.messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if typ == websocket.BinaryMessage {
				f.audio <- data
				continue
			}
			if strings.Contains(string(data), "Terminate") {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Termination","audio_duration_seconds":1}`))
				return
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestNewAssemblyAIRequiresKey(t *testing.T) {
	if _, err := NewAssemblyAI(AssemblyAIConfig{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestAssemblyAITranscripts(t *testing.T) {
	f := newFakeServer(t,
		`{"type":"Begin","id":"abc","expires_at":0}`,
		`{"type":"Turn","transcript":"hello","end_of_turn":false}`,
		`{"type":"Turn","transcript":"hello there","end_of_turn":true,"turn_is_formatted":false}`,
		`{"type":"Turn","transcript":"Hello there.","end_of_turn":true,"turn_is_formatted":true}`,
	)

	r, err := NewAssemblyAI(AssemblyAIConfig{APIKey: "key", URL: f.url()})
	if err != nil {
		t.Fatalf("NewAssemblyAI: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := <-f.auth; got != "key" {
		t.Errorf("Authorization = %q, want key", got)
	}
	if q := <-f.query; !strings.Contains(q, "sample_rate=16000") || !strings.Contains(q, "encoding=pcm_s16le") {
		t.Errorf("query = %q", q)
	}

	started := nextEvent(t, r.Events())
	if started.Kind != KindStarted || started.Session != 1 {
		t.Fatalf("first event = %+v, want started session 1", started)
	}

	interim := nextEvent(t, r.Events())
	if interim.Kind != KindResult || interim.IsFinal || interim.Transcript != "hello" {
		t.Errorf("interim = %+v", interim)
	}
	final := nextEvent(t, r.Events())
	if final.Kind != KindResult || !final.IsFinal || final.Transcript != "Hello there." {
		t.Errorf("final = %+v", final)
	}

	if err := r.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start err = %v, want ErrAlreadyStarted", err)
	}

	if err := r.WriteAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	select {
	case got := <-f.audio:
		if len(got) != 4 {
			t.Errorf("audio frame len = %d, want 4", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received audio")
	}

	_ = r.Stop()
	ended := nextEvent(t, r.Events())
	if ended.Kind != KindEnded || ended.Session != 1 {
		t.Errorf("after Stop = %+v, want ended session 1", ended)
	}

	if err := r.WriteAudio([]byte{0, 0}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("WriteAudio after Stop err = %v, want ErrNotRunning", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestAssemblyAIServerError(t *testing.T) {
	f := newFakeServer(t, `{"type":"Error","error":"bad audio"}`)
	r, _ := NewAssemblyAI(AssemblyAIConfig{APIKey: "key", URL: f.url()})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-f.auth
	<-f.query

	nextEvent(t, r.Events())
	ev := nextEvent(t, r.Events())
	if ev.Kind != KindError || ev.Err == nil || !strings.Contains(ev.Err.Error(), "bad audio") {
		t.Errorf("event = %+v, want error with message", ev)
	}
	_ = r.Stop()
}

func TestAssemblyAIRestartUsesNewSession(t *testing.T) {
	f := newFakeServer(t)
	r, _ := NewAssemblyAI(AssemblyAIConfig{APIKey: "key", URL: f.url()})

	for want := uint64(1); want <= 2; want++ {
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start %d: %v", want, err)
		}
		<-f.auth
		<-f.query
		if ev := nextEvent(t, r.Events()); ev.Kind != KindStarted || ev.Session != want {
			t.Fatalf("started = %+v, want session %d", ev, want)
		}
		_ = r.Stop()
		if ev := nextEvent(t, r.Events()); ev.Kind != KindEnded || ev.Session != want {
			t.Fatalf("ended = %+v, want session %d", ev, want)
		}
	}
}

func TestMockSessions(t *testing.T) {
	m := NewMock()
	if m.Result("ignored", true) {
		t.Error("Result on idle mock should report false")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Result("hi", true)
	m.Fail(errors.New("network"))

	kinds := []Kind{KindStarted, KindResult, KindError, KindEnded}
	for _, want := range kinds {
		if ev := nextEvent(t, m.Events()); ev.Kind != want {
			t.Errorf("event kind = %v, want %v", ev.Kind, want)
		}
	}
	if m.Running() {
		t.Error("mock still running after Fail")
	}
	if m.CallCount("Start") != 1 {
		t.Errorf("Start calls = %d, want 1", m.CallCount("Start"))
	}
}
