package speech

import (
	"context"
	"sync"
	"time"
)

// Mock implements Recognizer for testing.
// Start and Stop can be customized via function fields; results are
// injected with Result and Fail.
type Mock struct {
	// StartFunc is called when Start is invoked.
	// If nil, Start succeeds.
	StartFunc func(ctx context.Context) error

	// StopFunc is called when Stop is invoked.
	// If nil, Stop succeeds.
	StopFunc func() error

	events chan Event

	// Tracking
	mu      sync.Mutex
	running bool
	session uint64
	audio   int
	calls   []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

var (
	_ Recognizer = (*Mock)(nil)
	_ AudioSink  = (*Mock)(nil)
)

// NewMock creates a new mock recognizer.
func NewMock() *Mock {
	return &Mock{events: make(chan Event, EventBuffer)}
}

// Start records the call and emits Started for a new session.
func (m *Mock) Start(ctx context.Context) error {
	m.recordCall("Start", "")
	if m.StartFunc != nil {
		if err := m.StartFunc(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyStarted
	}
	m.running = true
	m.session++
	emit(m.events, Event{Kind: KindStarted, Session: m.session})
	return nil
}

// Stop records the call and emits Ended for the current session.
func (m *Mock) Stop() error {
	m.recordCall("Stop", "")
	if m.StopFunc != nil {
		if err := m.StopFunc(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	emit(m.events, Event{Kind: KindEnded, Session: m.session})
	return nil
}

// WriteAudio counts pushed frames.
func (m *Mock) WriteAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNotRunning
	}
	m.audio++
	return nil
}

// Events returns the event stream.
func (m *Mock) Events() <-chan Event {
	return m.events
}

// Result emits a transcript for the current session. It reports false when
// the recognizer is not running.
func (m *Mock) Result(text string, final bool) bool {
	m.recordCall("Result", text)
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}
	return emit(m.events, Event{Kind: KindResult, Session: m.session, Transcript: text, IsFinal: final})
}

// Fail emits an error followed by Ended, as a dropped connection would.
func (m *Mock) Fail(err error) {
	m.recordCall("Fail", err.Error())
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	emit(m.events, Event{Kind: KindError, Session: m.session, Err: err})
	emit(m.events, Event{Kind: KindEnded, Session: m.session})
}

// Running reports whether a session is open.
func (m *Mock) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// AudioFrames returns how many frames WriteAudio accepted.
func (m *Mock) AudioFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}

func (m *Mock) recordCall(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method: method,
		Text:   text,
		Time:   time.Now(),
	})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of calls to a method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
