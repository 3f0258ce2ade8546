package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AssemblyAI streaming defaults.
const (
	DefaultAssemblyAIURL = "wss://streaming.assemblyai.com/v3/ws"
	DefaultSampleRate    = 16000
	handshakeTimeout     = 10 * time.Second
	terminateTimeout     = 2 * time.Second
)

// AssemblyAIConfig configures the streaming recognizer.
type AssemblyAIConfig struct {
	APIKey     string
	URL        string
	SampleRate int
	Logger     *slog.Logger
}

// AssemblyAI is a Recognizer backed by the AssemblyAI v3 streaming API.
// Audio is pushed with WriteAudio as 16-bit little-endian mono PCM.
type AssemblyAI struct {
	cfg    AssemblyAIConfig
	log    *slog.Logger
	events chan Event
	dialer websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	session uint64
	done    chan struct{}
	writeMu sync.Mutex
}

var (
	_ Recognizer = (*AssemblyAI)(nil)
	_ AudioSink  = (*AssemblyAI)(nil)
)

// NewAssemblyAI creates a recognizer.
func NewAssemblyAI(cfg AssemblyAIConfig) (*AssemblyAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.URL == "" {
		cfg.URL = DefaultAssemblyAIURL
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AssemblyAI{
		cfg:    cfg,
		log:    logger.With("component", "stt", "provider", "assemblyai"),
		events: make(chan Event, EventBuffer),
		dialer: websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}, nil
}

type aaiMessage struct {
	Type                 string  `json:"type"`
	ID                   string  `json:"id,omitempty"`
	Transcript           string  `json:"transcript,omitempty"`
	EndOfTurn            bool    `json:"end_of_turn,omitempty"`
	TurnIsFormatted      bool    `json:"turn_is_formatted,omitempty"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds,omitempty"`
	Error                string  `json:"error,omitempty"`
}

// Start connects and begins streaming.
func (a *AssemblyAI) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return ErrAlreadyStarted
	}

	u, err := url.Parse(a.cfg.URL)
	if err != nil {
		return fmt.Errorf("speech: bad url: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(a.cfg.SampleRate))
	q.Set("encoding", "pcm_s16le")
	q.Set("format_turns", "true")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", a.cfg.APIKey)

	conn, resp, err := a.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("speech: connect assemblyai: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("speech: connect assemblyai: %w", err)
	}

	a.session++
	a.conn = conn
	a.done = make(chan struct{})
	go a.readLoop(conn, a.session, a.done)

	emit(a.events, Event{Kind: KindStarted, Session: a.session})
	a.log.Debug("recognition started", "session", a.session)
	return nil
}

// Stop sends Terminate, closes the socket, and waits for the reader to
// exit. The Ended event for the session is queued before Stop returns.
func (a *AssemblyAI) Stop() error {
	a.mu.Lock()
	conn, done := a.conn, a.done
	a.conn, a.done = nil, nil
	a.mu.Unlock()

	if conn == nil {
		return nil
	}

	a.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(terminateTimeout))
	_ = conn.WriteJSON(map[string]string{"type": "Terminate"})
	a.writeMu.Unlock()

	err := conn.Close()
	<-done
	a.log.Debug("recognition stopped")
	return err
}

// WriteAudio sends one PCM frame. It returns ErrNotRunning when idle.
func (a *AssemblyAI) WriteAudio(pcm []byte) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotRunning
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return fmt.Errorf("speech: send audio: %w", err)
	}
	return nil
}

// Events returns the event stream.
func (a *AssemblyAI) Events() <-chan Event {
	return a.events
}

func (a *AssemblyAI) readLoop(conn *websocket.Conn, session uint64, done chan<- struct{}) {
	defer close(done)
	defer func() {
		a.mu.Lock()
		if a.conn == conn {
			a.conn = nil
			a.done = nil
			_ = conn.Close()
		}
		a.mu.Unlock()
		emit(a.events, Event{Kind: KindEnded, Session: session})
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !isClosedConn(err) {
				a.log.Warn("assemblyai read failed", "error", err)
				emit(a.events, Event{Kind: KindError, Session: session, Err: err})
			}
			return
		}

		var msg aaiMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			a.log.Warn("assemblyai bad message", "error", err)
			continue
		}

		switch msg.Type {
		case "Begin":
			a.log.Debug("assemblyai session began", "id", msg.ID)
		case "Turn":
			if msg.Transcript == "" {
				continue
			}
			// With format_turns the final transcript arrives as a second,
			// formatted end-of-turn message.
			final := msg.EndOfTurn && msg.TurnIsFormatted
			if msg.EndOfTurn && !msg.TurnIsFormatted {
				continue
			}
			if !emit(a.events, Event{Kind: KindResult, Session: session, Transcript: msg.Transcript, IsFinal: final}) {
				a.log.Warn("event buffer full, dropping result", "final", final)
			}
		case "Termination":
			a.log.Debug("assemblyai session terminated", "audio_seconds", msg.AudioDurationSeconds)
			return
		case "Error":
			emit(a.events, Event{Kind: KindError, Session: session, Err: fmt.Errorf("speech: assemblyai: %s", msg.Error)})
		}
	}
}

func isClosedConn(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, net.ErrClosed)
}
