package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-orb/pkg/speech"
)

// retryDelay is the wait before retrying a recognizer that failed to start.
const retryDelay = time.Second

// Machine is the recognition/playback state machine.
//
// All transitions are serialized under one mutex, including the recognizer
// Start and Stop calls, so a start can never interleave with the beginning
// of playback.
type Machine struct {
	rec  speech.Recognizer
	gate Gate
	cfg  Config
	log  *slog.Logger

	// Callbacks
	OnFinal   func(text string)
	OnInterim func(text string)
	OnState   func(Snapshot)

	mu          sync.Mutex
	base        context.Context
	state       State
	enabled     bool
	processing  bool
	recognizing bool
	session     uint64
	lastStop    time.Time
	restart     *time.Timer
	playing     atomic.Bool
}

// New creates a Machine in the Idle state. gate may be nil when audio needs
// no unlocking.
func New(rec speech.Recognizer, gate Gate, opts ...Option) (*Machine, error) {
	if rec == nil {
		return nil, errors.New("conversation: recognizer is required")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Machine{
		rec:  rec,
		gate: gate,
		cfg:  cfg,
		log:  cfg.Logger.With("component", "conversation"),
		base: context.Background(),
	}, nil
}

// Enable turns listening on once the audio gate is open. While a turn is in
// progress the request is recorded and listening resumes when it ends.
func (m *Machine) Enable(ctx context.Context) error {
	if m.gate != nil {
		if err := m.gate.Ready(ctx); err != nil {
			return err
		}
	}

	defer m.notify()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled {
		return nil
	}
	m.enabled = true
	m.log.Info("listening enabled")
	if m.processing {
		return nil
	}
	m.state = StateListening
	m.indicateListening(true)
	m.startLocked()
	return nil
}

// Disable turns listening off. Any in-flight turn continues but will not
// resume listening.
func (m *Machine) Disable() {
	defer m.notify()
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.enabled = false
	m.cancelRestartLocked()
	m.stopLocked()
	m.indicateListening(false)
	if !m.processing {
		m.state = StateIdle
	}
	m.log.Info("listening disabled")
}

// BeginTurn acquires the processing flag and pauses recognition. It returns
// false when a turn is already in progress.
func (m *Machine) BeginTurn() bool {
	defer m.notify()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processing {
		return false
	}
	m.processing = true
	m.cancelRestartLocked()
	m.stopLocked()
	m.indicateListening(false)
	m.state = StateProcessing
	return true
}

// BeginSpeaking marks reply audio as playing.
func (m *Machine) BeginSpeaking() error {
	defer m.notify()
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.processing {
		return ErrNotProcessing
	}
	m.stopLocked()
	m.playing.Store(true)
	m.state = StateSpeaking
	if m.cfg.Indicator != nil {
		m.cfg.Indicator.SetSpeaking(true)
	}
	return nil
}

// EndPlayback marks reply audio as finished. Recognition stays paused until
// EndTurn.
func (m *Machine) EndPlayback() {
	defer m.notify()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endPlaybackLocked()
}

func (m *Machine) endPlaybackLocked() {
	if !m.playing.Load() {
		return
	}
	m.playing.Store(false)
	if m.cfg.Indicator != nil {
		m.cfg.Indicator.SetSpeaking(false)
	}
	if m.processing {
		m.state = StateProcessing
	}
}

// EndTurn releases the processing flag. If listening is enabled,
// recognition restarts after the settle delay; otherwise the machine goes
// Idle.
func (m *Machine) EndTurn() {
	defer m.notify()
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.processing {
		return
	}
	m.endPlaybackLocked()
	m.processing = false
	if !m.enabled {
		m.state = StateIdle
		return
	}
	m.state = StateListening
	m.indicateListening(true)
	m.scheduleLocked(m.cfg.SettleDelay)
}

// Run consumes recognizer events until ctx ends, then stops recognition.
func (m *Machine) Run(ctx context.Context) error {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()

	events := m.rec.Events()
	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case ev := <-events:
			m.handle(ev)
		}
	}
}

func (m *Machine) handle(ev speech.Event) {
	switch ev.Kind {
	case speech.KindStarted:
		m.mu.Lock()
		m.session = ev.Session
		m.mu.Unlock()
		m.log.Debug("recognizer started", "session", ev.Session)

	case speech.KindEnded:
		// Our own Stop clears recognizing first, so an end seen while
		// recognizing is the recognizer giving up on its own.
		m.mu.Lock()
		if m.recognizing {
			m.log.Debug("recognizer ended, restarting", "session", ev.Session)
			m.scheduleLocked(m.cfg.SettleDelay)
		}
		m.mu.Unlock()

	case speech.KindError:
		m.log.Warn("recognizer error", "session", ev.Session, "error", ev.Err)

	case speech.KindResult:
		text := strings.TrimSpace(ev.Transcript)
		if text == "" {
			return
		}
		m.mu.Lock()
		accept := m.enabled && m.recognizing && !m.processing
		m.mu.Unlock()
		if !accept {
			return
		}
		if !ev.IsFinal {
			if m.OnInterim != nil {
				m.OnInterim(text)
			}
			return
		}
		m.log.Info("final transcript", "text", text)
		if m.OnFinal != nil {
			go m.OnFinal(text)
		}
	}
}

func (m *Machine) shutdown() {
	defer m.notify()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelRestartLocked()
	m.stopLocked()
}

// startLocked asks the recognizer to run if the state allows it. Starting
// within the settle delay of the last stop is deferred. A recognizer that
// reports it is already running counts as started.
func (m *Machine) startLocked() {
	if !m.enabled || m.processing || m.playing.Load() {
		return
	}
	if !m.lastStop.IsZero() {
		if wait := m.cfg.SettleDelay - time.Since(m.lastStop); wait > 0 {
			m.scheduleLocked(wait)
			return
		}
	}
	m.cancelRestartLocked()

	ctx, cancel := context.WithTimeout(m.base, m.cfg.StartTimeout)
	defer cancel()

	err := m.rec.Start(ctx)
	switch {
	case err == nil:
	case errors.Is(err, speech.ErrAlreadyStarted):
		m.log.Debug("recognizer already running")
	default:
		m.log.Warn("recognition start failed", "error", err)
		m.scheduleLocked(retryDelay)
		return
	}

	m.recognizing = true
	if m.cfg.MicMonitor != nil {
		m.cfg.MicMonitor.Start(m.base)
	}
}

// stopLocked stops the recognizer and then the mic monitor, which zeroes
// the mic level.
func (m *Machine) stopLocked() {
	if !m.recognizing {
		return
	}
	m.recognizing = false
	if err := m.rec.Stop(); err != nil {
		m.log.Debug("recognition stop failed", "error", err)
	}
	m.lastStop = time.Now()
	if m.cfg.MicMonitor != nil {
		m.cfg.MicMonitor.Stop()
	}
}

func (m *Machine) scheduleLocked(d time.Duration) {
	m.cancelRestartLocked()
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		defer m.notify()
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.restart != t {
			return
		}
		m.restart = nil
		m.startLocked()
	})
	m.restart = t
}

func (m *Machine) cancelRestartLocked() {
	if m.restart != nil {
		m.restart.Stop()
		m.restart = nil
	}
}

func (m *Machine) indicateListening(on bool) {
	if m.cfg.Indicator != nil {
		m.cfg.Indicator.SetListening(on)
	}
}

func (m *Machine) notify() {
	if m.OnState != nil {
		m.OnState(m.Snapshot())
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:       m.state,
		Enabled:     m.enabled,
		Processing:  m.processing,
		Playing:     m.playing.Load(),
		Recognizing: m.recognizing,
	}
}

// State returns the turn state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Enabled reports whether listening is enabled.
func (m *Machine) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Playing reports whether reply audio is playing. It does not take the
// machine lock.
func (m *Machine) Playing() bool {
	return m.playing.Load()
}
