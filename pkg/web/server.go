// Package web provides the orb dashboard: state, chat, frames, controls
// and browser microphone signaling.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-orb/pkg/audio"
	"github.com/teslashibe/go-orb/pkg/chat"
	"github.com/teslashibe/go-orb/pkg/conversation"
	"github.com/teslashibe/go-orb/pkg/hub"
	"github.com/teslashibe/go-orb/pkg/inference"
	"github.com/teslashibe/go-orb/pkg/orb"
	"github.com/teslashibe/go-orb/pkg/rtcmic"
	"github.com/teslashibe/go-orb/pkg/tts"
)

//go:embed static/index.html
var indexHTML []byte

// DefaultFrameRate is the frame stream rate; the orb itself renders faster.
const DefaultFrameRate = 15

// AudioEngine is the gesture-gated audio engine.
type AudioEngine interface {
	Gesture(ctx context.Context) error
	Suspend() error
	Resume(ctx context.Context) error
	State() audio.State
}

// Listener toggles recognition.
type Listener interface {
	Enable(ctx context.Context) error
	Disable()
	Snapshot() conversation.Snapshot
}

// Turns accepts typed input and controls the reply in flight.
type Turns interface {
	Submit(ctx context.Context, text string) error
	Greet(ctx context.Context, text string) error
	Interrupt()
}

// Orb is the orb coordinator.
type Orb interface {
	Swap(v orb.Variant) error
	Reconfigure(p orb.Partial) error
	State() orb.State
}

// ChatLog is the retained transcript.
type ChatLog interface {
	Messages() []chat.Message
	Clear()
}

// Sessions opens 1mind sessions.
type Sessions interface {
	StartSession(ctx context.Context, aiID string) (inference.Session, error)
	Session() (inference.Session, bool)
}

// Mic is the WebRTC browser microphone.
type Mic interface {
	Answer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	AddCandidate(c webrtc.ICECandidateInit) error
	OnCandidate(fn rtcmic.Signal)
	Connected() bool
}

// Deps are the collaborators behind the routes. Nil members disable their
// routes with 503.
type Deps struct {
	Audio    AudioEngine
	Listener Listener
	Turns    Turns
	Orb      Orb
	Surface  *orb.Surface
	Chat     ChatLog
	Voice    tts.VoiceSetter
	Sessions Sessions
	Mic      Mic
}

// State is what the dashboard shows.
type State struct {
	Audio        string                `json:"audio"`
	Conversation conversation.Snapshot `json:"conversation"`
	Orb          *orb.State            `json:"orb,omitempty"`
	Voice        string                `json:"voice,omitempty"`
	Session      *inference.Session    `json:"session,omitempty"`
	MicConnected bool                  `json:"micConnected"`
}

// Config configures the server.
type Config struct {
	Addr      string
	FrameRate int
	Logger    *slog.Logger
}

// Server is the web dashboard server
type Server struct {
	app  *fiber.App
	cfg  Config
	log  *slog.Logger
	deps Deps

	// Hubs for websocket broadcast
	stateHub  *hub.Hub
	chatHub   *hub.Hub
	framesHub *hub.Hub

	mu   sync.RWMutex
	base context.Context
}

// NewServer creates the dashboard. Call Bind before Run.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	s := &Server{
		cfg:       cfg,
		log:       cfg.Logger.With("component", "web"),
		stateHub:  hub.New("state", cfg.Logger),
		chatHub:   hub.New("chat", cfg.Logger),
		framesHub: hub.New("frames", cfg.Logger),
		base:      context.Background(),
	}
	s.stateHub.SetGreeting(s.stateGreeting)
	s.chatHub.SetGreeting(s.chatGreeting)
	s.chatHub.SetReceiver(s.receiveChat)

	app := fiber.New(fiber.Config{
		AppName:               "Orb Dashboard",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html")
		return c.Send(indexHTML)
	})

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/state", s.handleState)
	api.Get("/chat", s.handleChat)
	api.Delete("/chat", s.handleClearChat)
	api.Post("/gesture", s.handleGesture)
	api.Post("/audio/:action", s.handleAudio)
	api.Post("/listen", s.handleListen)
	api.Post("/say", s.handleSay)
	api.Post("/interrupt", s.handleInterrupt)
	api.Get("/orb/variants", s.handleVariants)
	api.Post("/orb/variant", s.handleVariant)
	api.Post("/orb/config", s.handleOrbConfig)
	api.Get("/voices", s.handleVoices)
	api.Post("/voice", s.handleVoice)
	api.Get("/assistants", s.handleAssistants)
	api.Post("/session", s.handleSession)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(func(c *websocket.Conn) { hub.Serve(s.stateHub, c) }))
	app.Get("/ws/chat", websocket.New(func(c *websocket.Conn) { hub.Serve(s.chatHub, c) }))
	app.Get("/ws/frames", websocket.New(func(c *websocket.Conn) { hub.Serve(s.framesHub, c) }))
	app.Get("/ws/rtc", s.rtcHandler())

	s.app = app
	return s
}

// Bind sets the collaborators.
func (s *Server) Bind(d Deps) {
	s.mu.Lock()
	s.deps = d
	s.mu.Unlock()
}

func (s *Server) collaborators() Deps {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deps
}

// context returns the long-lived context for work that outlives a request.
func (s *Server) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// ChatPublisher returns the publisher for chat.Transcript.
func (s *Server) ChatPublisher() chat.Publisher {
	return s.chatHub
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	go s.stateHub.Run(ctx)
	go s.chatHub.Run(ctx)
	go s.framesHub.Run(ctx)
	go s.streamFrames(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.log.Warn("dashboard shutdown", "error", err)
		}
		return nil
	}
}

// State assembles the current dashboard state.
func (s *Server) State() State {
	d := s.collaborators()
	var st State
	if d.Audio != nil {
		st.Audio = d.Audio.State().String()
	}
	if d.Listener != nil {
		st.Conversation = d.Listener.Snapshot()
	}
	if d.Orb != nil {
		o := d.Orb.State()
		st.Orb = &o
	}
	if d.Voice != nil {
		st.Voice = d.Voice.Voice()
	}
	if d.Sessions != nil {
		if sess, ok := d.Sessions.Session(); ok {
			st.Session = &sess
		}
	}
	if d.Mic != nil {
		st.MicConnected = d.Mic.Connected()
	}
	return st
}

// PublishState broadcasts the current state to /ws/state.
func (s *Server) PublishState() {
	if err := s.stateHub.BroadcastJSON(s.State()); err != nil {
		s.log.Warn("publish state", "error", err)
	}
}

// PublishError broadcasts a user-visible error to /ws/state.
func (s *Server) PublishError(err error) {
	_ = s.stateHub.BroadcastJSON(fiber.Map{"error": err.Error()})
}

func (s *Server) stateGreeting() (hub.Message, bool) {
	return jsonMessage(s.State())
}

func (s *Server) chatGreeting() (hub.Message, bool) {
	d := s.collaborators()
	if d.Chat == nil {
		return hub.Message{}, false
	}
	return jsonMessage(fiber.Map{"type": "history", "messages": d.Chat.Messages()})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.log.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
