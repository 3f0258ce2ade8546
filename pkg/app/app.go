// Package app assembles the orb: audio devices, the animation, speech
// recognition, reply generation, synthesis and the web dashboard.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-orb/internal/config"
	"github.com/teslashibe/go-orb/pkg/audio"
	"github.com/teslashibe/go-orb/pkg/audioio"
	"github.com/teslashibe/go-orb/pkg/chat"
	"github.com/teslashibe/go-orb/pkg/conversation"
	"github.com/teslashibe/go-orb/pkg/inference"
	"github.com/teslashibe/go-orb/pkg/level"
	"github.com/teslashibe/go-orb/pkg/orb"
	"github.com/teslashibe/go-orb/pkg/rtcmic"
	"github.com/teslashibe/go-orb/pkg/speech"
	"github.com/teslashibe/go-orb/pkg/tts"
	"github.com/teslashibe/go-orb/pkg/turn"
	"github.com/teslashibe/go-orb/pkg/web"
)

// App is the orb application orchestrator.
// It owns every component and their lifecycle.
type App struct {
	config config.Config
	log    *slog.Logger

	// Audio
	engine   *audio.Engine
	player   *audio.Player
	source   audioio.Source
	mic      *rtcmic.Mic
	playback *level.Analyser
	capture  *level.Analyser
	ampMon   *level.Monitor
	micMon   *level.Monitor

	// Orb
	surface *orb.Surface
	orb     *orb.Coordinator

	// Conversation
	recognizer speech.Recognizer
	machine    *conversation.Machine
	generator  *inference.Generator
	sessions   *inference.Sessions
	voice      *tts.Chain
	pipeline   *turn.Pipeline
	transcript *chat.Transcript

	// Web dashboard
	web *web.Server

	wg sync.WaitGroup
}

// New validates cfg and creates an uninitialized App.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, log: logger}, nil
}

// Init builds every component. Call it after New and before Run.
func (a *App) Init() error {
	a.web = web.NewServer(web.Config{
		Addr:      a.config.ListenAddr,
		FrameRate: a.config.StreamRate,
		Logger:    a.log,
	})

	if err := a.initAudio(); err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	if err := a.initOrb(); err != nil {
		return fmt.Errorf("orb init: %w", err)
	}
	if err := a.initSpeech(); err != nil {
		return fmt.Errorf("speech init: %w", err)
	}
	if err := a.initGenerator(); err != nil {
		return fmt.Errorf("inference init: %w", err)
	}
	if err := a.initTTS(); err != nil {
		return fmt.Errorf("tts init: %w", err)
	}
	if err := a.initConversation(); err != nil {
		return fmt.Errorf("conversation init: %w", err)
	}

	deps := web.Deps{
		Audio:    a.engine,
		Listener: a.machine,
		Turns:    a.pipeline,
		Orb:      a.orb,
		Surface:  a.surface,
		Chat:     a.transcript,
		Voice:    a.voice,
	}
	if a.sessions != nil {
		deps.Sessions = a.sessions
	}
	if a.mic != nil {
		deps.Mic = a.mic
	}
	a.web.Bind(deps)
	return nil
}

// Run starts the background loops and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.source.Start(ctx); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	a.goRun(func() { level.Pump(ctx, a.source, a.capture, a.forwardAudio) })
	a.goRun(func() {
		if err := a.machine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("conversation stopped", "error", err)
		}
	})
	if a.config.OneMindAIID != "" && a.sessions != nil {
		a.goRun(func() { a.openSession(ctx, a.config.OneMindAIID) })
	}

	a.log.Info("orb ready", "dashboard", a.config.ListenAddr, "variant", a.orb.State().Variant)
	return a.web.Run(ctx)
}

// Shutdown stops every component. It waits for the Run loops to exit.
func (a *App) Shutdown() {
	if a.pipeline != nil {
		a.pipeline.Interrupt()
	}
	if a.orb != nil {
		a.orb.Stop()
	}
	if a.source != nil {
		_ = a.source.Close()
	}
	a.wg.Wait()

	if a.ampMon != nil {
		a.ampMon.Stop()
	}
	if a.engine != nil {
		_ = a.engine.Close()
	}
	if a.voice != nil {
		_ = a.voice.Close()
	}
	a.log.Info("orb stopped")
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// initAudio opens the output sink behind the gesture gate and the capture
// source with its analysers.
func (a *App) initAudio() error {
	sinkCfg := audioio.DefaultSinkConfig()
	sinkCfg.Backend = audioio.Backend(a.config.AudioOutput)
	sink, err := audioio.NewSink(sinkCfg, a.log)
	if err != nil {
		return err
	}
	a.engine = audio.NewEngine(sink,
		audio.WithEngineLogger(a.log),
		audio.WithStateHook(func(audio.State) { a.web.PublishState() }),
	)

	srcCfg := audioio.DefaultConfig()
	srcCfg.Backend = audioio.Backend(a.config.AudioInput)
	if srcCfg.Backend == audioio.BackendWebRTC {
		a.mic, err = rtcmic.New(srcCfg,
			rtcmic.WithICEServers(a.config.ICEServers...),
			rtcmic.WithLogger(a.log),
		)
		if err != nil {
			return err
		}
		a.source = a.mic
	} else {
		a.source, err = audioio.NewSource(srcCfg, a.log)
		if err != nil {
			return err
		}
	}

	a.playback = level.NewAnalyser(level.PlaybackFFTSize)
	a.capture = level.NewAnalyser(level.MicFFTSize)

	a.player = audio.NewPlayer(a.engine, a.playback, audio.PlayerConfig{
		Retries:    a.config.PlaybackRetries,
		RetryDelay: a.config.PlaybackRetryDelay,
		Logger:     a.log,
	})
	return nil
}

// initOrb creates the surface and starts the configured variant. The
// level monitors feed the running orb.
func (a *App) initOrb() error {
	size := a.config.OrbSize
	surface, err := orb.NewSurface(size, size, nil)
	if err != nil {
		return err
	}
	a.surface = surface
	a.orb = orb.NewCoordinator(surface,
		orb.WithOrbOptions(orb.WithFrameRate(a.config.FrameRate), orb.WithLogger(a.log)),
		orb.WithCoordinatorLogger(a.log),
	)

	variant, err := orb.ParseVariant(a.config.Variant)
	if err != nil {
		return err
	}
	if err := a.orb.Swap(variant); err != nil {
		return err
	}

	a.ampMon = level.NewMonitor("playback", a.playback, a.engine, level.Amplitude, a.orb.UpdateAmplitude,
		level.WithLogger(a.log))
	a.micMon = level.NewMonitor("mic", a.capture, a.engine, level.Volume, a.orb.UpdateMicVolume,
		level.WithLogger(a.log))

	a.player.OnPlaybackStart = func() { a.ampMon.Start(context.Background()) }
	a.player.OnPlaybackEnd = a.ampMon.Stop
	return nil
}

func (a *App) initSpeech() error {
	switch a.config.STTBackend {
	case "assemblyai":
		rec, err := speech.NewAssemblyAI(speech.AssemblyAIConfig{
			APIKey:     a.config.AssemblyAIKey,
			SampleRate: audioio.CaptureSampleRate,
			Logger:     a.log,
		})
		if err != nil {
			return err
		}
		a.recognizer = rec
	case "mock":
		a.recognizer = speech.NewMock()
	default:
		return fmt.Errorf("unknown STT backend %q", a.config.STTBackend)
	}
	return nil
}

// forwardAudio pushes captured audio to recognizers that take pushed PCM.
func (a *App) forwardAudio(chunk audioio.Chunk) {
	sink, ok := a.recognizer.(speech.AudioSink)
	if !ok {
		return
	}
	mono := audioio.Resample(chunk.Mono(), chunk.SampleRate, audioio.CaptureSampleRate)
	if err := sink.WriteAudio(audioio.SamplesToBytes(mono)); err != nil && !errors.Is(err, speech.ErrNotRunning) {
		a.log.Debug("forward audio", "error", err)
	}
}

// initGenerator builds the reply generator. A fallback endpoint, when
// configured, is tried after the primary backend.
func (a *App) initGenerator() error {
	primary, err := inference.NewClient(
		inference.WithBackend(inference.ParseBackend(a.config.LLMBackend)),
		inference.WithAPIKey(a.config.OpenAIKey),
		inference.WithModel(a.config.Model),
		inference.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	var provider inference.Provider = primary
	if a.config.LLMFallbackURL != "" {
		fallback, err := inference.NewClient(
			inference.WithBaseURL(a.config.LLMFallbackURL),
			inference.WithAPIKey(a.config.OpenAIKey),
			inference.WithModel(a.config.Model),
			inference.WithLogger(a.log),
		)
		if err != nil {
			return err
		}
		provider, err = inference.NewChain(a.log, primary, fallback)
		if err != nil {
			return err
		}
	}

	history := inference.NewHistory(a.config.SystemPrompt, a.config.MaxHistory)
	a.generator = inference.NewGenerator(provider, history, a.log)

	if a.config.OneMindKey == "" {
		return nil
	}
	client, err := inference.NewSessionClient(a.config.OneMindKey, inference.WithSessionLogger(a.log))
	if err != nil {
		return err
	}
	oneMind, err := inference.NewClient(
		inference.WithBackend(inference.BackendOneMind),
		inference.WithAPIKey(a.config.OpenAIKey),
		inference.WithModel(a.config.Model),
		inference.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	a.sessions = inference.NewSessions(client, a.generator, oneMind)
	return nil
}

// initTTS builds the synthesis chain. "chain" puts ElevenLabs first and
// falls back to OpenAI.
func (a *App) initTTS() error {
	var providers []tts.Provider
	addOpenAI := func() error {
		p, err := tts.NewOpenAI(
			tts.WithAPIKey(a.config.OpenAIKey),
			tts.WithVoice(openAIVoice(a.config.Voice)),
			tts.WithLogger(a.log),
		)
		if err != nil {
			return err
		}
		providers = append(providers, p)
		return nil
	}
	addElevenLabs := func() error {
		voice := a.config.ElevenVoiceID
		if voice == "" {
			voice = tts.DefaultElevenLabsVoice
		}
		p, err := tts.NewElevenLabs(
			tts.WithAPIKey(a.config.ElevenLabsKey),
			tts.WithVoice(tts.ResolveElevenLabsVoice(voice)),
			tts.WithLogger(a.log),
		)
		if err != nil {
			return err
		}
		providers = append(providers, p)
		return nil
	}

	var err error
	switch a.config.TTSBackend {
	case "openai":
		err = addOpenAI()
	case "elevenlabs":
		err = addElevenLabs()
	case "chain":
		if err = addElevenLabs(); err == nil {
			err = addOpenAI()
		}
	default:
		err = fmt.Errorf("unknown TTS backend %q", a.config.TTSBackend)
	}
	if err != nil {
		return err
	}

	a.voice, err = tts.NewChainWithLogger(a.log, providers...)
	return err
}

func openAIVoice(v string) string {
	if tts.IsOpenAIVoice(v) {
		return v
	}
	return tts.VoiceNova
}

// initConversation wires recognition, the turn pipeline and the chat.
func (a *App) initConversation() error {
	var err error
	a.machine, err = conversation.New(a.recognizer, a.engine,
		conversation.WithIndicator(a.orb),
		conversation.WithMicMonitor(a.micMon),
		conversation.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	a.transcript = chat.NewTranscript(a.web.ChatPublisher(), chat.DefaultLimit, a.log)

	a.pipeline, err = turn.New(a.machine, a.generator, a.voice, a.player,
		turn.WithGate(a.engine),
		turn.WithDisplay(a.transcript),
		turn.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	a.pipeline.OnError = a.web.PublishError

	a.machine.OnInterim = a.transcript.SetInterim
	a.machine.OnState = func(conversation.Snapshot) { a.web.PublishState() }
	a.machine.OnFinal = func(text string) {
		if err := a.pipeline.Process(context.Background(), text); err != nil && !errors.Is(err, turn.ErrBusy) {
			a.log.Debug("spoken turn ended with error", "error", err)
		}
	}
	return nil
}

// openSession binds the configured 1mind assistant at startup. The
// greeting waits for the first gesture.
func (a *App) openSession(ctx context.Context, aiID string) {
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	sess, err := a.sessions.StartSession(startCtx, aiID)
	cancel()
	if err != nil {
		a.log.Warn("1mind session failed", "ai_id", aiID, "error", err)
		a.web.PublishError(err)
		return
	}
	a.web.PublishState()
	if sess.Greeting == "" {
		return
	}
	if err := a.pipeline.Greet(ctx, sess.Greeting); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("greeting failed", "error", err)
	}
}
