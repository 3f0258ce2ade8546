// Orb - voice assistant with an animated, audio-reactive orb
// Serves a browser dashboard; speech in, streamed replies and speech out
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-orb/internal/config"
	"github.com/teslashibe/go-orb/internal/log"
	"github.com/teslashibe/go-orb/pkg/app"
)

func main() {
	cfg := parseFlags()

	log.Init(cfg.LogLevel)
	logger := log.L()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := a.Init(); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
	}
}

// parseFlags loads the environment and applies command line overrides.
func parseFlags() config.Config {
	cfg := config.Load()

	addr := flag.String("addr", cfg.ListenAddr, "Dashboard listen address")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	llm := flag.String("llm", cfg.LLMBackend, "Reply backend: openai, 1mind")
	ttsBackend := flag.String("tts", cfg.TTSBackend, "TTS provider: openai, elevenlabs, chain")
	voice := flag.String("voice", cfg.Voice, "OpenAI voice for speech output")
	stt := flag.String("stt", cfg.STTBackend, "Speech recognizer: assemblyai, mock")
	input := flag.String("input", cfg.AudioInput, "Microphone: mock, malgo, webrtc")
	output := flag.String("output", cfg.AudioOutput, "Speaker: mock, portaudio")
	variant := flag.String("orb", cfg.Variant, "Initial orb variant")
	aiID := flag.String("ai", cfg.OneMindAIID, "1mind assistant id to open at startup")
	flag.Parse()

	cfg.ListenAddr, cfg.LLMBackend, cfg.TTSBackend = *addr, *llm, *ttsBackend
	cfg.Voice, cfg.STTBackend, cfg.Variant = *voice, *stt, *variant
	cfg.AudioInput, cfg.AudioOutput, cfg.OneMindAIID = *input, *output, *aiID
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}
