// Package config loads go-orb settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultListenAddr  = ":8181"
	DefaultLogLevel    = "info"
	DefaultLLMBackend  = "openai"
	DefaultModel       = "gpt-3.5-turbo"
	DefaultVoice       = "nova"
	DefaultTTSBackend  = "openai"
	DefaultVariant     = "Fluid Orb"
	DefaultSTTBackend  = "assemblyai"
	DefaultAudioInput  = "mock"
	DefaultAudioOutput = "mock"
	DefaultFrameRate   = 60
	DefaultStreamRate  = 15
	DefaultOrbSize     = 400
	DefaultHistory     = 5
	DefaultSystem      = "You are a helpful AI assistant."
)

// Config is the complete runtime configuration for cmd/orb.
type Config struct {
	ListenAddr string
	LogLevel   string

	// Reply generation
	LLMBackend     string // "openai" or "1mind"
	LLMFallbackURL string // optional OpenAI-compatible endpoint tried on failure
	OpenAIKey      string
	Model          string
	SystemPrompt   string
	MaxHistory     int
	OneMindKey     string
	OneMindAIID    string

	// Speech synthesis
	TTSBackend    string // "openai", "elevenlabs" or "chain"
	Voice         string
	ElevenLabsKey string
	ElevenVoiceID string

	// Speech recognition
	STTBackend    string // "assemblyai" or "mock"
	AssemblyAIKey string

	// Audio devices
	AudioInput  string // "mock", "malgo" or "webrtc"
	AudioOutput string // "mock" or "portaudio"

	// Orb
	Variant    string
	FrameRate  int // animation rate
	StreamRate int // dashboard frame stream rate
	OrbSize    int // surface width and height in pixels

	// Playback
	PlaybackRetries    int
	PlaybackRetryDelay time.Duration

	ICEServers []string
}

// Load reads .env (if any) and the process environment.
func Load() Config {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	return Config{
		ListenAddr:         Env("ORB_LISTEN_ADDR", DefaultListenAddr),
		LogLevel:           Env("LOG_LEVEL", DefaultLogLevel),
		LLMBackend:         Env("ORB_LLM_BACKEND", DefaultLLMBackend),
		LLMFallbackURL:     os.Getenv("ORB_LLM_FALLBACK_URL"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		Model:              Env("ORB_MODEL", DefaultModel),
		SystemPrompt:       Env("ORB_SYSTEM_PROMPT", DefaultSystem),
		MaxHistory:         EnvInt("ORB_MAX_HISTORY", DefaultHistory),
		OneMindKey:         os.Getenv("ONEMIND_API_KEY"),
		OneMindAIID:        os.Getenv("ONEMIND_AI_ID"),
		TTSBackend:         Env("ORB_TTS_BACKEND", DefaultTTSBackend),
		Voice:              Env("ORB_VOICE", DefaultVoice),
		ElevenLabsKey:      os.Getenv("ELEVENLABS_API_KEY"),
		ElevenVoiceID:      os.Getenv("ELEVENLABS_VOICE_ID"),
		STTBackend:         Env("ORB_STT_BACKEND", DefaultSTTBackend),
		AssemblyAIKey:      os.Getenv("ASSEMBLYAI_API_KEY"),
		AudioInput:         Env("ORB_AUDIO_INPUT", DefaultAudioInput),
		AudioOutput:        Env("ORB_AUDIO_OUTPUT", DefaultAudioOutput),
		Variant:            Env("ORB_VARIANT", DefaultVariant),
		FrameRate:          EnvInt("ORB_FRAME_RATE", DefaultFrameRate),
		StreamRate:         EnvInt("ORB_STREAM_RATE", DefaultStreamRate),
		OrbSize:            EnvInt("ORB_SIZE", DefaultOrbSize),
		PlaybackRetries:    EnvInt("ORB_PLAYBACK_RETRIES", 3),
		PlaybackRetryDelay: EnvDuration("ORB_PLAYBACK_RETRY_DELAY", 500*time.Millisecond),
		ICEServers:         EnvList("ORB_ICE_SERVERS", []string{"stun:stun.l.google.com:19302"}),
	}
}

// Validate reports settings that make the binary unusable.
func (c Config) Validate() error {
	switch c.LLMBackend {
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("config: OPENAI_API_KEY is required for the openai backend")
		}
	case "1mind":
		if c.OneMindKey == "" {
			return fmt.Errorf("config: ONEMIND_API_KEY is required for the 1mind backend")
		}
	default:
		return fmt.Errorf("config: unknown LLM backend %q", c.LLMBackend)
	}
	if c.FrameRate <= 0 || c.FrameRate > 240 {
		return fmt.Errorf("config: frame rate %d out of range", c.FrameRate)
	}
	if c.OrbSize <= 0 {
		return fmt.Errorf("config: orb size must be positive")
	}
	if c.PlaybackRetries < 1 {
		return fmt.Errorf("config: playback retries must be at least 1")
	}
	return nil
}

// Env returns the variable or the fallback when unset or empty.
func Env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt parses an integer variable, falling back on absence or parse error.
func EnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// EnvDuration parses a time.Duration variable such as "250ms".
func EnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// EnvList splits a comma separated variable.
func EnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
