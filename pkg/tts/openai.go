package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	openAITTSURL   = "https://api.openai.com/v1/audio/speech"
	providerOpenAI = "openai"
)

// OpenAI model options
const (
	ModelTTS1   = "tts-1"    // Standard quality, faster
	ModelTTS1HD = "tts-1-hd" // Higher quality, slower
)

// OpenAI implements Provider for OpenAI TTS. Audio is requested as raw
// 24 kHz PCM16.
type OpenAI struct {
	httpProvider
	url       string
	modelsURL string

	mu    sync.RWMutex
	voice string
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceNova
	cfg.Apply(opts...)
	cfg.OutputFormat = EncodingPCM24

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = VoiceNova
	}
	if !IsOpenAIVoice(cfg.VoiceID) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVoice, cfg.VoiceID)
	}

	url := cfg.BaseURL
	if url == "" {
		url = openAITTSURL
	}

	return &OpenAI{
		httpProvider: newHTTPProvider(cfg, providerOpenAI),
		url:          url,
		modelsURL:    strings.TrimSuffix(url, "/audio/speech") + "/models",
		voice:        cfg.VoiceID,
	}, nil
}

type openAIPayload struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	body, err := json.Marshal(openAIPayload{
		Model:          o.config.ModelID,
		Voice:          o.Voice(),
		Input:          text,
		ResponseFormat: "pcm",
		Speed:          o.config.Speed,
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("create request: %w", err))
	}
	o.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	return o.readAudio(resp, text, EncodingPCM24, start)
}

// Health checks API connectivity.
func (o *OpenAI) Health(ctx context.Context) error {
	return o.get(ctx, o.modelsURL, o.authorize)
}

// Close releases resources.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// SetVoice switches to one of the OpenAI voices.
func (o *OpenAI) SetVoice(voice string) error {
	if !IsOpenAIVoice(voice) {
		return fmt.Errorf("%w: %q", ErrUnknownVoice, voice)
	}
	o.mu.Lock()
	o.voice = voice
	o.mu.Unlock()
	o.logger.Info("voice changed", "voice", voice)
	return nil
}

// Voice returns the current voice.
func (o *OpenAI) Voice() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.voice
}

func (o *OpenAI) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
}

// Verify OpenAI implements Provider at compile time.
var (
	_ Provider    = (*OpenAI)(nil)
	_ VoiceSetter = (*OpenAI)(nil)
)
