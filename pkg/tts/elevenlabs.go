package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs model IDs
const (
	// ModelTurboV2_5 is the fastest English model (~200ms latency).
	ModelTurboV2_5 = "eleven_turbo_v2_5"

	// ModelFlashV2_5 is the fastest multilingual model (~150ms latency).
	ModelFlashV2_5 = "eleven_flash_v2_5"

	// ModelMultilingualV2 is the highest quality multilingual model (~300ms latency).
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// VoiceSettings controls ElevenLabs voice characteristics.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns balanced settings for conversation.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		SpeakerBoost:    true,
	}
}

// ElevenLabs implements Provider for ElevenLabs TTS.
type ElevenLabs struct {
	httpProvider
	baseURL string

	mu    sync.RWMutex
	voice string
}

// NewElevenLabs creates a new ElevenLabs TTS provider. The voice may be a
// preset name from ElevenLabsVoices or a raw voice ID.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.VoiceID = DefaultElevenLabsVoice
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		httpProvider: newHTTPProvider(cfg, providerElevenLabs),
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		voice:        cfg.VoiceID,
	}, nil
}

type elevenLabsPayload struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL,
		url.PathEscape(ResolveElevenLabsVoice(e.Voice())),
		e.config.OutputFormat,
	)

	body, err := json.Marshal(elevenLabsPayload{
		Text:          text,
		ModelID:       e.config.ModelID,
		VoiceSettings: e.config.VoiceSettings,
	})
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("create request: %w", err))
	}
	e.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")

	resp, err := e.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	return e.readAudio(resp, text, e.config.OutputFormat, start)
}

// Health checks API connectivity and API key validity.
func (e *ElevenLabs) Health(ctx context.Context) error {
	return e.get(ctx, e.baseURL+"/user", e.authorize)
}

// Close releases resources held by the provider.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// SetVoice accepts a preset name or a raw voice ID.
func (e *ElevenLabs) SetVoice(voice string) error {
	if voice == "" {
		return ErrNoVoiceID
	}
	e.mu.Lock()
	e.voice = voice
	e.mu.Unlock()
	e.logger.Info("voice changed", "voice", voice, "preset", IsElevenLabsPreset(voice))
	return nil
}

// Voice returns the configured voice name or ID.
func (e *ElevenLabs) Voice() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.voice
}

// ModelID returns the configured model ID.
func (e *ElevenLabs) ModelID() string {
	return e.config.ModelID
}

func (e *ElevenLabs) authorize(req *http.Request) {
	req.Header.Set("xi-api-key", e.config.APIKey)
}

// Verify ElevenLabs implements Provider at compile time.
var (
	_ Provider    = (*ElevenLabs)(nil)
	_ VoiceSetter = (*ElevenLabs)(nil)
)
