package tts

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Request defaults shared by the HTTP providers.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 100 * time.Millisecond
)

// Config holds provider configuration. Build it with DefaultConfig and the
// WithXxx options.
type Config struct {
	APIKey  string
	BaseURL string

	// Voice
	VoiceID       string // OpenAI voice, ElevenLabs preset name or raw voice ID
	ModelID       string
	VoiceSettings VoiceSettings // ElevenLabs only
	Speed         float64       // OpenAI only; 0 keeps the service default

	OutputFormat Encoding // must be PCM; the player takes raw samples

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client // overrides the shared client

	Logger *slog.Logger
}

// Option is a functional option for configuring TTS providers.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithVoice sets the voice ID or preset name.
func WithVoice(voiceID string) Option { return func(c *Config) { c.VoiceID = voiceID } }

// WithModel sets the model ID.
func WithModel(modelID string) Option { return func(c *Config) { c.ModelID = modelID } }

// WithOutputFormat sets the PCM encoding requested from ElevenLabs.
func WithOutputFormat(format Encoding) Option {
	return func(c *Config) { c.OutputFormat = format }
}

// WithVoiceSettings sets ElevenLabs voice characteristics.
func WithVoiceSettings(settings VoiceSettings) Option {
	return func(c *Config) { c.VoiceSettings = settings }
}

// WithSpeed sets the OpenAI speaking rate, 0.25 to 4.
func WithSpeed(speed float64) Option { return func(c *Config) { c.Speed = speed } }

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry sets how often and how far apart failed requests are retried.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option { return func(c *Config) { c.Logger = logger } }

// DefaultConfig returns the ElevenLabs-flavoured defaults; NewOpenAI
// replaces the model and voice.
func DefaultConfig() *Config {
	return &Config{
		ModelID:       ModelTurboV2_5,
		OutputFormat:  EncodingPCM24,
		VoiceSettings: DefaultVoiceSettings(),
		Timeout:       DefaultTimeout,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the key, the output encoding and the speaking rate.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if !c.OutputFormat.IsPCM() {
		return ErrUnsupportedFormat
	}
	if c.Speed != 0 && (c.Speed < 0.25 || c.Speed > 4) {
		return fmt.Errorf("tts: speed %v outside 0.25..4", c.Speed)
	}
	return nil
}

// ValidateWithVoice is Validate plus a required voice.
func (c *Config) ValidateWithVoice() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VoiceID == "" {
		return ErrNoVoiceID
	}
	return nil
}
