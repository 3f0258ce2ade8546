package inference

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Backend names a chat completions endpoint.
type Backend string

const (
	BackendOpenAI  Backend = "gpt"
	BackendOneMind Backend = "1mind"
)

// Endpoint defaults.
const (
	OpenAIBaseURL  = "https://api.openai.com/v1"
	OneMindBaseURL = "https://dialogue-v2.dev.1mind.com/oai"

	DefaultModel         = "gpt-3.5-turbo"
	DefaultMaxTokens     = 150
	DefaultTemperature   = 0.7
	DefaultSystemPrompt  = "You are a helpful AI assistant."
	DefaultHistoryLength = 5
)

// ParseBackend maps a name to a Backend. Unknown names select OpenAI.
func ParseBackend(s string) Backend {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1mind", "onemind":
		return BackendOneMind
	default:
		return BackendOpenAI
	}
}

// BaseURL returns the API base URL for the backend.
func (b Backend) BaseURL() string {
	if b == BackendOneMind {
		return OneMindBaseURL
	}
	return OpenAIBaseURL
}

// Config holds provider configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // Bearer token; both backends take the OpenAI key

	// Request defaults
	Model       string
	MaxTokens   int
	Temperature float64

	// Timeouts
	Timeout time.Duration

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient overrides the request client. Streams use StreamClient.
	HTTPClient   *http.Client
	StreamClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithBackend points the client at a known backend.
func WithBackend(b Backend) Option {
	return func(c *Config) { c.BaseURL = b.BaseURL() }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the default chat model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets the clients used for requests and streams.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
		c.StreamClient = client
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the OpenAI defaults used for spoken replies: short
// answers at moderate temperature.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     OpenAIBaseURL,
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		RetryDelay:  200 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}
