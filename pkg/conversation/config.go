package conversation

import (
	"errors"
	"log/slog"
	"time"
)

// Machine defaults.
const (
	DefaultSettleDelay  = 100 * time.Millisecond
	DefaultStartTimeout = 10 * time.Second
)

// Config holds Machine configuration.
type Config struct {
	// SettleDelay is the minimum gap between stopping recognition and
	// starting it again.
	SettleDelay time.Duration

	// StartTimeout bounds a single recognizer Start.
	StartTimeout time.Duration

	Indicator  Indicator
	MicMonitor MicMonitor
	Logger     *slog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SettleDelay:  DefaultSettleDelay,
		StartTimeout: DefaultStartTimeout,
		Logger:       slog.Default(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SettleDelay < 0 {
		return errors.New("conversation: settle delay must not be negative")
	}
	if c.StartTimeout <= 0 {
		return errors.New("conversation: start timeout must be positive")
	}
	return nil
}

// Option is a functional option for configuring a Machine.
type Option func(*Config)

// WithSettleDelay sets the restart debounce.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) {
		c.SettleDelay = d
	}
}

// WithStartTimeout bounds recognizer starts.
func WithStartTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.StartTimeout = d
	}
}

// WithIndicator sets the listening/speaking indicator, usually the orb
// coordinator.
func WithIndicator(ind Indicator) Option {
	return func(c *Config) {
		c.Indicator = ind
	}
}

// WithMicMonitor sets the microphone level monitor.
func WithMicMonitor(m MicMonitor) Option {
	return func(c *Config) {
		c.MicMonitor = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
