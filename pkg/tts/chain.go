package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Chain speaks with the first provider that succeeds. The app builds one
// with ElevenLabs first and OpenAI as the fallback voice.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a chain that logs to slog.Default.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger creates a chain. At least one provider is required.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{providers: providers, logger: logger.With("component", "tts.chain")}, nil
}

// Synthesize tries each provider in order. Empty text fails immediately
// since no provider can speak it.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	errs := make([]error, 0, len(c.providers))
	for i, p := range c.providers {
		result, err := p.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback voice used", "provider_index", i, "chars", len(text))
			}
			return result, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("synthesis failed, trying next", "provider_index", i, "error", err)
	}
	return nil, &ChainError{Errors: errs}
}

// Health fails only when every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	errs := make([]error, 0, len(c.providers))
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(c.providers) {
		return &ChainError{Errors: errs}
	}
	return nil
}

// Close closes every provider and joins their errors.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// SetVoice offers voice to every provider that can change voice. OpenAI
// rejects ElevenLabs names and vice versa, so it fails only when nobody
// accepted it.
func (c *Chain) SetVoice(voice string) error {
	err := ErrUnknownVoice
	accepted := false
	for i, p := range c.providers {
		vs, ok := p.(VoiceSetter)
		if !ok {
			continue
		}
		if e := vs.SetVoice(voice); e != nil {
			err = e
			c.logger.Debug("voice rejected", "provider_index", i, "voice", voice, "error", e)
			continue
		}
		accepted = true
	}
	if !accepted {
		return err
	}
	c.logger.Info("voice changed", "voice", voice)
	return nil
}

// Voice reports the voice of the first provider that has one.
func (c *Chain) Voice() string {
	for _, p := range c.providers {
		if vs, ok := p.(VoiceSetter); ok {
			return vs.Voice()
		}
	}
	return ""
}

// Providers returns the chain's providers in order.
func (c *Chain) Providers() []Provider { return c.providers }

// ChainError holds one error per failed provider. errors.Is and errors.As
// see all of them.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no providers tried"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("tts chain: all %d providers failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ChainError) Unwrap() []error { return e.Errors }

var (
	_ Provider    = (*Chain)(nil)
	_ VoiceSetter = (*Chain)(nil)
)
