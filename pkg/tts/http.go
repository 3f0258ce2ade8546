package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-orb/internal/httpc"
)

// httpProvider carries what the HTTP-backed providers share.
type httpProvider struct {
	config   *Config
	client   *http.Client
	logger   *slog.Logger
	provider string
}

func newHTTPProvider(cfg *Config, provider string) httpProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return httpProvider{
		config:   cfg,
		client:   client,
		logger:   logger.With("component", "tts."+provider),
		provider: provider,
	}
}

// doWithRetry performs the request, retrying transport errors, 429 and 5xx.
// Non-retryable error statuses are returned as *APIError.
func (h *httpProvider) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(h.config.RetryDelay * time.Duration(attempt)):
			}
			if body != nil {
				req.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(h.provider, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = parseAPIError(resp, h.provider)
			resp.Body.Close()
			h.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return nil, parseAPIError(resp, h.provider)
		}
		return resp, nil
	}

	return nil, lastErr
}

// readAudio reads a PCM body and builds the result.
func (h *httpProvider) readAudio(resp *http.Response, text string, enc Encoding, start time.Time) (*AudioResult, error) {
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(h.provider, fmt.Errorf("read response: %w", err))
	}
	if len(audio) < 2 {
		return nil, WrapError(h.provider, ErrEmptyAudio)
	}

	format := pcmFormat(enc)
	latency := time.Since(start).Milliseconds()
	h.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  pcmDuration(len(audio), format.SampleRate),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// get performs an authenticated health request.
func (h *httpProvider) get(ctx context.Context, url string, auth func(*http.Request)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return WrapError(h.provider, err)
	}
	auth(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return WrapError(h.provider, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp, h.provider)
	}
	return nil
}
