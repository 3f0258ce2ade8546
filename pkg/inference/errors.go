package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNoAPIKey is returned when a backend needs a key and none is set.
	ErrNoAPIKey = errors.New("inference: API key required")

	// ErrNoModel is returned for an empty model name.
	ErrNoModel = errors.New("inference: model required")

	// ErrProviderUnavailable is returned by a chain with no providers.
	ErrProviderUnavailable = errors.New("inference: provider unavailable")

	// ErrNoSession is returned when a session response carries no id.
	ErrNoSession = errors.New("inference: no session id returned")

	// ErrEmptyReply is returned when a completion produced no text.
	ErrEmptyReply = errors.New("inference: empty reply")
)

// APIError is a non-success response from a chat completions or session
// endpoint.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string // e.g. "invalid_api_key"; empty for plain-text bodies
	Message    string
}

func (e *APIError) Error() string {
	status := fmt.Sprint(e.StatusCode)
	if e.Code != "" {
		status += " " + e.Code
	}
	return fmt.Sprintf("inference [%s]: %s: %s", e.Provider, status, e.Message)
}

// IsRetryable reports whether the same request may succeed later.
func (e *APIError) IsRetryable() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// parseAPIError reads an OpenAI-style error body. 1mind answers with the
// same shape; anything else becomes the message verbatim.
func parseAPIError(resp *http.Response, provider string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	e := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Message != "" {
		e.Message, e.Code = parsed.Error.Message, parsed.Error.Code
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// ProviderError tags an error with the backend that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError tags err with provider. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError holds one error per provider, in chain order. errors.Is and
// errors.As match any of them.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "inference chain: no errors recorded"
	case 1:
		return fmt.Sprintf("inference chain: %v", e.Errors[0])
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("inference chain: all %d providers failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ChainError) Unwrap() []error { return e.Errors }
