package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithBaseURL(url),
		WithAPIKey("test-key"),
		WithRetry(2, time.Millisecond),
	}, opts...)
	client, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClientValidates(t *testing.T) {
	if _, err := NewClient(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
	if _, err := NewClient(WithAPIKey("k"), WithModel("")); !errors.Is(err, ErrNoModel) {
		t.Errorf("err = %v, want ErrNoModel", err)
	}
}

func TestClientStreamPayloadAndChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Expected Bearer test-key, got %s", auth)
		}

		var body chatPayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body.Model != DefaultModel || body.MaxTokens != DefaultMaxTokens || body.Temperature != DefaultTemperature || !body.Stream {
			t.Errorf("payload = %+v", body)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"Hi"}}]}`+"\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":" there"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	stream, err := client.Stream(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("Hello")},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		chunk, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		text.WriteString(chunk.Delta)
		if chunk.Done {
			break
		}
	}
	if text.String() != "Hi there" {
		t.Errorf("streamed %q, want %q", text.String(), "Hi there")
	}
}

func TestClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","model":"gpt-3.5-turbo","choices":[{"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("Hi")}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content != "Hello!" || resp.FinishReason != "stop" || resp.Usage.TotalTokens != 5 {
		t.Errorf("response = %+v", resp)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	stream, err := client.Stream(context.Background(), &ChatRequest{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	stream.Close()
	if n := hits.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestClientAPIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantMsg   string
		retryable bool
	}{
		{"openai style", http.StatusUnauthorized, `{"error":{"message":"bad key","code":"invalid_api_key"}}`, "bad key", false},
		{"plain body", http.StatusBadRequest, "nope", "nope", false},
		{"rate limited", http.StatusTooManyRequests, "", "Too Many Requests", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL, WithRetry(0, 0))
			_, err := client.Stream(context.Background(), &ChatRequest{})

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v", apiErr)
			}
			if apiErr.IsRetryable() != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", apiErr.IsRetryable(), tt.retryable)
			}
		})
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
		url  string
	}{
		{"1mind", BackendOneMind, OneMindBaseURL},
		{" OneMind ", BackendOneMind, OneMindBaseURL},
		{"gpt", BackendOpenAI, OpenAIBaseURL},
		{"", BackendOpenAI, OpenAIBaseURL},
	}
	for _, tt := range tests {
		got := ParseBackend(tt.in)
		if got != tt.want || got.BaseURL() != tt.url {
			t.Errorf("ParseBackend(%q) = %q (%s), want %q", tt.in, got, got.BaseURL(), tt.want)
		}
	}
}
