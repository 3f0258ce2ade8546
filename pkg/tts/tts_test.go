package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-orb/pkg/tts"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		opts []tts.Option
		want error
	}{
		{"missing key", nil, tts.ErrNoAPIKey},
		{"mp3 rejected", []tts.Option{tts.WithAPIKey("k"), tts.WithOutputFormat(tts.EncodingMP3)}, tts.ErrUnsupportedFormat},
		{"ok", []tts.Option{tts.WithAPIKey("k")}, nil},
		{"speed in range", []tts.Option{tts.WithAPIKey("k"), tts.WithSpeed(1.25)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tts.DefaultConfig()
			cfg.Apply(tt.opts...)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigRejectsSpeed(t *testing.T) {
	for _, speed := range []float64{-1, 0.1, 4.5} {
		cfg := tts.DefaultConfig()
		cfg.Apply(tts.WithAPIKey("k"), tts.WithSpeed(speed))
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() with speed %v = nil, want error", speed)
		}
	}
}

func TestSampleRateFromEncoding(t *testing.T) {
	tests := []struct {
		enc  tts.Encoding
		want int
	}{
		{tts.EncodingPCM16, 16000},
		{tts.EncodingPCM22, 22050},
		{tts.EncodingPCM24, 24000},
		{tts.EncodingPCM44, 44100},
	}
	for _, tt := range tests {
		if got := tts.SampleRateFromEncoding(tt.enc); got != tt.want {
			t.Errorf("SampleRateFromEncoding(%s) = %d, want %d", tt.enc, got, tt.want)
		}
	}
}

func TestOpenAISynthesize(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		w.Write(make([]byte, 48000)) // one second at 24 kHz
	}))
	defer srv.Close()

	provider, err := tts.NewOpenAI(
		tts.WithAPIKey("test-key"),
		tts.WithBaseURL(srv.URL+"/v1/audio/speech"),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer provider.Close()

	result, err := provider.Synthesize(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if payload["model"] != tts.ModelTTS1 || payload["voice"] != tts.VoiceNova || payload["response_format"] != "pcm" {
		t.Errorf("payload = %v", payload)
	}
	if result.Format.SampleRate != 24000 || result.Format.BitDepth != 16 {
		t.Errorf("format = %+v", result.Format)
	}
	if result.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", result.Duration)
	}
	if result.CharCount != 5 {
		t.Errorf("CharCount = %d, want 5", result.CharCount)
	}
}

func TestOpenAIEmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	provider, err := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	_, err = provider.Synthesize(context.Background(), "Hello")
	if !errors.Is(err, tts.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
	var perr *tts.ProviderError
	if !errors.As(err, &perr) || perr.Provider != "openai" {
		t.Errorf("err = %#v, want openai ProviderError", err)
	}
}

func TestOpenAIEmptyText(t *testing.T) {
	provider, err := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL("http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	if _, err := provider.Synthesize(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		w.Write(make([]byte, 960))
	}))
	defer srv.Close()

	provider, err := tts.NewOpenAI(
		tts.WithAPIKey("k"),
		tts.WithBaseURL(srv.URL),
		tts.WithRetry(3, time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	if _, err := provider.Synthesize(context.Background(), "Hi"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("hits = %d, want 3", got)
	}
}

func TestOpenAIUnauthorized(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	provider, err := tts.NewOpenAI(tts.WithAPIKey("bad"), tts.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	_, err = provider.Synthesize(context.Background(), "Hi")
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Code != "invalid_api_key" || apiErr.IsRetryable() {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
}

func TestOpenAISetVoice(t *testing.T) {
	provider, err := tts.NewOpenAI(tts.WithAPIKey("k"))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	for _, v := range tts.OpenAIVoices {
		if err := provider.SetVoice(v); err != nil {
			t.Errorf("SetVoice(%q) = %v", v, err)
		}
	}
	if err := provider.SetVoice("rachel"); !errors.Is(err, tts.ErrUnknownVoice) {
		t.Errorf("SetVoice(rachel) = %v, want ErrUnknownVoice", err)
	}
	if got := provider.Voice(); got != tts.VoiceShimmer {
		t.Errorf("Voice() = %q, want last valid voice", got)
	}

	if _, err := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithVoice("bogus")); !errors.Is(err, tts.ErrUnknownVoice) {
		t.Errorf("NewOpenAI(bogus voice) = %v", err)
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/"+tts.ElevenLabsVoices["adam"] {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "pcm_24000" {
			t.Errorf("output_format = %q", got)
		}
		if r.Header.Get("xi-api-key") != "el-key" {
			t.Errorf("missing xi-api-key")
		}
		w.Write(make([]byte, 4800))
	}))
	defer srv.Close()

	provider, err := tts.NewElevenLabs(
		tts.WithAPIKey("el-key"),
		tts.WithBaseURL(srv.URL),
	)
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}
	if err := provider.SetVoice("adam"); err != nil {
		t.Fatalf("SetVoice: %v", err)
	}

	result, err := provider.Synthesize(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", result.Duration)
	}
}

func TestElevenLabsErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":{"status":"voice_not_found","message":"voice not found"}}`))
	}))
	defer srv.Close()

	provider, err := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewElevenLabs: %v", err)
	}

	_, err = provider.Synthesize(context.Background(), "Hi")
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "voice_not_found" || apiErr.Message != "voice not found" {
		t.Errorf("err = %v", err)
	}
}

func TestChainFallback(t *testing.T) {
	failing := tts.WithError(errors.New("primary down"))
	backup := tts.NewMock()

	chain, err := tts.NewChain(failing, backup)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	result, err := chain.Synthesize(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(result.Audio) == 0 {
		t.Error("expected audio from backup")
	}
	if failing.CallCount("Synthesize") != 1 || backup.CallCount("Synthesize") != 1 {
		t.Errorf("calls = %d/%d", failing.CallCount("Synthesize"), backup.CallCount("Synthesize"))
	}
}

func TestChainAllFail(t *testing.T) {
	chain, err := tts.NewChain(tts.WithError(tts.ErrEmptyAudio), tts.WithError(tts.ErrEmptyAudio))
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	_, err = chain.Synthesize(context.Background(), "Hello")
	var chainErr *tts.ChainError
	if !errors.As(err, &chainErr) || len(chainErr.Errors) != 2 {
		t.Fatalf("err = %v, want ChainError with 2 errors", err)
	}
	if !errors.Is(err, tts.ErrEmptyAudio) {
		t.Error("ChainError should match provider errors")
	}

	if _, err := tts.NewChain(); !errors.Is(err, tts.ErrProviderUnavailable) {
		t.Errorf("NewChain() = %v", err)
	}
}

func TestChainEmptyText(t *testing.T) {
	m := tts.NewMock()
	chain, _ := tts.NewChain(m)
	if _, err := chain.Synthesize(context.Background(), "  "); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	if m.CallCount("Synthesize") != 0 {
		t.Error("provider called for empty text")
	}
}

func TestChainSetVoice(t *testing.T) {
	a, b := tts.NewMock(), tts.NewMock()
	chain, _ := tts.NewChain(a, b)

	if err := chain.SetVoice(tts.VoiceOnyx); err != nil {
		t.Fatalf("SetVoice: %v", err)
	}
	if a.Voice() != tts.VoiceOnyx || b.Voice() != tts.VoiceOnyx || chain.Voice() != tts.VoiceOnyx {
		t.Errorf("voices = %q %q %q", a.Voice(), b.Voice(), chain.Voice())
	}
	if err := chain.SetVoice("nobody"); !errors.Is(err, tts.ErrUnknownVoice) {
		t.Errorf("SetVoice(nobody) = %v", err)
	}
}

func TestMockTone(t *testing.T) {
	result := tts.Tone("hello", 24000, 0.5)
	if want := 5 * 24000 / 50 * 2; len(result.Audio) != want {
		t.Errorf("len = %d, want %d", len(result.Audio), want)
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("Duration = %v", result.Duration)
	}
}

func TestWithLatencyHonoursContext(t *testing.T) {
	m := tts.WithLatency(tts.NewMock(), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := m.Synthesize(ctx, "hi"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
