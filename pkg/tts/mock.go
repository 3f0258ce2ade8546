package tts

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Mock is a Provider for tests. Unset function fields fall back to a tone
// per character of text.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error
	CloseFunc      func() error

	mu     sync.Mutex
	counts map[string]int
	spoken []string
	voice  string
}

// NewMock returns a mock that speaks a 24 kHz tone.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			return Tone(text, 24000, 0.5), nil
		},
	}
}

// WithError returns a mock whose synthesis and health checks fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(ctx context.Context) error { return err },
	}
}

// WithLatency delays m's synthesis by delay, or until ctx ends.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	next := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, text string) (*AudioResult, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next == nil {
			return nil, WrapError("mock", ErrProviderUnavailable)
		}
		return next(ctx, text)
	}
	return m
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.count("Synthesize")
	m.spoken = append(m.spoken, text)
	m.mu.Unlock()

	if m.SynthesizeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.SynthesizeFunc(ctx, text)
}

func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	m.count("Health")
	m.mu.Unlock()

	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.count("Close")
	m.mu.Unlock()

	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

// SetVoice accepts OpenAI voices and ElevenLabs presets.
func (m *Mock) SetVoice(voice string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count("SetVoice")
	if !IsOpenAIVoice(voice) && !IsElevenLabsPreset(voice) {
		return ErrUnknownVoice
	}
	m.voice = voice
	return nil
}

func (m *Mock) Voice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voice
}

// count must be called with mu held.
func (m *Mock) count(method string) {
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
}

// CallCount returns how often method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[method]
}

// Spoken returns every text passed to Synthesize, oldest first.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.spoken...)
}

// LastSpoken returns the most recent text passed to Synthesize.
func (m *Mock) LastSpoken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.spoken) == 0 {
		return "", false
	}
	return m.spoken[len(m.spoken)-1], true
}

// Tone renders 20 ms of a 440 Hz sine per character of text as PCM16.
func Tone(text string, sampleRate int, amplitude float64) *AudioResult {
	n := len(text) * sampleRate / 50
	audio := make([]byte, n*2)
	step := 2 * math.Pi * 440 / float64(sampleRate)
	for i := range n {
		v := int16(amplitude * math.MaxInt16 * math.Sin(step*float64(i)))
		binary.LittleEndian.PutUint16(audio[i*2:], uint16(v))
	}

	enc := EncodingPCM24
	switch sampleRate {
	case 16000:
		enc = EncodingPCM16
	case 22050:
		enc = EncodingPCM22
	case 44100:
		enc = EncodingPCM44
	}
	format := pcmFormat(enc)
	format.SampleRate = sampleRate
	return &AudioResult{
		Audio:     audio,
		Format:    format,
		Duration:  pcmDuration(len(audio), sampleRate),
		CharCount: len(text),
		LatencyMs: 10,
	}
}

var (
	_ Provider    = (*Mock)(nil)
	_ VoiceSetter = (*Mock)(nil)
)
