// Package audioio provides audio capture and playback behind small
// Source and Sink interfaces.
//
// Backends:
//   - malgo (miniaudio) capture, built with -tags malgo
//   - PortAudio playback, built with -tags portaudio
//   - Mock for CI and tests without hardware
//
// The browser microphone source lives in pkg/rtcmic.
package audioio

import (
	"errors"
	"fmt"
	"time"
)

// Backend names an audio backend.
type Backend string

const (
	// BackendAuto selects the first compiled-in hardware backend, falling
	// back to the mock.
	BackendAuto      Backend = "auto"
	BackendMalgo     Backend = "malgo"
	BackendPortAudio Backend = "portaudio"
	// BackendWebRTC is the browser microphone. It is built by pkg/rtcmic,
	// not by NewSource.
	BackendWebRTC Backend = "webrtc"
	BackendMock   Backend = "mock"
)

// ErrBackendUnavailable is returned when a backend was not compiled in.
var ErrBackendUnavailable = errors.New("audioio: backend not available in this build")

// Capture and playback rates used by the speech collaborators.
const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
)

// Config holds device configuration.
type Config struct {
	Backend Backend `json:"backend"`

	// SampleRate in Hz.
	SampleRate int `json:"sample_rate"`

	Channels int `json:"channels"`

	// BufferDuration is the size of one device period.
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is a backend-specific device name. Empty selects the default.
	Device string `json:"device"`
}

// DefaultConfig returns a mono 16 kHz capture config.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     CaptureSampleRate,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// DefaultSinkConfig returns a mono 24 kHz playback config matching the
// synthesis output.
func DefaultSinkConfig() Config {
	c := DefaultConfig()
	c.SampleRate = PlaybackSampleRate
	return c
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of one buffer in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
