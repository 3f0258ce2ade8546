// Package rtcmic receives the browser microphone over WebRTC and exposes
// it as an audioio.Source.
//
// The dashboard sends an SDP offer with one Opus audio track. Packets are
// decoded at 48 kHz and resampled to the capture rate before they reach
// the stream, so consumers see the same chunks a local microphone would
// produce.
package rtcmic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-orb/pkg/audioio"
)

// Opus runs at 48 kHz; 120 ms is the longest frame.
const (
	opusRate     = 48000
	maxFrameSize = opusRate * 120 / 1000
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("rtcmic: closed")

// Decoder decodes one Opus packet into mono PCM.
type Decoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Signal carries ICE candidates from the local peer to the browser.
type Signal func(candidate webrtc.ICECandidateInit)

// Mic is a WebRTC microphone source. One browser peer is served at a time;
// a new offer replaces the previous peer.
type Mic struct {
	cfg    audioio.Config
	api    *webrtc.API
	ice    []webrtc.ICEServer
	decode func() (Decoder, error)
	log    *slog.Logger

	mu       sync.Mutex
	signal   Signal
	pc       *webrtc.PeerConnection
	running  bool
	closed   bool
	streamCh chan audioio.Chunk

	packets    atomic.Int64
	lost       atomic.Int64
	decodeErrs atomic.Int64
	samples    atomic.Int64
	overruns   atomic.Int64
}

// Option configures a Mic.
type Option func(*Mic)

// WithICEServers sets STUN/TURN servers.
func WithICEServers(urls ...string) Option {
	return func(m *Mic) {
		if len(urls) > 0 {
			m.ice = []webrtc.ICEServer{{URLs: urls}}
		}
	}
}

// WithDecoder replaces the libopus decoder factory.
func WithDecoder(f func() (Decoder, error)) Option {
	return func(m *Mic) { m.decode = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mic) { m.log = l }
}

// New creates a microphone that delivers chunks in cfg's format.
func New(cfg audioio.Config, opts ...Option) (*Mic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rtcmic: %w", err)
	}
	cfg.Backend = audioio.BackendWebRTC

	var media webrtc.MediaEngine
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("rtcmic: register codecs: %w", err)
	}

	m := &Mic{
		cfg: cfg,
		api: webrtc.NewAPI(webrtc.WithMediaEngine(&media)),
		decode: func() (Decoder, error) {
			dec, err := opus.NewDecoder(opusRate, 1)
			if err != nil {
				return nil, err
			}
			return dec, nil
		},
		log:      slog.Default(),
		streamCh: make(chan audioio.Chunk, 32),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("component", "rtcmic")
	return m, nil
}

// OnCandidate sets the receiver of local ICE candidates.
func (m *Mic) OnCandidate(fn Signal) {
	m.mu.Lock()
	m.signal = fn
	m.mu.Unlock()
}

// Answer accepts a browser offer and returns the local answer. ICE
// candidates trickle through OnCandidate.
func (m *Mic) Answer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return webrtc.SessionDescription{}, ErrClosed
	}
	old := m.pc
	m.pc = nil
	m.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	pc, err := m.api.NewPeerConnection(webrtc.Configuration{ICEServers: m.ice})
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("rtcmic: peer connection: %w", err)
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("rtcmic: add transceiver: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		m.mu.Lock()
		signal := m.signal
		m.mu.Unlock()
		if signal != nil {
			signal(c.ToJSON())
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.log.Info("peer connection state", "state", s.String())
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		m.log.Info("browser microphone track", "codec", track.Codec().MimeType)
		m.receive(track)
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("rtcmic: remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("rtcmic: create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("rtcmic: local description: %w", err)
	}

	m.mu.Lock()
	m.pc = pc
	m.mu.Unlock()
	return *pc.LocalDescription(), nil
}

// AddCandidate adds a remote ICE candidate.
func (m *Mic) AddCandidate(c webrtc.ICECandidateInit) error {
	m.mu.Lock()
	pc := m.pc
	m.mu.Unlock()
	if pc == nil {
		return errors.New("rtcmic: no peer connection")
	}
	return pc.AddICECandidate(c)
}

// receive reads RTP packets from track until it ends.
func (m *Mic) receive(track *webrtc.TrackRemote) {
	dec, err := m.decode()
	if err != nil {
		m.log.Error("opus decoder", "error", err)
		return
	}
	var last *uint16
	pcm := make([]int16, maxFrameSize)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.log.Warn("track read failed", "error", err)
			}
			return
		}
		m.handle(dec, pkt, pcm, &last)
	}
}

// handle decodes one packet and publishes it while running.
func (m *Mic) handle(dec Decoder, pkt *rtp.Packet, pcm []int16, last **uint16) {
	m.packets.Add(1)
	seq := pkt.SequenceNumber
	if *last != nil {
		if gap := seq - **last - 1; gap > 0 && gap < 1000 {
			m.lost.Add(int64(gap))
		}
	}
	*last = &seq

	if len(pkt.Payload) == 0 {
		return
	}
	n, err := dec.Decode(pkt.Payload, pcm)
	if err != nil {
		if m.decodeErrs.Add(1) <= 5 {
			m.log.Warn("opus decode failed", "bytes", len(pkt.Payload), "error", err)
		}
		return
	}

	// pcm is reused for the next packet.
	mono := audioio.Resample(append([]int16(nil), pcm[:n]...), opusRate, m.cfg.SampleRate)
	chunk := audioio.Chunk{
		Samples:    audioio.Interleave(mono, max(m.cfg.Channels, 1)),
		SampleRate: m.cfg.SampleRate,
		Channels:   max(m.cfg.Channels, 1),
	}
	m.publish(chunk)
}

func (m *Mic) publish(chunk audioio.Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	select {
	case m.streamCh <- chunk:
		m.samples.Add(int64(len(chunk.Samples)))
	default:
		m.overruns.Add(1)
	}
}

// Start begins delivering decoded audio.
func (m *Mic) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.running {
		return nil
	}
	m.running = true
	m.streamCh = make(chan audioio.Chunk, 32)
	return nil
}

// Stop halts delivery and closes the stream. The peer stays connected.
func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	close(m.streamCh)
	return nil
}

// Read returns the next chunk, or io.EOF after Stop.
func (m *Mic) Read(ctx context.Context) (audioio.Chunk, error) {
	ch := m.Stream()
	select {
	case <-ctx.Done():
		return audioio.Chunk{}, ctx.Err()
	case c, ok := <-ch:
		if !ok {
			return audioio.Chunk{}, io.EOF
		}
		return c, nil
	}
}

// Stream returns the chunk channel of the current run.
func (m *Mic) Stream() <-chan audioio.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

func (m *Mic) Config() audioio.Config { return m.cfg }
func (m *Mic) Name() string           { return string(audioio.BackendWebRTC) }

// Connected reports whether a browser peer is attached.
func (m *Mic) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pc != nil && m.pc.ConnectionState() == webrtc.PeerConnectionStateConnected
}

// Close stops delivery and hangs up the peer.
func (m *Mic) Close() error {
	_ = m.Stop()
	m.mu.Lock()
	m.closed = true
	pc := m.pc
	m.pc = nil
	m.mu.Unlock()
	if pc != nil {
		return pc.Close()
	}
	return nil
}

// Stats returns packet and capture counters.
func (m *Mic) Stats() Stats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	return Stats{
		SourceStats: audioio.SourceStats{
			ChunksRead:  m.packets.Load() - m.decodeErrs.Load(),
			SamplesRead: m.samples.Load(),
			Overruns:    m.overruns.Load(),
			Running:     running,
			Backend:     string(audioio.BackendWebRTC),
		},
		Packets:      m.packets.Load(),
		Lost:         m.lost.Load(),
		DecodeErrors: m.decodeErrs.Load(),
	}
}

// Stats extends the source counters with RTP counters.
type Stats struct {
	audioio.SourceStats
	Packets      int64 `json:"packets"`
	Lost         int64 `json:"lost"`
	DecodeErrors int64 `json:"decode_errors"`
}

var _ audioio.Source = (*Mic)(nil)
