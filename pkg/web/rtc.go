package web

import (
	"encoding/json"
	"sync"

	rtcws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pion/webrtc/v3"
)

// signal is a browser microphone signaling message.
type signal struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// signalConn serializes writes from the read loop and ICE callbacks.
type signalConn struct {
	conn *rtcws.Conn
	mu   sync.Mutex
}

func (c *signalConn) send(msg signal) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(rtcws.TextMessage, data)
}

func (s *Server) rtcHandler() fiber.Handler {
	return rtcws.New(s.handleRTC)
}

// handleRTC negotiates the browser microphone: offers are answered and
// trickled candidates flow both ways.
func (s *Server) handleRTC(c *rtcws.Conn) {
	d := s.collaborators()
	if d.Mic == nil {
		_ = c.WriteMessage(rtcws.TextMessage, []byte(`{"type":"error","error":"microphone not configured"}`))
		return
	}

	out := &signalConn{conn: c}
	d.Mic.OnCandidate(func(cand webrtc.ICECandidateInit) {
		if err := out.send(signal{Type: "candidate", Candidate: &cand}); err != nil {
			s.log.Debug("send candidate", "error", err)
		}
	})
	defer d.Mic.OnCandidate(nil)
	s.log.Info("rtc signaling connected")

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			s.log.Debug("rtc signaling closed", "error", err)
			return
		}

		var msg signal
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = out.send(signal{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "offer":
			answer, err := d.Mic.Answer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP})
			if err != nil {
				s.log.Warn("rtc answer failed", "error", err)
				_ = out.send(signal{Type: "error", Error: err.Error()})
				continue
			}
			_ = out.send(signal{Type: "answer", SDP: answer.SDP})
		case "candidate":
			if msg.Candidate == nil {
				continue
			}
			if err := d.Mic.AddCandidate(*msg.Candidate); err != nil {
				s.log.Debug("add candidate", "error", err)
			}
		default:
			_ = out.send(signal{Type: "error", Error: "unknown type " + msg.Type})
		}
		s.PublishState()
	}
}
