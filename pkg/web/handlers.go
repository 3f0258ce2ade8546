package web

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-orb/pkg/audio"
	"github.com/teslashibe/go-orb/pkg/hub"
	"github.com/teslashibe/go-orb/pkg/inference"
	"github.com/teslashibe/go-orb/pkg/orb"
	"github.com/teslashibe/go-orb/pkg/tts"
	"github.com/teslashibe/go-orb/pkg/turn"
)

const sessionTimeout = 15 * time.Second

var errNotConfigured = fiber.NewError(fiber.StatusServiceUnavailable, "not configured")

func jsonMessage(v any) (hub.Message, bool) {
	msg, err := hub.JSON(v)
	return msg, err == nil
}

// receiveChat accepts typed input sent on the chat socket.
func (s *Server) receiveChat(data []byte) {
	var msg struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "say" {
		return
	}
	d := s.collaborators()
	if d.Turns == nil {
		return
	}
	if err := d.Turns.Submit(s.context(), msg.Text); err != nil {
		s.PublishError(err)
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.stateHub.ClientCount() + s.chatHub.ClientCount() + s.framesHub.ClientCount(),
	})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.State())
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Chat == nil {
		return errNotConfigured
	}
	return c.JSON(d.Chat.Messages())
}

func (s *Server) handleClearChat(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Chat == nil {
		return errNotConfigured
	}
	d.Chat.Clear()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleGesture unlocks audio. The browser posts it from a click.
func (s *Server) handleGesture(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Audio == nil {
		return errNotConfigured
	}
	if err := d.Audio.Gesture(c.UserContext()); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	s.PublishState()
	return c.JSON(fiber.Map{"audio": d.Audio.State().String()})
}

func (s *Server) handleAudio(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Audio == nil {
		return errNotConfigured
	}
	var err error
	switch c.Params("action") {
	case "suspend":
		err = d.Audio.Suspend()
	case "resume":
		err = d.Audio.Resume(c.UserContext())
	default:
		return fiber.NewError(fiber.StatusNotFound, "unknown action")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	s.PublishState()
	return c.JSON(fiber.Map{"audio": d.Audio.State().String()})
}

func (s *Server) handleListen(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Listener == nil || d.Audio == nil {
		return errNotConfigured
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	if !req.Enabled {
		d.Listener.Disable()
	} else {
		if d.Audio.State() != audio.StateReady {
			return fiber.NewError(fiber.StatusConflict, "audio not unlocked")
		}
		if err := d.Listener.Enable(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
	}
	s.PublishState()
	return c.JSON(d.Listener.Snapshot())
}

func (s *Server) handleSay(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Turns == nil {
		return errNotConfigured
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	err := d.Turns.Submit(s.context(), req.Text)
	switch {
	case errors.Is(err, turn.ErrEmptyInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, turn.ErrBusy):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case err != nil:
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

func (s *Server) handleInterrupt(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Turns == nil {
		return errNotConfigured
	}
	d.Turns.Interrupt()
	return c.JSON(fiber.Map{"interrupted": true})
}

func (s *Server) handleVariants(c *fiber.Ctx) error {
	names := make([]string, 0, len(orb.Variants()))
	for _, v := range orb.Variants() {
		names = append(names, string(v))
	}
	return c.JSON(names)
}

func (s *Server) handleVariant(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Orb == nil {
		return errNotConfigured
	}
	var req struct {
		Variant string `json:"variant"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	v, err := orb.ParseVariant(req.Variant)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := d.Orb.Swap(v); err != nil {
		return orbError(err)
	}
	s.PublishState()
	return c.JSON(d.Orb.State())
}

func (s *Server) handleOrbConfig(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Orb == nil {
		return errNotConfigured
	}
	var p orb.Partial
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := d.Orb.Reconfigure(p); err != nil {
		return orbError(err)
	}
	s.PublishState()
	return c.JSON(d.Orb.State())
}

func orbError(err error) error {
	switch {
	case errors.Is(err, orb.ErrInvalidConfig), errors.Is(err, orb.ErrUnknownVariant):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, orb.ErrNoSurface):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

func (s *Server) handleVoices(c *fiber.Ctx) error {
	d := s.collaborators()
	current := ""
	if d.Voice != nil {
		current = d.Voice.Voice()
	}
	return c.JSON(fiber.Map{
		"current":    current,
		"openai":     tts.OpenAIVoices,
		"elevenlabs": slices.Sorted(maps.Keys(tts.ElevenLabsVoices)),
	})
}

func (s *Server) handleVoice(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Voice == nil {
		return errNotConfigured
	}
	var req struct {
		Voice string `json:"voice"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := d.Voice.SetVoice(req.Voice); err != nil {
		if errors.Is(err, tts.ErrUnknownVoice) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}
	s.PublishState()
	return c.JSON(fiber.Map{"voice": d.Voice.Voice()})
}

func (s *Server) handleAssistants(c *fiber.Ctx) error {
	return c.JSON(inference.Assistants)
}

// handleSession opens a 1mind session and speaks its greeting.
func (s *Server) handleSession(c *fiber.Ctx) error {
	d := s.collaborators()
	if d.Sessions == nil {
		return errNotConfigured
	}
	var req struct {
		AIID string `json:"aiId"`
	}
	if err := c.BodyParser(&req); err != nil || req.AIID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "aiId required")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), sessionTimeout)
	defer cancel()
	sess, err := d.Sessions.StartSession(ctx, req.AIID)
	if err != nil {
		s.log.Warn("session start failed", "ai_id", req.AIID, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	if sess.Greeting != "" && d.Turns != nil {
		go func() {
			if err := d.Turns.Greet(s.context(), sess.Greeting); err != nil {
				s.log.Warn("greeting failed", "error", err)
			}
		}()
	}
	s.PublishState()
	return c.JSON(sess)
}
