// Package chat keeps the conversation transcript shown on the dashboard.
//
// The turn pipeline writes to a Display; Transcript is the in-memory
// implementation that also publishes every change as an Event.
package chat

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of messages a Transcript retains.
const DefaultLimit = 200

// Display receives the visible conversation.
type Display interface {
	AddMessage(text string, isUser bool)
	StartAIMessage()
	UpdateAIMessage(chunk string)
	EndAIMessage()
}

// Message is one chat bubble.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	User      bool      `json:"user"`
	Streaming bool      `json:"streaming,omitempty"`
	Time      time.Time `json:"time"`
}

// EventType names a transcript change.
type EventType string

const (
	EventAdd     EventType = "add"
	EventStart   EventType = "start"
	EventUpdate  EventType = "update"
	EventEnd     EventType = "end"
	EventInterim EventType = "interim"
	EventClear   EventType = "clear"
)

// Event is published for every transcript change. Chunk carries the
// fragment for updates and the live text for interim events.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Chunk   string    `json:"chunk,omitempty"`
}

// Publisher fans events out, typically a hub.Hub.
type Publisher interface {
	BroadcastJSON(v any) error
}

// Transcript is a bounded, concurrency-safe Display.
type Transcript struct {
	pub   Publisher
	limit int
	log   *slog.Logger

	mu       sync.Mutex
	messages []Message
	current  int // index of the streaming AI message, or -1
}

// NewTranscript creates a transcript. pub may be nil.
func NewTranscript(pub Publisher, limit int, logger *slog.Logger) *Transcript {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcript{
		pub:     pub,
		limit:   limit,
		log:     logger.With("component", "chat"),
		current: -1,
	}
}

// AddMessage appends a complete message.
func (t *Transcript) AddMessage(text string, isUser bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.mu.Lock()
	msg := t.appendLocked(text, isUser, false)
	t.mu.Unlock()
	t.publish(Event{Type: EventAdd, Message: &msg})
}

// StartAIMessage opens an empty assistant message that UpdateAIMessage
// extends. A message left open by a previous turn is closed first.
func (t *Transcript) StartAIMessage() {
	t.mu.Lock()
	if t.current >= 0 {
		t.messages[t.current].Streaming = false
	}
	msg := t.appendLocked("", false, true)
	t.current = len(t.messages) - 1
	t.mu.Unlock()
	t.publish(Event{Type: EventStart, Message: &msg})
}

// UpdateAIMessage appends chunk to the open assistant message.
func (t *Transcript) UpdateAIMessage(chunk string) {
	if chunk == "" {
		return
	}
	t.mu.Lock()
	if t.current < 0 {
		t.mu.Unlock()
		t.log.Debug("update without open message dropped")
		return
	}
	t.messages[t.current].Text += chunk
	msg := t.messages[t.current]
	t.mu.Unlock()
	t.publish(Event{Type: EventUpdate, Message: &msg, Chunk: chunk})
}

// EndAIMessage closes the open assistant message.
func (t *Transcript) EndAIMessage() {
	t.mu.Lock()
	if t.current < 0 {
		t.mu.Unlock()
		return
	}
	t.messages[t.current].Streaming = false
	msg := t.messages[t.current]
	t.current = -1
	t.mu.Unlock()
	t.publish(Event{Type: EventEnd, Message: &msg})
}

// SetInterim publishes the live partial transcript without storing it.
func (t *Transcript) SetInterim(text string) {
	t.publish(Event{Type: EventInterim, Chunk: text})
}

// Messages returns a copy of the retained messages.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages...)
}

// Clear drops every message.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.messages = nil
	t.current = -1
	t.mu.Unlock()
	t.publish(Event{Type: EventClear})
}

func (t *Transcript) appendLocked(text string, isUser, streaming bool) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Text:      text,
		User:      isUser,
		Streaming: streaming,
		Time:      time.Now(),
	}
	t.messages = append(t.messages, msg)
	if over := len(t.messages) - t.limit; over > 0 {
		t.messages = append([]Message(nil), t.messages[over:]...)
		if t.current >= 0 {
			t.current = max(t.current-over, -1)
		}
	}
	return msg
}

func (t *Transcript) publish(ev Event) {
	if t.pub == nil {
		return
	}
	if err := t.pub.BroadcastJSON(ev); err != nil {
		t.log.Warn("publish failed", "type", ev.Type, "error", err)
	}
}

var _ Display = (*Transcript)(nil)
