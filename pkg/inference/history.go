package inference

import "sync"

// History is the bounded conversation context: one leading system message
// plus the most recent user/assistant exchanges. It is safe for concurrent
// use.
type History struct {
	mu       sync.Mutex
	system   Message
	turns    []Message
	maxPairs int
}

// NewHistory creates a history. An empty prompt selects
// DefaultSystemPrompt and maxPairs <= 0 selects DefaultHistoryLength.
func NewHistory(systemPrompt string, maxPairs int) *History {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if maxPairs <= 0 {
		maxPairs = DefaultHistoryLength
	}
	return &History{
		system:   NewSystemMessage(systemPrompt),
		maxPairs: maxPairs,
	}
}

// SetSystemPrompt replaces the system message. An empty prompt restores the
// default.
func (h *History) SetSystemPrompt(prompt string) {
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.system = NewSystemMessage(prompt)
}

// BindSession replaces the system message with the 1mind session directive.
func (h *History) BindSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.system = NewSystemMessage(SessionDirective(sessionID))
}

// Add records one exchange and drops the oldest beyond the bound.
func (h *History) Add(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, NewUserMessage(user), NewAssistantMessage(assistant))
	if limit := h.maxPairs * 2; len(h.turns) > limit {
		h.turns = append([]Message(nil), h.turns[len(h.turns)-limit:]...)
	}
}

// Messages returns the system message followed by the retained exchanges.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Message, 0, len(h.turns)+1)
	out = append(out, h.system)
	return append(out, h.turns...)
}

// System returns the current system message.
func (h *History) System() Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.system
}

// Pairs returns the number of retained exchanges.
func (h *History) Pairs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns) / 2
}

// Clear drops all exchanges and keeps the system message.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
