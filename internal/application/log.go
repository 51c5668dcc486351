package application

import (
	"sync"

	"salon-assistant/internal/domain"
)

// MessageReader is the read side of the conversation history given to
// front-ends. Only the orchestrator appends.
type MessageReader interface {
	Messages() []domain.Message
	Since(n int) []domain.Message
	Len() int
}

// MessageLog is the ordered, append-only conversation history.
type MessageLog struct {
	mu       sync.RWMutex
	messages []domain.Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Append(msg domain.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// Messages returns a copy of the log in display order.
func (l *MessageLog) Messages() []domain.Message {
	return l.Since(0)
}

// Since returns the messages appended after the first n.
func (l *MessageLog) Since(n int) []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(l.messages) {
		return []domain.Message{}
	}
	result := make([]domain.Message, len(l.messages)-n)
	copy(result, l.messages[n:])
	return result
}

func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// readOnly wraps a MessageLog so a type assertion cannot recover Append.
type readOnly struct {
	log *MessageLog
}

func (r readOnly) Messages() []domain.Message   { return r.log.Messages() }
func (r readOnly) Since(n int) []domain.Message { return r.log.Since(n) }
func (r readOnly) Len() int                     { return r.log.Len() }
