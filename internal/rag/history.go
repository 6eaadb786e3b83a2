package rag

import (
	"sync"

	"github.com/MrWong99/vellum/pkg/provider/llm"
)

// DefaultHistoryLimit bounds a ConversationLog when no limit is given.
const DefaultHistoryLimit = 10

// ConversationLog keeps the most recent exchange messages in memory. It is
// purely observational: nothing in the answer path reads it, and it is lost
// on restart. Safe for concurrent use.
type ConversationLog struct {
	mu    sync.Mutex
	limit int
	msgs  []llm.Message
}

// NewConversationLog creates a log bounded to limit messages. Limits below
// one fall back to [DefaultHistoryLimit].
func NewConversationLog(limit int) *ConversationLog {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	return &ConversationLog{limit: limit}
}

// Add appends a message, evicting the oldest once the limit is exceeded.
func (l *ConversationLog) Add(role, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, llm.Message{Role: role, Content: content})
	if len(l.msgs) > l.limit {
		l.msgs = l.msgs[len(l.msgs)-l.limit:]
	}
}

// History returns a copy of the retained messages, oldest first.
func (l *ConversationLog) History() []llm.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]llm.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Clear drops all retained messages.
func (l *ConversationLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
}
