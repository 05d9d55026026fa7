// FilePath: internal/messenger/memory.go
package messenger

import (
	"context"
	"sync"

	apierrors "github.com/residential-power/outagewatch/internal/errors"
)

// Sent records one SendText call observed by an InMemory messenger.
type Sent struct {
	ChatID    string
	Text      string
	ParseMode string
}

// InMemory is a test double: no real messenger platform is integrated in
// this core. Blocked chat IDs return a permanent error; errored chat IDs
// return a transient one.
type InMemory struct {
	mu       sync.Mutex
	sent     []Sent
	blocked  map[string]bool
	errored  map[string]bool
}

// NewInMemory constructs an InMemory messenger double.
func NewInMemory() *InMemory {
	return &InMemory{
		blocked: make(map[string]bool),
		errored: make(map[string]bool),
	}
}

// Block makes subsequent sends to chatID fail with a permanent error, as if
// the user had blocked the bot.
func (m *InMemory) Block(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[chatID] = true
}

// FailTransiently makes subsequent sends to chatID fail with a transient
// error, as if the platform returned a 5xx/429.
func (m *InMemory) FailTransiently(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errored[chatID] = true
}

// Sent returns every message recorded so far, for test assertions.
func (m *InMemory) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *InMemory) SendText(ctx context.Context, chatID, text, parseMode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.blocked[chatID] {
		return apierrors.NewPermanentError("chat blocked the bot", nil)
	}
	if m.errored[chatID] {
		return apierrors.NewTransientError("messenger platform unavailable", nil)
	}
	m.sent = append(m.sent, Sent{ChatID: chatID, Text: text, ParseMode: parseMode})
	return nil
}

func (m *InMemory) Broadcast(ctx context.Context, chatIDs []string, text, parseMode string) error {
	for _, id := range chatIDs {
		if err := m.SendText(ctx, id, text, parseMode); err != nil {
			return err
		}
	}
	return nil
}
