// FilePath: internal/messenger/messenger.go
package messenger

import "context"

// Messenger sends text to chat recipients on whatever platform the
// deployment wires in. Errors must be classified via IsTransient/IsPermanent
// from internal/errors so the notifier can decide whether to retry or mark
// the subscriber inactive.
type Messenger interface {
	SendText(ctx context.Context, chatID, text, parseMode string) error
	Broadcast(ctx context.Context, chatIDs []string, text, parseMode string) error
}
