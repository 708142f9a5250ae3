// Package notify delivers operational notices from the scheduler to
// whoever runs the bot.
package notify

import "context"

// Notification is one notice: a short subject plus detail.
type Notification struct {
	Subject string
	Body    string
}

// Notifier delivers notifications.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}
