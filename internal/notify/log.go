package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log, tagged with
// the operator handle they would be addressed to. Bluesky has no
// public DM API yet; when one lands this is the seam to replace.
type LogNotifier struct {
	toHandle string
}

// NewLogNotifier creates a LogNotifier addressed to handle.
func NewLogNotifier(handle string) *LogNotifier {
	return &LogNotifier{toHandle: handle}
}

// Send logs the notification.
func (l *LogNotifier) Send(ctx context.Context, notification Notification) error {
	slog.Info("notification",
		"to", l.toHandle,
		"subject", notification.Subject,
		"body", notification.Body,
	)
	return nil
}
