package notifier

import (
	"context"

	"github.com/nkbelov/moviestore/internal/logger"
)

// LogSender writes messages to the log instead of delivering them. Used when
// no SMTP host is configured.
type LogSender struct {
	Logger logger.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Logger.Info("Email (not delivered, SMTP not configured)",
		"to", m.To,
		"subject", m.Subject,
		"body", m.Body,
	)
	return nil
}
