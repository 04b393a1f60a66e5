package mail

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/logging"
)

// LogTransport writes messages to the logger instead of sending them.
// Meant for development, where nobody should receive real email.
type LogTransport struct {
	logger logging.Logger
}

func NewLogTransport(l logging.Logger) *LogTransport {
	return &LogTransport{logger: l.With("module", "mail")}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.Info(ctx, "mail not sent (log transport)", "to", msg.To, "subject", msg.Subject, "html", msg.HTML)
	return nil
}
