package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// LogProvider writes emails to the logger instead of sending them. It is the
// default when no Resend API key is configured.
type LogProvider struct {
	Logger *slog.Logger
	// IncludeBodies also logs the rendered text body.
	IncludeBodies bool
}

// NewLogProvider creates a log-only provider.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{Logger: logger}
}

func (l *LogProvider) Name() string {
	return "log"
}

// Send logs the message and returns a synthetic message ID.
func (l *LogProvider) Send(ctx context.Context, msg Message) (SendResult, error) {
	fakeID := uuid.NewString()
	l.Logger.InfoContext(ctx, "mailer: email logged (not sent)",
		"provider", "log",
		"from", msg.From,
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"html_length", len(msg.HTML),
		"text_length", len(msg.Text),
		"tags", msg.Tags,
		"fake_message_id", fakeID,
	)
	if l.IncludeBodies && msg.Text != "" {
		l.Logger.InfoContext(ctx, "mailer: email text body", "text", msg.Text)
	}
	return SendResult{ProviderMessageID: fmt.Sprintf("log-%s", fakeID)}, nil
}
