package email

import (
	"context"
	"io"
	"log/slog"
)

// DevSender implements EmailSender for local development: it logs the
// message instead of sending it, so verification codes and reset tokens
// show up in the console output.
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender creates a development email sender. A nil logger discards
// all output.
func NewDevSender(logger *slog.Logger) EmailSender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DevSender{logger: logger}
}

// SendEmail validates and logs the message.
func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "dev mailer: email not sent",
		slog.String("send_to", params.SendTo),
		slog.String("subject", params.Subject),
		slog.String("tag", params.Tag),
		slog.String("body_html", params.BodyHTML),
	)
	return nil
}
