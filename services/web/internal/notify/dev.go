package notify

import (
	"context"

	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/google/uuid"
)

// DevMailer logs messages instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (DevMailer) Send(ctx context.Context, toEmail, toName, subject, text, _ string) (string, error) {
	id := "dev-" + uuid.NewString()
	logger.InfoContext(ctx, "📧 [DEV MAIL]",
		"id", id,
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return id, nil
}
