package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailSender is the subset of *sendgrid.Client used here.
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier delivers notifications as email through SendGrid.
type SendGridNotifier struct {
	client mailSender
	from   *mail.Email
	logger *slog.Logger
}

// NewSendGridNotifier constructs an email notifier for the given API key.
func NewSendGridNotifier(apiKey, fromAddress, fromName string, logger *slog.Logger) (*SendGridNotifier, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("notify: sendgrid api key is required")
	}
	return newSendGridNotifier(sendgrid.NewSendClient(apiKey), fromAddress, fromName, logger), nil
}

func newSendGridNotifier(client mailSender, fromAddress, fromName string, logger *slog.Logger) *SendGridNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridNotifier{
		client: client,
		from:   mail.NewEmail(fromName, fromAddress),
		logger: logger.With(slog.String("component", "notify.sendgrid")),
	}
}

func (n *SendGridNotifier) Notify(ctx context.Context, to string, kind Kind, data Data) error {
	const op = "notify.SendGridNotifier.Notify"

	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%s: empty recipient address", op)
	}

	msg, err := Render(kind, data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	email := mail.NewSingleEmail(n.from, msg.Subject, mail.NewEmail("", to), msg.Text, msg.HTML)
	email.SetHeader("X-Notification-Kind", string(kind))

	resp, err := n.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: send: %w", op, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: sendgrid returned %d: %s", op, resp.StatusCode, resp.Body)
	}

	n.logger.DebugContext(ctx, "email sent",
		slog.String("kind", string(kind)),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
