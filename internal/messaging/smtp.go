package messaging

import (
	"context"
	"fmt"
	"strconv"

	"returns-notifier/internal/common/config"

	"github.com/wneessen/go-mail"
)

// SMTPTransport sends email through an SMTP relay using go-mail.
type SMTPTransport struct {
	config config.SMTPConfig
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{config: cfg}
}

func (t *SMTPTransport) SendEmail(ctx context.Context, msg EmailMessage) error {
	m, err := buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(t.config.Port),
		mail.WithTLSPolicy(tlsPolicy(t.config.UseTLS)),
	}
	if t.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.config.Username),
			mail.WithPassword(t.config.Password),
		)
	}

	c, err := mail.NewClient(t.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func buildMessage(msg EmailMessage) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	m.SetGenHeader(mail.Header("X-Reseller-Id"), strconv.FormatInt(msg.ResellerID, 10))
	if msg.Event != "" {
		m.SetGenHeader(mail.Header("X-Notification-Event"), msg.Event)
	}
	return m, nil
}

func tlsPolicy(useTLS bool) mail.TLSPolicy {
	if useTLS {
		return mail.TLSMandatory
	}
	return mail.TLSOpportunistic
}
