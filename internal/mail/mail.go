// Package mail delivers transactional email. Without an SMTP host configured, messages are
// written to the log instead.
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"studyhub/internal/config"
	"studyhub/internal/logging"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

func NewSender(cfg config.MailConfig) (Sender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return LogSender{}, nil
	}
	return NewSMTPSender(cfg)
}

type SMTPSender struct {
	client *gomail.Client
	from   string
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	return s.client.DialAndSendWithContext(ctx, m)
}

type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	logging.Ctx(ctx).Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Body).
		Msg("mail not configured, logging message")
	return nil
}

// PasswordReset builds the reset mail. link already contains the raw token.
func PasswordReset(to, link string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Password reset token",
		Body: "You are receiving this email because a password reset was requested for your account.\n\n" +
			"Submit your new password to:\n\n" + link + "\n\n" +
			fmt.Sprintf("The link expires in %s. If you did not request it, ignore this email.", ttl),
	}
}
