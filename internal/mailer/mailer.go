// Package mailer delivers outbound email. The HTTP layer never sends
// directly; it publishes messages to the broker and the worker drains them
// through a Mailer.
package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/warapp/apiserver/config"
)

// Message is a plain-text outbound email.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Mailer sends a single message. Delivery and retry semantics belong to the
// transport behind it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through a plain SMTP relay (Mailcatcher in dev).
type SMTPMailer struct {
	addr string
	auth smtp.Auth
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
	}
}

// Send delivers the message. The envelope sender/recipient are the bare
// addresses; display names stay in the headers only.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from, err := bareAddress(msg.From)
	if err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	to, err := bareAddress(msg.To)
	if err != nil {
		return fmt.Errorf("invalid to address: %w", err)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", msg.From)
	fmt.Fprintf(&body, "To: %s\r\n", msg.To)
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	body.WriteString("MIME-Version: 1.0\r\n")
	body.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	body.WriteString("\r\n")
	body.WriteString(msg.Text)

	return smtp.SendMail(m.addr, m.auth, from, []string{to}, []byte(body.String()))
}

func bareAddress(value string) (string, error) {
	parsed, err := mail.ParseAddress(value)
	if err != nil {
		return "", err
	}
	return parsed.Address, nil
}
