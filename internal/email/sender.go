// Package email implements newsletter delivery (C11) and the draft-ready
// notifier (C12): rendering, recipient filtering, daily-cap enforcement,
// tracking/unsubscribe link injection, and retried SMTP sends.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"time"
)

// Message is a single rendered outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender dispatches one rendered message. Implementations must return
// promptly on failure — retries are the caller's responsibility, not
// the sender's.
type Sender interface {
	Send(ctx context.Context, from string, msg Message) error
}

// SMTPSender sends through a configured relay using net/smtp. No
// third-party mail client appears anywhere in the example pack this
// module draws on, so this is the one ambient concern built directly on
// the standard library — ecosystem MTA/API clients (SES, SendGrid,
// Mailgun) all require an account-specific API key this module has no
// config surface for, where net/smtp against a relay host:port is the
// generic case every self-hosted SMTP relay (including most managed
// providers' SMTP compatibility mode) supports.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (s *SMTPSender) Send(ctx context.Context, from string, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	body := buildMIME(from, msg)
	return smtp.SendMail(addr, auth, from, []string{msg.To}, body)
}

func buildMIME(from string, msg Message) []byte {
	boundary := "creatorpulse-boundary"
	var b []byte
	b = append(b, []byte(fmt.Sprintf("From: %s\r\n", from))...)
	b = append(b, []byte(fmt.Sprintf("To: %s\r\n", msg.To))...)
	b = append(b, []byte(fmt.Sprintf("Subject: %s\r\n", msg.Subject))...)
	b = append(b, []byte("MIME-Version: 1.0\r\n")...)
	b = append(b, []byte(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary))...)
	b = append(b, []byte(fmt.Sprintf("--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n\r\n", boundary, msg.Text))...)
	b = append(b, []byte(fmt.Sprintf("--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n\r\n", boundary, msg.HTML))...)
	b = append(b, []byte(fmt.Sprintf("--%s--\r\n", boundary))...)
	return b
}

var retryBackoffs = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
