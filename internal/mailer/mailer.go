// Package mailer sends submission notification emails. Rendering is a
// collaborator concern; this package only moves plain bodies. Send
// failures are the caller's to log — they never fail a submission.
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"
)

type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTP sends through a plain SMTP relay.
type SMTP struct {
	Addr string // host:port
	From string
	auth smtp.Auth
}

// NewFromEnv returns an SMTP mailer when SMTP_ADDR and SMTP_FROM are
// set, the log-only mailer when SMTP_ADDR=log, else nil (no email
// channel configured).
func NewFromEnv() Mailer {
	addr := os.Getenv("SMTP_ADDR")
	if addr == "log" {
		return Log{}
	}
	from := os.Getenv("SMTP_FROM")
	if addr == "" || from == "" {
		return nil
	}
	m := &SMTP{Addr: addr, From: from}
	if user := os.Getenv("SMTP_USER"); user != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		m.auth = smtp.PlainAuth("", user, os.Getenv("SMTP_PASS"), host)
	}
	return m
}

func (m *SMTP) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.From, strings.Join(to, ", "), subject, body)
	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(m.Addr, m.auth, m.From, to, []byte(msg)) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Log is a dev mailer that only records the send.
type Log struct{}

func (Log) Send(ctx context.Context, to []string, subject, body string) error {
	log.Printf("mailer: would send to=%d subject=%q bytes=%d", len(to), subject, len(body))
	return nil
}
