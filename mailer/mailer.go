// Package mailer dispatches bulk transactional campaigns over SMTP. It
// reuses the worker orchestrator for bounded concurrency, batching with
// inter-batch pacing, and per-message retries; unlike the prober it actually
// delivers (DATA), so campaigns are fire-and-record.
package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig points the dispatcher at a submission server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Message is one rendered email. TextBody is the plain-text alternative;
// when empty a stub is substituted so text-only clients see something.
type Message struct {
	ToEmail  string `json:"to_email" validate:"required,email"`
	Subject  string `json:"subject" validate:"required,max=200"`
	HTMLBody string `json:"html_body" validate:"required"`
	TextBody string `json:"text_body,omitempty"`
}

// Campaign is a batch send request.
type Campaign struct {
	FromEmail string    `validate:"required,email"`
	FromName  string    `validate:"omitempty,max=100"`
	Messages  []Message `validate:"required,min=1,dive"`

	// BatchSize and BatchDelay space the sends out so the remote side
	// does not read the campaign as abuse. Zero BatchSize sends in one go.
	BatchSize  int
	BatchDelay time.Duration

	MaxRetries     int
	MaxConcurrency int

	// SendTimeout bounds each delivery attempt, teardown included. Zero
	// means defaultSendTimeout.
	SendTimeout time.Duration
}

const defaultSendTimeout = 30 * time.Second

// SendError wraps a delivery failure. Always retryable: the orchestrator's
// budget, not the error class, bounds re-attempts.
type SendError struct {
	Recipient string
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Recipient, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports that delivery may be re-attempted.
func (e *SendError) Retryable() bool { return true }

// build renders the multipart/alternative message.
func build(c Campaign, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	if c.FromName != "" {
		m.SetHeader("From", m.FormatAddress(c.FromEmail, c.FromName))
	} else {
		m.SetHeader("From", c.FromEmail)
	}
	m.SetHeader("To", msg.ToEmail)
	m.SetHeader("Subject", msg.Subject)

	text := msg.TextBody
	if text == "" {
		text = "Enable HTML to view this email."
	}
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", msg.HTMLBody)
	return m
}
