// Package mailer is the outbound mail transport: a Postmark-style JSON API
// client, the Sender interface the rest of the service depends on, and a
// recording mock for tests.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Attachment is a file attached to a message.
type Attachment struct {
	Name        string `json:"Name"`
	Content     string `json:"Content"` // base64
	ContentType string `json:"ContentType"`
}

// Message is a single outbound email to one recipient.
type Message struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends mail through an HTTP mail API.
type Client struct {
	apiURL      string
	serverToken string
	from        string
	fromName    string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient creates a mail API client.
func NewClient(apiURL, serverToken, from, fromName string, opts ...Option) *Client {
	c := &Client{
		apiURL:      apiURL,
		serverToken: serverToken,
		from:        from,
		fromName:    fromName,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type apiEmail struct {
	From        string       `json:"From"`
	To          string       `json:"To"`
	Subject     string       `json:"Subject"`
	TextBody    string       `json:"TextBody"`
	HtmlBody    string       `json:"HtmlBody,omitempty"`
	Attachments []Attachment `json:"Attachments,omitempty"`
}

// Send delivers a single message. A non-2xx API response is returned as an
// error; the caller decides how one failed recipient affects the rest.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Configured() {
		return fmt.Errorf("mailer not configured: missing server token")
	}

	payload := apiEmail{
		From:        fmt.Sprintf("%s <%s>", c.fromName, c.from),
		To:          msg.To,
		Subject:     msg.Subject,
		TextBody:    msg.Text,
		HtmlBody:    msg.HTML,
		Attachments: msg.Attachments,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send email to %s: status %d: %s", msg.To, resp.StatusCode, detail)
	}
	return nil
}

// MockSender is a test double for Sender.
type MockSender struct {
	mu       sync.Mutex
	sent     []Message
	FailFor  map[string]bool // recipients that should fail
	FailAll  bool
	FailWith string
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{FailFor: make(map[string]bool)}
}

// Send records the message and optionally fails.
func (m *MockSender) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll || m.FailFor[msg.To] {
		reason := m.FailWith
		if reason == "" {
			reason = "mock send failure"
		}
		return errors.New(reason)
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *MockSender) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
