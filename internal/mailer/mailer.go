// Package mailer sends ticket emails through the Resend HTTP API.
// When no API key is configured it degrades to logging the email,
// which keeps local development working without outbound mail.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const resendAPI = "https://api.resend.com/emails"

// Attachment is a file attached to an outgoing email.  Resend expects
// base64-encoded content.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Email is a fully composed outgoing message.
type Email struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Mailer delivers a composed email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// ResendMailer implements Mailer against the Resend HTTP API.
type ResendMailer struct {
	apiKey string
	from   string
	hc     *http.Client
	log    *slog.Logger
}

func NewResendMailer(apiKey, from string, hc *http.Client, log *slog.Logger) *ResendMailer {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ResendMailer{apiKey: apiKey, from: from, hc: hc, log: log}
}

type resendPayload struct {
	From string `json:"from"`
	Email
}

// Send posts the email to Resend.  Without an API key the email is
// logged instead so the delivery pipeline stays observable.
func (m *ResendMailer) Send(ctx context.Context, e Email) error {
	if m.apiKey == "" {
		m.log.Info("mock email (RESEND_API_KEY unset)",
			"to", e.To,
			"subject", e.Subject,
			"attachments", len(e.Attachments),
		)
		return nil
	}

	body, err := json.Marshal(resendPayload{From: m.from, Email: e})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendAPI, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
