// Package mailer sends transactional account mail through the Resend HTTP
// API. There is no official Go SDK, so the client speaks the REST endpoint
// directly.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.resend.com"

// Mailer sends the account-lifecycle emails the user routes need.
type Mailer interface {
	SendCreatePassword(ctx context.Context, to string) error
	SendForgotPassword(ctx context.Context, to string) error
}

// Nop discards mail. Used when no API key is configured.
type Nop struct{}

func (Nop) SendCreatePassword(context.Context, string) error { return nil }
func (Nop) SendForgotPassword(context.Context, string) error { return nil }

// Client is a Resend HTTP API client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	sender     string
	appURL     string
	baseURL    string
}

func New(apiKey, sender, appURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		sender:     sender,
		appURL:     appURL,
		baseURL:    defaultBaseURL,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendCreatePassword invites a newly created user to set their password.
func (c *Client) SendCreatePassword(ctx context.Context, to string) error {
	body := fmt.Sprintf(`<p>An account was created for you. <a href="%s/create-password">Set your password</a> to sign in.</p>`, c.appURL)
	return c.send(ctx, to, "Set up your account", body)
}

// SendForgotPassword sends a password reset link.
func (c *Client) SendForgotPassword(ctx context.Context, to string) error {
	body := fmt.Sprintf(`<p><a href="%s/forgot-password">Reset your password</a>. If you did not request this, ignore this mail.</p>`, c.appURL)
	return c.send(ctx, to, "Password reset", body)
}

func (c *Client) send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(sendRequest{
		From:    c.sender,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("mailer.send: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer.send: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer.send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailer.send: status %d: %s", resp.StatusCode, b)
	}

	return nil
}
