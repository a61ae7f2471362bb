package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"newsletter-backend/utils"
)

const serverTokenHeader = "X-Postmark-Server-Token"

// Client talks to a Postmark-style transactional email API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sender     string
	authToken  string
}

func NewClient(baseURL, sender, authToken string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		sender:     sender,
		authToken:  authToken,
	}
}

// NewClientFromEnv builds a client from EMAIL_BASE_URL, EMAIL_SENDER,
// EMAIL_AUTH_TOKEN and EMAIL_TIMEOUT_MS (default 10s).
func NewClientFromEnv() (*Client, error) {
	baseURL := os.Getenv("EMAIL_BASE_URL")
	sender := os.Getenv("EMAIL_SENDER")
	if baseURL == "" || sender == "" {
		return nil, errors.New("email client not configured (set EMAIL_BASE_URL and EMAIL_SENDER)")
	}
	timeout := time.Duration(utils.ParseIntDefault(os.Getenv("EMAIL_TIMEOUT_MS"), 10000)) * time.Millisecond
	return NewClient(baseURL, sender, os.Getenv("EMAIL_AUTH_TOKEN"), timeout), nil
}

type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendEmail posts one message to the delivery API. Any non-2xx reply is an error.
func (c *Client) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	payload, err := json.Marshal(sendEmailRequest{
		From:     c.sender,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("encoding email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set(serverTokenHeader, c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email API returned %d for %s", resp.StatusCode, to)
	}
	return nil
}
