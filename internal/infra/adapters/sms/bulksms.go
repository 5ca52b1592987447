package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"counselling-payments/internal/config"
	"counselling-payments/internal/domain/ports/adapter"
)

var _ adapter.SMSSender = (*BulkSMSClient)(nil)

var ErrMissingCredentials = errors.New("sms api credentials not configured")

// BulkSMSClient sends transactional SMS through a BulkSMS-style HTTP GET API.
type BulkSMSClient struct {
	apiURL      string
	apiID       string
	apiPassword string
	senderID    string
	templateID  string
	client      *http.Client
}

func NewBulkSMSClient(cfg config.SMSConfig) *BulkSMSClient {
	return &BulkSMSClient{
		apiURL:      cfg.APIURL,
		apiID:       cfg.APIID,
		apiPassword: cfg.APIPassword,
		senderID:    cfg.SenderID,
		templateID:  cfg.TemplateID,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers message to phone. An empty templateID uses the configured one.
func (c *BulkSMSClient) Send(ctx context.Context, phone, templateID, message string) error {
	if c.apiID == "" || c.apiPassword == "" {
		return ErrMissingCredentials
	}
	number := digitsOnly(phone)
	if number == "" {
		return fmt.Errorf("sms: no digits in phone number")
	}
	if templateID == "" {
		templateID = c.templateID
	}

	q := url.Values{}
	q.Set("api_id", c.apiID)
	q.Set("api_password", c.apiPassword)
	q.Set("sms_type", "Transactional")
	q.Set("sms_encoding", "text")
	q.Set("sender", c.senderID)
	q.Set("number", number)
	q.Set("message", message)
	q.Set("template_id", templateID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// digitsOnly strips spaces, '+' and punctuation from a phone number.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
