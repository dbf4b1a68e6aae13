package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rentnest/rentnest/internal/config"
	"github.com/sirupsen/logrus"
)

// Client sends text messages through a Fast2SMS-compatible bulk API.
type Client struct {
	endpoint string
	apiKey   string
	senderID string
	client   *http.Client
	logger   *logrus.Logger
}

func NewClient(cfg *config.SMSConfig, logger *logrus.Logger) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

type sendRequest struct {
	Route    string `json:"route"`
	SenderID string `json:"sender_id,omitempty"`
	Message  string `json:"message"`
	Numbers  string `json:"numbers"`
}

type sendResponse struct {
	Return    bool            `json:"return"`
	RequestID string          `json:"request_id"`
	Message   json.RawMessage `json:"message"`
}

// Send delivers body to the phone given in "+<cc><number>" form and returns
// the gateway request id.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("sms api key is not configured")
	}

	payload, err := json.Marshal(sendRequest{
		Route:    "q",
		SenderID: c.senderID,
		Message:  body,
		Numbers:  localNumber(to),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("sms gateway returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode sms response: %w", err)
	}
	if !out.Return {
		return "", fmt.Errorf("sms gateway rejected message: %s", strings.TrimSpace(string(out.Message)))
	}

	c.logger.WithField("request_id", out.RequestID).Debug("SMS accepted by gateway")
	return out.RequestID, nil
}

// localNumber strips the country code; the gateway expects bare 10 digit
// numbers.
func localNumber(phone string) string {
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) > 10 {
		return phone[len(phone)-10:]
	}
	return phone
}
