package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"promowheel/pkg/config"
	"promowheel/services/tenant"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 10 * time.Second

// Sender delivers one text message through a tenant's WhatsApp gateway.
type Sender interface {
	Send(ctx context.Context, cfg tenant.WhatsAppConfig, phone, message string) error
}

type whatsAppSender struct {
	client  *http.Client
	baseURL string
}

func NewSender(cfg *config.Config) Sender {
	timeout := cfg.Notification.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &whatsAppSender{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(cfg.Notification.WhatsAppBaseURL, "/"),
	}
}

type textMessage struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (s *whatsAppSender) endpoint(cfg tenant.WhatsAppConfig) string {
	base := strings.TrimRight(cfg.APIURL, "/")
	if base == "" {
		base = s.baseURL
	}
	return base + "/messages"
}

func (s *whatsAppSender) Send(ctx context.Context, cfg tenant.WhatsAppConfig, phone, message string) error {
	msg := textMessage{From: cfg.SenderID, To: phone, Type: "text"}
	msg.Text.Body = message

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(cfg), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
