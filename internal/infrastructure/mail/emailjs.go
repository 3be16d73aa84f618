package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vault-approval-service/internal/domain/notification"

	"go.uber.org/zap"
)

// EmailJS sends templated mail through an EmailJS-compatible REST endpoint.
type EmailJS struct {
	endpoint  string
	serviceID string
	publicKey string
	client    *http.Client
}

func NewEmailJS(endpoint, serviceID, publicKey string, timeout time.Duration) *EmailJS {
	return &EmailJS{
		endpoint:  endpoint,
		serviceID: serviceID,
		publicKey: publicKey,
		client:    &http.Client{Timeout: timeout},
	}
}

type sendPayload struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

func (m *EmailJS) Send(ctx context.Context, msg notification.Message) error {
	params := make(map[string]string, len(msg.Params)+2)
	for k, v := range msg.Params {
		params[k] = v
	}
	params["to_email"] = msg.To
	params["to_name"] = msg.ToName

	body, err := json.Marshal(sendPayload{
		ServiceID:      m.serviceID,
		TemplateID:     msg.TemplateID,
		UserID:         m.publicKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("mail: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail: %s: %s", resp.Status, bytes.TrimSpace(b))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// LogMailer only logs outgoing mail. Used when no mail service is configured.
type LogMailer struct{ log *zap.Logger }

func NewLogMailer(log *zap.Logger) *LogMailer { return &LogMailer{log: log} }

func (m *LogMailer) Send(_ context.Context, msg notification.Message) error {
	m.log.Info("mail not configured; dropping message",
		zap.String("template", msg.TemplateID),
		zap.String("to", msg.To),
	)
	return nil
}
