// Package botctl invokes the external bot control webhooks that actually
// silence or reactivate the remote agent for a conversation.
package botctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/afiliado-ai/agent-dashboard/pkg/metrics"
)

const (
	pausePath   = "/webhook/pausa_bot"
	resumePath  = "/webhook/inicia_bot"
	messagePath = "/webhook/envia_mensagem"
)

// Controller is the remote bot control surface. Calls are best-effort
// automation: any 2xx is success and failures are never retried
// automatically.
type Controller interface {
	PauseBot(ctx context.Context, phoneNumber string, durationSeconds int64, reason string) error
	ResumeBot(ctx context.Context, phoneNumber string) error
}

// Sender delivers an operator-authored message through the automation
// layer, optionally pausing the bot afterwards.
type Sender interface {
	SendMessage(ctx context.Context, phoneNumber, message, operatorID string, pauseSeconds *int64) error
}

// Client calls the bot control webhooks over HTTP.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a webhook client against the automation base URL.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

type pauseBody struct {
	PhoneNumber string `json:"phoneNumber"`
	Duration    *int64 `json:"duration"`
	Reason      string `json:"reason"`
	Unit        string `json:"unit"`
}

type resumeBody struct {
	PhoneNumber string `json:"phoneNumber"`
}

type messageBody struct {
	Phone         string `json:"phone"`
	Message       string `json:"message"`
	PauseDuration *int64 `json:"pauseDuration"`
	AuthUserID    string `json:"auth_user_id"`
}

// PauseBot asks the automation layer to stop responding to a conversation.
// durationSeconds of zero means an indefinite pause.
func (c *Client) PauseBot(ctx context.Context, phoneNumber string, durationSeconds int64, reason string) error {
	body := pauseBody{
		PhoneNumber: phoneNumber,
		Reason:      reason,
		Unit:        "seconds",
	}
	if durationSeconds > 0 {
		body.Duration = &durationSeconds
	}
	return c.post(ctx, "pause", pausePath, body)
}

// ResumeBot asks the automation layer to start responding again.
func (c *Client) ResumeBot(ctx context.Context, phoneNumber string) error {
	return c.post(ctx, "resume", resumePath, resumeBody{PhoneNumber: phoneNumber})
}

// SendMessage delivers an operator message through the automation layer.
// A nil pauseSeconds sends without pausing the bot.
func (c *Client) SendMessage(ctx context.Context, phoneNumber, message, operatorID string, pauseSeconds *int64) error {
	return c.post(ctx, "send_message", messagePath, messageBody{
		Phone:         phoneNumber,
		Message:       message,
		PauseDuration: pauseSeconds,
		AuthUserID:    operatorID,
	})
}

func (c *Client) post(ctx context.Context, action, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s webhook body: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build %s webhook request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.WebhookCalls.WithLabelValues(action, "error").Inc()
		return fmt.Errorf("%s webhook call failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.WebhookCalls.WithLabelValues(action, "error").Inc()
		return fmt.Errorf("%s webhook returned status %d", action, resp.StatusCode)
	}

	metrics.WebhookCalls.WithLabelValues(action, "ok").Inc()
	return nil
}
