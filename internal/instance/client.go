// Package instance provisions the tenant's remote messaging instance
// through the automation webhooks and the Evolution management API.
package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

const (
	createPath  = "/webhook/instanciaevolution"
	confirmPath = "/webhook/confirma"
	refreshPath = "/webhook/atualizar-qr-code"

	// maxCodeBytes bounds the connection code image we are willing to
	// buffer from the provisioning webhook.
	maxCodeBytes = 4 << 20
)

// ConnectionCode is the scannable code returned on creation.
type ConnectionCode struct {
	Data        []byte
	ContentType string
}

// ConnectionStatus is the polled confirmation outcome.
type ConnectionStatus string

const (
	StatusConfirmed ConnectionStatus = "confirmed"
	StatusPending   ConnectionStatus = "pending"
)

// Client drives instance provisioning.
type Client struct {
	webhookBase string
	apiBase     string
	apiKey      string
	http        *http.Client
	logger      *logger.Logger
}

// NewClient creates a provisioning client.
func NewClient(webhookBase, apiBase, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		webhookBase: webhookBase,
		apiBase:     apiBase,
		apiKey:      apiKey,
		http:        &http.Client{Timeout: timeout},
		logger:      log,
	}
}

type createRequest struct {
	InstanceName string `json:"instanceName"`
	TenantID     string `json:"tenant_id"`
	Email        string `json:"email"`
}

// Create provisions a new instance and returns the scannable connection
// code image produced by the provisioning backend.
func (c *Client) Create(ctx context.Context, instanceName, tenantID, email string) (*ConnectionCode, error) {
	body, err := json.Marshal(createRequest{InstanceName: instanceName, TenantID: tenantID, Email: email})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookBase+createPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instance creation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("instance creation returned status %d: %s", resp.StatusCode, string(msg))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCodeBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read connection code: %w", err)
	}

	return &ConnectionCode{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

type confirmRequest struct {
	InstanceName string `json:"instanceName"`
}

type confirmResponse struct {
	Respond string `json:"respond"`
}

// Confirm polls the connection confirmation webhook. The backend answers
// "positivo" once the instance has been scanned and linked.
func (c *Client) Confirm(ctx context.Context, instanceName string) (ConnectionStatus, error) {
	body, err := json.Marshal(confirmRequest{InstanceName: instanceName})
	if err != nil {
		return StatusPending, fmt.Errorf("failed to marshal confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookBase+confirmPath, bytes.NewReader(body))
	if err != nil {
		return StatusPending, fmt.Errorf("failed to build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusPending, fmt.Errorf("confirmation call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StatusPending, fmt.Errorf("confirmation returned status %d", resp.StatusCode)
	}

	var cr confirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return StatusPending, fmt.Errorf("failed to decode confirmation response: %w", err)
	}

	if cr.Respond == "positivo" {
		return StatusConfirmed, nil
	}
	return StatusPending, nil
}

// RefreshCode requests a new connection code for a pending instance.
func (c *Client) RefreshCode(ctx context.Context, instanceName string) (*ConnectionCode, error) {
	body, err := json.Marshal(confirmRequest{InstanceName: instanceName})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookBase+refreshPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("code refresh failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("code refresh returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCodeBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read refreshed code: %w", err)
	}

	return &ConnectionCode{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Remove logs the instance out and deletes it from the Evolution API.
// A failed logout is tolerated; deletion is what matters.
func (c *Client) Remove(ctx context.Context, instanceName string) error {
	if err := c.apiDelete(ctx, "/instance/logout/"+instanceName); err != nil {
		c.logger.Warn("instance logout failed; continuing with delete",
			zap.String("instance", instanceName),
			zap.Error(err),
		)
	}
	if err := c.apiDelete(ctx, "/instance/delete/"+instanceName); err != nil {
		return fmt.Errorf("instance deletion failed: %w", err)
	}
	return nil
}

func (c *Client) apiDelete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
