// internal/audit/emitter.go

// Package audit forwards delivery and submission events to an external
// audit webhook. Emission is fire and forget; callers log failures and
// move on.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/httpx"
	"merithire-engine/internal/common/logger"

	"github.com/google/uuid"
)

type event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	EmittedAt string                 `json:"emittedAt"`
}

type WebhookEmitter struct {
	client     *httpx.Client
	webhookURL string
	logger     logger.Logger
}

func NewWebhookEmitter(webhookURL string, timeout time.Duration, log logger.Logger) *WebhookEmitter {
	return &WebhookEmitter{
		client:     httpx.NewClient(timeout),
		webhookURL: webhookURL,
		logger:     log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (e *WebhookEmitter) Emit(ctx context.Context, eventType string, payload map[string]interface{}) error {
	body, err := json.Marshal(event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		EmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.NewAuditEmitError(eventType, err)
	}

	req, err := http.NewRequest(http.MethodPost, e.webhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.NewAuditEmitError(eventType, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.DoWithContext(ctx, req)
	if err != nil {
		return errors.NewAuditEmitError(eventType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.NewAuditEmitError(eventType, fmt.Errorf("webhook returned %d", resp.StatusCode))
	}
	return nil
}
