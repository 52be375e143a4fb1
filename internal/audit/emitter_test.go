// internal/audit/emitter_test.go
package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_PostsEventJSON(t *testing.T) {
	var received event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	emitter := NewWebhookEmitter(server.URL, 5*time.Second, logger.NewTestLogger(t))
	err := emitter.Emit(context.Background(), "alert.delivery.attempted", map[string]interface{}{
		"searchId": "search-001",
		"accepted": true,
	})

	require.NoError(t, err)
	assert.Equal(t, "alert.delivery.attempted", received.Type)
	assert.Equal(t, "search-001", received.Payload["searchId"])
	assert.NotEmpty(t, received.ID)
	assert.NotEmpty(t, received.EmittedAt)
}

func TestEmit_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	emitter := NewWebhookEmitter(server.URL, 5*time.Second, logger.NewTestLogger(t))
	err := emitter.Emit(context.Background(), "alert.delivery.attempted", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuditEmitFailed))
}

func TestEmit_UnreachableWebhook(t *testing.T) {
	emitter := NewWebhookEmitter("http://127.0.0.1:1/audit", time.Second, logger.NewNoOpLogger())
	err := emitter.Emit(context.Background(), "alert.delivery.attempted", nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuditEmitFailed))
}
