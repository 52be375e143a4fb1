// internal/engine/delivery/models.go
package delivery

import (
	"context"
	"time"

	"merithire-engine/internal/models"
)

// Store is the persistence surface the delivery engine needs. Sent markers
// and digest cursors are the only mutations besides the append-only log.
type Store interface {
	ListActiveSavedSearches(ctx context.Context, scope string) ([]*models.SavedSearch, error)
	ListPendingAlerts(ctx context.Context, searchID string) ([]*models.JobAlert, error)
	GetUserEmail(ctx context.Context, userID string) (string, error)
	MarkAlertSent(ctx context.Context, alertID string, ch models.Channel, at time.Time) error
	AdvanceDigestCursor(ctx context.Context, searchID string, at time.Time) error
	AppendDeliveryLog(ctx context.Context, entry *models.DeliveryLog) error
}

// AuditEmitter forwards delivery events to the external audit collaborator.
// Emission is best effort; failures never abort a run.
type AuditEmitter interface {
	Emit(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// ChannelCounts is an attempted-delivery tally keyed by channel. A batched
// send of N alerts counts N, matching the per-alert instant count.
type ChannelCounts map[models.Channel]int

// Preview is the dry-run view: what a run started now would attempt.
// Computing it reads state and changes nothing.
type Preview struct {
	Searches              int           `json:"searches"`
	DueDigestSearches     int           `json:"dueDigestSearches"`
	WaitingDigestSearches int           `json:"waitingDigestSearches"`
	ByChannel             ChannelCounts `json:"byChannel"`
	Instant               int           `json:"instant"`
	Digest                int           `json:"digest"`
	Total                 int           `json:"total"`
}

// RunSummary reports one delivery run. Attempted uses the same per-alert
// unit as Preview so the two are directly comparable.
type RunSummary struct {
	Searches   int           `json:"searches"`
	Attempted  int           `json:"attempted"`
	Accepted   int           `json:"accepted"`
	Rejected   int           `json:"rejected"`
	Instant    int           `json:"instant"`
	Digest     int           `json:"digest"`
	ByChannel  ChannelCounts `json:"byChannel"`
	DigestRuns int           `json:"digestRuns"`
	LogRows    int           `json:"logRows"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}
