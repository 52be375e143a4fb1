// internal/abuse/ledger.go

// Package abuse keeps the shared risk counters behind the scoring inputs.
// Counters live in redis with window TTLs so every instance sees the same
// velocity numbers, instead of process-local state.
package abuse

import (
	"context"
	"fmt"
	"time"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	// applicationWindow matches the velocity rule lookback.
	applicationWindow = 15 * time.Minute
	// ipWindow matches the network-address history lookback.
	ipWindow = 24 * time.Hour
)

type Ledger struct {
	client *redis.Client
	logger logger.Logger
}

func NewLedger(client *redis.Client, log logger.Logger) *Ledger {
	return &Ledger{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "abuse-ledger"}),
	}
}

func applicationKey(applicantID string) string {
	return fmt.Sprintf("abuse:apps:%s", applicantID)
}

func ipKey(addr string) string {
	return fmt.Sprintf("abuse:ip:%s", addr)
}

// RecordApplication bumps the applicant's submission counter and returns
// the count inside the current window. The TTL is set on first increment
// only, so the window does not slide.
func (l *Ledger) RecordApplication(ctx context.Context, applicantID string) (int, error) {
	return l.increment(ctx, applicationKey(applicantID), applicationWindow)
}

// RecentApplicationCount reads the applicant's submission count without
// touching the counter.
func (l *Ledger) RecentApplicationCount(ctx context.Context, applicantID string) (int, error) {
	return l.read(ctx, applicationKey(applicantID))
}

// RecordAbuseEvent bumps the 24h abuse counter for a network address.
func (l *Ledger) RecordAbuseEvent(ctx context.Context, addr string) (int, error) {
	return l.increment(ctx, ipKey(addr), ipWindow)
}

// AbuseEventCount reads the 24h abuse counter for a network address.
func (l *Ledger) AbuseEventCount(ctx context.Context, addr string) (int, error) {
	return l.read(ctx, ipKey(addr))
}

func (l *Ledger) increment(ctx context.Context, key string, window time.Duration) (int, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.NewLedgerUnavailableError(err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			l.logger.Error("ledger expiry set failed", map[string]interface{}{
				"key":   key,
				"error": err,
			})
		}
	}
	return int(count), nil
}

func (l *Ledger) read(ctx context.Context, key string) (int, error) {
	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewLedgerUnavailableError(err)
	}
	return count, nil
}
