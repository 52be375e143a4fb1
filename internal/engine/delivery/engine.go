// internal/engine/delivery/engine.go
package delivery

import (
	"context"
	"time"

	"merithire-engine/internal/channels"
	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/common/metrics"
	"merithire-engine/internal/models"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Engine walks saved searches sequentially and pushes pending alerts
// through the configured channels. Sequential processing keeps the
// delivery log deterministic and bounds load on external providers; the
// limiter paces individual provider calls on top of that.
type Engine struct {
	config   *Config
	store    Store
	channels map[models.Channel]channels.Channel
	audit    AuditEmitter
	limiter  *rate.Limiter
	logger   logger.Logger
	now      func() time.Time
}

func NewEngine(config *Config, store Store, chans []channels.Channel, audit AuditEmitter, log logger.Logger) *Engine {
	byName := make(map[models.Channel]channels.Channel, len(chans))
	for _, c := range chans {
		byName[c.Name()] = c
	}
	return &Engine{
		config:   config,
		store:    store,
		channels: byName,
		audit:    audit,
		limiter:  rate.NewLimiter(rate.Limit(config.ProviderRPS), config.ProviderBurst),
		logger:   log.WithFields(map[string]interface{}{"engine": "delivery"}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// digestDue applies the cadence gate: the local hour must have reached the
// search's digest hour and the cadence interval must have fully elapsed
// since the last digest, if there ever was one.
func (e *Engine) digestDue(s *models.SavedSearch, now time.Time) bool {
	if s.Cadence == models.CadenceInstant {
		return false
	}
	if now.In(e.config.Location).Hour() < s.DigestHour {
		return false
	}
	if s.LastDigestAt == nil {
		return true
	}
	interval := dailyInterval
	if s.Cadence == models.CadenceWeekly {
		interval = weeklyInterval
	}
	return now.Sub(*s.LastDigestAt) >= interval
}

// Preview reports what a run started now would attempt. It reads sent
// markers and digest cursors but never writes anything.
func (e *Engine) Preview(ctx context.Context, scope string) (*Preview, error) {
	now := e.now()

	searches, err := e.store.ListActiveSavedSearches(ctx, scope)
	if err != nil {
		return nil, errors.NewStoreQueryError("saved_searches", err)
	}

	p := &Preview{ByChannel: make(ChannelCounts)}
	for _, s := range searches {
		if !s.AnyChannelEnabled() {
			continue
		}
		p.Searches++

		alerts, err := e.store.ListPendingAlerts(ctx, s.ID)
		if err != nil {
			return nil, errors.NewStoreQueryError("job_alerts", err)
		}

		if s.Cadence == models.CadenceInstant {
			for _, ch := range models.Channels {
				n := countPending(alerts, s, ch)
				if n == 0 {
					continue
				}
				p.ByChannel[ch] += n
				p.Instant += n
				p.Total += n
			}
			continue
		}

		if !e.digestDue(s, now) {
			p.WaitingDigestSearches++
			continue
		}
		p.DueDigestSearches++
		for _, ch := range models.Channels {
			n := countPending(alerts, s, ch)
			if n == 0 {
				continue
			}
			p.ByChannel[ch] += n
			p.Digest += n
			p.Total += n
		}
	}
	return p, nil
}

// Run executes one delivery pass over a scope. Provider rejections are
// non-fatal and leave the alert pending for the next run; the only errors
// returned are store-read failures and provider configuration problems.
func (e *Engine) Run(ctx context.Context, scope string) (*RunSummary, error) {
	started := e.now()

	searches, err := e.store.ListActiveSavedSearches(ctx, scope)
	if err != nil {
		return nil, errors.NewStoreQueryError("saved_searches", err)
	}

	sum := &RunSummary{ByChannel: make(ChannelCounts), StartedAt: started}
	for _, s := range searches {
		if !s.AnyChannelEnabled() {
			continue
		}
		sum.Searches++

		alerts, err := e.store.ListPendingAlerts(ctx, s.ID)
		if err != nil {
			e.logger.Error("pending alert query failed", map[string]interface{}{
				"searchId": s.ID,
				"error":    err,
			})
			continue
		}

		if s.Cadence == models.CadenceInstant {
			if err := e.runInstant(ctx, s, alerts, sum); err != nil {
				return nil, err
			}
			continue
		}
		if !e.digestDue(s, started) {
			continue
		}
		if err := e.runDigest(ctx, s, alerts, started, sum); err != nil {
			return nil, err
		}
	}

	sum.Duration = e.now().Sub(started)
	metrics.DeliveryRunDuration.Observe(sum.Duration.Seconds())

	e.logger.Info("delivery run finished", map[string]interface{}{
		"scope":      scope,
		"searches":   sum.Searches,
		"attempted":  sum.Attempted,
		"accepted":   sum.Accepted,
		"rejected":   sum.Rejected,
		"digestRuns": sum.DigestRuns,
		"durationMs": sum.Duration.Milliseconds(),
	})
	return sum, nil
}

// runInstant sends each channel's pending alerts per the channel's instant
// semantics: email one message per alert, in-app one batched feed write,
// push per alert unless the search defers pushes into one batch.
func (e *Engine) runInstant(ctx context.Context, s *models.SavedSearch, alerts []*models.JobAlert, sum *RunSummary) error {
	for _, name := range models.Channels {
		if !s.ChannelEnabled(name) {
			continue
		}
		ch, err := e.channelFor(name)
		if err != nil {
			return err
		}
		pending := pendingOn(alerts, s, name)
		if len(pending) == 0 {
			continue
		}
		recipient, ok := e.recipientFor(ctx, name, s)
		if !ok {
			continue
		}

		switch {
		case name == models.ChannelInApp, name == models.ChannelPush && s.PushDeferred:
			msg := channels.BuildBatch(s, pending, recipient, models.KindInstant)
			e.deliver(ctx, ch, s, msg, pending, models.KindInstant, sum)
		default:
			for _, a := range pending {
				msg := channels.BuildInstant(s, a, recipient)
				e.deliver(ctx, ch, s, msg, []*models.JobAlert{a}, models.KindInstant, sum)
			}
		}
	}
	return nil
}

// runDigest batches all pending alerts per channel into one message each,
// then advances the digest cursor once anything was attempted. The cursor
// moves to the run start time, never backwards.
func (e *Engine) runDigest(ctx context.Context, s *models.SavedSearch, alerts []*models.JobAlert, runTime time.Time, sum *RunSummary) error {
	attempted := false
	for _, name := range models.Channels {
		if !s.ChannelEnabled(name) {
			continue
		}
		ch, err := e.channelFor(name)
		if err != nil {
			return err
		}
		pending := pendingOn(alerts, s, name)
		if len(pending) == 0 {
			continue
		}
		recipient, ok := e.recipientFor(ctx, name, s)
		if !ok {
			continue
		}
		msg := channels.BuildDigest(s, pending, recipient)
		e.deliver(ctx, ch, s, msg, pending, models.KindDigest, sum)
		attempted = true
	}

	if attempted {
		sum.DigestRuns++
		if err := e.store.AdvanceDigestCursor(ctx, s.ID, runTime); err != nil {
			e.logger.Error("digest cursor advance failed", map[string]interface{}{
				"searchId": s.ID,
				"error":    err,
			})
		}
	}
	return nil
}

// deliver performs one provider call covering len(alerts) alert-channel
// units: one delivery log row, one audit event, and sent markers only when
// the provider accepted. Marker write failures leave the alert eligible
// for the next run, same as a rejection.
func (e *Engine) deliver(ctx context.Context, ch channels.Channel, s *models.SavedSearch, msg *channels.Message, alerts []*models.JobAlert, kind models.DeliveryKind, sum *RunSummary) {
	if err := e.limiter.Wait(ctx); err != nil {
		e.logger.Warn("provider rate limiter interrupted", map[string]interface{}{
			"searchId": s.ID,
			"error":    err,
		})
		return
	}

	now := e.now()
	sendErr := ch.Send(ctx, msg)
	accepted := sendErr == nil

	n := len(alerts)
	sum.Attempted += n
	sum.ByChannel[ch.Name()] += n
	if kind == models.KindInstant {
		sum.Instant += n
	} else {
		sum.Digest += n
	}

	outcome := "accepted"
	if accepted {
		sum.Accepted += n
		for _, a := range alerts {
			if err := e.store.MarkAlertSent(ctx, a.ID, ch.Name(), now); err != nil {
				e.logger.Error("sent marker write failed", map[string]interface{}{
					"alertId": a.ID,
					"channel": string(ch.Name()),
					"error":   err,
				})
			}
		}
	} else {
		sum.Rejected += n
		outcome = "rejected"
		e.logger.Warn("provider rejected delivery", map[string]interface{}{
			"searchId": s.ID,
			"channel":  string(ch.Name()),
			"kind":     string(kind),
			"error":    sendErr,
		})
	}
	metrics.DeliveryAttempts.WithLabelValues(string(ch.Name()), string(kind), outcome).Add(float64(n))

	entry := &models.DeliveryLog{
		ID:         uuid.New().String(),
		SearchID:   s.ID,
		Channel:    ch.Name(),
		Kind:       kind,
		Provider:   ch.Provider(),
		Accepted:   accepted,
		Recipient:  msg.Recipient,
		Payload:    msg.Subject + "\n" + msg.Body,
		AlertCount: n,
		CreatedAt:  now,
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := e.store.AppendDeliveryLog(ctx, entry); err != nil {
		e.logger.Error("delivery log append failed", map[string]interface{}{
			"searchId": s.ID,
			"error":    err,
		})
	} else {
		sum.LogRows++
	}

	if err := e.audit.Emit(ctx, "alert.delivery.attempted", map[string]interface{}{
		"searchId":   s.ID,
		"channel":    string(ch.Name()),
		"kind":       string(kind),
		"provider":   ch.Provider(),
		"accepted":   accepted,
		"alertCount": n,
	}); err != nil {
		e.logger.Warn("audit emit failed", map[string]interface{}{
			"searchId": s.ID,
			"error":    err,
		})
	}
}

// channelFor resolves an enabled channel to its provider. An enabled
// channel with no configured provider is a configuration error, distinct
// from a delivery failure.
func (e *Engine) channelFor(name models.Channel) (channels.Channel, error) {
	ch, ok := e.channels[name]
	if !ok {
		return nil, errors.NewChannelConfigError(string(name), "no provider configured for enabled channel")
	}
	return ch, nil
}

// recipientFor resolves the delivery address. Email needs the user's
// address from the store; the other channels address the user id directly.
// A failed lookup skips the channel for this run.
func (e *Engine) recipientFor(ctx context.Context, name models.Channel, s *models.SavedSearch) (string, bool) {
	if name != models.ChannelEmail {
		return s.UserID, true
	}
	email, err := e.store.GetUserEmail(ctx, s.UserID)
	if err != nil || email == "" {
		e.logger.Warn("recipient email lookup failed", map[string]interface{}{
			"userId": s.UserID,
			"error":  err,
		})
		return "", false
	}
	return email, true
}

func countPending(alerts []*models.JobAlert, s *models.SavedSearch, ch models.Channel) int {
	n := 0
	for _, a := range alerts {
		if a.PendingOn(s, ch) {
			n++
		}
	}
	return n
}

func pendingOn(alerts []*models.JobAlert, s *models.SavedSearch, ch models.Channel) []*models.JobAlert {
	var out []*models.JobAlert
	for _, a := range alerts {
		if a.PendingOn(s, ch) {
			out = append(out, a)
		}
	}
	return out
}
