// internal/engine/pipeline/engine.go
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/common/metrics"
	"merithire-engine/internal/models"
)

// Engine computes stage-transition recommendations and interviewer
// rebalancing suggestions, and applies them as bounded conditional updates.
type Engine struct {
	config *Config
	store  Store
	logger logger.Logger
	now    func() time.Time
}

func NewEngine(config *Config, store Store, log logger.Logger) *Engine {
	return &Engine{
		config: config,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"engine": "pipeline"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// stageRule is one row of the recommendation state machine. Rules are
// evaluated in order; first match wins.
type stageRule struct {
	from       models.ApplicationStatus
	to         models.ApplicationStatus
	priority   Priority
	confidence float64
	matches    func(cfg *Config, a *models.Application, age time.Duration) bool
	reason     string
}

var stageRules = []stageRule{
	{
		from: models.StatusApplied, to: models.StatusInterview,
		priority: PriorityHigh, confidence: 0.92,
		matches: func(_ *Config, a *models.Application, _ time.Duration) bool {
			return a.MeritFit >= 90
		},
		reason: "merit fit at or above 90",
	},
	{
		from: models.StatusApplied, to: models.StatusInterview,
		priority: PriorityMedium, confidence: 0.81,
		matches: func(cfg *Config, a *models.Application, age time.Duration) bool {
			return a.MeritFit >= 82 && age >= cfg.InterviewAfter
		},
		reason: "merit fit at or above 82 and waiting 4+ days",
	},
	{
		from: models.StatusApplied, to: models.StatusRejected,
		priority: PriorityMedium, confidence: 0.76,
		matches: func(cfg *Config, a *models.Application, age time.Duration) bool {
			return a.MeritFit < 70 && age >= cfg.RejectAfter
		},
		reason: "merit fit below 70 and stale for 12+ days",
	},
	{
		from: models.StatusInterview, to: models.StatusOffer,
		priority: PriorityHigh, confidence: 0.87,
		matches: func(cfg *Config, a *models.Application, age time.Duration) bool {
			return a.MeritFit >= 88 && age >= cfg.OfferAfter
		},
		reason: "merit fit at or above 88 and interviewing 10+ days",
	},
	{
		from: models.StatusInterview, to: models.StatusRejected,
		priority: PriorityLow, confidence: 0.68,
		matches: func(cfg *Config, a *models.Application, age time.Duration) bool {
			return a.MeritFit < 75 && age >= cfg.StaleRejectAfter
		},
		reason: "merit fit below 75 and interviewing 21+ days",
	},
}

// Snapshot computes the current automation view for a scope. Pure read.
func (e *Engine) Snapshot(ctx context.Context, scope string) (*Snapshot, error) {
	now := e.now()

	apps, err := e.store.ListOpenApplications(ctx, scope)
	if err != nil {
		return nil, err
	}
	interviews, err := e.store.ListUpcomingInterviews(ctx, scope, now)
	if err != nil {
		return nil, err
	}

	recs := e.recommend(apps, now)
	stats := e.loadStats(interviews)
	moves := e.rebalance(stats, interviews)

	e.logger.Info("pipeline snapshot computed", map[string]interface{}{
		"scope":           scope,
		"applications":    len(apps),
		"recommendations": len(recs),
		"interviewers":    len(stats),
		"suggestedMoves":  len(moves),
	})

	return &Snapshot{
		Recommendations:      recs,
		LoadStats:            stats,
		RebalanceSuggestions: moves,
	}, nil
}

// recommend evaluates the stage state machine per application. No
// recommendation is emitted when no rule matches or the target equals the
// current status.
func (e *Engine) recommend(apps []*models.Application, now time.Time) []Recommendation {
	var recs []Recommendation
	for _, a := range apps {
		age := now.Sub(a.CreatedAt)
		for _, rule := range stageRules {
			if rule.from != a.Status {
				continue
			}
			if !rule.matches(e.config, a, age) {
				continue
			}
			if rule.to == a.Status {
				break
			}
			recs = append(recs, Recommendation{
				ApplicationID: a.ID,
				From:          a.Status,
				To:            rule.to,
				Priority:      rule.priority,
				Confidence:    rule.confidence,
				Reason:        rule.reason,
			})
			metrics.PipelineRecommendations.WithLabelValues(string(rule.priority)).Inc()
			break // first matching rule wins
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := priorityRank(recs[i].Priority), priorityRank(recs[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return recs[i].Confidence > recs[j].Confidence
	})

	return recs
}

// Apply takes the top-N recommendations and rebalance suggestions from a
// fresh snapshot and applies each as a conditional update. A record whose
// current value no longer matches the snapshot is skipped silently; the gap
// between read and write is not transactional, which is acceptable here
// because the next automation run recomputes everything.
func (e *Engine) Apply(ctx context.Context, scope string, applyLimit, rebalanceLimit int) (*RunResult, error) {
	snap, err := e.Snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}

	recs := snap.Recommendations
	if applyLimit >= 0 && len(recs) > applyLimit {
		recs = recs[:applyLimit]
	}
	for _, rec := range recs {
		updated, err := e.store.UpdateApplicationStatusIf(ctx, rec.ApplicationID, rec.From, rec.To)
		if err != nil {
			metrics.PipelineApplied.WithLabelValues("status", "error").Inc()
			e.logger.Error("status update failed", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"error":         err,
			})
			continue
		}
		if !updated {
			metrics.PipelineApplied.WithLabelValues("status", "stale").Inc()
			continue
		}
		metrics.PipelineApplied.WithLabelValues("status", "applied").Inc()
		result.AppliedStatusUpdates++
		result.Applied = append(result.Applied, rec)
	}

	moves := snap.RebalanceSuggestions
	if rebalanceLimit >= 0 && len(moves) > rebalanceLimit {
		moves = moves[:rebalanceLimit]
	}
	for _, move := range moves {
		moved, err := e.store.ReassignInterviewIf(ctx, move.InterviewID, move.FromOwner, move.ToOwner)
		if err != nil {
			metrics.PipelineApplied.WithLabelValues("rebalance", "error").Inc()
			e.logger.Error("interview reassignment failed", map[string]interface{}{
				"interviewId": move.InterviewID,
				"error":       err,
			})
			continue
		}
		if !moved {
			metrics.PipelineApplied.WithLabelValues("rebalance", "stale").Inc()
			continue
		}
		metrics.PipelineApplied.WithLabelValues("rebalance", "applied").Inc()
		result.MovedInterviews++
	}

	e.logger.Info("pipeline automation applied", map[string]interface{}{
		"scope":                scope,
		"appliedStatusUpdates": result.AppliedStatusUpdates,
		"movedInterviews":      result.MovedInterviews,
	})

	return result, nil
}

// reasonForMove formats the before/after counts a suggestion carries.
func reasonForMove(from string, fromBefore, fromAfter int, to string, toBefore, toAfter int) string {
	return fmt.Sprintf("rebalance: %s (%d->%d) to %s (%d->%d)",
		from, fromBefore, fromAfter, to, toBefore, toAfter)
}
