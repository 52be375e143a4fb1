// internal/engine/pipeline/models.go
package pipeline

import (
	"context"
	"time"

	"merithire-engine/internal/models"
)

// Store is the record-store surface the pipeline engine needs. Conditional
// updates commit only when the current value still matches the snapshot.
type Store interface {
	ListOpenApplications(ctx context.Context, scope string) ([]*models.Application, error)
	ListUpcomingInterviews(ctx context.Context, scope string, after time.Time) ([]*models.Interview, error)
	UpdateApplicationStatusIf(ctx context.Context, id string, expected, next models.ApplicationStatus) (bool, error)
	ReassignInterviewIf(ctx context.Context, id string, expectedOwner, nextOwner string) (bool, error)
}

// Priority orders recommendations; higher rank sorts first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Recommendation is one suggested stage transition.
type Recommendation struct {
	ApplicationID string                   `json:"applicationId"`
	From          models.ApplicationStatus `json:"from"`
	To            models.ApplicationStatus `json:"to"`
	Priority      Priority                 `json:"priority"`
	Confidence    float64                  `json:"confidence"`
	Reason        string                   `json:"reason"`
}

// LoadLevel classifies an interviewer against the mean scheduled count.
type LoadLevel string

const (
	LoadHigh     LoadLevel = "high"
	LoadBalanced LoadLevel = "balanced"
	LoadLow      LoadLevel = "low"
)

// LoadStat summarizes one interviewer's upcoming schedule.
type LoadStat struct {
	Owner     string    `json:"owner"`
	Scheduled int       `json:"scheduled"`
	LoadLevel LoadLevel `json:"loadLevel"`
}

// RebalanceSuggestion is one proposed interview reassignment.
type RebalanceSuggestion struct {
	InterviewID string `json:"interviewId"`
	FromOwner   string `json:"fromOwner"`
	ToOwner     string `json:"toOwner"`
	Reason      string `json:"reason"`
}

// Snapshot is the read-only automation view; computing it mutates nothing.
type Snapshot struct {
	Recommendations      []Recommendation      `json:"recommendations"`
	LoadStats            []LoadStat            `json:"loadStats"`
	RebalanceSuggestions []RebalanceSuggestion `json:"rebalanceSuggestions"`
}

// RunResult reports the bounded apply step. Stale conditional updates are
// skipped silently and simply not counted.
type RunResult struct {
	AppliedStatusUpdates int              `json:"appliedStatusUpdates"`
	MovedInterviews      int              `json:"movedInterviews"`
	Applied              []Recommendation `json:"applied"`
}
