// internal/engine/submission/models.go
package submission

import (
	"context"

	"merithire-engine/internal/engine/scoring"
	"merithire-engine/internal/models"
)

// Submission is the raw application payload from the submitting surface.
type Submission struct {
	ApplicantID string           `json:"applicantId"`
	JobID       string           `json:"jobId"`
	IPAddress   string           `json:"ipAddress"`
	Answers     []scoring.Answer `json:"answers,omitempty"`
}

// Store is the persistence surface for submissions. CreateApplication must
// enforce the one-row-per-(applicant,job) constraint and report violations
// as DUPLICATE_APPLICATION.
type Store interface {
	GetJobPosting(ctx context.Context, id string) (*models.JobPosting, error)
	GetApplicantProfile(ctx context.Context, id string) (*models.ApplicantProfile, error)
	GetApplicationByApplicantJob(ctx context.Context, applicantID, jobID string) (*models.Application, error)
	CreateApplication(ctx context.Context, app *models.Application) error
	InsertAbuseEvent(ctx context.Context, event *models.AbuseEvent) error
}

// Ledger is the shared abuse counter store backing the velocity and
// network-address scoring inputs.
type Ledger interface {
	RecordApplication(ctx context.Context, applicantID string) (int, error)
	AbuseEventCount(ctx context.Context, addr string) (int, error)
	RecordAbuseEvent(ctx context.Context, addr string) (int, error)
}

// Outcome reports a completed submission. Existing marks an idempotent
// re-submission returning the stored record unchanged.
type Outcome struct {
	Application *models.Application `json:"application"`
	Result      *scoring.Result     `json:"result,omitempty"`
	Existing    bool                `json:"existing"`
}
