// internal/models/application.go
package models

import "time"

// ApplicationStatus values mirror the application_status enum in PostgreSQL.
type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "applied"
	StatusInterview ApplicationStatus = "interview"
	StatusOffer     ApplicationStatus = "offer"
	StatusRejected  ApplicationStatus = "rejected"
)

// Application is created once at submission time and never rescored.
// Exactly one row exists per (applicant, job) pair.
type Application struct {
	ID                string            `json:"id"`
	ApplicantID       string            `json:"applicantId"`
	JobID             string            `json:"jobId"`
	CompanyID         string            `json:"companyId"`
	Status            ApplicationStatus `json:"status"`
	AutoRankScore     int               `json:"autoRankScore"` // 0-100
	RiskScore         int               `json:"riskScore"`     // 0-100
	RiskFlags         []string          `json:"riskFlags"`
	NeedsManualReview bool              `json:"needsManualReview"`
	RequiredPassed    bool              `json:"requiredPassed"`
	MeritFit          int               `json:"meritFit"` // denormalized from the job posting
	AnswersSnapshot   string            `json:"answersSnapshot"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// Interview is mutated only by the rebalancing apply step (owner reassignment).
type Interview struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	CandidateID   string    `json:"candidateId"`
	CompanyID     string    `json:"companyId"`
	Owner         string    `json:"owner"` // interviewer identity
	ScheduledAt   time.Time `json:"scheduledAt"`
}

// AbuseEvent is the only record persisted for a blocked submission.
type AbuseEvent struct {
	ID          string    `json:"id"`
	ApplicantID string    `json:"applicantId"`
	IPAddress   string    `json:"ipAddress"`
	Reason      string    `json:"reason"`
	RiskScore   int       `json:"riskScore"`
	CreatedAt   time.Time `json:"createdAt"`
}
