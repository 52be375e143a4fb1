// internal/models/job.go
package models

import "time"

// JobPosting is the hiring-side record a candidate applies to.
type JobPosting struct {
	ID                 string    `json:"id"`
	CompanyID          string    `json:"companyId"`
	Title              string    `json:"title"`
	MeritFit           int       `json:"meritFit"` // 0-100 baseline desirability
	RequiredScreeners  []string  `json:"requiredScreeners"`
	PreferredScreeners []string  `json:"preferredScreeners"`
	RequiredSkills     []string  `json:"requiredSkills"`
	PreferredSkills    []string  `json:"preferredSkills"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ApplicantProfile is the candidate-side record used for scoring.
type ApplicantProfile struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Skills            []string  `json:"skills"`
	Completeness      int       `json:"completeness"` // 0-100
	PreviouslyFlagged bool      `json:"previouslyFlagged"`
	CreatedAt         time.Time `json:"createdAt"`
}
