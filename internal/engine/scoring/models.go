// internal/engine/scoring/models.go
package scoring

import (
	"time"

	"merithire-engine/internal/models"
)

// Answer is one submitted screener answer, paired with the prompt it answers.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Input carries everything evaluate needs. The abuse counters come from the
// shared ledger so multiple instances see the same window.
type Input struct {
	Job                     *models.JobPosting
	Applicant               *models.ApplicantProfile
	Answers                 []Answer
	RecentApplicationCount  int // applications by this applicant in the last 15 minutes
	PriorAbuseEventCount    int // abuse events for the submitting address in 24h
	Now                     time.Time
}

// Result is the full scoring outcome. Evaluate never fails; degenerate
// inputs produce conservative scores, not errors.
type Result struct {
	AutoRankScore     int      `json:"autoRankScore"` // 0-100
	RiskScore         int      `json:"riskScore"`     // 0-100
	RiskFlags         []string `json:"riskFlags"`
	NeedsManualReview bool     `json:"needsManualReview"`
	RequiredPassed    bool     `json:"requiredPassed"`
	BlockForAbuse     bool     `json:"blockForAbuse"`

	RequiredScore  int `json:"requiredScore"`  // required prompts passed
	PreferredScore int `json:"preferredScore"` // preferred prompts passed

	MissingRequiredSkills  []string `json:"missingRequiredSkills"`
	MissingPreferredSkills []string `json:"missingPreferredSkills"`

	MatchExplanation string   `json:"matchExplanation"`
	Suggestions      []string `json:"suggestions"`
	AnswersSnapshot  string   `json:"answersSnapshot"`
}
