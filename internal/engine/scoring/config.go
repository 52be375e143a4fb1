// internal/engine/scoring/config.go
package scoring

// Scoring thresholds and weights. Values are behavior contracts; changing
// them changes ranking output for every new application.
const (
	manualReviewRiskThreshold = 45
	blockRiskThreshold        = 72

	promptTokenMinLen = 3
	promptTokenMax    = 8
	skillTokenMinLen  = 4

	answerSnapshotMaxLen = 220

	weightMeritFit       = 0.52
	weightRequiredRatio  = 28.0
	weightPreferredRatio = 12.0
	weightCompleteness   = 0.12
	penaltyMissingReq    = 7.0
	penaltyMissingPref   = 2.0
	penaltyRisk          = 0.24

	// Default preferred ratio when a job has no preferred screeners. This is
	// asymmetric with the required case (1.0); preserved as observed behavior.
	defaultPreferredRatio = 0.6
)

// Risk rule points and flags.
const (
	FlagHighVelocity      = "high_application_velocity"
	FlagExtremeVelocity   = "extreme_application_velocity"
	FlagNewAccount        = "new_account"
	FlagVeryNewAccount    = "very_new_account"
	FlagIPHistory         = "ip_history_flagged"
	FlagPreviouslyFlagged = "user_previously_flagged"
	FlagMissingAnswers    = "missing_required_answers"
)

const (
	velocityHighThreshold    = 6
	velocityExtremeThreshold = 12
	pointsHighVelocity       = 22
	pointsExtremeVelocity    = 20
	pointsNewAccount         = 18
	pointsVeryNewAccount     = 18
	pointsPerIPEvent         = 6
	pointsIPEventCap         = 24
	pointsPreviouslyFlagged  = 26
	pointsMissingAnswers     = 10
)
