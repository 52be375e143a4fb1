// internal/engine/scoring/engine.go
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/common/metrics"
	"merithire-engine/internal/models"
)

// Engine scores a new application for fit and fraud risk at submission time.
// It is pure: no side effects, no store access, always returns a result.
type Engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	return &Engine{
		logger: log.WithFields(map[string]interface{}{"engine": "scoring"}),
	}
}

// Evaluate produces the ranking score, risk score and review/block decisions
// for one submission. Applications are scored exactly once, at creation.
func (e *Engine) Evaluate(input *Input) *Result {
	job := input.Job
	if job == nil {
		job = &models.JobPosting{}
	}
	applicant := input.Applicant
	if applicant == nil {
		applicant = &models.ApplicantProfile{}
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	requiredScore := e.countPassed(job.RequiredScreeners, input.Answers)
	preferredScore := e.countPassed(job.PreferredScreeners, input.Answers)
	requiredPassed := len(job.RequiredScreeners) == 0 || requiredScore >= len(job.RequiredScreeners)

	effectiveSkills := e.effectiveSkills(applicant, input.Answers)
	missingRequired := missingFrom(job.RequiredSkills, effectiveSkills)
	missingPreferred := missingFrom(job.PreferredSkills, effectiveSkills)

	riskScore, riskFlags := e.scoreRisk(job, applicant, input, now)

	rank := e.scoreRank(job, applicant, requiredScore, preferredScore,
		len(missingRequired), len(missingPreferred), riskScore)

	result := &Result{
		AutoRankScore:          rank,
		RiskScore:              riskScore,
		RiskFlags:              riskFlags,
		NeedsManualReview:      riskScore >= manualReviewRiskThreshold || !requiredPassed,
		RequiredPassed:         requiredPassed,
		BlockForAbuse:          riskScore >= blockRiskThreshold,
		RequiredScore:          requiredScore,
		PreferredScore:         preferredScore,
		MissingRequiredSkills:  missingRequired,
		MissingPreferredSkills: missingPreferred,
		AnswersSnapshot:        snapshotAnswers(input.Answers),
	}
	result.MatchExplanation = e.explain(job, result)
	result.Suggestions = e.suggest(job, applicant, result)

	decision := "scored"
	if result.BlockForAbuse {
		decision = "blocked"
	} else if result.NeedsManualReview {
		decision = "manual_review"
	}
	metrics.ScoringEvaluations.WithLabelValues(decision).Inc()

	e.logger.Info("application evaluated", map[string]interface{}{
		"jobId":          job.ID,
		"applicantId":    applicant.ID,
		"autoRankScore":  result.AutoRankScore,
		"riskScore":      result.RiskScore,
		"riskFlags":      result.RiskFlags,
		"requiredPassed": result.RequiredPassed,
		"decision":       decision,
	})

	return result
}

// countPassed counts the prompts of one screener list that the submitted
// answers satisfy.
func (e *Engine) countPassed(prompts []string, answers []Answer) int {
	passed := 0
	for i, prompt := range prompts {
		answer, ok := answerFor(prompt, i, answers)
		if !ok {
			continue
		}
		if answerPasses(prompt, answer) {
			passed++
		}
	}
	return passed
}

// answerFor finds the answer for a prompt: first by question text, then by
// position for callers that submit answers in prompt order without echoing
// the question.
func answerFor(prompt string, idx int, answers []Answer) (string, bool) {
	want := strings.ToLower(strings.TrimSpace(prompt))
	for _, a := range answers {
		if strings.ToLower(strings.TrimSpace(a.Question)) == want {
			return a.Answer, true
		}
	}
	if idx < len(answers) && strings.TrimSpace(answers[idx].Question) == "" {
		return answers[idx].Answer, true
	}
	return "", false
}

// answerPasses reports whether an answer satisfies a prompt: it begins with
// or equals "yes" (case-insensitive), or its normalized text contains at
// least one prompt token.
func answerPasses(prompt, answer string) bool {
	norm := strings.ToLower(strings.TrimSpace(answer))
	if norm == "" {
		return false
	}
	if strings.HasPrefix(norm, "yes") {
		return true
	}
	for _, token := range promptTokens(prompt) {
		if strings.Contains(norm, token) {
			return true
		}
	}
	return false
}

// effectiveSkills merges profile skills with tokens inferred from every
// (question, answer) pair.
func (e *Engine) effectiveSkills(applicant *models.ApplicantProfile, answers []Answer) []string {
	var inferred []string
	for _, a := range answers {
		inferred = append(inferred, tokenize(a.Question, skillTokenMinLen)...)
		inferred = append(inferred, tokenize(a.Answer, skillTokenMinLen)...)
	}
	return dedupeSkills(applicant.Skills, inferred)
}

// scoreRisk applies the additive risk point rules. Each rule triggers
// independently and contributes its flag.
func (e *Engine) scoreRisk(job *models.JobPosting, applicant *models.ApplicantProfile, input *Input, now time.Time) (int, []string) {
	points := 0
	var flags []string

	if input.RecentApplicationCount >= velocityHighThreshold {
		points += pointsHighVelocity
		flags = append(flags, FlagHighVelocity)
	}
	if input.RecentApplicationCount >= velocityExtremeThreshold {
		points += pointsExtremeVelocity
		flags = append(flags, FlagExtremeVelocity)
	}

	if !applicant.CreatedAt.IsZero() {
		age := now.Sub(applicant.CreatedAt)
		if age < time.Hour {
			points += pointsNewAccount
			flags = append(flags, FlagNewAccount)
		}
		if age < 10*time.Minute {
			points += pointsVeryNewAccount
			flags = append(flags, FlagVeryNewAccount)
		}
	}

	if input.PriorAbuseEventCount > 0 {
		pts := input.PriorAbuseEventCount * pointsPerIPEvent
		if pts > pointsIPEventCap {
			pts = pointsIPEventCap
		}
		points += pts
		flags = append(flags, FlagIPHistory)
	}

	if applicant.PreviouslyFlagged {
		points += pointsPreviouslyFlagged
		flags = append(flags, FlagPreviouslyFlagged)
	}

	if len(job.RequiredScreeners) > 0 && len(input.Answers) == 0 {
		points += pointsMissingAnswers
		flags = append(flags, FlagMissingAnswers)
	}

	return clampInt(points, 0, 100), flags
}

// scoreRank computes the ranking formula.
func (e *Engine) scoreRank(job *models.JobPosting, applicant *models.ApplicantProfile, requiredScore, preferredScore, missingRequired, missingPreferred, riskScore int) int {
	requiredRatio := 1.0
	if n := len(job.RequiredScreeners); n > 0 {
		requiredRatio = float64(requiredScore) / math.Max(1, float64(n))
	}

	preferredRatio := defaultPreferredRatio
	if n := len(job.PreferredScreeners); n > 0 {
		preferredRatio = float64(preferredScore) / float64(n)
	}

	rank := float64(job.MeritFit)*weightMeritFit +
		requiredRatio*weightRequiredRatio +
		preferredRatio*weightPreferredRatio +
		float64(applicant.Completeness)*weightCompleteness -
		float64(missingRequired)*penaltyMissingReq -
		float64(missingPreferred)*penaltyMissingPref -
		float64(riskScore)*penaltyRisk

	return int(math.Round(clampFloat(rank, 0, 100)))
}

func (e *Engine) explain(job *models.JobPosting, r *Result) string {
	parts := []string{
		fmt.Sprintf("passed %d/%d required and %d/%d preferred screeners",
			r.RequiredScore, len(job.RequiredScreeners),
			r.PreferredScore, len(job.PreferredScreeners)),
	}
	if len(r.MissingRequiredSkills) > 0 {
		parts = append(parts, fmt.Sprintf("missing %d required skill(s): %s",
			len(r.MissingRequiredSkills), strings.Join(r.MissingRequiredSkills, ", ")))
	}
	if r.RiskScore > 0 {
		parts = append(parts, fmt.Sprintf("risk score %d", r.RiskScore))
	}
	return fmt.Sprintf("Rank %d for %s: %s.", r.AutoRankScore, job.Title, strings.Join(parts, "; "))
}

// suggest builds profile-improvement suggestions by rule precedence: skill
// gaps first, then completeness target, then screener coaching.
func (e *Engine) suggest(job *models.JobPosting, applicant *models.ApplicantProfile, r *Result) []string {
	var out []string
	if len(r.MissingRequiredSkills) > 0 {
		out = append(out, "Add these required skills to your profile: "+strings.Join(r.MissingRequiredSkills, ", "))
	}
	if len(r.MissingPreferredSkills) > 0 {
		out = append(out, "Consider adding preferred skills: "+strings.Join(r.MissingPreferredSkills, ", "))
	}
	if applicant.Completeness < 80 {
		out = append(out, fmt.Sprintf("Complete your profile (currently %d%%) to at least 80%% to improve your ranking", applicant.Completeness))
	}
	if len(job.RequiredScreeners) > 0 && r.RequiredScore < len(job.RequiredScreeners) {
		out = append(out, "Answer each required screener question directly; begin with a clear yes or no")
	}
	return out
}

// snapshotAnswers serializes the submitted answers with each answer truncated
// to answerSnapshotMaxLen characters.
func snapshotAnswers(answers []Answer) string {
	trimmed := make([]Answer, len(answers))
	for i, a := range answers {
		ans := a.Answer
		if len(ans) > answerSnapshotMaxLen {
			ans = ans[:answerSnapshotMaxLen]
		}
		trimmed[i] = Answer{Question: a.Question, Answer: ans}
	}
	data, err := json.Marshal(trimmed)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
