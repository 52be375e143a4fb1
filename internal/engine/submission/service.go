// internal/engine/submission/service.go
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/engine/scoring"
	"merithire-engine/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"
)

var submissionSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"applicantId", "jobId", "ipAddress"},
	"properties": map[string]interface{}{
		"applicantId": map[string]interface{}{"type": "string", "minLength": 1},
		"jobId":       map[string]interface{}{"type": "string", "minLength": 1},
		"ipAddress":   map[string]interface{}{"type": "string", "minLength": 1},
		"answers": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"answer"},
				"properties": map[string]interface{}{
					"question": map[string]interface{}{"type": "string"},
					"answer":   map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}

// Service is the synchronous submission path: validate the payload, read
// the abuse counters, score, then either persist the application or record
// an abuse event and block.
type Service struct {
	config *Config
	store  Store
	ledger Ledger
	scorer *scoring.Engine
	cache  *redis.Client
	logger logger.Logger
	now    func() time.Time
}

func NewService(config *Config, store Store, ledger Ledger, scorer *scoring.Engine, cache *redis.Client, log logger.Logger) *Service {
	return &Service{
		config: config,
		store:  store,
		ledger: ledger,
		scorer: scorer,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "submission"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit processes one application. Re-submitting the same (applicant, job)
// pair returns the original record unchanged and never rescores it. A
// blocked submission persists only an abuse event and returns
// APPLICATION_BLOCKED.
func (s *Service) Submit(ctx context.Context, sub *Submission) (*Outcome, error) {
	if err := validatePayload(sub); err != nil {
		return nil, err
	}

	existing, err := s.store.GetApplicationByApplicantJob(ctx, sub.ApplicantID, sub.JobID)
	if err != nil {
		return nil, errors.NewStoreQueryError("applications", err)
	}
	if existing != nil {
		return &Outcome{Application: existing, Existing: true}, nil
	}

	job, err := s.store.GetJobPosting(ctx, sub.JobID)
	if err != nil {
		return nil, errors.NewStoreQueryError("job_postings", err)
	}
	applicant, err := s.applicantProfile(ctx, sub.ApplicantID)
	if err != nil {
		return nil, err
	}

	recentApps, err := s.ledger.RecordApplication(ctx, sub.ApplicantID)
	if err != nil {
		return nil, err
	}
	priorAbuse, err := s.ledger.AbuseEventCount(ctx, sub.IPAddress)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := s.scorer.Evaluate(&scoring.Input{
		Job:                    job,
		Applicant:              applicant,
		Answers:                sub.Answers,
		RecentApplicationCount: recentApps,
		PriorAbuseEventCount:   priorAbuse,
		Now:                    now,
	})

	if result.BlockForAbuse {
		return nil, s.block(ctx, sub, result, now)
	}

	app := &models.Application{
		ID:                uuid.New().String(),
		ApplicantID:       sub.ApplicantID,
		JobID:             sub.JobID,
		CompanyID:         job.CompanyID,
		Status:            models.StatusApplied,
		AutoRankScore:     result.AutoRankScore,
		RiskScore:         result.RiskScore,
		RiskFlags:         result.RiskFlags,
		NeedsManualReview: result.NeedsManualReview,
		RequiredPassed:    result.RequiredPassed,
		MeritFit:          job.MeritFit,
		AnswersSnapshot:   result.AnswersSnapshot,
		CreatedAt:         now,
	}

	if err := s.store.CreateApplication(ctx, app); err != nil {
		// Lost a race with a concurrent submission for the same pair; the
		// winner's record is the canonical one.
		if errors.HasCode(err, errors.ErrCodeDuplicateApplication) {
			winner, qerr := s.store.GetApplicationByApplicantJob(ctx, sub.ApplicantID, sub.JobID)
			if qerr == nil && winner != nil {
				return &Outcome{Application: winner, Existing: true}, nil
			}
		}
		return nil, err
	}

	s.logger.Info("application created", map[string]interface{}{
		"applicationId":     app.ID,
		"applicantId":       app.ApplicantID,
		"jobId":             app.JobID,
		"autoRankScore":     app.AutoRankScore,
		"riskScore":         app.RiskScore,
		"needsManualReview": app.NeedsManualReview,
	})

	return &Outcome{Application: app, Result: result}, nil
}

// block records the abuse trail and returns the hard rejection. No
// application row is written.
func (s *Service) block(ctx context.Context, sub *Submission, result *scoring.Result, now time.Time) error {
	if _, err := s.ledger.RecordAbuseEvent(ctx, sub.IPAddress); err != nil {
		s.logger.Error("abuse counter bump failed", map[string]interface{}{
			"ipAddress": sub.IPAddress,
			"error":     err,
		})
	}
	event := &models.AbuseEvent{
		ID:          uuid.New().String(),
		ApplicantID: sub.ApplicantID,
		IPAddress:   sub.IPAddress,
		Reason:      "submission blocked by risk score",
		RiskScore:   result.RiskScore,
		CreatedAt:   now,
	}
	if err := s.store.InsertAbuseEvent(ctx, event); err != nil {
		s.logger.Error("abuse event write failed", map[string]interface{}{
			"applicantId": sub.ApplicantID,
			"error":       err,
		})
	}

	s.logger.Warn("submission blocked", map[string]interface{}{
		"applicantId": sub.ApplicantID,
		"jobId":       sub.JobID,
		"riskScore":   result.RiskScore,
		"riskFlags":   result.RiskFlags,
	})
	return errors.NewApplicationBlockedError(result.RiskScore, result.RiskFlags)
}

// applicantProfile reads through a short-lived redis cache; profile churn
// between submissions is tolerable within the TTL.
func (s *Service) applicantProfile(ctx context.Context, applicantID string) (*models.ApplicantProfile, error) {
	cacheKey := fmt.Sprintf("profile:%s", applicantID)

	if s.cache != nil {
		if val, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var cached models.ApplicantProfile
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	profile, err := s.store.GetApplicantProfile(ctx, applicantID)
	if err != nil {
		return nil, errors.NewStoreQueryError("applicant_profiles", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(profile); err == nil {
			s.cache.Set(ctx, cacheKey, data, s.config.ProfileCacheTTL)
		}
	}
	return profile, nil
}

func validatePayload(sub *Submission) error {
	schemaLoader := gojsonschema.NewGoLoader(submissionSchema)
	documentLoader := gojsonschema.NewGoLoader(sub)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.NewSubmissionValidationError(err.Error())
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return errors.NewSubmissionValidationError(fmt.Sprintf("%v", errs))
	}
	return nil
}
