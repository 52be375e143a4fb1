// internal/store/postgres.go

// Package store is the PostgreSQL persistence layer shared by the engines.
// Mutations against snapshot-derived state go through conditional writes so
// a concurrent external change is never overwritten.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// ==========================
// Job Postings & Profiles
// ==========================

func (s *Store) GetJobPosting(ctx context.Context, id string) (*models.JobPosting, error) {
	job := &models.JobPosting{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, title, merit_fit,
		       required_screeners, preferred_screeners,
		       required_skills, preferred_skills, created_at
		FROM job_postings
		WHERE id = $1`, id).Scan(
		&job.ID, &job.CompanyID, &job.Title, &job.MeritFit,
		pq.Array(&job.RequiredScreeners), pq.Array(&job.PreferredScreeners),
		pq.Array(&job.RequiredSkills), pq.Array(&job.PreferredSkills),
		&job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get job posting: %w", err)
	}
	return job, nil
}

func (s *Store) GetApplicantProfile(ctx context.Context, id string) (*models.ApplicantProfile, error) {
	profile := &models.ApplicantProfile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, skills, completeness, previously_flagged, created_at
		FROM applicant_profiles
		WHERE id = $1`, id).Scan(
		&profile.ID, &profile.Email, pq.Array(&profile.Skills),
		&profile.Completeness, &profile.PreviouslyFlagged, &profile.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get applicant profile: %w", err)
	}
	return profile, nil
}

func (s *Store) GetUserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM applicant_profiles WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		return "", fmt.Errorf("get user email: %w", err)
	}
	return email, nil
}

// ==========================
// Applications
// ==========================

// GetApplicationByApplicantJob returns nil without error when no row exists.
func (s *Store) GetApplicationByApplicantJob(ctx context.Context, applicantID, jobID string) (*models.Application, error) {
	app := &models.Application{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, applicant_id, job_id, company_id, status,
		       auto_rank_score, risk_score, risk_flags,
		       needs_manual_review, required_passed, merit_fit,
		       answers_snapshot, created_at
		FROM applications
		WHERE applicant_id = $1 AND job_id = $2`, applicantID, jobID).Scan(
		&app.ID, &app.ApplicantID, &app.JobID, &app.CompanyID, &app.Status,
		&app.AutoRankScore, &app.RiskScore, pq.Array(&app.RiskFlags),
		&app.NeedsManualReview, &app.RequiredPassed, &app.MeritFit,
		&app.AnswersSnapshot, &app.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (s *Store) CreateApplication(ctx context.Context, app *models.Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, applicant_id, job_id, company_id, status,
			auto_rank_score, risk_score, risk_flags,
			needs_manual_review, required_passed, merit_fit,
			answers_snapshot, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		app.ID, app.ApplicantID, app.JobID, app.CompanyID, app.Status,
		app.AutoRankScore, app.RiskScore, pq.Array(app.RiskFlags),
		app.NeedsManualReview, app.RequiredPassed, app.MeritFit,
		app.AnswersSnapshot, app.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return errors.NewDuplicateApplicationError(app.ID)
		}
		return errors.NewStoreInsertError("applications", err)
	}
	return nil
}

func (s *Store) ListOpenApplications(ctx context.Context, scope string) ([]*models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, applicant_id, job_id, company_id, status,
		       auto_rank_score, risk_score, risk_flags,
		       needs_manual_review, required_passed, merit_fit,
		       answers_snapshot, created_at
		FROM applications
		WHERE company_id = $1 AND status IN ('applied', 'interview')
		ORDER BY created_at`, scope)
	if err != nil {
		return nil, fmt.Errorf("list open applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app := &models.Application{}
		if err := rows.Scan(
			&app.ID, &app.ApplicantID, &app.JobID, &app.CompanyID, &app.Status,
			&app.AutoRankScore, &app.RiskScore, pq.Array(&app.RiskFlags),
			&app.NeedsManualReview, &app.RequiredPassed, &app.MeritFit,
			&app.AnswersSnapshot, &app.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateApplicationStatusIf commits only when the row still carries the
// status the snapshot observed.
func (s *Store) UpdateApplicationStatusIf(ctx context.Context, id string, expected, next models.ApplicationStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET status = $3
		WHERE id = $1 AND status = $2`, id, expected, next)
	if err != nil {
		return false, fmt.Errorf("conditional status update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ==========================
// Interviews
// ==========================

func (s *Store) ListUpcomingInterviews(ctx context.Context, scope string, after time.Time) ([]*models.Interview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, candidate_id, company_id, owner, scheduled_at
		FROM interviews
		WHERE company_id = $1 AND scheduled_at > $2
		ORDER BY scheduled_at`, scope, after)
	if err != nil {
		return nil, fmt.Errorf("list upcoming interviews: %w", err)
	}
	defer rows.Close()

	var interviews []*models.Interview
	for rows.Next() {
		iv := &models.Interview{}
		if err := rows.Scan(&iv.ID, &iv.ApplicationID, &iv.CandidateID, &iv.CompanyID, &iv.Owner, &iv.ScheduledAt); err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		interviews = append(interviews, iv)
	}
	return interviews, rows.Err()
}

func (s *Store) ReassignInterviewIf(ctx context.Context, id string, expectedOwner, nextOwner string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE interviews SET owner = $3
		WHERE id = $1 AND owner = $2`, id, expectedOwner, nextOwner)
	if err != nil {
		return false, fmt.Errorf("conditional owner update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ==========================
// Abuse Events
// ==========================

func (s *Store) InsertAbuseEvent(ctx context.Context, event *models.AbuseEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO abuse_events (id, applicant_id, ip_address, reason, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.ApplicantID, event.IPAddress, event.Reason, event.RiskScore, event.CreatedAt,
	)
	if err != nil {
		return errors.NewStoreInsertError("abuse_events", err)
	}
	return nil
}

// ==========================
// Saved Searches & Alerts
// ==========================

func (s *Store) ListActiveSavedSearches(ctx context.Context, scope string) ([]*models.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, query, email_enabled, inapp_enabled, push_enabled,
		       push_deferred, cadence, digest_hour, last_digest_at
		FROM saved_searches
		WHERE company_id = $1
		  AND (email_enabled OR inapp_enabled OR push_enabled)
		ORDER BY id`, scope)
	if err != nil {
		return nil, fmt.Errorf("list saved searches: %w", err)
	}
	defer rows.Close()

	var searches []*models.SavedSearch
	for rows.Next() {
		search := &models.SavedSearch{}
		if err := rows.Scan(
			&search.ID, &search.UserID, &search.Query,
			&search.EmailEnabled, &search.InAppEnabled, &search.PushEnabled,
			&search.PushDeferred, &search.Cadence, &search.DigestHour, &search.LastDigestAt,
		); err != nil {
			return nil, fmt.Errorf("scan saved search: %w", err)
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

// UpsertJobAlert inserts the (user, search, job) match record; a repeat
// match is a no-op, never a duplicate row.
func (s *Store) UpsertJobAlert(ctx context.Context, alert *models.JobAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_alerts (id, user_id, search_id, job_id, job_title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, search_id, job_id) DO NOTHING`,
		alert.ID, alert.UserID, alert.SearchID, alert.JobID, alert.JobTitle, alert.CreatedAt,
	)
	if err != nil {
		return errors.NewStoreInsertError("job_alerts", err)
	}
	return nil
}

func (s *Store) ListPendingAlerts(ctx context.Context, searchID string) ([]*models.JobAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, search_id, job_id, job_title,
		       email_sent_at, inapp_sent_at, push_sent_at, read_at, created_at
		FROM job_alerts
		WHERE search_id = $1
		  AND (email_sent_at IS NULL OR inapp_sent_at IS NULL OR push_sent_at IS NULL)
		ORDER BY created_at`, searchID)
	if err != nil {
		return nil, fmt.Errorf("list pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.JobAlert
	for rows.Next() {
		alert := &models.JobAlert{}
		if err := rows.Scan(
			&alert.ID, &alert.UserID, &alert.SearchID, &alert.JobID, &alert.JobTitle,
			&alert.EmailSentAt, &alert.InAppSentAt, &alert.PushSentAt, &alert.ReadAt, &alert.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// MarkAlertSent sets the channel's sent marker only while it is still null.
func (s *Store) MarkAlertSent(ctx context.Context, alertID string, ch models.Channel, at time.Time) error {
	var column string
	switch ch {
	case models.ChannelEmail:
		column = "email_sent_at"
	case models.ChannelInApp:
		column = "inapp_sent_at"
	case models.ChannelPush:
		column = "push_sent_at"
	default:
		return fmt.Errorf("unknown channel: %s", ch)
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE job_alerts SET %s = $2 WHERE id = $1 AND %s IS NULL`, column, column),
		alertID, at)
	if err != nil {
		return errors.NewStoreUpdateError("job_alerts", err)
	}
	return nil
}

// AdvanceDigestCursor moves last_digest_at forward only; an older run time
// never rewinds it.
func (s *Store) AdvanceDigestCursor(ctx context.Context, searchID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE saved_searches SET last_digest_at = $2
		WHERE id = $1 AND (last_digest_at IS NULL OR last_digest_at < $2)`,
		searchID, at)
	if err != nil {
		return errors.NewStoreUpdateError("saved_searches", err)
	}
	return nil
}

// ==========================
// Delivery Log & Feed
// ==========================

func (s *Store) AppendDeliveryLog(ctx context.Context, entry *models.DeliveryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_log (
			id, search_id, channel, kind, provider, accepted,
			recipient, payload, alert_count, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.SearchID, entry.Channel, entry.Kind, entry.Provider, entry.Accepted,
		entry.Recipient, entry.Payload, entry.AlertCount, entry.Error, entry.CreatedAt,
	)
	if err != nil {
		return errors.NewStoreInsertError("delivery_log", err)
	}
	return nil
}

func (s *Store) AppendFeedItem(ctx context.Context, userID, subject, body string, alertCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_feed (id, user_id, subject, body, alert_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), userID, subject, body, alertCount, time.Now().UTC(),
	)
	if err != nil {
		return errors.NewStoreInsertError("notification_feed", err)
	}
	return nil
}
