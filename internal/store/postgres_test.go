// internal/store/postgres_test.go
package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, logger.NewTestLogger(t)), mock
}

func testApplication() *models.Application {
	return &models.Application{
		ID:              "app-001",
		ApplicantID:     "applicant-001",
		JobID:           "job-001",
		CompanyID:       "co-001",
		Status:          models.StatusApplied,
		AutoRankScore:   88,
		RiskScore:       12,
		RiskFlags:       []string{"new_account"},
		RequiredPassed:  true,
		MeritFit:        91,
		AnswersSnapshot: "[]",
		CreatedAt:       testNow,
	}
}

// ==========================
// Application Tests
// ==========================

func TestGetApplicationByApplicantJob(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "applicant_id", "job_id", "company_id", "status",
		"auto_rank_score", "risk_score", "risk_flags",
		"needs_manual_review", "required_passed", "merit_fit",
		"answers_snapshot", "created_at",
	}).AddRow(
		"app-001", "applicant-001", "job-001", "co-001", "applied",
		88, 12, pq.Array([]string{"new_account"}),
		false, true, 91, "[]", testNow,
	)
	mock.ExpectQuery("SELECT (.+) FROM applications").
		WithArgs("applicant-001", "job-001").
		WillReturnRows(rows)

	app, err := store.GetApplicationByApplicantJob(context.Background(), "applicant-001", "job-001")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "app-001", app.ID)
	assert.Equal(t, models.StatusApplied, app.Status)
	assert.Equal(t, []string{"new_account"}, app.RiskFlags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetApplicationByApplicantJob_NotFoundIsNil(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT (.+) FROM applications").
		WithArgs("applicant-001", "job-001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	app, err := store.GetApplicationByApplicantJob(context.Background(), "applicant-001", "job-001")
	require.NoError(t, err)
	assert.Nil(t, app)
}

func TestCreateApplication(t *testing.T) {
	store, mock := newTestStore(t)
	app := testApplication()

	mock.ExpectExec("INSERT INTO applications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CreateApplication(context.Background(), app))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApplication_UniqueViolationIsDuplicate(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO applications").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateApplication(context.Background(), testApplication())
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateApplication))
}

func TestUpdateApplicationStatusIf(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		expected     bool
	}{
		{"matching row is updated", 1, true},
		{"stale row is skipped", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newTestStore(t)

			mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = $3
		WHERE id = $1 AND status = $2`)).
				WithArgs("app-001", "applied", "interview").
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			updated, err := store.UpdateApplicationStatusIf(context.Background(), "app-001", models.StatusApplied, models.StatusInterview)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, updated)
		})
	}
}

func TestReassignInterviewIf_StaleOwnerSkipped(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE interviews SET owner = $3
		WHERE id = $1 AND owner = $2`)).
		WithArgs("iv-001", "alice", "bob").
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := store.ReassignInterviewIf(context.Background(), "iv-001", "alice", "bob")
	require.NoError(t, err)
	assert.False(t, moved)
}

// ==========================
// Saved Search & Alert Tests
// ==========================

func TestListActiveSavedSearches(t *testing.T) {
	store, mock := newTestStore(t)

	last := testNow.Add(-26 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "query", "email_enabled", "inapp_enabled", "push_enabled",
		"push_deferred", "cadence", "digest_hour", "last_digest_at",
	}).
		AddRow("s1", "u1", "backend engineer", true, true, false, false, "instant", 0, nil).
		AddRow("s2", "u2", "platform engineer", true, false, false, false, "daily", 9, last)
	mock.ExpectQuery("SELECT (.+) FROM saved_searches").
		WithArgs("co-001").
		WillReturnRows(rows)

	searches, err := store.ListActiveSavedSearches(context.Background(), "co-001")
	require.NoError(t, err)
	require.Len(t, searches, 2)
	assert.Nil(t, searches[0].LastDigestAt)
	assert.Equal(t, models.CadenceInstant, searches[0].Cadence)
	require.NotNil(t, searches[1].LastDigestAt)
	assert.Equal(t, last, searches[1].LastDigestAt.UTC())
}

func TestUpsertJobAlert_ConflictIsNoOp(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO job_alerts (.+) ON CONFLICT \\(user_id, search_id, job_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	alert := &models.JobAlert{UserID: "u1", SearchID: "s1", JobID: "job-001", JobTitle: "Role", CreatedAt: testNow}
	require.NoError(t, store.UpsertJobAlert(context.Background(), alert))
	assert.NotEmpty(t, alert.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAlertSent_OnlyWhileNull(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE job_alerts SET email_sent_at = $2 WHERE id = $1 AND email_sent_at IS NULL`)).
		WithArgs("alert-001", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.MarkAlertSent(context.Background(), "alert-001", models.ChannelEmail, testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAlertSent_UnknownChannel(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.MarkAlertSent(context.Background(), "alert-001", models.Channel("sms"), testNow)
	assert.Error(t, err)
}

func TestAdvanceDigestCursor_NeverRewinds(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE saved_searches SET last_digest_at = $2
		WHERE id = $1 AND (last_digest_at IS NULL OR last_digest_at < $2)`)).
		WithArgs("s1", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AdvanceDigestCursor(context.Background(), "s1", testNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Delivery Log Tests
// ==========================

func TestAppendDeliveryLog(t *testing.T) {
	store, mock := newTestStore(t)

	entry := &models.DeliveryLog{
		ID:         "log-001",
		SearchID:   "s1",
		Channel:    models.ChannelEmail,
		Kind:       models.KindInstant,
		Provider:   "ses",
		Accepted:   true,
		Recipient:  "u1@example.com",
		Payload:    "subject\nbody",
		AlertCount: 1,
		CreatedAt:  testNow,
	}
	mock.ExpectExec("INSERT INTO delivery_log").
		WithArgs(entry.ID, entry.SearchID, "email", "instant", "ses", true,
			entry.Recipient, entry.Payload, 1, "", testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AppendDeliveryLog(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendFeedItem(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec("INSERT INTO notification_feed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.AppendFeedItem(context.Background(), "u1", "subject", "body", 2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
