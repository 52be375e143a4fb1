// internal/engine/delivery/engine_test.go
package delivery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"merithire-engine/internal/channels"
	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Doubles
// ==========================

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	searches []*models.SavedSearch
	alerts   map[string][]*models.JobAlert
	emails   map[string]string
	logs     []*models.DeliveryLog
	cursors  map[string]time.Time
}

func (f *fakeStore) ListActiveSavedSearches(_ context.Context, _ string) ([]*models.SavedSearch, error) {
	return f.searches, nil
}

func (f *fakeStore) ListPendingAlerts(_ context.Context, searchID string) ([]*models.JobAlert, error) {
	return f.alerts[searchID], nil
}

func (f *fakeStore) GetUserEmail(_ context.Context, userID string) (string, error) {
	email, ok := f.emails[userID]
	if !ok {
		return "", fmt.Errorf("user not found")
	}
	return email, nil
}

func (f *fakeStore) MarkAlertSent(_ context.Context, alertID string, ch models.Channel, at time.Time) error {
	for _, list := range f.alerts {
		for _, a := range list {
			if a.ID != alertID {
				continue
			}
			switch ch {
			case models.ChannelEmail:
				a.EmailSentAt = &at
			case models.ChannelInApp:
				a.InAppSentAt = &at
			case models.ChannelPush:
				a.PushSentAt = &at
			}
			return nil
		}
	}
	return fmt.Errorf("alert not found")
}

func (f *fakeStore) AdvanceDigestCursor(_ context.Context, searchID string, at time.Time) error {
	if f.cursors == nil {
		f.cursors = make(map[string]time.Time)
	}
	f.cursors[searchID] = at
	for _, s := range f.searches {
		if s.ID == searchID {
			s.LastDigestAt = &at
		}
	}
	return nil
}

func (f *fakeStore) AppendDeliveryLog(_ context.Context, entry *models.DeliveryLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

type fakeChannel struct {
	name   models.Channel
	reject bool
	sent   []*channels.Message
}

func (f *fakeChannel) Name() models.Channel { return f.name }

func (f *fakeChannel) Provider() string { return "fake-" + string(f.name) }

func (f *fakeChannel) Send(_ context.Context, msg *channels.Message) error {
	if f.reject {
		return errors.NewProviderRejectedError(f.Provider(), "throttled")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeAudit struct {
	events []string
	err    error
}

func (f *fakeAudit) Emit(_ context.Context, eventType string, _ map[string]interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, eventType)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

func newTestEngine(t *testing.T, store *fakeStore, chans []channels.Channel, audit AuditEmitter) *Engine {
	cfg, err := LoadConfig("UTC", 10000, 100)
	require.NoError(t, err)
	if audit == nil {
		audit = &fakeAudit{}
	}
	e := NewEngine(cfg, store, chans, audit, logger.NewTestLogger(t))
	e.now = func() time.Time { return testNow }
	return e
}

func allChannels() (*fakeChannel, *fakeChannel, *fakeChannel, []channels.Channel) {
	email := &fakeChannel{name: models.ChannelEmail}
	inapp := &fakeChannel{name: models.ChannelInApp}
	push := &fakeChannel{name: models.ChannelPush}
	return email, inapp, push, []channels.Channel{email, inapp, push}
}

func instantSearch(id, userID string) *models.SavedSearch {
	return &models.SavedSearch{
		ID:           id,
		UserID:       userID,
		Query:        "backend engineer",
		EmailEnabled: true,
		InAppEnabled: true,
		Cadence:      models.CadenceInstant,
	}
}

func dailySearch(id, userID string, lastDigestAgo time.Duration) *models.SavedSearch {
	s := &models.SavedSearch{
		ID:           id,
		UserID:       userID,
		Query:        "platform engineer",
		EmailEnabled: true,
		Cadence:      models.CadenceDaily,
		DigestHour:   9,
	}
	if lastDigestAgo > 0 {
		last := testNow.Add(-lastDigestAgo)
		s.LastDigestAt = &last
	}
	return s
}

func pendingAlert(id, userID, searchID, title string) *models.JobAlert {
	return &models.JobAlert{
		ID:        id,
		UserID:    userID,
		SearchID:  searchID,
		JobID:     "job-" + id,
		JobTitle:  title,
		CreatedAt: testNow.Add(-time.Hour),
	}
}

// ==========================
// Preview Tests
// ==========================

func TestPreview_MatchesRunAttempted(t *testing.T) {
	store := &fakeStore{
		searches: []*models.SavedSearch{
			instantSearch("s1", "u1"),
			dailySearch("s2", "u2", 0), // never digested, due
		},
		alerts: map[string][]*models.JobAlert{
			"s1": {pendingAlert("a1", "u1", "s1", "Role A"), pendingAlert("a2", "u1", "s1", "Role B")},
			"s2": {pendingAlert("a3", "u2", "s2", "Role C"), pendingAlert("a4", "u2", "s2", "Role D"), pendingAlert("a5", "u2", "s2", "Role E")},
		},
		emails: map[string]string{"u1": "u1@example.com", "u2": "u2@example.com"},
	}
	_, _, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	preview, err := e.Preview(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, 2, preview.Searches)
	assert.Equal(t, 1, preview.DueDigestSearches)
	assert.Equal(t, 0, preview.WaitingDigestSearches)
	assert.Equal(t, 4, preview.Instant) // 2 email + 2 inapp
	assert.Equal(t, 3, preview.Digest)
	assert.Equal(t, 7, preview.Total)
	assert.Equal(t, 5, preview.ByChannel[models.ChannelEmail])
	assert.Equal(t, 2, preview.ByChannel[models.ChannelInApp])
	assert.NotContains(t, preview.ByChannel, models.ChannelPush) // nothing pending, no zero entry

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, preview.Total, sum.Attempted)
	assert.Equal(t, preview.Instant, sum.Instant)
	assert.Equal(t, preview.Digest, sum.Digest)
	assert.Equal(t, preview.ByChannel, sum.ByChannel)
	assert.Equal(t, sum.Attempted, sum.Accepted)

	// Everything delivered, so pending counts drop to zero.
	after, err := e.Preview(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, 0, after.Total)
}

func TestPreview_IsReadOnly(t *testing.T) {
	store := &fakeStore{
		searches: []*models.SavedSearch{dailySearch("s1", "u1", 0)},
		alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
		emails:   map[string]string{"u1": "u1@example.com"},
	}
	_, _, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	_, err := e.Preview(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Nil(t, store.searches[0].LastDigestAt)
	assert.Nil(t, store.alerts["s1"][0].EmailSentAt)
	assert.Empty(t, store.logs)
}

// ==========================
// Digest-Due Tests
// ==========================

func TestRun_DailyDigestDueRule(t *testing.T) {
	tests := []struct {
		name        string
		search      *models.SavedSearch
		expectedRun int
	}{
		{
			name:        "20 hours elapsed is not due even past digest hour",
			search:      dailySearch("s1", "u1", 20*time.Hour),
			expectedRun: 0,
		},
		{
			name:        "25 hours elapsed is due",
			search:      dailySearch("s1", "u1", 25*time.Hour),
			expectedRun: 1,
		},
		{
			name:        "never digested is due once past digest hour",
			search:      dailySearch("s1", "u1", 0),
			expectedRun: 1,
		},
		{
			name: "digest hour not reached yet",
			search: func() *models.SavedSearch {
				s := dailySearch("s1", "u1", 0)
				s.DigestHour = 18 // testNow is 12:00 UTC
				return s
			}(),
			expectedRun: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				searches: []*models.SavedSearch{tt.search},
				alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
				emails:   map[string]string{"u1": "u1@example.com"},
			}
			_, _, _, chans := allChannels()
			e := newTestEngine(t, store, chans, nil)

			sum, err := e.Run(context.Background(), "co-1")
			require.NoError(t, err)
			assert.Equal(t, tt.expectedRun, sum.DigestRuns)
		})
	}
}

func TestRun_WeeklyDigestInterval(t *testing.T) {
	s := dailySearch("s1", "u1", 5*24*time.Hour)
	s.Cadence = models.CadenceWeekly
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
		emails:   map[string]string{"u1": "u1@example.com"},
	}
	_, _, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.DigestRuns) // 5 days < 168h
}

func TestRun_DigestAdvancesCursorToRunTime(t *testing.T) {
	store := &fakeStore{
		searches: []*models.SavedSearch{dailySearch("s1", "u1", 30*time.Hour)},
		alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
		emails:   map[string]string{"u1": "u1@example.com"},
	}
	_, _, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	_, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, testNow, store.cursors["s1"])
}

func TestRun_DueDigestWithNothingPendingLeavesCursor(t *testing.T) {
	store := &fakeStore{
		searches: []*models.SavedSearch{dailySearch("s1", "u1", 30*time.Hour)},
		alerts:   map[string][]*models.JobAlert{},
		emails:   map[string]string{"u1": "u1@example.com"},
	}
	_, _, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.DigestRuns)
	assert.Empty(t, store.cursors)
}

// ==========================
// Channel Semantics Tests
// ==========================

func TestRun_InstantEmailIsPerAlert(t *testing.T) {
	s := instantSearch("s1", "u1")
	s.InAppEnabled = false
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts: map[string][]*models.JobAlert{
			"s1": {pendingAlert("a1", "u1", "s1", "Role A"), pendingAlert("a2", "u1", "s1", "Role B"), pendingAlert("a3", "u1", "s1", "Role C")},
		},
		emails: map[string]string{"u1": "u1@example.com"},
	}
	email, _, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Attempted)
	assert.Equal(t, 3, sum.LogRows)
	assert.Len(t, email.sent, 3)
	for _, entry := range store.logs {
		assert.Equal(t, 1, entry.AlertCount)
		assert.Equal(t, models.KindInstant, entry.Kind)
		assert.True(t, entry.Accepted)
	}
}

func TestRun_InstantInAppIsOneBatch(t *testing.T) {
	s := instantSearch("s1", "u1")
	s.EmailEnabled = false
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts: map[string][]*models.JobAlert{
			"s1": {pendingAlert("a1", "u1", "s1", "Role A"), pendingAlert("a2", "u1", "s1", "Role B")},
		},
	}
	_, inapp, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Attempted)
	assert.Equal(t, 1, sum.LogRows)
	require.Len(t, inapp.sent, 1)
	assert.Equal(t, 2, inapp.sent[0].AlertCount)
	assert.Equal(t, models.KindInstant, store.logs[0].Kind)
	assert.NotNil(t, store.alerts["s1"][0].InAppSentAt)
	assert.NotNil(t, store.alerts["s1"][1].InAppSentAt)
}

func TestRun_DeferredPushIsBatched(t *testing.T) {
	s := &models.SavedSearch{
		ID: "s1", UserID: "u1", Query: "sre",
		PushEnabled: true, PushDeferred: true,
		Cadence: models.CadenceInstant,
	}
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts: map[string][]*models.JobAlert{
			"s1": {pendingAlert("a1", "u1", "s1", "Role A"), pendingAlert("a2", "u1", "s1", "Role B")},
		},
	}
	_, _, push, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Attempted)
	require.Len(t, push.sent, 1)
	assert.Equal(t, 2, push.sent[0].AlertCount)
}

func TestRun_UndeferredPushIsPerAlert(t *testing.T) {
	s := &models.SavedSearch{
		ID: "s1", UserID: "u1", Query: "sre",
		PushEnabled: true,
		Cadence:     models.CadenceInstant,
	}
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts: map[string][]*models.JobAlert{
			"s1": {pendingAlert("a1", "u1", "s1", "Role A"), pendingAlert("a2", "u1", "s1", "Role B")},
		},
	}
	_, _, push, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	_, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Len(t, push.sent, 2)
}

// ==========================
// Failure Semantics Tests
// ==========================

func TestRun_RejectionLeavesAlertPending(t *testing.T) {
	s := instantSearch("s1", "u1")
	s.InAppEnabled = false
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
		emails:   map[string]string{"u1": "u1@example.com"},
	}
	email, _, _, chans := allChannels()
	email.reject = true
	e := newTestEngine(t, store, chans, nil)

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Attempted)
	assert.Equal(t, 0, sum.Accepted)
	assert.Equal(t, 1, sum.Rejected)
	assert.Nil(t, store.alerts["s1"][0].EmailSentAt)

	// Log row still written, marked rejected.
	require.Len(t, store.logs, 1)
	assert.False(t, store.logs[0].Accepted)
	assert.NotEmpty(t, store.logs[0].Error)

	// Alert stays eligible: next run retries it.
	email.reject = false
	sum, err = e.Run(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Accepted)
	assert.NotNil(t, store.alerts["s1"][0].EmailSentAt)
}

func TestRun_MissingProviderIsConfigError(t *testing.T) {
	s := &models.SavedSearch{
		ID: "s1", UserID: "u1", Query: "sre",
		PushEnabled: true,
		Cadence:     models.CadenceInstant,
	}
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
	}
	email := &fakeChannel{name: models.ChannelEmail}
	e := newTestEngine(t, store, []channels.Channel{email}, nil)

	_, err := e.Run(context.Background(), "co-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeChannelConfigInvalid))
}

func TestRun_AuditFailureIsSwallowed(t *testing.T) {
	s := instantSearch("s1", "u1")
	s.InAppEnabled = false
	store := &fakeStore{
		searches: []*models.SavedSearch{s},
		alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
		emails:   map[string]string{"u1": "u1@example.com"},
	}
	_, _, _, chans := allChannels()
	e := newTestEngine(t, store, chans, &fakeAudit{err: fmt.Errorf("webhook down")})

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Accepted)
	assert.NotNil(t, store.alerts["s1"][0].EmailSentAt)
}

func TestRun_AuditEventPerAttempt(t *testing.T) {
	store := &fakeStore{
		searches: []*models.SavedSearch{instantSearch("s1", "u1")},
		alerts: map[string][]*models.JobAlert{
			"s1": {pendingAlert("a1", "u1", "s1", "Role A"), pendingAlert("a2", "u1", "s1", "Role B")},
		},
		emails: map[string]string{"u1": "u1@example.com"},
	}
	_, _, _, chans := allChannels()
	audit := &fakeAudit{}
	e := newTestEngine(t, store, chans, audit)

	_, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)

	// 2 per-alert email sends + 1 batched in-app send.
	assert.Len(t, audit.events, 3)
}

func TestRun_EmailLookupFailureSkipsChannel(t *testing.T) {
	store := &fakeStore{
		searches: []*models.SavedSearch{instantSearch("s1", "u1")},
		alerts:   map[string][]*models.JobAlert{"s1": {pendingAlert("a1", "u1", "s1", "Role")}},
		emails:   map[string]string{}, // no address on file
	}
	email, inapp, _, chans := allChannels()
	e := newTestEngine(t, store, chans, nil)

	sum, err := e.Run(context.Background(), "co-1")
	require.NoError(t, err)

	assert.Empty(t, email.sent)
	assert.Len(t, inapp.sent, 1)
	assert.Equal(t, 1, sum.Attempted)
}
