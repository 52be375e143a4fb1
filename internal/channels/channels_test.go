// internal/channels/channels_test.go
package channels

import (
	"context"
	"fmt"
	"testing"
	"time"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

type MockFeedStore struct {
	items []string
	err   error
}

func (m *MockFeedStore) AppendFeedItem(_ context.Context, userID, subject, _ string, _ int) error {
	if m.err != nil {
		return m.err
	}
	m.items = append(m.items, userID+": "+subject)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

func testSearch() *models.SavedSearch {
	return &models.SavedSearch{
		ID:     "search-001",
		UserID: "user-001",
		Query:  "senior backend engineer",
	}
}

func testAlert(title string) *models.JobAlert {
	return &models.JobAlert{
		ID:        "alert-001",
		UserID:    "user-001",
		SearchID:  "search-001",
		JobID:     "job-001",
		JobTitle:  title,
		CreatedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Template Tests
// ==========================

func TestBuildInstant(t *testing.T) {
	msg := BuildInstant(testSearch(), testAlert("Staff Engineer at Acme"), "user@example.com")

	assert.Equal(t, "New job match: Staff Engineer at Acme", msg.Subject)
	assert.Contains(t, msg.Body, `"senior backend engineer"`)
	assert.Contains(t, msg.Body, "Staff Engineer at Acme")
	assert.Equal(t, models.KindInstant, msg.Kind)
	assert.Equal(t, 1, msg.AlertCount)
	assert.Equal(t, "user@example.com", msg.Recipient)
}

func TestBuildDigest(t *testing.T) {
	alerts := []*models.JobAlert{
		testAlert("First Role"),
		testAlert("Second Role"),
		testAlert("Third Role"),
	}
	msg := BuildDigest(testSearch(), alerts, "user@example.com")

	assert.Equal(t, `3 new job matches for "senior backend engineer"`, msg.Subject)
	assert.Contains(t, msg.Body, "- First Role\n- Second Role\n- Third Role")
	assert.Equal(t, models.KindDigest, msg.Kind)
	assert.Equal(t, 3, msg.AlertCount)
}

func TestRenderTemplate_RemovesMissingPlaceholders(t *testing.T) {
	result := renderTemplate("Hello {{name}}, job {{jobTitle}}", map[string]interface{}{
		"name": "Dana",
	})
	assert.Equal(t, "Hello Dana, job ", result)
}

// ==========================
// Email Channel Tests
// ==========================

func TestEmailChannel_Send(t *testing.T) {
	var captured *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{}, nil
		},
	}
	ch, err := NewEmailChannel(mock, "alerts@merithire.com", logger.NewTestLogger(t))
	require.NoError(t, err)

	msg := BuildInstant(testSearch(), testAlert("Staff Engineer"), "user@example.com")
	err = ch.Send(context.Background(), msg)

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, []string{"user@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "alerts@merithire.com", *captured.Source)
	assert.Equal(t, "New job match: Staff Engineer", *captured.Message.Subject.Data)
}

func TestEmailChannel_ProviderRejection(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(_ context.Context, _ *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, fmt.Errorf("throttled")
		},
	}
	ch, err := NewEmailChannel(mock, "alerts@merithire.com", logger.NewTestLogger(t))
	require.NoError(t, err)

	err = ch.Send(context.Background(), BuildInstant(testSearch(), testAlert("Role"), "user@example.com"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeProviderRejected))
}

func TestEmailChannel_RequiresFromEmail(t *testing.T) {
	_, err := NewEmailChannel(&MockSESService{}, "", logger.NewTestLogger(t))
	assert.True(t, errors.HasCode(err, errors.ErrCodeChannelConfigInvalid))
}

// ==========================
// Push Channel Tests
// ==========================

func TestPushChannel_Send(t *testing.T) {
	var captured *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}
	ch, err := NewPushChannel(mock, "arn:aws:sns:us-east-1:123:alerts", logger.NewTestLogger(t))
	require.NoError(t, err)

	err = ch.Send(context.Background(), BuildInstant(testSearch(), testAlert("Role"), "user-001"))

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "arn:aws:sns:us-east-1:123:alerts", *captured.TopicArn)
	assert.Equal(t, "user-001", *captured.MessageAttributes["userId"].StringValue)
	assert.Equal(t, "instant", *captured.MessageAttributes["kind"].StringValue)
}

func TestPushChannel_RequiresTopicARN(t *testing.T) {
	_, err := NewPushChannel(&MockSNSService{}, "", logger.NewTestLogger(t))
	assert.True(t, errors.HasCode(err, errors.ErrCodeChannelConfigInvalid))
}

// ==========================
// In-App Channel Tests
// ==========================

func TestInAppChannel_Send(t *testing.T) {
	store := &MockFeedStore{}
	ch := NewInAppChannel(store, logger.NewTestLogger(t))

	err := ch.Send(context.Background(), BuildInstant(testSearch(), testAlert("Role"), "user-001"))

	require.NoError(t, err)
	require.Len(t, store.items, 1)
	assert.Equal(t, "user-001: New job match: Role", store.items[0])
}

func TestInAppChannel_WriteFailureIsRejection(t *testing.T) {
	store := &MockFeedStore{err: fmt.Errorf("insert failed")}
	ch := NewInAppChannel(store, logger.NewTestLogger(t))

	err := ch.Send(context.Background(), BuildInstant(testSearch(), testAlert("Role"), "user-001"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeProviderRejected))
}
