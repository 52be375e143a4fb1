// internal/channels/inapp.go
package channels

import (
	"context"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/models"
)

// FeedStore appends one item to a user's in-app notification feed.
type FeedStore interface {
	AppendFeedItem(ctx context.Context, userID, subject, body string, alertCount int) error
}

// InAppChannel writes to the internal notification feed. There is no
// external provider to reject the message, so acceptance is the feed write
// itself. The recipient is the user id.
type InAppChannel struct {
	store  FeedStore
	logger logger.Logger
}

func NewInAppChannel(store FeedStore, log logger.Logger) *InAppChannel {
	return &InAppChannel{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"channel": "inapp"}),
	}
}

func (c *InAppChannel) Name() models.Channel { return models.ChannelInApp }

func (c *InAppChannel) Provider() string { return "internal" }

func (c *InAppChannel) Send(ctx context.Context, msg *Message) error {
	if err := c.store.AppendFeedItem(ctx, msg.Recipient, msg.Subject, msg.Body, msg.AlertCount); err != nil {
		c.logger.Error("feed write failed", map[string]interface{}{
			"recipient": msg.Recipient,
			"error":     err,
		})
		return errors.NewProviderRejectedError("internal", err.Error())
	}
	return nil
}
