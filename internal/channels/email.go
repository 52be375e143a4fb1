// internal/channels/email.go
package channels

import (
	"context"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailChannel delivers through SES. The recipient is the user's email
// address.
type EmailChannel struct {
	client    SESService
	fromEmail string
	logger    logger.Logger
}

func NewEmailChannel(client SESService, fromEmail string, log logger.Logger) (*EmailChannel, error) {
	if fromEmail == "" {
		return nil, errors.NewChannelConfigError("email", "from_email is required when email is enabled")
	}
	return &EmailChannel{
		client:    client,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"channel": "email"}),
	}, nil
}

func (c *EmailChannel) Name() models.Channel { return models.ChannelEmail }

func (c *EmailChannel) Provider() string { return "ses" }

func (c *EmailChannel) Send(ctx context.Context, msg *Message) error {
	_, err := c.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.Recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(msg.Body)},
				Html: &types.Content{Data: aws.String(msg.Body)},
			},
		},
		Source: aws.String(c.fromEmail),
	})
	if err != nil {
		c.logger.Error("email send failed", map[string]interface{}{
			"recipient": msg.Recipient,
			"error":     err,
		})
		return errors.NewProviderRejectedError("ses", err.Error())
	}
	return nil
}
