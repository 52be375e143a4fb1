// internal/channels/push.go
package channels

import (
	"context"

	"merithire-engine/internal/common/errors"
	"merithire-engine/internal/common/logger"
	"merithire-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Define interfaces for mocking
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// PushChannel publishes to an SNS topic with the target user id as a
// message attribute, so device subscriptions filter on it. The recipient
// is the user id.
type PushChannel struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
}

func NewPushChannel(client SNSService, topicARN string, log logger.Logger) (*PushChannel, error) {
	if topicARN == "" {
		return nil, errors.NewChannelConfigError("push", "topic_arn is required when push is enabled")
	}
	return &PushChannel{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"channel": "push"}),
	}, nil
}

func (c *PushChannel) Name() models.Channel { return models.ChannelPush }

func (c *PushChannel) Provider() string { return "sns" }

func (c *PushChannel) Send(ctx context.Context, msg *Message) error {
	_, err := c.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Subject:  aws.String(msg.Subject),
		Message:  aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"userId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Recipient),
			},
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Kind)),
			},
		},
	})
	if err != nil {
		c.logger.Error("push publish failed", map[string]interface{}{
			"recipient": msg.Recipient,
			"error":     err,
		})
		return errors.NewProviderRejectedError("sns", err.Error())
	}
	return nil
}
