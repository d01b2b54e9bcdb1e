package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSNotifier publishes a transactional SMS through AWS SNS whenever a new
// voicemail is recorded.
type SNSNotifier struct {
	client   *sns.Client
	topicARN string
	senderID string
}

// NewSNSNotifier resolves standard AWS credentials and builds an SNS
// client for the given topic and sender id.
func NewSNSNotifier(ctx context.Context, topicARN, senderID string) (*SNSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: loading AWS config: %w", err)
	}
	return &SNSNotifier{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		senderID: senderID,
	}, nil
}

func (n *SNSNotifier) Notify(ctx context.Context, toNumber, message string) error {
	input := &sns.PublishInput{
		Message: &message,
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    strPtr("String"),
				StringValue: strPtr("Transactional"),
			},
		},
	}

	if n.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    strPtr("String"),
			StringValue: strPtr(n.senderID),
		}
	}

	if toNumber != "" {
		input.PhoneNumber = &toNumber
	} else {
		input.TopicArn = &n.topicARN
	}

	_, err := n.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("notify: sns publish: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
