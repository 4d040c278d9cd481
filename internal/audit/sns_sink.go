// internal/audit/sns_sink.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher is satisfied by aws.SNSClient.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSSink publishes run outcome events to a topic. Per-task events stay
// local; subscribers only see decisions and cancellations.
type SNSSink struct {
	client   Publisher
	topicARN string
	kinds    map[EventKind]bool
}

func NewSNSSink(client Publisher, topicARN string) *SNSSink {
	return &SNSSink{
		client:   client,
		topicARN: topicARN,
		kinds: map[EventKind]bool{
			EventDecisionProduced: true,
			EventRunCancelled:     true,
		},
	}
}

func (s *SNSSink) Record(ctx context.Context, event Event) error {
	if !s.kinds[event.Kind] {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(s.topicARN),
		Message:  awssdk.String(string(body)),
		Subject:  awssdk.String(fmt.Sprintf("Underwriting %s: %s", event.Kind, event.TransactionID)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"kind": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(string(event.Kind)),
			},
			"transactionId": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(event.TransactionID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
