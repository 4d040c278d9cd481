// internal/audit/ses_notifier.go
package audit

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Mailer is satisfied by aws.SESClient.
type Mailer interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SESNotifier emails the underwriting desk when a decision needs a person:
// review_required and conditional recommendations.
type SESNotifier struct {
	client Mailer
	from   string
	to     []string
}

func NewSESNotifier(client Mailer, from string, to []string) *SESNotifier {
	return &SESNotifier{client: client, from: from, to: to}
}

func (n *SESNotifier) Record(ctx context.Context, event Event) error {
	if event.Kind != EventDecisionProduced {
		return nil
	}
	recommendation, _ := event.Data["recommendation"].(string)
	if recommendation != "review_required" && recommendation != "conditional" {
		return nil
	}

	subject := fmt.Sprintf("Transaction %s needs underwriting attention (%s)", event.TransactionID, recommendation)
	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(n.from),
		Destination: &sestypes.Destination{ToAddresses: n.to},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(decisionEmailBody(event)), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

func decisionEmailBody(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction: %s\nRun: %s\n", event.TransactionID, event.RunID)
	fmt.Fprintf(&b, "Recommendation: %v\nConfidence: %v\n", event.Data["recommendation"], event.Data["confidence"])

	for _, section := range []string{"conditions", "requiredActions", "riskFactors"} {
		items, ok := event.Data[section].([]string)
		if !ok || len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", section)
		for _, item := range items {
			fmt.Fprintf(&b, "  - %s\n", item)
		}
	}
	return b.String()
}
