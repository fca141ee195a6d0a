package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/utils"
)

const charset = "UTF-8"

// SESNotifier sends mail through Amazon SES
type SESNotifier struct {
	client  sesiface.SESAPI
	from    string
	breaker *utils.Breaker
}

// NewSESNotifier creates an SES notifier. breaker may be nil.
func NewSESNotifier(client sesiface.SESAPI, from string, breaker *utils.Breaker) *SESNotifier {
	return &SESNotifier{client: client, from: from, breaker: breaker}
}

// Send delivers an HTML email to a single recipient
func (n *SESNotifier) Send(ctx context.Context, to, subject, htmlBody string) error {
	input := &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &ses.Destination{ToAddresses: []*string{aws.String(to)}},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String(charset), Data: aws.String(subject)},
			Body: &ses.Body{
				Html: &ses.Content{Charset: aws.String(charset), Data: aws.String(htmlBody)},
			},
		},
	}

	send := func(ctx context.Context) error {
		out, err := n.client.SendEmailWithContext(ctx, input)
		if err != nil {
			return err
		}
		logrus.WithField("message_id", aws.StringValue(out.MessageId)).Debug("Verification email accepted by SES")
		return nil
	}

	var err error
	if n.breaker != nil {
		err = n.breaker.Do(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
