// Package notify delivers voter verification emails.
package notify

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"

	"github.com/pavitra93/go-election-system/shared/config"
	"github.com/pavitra93/go-election-system/shared/election"
	"github.com/pavitra93/go-election-system/shared/utils"
)

// New builds the notifier selected by NOTIFIER
func New(cfg *config.AppConfig) (election.Notifier, error) {
	switch cfg.Notifier {
	case "", "log":
		return NewLogNotifier(), nil
	case "ses":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		breaker := utils.NewBreaker("ses", 5, 30*time.Second)
		return NewSESNotifier(ses.New(sess), cfg.MailFrom, breaker), nil
	default:
		return nil, fmt.Errorf("unsupported notifier %q", cfg.Notifier)
	}
}
