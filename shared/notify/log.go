package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier writes outgoing mail to the log instead of sending it. It is
// meant for local development where the verification link is read from the
// console.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Send(_ context.Context, to, subject, htmlBody string) error {
	logrus.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Email (not sent)")
	logrus.Debug(htmlBody)
	return nil
}
