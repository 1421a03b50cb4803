package email

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ConsoleMailer logs messages instead of sending them. It is the fallback
// when no sendgrid key is configured.
type ConsoleMailer struct {
	Log logrus.FieldLogger
}

func (m ConsoleMailer) Send(ctx context.Context, msg Message) error {
	m.Log.WithFields(logrus.Fields{
		"to":      msg.ToAddress,
		"subject": msg.Subject,
	}).Infof("email (not sent, mailer unconfigured): %s", msg.Body)
	return nil
}
