package email

import "context"

type Message struct {
	ToAddress string
	ToName    string
	ReplyTo   string
	Subject   string
	Body      string
}

// Mailer is implemented by the sendgrid relay and by the console fallback
// used when no API key is configured.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
