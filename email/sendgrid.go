package email

import (
	"context"
	"fmt"

	"github.com/learnhub/lms/config"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendgridMailer struct {
	client   *sendgrid.Client
	fromAddr string
	fromName string
}

func NewSendgrid(cfg config.Email) *SendgridMailer {
	return &SendgridMailer{
		client:   sendgrid.NewSendClient(cfg.APIKey),
		fromAddr: cfg.FromAddress,
		fromName: cfg.FromName,
	}
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(m.fromName, m.fromAddr)
	to := mail.NewEmail(msg.ToName, msg.ToAddress)

	sgm := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")
	if msg.ReplyTo != "" {
		sgm.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}

	resp, err := m.client.SendWithContext(ctx, sgm)
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", msg.ToAddress, err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sending email to %s: status %d: %s", msg.ToAddress, resp.StatusCode, resp.Body)
	}

	return nil
}
