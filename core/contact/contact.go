package contact

import (
	"context"
	"fmt"
	"net/http"

	"github.com/learnhub/lms/api/background"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/email"
	"github.com/learnhub/lms/validate"
)

type Message struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

// HandleSend relays the contact form. The mail leaves through the
// background runner so a slow relay never blocks the request.
func HandleSend(mailer email.Mailer, to string, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var msg Message
		if err := web.Decode(w, r, &msg); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(msg); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		m := email.Message{
			ToAddress: to,
			ReplyTo:   msg.Email,
			Subject:   fmt.Sprintf("Contact form: %s", msg.Name),
			Body:      fmt.Sprintf("Name: %s\nEmail: %s\n\n%s", msg.Name, msg.Email, msg.Message),
		}

		bg.Add(func() error {
			return mailer.Send(context.Background(), m)
		})

		resp := struct {
			OK bool `json:"ok"`
		}{true}

		return web.Respond(ctx, w, resp, http.StatusAccepted)
	}
}
