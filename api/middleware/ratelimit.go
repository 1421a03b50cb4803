package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/rate"
)

// RateLimit rejects clients exceeding the per-address budget with a 429.
// Used on the credential endpoints to slow down guessing.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !lim.Check(ip) {
				err := errors.New("too many requests")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
