// Package auth owns session-based authentication: signup/login/logout,
// the OAuth login flow, and the middleware that turns a session into
// request claims.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/core/claims"
)

const (
	userIDKey = "user_id"
	roleKey   = "user_role"
	stateKey  = "oauth_state"
)

// LoadAndSave adapts the session manager's cookie handling to the web
// middleware chain. It must be the outermost middleware so every handler
// sees a loaded session.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			sh := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			}))
			sh.ServeHTTP(w, r)

			return err
		}
		return h
	}
	return m
}

// Authenticate rejects requests without a logged-in session and loads the
// session identity into the request claims.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			clm := claims.Claims{
				UserID: userID,
				Role:   session.GetString(ctx, roleKey),
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Admin is Authenticate plus an admin-role check.
func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			if session.GetString(ctx, roleKey) != claims.RoleAdmin {
				return weberr.Forbidden(errors.New("admin access required"))
			}

			clm := claims.Claims{
				UserID: userID,
				Role:   claims.RoleAdmin,
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

func login(ctx context.Context, session *scs.SessionManager, userID string, role string) error {
	if err := session.RenewToken(ctx); err != nil {
		return err
	}

	session.Put(ctx, userIDKey, userID)
	session.Put(ctx, roleKey, role)
	return nil
}
