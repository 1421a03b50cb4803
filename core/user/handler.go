package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/core/claims"
	"github.com/learnhub/lms/media"
)

func HandleShowCurrent(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		usr, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, usr, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		users, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, users, http.StatusOK)
	}
}

// HandleUploadAvatar stores the uploaded image on the asset host and saves
// its URL on the account.
func HandleUploadAvatar(db *sqlx.DB, assets *media.Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		if !assets.Enabled() {
			err := errors.New("asset host is not configured")
			return weberr.NewError(err, err.Error(), http.StatusServiceUnavailable)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("reading uploaded file: %w", err))
		}
		defer file.Close()

		up, err := assets.UploadFile(ctx, file, "image")
		if err != nil {
			return fmt.Errorf("uploading avatar for user[%s]: %w", clm.UserID, err)
		}

		if err := UpdateAvatar(ctx, db, clm.UserID, up.URL); err != nil {
			return err
		}

		return web.Respond(ctx, w, up, http.StatusOK)
	}
}
