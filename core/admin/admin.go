// Package admin serves the dashboard: aggregate figures over users, the
// order ledger and course sales, plus media uploads.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/core/course"
	"github.com/learnhub/lms/media"
)

type Stats struct {
	TotalUsers int             `json:"totalUsers"`
	TotalSales int             `json:"totalSales"`
	Revenue    int             `json:"revenue"`
	TopCourses []course.Course `json:"topCourses"`
}

func fetchStats(ctx context.Context, db *sqlx.DB) (Stats, error) {
	var s Stats

	const qUsers = `SELECT count(*) FROM users`
	if err := sqlx.GetContext(ctx, db, &s.TotalUsers, qUsers); err != nil {
		return Stats{}, fmt.Errorf("counting users: %w", err)
	}

	const qSales = `
	SELECT count(*), COALESCE(sum(amount), 0)
	FROM orders WHERE status = 'paid'`
	if err := db.QueryRowxContext(ctx, qSales).Scan(&s.TotalSales, &s.Revenue); err != nil {
		return Stats{}, fmt.Errorf("aggregating paid orders: %w", err)
	}

	top, err := course.FetchTopBySales(ctx, db, 5)
	if err != nil {
		return Stats{}, err
	}
	s.TopCourses = top

	return s, nil
}

func HandleStats(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		stats, err := fetchStats(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, stats, http.StatusOK)
	}
}

// HandleUpload pushes an image or video to the asset host and returns the
// hosted URL together with the opaque reference to store on a lesson.
func HandleUpload(assets *media.Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if !assets.Enabled() {
			err := errors.New("asset host is not configured")
			return weberr.NewError(err, err.Error(), http.StatusServiceUnavailable)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("reading uploaded file: %w", err))
		}
		defer file.Close()

		resourceType := r.FormValue("resourceType")
		if resourceType == "" {
			resourceType = "image"
		}
		if resourceType != "image" && resourceType != "video" {
			return weberr.BadRequest(fmt.Errorf("unsupported resource type %q", resourceType))
		}

		up, err := assets.UploadFile(ctx, file, resourceType)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, up, http.StatusOK)
	}
}
