// Package entitlement is the persisted "user purchased course" relation.
// It is a derived cache of orders that reached paid, written only by the
// settlement path and read by the access gate.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/core/claims"
	"github.com/learnhub/lms/core/course"
	"github.com/learnhub/lms/validate"
)

type Entitlement struct {
	UserID    string    `json:"userId" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Grant records the entitlement. Granting an already-entitled pair is a
// no-op, which makes replayed settlements harmless at this layer.
func Grant(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) error {
	const q = `
	INSERT INTO entitlements (user_id, course_id, created_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("granting entitlement user[%s] course[%s]: %w", userID, courseID, err)
	}

	return nil
}

// Check reports whether the user is entitled to the course. Pure read.
func Check(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) (bool, error) {
	const q = `SELECT count(*) FROM entitlements WHERE user_id = $1 AND course_id = $2`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, userID, courseID); err != nil {
		return false, fmt.Errorf("checking entitlement user[%s] course[%s]: %w", userID, courseID, err)
	}

	return n > 0, nil
}

// FetchCourses lists the courses the user is entitled to.
func FetchCourses(ctx context.Context, db sqlx.ExtContext, userID string) ([]course.Course, error) {
	const q = `
	SELECT c.* FROM courses c
	JOIN entitlements e ON e.course_id = c.course_id
	WHERE e.user_id = $1
	ORDER BY e.created_at DESC`

	courses := []course.Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, userID); err != nil {
		return nil, fmt.Errorf("selecting courses owned by user[%s]: %w", userID, err)
	}

	return courses, nil
}

// Required is the access gate: it admits the request iff the authenticated
// user is entitled to the course named by the course_id route parameter.
func Required(db *sqlx.DB) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := claims.Get(ctx)
			if err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			courseID := web.Param(r, "course_id")
			if err := validate.CheckID(courseID); err != nil {
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}

			ok, err := Check(ctx, db, clm.UserID, courseID)
			if err != nil {
				return err
			}
			if !ok {
				return weberr.Forbidden(fmt.Errorf("user[%s] is not entitled to course[%s]", clm.UserID, courseID))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// HandleListOwned serves the authenticated user's entitled courses.
func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courses, err := FetchCourses(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}
