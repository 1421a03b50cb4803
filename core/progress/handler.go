package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/learnhub/lms/api/web"
	"github.com/learnhub/lms/api/weberr"
	"github.com/learnhub/lms/core/claims"
	"github.com/learnhub/lms/core/course"
	"github.com/learnhub/lms/database"
	"github.com/learnhub/lms/validate"
)

func fetchLessons(ctx context.Context, db sqlx.ExtContext, courseID string) ([]course.Lesson, error) {
	if err := validate.CheckID(courseID); err != nil {
		return nil, weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
	}

	if _, err := course.Fetch(ctx, db, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, weberr.NotFound(err)
		}
		return nil, err
	}

	return course.FetchLessons(ctx, db, courseID)
}

// HandleShow serves the progress record, lazily creating a zero-valued one.
func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		lessons, err := fetchLessons(ctx, db, courseID)
		if err != nil {
			return err
		}

		p, err := GetOrInit(ctx, db, clm.UserID, courseID)
		if err != nil {
			return err
		}

		watched, err := FetchWatched(ctx, db, clm.UserID, courseID)
		if err != nil {
			return err
		}

		resp := struct {
			Progress View `json:"progress"`
		}{makeView(lessons, p, watched)}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleRecordWatch records a watch event for one lesson, addressed by its
// position in the course's current ordering. The watched set, completion
// percentage, last-watched pointer and one-shot completion timestamp are
// updated in a single transaction.
func HandleRecordWatch(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		lessons, err := fetchLessons(ctx, db, courseID)
		if err != nil {
			return err
		}

		idx, err := strconv.Atoi(web.Param(r, "lesson_index"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("lesson index is not a number: %w", err))
		}

		if idx < 0 || idx >= len(lessons) {
			return weberr.NotFound(fmt.Errorf("course[%s] has no lesson at index %d", courseID, idx))
		}
		lesson := lessons[idx]

		var p Progress
		var watched map[string]bool

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if p, err = GetOrInit(ctx, tx, clm.UserID, courseID); err != nil {
				return err
			}

			if err := AddWatched(ctx, tx, clm.UserID, courseID, lesson.ID); err != nil {
				return err
			}

			if watched, err = FetchWatched(ctx, tx, clm.UserID, courseID); err != nil {
				return err
			}

			// Last-watched only ever moves forward.
			last := lesson.ID
			if p.LastWatchedLesson != nil {
				for _, l := range lessons {
					if l.ID == *p.LastWatchedLesson && l.Position > idx {
						last = l.ID
						break
					}
				}
			}
			p.LastWatchedLesson = &last

			n := watchedCount(lessons, watched)
			p.Percentage = percentage(n, len(lessons))

			if n == len(lessons) && p.CompletedAt == nil {
				now := time.Now().UTC()
				p.CompletedAt = &now
			}

			p.UpdatedAt = time.Now().UTC()
			return Update(ctx, tx, p)
		})
		if err != nil {
			return err
		}

		resp := struct {
			Success  bool `json:"success"`
			Progress View `json:"progress"`
		}{true, makeView(lessons, p, watched)}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleNextLesson computes the first unwatched lesson. With no progress
// record it is simply the first lesson.
func HandleNextLesson(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID := web.Param(r, "course_id")
		lessons, err := fetchLessons(ctx, db, courseID)
		if err != nil {
			return err
		}

		resp := NextLesson{TotalLessons: len(lessons)}

		if _, err := Fetch(ctx, db, clm.UserID, courseID); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			resp.HasUnwatchedLessons = true
			return web.Respond(ctx, w, resp, http.StatusOK)
		}

		watched, err := FetchWatched(ctx, db, clm.UserID, courseID)
		if err != nil {
			return err
		}

		resp.NextLessonIndex, resp.HasUnwatchedLessons = nextUnwatched(lessons, watched)
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
