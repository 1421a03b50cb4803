package course

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
	"github.com/learnhub/lms/database"
	"github.com/learnhub/lms/media"
	"github.com/learnhub/lms/validate"
)

// HandleList serves the public catalog. Lesson detail is stripped: the
// listing carries only course-level metadata.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courses, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, courses, http.StatusOK)
	}
}

// HandleShow serves the public course detail, lessons included. Video
// references are never serialized; entitled users exchange them for
// delivery URLs on the gated video route.
func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if c.Lessons, err = FetchLessons(ctx, db, c.ID); err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		c := Course{
			ID:           validate.GenerateID(),
			Title:        cn.Title,
			Description:  cn.Description,
			ThumbnailURL: cn.ThumbnailURL,
			Price:        cn.Price,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Create(ctx, tx, c); err != nil {
				return err
			}

			for i, ln := range cn.Lessons {
				l := Lesson{
					ID:          validate.GenerateID(),
					CourseID:    c.ID,
					Position:    i,
					Title:       ln.Title,
					Description: ln.Description,
					VideoRef:    ln.VideoRef,
					CreatedAt:   now,
				}
				if err := CreateLesson(ctx, tx, l); err != nil {
					return err
				}
				c.Lessons = append(c.Lessons, l)
			}

			return nil
		})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if cu.Title != nil {
			c.Title = *cu.Title
		}
		if cu.Description != nil {
			c.Description = *cu.Description
		}
		if cu.ThumbnailURL != nil {
			c.ThumbnailURL = *cu.ThumbnailURL
		}
		if cu.Price != nil {
			c.Price = *cu.Price
		}
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if err := Delete(ctx, db, id); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleCreateLesson appends a lesson at the end of the course.
func HandleCreateLesson(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var ln LessonNew
		if err := web.Decode(w, r, &ln); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ln); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := Fetch(ctx, db, courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		var l Lesson
		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			n, err := CountLessons(ctx, tx, courseID)
			if err != nil {
				return err
			}

			l = Lesson{
				ID:          validate.GenerateID(),
				CourseID:    courseID,
				Position:    n,
				Title:       ln.Title,
				Description: ln.Description,
				VideoRef:    ln.VideoRef,
				CreatedAt:   time.Now().UTC(),
			}

			return CreateLesson(ctx, tx, l)
		})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, l, http.StatusCreated)
	}
}

// HandleDeleteLesson removes a lesson by position and shifts the remainder
// down. Recorded progress keyed on the lesson id goes away with the lesson.
func HandleDeleteLesson(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		idx, err := strconv.Atoi(web.Param(r, "index"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("lesson index is not a number: %w", err))
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			lessons, err := FetchLessons(ctx, tx, courseID)
			if err != nil {
				return err
			}

			if idx < 0 || idx >= len(lessons) {
				return weberr.NotFound(fmt.Errorf("course[%s] has no lesson at index %d", courseID, idx))
			}

			return DeleteLesson(ctx, tx, lessons[idx])
		})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleShowLessonVideo exchanges the stored video reference of one lesson
// for a delivery URL. The route is wrapped by the entitlement gate, so only
// purchasers get here.
func HandleShowLessonVideo(db *sqlx.DB, assets *media.Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		idx, err := strconv.Atoi(web.Param(r, "index"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("lesson index is not a number: %w", err))
		}

		lessons, err := FetchLessons(ctx, db, courseID)
		if err != nil {
			return err
		}

		if idx < 0 || idx >= len(lessons) {
			return weberr.NotFound(fmt.Errorf("course[%s] has no lesson at index %d", courseID, idx))
		}
		lesson := lessons[idx]

		url, err := assets.VideoURL(lesson.VideoRef)
		if err != nil {
			return fmt.Errorf("signing video URL of lesson[%s]: %w", lesson.ID, err)
		}

		resp := struct {
			VideoURL    string `json:"videoUrl"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}{
			VideoURL:    url,
			Title:       lesson.Title,
			Description: lesson.Description,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}
