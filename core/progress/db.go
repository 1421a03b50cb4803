package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) (Progress, error) {
	const q = `SELECT * FROM course_progress WHERE user_id = $1 AND course_id = $2`

	var p Progress
	if err := sqlx.GetContext(ctx, db, &p, q, userID, courseID); err != nil {
		return Progress{}, fmt.Errorf("selecting progress user[%s] course[%s]: %w", userID, courseID, err)
	}

	return p, nil
}

// GetOrInit returns the progress record, lazily creating a zero-valued one
// on first use. Concurrent first requests race on the insert; the conflict
// clause makes that harmless.
func GetOrInit(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) (Progress, error) {
	p, err := Fetch(ctx, db, userID, courseID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Progress{}, err
	}

	const q = `
	INSERT INTO course_progress (user_id, course_id, percentage, created_at, updated_at)
	VALUES ($1, $2, 0, $3, $3)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID, courseID, time.Now().UTC()); err != nil {
		return Progress{}, fmt.Errorf("initializing progress user[%s] course[%s]: %w", userID, courseID, err)
	}

	return Fetch(ctx, db, userID, courseID)
}

func Update(ctx context.Context, db sqlx.ExtContext, p Progress) error {
	const q = `
	UPDATE course_progress SET
		last_watched_lesson = :last_watched_lesson,
		percentage = :percentage,
		completed_at = :completed_at,
		updated_at = :updated_at
	WHERE user_id = :user_id AND course_id = :course_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("updating progress user[%s] course[%s]: %w", p.UserID, p.CourseID, err)
	}

	return nil
}

// AddWatched records a lesson into the watched set. Duplicates are no-ops.
func AddWatched(ctx context.Context, db sqlx.ExtContext, userID string, courseID string, lessonID string) error {
	const q = `
	INSERT INTO watched_lessons (user_id, course_id, lesson_id, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, course_id, lesson_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID, courseID, lessonID, time.Now().UTC()); err != nil {
		return fmt.Errorf("recording watched lesson[%s] user[%s]: %w", lessonID, userID, err)
	}

	return nil
}

// FetchWatched returns the watched set as lesson ids.
func FetchWatched(ctx context.Context, db sqlx.ExtContext, userID string, courseID string) (map[string]bool, error) {
	const q = `SELECT lesson_id FROM watched_lessons WHERE user_id = $1 AND course_id = $2`

	ids := []string{}
	if err := sqlx.SelectContext(ctx, db, &ids, q, userID, courseID); err != nil {
		return nil, fmt.Errorf("selecting watched lessons user[%s] course[%s]: %w", userID, courseID, err)
	}

	watched := make(map[string]bool, len(ids))
	for _, id := range ids {
		watched[id] = true
	}

	return watched, nil
}
