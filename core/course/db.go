package course

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, title, description, thumbnail_url, price, sales, created_at, updated_at)
	VALUES
		(:course_id, :title, :description, :thumbnail_url, :price, :sales, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		title = :title,
		description = :description,
		thumbnail_url = :thumbnail_url,
		price = :price,
		updated_at = :updated_at
	WHERE course_id = :course_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}

	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `DELETE FROM courses WHERE course_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting course[%s]: %w", id, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}

	return c, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `SELECT * FROM courses ORDER BY created_at DESC`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}

	return courses, nil
}

func FetchTopBySales(ctx context.Context, db sqlx.ExtContext, limit int) ([]Course, error) {
	const q = `SELECT * FROM courses ORDER BY sales DESC, created_at DESC LIMIT $1`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, limit); err != nil {
		return nil, fmt.Errorf("selecting top courses: %w", err)
	}

	return courses, nil
}

func CreateLesson(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	INSERT INTO lessons
		(lesson_id, course_id, position, title, description, video_ref, created_at)
	VALUES
		(:lesson_id, :course_id, :position, :title, :description, :video_ref, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, l); err != nil {
		return fmt.Errorf("inserting lesson: %w", err)
	}

	return nil
}

// FetchLessons returns the course's lessons in watch order.
func FetchLessons(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Lesson, error) {
	const q = `SELECT * FROM lessons WHERE course_id = $1 ORDER BY position`

	lessons := []Lesson{}
	if err := sqlx.SelectContext(ctx, db, &lessons, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting lessons of course[%s]: %w", courseID, err)
	}

	return lessons, nil
}

func CountLessons(ctx context.Context, db sqlx.ExtContext, courseID string) (int, error) {
	const q = `SELECT count(*) FROM lessons WHERE course_id = $1`

	var n int
	if err := sqlx.GetContext(ctx, db, &n, q, courseID); err != nil {
		return 0, fmt.Errorf("counting lessons of course[%s]: %w", courseID, err)
	}

	return n, nil
}

// DeleteLesson removes one lesson and closes the positional gap it leaves.
func DeleteLesson(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const qDel = `DELETE FROM lessons WHERE lesson_id = $1`
	if _, err := db.ExecContext(ctx, qDel, l.ID); err != nil {
		return fmt.Errorf("deleting lesson[%s]: %w", l.ID, err)
	}

	const qShift = `UPDATE lessons SET position = position - 1 WHERE course_id = $1 AND position > $2`
	if _, err := db.ExecContext(ctx, qShift, l.CourseID, l.Position); err != nil {
		return fmt.Errorf("reindexing lessons of course[%s]: %w", l.CourseID, err)
	}

	return nil
}
