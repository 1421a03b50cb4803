// Package progress tracks, per user and course, which lessons were watched
// and whether the course was completed. Writes are idempotent: rewatching a
// lesson changes nothing, and the completion timestamp is stamped exactly
// once, on the watch event that fills the set.
package progress

import (
	"math"
	"sort"
	"time"

	"github.com/learnhub/lms/core/course"
)

type Progress struct {
	UserID            string     `db:"user_id"`
	CourseID          string     `db:"course_id"`
	LastWatchedLesson *string    `db:"last_watched_lesson"`
	Percentage        int        `db:"percentage"`
	CompletedAt       *time.Time `db:"completed_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// View is the index-based shape served to clients: watched lessons as
// ascending positions within the course's current lesson ordering.
type View struct {
	WatchedLessons     []int      `json:"watchedLessons"`
	LastWatchedLesson  int        `json:"lastWatchedLesson"`
	ProgressPercentage int        `json:"progressPercentage"`
	CompletedAt        *time.Time `json:"completedAt"`
}

type NextLesson struct {
	NextLessonIndex     int  `json:"nextLessonIndex"`
	TotalLessons        int  `json:"totalLessons"`
	HasUnwatchedLessons bool `json:"hasUnwatchedLessons"`
}

func percentage(watched int, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(watched) / float64(total) * 100))
}

// nextUnwatched returns the position of the first lesson not in the watched
// set. Once everything is watched it points at the last lesson.
func nextUnwatched(lessons []course.Lesson, watched map[string]bool) (int, bool) {
	for i, l := range lessons {
		if !watched[l.ID] {
			return i, true
		}
	}

	if len(lessons) == 0 {
		return 0, false
	}
	return len(lessons) - 1, false
}

// makeView maps the stored lesson ids back onto the course's current
// positions. Ids of since-deleted lessons simply drop out.
func makeView(lessons []course.Lesson, p Progress, watched map[string]bool) View {
	posByID := make(map[string]int, len(lessons))
	for i, l := range lessons {
		posByID[l.ID] = i
	}

	indices := make([]int, 0, len(watched))
	for id := range watched {
		if pos, ok := posByID[id]; ok {
			indices = append(indices, pos)
		}
	}
	sort.Ints(indices)

	v := View{
		WatchedLessons:     indices,
		ProgressPercentage: p.Percentage,
		CompletedAt:        p.CompletedAt,
	}

	if p.LastWatchedLesson != nil {
		if pos, ok := posByID[*p.LastWatchedLesson]; ok {
			v.LastWatchedLesson = pos
		}
	}

	return v
}

// watchedCount counts only watched ids that still belong to the course.
func watchedCount(lessons []course.Lesson, watched map[string]bool) int {
	n := 0
	for _, l := range lessons {
		if watched[l.ID] {
			n++
		}
	}
	return n
}
