package course

import "time"

type Course struct {
	ID           string    `json:"id" db:"course_id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	ThumbnailURL string    `json:"thumbnailUrl" db:"thumbnail_url"`
	Price        int       `json:"price" db:"price"`
	Sales        int       `json:"sales" db:"sales"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`

	Lessons []Lesson `json:"lessons,omitempty" db:"-"`
}

// Lesson carries a stable id next to its mutable position: the watched-set
// and last-watched pointers reference the id, so reordering or deleting
// lessons cannot silently re-target recorded progress.
type Lesson struct {
	ID          string    `json:"id" db:"lesson_id"`
	CourseID    string    `json:"-" db:"course_id"`
	Position    int       `json:"index" db:"position"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	VideoRef    string    `json:"-" db:"video_ref"`
	CreatedAt   time.Time `json:"-" db:"created_at"`
}

type CourseNew struct {
	Title        string      `json:"title" validate:"required"`
	Description  string      `json:"description"`
	ThumbnailURL string      `json:"thumbnailUrl"`
	Price        int         `json:"price" validate:"gte=0"`
	Lessons      []LessonNew `json:"lessons" validate:"dive"`
}

type CourseUp struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	Price        *int    `json:"price" validate:"omitempty,gte=0"`
}

type LessonNew struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	VideoRef    string `json:"videoRef"`
}
