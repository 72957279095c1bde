package completion

import "errors"

var (
	ErrNotFound          = errors.New("completion not found")
	ErrAlreadyCompleted  = errors.New("lesson already completed")
	ErrLessonNotAttached = errors.New("lesson is not attached to any course")
	ErrLessonArchived    = errors.New("archived lessons can no longer be completed")
)
