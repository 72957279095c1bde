package course

import "errors"

var (
	ErrNotFound         = errors.New("course not found")
	ErrCodeExists       = errors.New("a course with this code already exists")
	ErrDirectorNotFound = errors.New("director not found")
	ErrHasEnrolments    = errors.New("cannot delete a course with existing enrolments")
)
