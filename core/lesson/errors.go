package lesson

import (
	"errors"

	"github.com/trezcool/kujifunza/core/prereq"
)

var (
	ErrNotFound       = errors.New("lesson not found or not available")
	ErrNotEnrolled    = errors.New("student not enrolled in this course")
	ErrCourseNotFound = errors.New("course not found")
	ErrCodeExists     = errors.New("a lesson with this code already exists")

	errSelfPrerequisite = "a lesson cannot be its own prerequisite"
)

// ClassroomRequiredError means the student is enrolled but has not picked a classroom for the lesson yet.
type ClassroomRequiredError struct {
	LessonID    string
	LessonTitle string
}

func (e *ClassroomRequiredError) Error() string {
	return "must select a classroom before accessing lesson materials"
}

// PrerequisitesUnmetError carries the prerequisites the student still has to complete.
type PrerequisitesUnmetError struct {
	LessonTitle string
	Unmet       []prereq.Prerequisite
	All         []prereq.Prerequisite
}

func (e *PrerequisitesUnmetError) Error() string {
	return "prerequisites not met for this lesson"
}
