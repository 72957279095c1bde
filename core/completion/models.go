package completion

import (
	"math"
	"time"
)

// CourseCreditTarget is the number of credits that completes a course.
const CourseCreditTarget = 30

// Enrolment statuses
const (
	EnrolmentEnrolled  = "enrolled"
	EnrolmentCompleted = "completed"
)

const CourseCompletionCompleted = "completed"

type (
	// Completion is a student's completion of a lesson.
	// CreditsEarned is a snapshot of the lesson's credit value at completion time.
	Completion struct {
		ID            string    `json:"id" boil:"id"`
		StudentID     string    `json:"student_id" boil:"student_id"`
		LessonID      string    `json:"lesson_id" boil:"lesson_id"`
		CreditsEarned int       `json:"credits_earned" boil:"credits_earned"`
		CompletedAt   time.Time `json:"completed_at" boil:"completed_at"` // UTC
	}

	Enrolment struct {
		ID           string    `json:"id" boil:"id"`
		StudentID    string    `json:"student_id" boil:"student_id"`
		CourseID     string    `json:"course_id" boil:"course_id"`
		Credits      int       `json:"credits" boil:"credits"`
		Progress     int       `json:"progress" boil:"progress"`
		Status       string    `json:"status" boil:"status"`
		DateEnrolled time.Time `json:"date_enrolled" boil:"date_enrolled"` // UTC
	}

	CourseCompletion struct {
		ID                 string    `json:"id" boil:"id"`
		StudentID          string    `json:"student_id" boil:"student_id"`
		CourseID           string    `json:"course_id" boil:"course_id"`
		TotalCreditsEarned int       `json:"total_credits_earned" boil:"total_credits_earned"`
		CompletionStatus   string    `json:"completion_status" boil:"completion_status"`
		CompletedAt        time.Time `json:"completed_at" boil:"completed_at"` // UTC
	}

	// Result is the outcome of marking a lesson complete.
	Result struct {
		Completion      Completion `json:"completion"`
		CourseID        string     `json:"course_id"`
		NewCredits      int        `json:"new_credits"`
		NewProgress     int        `json:"new_progress"`
		CourseCompleted bool       `json:"course_completed"` // true only when this completion finished the course
		LessonTitle     string     `json:"lesson_title"`
	}

	Status struct {
		Completed     bool       `json:"completed"`
		CompletedAt   *time.Time `json:"completed_at"`
		CreditsEarned *int       `json:"credits_earned"`
	}
)

// ProgressFor returns the course progress percentage for the given credits, clamped to [0, 100].
func ProgressFor(credits int) int {
	p := int(math.Round(float64(credits) / CourseCreditTarget * 100))
	switch {
	case p > 100:
		return 100
	case p < 0:
		return 0
	}
	return p
}

// apply raises the enrolment's credits to the recomputed sum and derives progress and status.
// Credits never go down: a sum below the stored value (e.g. after a lesson was detached) is ignored.
// It reports whether the course target is reached.
func (e *Enrolment) apply(credits int) bool {
	if credits > e.Credits {
		e.Credits = credits
	}
	credits = e.Credits
	e.Progress = ProgressFor(credits)
	if credits >= CourseCreditTarget {
		e.Status = EnrolmentCompleted
		return true
	}
	return false
}
