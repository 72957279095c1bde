package enrolment

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kujifunza/core"
)

// Classroom statuses
const (
	ClassroomActive   = "active"
	ClassroomArchived = "archived"
)

// Classroom defaults
const (
	DefaultDurationWeeks = 12
	DefaultMaxCapacity   = 30
)

// ClassroomOrderingFields are the fields classrooms may be ordered by.
var ClassroomOrderingFields = []string{"created_at", "code", "max_capacity"}

type (
	Classroom struct {
		ID            string    `json:"id" db:"id" boil:"id"`
		Code          string    `json:"code" db:"code" boil:"code"`
		CourseID      string    `json:"course_id" db:"course_id" boil:"course_id"`
		LessonID      string    `json:"lesson_id" db:"lesson_id" boil:"lesson_id"`
		StartDate     null.Time `json:"start_date" db:"start_date" boil:"start_date"`
		DurationWeeks int       `json:"duration_weeks" db:"duration_weeks" boil:"duration_weeks"`
		MaxCapacity   int       `json:"max_capacity" db:"max_capacity" boil:"max_capacity"`
		Status        string    `json:"status" db:"status" boil:"status"`
		Headcount     int       `json:"headcount" db:"headcount" boil:"headcount"`
		CreatedAt     time.Time `json:"created_at" db:"created_at" boil:"created_at"` // UTC
	}

	ClassroomEnrolment struct {
		ID          string    `json:"id" boil:"id"`
		StudentID   string    `json:"student_id" boil:"student_id"`
		ClassroomID string    `json:"classroom_id" boil:"classroom_id"`
		LessonID    string    `json:"lesson_id" boil:"lesson_id"`
		CreatedAt   time.Time `json:"created_at" boil:"created_at"` // UTC
	}

	// NewClassroom contains information needed to open a classroom for a lesson of a course.
	// A blank Code is generated; a nil MaxCapacity defaults to DefaultMaxCapacity, 0 means unlimited.
	NewClassroom struct {
		Code          string    `json:"code" validate:"max=50"`
		CourseID      string    `json:"course_id" validate:"required,uuid"`
		LessonID      string    `json:"lesson_id" validate:"required,uuid"`
		StartDate     null.Time `json:"start_date"`
		DurationWeeks int       `json:"duration_weeks" validate:"gte=0,lte=104"`
		MaxCapacity   *int      `json:"max_capacity" validate:"omitempty,gte=0"`
		Status        string    `json:"status" validate:"omitempty,oneof=active archived"`
	}

	// ClassroomDetails replaces the editable fields of a classroom as a whole.
	ClassroomDetails struct {
		Code          string    `json:"code" validate:"required,max=50"`
		StartDate     null.Time `json:"start_date"`
		DurationWeeks int       `json:"duration_weeks" validate:"gte=1,lte=104"`
		MaxCapacity   int       `json:"max_capacity" validate:"gte=0"`
		Status        string    `json:"status" validate:"required,oneof=active archived"`
	}

	NewEnrolment struct {
		StudentID string `json:"student_id" validate:"required,uuid"`
		CourseID  string `json:"course_id" validate:"required,uuid"`
	}

	NewClassroomSelection struct {
		StudentID   string `json:"student_id" validate:"required,uuid"`
		ClassroomID string `json:"classroom_id" validate:"required,uuid"`
	}
)

func (c Classroom) IsFull() bool {
	return c.MaxCapacity > 0 && c.Headcount >= c.MaxCapacity
}

func (ne *NewEnrolment) Clean() {
	ne.StudentID = core.CleanString(ne.StudentID, true /* lower */)
	ne.CourseID = core.CleanString(ne.CourseID, true /* lower */)
}

func (ns *NewClassroomSelection) Clean() {
	ns.StudentID = core.CleanString(ns.StudentID, true /* lower */)
	ns.ClassroomID = core.CleanString(ns.ClassroomID, true /* lower */)
}

func (nc *NewClassroom) Clean() {
	nc.Code = core.CleanString(nc.Code)
	if nc.Code == "" {
		nc.Code = "cls-" + strings.SplitN(uuid.New().String(), "-", 2)[0]
	}
	nc.CourseID = core.CleanString(nc.CourseID, true /* lower */)
	nc.LessonID = core.CleanString(nc.LessonID, true /* lower */)
	if nc.DurationWeeks == 0 {
		nc.DurationWeeks = DefaultDurationWeeks
	}
	if nc.MaxCapacity == nil {
		capacity := DefaultMaxCapacity
		nc.MaxCapacity = &capacity
	}
	nc.Status = core.CleanString(nc.Status, true /* lower */)
	if nc.Status == "" {
		nc.Status = ClassroomActive
	}
}

func (nc NewClassroom) classroom() Classroom {
	return Classroom{
		Code:          nc.Code,
		CourseID:      nc.CourseID,
		LessonID:      nc.LessonID,
		StartDate:     nc.StartDate,
		DurationWeeks: nc.DurationWeeks,
		MaxCapacity:   *nc.MaxCapacity,
		Status:        nc.Status,
		CreatedAt:     time.Now().UTC(),
	}
}

func (cd *ClassroomDetails) Clean() {
	cd.Code = core.CleanString(cd.Code)
	cd.Status = core.CleanString(cd.Status, true /* lower */)
}

func (cd ClassroomDetails) apply(room Classroom) Classroom {
	room.Code = cd.Code
	room.StartDate = cd.StartDate
	room.DurationWeeks = cd.DurationWeeks
	room.MaxCapacity = cd.MaxCapacity
	room.Status = cd.Status
	return room
}
