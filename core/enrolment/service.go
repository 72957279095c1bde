package enrolment

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
)

var (
	ErrStudentNotFound          = errors.New("student not found")
	ErrCourseNotFound           = errors.New("course not found")
	ErrClassroomNotFound        = errors.New("classroom not found")
	ErrAlreadyEnrolled          = errors.New("student already enrolled in this course")
	ErrNotEnrolled              = errors.New("student not enrolled in the classroom's course")
	ErrClassroomAlreadySelected = errors.New("a classroom was already selected for this lesson")
	ErrClassroomFull            = errors.New("classroom is full")
	ErrClassroomInactive        = errors.New("classroom is not active")
	ErrClassroomCodeExists      = errors.New("a classroom with this code already exists")
	ErrLessonNotInCourse        = errors.New("lesson is not attached to this course")
	ErrClassroomHasStudents     = errors.New("classroom has enrolled students, archive it instead")

	errCapacityBelowHeadcount = "capacity is below the number of enrolled students"
)

type (
	Repository interface {
		// CreateEnrolment returns ErrAlreadyEnrolled, ErrStudentNotFound or ErrCourseNotFound.
		CreateEnrolment(ctx context.Context, enr completion.Enrolment, exec ...core.DBExecutor) (completion.Enrolment, error)
		IsEnrolledInCourse(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error)

		// LockClassroom locks the classroom for the rest of the transaction and counts its students.
		// Returns ErrClassroomNotFound.
		LockClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (Classroom, error)
		// CreateClassroomEnrolment returns ErrClassroomAlreadySelected if the student picked a classroom for the lesson.
		CreateClassroomEnrolment(ctx context.Context, ce ClassroomEnrolment, exec ...core.DBExecutor) (ClassroomEnrolment, error)

		// CreateClassroom returns ErrClassroomCodeExists, or ErrLessonNotInCourse unless the lesson is attached to the course.
		CreateClassroom(ctx context.Context, room Classroom, exec ...core.DBExecutor) (Classroom, error)
		// UpdateClassroom saves the editable fields of room. Returns ErrClassroomNotFound or ErrClassroomCodeExists.
		UpdateClassroom(ctx context.Context, room Classroom, exec ...core.DBExecutor) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	// ClassroomQuerier is the read side of classrooms.
	ClassroomQuerier interface {
		// ListClassrooms lists the classrooms of a lesson along with their headcount.
		// ordering fields are trusted.
		ListClassrooms(ctx context.Context, lessonID string, ordering []core.DBOrdering) ([]Classroom, error)
		// GetClassroom returns ErrClassroomNotFound if no classroom has this id.
		GetClassroom(ctx context.Context, id string) (Classroom, error)
	}

	Service interface {
		Enrol(ctx context.Context, ne NewEnrolment) (completion.Enrolment, error)
		// SelectClassroom records the student's classroom for the classroom's lesson.
		SelectClassroom(ctx context.Context, ns NewClassroomSelection) (ClassroomEnrolment, error)
		ListClassrooms(ctx context.Context, lessonID string, ordering []core.DBOrdering) ([]Classroom, error)

		CreateClassroom(ctx context.Context, nc NewClassroom) (Classroom, error)
		GetClassroom(ctx context.Context, id string) (Classroom, error)
		// UpdateClassroom refuses a capacity below the current headcount, unless it lifts the limit.
		UpdateClassroom(ctx context.Context, id string, cd ClassroomDetails) (Classroom, error)
		// DeleteClassroom returns ErrClassroomHasStudents once a student selected the classroom.
		DeleteClassroom(ctx context.Context, id string) error
	}

	txRunner func(ctx context.Context, fn func(tx core.DBExecutor) error) error

	service struct {
		repo     Repository
		querier  ClassroomQuerier
		validate *validator.Validate
		runInTx  txRunner
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, querier ClassroomQuerier, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		querier:  querier,
		validate: validate,
		runInTx: func(ctx context.Context, fn func(tx core.DBExecutor) error) error {
			return core.RunInTx(ctx, db, fn)
		},
	}
}

func (svc *service) Enrol(ctx context.Context, ne NewEnrolment) (completion.Enrolment, error) {
	ne.Clean()
	if err := svc.validate.Struct(ne); err != nil {
		return completion.Enrolment{}, err
	}

	enr, err := svc.repo.CreateEnrolment(ctx, completion.Enrolment{
		StudentID:    ne.StudentID,
		CourseID:     ne.CourseID,
		Status:       completion.EnrolmentEnrolled,
		DateEnrolled: time.Now().UTC(),
	})
	switch err {
	case ErrStudentNotFound:
		return completion.Enrolment{}, core.NewFieldValidationError("student_id", err.Error())
	case ErrCourseNotFound:
		return completion.Enrolment{}, core.NewFieldValidationError("course_id", err.Error())
	}
	return enr, err
}

func (svc *service) SelectClassroom(ctx context.Context, ns NewClassroomSelection) (ClassroomEnrolment, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return ClassroomEnrolment{}, err
	}

	var ce ClassroomEnrolment
	err := svc.runInTx(ctx, func(tx core.DBExecutor) error {
		room, err := svc.repo.LockClassroom(ctx, ns.ClassroomID, tx)
		if err != nil {
			if err == ErrClassroomNotFound {
				return core.NewFieldValidationError("classroom_id", err.Error())
			}
			return err
		}
		if room.Status != ClassroomActive {
			return ErrClassroomInactive
		}

		enrolled, err := svc.repo.IsEnrolledInCourse(ctx, ns.StudentID, room.CourseID, tx)
		if err != nil {
			return err
		}
		if !enrolled {
			return ErrNotEnrolled
		}
		if room.IsFull() {
			return ErrClassroomFull
		}

		ce, err = svc.repo.CreateClassroomEnrolment(ctx, ClassroomEnrolment{
			StudentID:   ns.StudentID,
			ClassroomID: room.ID,
			LessonID:    room.LessonID,
			CreatedAt:   time.Now().UTC(),
		}, tx)
		return err
	})
	if err != nil {
		return ClassroomEnrolment{}, err
	}
	return ce, nil
}

func (svc *service) ListClassrooms(ctx context.Context, lessonID string, ordering []core.DBOrdering) ([]Classroom, error) {
	valid := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		for _, fld := range ClassroomOrderingFields {
			if ord.Field == fld {
				valid = append(valid, ord)
				break
			}
		}
	}
	if len(valid) == 0 {
		valid = append(valid, core.DBOrdering{Field: "created_at", Ascending: true})
	}
	return svc.querier.ListClassrooms(ctx, lessonID, valid)
}

func (svc *service) CreateClassroom(ctx context.Context, nc NewClassroom) (Classroom, error) {
	nc.Clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Classroom{}, err
	}

	room, err := svc.repo.CreateClassroom(ctx, nc.classroom())
	switch err {
	case ErrClassroomCodeExists:
		return Classroom{}, core.NewFieldValidationError("code", err.Error())
	case ErrLessonNotInCourse:
		return Classroom{}, core.NewFieldValidationError("course_id", err.Error())
	}
	return room, err
}

func (svc *service) GetClassroom(ctx context.Context, id string) (Classroom, error) {
	return svc.querier.GetClassroom(ctx, id)
}

func (svc *service) UpdateClassroom(ctx context.Context, id string, cd ClassroomDetails) (Classroom, error) {
	cd.Clean()
	if err := svc.validate.Struct(cd); err != nil {
		return Classroom{}, err
	}

	var room Classroom
	err := svc.runInTx(ctx, func(tx core.DBExecutor) error {
		locked, err := svc.repo.LockClassroom(ctx, id, tx)
		if err != nil {
			return err
		}
		if cd.MaxCapacity > 0 && cd.MaxCapacity < locked.Headcount {
			return core.NewFieldValidationError("max_capacity", errCapacityBelowHeadcount)
		}

		room, err = svc.repo.UpdateClassroom(ctx, cd.apply(locked), tx)
		if err == ErrClassroomCodeExists {
			return core.NewFieldValidationError("code", err.Error())
		}
		room.Headcount = locked.Headcount
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return room, nil
}

func (svc *service) DeleteClassroom(ctx context.Context, id string) error {
	return svc.runInTx(ctx, func(tx core.DBExecutor) error {
		room, err := svc.repo.LockClassroom(ctx, id, tx)
		if err != nil {
			return err
		}
		if room.Headcount > 0 {
			return ErrClassroomHasStudents
		}
		return svc.repo.DeleteClassroom(ctx, room.ID, tx)
	})
}
