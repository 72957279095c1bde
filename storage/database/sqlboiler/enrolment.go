package boiledrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
	"github.com/trezcool/kujifunza/core/enrolment"
	"github.com/trezcool/kujifunza/storage/database"
)

const classroomColumns = `id, code, course_id, lesson_id, start_date, duration_weeks, max_capacity, status, created_at`

type enrolmentRepository struct {
	repository
}

var _ enrolment.Repository = (*enrolmentRepository)(nil) // interface compliance check

func NewEnrolmentRepository(exec core.DBExecutor) *enrolmentRepository {
	return &enrolmentRepository{repository{exec: exec}}
}

func (repo enrolmentRepository) CreateEnrolment(ctx context.Context, enr completion.Enrolment, exec ...core.DBExecutor) (completion.Enrolment, error) {
	enr.ID = uuid.New().String()

	var created completion.Enrolment
	err := queries.Raw(`
		INSERT INTO student_enrolments (`+enrolmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+enrolmentColumns,
		enr.ID, enr.StudentID, enr.CourseID, enr.Credits, enr.Progress, enr.Status, enr.DateEnrolled.UTC(),
	).Bind(ctx, repo.getExec(exec), &created)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return completion.Enrolment{}, enrolment.ErrAlreadyEnrolled
		case database.IsForeignKeyViolation(err, "student_enrolments_student_id_fkey"):
			return completion.Enrolment{}, enrolment.ErrStudentNotFound
		case database.IsForeignKeyViolation(err, "student_enrolments_course_id_fkey"):
			return completion.Enrolment{}, enrolment.ErrCourseNotFound
		}
		return completion.Enrolment{}, errors.Wrap(err, "inserting enrolment")
	}
	created.DateEnrolled = created.DateEnrolled.UTC()
	return created, nil
}

func (repo enrolmentRepository) IsEnrolledInCourse(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (bool, error) {
	if !isUUID(studentID) || !isUUID(courseID) {
		return false, nil
	}

	var enrolled bool
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM student_enrolments WHERE student_id = $1 AND course_id = $2)`,
		studentID, courseID,
	).Scan(&enrolled)
	if err != nil {
		return false, errors.Wrap(err, "checking enrolment")
	}
	return enrolled, nil
}

func (repo enrolmentRepository) LockClassroom(ctx context.Context, id string, exec ...core.DBExecutor) (enrolment.Classroom, error) {
	if !isUUID(id) {
		return enrolment.Classroom{}, enrolment.ErrClassroomNotFound
	}

	var room enrolment.Classroom
	err := queries.Raw(`
		SELECT c.id, c.code, c.course_id, c.lesson_id, c.start_date, c.duration_weeks, c.max_capacity, c.status,
			(SELECT COUNT(*) FROM classroom_enrolments ce WHERE ce.classroom_id = c.id) AS headcount,
			c.created_at
		FROM classrooms c
		WHERE c.id = $1
		FOR UPDATE OF c`,
		id,
	).Bind(ctx, repo.getExec(exec), &room)
	if err != nil {
		return enrolment.Classroom{}, trapNoRowsErr(err, enrolment.ErrClassroomNotFound, "locking classroom")
	}
	room.CreatedAt = room.CreatedAt.UTC()
	return room, nil
}

func (repo enrolmentRepository) CreateClassroomEnrolment(ctx context.Context, ce enrolment.ClassroomEnrolment, exec ...core.DBExecutor) (enrolment.ClassroomEnrolment, error) {
	ce.ID = uuid.New().String()

	var created enrolment.ClassroomEnrolment
	err := queries.Raw(`
		INSERT INTO classroom_enrolments (id, student_id, classroom_id, lesson_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, student_id, classroom_id, lesson_id, created_at`,
		ce.ID, ce.StudentID, ce.ClassroomID, ce.LessonID, ce.CreatedAt.UTC(),
	).Bind(ctx, repo.getExec(exec), &created)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return enrolment.ClassroomEnrolment{}, enrolment.ErrClassroomAlreadySelected
		}
		return enrolment.ClassroomEnrolment{}, errors.Wrap(err, "inserting classroom enrolment")
	}
	created.CreatedAt = created.CreatedAt.UTC()
	return created, nil
}

func (repo enrolmentRepository) CreateClassroom(ctx context.Context, room enrolment.Classroom, exec ...core.DBExecutor) (enrolment.Classroom, error) {
	if !isUUID(room.CourseID) || !isUUID(room.LessonID) {
		return enrolment.Classroom{}, enrolment.ErrLessonNotInCourse
	}
	room.ID = uuid.New().String()

	var created enrolment.Classroom
	err := queries.Raw(`
		INSERT INTO classrooms (`+classroomColumns+`)
		SELECT $1::uuid, $2::text, $3::uuid, $4::uuid, $5::date, $6::integer, $7::integer, $8::text, $9::timestamptz
		WHERE EXISTS (SELECT 1 FROM course_lessons WHERE course_id = $3::uuid AND lesson_id = $4::uuid)
		RETURNING `+classroomColumns+`, 0 AS headcount`,
		room.ID, room.Code, room.CourseID, room.LessonID, room.StartDate, room.DurationWeeks, room.MaxCapacity,
		room.Status, room.CreatedAt.UTC(),
	).Bind(ctx, repo.getExec(exec), &created)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return enrolment.Classroom{}, enrolment.ErrClassroomCodeExists
		}
		return enrolment.Classroom{}, trapNoRowsErr(err, enrolment.ErrLessonNotInCourse, "inserting classroom")
	}
	created.CreatedAt = created.CreatedAt.UTC()
	return created, nil
}

func (repo enrolmentRepository) UpdateClassroom(ctx context.Context, room enrolment.Classroom, exec ...core.DBExecutor) (enrolment.Classroom, error) {
	if !isUUID(room.ID) {
		return enrolment.Classroom{}, enrolment.ErrClassroomNotFound
	}

	var updated enrolment.Classroom
	err := queries.Raw(`
		UPDATE classrooms
		SET code = $2, start_date = $3, duration_weeks = $4, max_capacity = $5, status = $6
		WHERE id = $1
		RETURNING `+classroomColumns+`,
			(SELECT COUNT(*) FROM classroom_enrolments ce WHERE ce.classroom_id = classrooms.id) AS headcount`,
		room.ID, room.Code, room.StartDate, room.DurationWeeks, room.MaxCapacity, room.Status,
	).Bind(ctx, repo.getExec(exec), &updated)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return enrolment.Classroom{}, enrolment.ErrClassroomCodeExists
		}
		return enrolment.Classroom{}, trapNoRowsErr(err, enrolment.ErrClassroomNotFound, "updating classroom")
	}
	updated.CreatedAt = updated.CreatedAt.UTC()
	return updated, nil
}

func (repo enrolmentRepository) DeleteClassroom(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return enrolment.ErrClassroomNotFound
	}

	res, err := queries.Raw(`DELETE FROM classrooms WHERE id = $1`, id).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrolment.ErrClassroomNotFound
	}
	return nil
}
