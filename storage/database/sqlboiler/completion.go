package boiledrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
	"github.com/trezcool/kujifunza/core/lesson"
)

const (
	enrolmentColumns  = `id, student_id, course_id, credits, progress, status, date_enrolled`
	completionColumns = `id, student_id, lesson_id, credits_earned, completed_at`
)

type completionRepository struct {
	repository
}

var _ completion.Repository = (*completionRepository)(nil) // interface compliance check

func NewCompletionRepository(exec core.DBExecutor) *completionRepository {
	return &completionRepository{repository{exec: exec}}
}

func (repo completionRepository) LockEnrolment(ctx context.Context, studentID string, courseIDs []string, exec ...core.DBExecutor) (completion.Enrolment, error) {
	courseIDs = uuids(courseIDs)
	if !isUUID(studentID) || len(courseIDs) == 0 {
		return completion.Enrolment{}, lesson.ErrNotEnrolled
	}

	var enr completion.Enrolment
	err := queries.Raw(`
		SELECT `+enrolmentColumns+` FROM student_enrolments
		WHERE student_id = $1 AND course_id = ANY($2::uuid[])
		ORDER BY date_enrolled, id
		LIMIT 1
		FOR UPDATE`,
		studentID, pq.Array(courseIDs),
	).Bind(ctx, repo.getExec(exec), &enr)
	if err != nil {
		return completion.Enrolment{}, trapNoRowsErr(err, lesson.ErrNotEnrolled, "locking enrolment")
	}
	enr.DateEnrolled = enr.DateEnrolled.UTC()
	return enr, nil
}

func (repo completionRepository) LockEnrolmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (completion.Enrolment, error) {
	if !isUUID(id) {
		return completion.Enrolment{}, lesson.ErrNotEnrolled
	}

	var enr completion.Enrolment
	err := queries.Raw(`SELECT `+enrolmentColumns+` FROM student_enrolments WHERE id = $1 FOR UPDATE`, id).
		Bind(ctx, repo.getExec(exec), &enr)
	if err != nil {
		return completion.Enrolment{}, trapNoRowsErr(err, lesson.ErrNotEnrolled, "locking enrolment")
	}
	enr.DateEnrolled = enr.DateEnrolled.UTC()
	return enr, nil
}

func (repo completionRepository) ListEnrolmentIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error) {
	var rows []struct {
		ID string `boil:"id"`
	}
	if err := queries.Raw(`SELECT id FROM student_enrolments ORDER BY date_enrolled, id`).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "listing enrolments")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (repo completionRepository) UpdateEnrolment(ctx context.Context, enr completion.Enrolment, exec ...core.DBExecutor) error {
	_, err := queries.Raw(`
		UPDATE student_enrolments SET credits = $2, progress = $3, status = $4 WHERE id = $1`,
		enr.ID, enr.Credits, enr.Progress, enr.Status,
	).ExecContext(ctx, repo.getExec(exec))
	return errors.Wrap(err, "updating enrolment")
}

// CreateCompletion relies on the unique (student_id, lesson_id) index: a concurrent duplicate inserts nothing.
func (repo completionRepository) CreateCompletion(ctx context.Context, c completion.Completion, exec ...core.DBExecutor) (completion.Completion, error) {
	c.ID = uuid.New().String()

	var created completion.Completion
	err := queries.Raw(`
		INSERT INTO lesson_completions (`+completionColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, lesson_id) DO NOTHING
		RETURNING `+completionColumns,
		c.ID, c.StudentID, c.LessonID, c.CreditsEarned, c.CompletedAt.UTC(),
	).Bind(ctx, repo.getExec(exec), &created)
	if err != nil {
		return completion.Completion{}, trapNoRowsErr(err, completion.ErrAlreadyCompleted, "inserting completion")
	}
	created.CompletedAt = created.CompletedAt.UTC()
	return created, nil
}

func (repo completionRepository) GetCompletion(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (completion.Completion, error) {
	if !isUUID(studentID) || !isUUID(lessonID) {
		return completion.Completion{}, completion.ErrNotFound
	}

	var c completion.Completion
	err := queries.Raw(`
		SELECT `+completionColumns+` FROM lesson_completions WHERE student_id = $1 AND lesson_id = $2`,
		studentID, lessonID,
	).Bind(ctx, repo.getExec(exec), &c)
	if err != nil {
		return completion.Completion{}, trapNoRowsErr(err, completion.ErrNotFound, "finding completion")
	}
	c.CompletedAt = c.CompletedAt.UTC()
	return c, nil
}

func (repo completionRepository) SumCourseCredits(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (int, error) {
	var credits int
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(lc.credits_earned), 0)
		FROM lesson_completions lc
		JOIN course_lessons cl ON cl.lesson_id = lc.lesson_id AND cl.course_id = $2
		WHERE lc.student_id = $1`,
		studentID, courseID,
	).Scan(&credits)
	if err != nil {
		return 0, errors.Wrap(err, "summing credits")
	}
	return credits, nil
}

func (repo completionRepository) CreateCourseCompletion(ctx context.Context, cc completion.CourseCompletion, exec ...core.DBExecutor) (bool, error) {
	res, err := queries.Raw(`
		INSERT INTO course_completions (id, student_id, course_id, total_credits_earned, completion_status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, course_id) DO NOTHING`,
		uuid.New().String(), cc.StudentID, cc.CourseID, cc.TotalCreditsEarned, cc.CompletionStatus, cc.CompletedAt.UTC(),
	).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return false, errors.Wrap(err, "inserting course completion")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "inserting course completion")
	}
	return n == 1, nil
}

func (repo completionRepository) GetCourseTitle(ctx context.Context, courseID string, exec ...core.DBExecutor) (string, error) {
	var title string
	err := repo.getExec(exec).QueryRowContext(ctx, `SELECT title FROM courses WHERE id = $1`, courseID).Scan(&title)
	if err != nil {
		return "", trapNoRowsErr(err, lesson.ErrCourseNotFound, "finding course")
	}
	return title, nil
}
