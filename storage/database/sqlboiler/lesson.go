package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/storage/database"
)

type lessonRow struct {
	ID             string         `boil:"id"`
	Code           string         `boil:"code"`
	Title          string         `boil:"title"`
	Description    string         `boil:"description"`
	Objectives     string         `boil:"objectives"`
	ReadingList    string         `boil:"reading_list"`
	EffortEstimate null.Int       `boil:"effort_estimate"`
	Status         string         `boil:"status"`
	CreditValue    int            `boil:"credit_value"`
	Prerequisites  null.String    `boil:"prerequisites"`
	ContentType    string         `boil:"content_type"`
	ContentURL     string         `boil:"content_url"`
	ContentBody    string         `boil:"content_body"`
	DesignerID     null.String    `boil:"designer_id"`
	CourseIDs      pq.StringArray `boil:"course_ids"`
	CreatedAt      time.Time      `boil:"created_at"`
	UpdatedAt      time.Time      `boil:"updated_at"`
}

const lessonSelect = `
	SELECT l.id, l.code, l.title, l.description, l.objectives, l.reading_list, l.effort_estimate,
		l.status, l.credit_value, l.prerequisites, l.content_type, l.content_url, l.content_body, l.designer_id,
		ARRAY(
			SELECT cl.course_id::text FROM course_lessons cl
			WHERE cl.lesson_id = l.id
			ORDER BY cl.created_at, cl.course_id
		) AS course_ids,
		l.created_at, l.updated_at
	FROM lessons l`

type lessonRepository struct {
	repository
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(exec core.DBExecutor) *lessonRepository {
	return &lessonRepository{repository{exec: exec}}
}

func (repo lessonRepository) unboil(row lessonRow) lesson.Lesson {
	courseIDs := []string(row.CourseIDs)
	if courseIDs == nil {
		courseIDs = []string{}
	}
	return lesson.Lesson{
		ID:             row.ID,
		Code:           row.Code,
		Title:          row.Title,
		Description:    row.Description,
		Objectives:     row.Objectives,
		ReadingList:    row.ReadingList,
		EffortEstimate: row.EffortEstimate.Int,
		Status:         row.Status,
		CreditValue:    row.CreditValue,
		Prerequisites:  row.Prerequisites.String,
		ContentType:    row.ContentType,
		ContentURL:     row.ContentURL,
		ContentBody:    row.ContentBody,
		DesignerID:     row.DesignerID.String,
		CourseIDs:      courseIDs,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func (repo lessonRepository) GetLesson(ctx context.Context, id string, exec ...core.DBExecutor) (lesson.Lesson, error) {
	if !isUUID(id) {
		return lesson.Lesson{}, lesson.ErrNotFound
	}

	var row lessonRow
	err := queries.Raw(lessonSelect+` WHERE l.id = $1`, id).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return lesson.Lesson{}, trapNoRowsErr(err, lesson.ErrNotFound, "finding lesson")
	}
	return repo.unboil(row), nil
}

func (repo lessonRepository) IsEnrolled(ctx context.Context, studentID string, courseIDs []string, exec ...core.DBExecutor) (bool, error) {
	courseIDs = uuids(courseIDs)
	if !isUUID(studentID) || len(courseIDs) == 0 {
		return false, nil
	}

	var enrolled bool
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM student_enrolments WHERE student_id = $1 AND course_id = ANY($2::uuid[])
		)`,
		studentID, pq.Array(courseIDs),
	).Scan(&enrolled)
	if err != nil {
		return false, errors.Wrap(err, "checking enrolment")
	}
	return enrolled, nil
}

func (repo lessonRepository) HasClassroomSelection(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (bool, error) {
	if !isUUID(studentID) || !isUUID(lessonID) {
		return false, nil
	}

	var selected bool
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM classroom_enrolments WHERE student_id = $1 AND lesson_id = $2
		)`,
		studentID, lessonID,
	).Scan(&selected)
	if err != nil {
		return false, errors.Wrap(err, "checking classroom selection")
	}
	return selected, nil
}

func (repo lessonRepository) GetCompletionStatus(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (*lesson.CompletionStatus, error) {
	if !isUUID(studentID) || !isUUID(lessonID) {
		return nil, nil
	}

	var cs lesson.CompletionStatus
	err := repo.getExec(exec).QueryRowContext(ctx, `
		SELECT completed_at, credits_earned FROM lesson_completions WHERE student_id = $1 AND lesson_id = $2`,
		studentID, lessonID,
	).Scan(&cs.CompletedAt, &cs.CreditsEarned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting completion status")
	}
	cs.CompletedAt = cs.CompletedAt.UTC()
	return &cs, nil
}

func (repo lessonRepository) AttachLesson(ctx context.Context, courseID, lessonID, attachedBy string, exec ...core.DBExecutor) error {
	if !isUUID(courseID) {
		return lesson.ErrCourseNotFound
	}
	exe := repo.getExec(exec)

	_, err := queries.Raw(`
		INSERT INTO course_lessons (course_id, lesson_id, created_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (course_id, lesson_id) DO NOTHING`,
		courseID, lessonID, null.NewString(attachedBy, isUUID(attachedBy)),
	).ExecContext(ctx, exe)
	if err != nil {
		if database.IsForeignKeyViolation(err, "course_lessons_course_id_fkey") {
			return lesson.ErrCourseNotFound
		}
		if database.IsForeignKeyViolation(err, "course_lessons_lesson_id_fkey") {
			return lesson.ErrNotFound
		}
		return errors.Wrap(err, "attaching lesson")
	}
	return repo.refreshTotalLessons(ctx, courseID, exe)
}

func (repo lessonRepository) DetachLesson(ctx context.Context, courseID, lessonID string, exec ...core.DBExecutor) error {
	if !isUUID(courseID) {
		return lesson.ErrCourseNotFound
	}
	exe := repo.getExec(exec)

	_, err := queries.Raw(`DELETE FROM course_lessons WHERE course_id = $1 AND lesson_id = $2`, courseID, lessonID).
		ExecContext(ctx, exe)
	if err != nil {
		return errors.Wrap(err, "detaching lesson")
	}
	return repo.refreshTotalLessons(ctx, courseID, exe)
}

func (repo lessonRepository) refreshTotalLessons(ctx context.Context, courseID string, exe core.DBExecutor) error {
	res, err := queries.Raw(`
		UPDATE courses
		SET total_lessons = (SELECT COUNT(*) FROM course_lessons WHERE course_id = $1), updated_at = NOW()
		WHERE id = $1`,
		courseID,
	).ExecContext(ctx, exe)
	if err != nil {
		return errors.Wrap(err, "refreshing course lesson count")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lesson.ErrCourseNotFound
	}
	return nil
}

func (repo lessonRepository) CreateLesson(ctx context.Context, lsn lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	for _, courseID := range lsn.CourseIDs {
		if !isUUID(courseID) {
			return lesson.Lesson{}, lesson.ErrCourseNotFound
		}
	}
	lsn.ID = uuid.New().String()

	err := repo.inTx(ctx, exec, func(exe core.DBExecutor) error {
		_, err := queries.Raw(`
			INSERT INTO lessons (id, code, title, description, objectives, reading_list, effort_estimate, status,
				credit_value, prerequisites, content_type, content_url, content_body, designer_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			lsn.ID, lsn.Code, lsn.Title, lsn.Description, lsn.Objectives, lsn.ReadingList,
			null.NewInt(lsn.EffortEstimate, lsn.EffortEstimate > 0), lsn.Status, lsn.CreditValue,
			null.NewString(lsn.Prerequisites, lsn.Prerequisites != ""), lsn.ContentType, lsn.ContentURL, lsn.ContentBody,
			null.NewString(lsn.DesignerID, isUUID(lsn.DesignerID)), lsn.CreatedAt.UTC(), lsn.UpdatedAt.UTC(),
		).ExecContext(ctx, exe)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return lesson.ErrCodeExists
			}
			return errors.Wrap(err, "inserting lesson")
		}

		for _, courseID := range lsn.CourseIDs {
			if err = repo.AttachLesson(ctx, courseID, lsn.ID, lsn.DesignerID, exe); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return lesson.Lesson{}, err
	}
	return repo.GetLesson(ctx, lsn.ID, exec...)
}

func (repo lessonRepository) UpdateLesson(ctx context.Context, lsn lesson.Lesson, exec ...core.DBExecutor) (lesson.Lesson, error) {
	if !isUUID(lsn.ID) {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	exe := repo.getExec(exec)

	res, err := queries.Raw(`
		UPDATE lessons
		SET code = $2, title = $3, description = $4, objectives = $5, reading_list = $6, effort_estimate = $7,
			status = $8, credit_value = $9, prerequisites = $10, content_type = $11, content_url = $12,
			content_body = $13, updated_at = $14
		WHERE id = $1`,
		lsn.ID, lsn.Code, lsn.Title, lsn.Description, lsn.Objectives, lsn.ReadingList,
		null.NewInt(lsn.EffortEstimate, lsn.EffortEstimate > 0), lsn.Status, lsn.CreditValue,
		null.NewString(lsn.Prerequisites, lsn.Prerequisites != ""), lsn.ContentType, lsn.ContentURL, lsn.ContentBody,
		lsn.UpdatedAt.UTC(),
	).ExecContext(ctx, exe)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return lesson.Lesson{}, lesson.ErrCodeExists
		}
		return lesson.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	return repo.GetLesson(ctx, lsn.ID, exe)
}

func (repo lessonRepository) DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return lesson.ErrNotFound
	}

	return repo.inTx(ctx, exec, func(exe core.DBExecutor) error {
		var courseIDs pq.StringArray
		err := exe.QueryRowContext(ctx, `
			SELECT ARRAY(SELECT course_id::text FROM course_lessons WHERE lesson_id = $1 ORDER BY course_id)`,
			id,
		).Scan(&courseIDs)
		if err != nil {
			return errors.Wrap(err, "listing lesson courses")
		}

		res, err := queries.Raw(`DELETE FROM lessons WHERE id = $1`, id).ExecContext(ctx, exe)
		if err != nil {
			return errors.Wrap(err, "deleting lesson")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return lesson.ErrNotFound
		}

		for _, courseID := range courseIDs {
			if err = repo.refreshTotalLessons(ctx, courseID, exe); err != nil && err != lesson.ErrCourseNotFound {
				return err
			}
		}
		return nil
	})
}

func (repo lessonRepository) QueryLessons(ctx context.Context, filter lesson.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]lesson.Lesson, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case filter.CourseID != "":
		if !isUUID(filter.CourseID) {
			return []lesson.Lesson{}, nil
		}
		where = append(where, "EXISTS (SELECT 1 FROM course_lessons cl WHERE cl.lesson_id = l.id AND cl.course_id = "+arg(filter.CourseID)+")")
	case filter.Unassigned:
		where = append(where, "NOT EXISTS (SELECT 1 FROM course_lessons cl WHERE cl.lesson_id = l.id)")
	}
	if filter.Status != "" {
		where = append(where, "l.status = "+arg(filter.Status))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(l.code ILIKE %s OR l.title ILIKE %s)", p, p))
	}

	query := lessonSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering)+1)
		for _, ord := range ordering {
			orderList = append(orderList, "l."+ord.String())
		}
		query += ` ORDER BY ` + strings.Join(append(orderList, "l.id"), ", ")
	}

	var rows []lessonRow
	if err := queries.Raw(query, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]lesson.Lesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, repo.unboil(row))
	}
	return lessons, nil
}
