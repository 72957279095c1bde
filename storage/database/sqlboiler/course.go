package boiledrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/course"
	"github.com/trezcool/kujifunza/storage/database"
)

const courseColumns = `id, code, title, description, status, total_credits, total_lessons, director_id, created_at, updated_at`

type courseRow struct {
	ID           string      `boil:"id"`
	Code         string      `boil:"code"`
	Title        string      `boil:"title"`
	Description  string      `boil:"description"`
	Status       string      `boil:"status"`
	TotalCredits int         `boil:"total_credits"`
	TotalLessons int         `boil:"total_lessons"`
	DirectorID   null.String `boil:"director_id"`
	CreatedAt    time.Time   `boil:"created_at"`
	UpdatedAt    time.Time   `boil:"updated_at"`
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{repository{exec: exec}}
}

func (repo courseRepository) unboil(row courseRow) course.Course {
	return course.Course{
		ID:           row.ID,
		Code:         row.Code,
		Title:        row.Title,
		Description:  row.Description,
		Status:       row.Status,
		TotalCredits: row.TotalCredits,
		TotalLessons: row.TotalLessons,
		DirectorID:   row.DirectorID.String,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (repo courseRepository) trapWriteErr(err error, msg string) error {
	switch {
	case database.IsUniqueViolation(err):
		return course.ErrCodeExists
	case database.IsForeignKeyViolation(err, "courses_director_id_fkey"):
		return course.ErrDirectorNotFound
	}
	return trapNoRowsErr(err, course.ErrNotFound, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	if crs.DirectorID != "" && !isUUID(crs.DirectorID) {
		return course.Course{}, course.ErrDirectorNotFound
	}
	crs.ID = uuid.New().String()

	var row courseRow
	err := queries.Raw(`
		INSERT INTO courses (`+courseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
		RETURNING `+courseColumns,
		crs.ID, crs.Code, crs.Title, crs.Description, crs.Status, crs.TotalCredits,
		null.NewString(crs.DirectorID, crs.DirectorID != ""), crs.CreatedAt.UTC(), crs.UpdatedAt.UTC(),
	).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return course.Course{}, repo.trapWriteErr(err, "inserting course")
	}
	return repo.unboil(row), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if !isUUID(id) {
		return course.Course{}, course.ErrNotFound
	}

	var row courseRow
	err := queries.Raw(`SELECT `+courseColumns+` FROM courses WHERE id = $1`, id).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return repo.unboil(row), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	if !isUUID(crs.ID) {
		return course.Course{}, course.ErrNotFound
	}
	if crs.DirectorID != "" && !isUUID(crs.DirectorID) {
		return course.Course{}, course.ErrDirectorNotFound
	}

	var row courseRow
	err := queries.Raw(`
		UPDATE courses
		SET code = $2, title = $3, description = $4, status = $5, director_id = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+courseColumns,
		crs.ID, crs.Code, crs.Title, crs.Description, crs.Status,
		null.NewString(crs.DirectorID, crs.DirectorID != ""), crs.UpdatedAt.UTC(),
	).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return course.Course{}, repo.trapWriteErr(err, "updating course")
	}
	return repo.unboil(row), nil
}

// DeleteCourse locks the course row first: new enrolments take a key share lock on it,
// so none can slip in between the check and the delete.
func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return course.ErrNotFound
	}

	return repo.inTx(ctx, exec, func(exe core.DBExecutor) error {
		var enrolled bool
		err := exe.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM student_enrolments WHERE course_id = c.id)
			FROM courses c
			WHERE c.id = $1
			FOR UPDATE OF c`,
			id,
		).Scan(&enrolled)
		if err != nil {
			return trapNoRowsErr(err, course.ErrNotFound, "locking course")
		}
		if enrolled {
			return course.ErrHasEnrolments
		}

		if _, err = queries.Raw(`DELETE FROM courses WHERE id = $1`, id).ExecContext(ctx, exe); err != nil {
			return errors.Wrap(err, "deleting course")
		}
		return nil
	})
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(code ILIKE %s OR title ILIKE %s)", p, p))
	}

	query := `SELECT ` + courseColumns + ` FROM courses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering)+1)
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		query += ` ORDER BY ` + strings.Join(append(orderList, "id"), ", ")
	}

	var rows []courseRow
	if err := queries.Raw(query, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.unboil(row))
	}
	return courses, nil
}
