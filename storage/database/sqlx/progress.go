package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sql.DB) *progressRepository {
	return &progressRepository{db: sqlx.NewDb(db, "postgres")}
}

const progressRowsQuery = `
	SELECT c.id AS course_id, c.title AS course_title,
		l.id AS lesson_id, l.code AS lesson_code, l.title AS lesson_title,
		r.id AS classroom_id, r.code AS classroom_code,
		(lc.id IS NOT NULL) AS completed
	FROM student_enrolments se
	JOIN courses c ON c.id = se.course_id
	JOIN course_lessons cl ON cl.course_id = c.id
	JOIN lessons l ON l.id = cl.lesson_id
	LEFT JOIN classroom_enrolments ce ON ce.student_id = se.student_id AND ce.lesson_id = l.id
	LEFT JOIN classrooms r ON r.id = ce.classroom_id
	LEFT JOIN lesson_completions lc ON lc.student_id = se.student_id AND lc.lesson_id = l.id
	WHERE se.student_id = $1
	ORDER BY c.title COLLATE "C", c.id, l.title COLLATE "C", l.id`

func (repo progressRepository) ListRows(ctx context.Context, studentID string) ([]progress.Row, error) {
	rows := make([]progress.Row, 0)
	if !isUUID(studentID) {
		return rows, nil
	}
	if err := repo.db.SelectContext(ctx, &rows, progressRowsQuery, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting progress rows")
	}
	return rows, nil
}
