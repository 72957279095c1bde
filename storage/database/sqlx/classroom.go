package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/enrolment"
)

type classroomRepository struct {
	db *sqlx.DB
}

var _ enrolment.ClassroomQuerier = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sql.DB) *classroomRepository {
	return &classroomRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo classroomRepository) ListClassrooms(ctx context.Context, lessonID string, ordering []core.DBOrdering) ([]enrolment.Classroom, error) {
	rooms := make([]enrolment.Classroom, 0)
	if !isUUID(lessonID) {
		return rooms, nil
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderList = append(orderList, "c."+ord.String())
	}
	orderList = append(orderList, "c.id ASC")

	q := `
		SELECT c.id, c.code, c.course_id, c.lesson_id, c.start_date, c.duration_weeks, c.max_capacity, c.status,
			COUNT(ce.id) AS headcount, c.created_at
		FROM classrooms c
		LEFT JOIN classroom_enrolments ce ON ce.classroom_id = c.id
		WHERE c.lesson_id = $1
		GROUP BY c.id
		ORDER BY ` + strings.Join(orderList, ", ")

	if err := repo.db.SelectContext(ctx, &rooms, q, lessonID); err != nil {
		return nil, errors.Wrap(err, "selecting classrooms")
	}
	for i := range rooms {
		rooms[i].CreatedAt = rooms[i].CreatedAt.UTC()
	}
	return rooms, nil
}

func (repo classroomRepository) GetClassroom(ctx context.Context, id string) (enrolment.Classroom, error) {
	if !isUUID(id) {
		return enrolment.Classroom{}, enrolment.ErrClassroomNotFound
	}

	var room enrolment.Classroom
	err := repo.db.GetContext(ctx, &room, `
		SELECT c.id, c.code, c.course_id, c.lesson_id, c.start_date, c.duration_weeks, c.max_capacity, c.status,
			(SELECT COUNT(*) FROM classroom_enrolments ce WHERE ce.classroom_id = c.id) AS headcount,
			c.created_at
		FROM classrooms c
		WHERE c.id = $1`,
		id,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return enrolment.Classroom{}, enrolment.ErrClassroomNotFound
		}
		return enrolment.Classroom{}, errors.Wrap(err, "getting classroom")
	}
	room.CreatedAt = room.CreatedAt.UTC()
	return room, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
