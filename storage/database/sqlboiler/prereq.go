package boiledrepos

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/prereq"
)

type prereqRepository struct {
	repository
}

var _ prereq.Repository = (*prereqRepository)(nil) // interface compliance check

func NewPrereqRepository(exec core.DBExecutor) *prereqRepository {
	return &prereqRepository{repository{exec: exec}}
}

// FindPrerequisites matches refs against lesson ids and codes in a single query.
func (repo prereqRepository) FindPrerequisites(ctx context.Context, studentID string, refs []string, exec ...core.DBExecutor) ([]prereq.Prerequisite, error) {
	prereqs := make([]prereq.Prerequisite, 0)
	if len(refs) == 0 {
		return prereqs, nil
	}

	err := queries.Raw(`
		SELECT l.id, l.code, l.title,
			EXISTS (
				SELECT 1 FROM lesson_completions lc WHERE lc.lesson_id = l.id AND lc.student_id = $1
			) AS completed
		FROM lessons l
		WHERE l.id = ANY($2::uuid[]) OR l.code = ANY($3::text[])
		ORDER BY l.title COLLATE "C", l.id`,
		null.NewString(studentID, isUUID(studentID)), pq.Array(uuids(refs)), pq.Array(refs),
	).Bind(ctx, repo.getExec(exec), &prereqs)
	if err != nil {
		return nil, errors.Wrap(err, "finding prerequisites")
	}
	return prereqs, nil
}
