package prereq

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core"
)

type (
	// Prerequisite is a resolved prerequisite lesson and whether the student completed it.
	Prerequisite struct {
		ID        string `json:"id" boil:"id"`
		Code      string `json:"lesson_id" boil:"code"`
		Title     string `json:"title" boil:"title"`
		Completed bool   `json:"completed" boil:"completed"`
	}

	Result struct {
		AllPrerequisites   []Prerequisite `json:"all_prerequisites"`
		UnmetPrerequisites []Prerequisite `json:"unmet_prerequisites"`
		AccessAllowed      bool           `json:"access_allowed"`
	}

	Repository interface {
		// FindPrerequisites returns, ordered by title, the lessons whose id or code is in refs,
		// each flagged with the student's completion. Refs matching no lesson are ignored.
		FindPrerequisites(ctx context.Context, studentID string, refs []string, exec ...core.DBExecutor) ([]Prerequisite, error)
	}
)

// Resolver evaluates prerequisite expressions against a student's completions.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve parses raw and classifies every resolvable prerequisite as met or unmet for studentID.
func (r *Resolver) Resolve(ctx context.Context, raw, studentID string, exec ...core.DBExecutor) (Result, error) {
	expr := Parse(raw)
	if expr.IsEmpty() {
		return Evaluate(nil), nil
	}

	prereqs, err := r.repo.FindPrerequisites(ctx, studentID, expr.Refs, exec...)
	if err != nil {
		return Result{}, errors.Wrap(err, "finding prerequisites")
	}
	return Evaluate(prereqs), nil
}

// Evaluate splits prereqs into the full and unmet lists.
func Evaluate(prereqs []Prerequisite) Result {
	res := Result{
		AllPrerequisites:   make([]Prerequisite, 0, len(prereqs)),
		UnmetPrerequisites: make([]Prerequisite, 0),
	}
	for _, p := range prereqs {
		res.AllPrerequisites = append(res.AllPrerequisites, p)
		if !p.Completed {
			res.UnmetPrerequisites = append(res.UnmetPrerequisites, p)
		}
	}
	res.AccessAllowed = len(res.UnmetPrerequisites) == 0
	return res
}
