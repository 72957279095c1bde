package lesson

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core/prereq"
)

// access is what the gate learns about a (student, lesson) pair while running its checks.
type access struct {
	studentID string
	lesson    Lesson
	prereqs   prereq.Result
}

type check struct {
	name string
	run  func(ctx context.Context, acc *access) error
}

// gate decides whether a student may open a lesson.
// Checks run in order and the first failure wins.
type gate struct {
	repo     Repository
	resolver *prereq.Resolver
}

func (g *gate) checks() []check {
	return []check{
		{name: "visible", run: g.checkVisible},
		{name: "enrolled", run: g.checkEnrolled},
		{name: "classroom", run: g.checkClassroom},
		{name: "prerequisites", run: g.checkPrerequisites},
	}
}

func (g *gate) evaluate(ctx context.Context, lsn Lesson, studentID string) (*access, error) {
	acc := &access{studentID: studentID, lesson: lsn}
	for _, c := range g.checks() {
		if err := c.run(ctx, acc); err != nil {
			return nil, errors.WithMessagef(err, "%s check", c.name)
		}
	}
	return acc, nil
}

func (g *gate) checkVisible(_ context.Context, acc *access) error {
	if !acc.lesson.VisibleToStudents() {
		return ErrNotFound
	}
	return nil
}

// checkEnrolled passes when the student is enrolled in any course the lesson is attached to.
// An unattached lesson cannot be reached through an enrolment.
func (g *gate) checkEnrolled(ctx context.Context, acc *access) error {
	if !acc.lesson.IsAttached() {
		return ErrNotEnrolled
	}
	enrolled, err := g.repo.IsEnrolled(ctx, acc.studentID, acc.lesson.CourseIDs)
	if err != nil {
		return errors.Wrap(err, "checking enrolment")
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

func (g *gate) checkClassroom(ctx context.Context, acc *access) error {
	selected, err := g.repo.HasClassroomSelection(ctx, acc.studentID, acc.lesson.ID)
	if err != nil {
		return errors.Wrap(err, "checking classroom selection")
	}
	if !selected {
		return &ClassroomRequiredError{LessonID: acc.lesson.ID, LessonTitle: acc.lesson.Title}
	}
	return nil
}

func (g *gate) checkPrerequisites(ctx context.Context, acc *access) error {
	res, err := g.resolver.Resolve(ctx, acc.lesson.Prerequisites, acc.studentID)
	if err != nil {
		return errors.Wrap(err, "resolving prerequisites")
	}
	acc.prereqs = res
	if !res.AccessAllowed {
		return &PrerequisitesUnmetError{
			LessonTitle: acc.lesson.Title,
			Unmet:       res.UnmetPrerequisites,
			All:         res.AllPrerequisites,
		}
	}
	return nil
}
