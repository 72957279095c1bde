package lesson

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/prereq"
)

type (
	Repository interface {
		// GetLesson returns ErrNotFound if no lesson has this id.
		GetLesson(ctx context.Context, id string, exec ...core.DBExecutor) (Lesson, error)
		IsEnrolled(ctx context.Context, studentID string, courseIDs []string, exec ...core.DBExecutor) (bool, error)
		HasClassroomSelection(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (bool, error)
		// GetCompletionStatus returns nil if the student has not completed the lesson.
		GetCompletionStatus(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (*CompletionStatus, error)
		// AttachLesson is a no-op if the lesson is already attached. Returns ErrCourseNotFound for unknown courses.
		AttachLesson(ctx context.Context, courseID, lessonID, attachedBy string, exec ...core.DBExecutor) error
		DetachLesson(ctx context.Context, courseID, lessonID string, exec ...core.DBExecutor) error

		// CreateLesson stores lsn and attaches it to lsn.CourseIDs in one go.
		// Returns ErrCodeExists or ErrCourseNotFound.
		CreateLesson(ctx context.Context, lsn Lesson, exec ...core.DBExecutor) (Lesson, error)
		// UpdateLesson saves the authored fields of lsn. Returns ErrNotFound or ErrCodeExists.
		UpdateLesson(ctx context.Context, lsn Lesson, exec ...core.DBExecutor) (Lesson, error)
		// DeleteLesson removes the lesson and its attachments. Returns ErrNotFound.
		DeleteLesson(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryLessons lists the lessons matching filter; ordering fields are trusted.
		QueryLessons(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Lesson, error)
	}

	Service interface {
		// GetForStudent serves the lesson content once the access checks pass.
		GetForStudent(ctx context.Context, lessonID, studentID string) (Content, error)
		// CheckPrerequisites evaluates the lesson's prerequisites alone.
		CheckPrerequisites(ctx context.Context, lessonID, studentID string) (PrerequisiteCheck, error)
		Attach(ctx context.Context, lessonID, courseID, attachedBy string) (Lesson, error)
		Detach(ctx context.Context, lessonID, courseID string) (Lesson, error)

		Create(ctx context.Context, nl NewLesson, designerID string) (Lesson, error)
		Get(ctx context.Context, id string) (Lesson, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Lesson, error)
		Update(ctx context.Context, id string, d Details) (Lesson, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		gate     *gate
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, resolver *prereq.Resolver, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		gate:     &gate{repo: repo, resolver: resolver},
		validate: validate,
	}
}

func (svc *service) GetForStudent(ctx context.Context, lessonID, studentID string) (Content, error) {
	lsn, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return Content{}, err
	}
	if _, err = svc.gate.evaluate(ctx, lsn, studentID); err != nil {
		return Content{}, err
	}

	cs, err := svc.repo.GetCompletionStatus(ctx, studentID, lsn.ID)
	if err != nil {
		return Content{}, errors.Wrap(err, "getting completion status")
	}
	return newContent(lsn, cs), nil
}

func (svc *service) CheckPrerequisites(ctx context.Context, lessonID, studentID string) (PrerequisiteCheck, error) {
	lsn, err := svc.repo.GetLesson(ctx, lessonID)
	if err != nil {
		return PrerequisiteCheck{}, err
	}
	acc := &access{studentID: studentID, lesson: lsn}
	if err = svc.gate.checkVisible(ctx, acc); err != nil {
		return PrerequisiteCheck{}, err
	}

	res, err := svc.gate.resolver.Resolve(ctx, lsn.Prerequisites, studentID)
	if err != nil {
		return PrerequisiteCheck{}, errors.Wrap(err, "resolving prerequisites")
	}
	return PrerequisiteCheck{Result: res, LessonTitle: lsn.Title}, nil
}

func (svc *service) Attach(ctx context.Context, lessonID, courseID, attachedBy string) (Lesson, error) {
	if _, err := svc.repo.GetLesson(ctx, lessonID); err != nil {
		return Lesson{}, err
	}
	if err := svc.repo.AttachLesson(ctx, courseID, lessonID, attachedBy); err != nil {
		return Lesson{}, err
	}
	return svc.repo.GetLesson(ctx, lessonID)
}

func (svc *service) Detach(ctx context.Context, lessonID, courseID string) (Lesson, error) {
	if _, err := svc.repo.GetLesson(ctx, lessonID); err != nil {
		return Lesson{}, err
	}
	if err := svc.repo.DetachLesson(ctx, courseID, lessonID); err != nil {
		return Lesson{}, err
	}
	return svc.repo.GetLesson(ctx, lessonID)
}

func (svc *service) Create(ctx context.Context, nl NewLesson, designerID string) (Lesson, error) {
	nl.Clean()
	if err := svc.validate.Struct(nl); err != nil {
		return Lesson{}, err
	}
	if nl.refersTo(Lesson{}) {
		return Lesson{}, core.NewFieldValidationError("prerequisites", errSelfPrerequisite)
	}

	now := time.Now().UTC()
	lsn := nl.apply(Lesson{DesignerID: designerID, CreatedAt: now, UpdatedAt: now})
	if nl.CourseID != "" {
		lsn.CourseIDs = []string{nl.CourseID}
	}

	lsn, err := svc.repo.CreateLesson(ctx, lsn)
	switch err {
	case ErrCodeExists:
		return Lesson{}, core.NewFieldValidationError("lesson_id", err.Error())
	case ErrCourseNotFound:
		return Lesson{}, core.NewFieldValidationError("course_id", err.Error())
	}
	return lsn, err
}

func (svc *service) Get(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Lesson, error) {
	filter.Clean()

	valid := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		for _, fld := range OrderingFields {
			if ord.Field == fld {
				valid = append(valid, ord)
				break
			}
		}
	}
	if len(valid) == 0 {
		valid = append(valid, core.DBOrdering{Field: "created_at"})
	}
	return svc.repo.QueryLessons(ctx, filter, valid)
}

func (svc *service) Update(ctx context.Context, id string, d Details) (Lesson, error) {
	lsn, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}

	d.Clean()
	if err = svc.validate.Struct(d); err != nil {
		return Lesson{}, err
	}
	if d.refersTo(lsn) {
		return Lesson{}, core.NewFieldValidationError("prerequisites", errSelfPrerequisite)
	}

	lsn = d.apply(lsn)
	lsn.UpdatedAt = time.Now().UTC()
	lsn, err = svc.repo.UpdateLesson(ctx, lsn)
	if err == ErrCodeExists {
		return Lesson{}, core.NewFieldValidationError("lesson_id", err.Error())
	}
	return lsn, err
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteLesson(ctx, id)
}
