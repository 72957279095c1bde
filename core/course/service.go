package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
)

type (
	Repository interface {
		// CreateCourse returns ErrCodeExists or ErrDirectorNotFound.
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// GetCourse returns ErrNotFound if no course has this id.
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		// UpdateCourse saves the authored fields of crs. Returns ErrNotFound, ErrCodeExists or ErrDirectorNotFound.
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		// DeleteCourse returns ErrNotFound, or ErrHasEnrolments while students are enrolled.
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
		// QueryCourses lists the courses matching filter; ordering fields are trusted.
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
	}

	Service interface {
		Create(ctx context.Context, d Details) (Course, error)
		Get(ctx context.Context, id string) (Course, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, id string, d Details) (Course, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{repo: repo, validate: validate}
}

func (svc *service) Create(ctx context.Context, d Details) (Course, error) {
	d.Clean()
	if err := svc.validate.Struct(d); err != nil {
		return Course{}, err
	}

	now := time.Now().UTC()
	crs, err := svc.repo.CreateCourse(ctx, d.apply(Course{
		TotalCredits: completion.CourseCreditTarget,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	if err != nil {
		return Course{}, fieldError(err)
	}
	return crs, nil
}

func (svc *service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
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
	return svc.repo.QueryCourses(ctx, filter, valid)
}

func (svc *service) Update(ctx context.Context, id string, d Details) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}

	d.Clean()
	if err = svc.validate.Struct(d); err != nil {
		return Course{}, err
	}

	crs = d.apply(crs)
	crs.UpdatedAt = time.Now().UTC()
	if crs, err = svc.repo.UpdateCourse(ctx, crs); err != nil {
		return Course{}, fieldError(err)
	}
	return crs, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func fieldError(err error) error {
	switch err {
	case ErrCodeExists:
		return core.NewFieldValidationError("code", err.Error())
	case ErrDirectorNotFound:
		return core.NewFieldValidationError("director_id", err.Error())
	}
	return err
}
