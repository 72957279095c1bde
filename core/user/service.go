package user

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kujifunza/core"
)

var (
	// errors
	ErrNotFound   = errors.New("user not found")
	ErrUserExists = errors.New("a user with this username or email already exists")

	errNoPermsToSetRoles = "not enough rights to set these roles"
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers lists the users matching filter; ordering fields are trusted.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nu NewUser) (User, error)
		// Register creates a user on behalf of creator, who cannot grant roles above their own.
		Register(ctx context.Context, creator User, nu NewUser) (User, error)
		// SignUp creates a student account; requested roles are ignored.
		SignUp(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		// Update applies uu to usr on behalf of editor, who cannot grant roles above their own.
		Update(ctx context.Context, editor, usr User, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
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

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err == ErrUserExists {
		return User{}, core.NewFieldValidationError("username", err.Error())
	}
	return usr, err
}

func (svc *service) Register(ctx context.Context, creator User, nu NewUser) (User, error) {
	if MaxRolePriority(nu.Roles) > MaxRolePriority(creator.Roles) {
		return User{}, core.NewFieldValidationError("roles", errNoPermsToSetRoles)
	}
	return svc.Create(ctx, nu)
}

func (svc *service) SignUp(ctx context.Context, nu NewUser) (User, error) {
	nu.Roles = []string{RoleStudent}
	return svc.Create(ctx, nu)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}

	valid := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		for _, fld := range UserOrderingFields {
			if ord.Field == fld {
				valid = append(valid, ord)
				break
			}
		}
	}
	if len(valid) == 0 {
		valid = append(valid, core.DBOrdering{Field: "created_at"})
	}
	return svc.repo.QueryUsers(ctx, filter, valid)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Update(ctx context.Context, editor, usr User, uu UpdateUser) (User, error) {
	uu.Clean(usr)
	if err := svc.validate.Struct(uu); err != nil {
		return User{}, err
	}
	if MaxRolePriority(uu.Roles) > MaxRolePriority(editor.Roles) {
		return User{}, core.NewFieldValidationError("roles", errNoPermsToSetRoles)
	}

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err == ErrUserExists {
		return User{}, core.NewFieldValidationError("username", err.Error())
	}
	return usr, err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}
