package completion

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/user"
)

type (
	Repository interface {
		// LockEnrolment locks, for the rest of the transaction, the student's earliest enrolment
		// among courseIDs. Returns lesson.ErrNotEnrolled if there is none.
		LockEnrolment(ctx context.Context, studentID string, courseIDs []string, exec ...core.DBExecutor) (Enrolment, error)
		LockEnrolmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Enrolment, error)
		ListEnrolmentIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
		UpdateEnrolment(ctx context.Context, enr Enrolment, exec ...core.DBExecutor) error

		// CreateCompletion returns ErrAlreadyCompleted if the student already completed the lesson.
		CreateCompletion(ctx context.Context, c Completion, exec ...core.DBExecutor) (Completion, error)
		// GetCompletion returns ErrNotFound if the student has not completed the lesson.
		GetCompletion(ctx context.Context, studentID, lessonID string, exec ...core.DBExecutor) (Completion, error)
		// SumCourseCredits sums the credits the student earned on lessons attached to the course.
		SumCourseCredits(ctx context.Context, studentID, courseID string, exec ...core.DBExecutor) (int, error)

		// CreateCourseCompletion reports false if the course completion already existed.
		CreateCourseCompletion(ctx context.Context, cc CourseCompletion, exec ...core.DBExecutor) (bool, error)
		GetCourseTitle(ctx context.Context, courseID string, exec ...core.DBExecutor) (string, error)
	}

	Service interface {
		// MarkComplete records the completion and accrues its credits on the student's enrolment,
		// completing the course once it reaches CourseCreditTarget.
		MarkComplete(ctx context.Context, lessonID, studentID string) (Result, error)
		Check(ctx context.Context, lessonID, studentID string) (Status, error)
		// Reconcile recomputes every enrolment from the completions. Credits are only ever raised.
		Reconcile(ctx context.Context) (ReconcileReport, error)
	}

	ReconcileReport struct {
		Checked          int
		Updated          int
		CoursesCompleted int
	}

	Deps struct {
		DB         core.DB
		Repo       Repository
		LessonRepo lesson.Repository
		UserRepo   user.Repository
		MailSvc    core.EmailService
		Events     core.EventPublisher
		Logger     core.Logger
	}

	txRunner func(ctx context.Context, fn func(tx core.DBExecutor) error) error

	service struct {
		repo    Repository
		lessons lesson.Repository
		users   user.Repository
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
		runInTx txRunner
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	db := deps.DB
	return &service{
		repo:    deps.Repo,
		lessons: deps.LessonRepo,
		users:   deps.UserRepo,
		mailSvc: deps.MailSvc,
		events:  deps.Events,
		logger:  deps.Logger,
		runInTx: func(ctx context.Context, fn func(tx core.DBExecutor) error) error {
			return core.RunInTx(ctx, db, fn)
		},
	}
}

func (svc *service) MarkComplete(ctx context.Context, lessonID, studentID string) (Result, error) {
	var res Result

	err := svc.runInTx(ctx, func(tx core.DBExecutor) error {
		lsn, err := svc.lessons.GetLesson(ctx, lessonID, tx)
		if err != nil {
			return err
		}
		// a retry stays AlreadyCompleted even if the lesson was archived or detached since
		if _, err = svc.repo.GetCompletion(ctx, studentID, lsn.ID, tx); err == nil {
			return ErrAlreadyCompleted
		} else if err != ErrNotFound {
			return errors.Wrap(err, "getting completion")
		}
		if lsn.Status == lesson.StatusArchived {
			return ErrLessonArchived
		}
		if !lsn.IsAttached() {
			return ErrLessonNotAttached
		}

		enr, err := svc.repo.LockEnrolment(ctx, studentID, lsn.CourseIDs, tx)
		if err != nil {
			return err
		}

		comp, err := svc.repo.CreateCompletion(ctx, Completion{
			StudentID:     studentID,
			LessonID:      lsn.ID,
			CreditsEarned: lsn.CreditValue,
			CompletedAt:   time.Now().UTC(),
		}, tx)
		if err != nil {
			return err
		}

		courseCompleted, err := svc.accrue(ctx, &enr, tx)
		if err != nil {
			return err
		}

		res = Result{
			Completion:      comp,
			CourseID:        enr.CourseID,
			NewCredits:      enr.Credits,
			NewProgress:     enr.Progress,
			CourseCompleted: courseCompleted,
			LessonTitle:     lsn.Title,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	svc.publish(ctx, core.NewEvent(core.EventLessonCompleted, map[string]interface{}{
		"student_id":     studentID,
		"lesson_id":      res.Completion.LessonID,
		"course_id":      res.CourseID,
		"credits_earned": res.Completion.CreditsEarned,
		"credits":        res.NewCredits,
		"progress":       res.NewProgress,
	}))
	if res.CourseCompleted {
		svc.courseCompleted(ctx, studentID, res.CourseID, res.NewCredits)
	}
	return res, nil
}

// accrue recomputes the enrolment from the completions and saves it, never lowering its credits.
// It reports whether this call created the course completion.
func (svc *service) accrue(ctx context.Context, enr *Enrolment, tx core.DBExecutor) (bool, error) {
	credits, err := svc.repo.SumCourseCredits(ctx, enr.StudentID, enr.CourseID, tx)
	if err != nil {
		return false, errors.Wrap(err, "summing course credits")
	}

	var created bool
	if enr.apply(credits) {
		created, err = svc.repo.CreateCourseCompletion(ctx, CourseCompletion{
			StudentID:          enr.StudentID,
			CourseID:           enr.CourseID,
			TotalCreditsEarned: enr.Credits,
			CompletionStatus:   CourseCompletionCompleted,
			CompletedAt:        time.Now().UTC(),
		}, tx)
		if err != nil {
			return false, errors.Wrap(err, "creating course completion")
		}
	}

	if err = svc.repo.UpdateEnrolment(ctx, *enr, tx); err != nil {
		return false, errors.Wrap(err, "updating enrolment")
	}
	return created, nil
}

func (svc *service) Check(ctx context.Context, lessonID, studentID string) (Status, error) {
	comp, err := svc.repo.GetCompletion(ctx, studentID, lessonID)
	if err != nil {
		if err == ErrNotFound {
			return Status{}, nil
		}
		return Status{}, err
	}
	return Status{Completed: true, CompletedAt: &comp.CompletedAt, CreditsEarned: &comp.CreditsEarned}, nil
}

func (svc *service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	ids, err := svc.repo.ListEnrolmentIDs(ctx)
	if err != nil {
		return report, errors.Wrap(err, "listing enrolments")
	}

	for _, id := range ids {
		var enr Enrolment
		var changed, courseCompleted bool

		err = svc.runInTx(ctx, func(tx core.DBExecutor) error {
			var err error
			if enr, err = svc.repo.LockEnrolmentByID(ctx, id, tx); err != nil {
				return err
			}
			before := enr
			if courseCompleted, err = svc.accrue(ctx, &enr, tx); err != nil {
				return err
			}
			changed = enr != before
			return nil
		})
		if err != nil {
			return report, errors.Wrapf(err, "reconciling enrolment %s", id)
		}

		report.Checked++
		if changed {
			report.Updated++
		}
		if courseCompleted {
			report.CoursesCompleted++
			svc.courseCompleted(ctx, enr.StudentID, enr.CourseID, enr.Credits)
		}
	}
	return report, nil
}
