package progress

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// Lesson statuses
const (
	StatusComplete   = "Complete"
	StatusIncomplete = "Incomplete"
)

type (
	// Row is one (enrolled course, attached lesson) pair of a student.
	// Enrolled courses without lessons have no rows. Classroom columns are null until the student picks one.
	Row struct {
		CourseID      string      `db:"course_id"`
		CourseTitle   string      `db:"course_title"`
		LessonID      string      `db:"lesson_id"`
		LessonCode    string      `db:"lesson_code"`
		LessonTitle   string      `db:"lesson_title"`
		ClassroomID   null.String `db:"classroom_id"`
		ClassroomCode null.String `db:"classroom_code"`
		Completed     bool        `db:"completed"`
	}

	Classroom struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}

	LessonSummary struct {
		LessonID    string     `json:"id"`
		LessonCode  string     `json:"lesson_id"`
		LessonTitle string     `json:"title"`
		Classroom   *Classroom `json:"classroom"`
		Status      string     `json:"status"`
	}

	CourseSummary struct {
		CourseID    string          `json:"course_id"`
		CourseTitle string          `json:"course_title"`
		Lessons     []LessonSummary `json:"lessons"`
	}

	Repository interface {
		ListRows(ctx context.Context, studentID string) ([]Row, error)
	}

	Service interface {
		// Summary groups the student's lessons by enrolled course. Courses without lessons are left out.
		Summary(ctx context.Context, studentID string) ([]CourseSummary, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Summary(ctx context.Context, studentID string) ([]CourseSummary, error) {
	rows, err := svc.repo.ListRows(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing progress rows")
	}
	return Project(rows), nil
}

// Project groups rows by course. Courses are ordered by title, then lessons by title, comparing bytes.
func Project(rows []Row) []CourseSummary {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.CourseTitle != b.CourseTitle {
			return a.CourseTitle < b.CourseTitle
		}
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		return a.LessonTitle < b.LessonTitle
	})

	summaries := make([]CourseSummary, 0)
	var current *CourseSummary
	for _, r := range sorted {
		if current == nil || current.CourseID != r.CourseID {
			summaries = append(summaries, CourseSummary{
				CourseID:    r.CourseID,
				CourseTitle: r.CourseTitle,
				Lessons:     make([]LessonSummary, 0),
			})
			current = &summaries[len(summaries)-1]
		}
		ls := LessonSummary{
			LessonID:    r.LessonID,
			LessonCode:  r.LessonCode,
			LessonTitle: r.LessonTitle,
			Status:      StatusIncomplete,
		}
		if r.ClassroomID.Valid {
			ls.Classroom = &Classroom{ID: r.ClassroomID.String, Code: r.ClassroomCode.String}
		}
		if r.Completed {
			ls.Status = StatusComplete
		}
		current.Lessons = append(current.Lessons, ls)
	}
	return summaries
}
