package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/prereq"
	"github.com/trezcool/kujifunza/core/progress"
)

type lessonRepository struct {
	db *DB
}

var (
	_ lesson.Repository   = (*lessonRepository)(nil) // interface compliance check
	_ prereq.Repository   = (*lessonRepository)(nil)
	_ progress.Repository = (*lessonRepository)(nil)
)

// NewLessonRepository serves lessons, their prerequisites and the progress rows.
func NewLessonRepository(db *DB) *lessonRepository {
	return &lessonRepository{db: db}
}

func (repo *lessonRepository) GetLesson(_ context.Context, id string, _ ...core.DBExecutor) (lesson.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lsn, ok := repo.db.lessons[id]
	if !ok {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	l := *lsn
	l.CourseIDs = repo.db.courseIDs(id)
	return l, nil
}

func (repo *lessonRepository) IsEnrolled(_ context.Context, studentID string, courseIDs []string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, courseID := range courseIDs {
		if repo.db.isEnrolled(studentID, courseID) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *lessonRepository) HasClassroomSelection(_ context.Context, studentID, lessonID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.db.selections[completionKey{studentID, lessonID}]
	return ok, nil
}

func (repo *lessonRepository) GetCompletionStatus(_ context.Context, studentID, lessonID string, _ ...core.DBExecutor) (*lesson.CompletionStatus, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cs, ok := repo.db.completions[completionKey{studentID, lessonID}]; ok {
		return &cs, nil
	}
	return nil, nil
}

func (repo *lessonRepository) AttachLesson(_ context.Context, courseID, lessonID, _ string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return lesson.ErrCourseNotFound
	}
	if _, ok := repo.db.lessons[lessonID]; !ok {
		return lesson.ErrNotFound
	}
	for _, a := range repo.db.attachments {
		if a.courseID == courseID && a.lessonID == lessonID {
			return nil
		}
	}
	repo.db.attachments = append(repo.db.attachments, attachment{courseID: courseID, lessonID: lessonID, attachedAt: time.Now().UTC()})
	return nil
}

func (repo *lessonRepository) DetachLesson(_ context.Context, courseID, lessonID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return lesson.ErrCourseNotFound
	}
	repo.db.detach(func(a attachment) bool { return a.courseID == courseID && a.lessonID == lessonID })
	return nil
}

func (repo *lessonRepository) FindPrerequisites(_ context.Context, studentID string, refs []string, _ ...core.DBExecutor) ([]prereq.Prerequisite, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(refs))
	for _, ref := range refs {
		wanted[ref] = true
	}

	prereqs := make([]prereq.Prerequisite, 0)
	for _, lsn := range repo.db.lessons {
		if !wanted[lsn.ID] && !wanted[lsn.Code] {
			continue
		}
		_, completed := repo.db.completions[completionKey{studentID, lsn.ID}]
		prereqs = append(prereqs, prereq.Prerequisite{ID: lsn.ID, Code: lsn.Code, Title: lsn.Title, Completed: completed})
	}
	sort.Slice(prereqs, func(i, j int) bool {
		if prereqs[i].Title != prereqs[j].Title {
			return prereqs[i].Title < prereqs[j].Title
		}
		return prereqs[i].ID < prereqs[j].ID
	})
	return prereqs, nil
}

// ListRows joins the student's enrolled courses with their attached lessons.
// Ordering is left to progress.Project.
func (repo *lessonRepository) ListRows(_ context.Context, studentID string) ([]progress.Row, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]progress.Row, 0)
	for _, courseID := range repo.db.enrolments[studentID] {
		crs := repo.db.courses[courseID]
		if crs == nil {
			continue
		}
		base := progress.Row{CourseID: crs.ID, CourseTitle: crs.Title}

		for _, a := range repo.db.attachments {
			lsn, ok := repo.db.lessons[a.lessonID]
			if a.courseID != courseID || !ok {
				continue
			}

			row := base
			row.LessonID = lsn.ID
			row.LessonCode = lsn.Code
			row.LessonTitle = lsn.Title
			key := completionKey{studentID, lsn.ID}
			if sel, ok := repo.db.selections[key]; ok {
				row.ClassroomID.SetValid(sel.classroomID)
				row.ClassroomCode.SetValid(sel.classroomCode)
			}
			_, row.Completed = repo.db.completions[key]
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// codeTaken reports whether another lesson already uses code. The caller holds the lock.
func (repo *lessonRepository) codeTaken(code, exceptID string) bool {
	for _, lsn := range repo.db.lessons {
		if lsn.Code == code && lsn.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *lessonRepository) CreateLesson(_ context.Context, lsn lesson.Lesson, _ ...core.DBExecutor) (lesson.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.codeTaken(lsn.Code, "") {
		return lesson.Lesson{}, lesson.ErrCodeExists
	}
	for _, courseID := range lsn.CourseIDs {
		if _, ok := repo.db.courses[courseID]; !ok {
			return lesson.Lesson{}, lesson.ErrCourseNotFound
		}
	}

	lsn.ID = newID()
	for i, courseID := range lsn.CourseIDs {
		repo.db.attachments = append(repo.db.attachments, attachment{
			courseID:   courseID,
			lessonID:   lsn.ID,
			attachedAt: lsn.CreatedAt.Add(time.Duration(i) * time.Microsecond),
		})
	}
	stored := lsn
	stored.CourseIDs = nil
	repo.db.lessons[lsn.ID] = &stored

	lsn.CourseIDs = repo.db.courseIDs(lsn.ID)
	return lsn, nil
}

func (repo *lessonRepository) UpdateLesson(_ context.Context, lsn lesson.Lesson, _ ...core.DBExecutor) (lesson.Lesson, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cur, ok := repo.db.lessons[lsn.ID]
	if !ok {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	if repo.codeTaken(lsn.Code, lsn.ID) {
		return lesson.Lesson{}, lesson.ErrCodeExists
	}

	lsn.DesignerID, lsn.CreatedAt = cur.DesignerID, cur.CreatedAt
	lsn.CourseIDs = nil
	repo.db.lessons[lsn.ID] = &lsn

	l := lsn
	l.CourseIDs = repo.db.courseIDs(lsn.ID)
	return l, nil
}

func (repo *lessonRepository) DeleteLesson(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.lessons[id]; !ok {
		return lesson.ErrNotFound
	}
	delete(repo.db.lessons, id)
	repo.db.detach(func(a attachment) bool { return a.lessonID == id })
	for key := range repo.db.selections {
		if key.lessonID == id {
			delete(repo.db.selections, key)
		}
	}
	for key := range repo.db.completions {
		if key.lessonID == id {
			delete(repo.db.completions, key)
		}
	}
	return nil
}

func (repo *lessonRepository) QueryLessons(_ context.Context, filter lesson.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]lesson.Lesson, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lessons := make([]lesson.Lesson, 0)
	for _, lsn := range repo.db.lessons {
		l := *lsn
		l.CourseIDs = repo.db.courseIDs(l.ID)
		if matchLesson(l, filter) {
			lessons = append(lessons, l)
		}
	}

	sort.SliceStable(lessons, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareLessons(lessons[i], lessons[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return lessons[i].ID < lessons[j].ID
	})
	return lessons, nil
}

func matchLesson(l lesson.Lesson, filter lesson.QueryFilter) bool {
	switch {
	case filter.CourseID != "":
		var found bool
		for _, id := range l.CourseIDs {
			if id == filter.CourseID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	case filter.Unassigned && l.IsAttached():
		return false
	}
	if filter.Status != "" && l.Status != filter.Status {
		return false
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(l.Code), kw) && !strings.Contains(strings.ToLower(l.Title), kw) {
			return false
		}
	}
	return true
}

func compareLessons(a, b lesson.Lesson, field string) int {
	switch field {
	case "code":
		return strings.Compare(a.Code, b.Code)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "status":
		return strings.Compare(a.Status, b.Status)
	case "credit_value":
		return compareInts(a.CreditValue, b.CreditValue)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}
