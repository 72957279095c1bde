package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// get copies the course with its lesson count. The caller holds the lock.
func (repo *courseRepository) get(id string) (course.Course, bool) {
	crs, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, false
	}
	c := *crs
	c.TotalLessons = repo.db.countLessons(id)
	return c, true
}

// check validates the unique code and the director of crs. The caller holds the lock.
func (repo *courseRepository) check(crs course.Course) error {
	for _, c := range repo.db.courses {
		if c.Code == crs.Code && c.ID != crs.ID {
			return course.ErrCodeExists
		}
	}
	if crs.DirectorID != "" {
		if _, ok := repo.db.users[crs.DirectorID]; !ok {
			return course.ErrDirectorNotFound
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = newID()
	if err := repo.check(crs); err != nil {
		return course.Course{}, err
	}
	crs.TotalLessons = 0
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	crs, ok := repo.get(id)
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cur, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if err := repo.check(crs); err != nil {
		return course.Course{}, err
	}

	crs.TotalCredits, crs.CreatedAt = cur.TotalCredits, cur.CreatedAt
	repo.db.courses[crs.ID] = &crs
	updated, _ := repo.get(crs.ID)
	return updated, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	for studentID := range repo.db.enrolments {
		if repo.db.isEnrolled(studentID, id) {
			return course.ErrHasEnrolments
		}
	}
	delete(repo.db.courses, id)
	repo.db.detach(func(a attachment) bool { return a.courseID == id })
	return nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	kw := strings.ToLower(filter.Search)
	courses := make([]course.Course, 0)
	for id := range repo.db.courses {
		crs, _ := repo.get(id)
		if filter.Status != "" && crs.Status != filter.Status {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(crs.Code), kw) && !strings.Contains(strings.ToLower(crs.Title), kw) {
			continue
		}
		courses = append(courses, crs)
	}

	sort.SliceStable(courses, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareCourses(courses[i], courses[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}

func compareCourses(a, b course.Course, field string) int {
	switch field {
	case "code":
		return strings.Compare(a.Code, b.Code)
	case "title":
		return strings.Compare(a.Title, b.Title)
	case "status":
		return strings.Compare(a.Status, b.Status)
	case "total_lessons":
		return compareInts(a.TotalLessons, b.TotalLessons)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}
