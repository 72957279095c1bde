package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/course"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/user"
)

func TestCourseRepository(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	repo := NewCourseRepository(db)

	director, err := NewUserRepository(db).CreateUser(ctx, user.User{Name: "Ines", Username: "ines", Roles: []string{user.RoleInstructor}})
	require.NoError(t, err)

	now := time.Now().UTC()
	bio, err := repo.CreateCourse(ctx, course.Course{Code: "BIO", Title: "Biology", Status: course.StatusDraft, CreatedAt: now.Add(-time.Minute)})
	require.NoError(t, err)
	maths, err := repo.CreateCourse(ctx, course.Course{
		Code: "MATH", Title: "Mathematics", Status: course.StatusPublished, DirectorID: director.ID, CreatedAt: now,
	})
	require.NoError(t, err)
	db.AddLesson(lesson.Lesson{Code: "MATH-101", Title: "Algebra", CourseIDs: []string{maths.ID}})

	t.Run("write errors", func(t *testing.T) {
		_, err := repo.CreateCourse(ctx, course.Course{Code: "BIO"})
		assert.Equal(t, course.ErrCodeExists, err)
		_, err = repo.CreateCourse(ctx, course.Course{Code: "ART", DirectorID: "ghost"})
		assert.Equal(t, course.ErrDirectorNotFound, err)

		upd := bio
		upd.Code = "MATH"
		_, err = repo.UpdateCourse(ctx, upd)
		assert.Equal(t, course.ErrCodeExists, err)
		_, err = repo.UpdateCourse(ctx, course.Course{ID: "nope"})
		assert.Equal(t, course.ErrNotFound, err)
	})

	t.Run("QueryCourses", func(t *testing.T) {
		tests := []struct {
			name     string
			filter   course.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "newest first", ordering: []core.DBOrdering{{Field: "created_at"}}, want: []string{maths.ID, bio.ID}},
			{name: "by code", ordering: []core.DBOrdering{{Field: "code", Ascending: true}}, want: []string{bio.ID, maths.ID}},
			{name: "by lessons", ordering: []core.DBOrdering{{Field: "total_lessons"}}, want: []string{maths.ID, bio.ID}},
			{name: "status", filter: course.QueryFilter{Status: course.StatusDraft}, want: []string{bio.ID}},
			{name: "search", filter: course.QueryFilter{Search: "math"}, want: []string{maths.ID}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				courses, err := repo.QueryCourses(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				ids := make([]string, 0, len(courses))
				for _, c := range courses {
					ids = append(ids, c.ID)
				}
				assert.Equal(t, tt.want, ids)
			})
		}
	})

	t.Run("UpdateCourse", func(t *testing.T) {
		upd := maths
		upd.Title, upd.TotalCredits = "Maths", 99
		got, err := repo.UpdateCourse(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, "Maths", got.Title)
		assert.Equal(t, maths.TotalCredits, got.TotalCredits)
		assert.Equal(t, 1, got.TotalLessons)
	})

	t.Run("DeleteCourse", func(t *testing.T) {
		db.Enrol("stu", maths.ID)
		assert.Equal(t, course.ErrHasEnrolments, repo.DeleteCourse(ctx, maths.ID))

		require.NoError(t, repo.DeleteCourse(ctx, bio.ID))
		_, err := repo.GetCourse(ctx, bio.ID)
		assert.Equal(t, course.ErrNotFound, err)
		assert.Equal(t, course.ErrNotFound, repo.DeleteCourse(ctx, bio.ID))
	})
}
