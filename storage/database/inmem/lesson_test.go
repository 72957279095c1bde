package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/progress"
)

func TestLessonRepository(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	repo := NewLessonRepository(db)

	maths := db.AddCourse("Mathematics")
	physics := db.AddCourse("Physics")
	empty := db.AddCourse("Empty")
	algebra := db.AddLesson(lesson.Lesson{Code: "MATH-101", Title: "Algebra", Status: lesson.StatusPublished, CourseIDs: []string{maths, physics}})
	calculus := db.AddLesson(lesson.Lesson{Code: "MATH-201", Title: "Calculus", Status: lesson.StatusPublished, Prerequisites: `["MATH-101"]`, CourseIDs: []string{maths}})

	db.Enrol("stu", maths)
	db.Enrol("stu", empty)
	db.SelectClassroom("stu", algebra, "A-1")
	db.CompleteLesson("stu", algebra, 5, time.Now())

	t.Run("GetLesson", func(t *testing.T) {
		lsn, err := repo.GetLesson(ctx, algebra)
		require.NoError(t, err)
		assert.Equal(t, []string{maths, physics}, lsn.CourseIDs)

		_, err = repo.GetLesson(ctx, "nope")
		assert.Equal(t, lesson.ErrNotFound, err)
	})

	t.Run("attach twice is a no-op", func(t *testing.T) {
		require.NoError(t, repo.AttachLesson(ctx, physics, calculus, ""))
		require.NoError(t, repo.AttachLesson(ctx, physics, calculus, ""))
		lsn, _ := repo.GetLesson(ctx, calculus)
		assert.Equal(t, []string{maths, physics}, lsn.CourseIDs)

		require.NoError(t, repo.DetachLesson(ctx, physics, calculus))
		lsn, _ = repo.GetLesson(ctx, calculus)
		assert.Equal(t, []string{maths}, lsn.CourseIDs)

		assert.Equal(t, lesson.ErrCourseNotFound, repo.AttachLesson(ctx, "ghost", calculus, ""))
	})

	t.Run("FindPrerequisites", func(t *testing.T) {
		prereqs, err := repo.FindPrerequisites(ctx, "stu", []string{"MATH-201", algebra, "unknown"})
		require.NoError(t, err)
		require.Len(t, prereqs, 2)
		assert.Equal(t, "Algebra", prereqs[0].Title)
		assert.True(t, prereqs[0].Completed)
		assert.False(t, prereqs[1].Completed)
	})

	t.Run("ListRows", func(t *testing.T) {
		rows, err := repo.ListRows(ctx, "stu")
		require.NoError(t, err)

		// the empty course has no lessons attached and is left out
		summary := progress.Project(rows)
		require.Len(t, summary, 1)
		assert.Equal(t, "Mathematics", summary[0].CourseTitle)

		lessons := summary[0].Lessons
		require.Len(t, lessons, 2)
		assert.Equal(t, progress.StatusComplete, lessons[0].Status)
		require.NotNil(t, lessons[0].Classroom)
		assert.Equal(t, "A-1", lessons[0].Classroom.Code)
		assert.Equal(t, progress.StatusIncomplete, lessons[1].Status)
		assert.Nil(t, lessons[1].Classroom)
	})
}

func TestLessonRepository_authoring(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	repo := NewLessonRepository(db)

	maths := db.AddCourse("Mathematics")
	now := time.Now().UTC()
	algebra, err := repo.CreateLesson(ctx, lesson.Lesson{
		Code: "MATH-101", Title: "Algebra", Status: lesson.StatusPublished, CreditValue: 5,
		CourseIDs: []string{maths}, CreatedAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{maths}, algebra.CourseIDs)
	draft, err := repo.CreateLesson(ctx, lesson.Lesson{Code: "BIO-1", Title: "Cells", Status: lesson.StatusDraft, CreditValue: 2, CreatedAt: now})
	require.NoError(t, err)

	t.Run("create errors", func(t *testing.T) {
		_, err := repo.CreateLesson(ctx, lesson.Lesson{Code: "MATH-101"})
		assert.Equal(t, lesson.ErrCodeExists, err)
		_, err = repo.CreateLesson(ctx, lesson.Lesson{Code: "X", CourseIDs: []string{"ghost"}})
		assert.Equal(t, lesson.ErrCourseNotFound, err)
	})

	t.Run("QueryLessons", func(t *testing.T) {
		byCode := []core.DBOrdering{{Field: "code", Ascending: true}}
		tests := []struct {
			name     string
			filter   lesson.QueryFilter
			ordering []core.DBOrdering
			want     []string
		}{
			{name: "all by code", ordering: byCode, want: []string{draft.ID, algebra.ID}},
			{name: "newest first", ordering: []core.DBOrdering{{Field: "created_at"}}, want: []string{draft.ID, algebra.ID}},
			{name: "by credits", ordering: []core.DBOrdering{{Field: "credit_value"}}, want: []string{algebra.ID, draft.ID}},
			{name: "course", filter: lesson.QueryFilter{CourseID: maths}, want: []string{algebra.ID}},
			{name: "unassigned", filter: lesson.QueryFilter{Unassigned: true}, want: []string{draft.ID}},
			{name: "status", filter: lesson.QueryFilter{Status: lesson.StatusPublished}, want: []string{algebra.ID}},
			{name: "search", filter: lesson.QueryFilter{Search: "cel"}, want: []string{draft.ID}},
			{name: "no match", filter: lesson.QueryFilter{Search: "zzz"}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				lessons, err := repo.QueryLessons(ctx, tt.filter, tt.ordering)
				require.NoError(t, err)
				ids := make([]string, 0, len(lessons))
				for _, l := range lessons {
					ids = append(ids, l.ID)
				}
				assert.Equal(t, tt.want, ids)
			})
		}
	})

	t.Run("UpdateLesson", func(t *testing.T) {
		upd := algebra
		upd.Code = "BIO-1"
		_, err := repo.UpdateLesson(ctx, upd)
		assert.Equal(t, lesson.ErrCodeExists, err)

		upd.Code, upd.Title = "MATH-102", "Linear algebra"
		got, err := repo.UpdateLesson(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, "Linear algebra", got.Title)
		assert.Equal(t, []string{maths}, got.CourseIDs)

		_, err = repo.UpdateLesson(ctx, lesson.Lesson{ID: "nope"})
		assert.Equal(t, lesson.ErrNotFound, err)
	})

	t.Run("DeleteLesson", func(t *testing.T) {
		db.Enrol("stu", maths)
		db.CompleteLesson("stu", algebra.ID, 5, now)

		require.NoError(t, repo.DeleteLesson(ctx, algebra.ID))
		_, err := repo.GetLesson(ctx, algebra.ID)
		assert.Equal(t, lesson.ErrNotFound, err)
		rows, _ := repo.ListRows(ctx, "stu")
		assert.Empty(t, rows)
		cs, _ := repo.GetCompletionStatus(ctx, "stu", algebra.ID)
		assert.Nil(t, cs)

		assert.Equal(t, lesson.ErrNotFound, repo.DeleteLesson(ctx, algebra.ID))
	})
}
