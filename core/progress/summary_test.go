package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

type fakeRepo struct {
	rows []Row
	err  error
}

func (r fakeRepo) ListRows(context.Context, string) ([]Row, error) {
	return r.rows, r.err
}

func row(courseID, courseTitle, lessonID, lessonTitle, classroomID string, completed bool) Row {
	r := Row{
		CourseID:    courseID,
		CourseTitle: courseTitle,
		LessonID:    lessonID,
		LessonCode:  "CODE-" + lessonID,
		LessonTitle: lessonTitle,
		Completed:   completed,
	}
	if classroomID != "" {
		r.ClassroomID = null.StringFrom(classroomID)
		r.ClassroomCode = null.StringFrom("ROOM-" + classroomID)
	}
	return r
}

func TestService_Summary(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		want []CourseSummary
	}{
		{
			name: "no enrolments",
			want: []CourseSummary{},
		},
		{
			name: "grouped & ordered by title, case sensitive",
			rows: []Row{
				row("c2", "physics", "l4", "Optics", "", false),
				row("c1", "Mathematics", "l2", "calculus", "r2", true),
				row("c1", "Mathematics", "l1", "Algebra", "r1", true),
				row("c1", "Mathematics", "l3", "Geometry", "", false),
				row("c3", "Chemistry", "l5", "Atoms", "", false),
			},
			want: []CourseSummary{
				{CourseID: "c3", CourseTitle: "Chemistry", Lessons: []LessonSummary{
					{LessonID: "l5", LessonCode: "CODE-l5", LessonTitle: "Atoms", Status: StatusIncomplete},
				}},
				{CourseID: "c1", CourseTitle: "Mathematics", Lessons: []LessonSummary{
					{LessonID: "l1", LessonCode: "CODE-l1", LessonTitle: "Algebra", Classroom: &Classroom{ID: "r1", Code: "ROOM-r1"}, Status: StatusComplete},
					{LessonID: "l3", LessonCode: "CODE-l3", LessonTitle: "Geometry", Status: StatusIncomplete},
					{LessonID: "l2", LessonCode: "CODE-l2", LessonTitle: "calculus", Classroom: &Classroom{ID: "r2", Code: "ROOM-r2"}, Status: StatusComplete},
				}},
				{CourseID: "c2", CourseTitle: "physics", Lessons: []LessonSummary{
					{LessonID: "l4", LessonCode: "CODE-l4", LessonTitle: "Optics", Status: StatusIncomplete},
				}},
			},
		},
		{
			name: "courses sharing a title stay apart",
			rows: []Row{
				row("c2", "Intro", "l2", "B", "", false),
				row("c1", "Intro", "l1", "A", "", true),
			},
			want: []CourseSummary{
				{CourseID: "c1", CourseTitle: "Intro", Lessons: []LessonSummary{{LessonID: "l1", LessonCode: "CODE-l1", LessonTitle: "A", Status: StatusComplete}}},
				{CourseID: "c2", CourseTitle: "Intro", Lessons: []LessonSummary{{LessonID: "l2", LessonCode: "CODE-l2", LessonTitle: "B", Status: StatusIncomplete}}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewService(fakeRepo{rows: tt.rows}).Summary(context.Background(), "s1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Summary_repoError(t *testing.T) {
	_, err := NewService(fakeRepo{err: errors.New("timeout")}).Summary(context.Background(), "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
