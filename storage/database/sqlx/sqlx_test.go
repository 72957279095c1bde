package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/enrolment"
	"github.com/trezcool/kujifunza/core/progress"
	"github.com/trezcool/kujifunza/core/user"
	boiledrepos "github.com/trezcool/kujifunza/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/kujifunza/storage/database/sqlx"
	testutil "github.com/trezcool/kujifunza/tests"
)

func TestProgressRepository_ListRows(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewProgressRepository(db)

	stu := testutil.CreateUser(t, boiledrepos.NewUserRepository(db), "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	zoology := testutil.CreateCourse(t, db, "ZOO", "Zoology")
	art := testutil.CreateCourse(t, db, "ART", "Art")
	testutil.CreateCourse(t, db, "BIO", "Biology")
	sketch := testutil.CreateLesson(t, db, testutil.Lesson{Code: "ART-2", Title: "sketching", CourseIDs: []string{art}})
	paint := testutil.CreateLesson(t, db, testutil.Lesson{Code: "ART-1", Title: "Painting", CourseIDs: []string{art}})
	room := testutil.CreateClassroom(t, db, "P-1", art, paint, 0)
	testutil.Enrol(t, db, stu.ID, zoology)
	testutil.Enrol(t, db, stu.ID, art)
	testutil.SelectClassroom(t, db, stu.ID, room, paint)
	testutil.CompleteLesson(t, db, stu.ID, sketch, 2)

	rows, err := repo.ListRows(ctx, stu.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Art", rows[0].CourseTitle)
	assert.Equal(t, "Painting", rows[0].LessonTitle)
	assert.Equal(t, "P-1", rows[0].ClassroomCode.String)
	assert.False(t, rows[0].Completed)
	assert.Equal(t, "sketching", rows[1].LessonTitle)
	assert.False(t, rows[1].ClassroomID.Valid)
	assert.True(t, rows[1].Completed)

	// zoology has no lessons attached and is left out
	summary := progress.Project(rows)
	require.Len(t, summary, 1)
	assert.Equal(t, art, summary[0].CourseID)
	assert.Len(t, summary[0].Lessons, 2)

	rows, err = repo.ListRows(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClassroomRepository_ListClassrooms(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewClassroomRepository(db)

	usrRepo := boiledrepos.NewUserRepository(db)
	jane := testutil.CreateUser(t, usrRepo, "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	john := testutil.CreateUser(t, usrRepo, "John", "john", "john@test.cd", "", []string{user.RoleStudent}, true)
	maths := testutil.CreateCourse(t, db, "MATH", "Mathematics")
	algebra := testutil.CreateLesson(t, db, testutil.Lesson{Code: "MATH-101", Title: "Algebra", CourseIDs: []string{maths}})
	b := testutil.CreateClassroom(t, db, "B", maths, algebra, 5)
	a := testutil.CreateClassroom(t, db, "A", maths, algebra, 10)
	c := testutil.CreateClassroom(t, db, "C", maths, algebra, 5, enrolment.ClassroomArchived)
	testutil.SelectClassroom(t, db, jane.ID, b, algebra)
	testutil.SelectClassroom(t, db, john.ID, b, algebra)

	ids := func(rooms []enrolment.Classroom) []string {
		out := make([]string, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "by code", ordering: []core.DBOrdering{{Field: "code", Ascending: true}}, want: []string{a, b, c}},
		{name: "by code desc", ordering: []core.DBOrdering{{Field: "code"}}, want: []string{c, b, a}},
		{
			name:     "by capacity then code desc",
			ordering: []core.DBOrdering{{Field: "max_capacity", Ascending: true}, {Field: "code"}},
			want:     []string{c, b, a},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, err := repo.ListClassrooms(ctx, algebra, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(rooms))
		})
	}

	rooms, err := repo.ListClassrooms(ctx, algebra, []core.DBOrdering{{Field: "code", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 0}, []int{rooms[0].Headcount, rooms[1].Headcount, rooms[2].Headcount})

	rooms, err = repo.ListClassrooms(ctx, "nope", nil)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestClassroomRepository_GetClassroom(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewClassroomRepository(db)

	jane := testutil.CreateUser(t, boiledrepos.NewUserRepository(db), "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	maths := testutil.CreateCourse(t, db, "MATH", "Mathematics")
	algebra := testutil.CreateLesson(t, db, testutil.Lesson{Code: "MATH-101", Title: "Algebra", CourseIDs: []string{maths}})
	room := testutil.CreateClassroom(t, db, "A", maths, algebra, 5)
	testutil.SelectClassroom(t, db, jane.ID, room, algebra)

	got, err := repo.GetClassroom(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Code)
	assert.Equal(t, algebra, got.LessonID)
	assert.Equal(t, 1, got.Headcount)
	assert.Equal(t, enrolment.DefaultDurationWeeks, got.DurationWeeks)

	for _, id := range []string{"nope", "a8c1f9a6-4f7d-4c56-9a38-e1d27fbd0d0e"} {
		_, err = repo.GetClassroom(ctx, id)
		assert.Equal(t, enrolment.ErrClassroomNotFound, err, id)
	}
}
