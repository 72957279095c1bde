package enrolment

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
)

const (
	studentID = "0b5f3bc4-8bb6-4f39-9a6c-6a3f1e0c7d11"
	courseID  = "4d0e2c1a-1f5b-4c55-b1c7-2f1d8c9e0a22"
)

const lessonID = "7c2d9a10-3e4f-4a5b-8c6d-0e1f2a3b4c55"

type fakeRepo struct {
	Repository
	enrolments []completion.Enrolment
	ordering   []core.DBOrdering
	classrooms map[string]Classroom
}

func (r *fakeRepo) LockClassroom(_ context.Context, id string, _ ...core.DBExecutor) (Classroom, error) {
	room, ok := r.classrooms[id]
	if !ok {
		return Classroom{}, ErrClassroomNotFound
	}
	return room, nil
}

func (r *fakeRepo) GetClassroom(ctx context.Context, id string) (Classroom, error) {
	return r.LockClassroom(ctx, id)
}

func (r *fakeRepo) codeTaken(code, exceptID string) bool {
	for _, room := range r.classrooms {
		if room.Code == code && room.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *fakeRepo) CreateClassroom(_ context.Context, room Classroom, _ ...core.DBExecutor) (Classroom, error) {
	if r.codeTaken(room.Code, "") {
		return Classroom{}, ErrClassroomCodeExists
	}
	if room.CourseID != courseID || room.LessonID != lessonID {
		return Classroom{}, ErrLessonNotInCourse
	}
	room.ID = "new-" + room.Code
	r.classrooms[room.ID] = room
	return room, nil
}

func (r *fakeRepo) UpdateClassroom(_ context.Context, room Classroom, _ ...core.DBExecutor) (Classroom, error) {
	if r.codeTaken(room.Code, room.ID) {
		return Classroom{}, ErrClassroomCodeExists
	}
	r.classrooms[room.ID] = room
	return room, nil
}

func (r *fakeRepo) DeleteClassroom(_ context.Context, id string, _ ...core.DBExecutor) error {
	delete(r.classrooms, id)
	return nil
}

func (r *fakeRepo) CreateEnrolment(_ context.Context, enr completion.Enrolment, _ ...core.DBExecutor) (completion.Enrolment, error) {
	if enr.CourseID != courseID {
		return completion.Enrolment{}, ErrCourseNotFound
	}
	for _, e := range r.enrolments {
		if e.StudentID == enr.StudentID && e.CourseID == enr.CourseID {
			return completion.Enrolment{}, ErrAlreadyEnrolled
		}
	}
	enr.ID = "e1"
	r.enrolments = append(r.enrolments, enr)
	return enr, nil
}

func (r *fakeRepo) ListClassrooms(_ context.Context, _ string, ordering []core.DBOrdering) ([]Classroom, error) {
	r.ordering = ordering
	return []Classroom{}, nil
}

func newTestService(repo *fakeRepo) Service {
	return &service{
		repo:     repo,
		querier:  repo,
		validate: core.NewValidator(core.NewTranslator()),
		runInTx: func(_ context.Context, fn func(tx core.DBExecutor) error) error {
			return fn(nil)
		},
	}
}

func invalidField(t *testing.T, err error) string {
	t.Helper()
	switch verr := err.(type) {
	case validator.ValidationErrors:
		require.Len(t, verr, 1)
		return verr[0].Field()
	case *core.ValidationError:
		require.Len(t, verr.Fields, 1)
		return verr.Fields[0].Field
	}
	t.Fatalf("unexpected error type %T: %v", err, err)
	return ""
}

func TestService_Enrol(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	enr, err := svc.Enrol(ctx, NewEnrolment{StudentID: " " + studentID + " ", CourseID: courseID})
	require.NoError(t, err)
	assert.Equal(t, studentID, enr.StudentID)
	assert.Equal(t, completion.EnrolmentEnrolled, enr.Status)
	assert.Zero(t, enr.Credits)
	assert.Zero(t, enr.Progress)
	assert.False(t, enr.DateEnrolled.IsZero())

	_, err = svc.Enrol(ctx, NewEnrolment{StudentID: studentID, CourseID: courseID})
	assert.Equal(t, ErrAlreadyEnrolled, err)
}

func TestService_Enrol_invalid(t *testing.T) {
	tests := []struct {
		name      string
		ne        NewEnrolment
		wantField string
	}{
		{name: "missing student", ne: NewEnrolment{CourseID: courseID}, wantField: "student_id"},
		{name: "malformed course", ne: NewEnrolment{StudentID: studentID, CourseID: "maths"}, wantField: "course_id"},
		{name: "unknown course", ne: NewEnrolment{StudentID: studentID, CourseID: "9e3c3f0a-9f0b-4b8b-8f43-1b5f9c0d4e33"}, wantField: "course_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestService(&fakeRepo{}).Enrol(context.Background(), tt.ne)
			require.Error(t, err)
			assert.Equal(t, tt.wantField, invalidField(t, err))
		})
	}
}

func TestService_ListClassrooms_ordering(t *testing.T) {
	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     []core.DBOrdering
	}{
		{
			name: "defaults to creation date",
			want: []core.DBOrdering{{Field: "created_at", Ascending: true}},
		},
		{
			name:     "unknown fields are dropped",
			ordering: []core.DBOrdering{{Field: "max_capacity"}, {Field: "id; DROP TABLE classrooms"}, {Field: "code", Ascending: true}},
			want:     []core.DBOrdering{{Field: "max_capacity"}, {Field: "code", Ascending: true}},
		},
		{
			name:     "only unknown fields",
			ordering: []core.DBOrdering{{Field: "headcount"}},
			want:     []core.DBOrdering{{Field: "created_at", Ascending: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			_, err := newTestService(repo).ListClassrooms(context.Background(), "l1", tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, repo.ordering)
		})
	}
}

func TestClassroom_IsFull(t *testing.T) {
	assert.False(t, Classroom{MaxCapacity: 2, Headcount: 1}.IsFull())
	assert.True(t, Classroom{MaxCapacity: 2, Headcount: 2}.IsFull())
	assert.False(t, Classroom{MaxCapacity: 0, Headcount: 10}.IsFull(), "no capacity means unlimited")
}

func TestService_CreateClassroom(t *testing.T) {
	capacity := func(n int) *int { return &n }

	tests := []struct {
		name      string
		nc        NewClassroom
		wantField string
	}{
		{name: "missing course", nc: NewClassroom{LessonID: lessonID}, wantField: "course_id"},
		{name: "negative capacity", nc: NewClassroom{CourseID: courseID, LessonID: lessonID, MaxCapacity: capacity(-1)}, wantField: "max_capacity"},
		{name: "too long", nc: NewClassroom{CourseID: courseID, LessonID: lessonID, DurationWeeks: 105}, wantField: "duration_weeks"},
		{name: "unknown status", nc: NewClassroom{CourseID: courseID, LessonID: lessonID, Status: "open"}, wantField: "status"},
		{
			name:      "lesson not in course",
			nc:        NewClassroom{CourseID: "9e3c3f0a-9f0b-4b8b-8f43-1b5f9c0d4e33", LessonID: lessonID},
			wantField: "course_id",
		},
		{name: "code taken", nc: NewClassroom{Code: "A", CourseID: courseID, LessonID: lessonID}, wantField: "code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{classrooms: map[string]Classroom{"r1": {ID: "r1", Code: "A"}}}
			_, err := newTestService(repo).CreateClassroom(context.Background(), tt.nc)
			assert.Equal(t, tt.wantField, invalidField(t, err))
			assert.Len(t, repo.classrooms, 1)
		})
	}

	svc := newTestService(&fakeRepo{classrooms: map[string]Classroom{}})

	room, err := svc.CreateClassroom(context.Background(), NewClassroom{CourseID: courseID, LessonID: lessonID})
	require.NoError(t, err)
	assert.Regexp(t, `^cls-[0-9a-f]{8}$`, room.Code)
	assert.Equal(t, DefaultDurationWeeks, room.DurationWeeks)
	assert.Equal(t, DefaultMaxCapacity, room.MaxCapacity)
	assert.Equal(t, ClassroomActive, room.Status)

	room, err = svc.CreateClassroom(context.Background(), NewClassroom{
		Code: " B-1 ", CourseID: courseID, LessonID: lessonID, DurationWeeks: 6, MaxCapacity: capacity(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "B-1", room.Code)
	assert.Equal(t, 6, room.DurationWeeks)
	assert.Zero(t, room.MaxCapacity, "0 lifts the capacity limit")
}

func TestService_UpdateClassroom(t *testing.T) {
	details := ClassroomDetails{Code: "A", DurationWeeks: 8, MaxCapacity: 3, Status: ClassroomActive}
	with := func(fn func(cd *ClassroomDetails)) ClassroomDetails {
		cd := details
		fn(&cd)
		return cd
	}

	tests := []struct {
		name      string
		id        string
		cd        ClassroomDetails
		wantErr   error
		wantField string
		wantCap   int
	}{
		{name: "unknown classroom", id: "nope", cd: details, wantErr: ErrClassroomNotFound},
		{name: "missing code", id: "r1", cd: with(func(cd *ClassroomDetails) { cd.Code = " " }), wantField: "code"},
		{name: "zero duration", id: "r1", cd: with(func(cd *ClassroomDetails) { cd.DurationWeeks = 0 }), wantField: "duration_weeks"},
		{name: "code taken", id: "r1", cd: with(func(cd *ClassroomDetails) { cd.Code = "B" }), wantField: "code"},
		{name: "below headcount", id: "r1", cd: with(func(cd *ClassroomDetails) { cd.MaxCapacity = 1 }), wantField: "max_capacity"},
		{name: "at headcount", id: "r1", cd: with(func(cd *ClassroomDetails) { cd.MaxCapacity = 2 }), wantCap: 2},
		{name: "unlimited", id: "r1", cd: with(func(cd *ClassroomDetails) { cd.MaxCapacity = 0 }), wantCap: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{classrooms: map[string]Classroom{
				"r1": {ID: "r1", Code: "A", CourseID: courseID, LessonID: lessonID, DurationWeeks: 12, MaxCapacity: 30, Status: ClassroomActive, Headcount: 2},
				"r2": {ID: "r2", Code: "B"},
			}}

			room, err := newTestService(repo).UpdateClassroom(context.Background(), tt.id, tt.cd)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantField != "":
				assert.Equal(t, tt.wantField, invalidField(t, err))
				assert.Equal(t, 30, repo.classrooms["r1"].MaxCapacity)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantCap, room.MaxCapacity)
				assert.Equal(t, 8, room.DurationWeeks)
				assert.Equal(t, 2, room.Headcount)
				assert.Equal(t, lessonID, room.LessonID)
			}
		})
	}
}

func TestService_DeleteClassroom(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "unknown classroom", id: "nope", wantErr: ErrClassroomNotFound},
		{name: "students seated", id: "r1", wantErr: ErrClassroomHasStudents},
		{name: "empty", id: "r2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{classrooms: map[string]Classroom{
				"r1": {ID: "r1", Headcount: 1},
				"r2": {ID: "r2", Status: ClassroomArchived},
			}}
			err := newTestService(repo).DeleteClassroom(context.Background(), tt.id)
			assert.Equal(t, tt.wantErr, err)
			if tt.wantErr == nil {
				assert.NotContains(t, repo.classrooms, tt.id)
			} else {
				assert.Len(t, repo.classrooms, 2)
			}
		})
	}
}
