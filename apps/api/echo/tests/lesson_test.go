package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/progress"
	"github.com/trezcool/kujifunza/core/user"
	testutil "github.com/trezcool/kujifunza/tests"
)

func Test_lessonApi_retrieveForStudent(t *testing.T) {
	app := setupInmem(t)
	db := app.db

	stu := testutil.CreateUser(t, app.usrRepo, "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, app.usrRepo, "John", "john", "john@test.cd", "", []string{user.RoleStudent}, true)
	instructor := testutil.CreateUser(t, app.usrRepo, "Teach", "teach", "teach@test.cd", "", []string{user.RoleInstructor}, true)
	stuToken := getToken(t, app.conf, stu)

	maths := db.AddCourse("Mathematics")
	db.AddCourse("Biology")
	algebra := db.AddLesson(lesson.Lesson{Code: "MATH-101", Title: "Algebra", Status: lesson.StatusPublished, CreditValue: 5, CourseIDs: []string{maths}})
	calculus := db.AddLesson(lesson.Lesson{
		Code: "MATH-201", Title: "Calculus", Status: lesson.StatusPublished, CreditValue: 5,
		Prerequisites: `["MATH-101"]`, CourseIDs: []string{maths},
	})
	draft := db.AddLesson(lesson.Lesson{Code: "MATH-999", Title: "Draft", Status: lesson.StatusDraft, CourseIDs: []string{maths}})
	orphan := db.AddLesson(lesson.Lesson{Code: "ORPH-1", Title: "Orphan", Status: lesson.StatusPublished})
	db.Enrol(stu.ID, maths)
	db.SelectClassroom(stu.ID, calculus, "CAL-A")

	path := func(id string) string { return "/v1/lessons/" + id + "/student" }
	notFound := marshalObj(t, httpErr{Error: lesson.ErrNotFound.Error()})

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: path(algebra), wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "unknown lesson", path: path("nope"), token: stuToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "draft", path: path(draft), token: stuToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "not attached", path: path(orphan), token: stuToken, wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: lesson.ErrNotEnrolled.Error()}),
		},
		{
			name: "not enrolled", path: path(algebra), token: getToken(t, app.conf, other), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: lesson.ErrNotEnrolled.Error()}),
		},
		{
			name: "classroom required", path: path(algebra), token: stuToken, wantCode: http.StatusForbidden,
			wantData: []byte(`{
				"error": "must select a classroom before accessing lesson materials",
				"requires_classroom_selection": true,
				"lesson_title": "Algebra"
			}`),
		},
		{
			name: "student acting for someone else", path: path(algebra) + "?student_id=" + other.ID, token: stuToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "staff acting for a student", path: path(algebra) + "?student_id=" + stu.ID, token: getToken(t, app.conf, instructor),
			wantCode: http.StatusForbidden, // reaches the classroom check as the student
			wantData: []byte(`{
				"error": "must select a classroom before accessing lesson materials",
				"requires_classroom_selection": true,
				"lesson_title": "Algebra"
			}`),
		},
	})

	t.Run("prerequisites not met", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path(calculus), stuToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)

		var body map[string]interface{}
		decode(t, rec, &body)
		assert.Equal(t, true, body["prerequisites_not_met"])
		assert.Equal(t, "Calculus", body["lesson_title"])
		unmet := body["unmet_prerequisites"].([]interface{})
		require.Len(t, unmet, 1)
		assert.Equal(t, "MATH-101", unmet[0].(map[string]interface{})["lesson_id"])
		assert.Len(t, body["all_prerequisites"], 1)
	})

	t.Run("granted once prerequisites are met", func(t *testing.T) {
		db.CompleteLesson(stu.ID, algebra, 5, time.Now())

		req, rec := newAuthRequest(http.MethodGet, path(calculus), stuToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var content lesson.Content
		decode(t, rec, &content)
		assert.Equal(t, calculus, content.ID)
		assert.Equal(t, "Calculus", content.Title)
		assert.False(t, content.Completed)
		assert.Nil(t, content.CompletedAt)
	})
}

func Test_lessonApi_checkPrerequisites(t *testing.T) {
	app := setupInmem(t)
	db := app.db

	stu := testutil.CreateUser(t, app.usrRepo, "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	stuToken := getToken(t, app.conf, stu)

	a := db.AddLesson(lesson.Lesson{Code: "A-1", Title: "Alpha", Status: lesson.StatusPublished})
	db.AddLesson(lesson.Lesson{Code: "B-1", Title: "Beta", Status: lesson.StatusPublished})
	target := db.AddLesson(lesson.Lesson{Code: "T-1", Title: "Target", Status: lesson.StatusPublished, Prerequisites: "B-1; " + a + ", ghost"})
	free := db.AddLesson(lesson.Lesson{Code: "F-1", Title: "Free", Status: lesson.StatusPublished})
	draft := db.AddLesson(lesson.Lesson{Code: "D-1", Title: "Draft", Status: lesson.StatusDraft, Prerequisites: "A-1"})
	db.CompleteLesson(stu.ID, a, 3, time.Now())

	path := func(id, studentID string) string { return "/v1/lessons/" + id + "/prerequisites/" + studentID }

	runHTTPTests(t, app, []httpTest{
		{
			name: "no prerequisites", path: path(free, stu.ID), token: stuToken,
			wantData: []byte(`{"all_prerequisites": [], "unmet_prerequisites": [], "access_allowed": true, "lesson_title": "Free"}`),
		},
		{name: "unknown lesson", path: path("nope", stu.ID), token: stuToken, wantCode: http.StatusNotFound},
		{name: "draft", path: path(draft, stu.ID), token: stuToken, wantCode: http.StatusNotFound},
		{name: "someone else", path: path(free, admin.ID), token: stuToken, wantCode: http.StatusForbidden},
	})

	for name, token := range map[string]string{"student": stuToken, "admin": getToken(t, app.conf, admin)} {
		t.Run("legacy expression as "+name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path(target, stu.ID), token)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var check lesson.PrerequisiteCheck
			decode(t, rec, &check)
			assert.False(t, check.AccessAllowed)
			assert.Equal(t, "Target", check.LessonTitle)
			require.Len(t, check.AllPrerequisites, 2)
			assert.Equal(t, "Alpha", check.AllPrerequisites[0].Title)
			assert.True(t, check.AllPrerequisites[0].Completed)
			require.Len(t, check.UnmetPrerequisites, 1)
			assert.Equal(t, "B-1", check.UnmetPrerequisites[0].Code)
		})
	}
}

func Test_studentApi_progressSummary(t *testing.T) {
	app := setupInmem(t)
	db := app.db

	stu := testutil.CreateUser(t, app.usrRepo, "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, app.usrRepo, "John", "john", "john@test.cd", "", []string{user.RoleStudent}, true)
	stuToken := getToken(t, app.conf, stu)

	zoology := db.AddCourse("Zoology")
	art := db.AddCourse("Art")
	sketch := db.AddLesson(lesson.Lesson{Code: "ART-2", Title: "sketching", Status: lesson.StatusPublished, CourseIDs: []string{art}})
	paint := db.AddLesson(lesson.Lesson{Code: "ART-1", Title: "Painting", Status: lesson.StatusPublished, CourseIDs: []string{art}})
	db.Enrol(stu.ID, zoology)
	db.Enrol(stu.ID, art)
	db.SelectClassroom(stu.ID, paint, "P-1")
	db.CompleteLesson(stu.ID, sketch, 2, time.Now())

	path := func(id string) string { return "/v1/students/" + id + "/progress-summary" }

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: path(stu.ID), wantCode: http.StatusUnauthorized},
		{name: "someone else", path: path(other.ID), token: stuToken, wantCode: http.StatusForbidden},
		{name: "not enrolled anywhere", path: path(other.ID), token: getToken(t, app.conf, other), wantData: []byte(`[]`)},
	})

	req, rec := newAuthRequest(http.MethodGet, path(stu.ID), stuToken)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary []progress.CourseSummary
	decode(t, rec, &summary)
	require.Len(t, summary, 1, "courses without lessons are left out")
	assert.Equal(t, "Art", summary[0].CourseTitle)

	// byte-wise: upper case sorts first
	lessons := summary[0].Lessons
	require.Len(t, lessons, 2)
	assert.Equal(t, "Painting", lessons[0].LessonTitle)
	assert.Equal(t, progress.StatusIncomplete, lessons[0].Status)
	require.NotNil(t, lessons[0].Classroom)
	assert.Equal(t, "P-1", lessons[0].Classroom.Code)
	assert.Equal(t, "sketching", lessons[1].LessonTitle)
	assert.Equal(t, progress.StatusComplete, lessons[1].Status)
	assert.Nil(t, lessons[1].Classroom)
}

func Test_health(t *testing.T) {
	app := setupInmem(t)
	runHTTPTests(t, app, []httpTest{
		{name: "ok", path: "/v1/health", wantData: []byte(`{"status": "ok"}`)},
		{name: "trailing slash", path: "/v1/health/", wantData: []byte(`{"status": "ok"}`)},
	})
}

func Test_lessonApi_authoring(t *testing.T) {
	app := setupInmem(t)
	db := app.db

	stu := testutil.CreateUser(t, app.usrRepo, "Jane", "jane", "jane@test.cd", "", []string{user.RoleStudent}, true)
	instructor := testutil.CreateUser(t, app.usrRepo, "Teach", "teach", "teach@test.cd", "", []string{user.RoleInstructor}, true)
	stuToken := getToken(t, app.conf, stu)
	staffToken := getToken(t, app.conf, instructor)

	maths := db.AddCourse("Mathematics")
	algebra := db.AddLesson(lesson.Lesson{Code: "MATH-101", Title: "Algebra", Status: lesson.StatusPublished, CreditValue: 5, CourseIDs: []string{maths}})

	rec := do(t, app, http.MethodPost, "/v1/lessons", staffToken, []byte(`{
		"lesson_id": "MATH-201",
		"title": "Calculus",
		"content_type": "Text",
		"credit_value": 5,
		"status": "published",
		"prerequisites": [" MATH-101 "],
		"course_id": "`+maths+`"
	}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var calculus lesson.Lesson
	decode(t, rec, &calculus)
	assert.Equal(t, "MATH-201", calculus.Code)
	assert.Equal(t, "text", calculus.ContentType)
	assert.Equal(t, 5, calculus.CreditValue)
	assert.Equal(t, `["MATH-101"]`, calculus.Prerequisites)
	assert.Equal(t, []string{maths}, calculus.CourseIDs)
	assert.Equal(t, instructor.ID, calculus.DesignerID)

	path := func(id string) string { return "/v1/lessons/" + id }
	forbidden := marshalObj(t, httpErr{Error: "permission denied"})
	notFound := marshalObj(t, httpErr{Error: lesson.ErrNotFound.Error()})

	runHTTPTests(t, app, []httpTest{
		{name: "list auth required", path: "/v1/lessons", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "student lists", path: "/v1/lessons", token: stuToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "student creates", method: http.MethodPost, path: "/v1/lessons", token: stuToken,
			body: []byte(`{"lesson_id": "X-1", "title": "X", "content_type": "text"}`), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{name: "student retrieves", path: path(calculus.ID), token: stuToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "unknown lesson", path: path("nope"), token: staffToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "duplicate code", method: http.MethodPost, path: "/v1/lessons", token: staffToken,
			body:     []byte(`{"lesson_id": "MATH-101", "title": "Algebra again", "content_type": "text"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"lesson_id": "a lesson with this code already exists"}`),
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/lessons", token: staffToken,
			body:     []byte(`{"lesson_id": "X-1", "title": "X", "content_type": "text", "course_id": "a8c1f9a6-4f7d-4c56-9a38-e1d27fbd0d0e"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"course_id": "course not found"}`),
		},
		{
			name: "own prerequisite", method: http.MethodPost, path: "/v1/lessons", token: staffToken,
			body:     []byte(`{"lesson_id": "X-1", "title": "X", "content_type": "text", "prerequisites": ["MATH-101", "X-1"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"prerequisites": "a lesson cannot be its own prerequisite"}`),
		},
		{
			name: "update unknown", method: http.MethodPut, path: path("nope"), token: staffToken,
			body: []byte(`{"lesson_id": "X-1", "title": "X", "content_type": "text"}`), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "update to its own id", method: http.MethodPut, path: path(calculus.ID), token: staffToken,
			body:     []byte(`{"lesson_id": "MATH-201", "title": "Calculus", "content_type": "text", "prerequisites": ["` + calculus.ID + `"]}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"prerequisites": "a lesson cannot be its own prerequisite"}`),
		},
		{name: "student deletes", method: http.MethodDelete, path: path(calculus.ID), token: stuToken, wantCode: http.StatusForbidden, wantData: forbidden},
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want []string
		}{
			{name: "empty", body: `{}`, want: []string{"lesson_id", "title", "content_type"}},
			{
				name: "negative credit value",
				body: `{"lesson_id": "X-1", "title": "X", "content_type": "text", "credit_value": -1}`,
				want: []string{"credit_value"},
			},
			{
				name: "blank prerequisite",
				body: `{"lesson_id": "X-1", "title": "X", "content_type": "text", "prerequisites": ["MATH-101", "  "]}`,
				want: []string{"prerequisites[1]"},
			},
			{
				name: "bad status and course",
				body: `{"lesson_id": "X-1", "title": "X", "content_type": "text", "status": "live", "course_id": "maths"}`,
				want: []string{"status", "course_id"},
			},
			{
				name: "bad effort and url",
				body: `{"lesson_id": "X-1", "title": "X", "content_type": "video", "effort_estimate": -2, "content_url": "not a url"}`,
				want: []string{"effort_estimate", "content_url"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				flds := fieldErrors(t, do(t, app, http.MethodPost, "/v1/lessons", staffToken, []byte(tt.body)))
				for _, fld := range tt.want {
					assert.Contains(t, flds, fld)
				}
				assert.Len(t, flds, len(tt.want))
			})
		}
	})

	t.Run("query", func(t *testing.T) {
		orphan := db.AddLesson(lesson.Lesson{Code: "ORPH-1", Title: "Orphan", Status: lesson.StatusDraft})

		tests := []struct {
			name    string
			query   string
			want    []string
			ordered bool
		}{
			{name: "all", want: []string{algebra, calculus.ID, orphan}},
			{name: "by course", query: "?course_id=" + maths, want: []string{algebra, calculus.ID}},
			{name: "unassigned", query: "?unassigned=true", want: []string{orphan}},
			{name: "drafts", query: "?status=draft", want: []string{orphan}},
			{name: "search", query: "?search=calc", want: []string{calculus.ID}},
			{name: "by code desc", query: "?course_id=" + maths + "&ordering=-code", want: []string{calculus.ID, algebra}, ordered: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, app, http.MethodGet, "/v1/lessons"+tt.query, staffToken, nil)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				var lessons []lesson.Lesson
				decode(t, rec, &lessons)
				ids := make([]string, 0, len(lessons))
				for _, l := range lessons {
					ids = append(ids, l.ID)
				}
				if tt.ordered {
					assert.Equal(t, tt.want, ids)
				} else {
					assert.ElementsMatch(t, tt.want, ids)
				}
			})
		}
	})

	t.Run("update replaces the details", func(t *testing.T) {
		rec := do(t, app, http.MethodPut, path(calculus.ID), staffToken, []byte(`{
			"lesson_id": "MATH-202",
			"title": "Calculus II",
			"content_type": "text",
			"credit_value": 8
		}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got lesson.Lesson
		decode(t, rec, &got)
		assert.Equal(t, "MATH-202", got.Code)
		assert.Equal(t, 8, got.CreditValue)
		assert.Equal(t, lesson.StatusDraft, got.Status)
		assert.Empty(t, got.Prerequisites)
		assert.Equal(t, []string{maths}, got.CourseIDs)
		assert.Equal(t, instructor.ID, got.DesignerID)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(t, app, http.MethodDelete, path(calculus.ID), staffToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = do(t, app, http.MethodGet, path(calculus.ID), staffToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		rec = do(t, app, http.MethodDelete, path(calculus.ID), staffToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}
