package testutil

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/user"
	"github.com/trezcool/kujifunza/storage/database"
)

var errMissingDSN = errors.New("missing TEST_DATABASE_URL")

var (
	dbOnce sync.Once
	db     *sql.DB
	dbErr  error
)

// OpenDB returns the shared, migrated test database.
// The test is skipped when TEST_DATABASE_URL is not set.
func OpenDB(tb testing.TB) *sql.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_DATABASE_URL")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}
		if db, dbErr = database.OpenDSN(dsn); dbErr != nil {
			return
		}
		dbErr = database.Migrate(db)
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_DATABASE_URL to run database tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

// PrepareDB returns an empty test database.
func PrepareDB(tb testing.TB) *sql.DB {
	tb.Helper()
	db := OpenDB(tb)
	ResetDB(tb, db)
	return db
}

func ResetDB(tb testing.TB, db core.DBExecutor) {
	tb.Helper()
	if _, err := db.Exec(`TRUNCATE users, courses, lessons CASCADE`); err != nil {
		tb.Fatalf("ResetDB() failed: %v", err)
	}
}

func CreateUser(
	tb testing.TB,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tb.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			tb.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		tb.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func exec(tb testing.TB, db core.DBExecutor, fixture, q string, args ...interface{}) {
	tb.Helper()
	if _, err := db.Exec(q, args...); err != nil {
		tb.Fatalf("%s() failed: %v", fixture, err)
	}
}

func CreateCourse(tb testing.TB, db core.DBExecutor, code, title string) string {
	tb.Helper()
	id := uuid.New().String()
	exec(tb, db, "CreateCourse",
		`INSERT INTO courses (id, code, title, status) VALUES ($1, $2, $3, 'published')`,
		id, code, title)
	return id
}

// Lesson describes a lesson fixture. Status defaults to published.
type Lesson struct {
	Code          string
	Title         string
	Status        string
	CreditValue   int
	Prerequisites string
	CourseIDs     []string
}

func CreateLesson(tb testing.TB, db core.DBExecutor, l Lesson) string {
	tb.Helper()
	if l.Status == "" {
		l.Status = lesson.StatusPublished
	}
	id := uuid.New().String()
	exec(tb, db, "CreateLesson", `
		INSERT INTO lessons (id, code, title, status, credit_value, prerequisites, content_type, content_body)
		VALUES ($1, $2, $3, $4, $5, $6, 'text', 'Read this.')`,
		id, l.Code, l.Title, l.Status, l.CreditValue, null.NewString(l.Prerequisites, l.Prerequisites != ""))
	for _, courseID := range l.CourseIDs {
		AttachLesson(tb, db, courseID, id)
	}
	return id
}

func AttachLesson(tb testing.TB, db core.DBExecutor, courseID, lessonID string) {
	tb.Helper()
	exec(tb, db, "AttachLesson", `INSERT INTO course_lessons (course_id, lesson_id) VALUES ($1, $2)`, courseID, lessonID)
}

func CreateClassroom(tb testing.TB, db core.DBExecutor, code, courseID, lessonID string, capacity int, status ...string) string {
	tb.Helper()
	st := "active"
	if len(status) > 0 {
		st = status[0]
	}
	id := uuid.New().String()
	exec(tb, db, "CreateClassroom", `
		INSERT INTO classrooms (id, code, course_id, lesson_id, max_capacity, status) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, code, courseID, lessonID, capacity, st)
	return id
}

func Enrol(tb testing.TB, db core.DBExecutor, studentID, courseID string) string {
	tb.Helper()
	id := uuid.New().String()
	exec(tb, db, "Enrol",
		`INSERT INTO student_enrolments (id, student_id, course_id) VALUES ($1, $2, $3)`,
		id, studentID, courseID)
	return id
}

func SelectClassroom(tb testing.TB, db core.DBExecutor, studentID, classroomID, lessonID string) {
	tb.Helper()
	exec(tb, db, "SelectClassroom", `
		INSERT INTO classroom_enrolments (id, student_id, classroom_id, lesson_id) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), studentID, classroomID, lessonID)
}

func CompleteLesson(tb testing.TB, db core.DBExecutor, studentID, lessonID string, credits int) {
	tb.Helper()
	exec(tb, db, "CompleteLesson", `
		INSERT INTO lesson_completions (id, student_id, lesson_id, credits_earned) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), studentID, lessonID, credits)
}
