// Package inmemdb keeps users, courses, lessons, prerequisites and progress in memory.
// It backs the HTTP tests that do not need Postgres.
package inmemdb

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kujifunza/core/completion"
	"github.com/trezcool/kujifunza/core/course"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/user"
)

type (
	attachment struct {
		courseID   string
		lessonID   string
		attachedAt time.Time
	}

	classroomSelection struct {
		classroomID   string
		classroomCode string
	}

	completionKey struct {
		studentID string
		lessonID  string
	}
)

// DB is the in-memory store shared by the repositories of this package.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	courses     map[string]*course.Course
	lessons     map[string]*lesson.Lesson
	attachments []attachment
	enrolments  map[string][]string // student -> courses, enrolment order
	selections  map[completionKey]classroomSelection
	completions map[completionKey]lesson.CompletionStatus
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		courses:     make(map[string]*course.Course),
		lessons:     make(map[string]*lesson.Lesson),
		enrolments:  make(map[string][]string),
		selections:  make(map[completionKey]classroomSelection),
		completions: make(map[completionKey]lesson.CompletionStatus),
	}
}

func newID() string {
	return uuid.New().String()
}

// AddCourse stores a course and returns its id.
func (db *DB) AddCourse(title string) string {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	now := time.Now().UTC()
	id := newID()
	db.courses[id] = &course.Course{
		ID:           id,
		Code:         "C-" + id[:8],
		Title:        title,
		Status:       course.StatusPublished,
		TotalCredits: completion.CourseCreditTarget,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return id
}

// AddLesson stores lsn under a new id, attaching it to lsn.CourseIDs in order.
func (db *DB) AddLesson(lsn lesson.Lesson) string {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	now := time.Now().UTC()
	lsn.ID = newID()
	lsn.CreatedAt, lsn.UpdatedAt = now, now
	for i, courseID := range lsn.CourseIDs {
		db.attachments = append(db.attachments, attachment{
			courseID:   courseID,
			lessonID:   lsn.ID,
			attachedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	lsn.CourseIDs = nil
	db.lessons[lsn.ID] = &lsn
	return lsn.ID
}

func (db *DB) Enrol(studentID, courseID string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.enrolments[studentID] = append(db.enrolments[studentID], courseID)
}

func (db *DB) SelectClassroom(studentID, lessonID, classroomCode string) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.selections[completionKey{studentID, lessonID}] = classroomSelection{classroomID: newID(), classroomCode: classroomCode}
}

func (db *DB) CompleteLesson(studentID, lessonID string, credits int, at time.Time) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.completions[completionKey{studentID, lessonID}] = lesson.CompletionStatus{CompletedAt: at.UTC(), CreditsEarned: credits}
}

// courseIDs lists the courses a lesson is attached to, oldest attachment first.
// The caller holds the lock.
func (db *DB) courseIDs(lessonID string) []string {
	ids := make([]string, 0)
	for _, a := range db.attachments {
		if a.lessonID == lessonID {
			ids = append(ids, a.courseID)
		}
	}
	return ids
}

func (db *DB) isEnrolled(studentID, courseID string) bool {
	for _, id := range db.enrolments[studentID] {
		if id == courseID {
			return true
		}
	}
	return false
}

// detach drops the attachments matching drop. The caller holds the lock.
func (db *DB) detach(drop func(a attachment) bool) {
	kept := db.attachments[:0]
	for _, a := range db.attachments {
		if !drop(a) {
			kept = append(kept, a)
		}
	}
	db.attachments = kept
}

func (db *DB) countLessons(courseID string) int {
	var n int
	for _, a := range db.attachments {
		if a.courseID == courseID {
			n++
		}
	}
	return n
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
