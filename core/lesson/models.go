package lesson

import (
	"strings"
	"time"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/prereq"
)

// Lesson statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Lesson struct {
	ID             string    `json:"id"`
	Code           string    `json:"lesson_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Objectives     string    `json:"objectives"`
	ReadingList    string    `json:"reading_list"`
	EffortEstimate int       `json:"effort_estimate"` // hours
	Status         string    `json:"status"`
	CreditValue    int       `json:"credit_value"`
	Prerequisites  string    `json:"prerequisites"` // raw expression, see prereq.Parse
	ContentType    string    `json:"content_type"`
	ContentURL     string    `json:"content_url"`
	ContentBody    string    `json:"content_body"`
	CourseIDs      []string  `json:"course_ids"` // attached courses, oldest attachment first
	DesignerID     string    `json:"designer_id"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// OrderingFields are the fields lessons may be ordered by.
var OrderingFields = []string{"created_at", "code", "title", "credit_value", "status"}

// VisibleToStudents reports whether students may see the lesson at all.
// Archived lessons stay readable; drafts never are.
func (l Lesson) VisibleToStudents() bool {
	return l.Status == StatusPublished || l.Status == StatusArchived
}

func (l Lesson) IsAttached() bool { return len(l.CourseIDs) > 0 }

// CompletionStatus is a student's completion of a lesson.
type CompletionStatus struct {
	CompletedAt   time.Time `json:"completed_at"`
	CreditsEarned int       `json:"credits_earned"`
}

// Content is the payload served to a student once every access check passed.
type Content struct {
	Lesson
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreditsEarned *int       `json:"credits_earned"`
}

func newContent(lsn Lesson, cs *CompletionStatus) Content {
	c := Content{Lesson: lsn}
	if cs != nil {
		c.Completed = true
		c.CompletedAt = &cs.CompletedAt
		c.CreditsEarned = &cs.CreditsEarned
	}
	return c
}

// PrerequisiteCheck is a standalone prerequisite evaluation of a lesson.
type PrerequisiteCheck struct {
	prereq.Result
	LessonTitle string `json:"lesson_title"`
}

// Details is the authored part of a lesson, replaced as a whole on update.
// Prerequisites are lesson ids or codes.
type Details struct {
	Code           string   `json:"lesson_id" validate:"required,max=50"`
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description"`
	Objectives     string   `json:"objectives"`
	ReadingList    string   `json:"reading_list"`
	EffortEstimate int      `json:"effort_estimate" validate:"gte=0"`
	Status         string   `json:"status" validate:"omitempty,oneof=draft published archived"`
	CreditValue    int      `json:"credit_value" validate:"gte=0"`
	Prerequisites  []string `json:"prerequisites" validate:"omitempty,max=50,dive,required,max=100"`
	ContentType    string   `json:"content_type" validate:"required,max=50"`
	ContentURL     string   `json:"content_url" validate:"omitempty,url"`
	ContentBody    string   `json:"content_body"`
}

func (d *Details) Clean() {
	d.Code = core.CleanString(d.Code)
	d.Title = core.CleanString(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Objectives = strings.TrimSpace(d.Objectives)
	d.ReadingList = strings.TrimSpace(d.ReadingList)
	d.Status = core.CleanString(d.Status, true /* lower */)
	if d.Status == "" {
		d.Status = StatusDraft
	}
	for i, ref := range d.Prerequisites {
		d.Prerequisites[i] = core.CleanString(ref)
	}
	d.ContentType = core.CleanString(d.ContentType, true /* lower */)
	d.ContentURL = core.CleanString(d.ContentURL)
}

// refersTo reports whether the prerequisites name the lesson itself.
func (d Details) refersTo(lsn Lesson) bool {
	for _, ref := range d.Prerequisites {
		if ref == d.Code || (lsn.ID != "" && ref == lsn.ID) {
			return true
		}
	}
	return false
}

// apply copies the details onto lsn, storing the prerequisites as a JSON array.
func (d Details) apply(lsn Lesson) Lesson {
	lsn.Code = d.Code
	lsn.Title = d.Title
	lsn.Description = d.Description
	lsn.Objectives = d.Objectives
	lsn.ReadingList = d.ReadingList
	lsn.EffortEstimate = d.EffortEstimate
	lsn.Status = d.Status
	lsn.CreditValue = d.CreditValue
	lsn.Prerequisites = prereq.Format(d.Prerequisites)
	lsn.ContentType = d.ContentType
	lsn.ContentURL = d.ContentURL
	lsn.ContentBody = d.ContentBody
	return lsn
}

// NewLesson contains information needed to create a lesson, optionally attached to a course.
type NewLesson struct {
	Details
	CourseID string `json:"course_id" validate:"omitempty,uuid"`
}

func (nl *NewLesson) Clean() {
	nl.Details.Clean()
	nl.CourseID = core.CleanString(nl.CourseID, true /* lower */)
}

// QueryFilter narrows a lesson listing; CourseID wins over Unassigned.
type QueryFilter struct {
	CourseID   string `query:"course_id"`
	Unassigned bool   `query:"unassigned"`
	Status     string `query:"status"`
	Search     string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.CourseID = core.CleanString(qf.CourseID, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
	if qf.CourseID != "" {
		qf.Unassigned = false
	}
}
