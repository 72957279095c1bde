package course

import (
	"strings"
	"time"

	"github.com/trezcool/kujifunza/core"
)

// Course statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Course struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	TotalCredits int       `json:"total_credits"`
	TotalLessons int       `json:"total_lessons"` // attached lessons
	DirectorID   string    `json:"director_id"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// OrderingFields are the fields courses may be ordered by.
var OrderingFields = []string{"created_at", "code", "title", "status", "total_lessons"}

// Details is the authored part of a course, replaced as a whole on update.
type Details struct {
	Code        string `json:"code" validate:"required,max=50"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=draft published archived"`
	DirectorID  string `json:"director_id" validate:"omitempty,uuid"`
}

func (d *Details) Clean() {
	d.Code = core.CleanString(d.Code)
	d.Title = core.CleanString(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Status = core.CleanString(d.Status, true /* lower */)
	if d.Status == "" {
		d.Status = StatusDraft
	}
	d.DirectorID = core.CleanString(d.DirectorID, true /* lower */)
}

func (d Details) apply(crs Course) Course {
	crs.Code = d.Code
	crs.Title = d.Title
	crs.Description = d.Description
	crs.Status = d.Status
	crs.DirectorID = d.DirectorID
	return crs
}

type QueryFilter struct {
	Status string `query:"status"`
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}
