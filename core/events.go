package core

import (
	"context"
	"time"
)

// Event names
const (
	EventLessonCompleted = "lesson.completed"
	EventCourseCompleted = "course.completed"
)

// Event is a fact other systems may react to, e.g. a dashboard refreshing a student's progress.
type Event struct {
	Name       string                 `json:"name"`
	OccurredAt time.Time              `json:"occurred_at"` // UTC
	Data       map[string]interface{} `json:"data"`
}

func NewEvent(name string, data map[string]interface{}) Event {
	return Event{Name: name, OccurredAt: time.Now().UTC(), Data: data}
}

// EventPublisher is any service that can broadcast events.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}
