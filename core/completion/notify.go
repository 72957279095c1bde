package completion

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/user"
)

func (svc *service) publish(ctx context.Context, events ...core.Event) {
	if svc.events == nil {
		return
	}
	if err := svc.events.Publish(ctx, events...); err != nil {
		svc.logger.Error("publishing events", errors.Wrap(err, "publish"), map[string]interface{}{"events": events})
	}
}

// courseCompleted broadcasts the course completion and congratulates the student by email.
// Both are best effort.
func (svc *service) courseCompleted(ctx context.Context, studentID, courseID string, credits int) {
	svc.publish(ctx, core.NewEvent(core.EventCourseCompleted, map[string]interface{}{
		"student_id": studentID,
		"course_id":  courseID,
		"credits":    credits,
	}))

	if svc.mailSvc == nil || svc.users == nil {
		return
	}
	usr, err := svc.users.GetUser(ctx, user.GetFilter{ID: studentID})
	if err != nil {
		svc.logger.Error("sending course completed email", errors.Wrap(err, "getting student"))
		return
	}
	if usr.Email == "" {
		return
	}
	title, err := svc.repo.GetCourseTitle(ctx, courseID)
	if err != nil {
		svc.logger.Error("sending course completed email", errors.Wrap(err, "getting course title"), usr)
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Congratulations, you completed " + title,
		TemplateName: "course_completed",
		TemplateData: map[string]interface{}{
			"StudentName": usr.Name,
			"CourseTitle": title,
			"Credits":     credits,
		},
	})
}
