package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core/completion"
	"github.com/trezcool/kujifunza/core/enrolment"
	"github.com/trezcool/kujifunza/core/lesson"
)

type lessonApi struct {
	svc      lesson.Service
	complSvc completion.Service
	enrolSvc enrolment.Service
}

func registerLessonAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc lesson.Service,
	complSvc completion.Service,
	enrolSvc enrolment.Service,
) {
	api := lessonApi{svc: svc, complSvc: complSvc, enrolSvc: enrolSvc}

	// staff authoring endpoints
	g.GET("/lessons", api.query, jwt, staffMiddleware())
	g.POST("/lessons", api.create, jwt, staffMiddleware())

	lg := g.Group("/lessons/:id", jwt)
	lg.GET("", api.retrieve, staffMiddleware())
	lg.PUT("", api.update, staffMiddleware())
	lg.DELETE("", api.destroy, staffMiddleware())
	lg.GET("/student", api.retrieveForStudent)
	lg.GET("/prerequisites/:studentId", api.checkPrerequisites)
	lg.GET("/completion/:studentId", api.checkCompletion)
	lg.POST("/complete", api.complete)
	lg.GET("/classrooms", api.queryClassrooms)

	// staff endpoints
	lg.POST("/classrooms", api.createClassroom, staffMiddleware())
	lg.PUT("/attach", api.attach, staffMiddleware())
	lg.PUT("/detach", api.detach, staffMiddleware())
}

// Handlers

func (api *lessonApi) query(ctx echo.Context) error {
	var filter lesson.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []lesson.Lesson{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	lessons, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) create(ctx echo.Context) error {
	var data lesson.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	lsn, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *lessonApi) retrieve(ctx echo.Context) error {
	lsn, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) update(ctx echo.Context) error {
	var data lesson.Details
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to lesson.Details")
	}

	lsn, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) retrieveForStudent(ctx echo.Context) error {
	studentID, err := resolveStudentID(ctx, ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}

	content, err := api.svc.GetForStudent(ctx.Request().Context(), ctx.Param("id"), studentID)
	if err != nil {
		return errors.Wrap(err, "getting lesson for student")
	}
	return ctx.JSON(http.StatusOK, content)
}

func (api *lessonApi) checkPrerequisites(ctx echo.Context) error {
	studentID, err := resolveStudentID(ctx, ctx.Param("studentId"))
	if err != nil {
		return err
	}

	check, err := api.svc.CheckPrerequisites(ctx.Request().Context(), ctx.Param("id"), studentID)
	if err != nil {
		return errors.Wrap(err, "checking prerequisites")
	}
	return ctx.JSON(http.StatusOK, check)
}

func (api *lessonApi) checkCompletion(ctx echo.Context) error {
	studentID, err := resolveStudentID(ctx, ctx.Param("studentId"))
	if err != nil {
		return err
	}

	status, err := api.complSvc.Check(ctx.Request().Context(), ctx.Param("id"), studentID)
	if err != nil {
		return errors.Wrap(err, "checking completion")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *lessonApi) complete(ctx echo.Context) error {
	var data CompleteLessonRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteLessonRequest")
	}
	studentID, err := resolveStudentID(ctx, data.StudentID)
	if err != nil {
		return err
	}

	res, err := api.complSvc.MarkComplete(ctx.Request().Context(), ctx.Param("id"), studentID)
	if err != nil {
		return errors.Wrap(err, "marking lesson complete")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *lessonApi) queryClassrooms(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	rooms, err := api.enrolSvc.ListClassrooms(ctx.Request().Context(), ctx.Param("id"), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing classrooms")
	}
	if rooms == nil {
		rooms = []enrolment.Classroom{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *lessonApi) createClassroom(ctx echo.Context) error {
	var data enrolment.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	data.LessonID = ctx.Param("id")

	room, err := api.enrolSvc.CreateClassroom(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *lessonApi) attach(ctx echo.Context) error {
	var data AttachLessonRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttachLessonRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	lsn, err := api.svc.Attach(ctx.Request().Context(), ctx.Param("id"), data.CourseID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "attaching lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) detach(ctx echo.Context) error {
	var data AttachLessonRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttachLessonRequest")
	}

	lsn, err := api.svc.Detach(ctx.Request().Context(), ctx.Param("id"), data.CourseID)
	if err != nil {
		return errors.Wrap(err, "detaching lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

type (
	CompleteLessonRequest struct {
		StudentID string `json:"student_id"`
	}

	AttachLessonRequest struct {
		CourseID string `json:"course_id"`
	}
)
