package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core/enrolment"
)

type enrolmentApi struct {
	svc enrolment.Service
}

func registerEnrolmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc enrolment.Service) {
	api := enrolmentApi{svc: svc}

	g.POST("/enrolments", api.enrol, jwt)
	g.POST("/classrooms/student", api.selectClassroom, jwt)

	cg := g.Group("/classrooms/:id", jwt)
	cg.GET("", api.retrieveClassroom)
	cg.PUT("", api.updateClassroom, staffMiddleware())
	cg.DELETE("", api.destroyClassroom, staffMiddleware())
}

func (api *enrolmentApi) enrol(ctx echo.Context) error {
	var data enrolment.NewEnrolment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrolment")
	}
	studentID, err := resolveStudentID(ctx, data.StudentID)
	if err != nil {
		return err
	}
	data.StudentID = studentID

	enr, err := api.svc.Enrol(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrolmentApi) selectClassroom(ctx echo.Context) error {
	var data enrolment.NewClassroomSelection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroomSelection")
	}
	studentID, err := resolveStudentID(ctx, data.StudentID)
	if err != nil {
		return err
	}
	data.StudentID = studentID

	ce, err := api.svc.SelectClassroom(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "selecting classroom")
	}
	return ctx.JSON(http.StatusCreated, ce)
}

func (api *enrolmentApi) retrieveClassroom(ctx echo.Context) error {
	room, err := api.svc.GetClassroom(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting classroom")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *enrolmentApi) updateClassroom(ctx echo.Context) error {
	var data enrolment.ClassroomDetails
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassroomDetails")
	}

	room, err := api.svc.UpdateClassroom(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *enrolmentApi) destroyClassroom(ctx echo.Context) error {
	if err := api.svc.DeleteClassroom(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}
