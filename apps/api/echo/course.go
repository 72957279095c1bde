package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core/course"
	"github.com/trezcool/kujifunza/core/lesson"
)

type courseApi struct {
	svc       course.Service
	lessonSvc lesson.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc course.Service, lessonSvc lesson.Service) {
	api := courseApi{svc: svc, lessonSvc: lessonSvc}

	g.GET("/courses", api.query, jwt)
	g.POST("/courses", api.create, jwt, staffMiddleware())

	cg := g.Group("/courses/:id", jwt)
	cg.GET("", api.retrieve)
	cg.PUT("", api.update, staffMiddleware())
	cg.DELETE("", api.destroy, adminMiddleware())
	cg.GET("/lessons", api.queryLessons, staffMiddleware())
}

// Handlers

// query lists the courses; students only ever see published ones.
func (api *courseApi) query(ctx echo.Context) error {
	var filter course.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsStaff() {
		filter.Status = course.StatusPublished
	}

	courses, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.Details
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to course.Details")
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if crs.Status != course.StatusPublished && !claims.IsStaff() {
		return course.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.Details
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to course.Details")
	}

	crs, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) queryLessons(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	lessons, err := api.lessonSvc.Query(ctx.Request().Context(), lesson.QueryFilter{CourseID: crs.ID}, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying course lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}
