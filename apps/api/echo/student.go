package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kujifunza/core/progress"
)

type studentApi struct {
	progressSvc progress.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, progressSvc progress.Service) {
	api := studentApi{progressSvc: progressSvc}

	sg := g.Group("/students/:studentId", jwt)
	sg.GET("/progress-summary", api.progressSummary)
}

func (api *studentApi) progressSummary(ctx echo.Context) error {
	studentID, err := resolveStudentID(ctx, ctx.Param("studentId"))
	if err != nil {
		return err
	}

	summary, err := api.progressSvc.Summary(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "summarising progress")
	}
	return ctx.JSON(http.StatusOK, summary)
}
