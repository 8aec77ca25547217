package resolution

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/appcontext"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

// Register registers resolution routes
func Register(g *echo.Group) {
	g.POST("/passes", RunPass)
}

// RunPass triggers a resolution pass over the latest snapshots and returns
// its report. Passes also run automatically when a snapshot batch completes;
// this endpoint exists for operators, typically after resolving cases or
// updating the team vocabulary.
func RunPass(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	report, err := svc.ResolvePass(ctx)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"pass_id": report.PassID,
			"actor":   appcontext.GetActor(ctx),
		}).Info("Manual resolution pass triggered")
	}

	return c.JSON(http.StatusOK, report)
}
