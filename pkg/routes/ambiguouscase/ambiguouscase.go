package ambiguouscase

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/appcontext"
	"github.com/Ramsey-B/fern/internal/repositories/ambiguouscase"
	"github.com/Ramsey-B/fern/internal/repositories/canonicalplayer"
	"github.com/Ramsey-B/fern/internal/repositories/sourcelink"
	"github.com/Ramsey-B/fern/pkg/models"
)

var validate = validator.New()

// Register registers ambiguous case routes
func Register(g *echo.Group) {
	g.GET("", ListCases)
	g.GET("/export", ExportCases)
	g.GET("/:id", GetCase)
	g.POST("/:id/resolve", ResolveCase)
	g.POST("/:id/dismiss", DismissCase)
}

// ListCases lists ambiguous cases, open ones by default
func ListCases(c echo.Context) error {
	ctx := c.Request().Context()

	status := models.AmbiguousCaseStatus(c.QueryParam("status"))
	if status == "" {
		status = models.AmbiguousCaseStatusOpen
	}

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*ambiguouscase.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cases, err := repo.List(ctx, status, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, cases)
}

// GetCase gets one ambiguous case
func GetCase(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*ambiguouscase.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ResolveCase closes an open case by choosing a canonical player. The choice
// is recorded as a manual override link, so later automatic passes cannot
// undo it. The golden record catches up on the next resolution pass.
func ResolveCase(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req models.ResolveCaseRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := appcontext.GetActor(ctx)
	if actor == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "X-Actor header is required")
	}

	ctx, caseRepo, err := ectoinject.GetContext[*ambiguouscase.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	current, err := caseRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	// guard before the link write: a closed case must not mutate anything
	if err := guardOpen(current); err != nil {
		return err
	}

	ctx, playerRepo, err := ectoinject.GetContext[*canonicalplayer.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	// the chosen player must exist; a manual link to a ghost player would
	// orphan the source record
	if _, err := playerRepo.Get(ctx, req.CanonicalID); err != nil {
		return err
	}

	ctx, linkRepo, err := ectoinject.GetContext[*sourcelink.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := linkRepo.LinkManual(ctx, req.CanonicalID, current.SourceKind, current.SourceID)
	if err != nil {
		return err
	}

	if err := caseRepo.Resolve(ctx, id, req.CanonicalID, actor); err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"case_id":      id,
			"canonical_id": req.CanonicalID,
			"actor":        actor,
		}).Info("Resolved ambiguous case")
	}

	return c.JSON(http.StatusOK, link)
}

// guardOpen rejects operations on a case that is no longer open
func guardOpen(current *models.AmbiguousCase) error {
	if current.Status != models.AmbiguousCaseStatusOpen {
		return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("case %s is already %s", current.ID, current.Status))
	}
	return nil
}

// DismissCase closes an open case without linking
func DismissCase(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	actor := appcontext.GetActor(ctx)
	if actor == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "X-Actor header is required")
	}

	ctx, repo, err := ectoinject.GetContext[*ambiguouscase.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := repo.Dismiss(ctx, id, actor); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ExportCases streams the open review queue as CSV for offline triage
func ExportCases(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*ambiguouscase.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	cases, err := repo.List(ctx, models.AmbiguousCaseStatusOpen, 500)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="open_cases.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response().Writer)
	if err := w.Write([]string{"case_id", "source_kind", "source_id", "created_at", "candidates"}); err != nil {
		return err
	}

	for _, cs := range cases {
		candidates, err := cs.CandidateList()
		if err != nil {
			return err
		}
		parts := make([]string, 0, len(candidates))
		for _, cand := range candidates {
			parts = append(parts, fmt.Sprintf("%s:%.4f", cand.CanonicalID, cand.Score))
		}
		row := []string{
			cs.ID,
			string(cs.SourceKind),
			cs.SourceID,
			cs.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			strings.Join(parts, ";"),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
