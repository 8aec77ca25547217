package sourcelink

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/appcontext"
	"github.com/Ramsey-B/fern/internal/repositories/canonicalplayer"
	"github.com/Ramsey-B/fern/internal/repositories/sourcelink"
	"github.com/Ramsey-B/fern/pkg/models"
)

var validate = validator.New()

// Register registers source link routes
func Register(g *echo.Group) {
	g.PUT("/manual", CreateManualLink)
	g.GET("/:sourceKind/:sourceId", GetLink)
}

// CreateManualLink establishes a manual override link between a source
// record and a canonical player. Manual links take precedence over any
// automatic decision and are never replaced by one.
func CreateManualLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.ManualLinkRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, playerRepo, err := ectoinject.GetContext[*canonicalplayer.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	// the target must exist; a manual link to a ghost player would orphan
	// the source record
	if _, err := playerRepo.Get(ctx, req.CanonicalID); err != nil {
		return err
	}

	ctx, linkRepo, err := ectoinject.GetContext[*sourcelink.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := linkRepo.LinkManual(ctx, req.CanonicalID, req.SourceKind, req.SourceID)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"canonical_id": link.CanonicalID,
			"source_kind":  link.SourceKind,
			"source_id":    link.SourceID,
			"actor":        appcontext.GetActor(ctx),
		}).Info("Created manual link")
	}

	return c.JSON(http.StatusOK, link)
}

// GetLink looks up the link for one source record
func GetLink(c echo.Context) error {
	ctx := c.Request().Context()

	sourceKind := models.SourceKind(c.Param("sourceKind"))
	sourceID := c.Param("sourceId")

	ctx, linkRepo, err := ectoinject.GetContext[*sourcelink.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := linkRepo.FindLink(ctx, sourceKind, sourceID)
	if err != nil {
		return err
	}
	if link == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no link for source record")
	}

	return c.JSON(http.StatusOK, link)
}
