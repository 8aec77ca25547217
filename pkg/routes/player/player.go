package player

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/internal/repositories/canonicalplayer"
	"github.com/Ramsey-B/fern/internal/repositories/mergedrecord"
	"github.com/Ramsey-B/fern/internal/repositories/rawrecord"
	"github.com/Ramsey-B/fern/internal/repositories/sourcelink"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Register registers player routes
func Register(g *echo.Group) {
	g.GET("", ListPlayers)
	g.GET("/:id", GetPlayer)
	g.GET("/:id/raw", GetPlayerRawRecords)
}

// ListPlayers lists canonical players
func ListPlayers(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*canonicalplayer.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	players, err := repo.List(ctx)
	if err != nil {
		return err
	}

	team := c.QueryParam("team")
	if team != "" {
		filtered := make([]models.CanonicalPlayer, 0, len(players))
		for _, p := range players {
			if p.TeamKey == team {
				filtered = append(filtered, p)
			}
		}
		players = filtered
	}

	return c.JSON(http.StatusOK, players)
}

// GetPlayer gets one canonical player with its golden record and links
func GetPlayer(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, playerRepo, err := ectoinject.GetContext[*canonicalplayer.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	player, err := playerRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	ctx, mergedRepo, err := ectoinject.GetContext[*mergedrecord.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	merged, err := mergedRepo.Get(ctx, id)
	if err != nil {
		return err
	}

	ctx, linkRepo, err := ectoinject.GetContext[*sourcelink.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	links, err := linkRepo.ListByCanonical(ctx, id)
	if err != nil {
		return err
	}

	detail := models.PlayerDetail{
		Player: *player,
		Merged: merged,
		Links:  links,
	}

	return c.JSON(http.StatusOK, detail)
}

// GetPlayerRawRecords lists the raw snapshots attached to a player, oldest
// first
func GetPlayerRawRecords(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, playerRepo, err := ectoinject.GetContext[*canonicalplayer.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if _, err := playerRepo.Get(ctx, id); err != nil {
		return err
	}

	ctx, rawRepo, err := ectoinject.GetContext[*rawrecord.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	records, err := rawRepo.ListByCanonical(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, records)
}
