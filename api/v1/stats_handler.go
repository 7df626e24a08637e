package v1

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"pagepulse/internal/rollups"
	"pagepulse/internal/sites"
)

// Queryable rollup dimensions.
const (
	dimensionSite      = "site"
	dimensionPages     = "pages"
	dimensionReferrers = "referrers"
	dimensionBrowsers  = "browsers"
	dimensionDevices   = "devices"
	dimensionLocations = "locations"
)

// StatsHandler serves rollup rows for one site and dimension over a time
// range. Rows come straight from the aggregate tables; raw pageviews are
// never queried here.
func StatsHandler(ctx *cartridge.Context) error {
	db := ctx.DBManager.GetConnection()

	site, err := sites.GetSiteByID(db, ctx.Ctx.Params("id"))
	if err != nil {
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Site not found",
		})
	}

	query, err := parseStatsQuery(ctx.Ctx, site.ID)
	if err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	var stats any
	switch ctx.Ctx.Params("dimension") {
	case dimensionSite:
		stats, err = rollups.GetSiteStats(db, query)
	case dimensionPages:
		stats, err = rollups.GetPageStats(db, query)
	case dimensionReferrers:
		stats, err = rollups.GetReferrerStats(db, query)
	case dimensionBrowsers:
		stats, err = rollups.GetBrowserStats(db, query)
	case dimensionDevices:
		stats, err = rollups.GetDeviceTypeStats(db, query)
	case dimensionLocations:
		stats, err = rollups.GetLocationStats(db, query)
	default:
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Unknown dimension",
		})
	}
	if err != nil {
		ctx.Logger.Error("Failed to query rollups")
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to query stats",
		})
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// parseStatsQuery reads from/to as RFC 3339 timestamps, defaulting to
// the trailing 24 hours.
func parseStatsQuery(c *fiber.Ctx, siteID string) (rollups.Query, error) {
	query := rollups.Query{
		SiteID:   siteID,
		From:     time.Now().UTC().Add(-24 * time.Hour),
		To:       time.Now().UTC(),
		Pathname: c.Query("pathname"),
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rollups.Query{}, fiber.NewError(http.StatusBadRequest, "Invalid from timestamp")
		}
		query.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return rollups.Query{}, fiber.NewError(http.StatusBadRequest, "Invalid to timestamp")
		}
		query.To = to
	}
	if !query.To.After(query.From) {
		return rollups.Query{}, fiber.NewError(http.StatusBadRequest, "Empty time range")
	}

	return query, nil
}
