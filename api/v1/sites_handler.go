package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"pagepulse/internal/sites"
)

// CreateSiteParams is the payload for registering a new tracked site.
type CreateSiteParams struct {
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
}

// UpdateSiteParams carries the mutable site fields.
type UpdateSiteParams struct {
	Name string `json:"name"`
}

// CreateSiteHandler registers a hostname for tracking. Events for
// unregistered hostnames are rejected at ingestion, so registration has
// to happen before the snippet goes live.
func CreateSiteHandler(ctx *cartridge.Context) error {
	var params CreateSiteParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   errInvalidRequest,
		})
	}

	if strings.TrimSpace(params.Hostname) == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Hostname is required",
		})
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = strings.TrimSpace(params.Hostname)
	}

	site := sites.Site{
		Name:     name,
		Hostname: params.Hostname,
	}

	err := sqlite.PerformWrite(ctx.Logger, ctx.DBManager.GetConnection(), func(tx *gorm.DB) error {
		return sites.CreateSite(tx, &site)
	})
	if err != nil {
		if errors.Is(err, sites.ErrSiteAlreadyExists) {
			return ctx.Status(http.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   "Hostname is already registered",
			})
		}
		ctx.Logger.Error("Failed to create site", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to create site",
		})
	}

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    site,
	})
}

// ListSitesHandler returns every registered site with its pageview count
// over the trailing 30 days.
func ListSitesHandler(ctx *cartridge.Context) error {
	result, err := sites.GetSitesWithStats(ctx.DBManager.GetConnection(), 30)
	if err != nil {
		ctx.Logger.Error("Failed to list sites", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to list sites",
		})
	}

	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// UpdateSiteHandler renames a site. The hostname is immutable because
// historical pageviews are attributed through it.
func UpdateSiteHandler(ctx *cartridge.Context) error {
	var params UpdateSiteParams
	if err := ctx.Ctx.BodyParser(&params); err != nil {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   errInvalidRequest,
		})
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Name is required",
		})
	}

	id := ctx.Ctx.Params("id")
	err := sqlite.PerformWrite(ctx.Logger, ctx.DBManager.GetConnection(), func(tx *gorm.DB) error {
		return sites.UpdateSiteName(tx, id, name)
	})
	if err != nil {
		var siteNotFoundErr *sites.SiteNotFoundError
		if errors.As(err, &siteNotFoundErr) {
			return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Site not found",
			})
		}
		ctx.Logger.Error("Failed to update site", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to update site",
		})
	}

	return ctx.JSON(fiber.Map{"success": true})
}
