package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"pagepulse/internal/config"
	"pagepulse/internal/rollups"
)

// AggregateHandler runs the rollup pipeline over the trailing lookback
// window. It sits behind signature verification and is meant to be hit
// by an external cron; the internal scheduler calls the same pipeline.
// Aggregation is at-least-once, so a duplicate trigger only appends
// duplicate rollup rows.
func AggregateHandler(ctx *cartridge.Context) error {
	cfg := config.GetConfig()

	err := rollups.Run(
		ctx.DBManager,
		ctx.Logger,
		time.Now().UTC(),
		cfg.Lookback(),
		cfg.ReferenceTimezone(),
	)
	if err != nil {
		ctx.Logger.Error("Aggregation trigger failed", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Aggregation failed",
		})
	}

	return ctx.JSON(fiber.Map{"success": true})
}
