// Package http holds the handlers that live outside the versioned API,
// currently just the health endpoint.
package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"
)

// HealthIndexAction reports process liveness and SQLite reachability.
// A failing database degrades the status but still answers 200, so
// uptime probes can tell degraded from down.
func HealthIndexAction(ctx *cartridge.Context) error {
	dbStatus := "ok"

	if db := ctx.DBManager.GetConnection(); db == nil {
		dbStatus = "error"
		ctx.Logger.Error("Health check found no database connection")
	} else if err := pingDatabase(db); err != nil {
		dbStatus = "error"
		ctx.Logger.Error("Health check database ping failed", slog.Any("error", err))
	}

	status := "ok"
	if dbStatus != "ok" {
		status = "degraded"
	}

	return ctx.JSON(fiber.Map{
		"status":     status,
		"db_status":  dbStatus,
		"checked_at": time.Now().UTC(),
	})
}

func pingDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
