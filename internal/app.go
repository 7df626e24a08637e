// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"pagepulse/internal/config"
	"pagepulse/internal/database"
	"pagepulse/internal/jobs"
	"pagepulse/internal/pkg/geoip"
)

// Application wraps cartridge.Application with pagepulse-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
}

// ServerConfig returns the server configuration shared by the binary and
// the test app. The Sec-Fetch-Site allowlist must include cross-site:
// the tracking snippet posts from every registered origin, and browsers
// label those requests cross-site.
func ServerConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}
	return cfg
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	geoip.InitLogger(logger)

	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      ServerConfig(),
		RouteMountFunc:    MountAppRoutes,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
	}, nil
}
