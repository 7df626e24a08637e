package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "pagepulse/api/v1"
	"pagepulse/internal/config"
	"pagepulse/internal/http"
	"pagepulse/internal/http/middleware"
)

// publicCORSConfig returns the standard CORS configuration for public endpoints.
// The tracking snippet posts cross-origin from every registered site, so the
// ingestion endpoint has to accept any origin.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()

	// Helper to conditionally apply rate limiting (only in production)
	// In development/test, rate limiting would interfere with testing
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Rate limiter for public event ingestion API (70 requests per minute per IP)
	// 70/min = ~1.2 req/sec - handles legitimate analytics traffic while preventing abuse
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Public API config (event ingestion)
	// Rate limiting + CORS; CORS runs first so rejections carry CORS headers
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	// Aggregation trigger config, external cron hits this with a signed body.
	// No Sec-Fetch-Site: server-to-server callers never send the header.
	aggregateConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware: []fiber.Handler{
			middleware.SignatureAuth(cfg.SigningKey, logger),
		},
	}

	// Admin API config, bearer key auth for site management and stats reads.
	// No Sec-Fetch-Site: these are curl/script surfaces, not browser forms.
	adminAPIConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware: []fiber.Handler{
			middleware.AdminAPIKeyAuth(db, logger),
		},
	}

	// === ROOT ROUTES ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC API ROUTES ===
	srv.Post("/x/api/v1/events", v1.TrackEventHandler, publicAPIConfig)
	srv.Options("/x/api/v1/events", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	// === AGGREGATION TRIGGER ===
	srv.Post("/x/api/v1/aggregate", v1.AggregateHandler, aggregateConfig)

	// === ADMIN API ROUTES ===
	srv.Post("/x/api/v1/sites", v1.CreateSiteHandler, adminAPIConfig)
	srv.Get("/x/api/v1/sites", v1.ListSitesHandler, adminAPIConfig)
	srv.Post("/x/api/v1/sites/:id", v1.UpdateSiteHandler, adminAPIConfig)
	srv.Get("/x/api/v1/sites/:id/stats/:dimension", v1.StatsHandler, adminAPIConfig)
}
