package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"pagepulse/internal/config"
	"pagepulse/internal/pageviews"
	"pagepulse/internal/sites"
)

const errInvalidRequest = "Invalid request"

// Wire event types sent by the tracking snippet.
const (
	eventTypeLoad = "load"
	eventTypePing = "ping"
	eventTypeExit = "exit"
)

// SitePayload identifies the page an event belongs to.
type SitePayload struct {
	Hostname string `json:"hostname"`
	Pathname string `json:"pathname"`
}

// ReferrerPayload is the referrer split the snippet performs client-side.
// Both fields are null for direct traffic.
type ReferrerPayload struct {
	Hostname *string `json:"hostname"`
	Pathname *string `json:"pathname"`
}

// TrackEventParams is the payload of the tracking endpoint. Which fields
// matter depends on the type: loads carry referrer and screen size,
// pings and exits carry inactiveTime.
type TrackEventParams struct {
	Type         string           `json:"type"`
	Site         SitePayload      `json:"site"`
	Referrer     *ReferrerPayload `json:"referrer"`
	ScreenSize   string           `json:"screenSize"`
	InactiveTime *int             `json:"inactiveTime"`
}

// TrackEventHandler ingests load/ping/exit events from the tracking
// snippet. Clients fire and forget; the response only reports whether
// the event was accepted.
func TrackEventHandler(ctx *cartridge.Context) error {
	input, err := validateTrackRequest(ctx.Ctx)
	if err != nil {
		ctx.Logger.Debug("Rejected tracking event", slog.Any("error", err))
		return handleTrackError(ctx.Ctx, err)
	}

	if err := pageviews.Record(ctx.DBManager, ctx.Logger, input); err != nil {
		var siteNotFoundErr *sites.SiteNotFoundError
		if errors.As(err, &siteNotFoundErr) {
			ctx.Logger.Debug("Event for unregistered hostname",
				slog.String("hostname", siteNotFoundErr.Hostname))
			return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "Site not found - please register your hostname first",
			})
		}

		ctx.Logger.Error("Failed to record event", slog.Any("error", err))
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
			return ctx.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"error":   "Storage busy, event dropped",
			})
		}

		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to record event",
		})
	}

	return ctx.JSON(fiber.Map{"success": true})
}

func validateTrackRequest(c *fiber.Ctx) (*pageviews.Input, error) {
	var params TrackEventParams
	if err := c.BodyParser(&params); err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, errInvalidRequest)
	}

	var kind pageviews.Kind
	switch params.Type {
	case eventTypeLoad:
		kind = pageviews.KindLoad
	case eventTypePing:
		kind = pageviews.KindPing
	case eventTypeExit:
		kind = pageviews.KindExit
	default:
		return nil, fiber.NewError(http.StatusBadRequest, "Unknown event type")
	}

	if strings.TrimSpace(params.Site.Hostname) == "" {
		return nil, fiber.NewError(http.StatusBadRequest, "Hostname is required")
	}

	inactiveSeconds := 0
	if kind != pageviews.KindLoad {
		if params.InactiveTime != nil {
			inactiveSeconds = *params.InactiveTime
		}
		maxInactive := config.GetConfig().MaxInactiveSeconds
		if inactiveSeconds < 0 || inactiveSeconds > maxInactive {
			return nil, fiber.NewError(http.StatusBadRequest, "inactiveTime out of range")
		}
	}

	userAgent := c.Get("User-Agent")
	clientIP := getClientIP(c)

	input := &pageviews.Input{
		Kind:            kind,
		Hostname:        strings.ToLower(strings.TrimSpace(params.Site.Hostname)),
		Pathname:        params.Site.Pathname,
		IPAddress:       clientIP,
		UserAgent:       userAgent,
		InactiveSeconds: inactiveSeconds,
		Geo:             extractGeoSignal(c, clientIP),
	}

	if kind == pageviews.KindLoad {
		if params.Referrer != nil && params.Referrer.Hostname != nil && *params.Referrer.Hostname != "" {
			input.ReferrerHostname = params.Referrer.Hostname
			input.ReferrerPathname = params.Referrer.Pathname
		}
		if params.ScreenSize != "" {
			screenSize := params.ScreenSize
			input.ScreenSize = &screenSize
		}
	}

	return input, nil
}

func handleTrackError(c *fiber.Ctx, err error) error {
	if fiberErr, ok := err.(*fiber.Error); ok {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"success": false,
			"error":   fiberErr.Message,
		})
	}

	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   errInvalidRequest,
	})
}
