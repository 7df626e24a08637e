package pageviews

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"pagepulse/internal/config"
	"pagepulse/internal/locations"
	"pagepulse/internal/pkg/bots"
	"pagepulse/internal/settings"
	"pagepulse/internal/sites"
	"pagepulse/internal/visitors"
)

// Kind discriminates the tracking event variants.
type Kind int

const (
	KindLoad Kind = iota + 1
	KindPing
	KindExit
)

// Input defines the input required to record a tracking event.
// ReferrerHostname, ReferrerPathname and ScreenSize are only meaningful
// for loads; InactiveSeconds only for pings and exits.
type Input struct {
	Kind             Kind
	Hostname         string
	Pathname         string
	IPAddress        string
	UserAgent        string
	ReferrerHostname *string
	ReferrerPathname *string
	ScreenSize       *string
	InactiveSeconds  int
	Geo              locations.Signal
	Timestamp        time.Time
}

// Record folds a tracking event into the pageview table. A load, ping or
// exit matching an open row created within the session window updates
// that row's duration in place; anything else inserts a fresh row. The
// probe always uses the open-variant hash, so an exited row can never be
// re-matched.
func Record(dbManager cartridge.DBManager, logger *slog.Logger, input *Input) error {
	if input.Hostname == "" {
		return errors.New("hostname is required")
	}
	if input.Pathname == "" {
		input.Pathname = "/"
	}

	now := input.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	excluded, err := settings.IsIPExcluded(input.IPAddress)
	if err != nil {
		logger.Error("Error checking IP exclusion", slog.Any("error", err))
	} else if excluded {
		logger.Debug("Skipping event for excluded IP", slog.String("ip", input.IPAddress))
		return nil
	}

	if bot, ok := bots.Detect(input.UserAgent); ok {
		logger.Debug("Skipping event from bot", slog.String("bot", bot.Name))
		return nil
	}

	cfg := config.GetConfig()
	db := dbManager.GetConnection()

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		site, err := sites.GetSiteByHostname(tx, input.Hostname)
		if err != nil {
			return err
		}

		signature := visitors.Signature(input.IPAddress, input.UserAgent, input.Hostname)
		probeHash := DedupHash(site.ID, signature, input.Pathname, false)
		windowStart := now.Add(-cfg.SessionWindow())

		var open Pageview
		err = tx.Where("dedup_hash = ? AND created_at >= ?", probeHash, windowStart).
			Order("created_at DESC").
			First(&open).Error
		switch {
		case err == nil:
			return continueRow(tx, &open, input.Kind, now, input.InactiveSeconds)
		case errors.Is(err, gorm.ErrRecordNotFound):
			return insertRow(tx, site.ID, signature, input, now)
		default:
			return fmt.Errorf("failed to probe for open pageview: %w", err)
		}
	})
}

// continueRow folds a follow-up event into the open row. Duration is the
// wall time since the row was created minus the reported inactivity,
// never negative. Loads report no inactivity.
func continueRow(tx *gorm.DB, open *Pageview, kind Kind, now time.Time, inactiveSeconds int) error {
	elapsed := int(now.Sub(open.CreatedAt).Seconds())
	if kind == KindLoad {
		inactiveSeconds = 0
	}
	duration := elapsed - inactiveSeconds
	if duration < 0 {
		duration = 0
	}

	open.Duration = duration
	if kind == KindExit {
		open.HasExited = true
		open.RecomputeDedupHash()
	}

	return tx.Model(&Pageview{}).Where("id = ?", open.ID).Updates(map[string]any{
		"duration":   open.Duration,
		"has_exited": open.HasExited,
		"dedup_hash": open.DedupHash,
	}).Error
}

// insertRow creates a fresh pageview for a first-sight event. Referrer
// and screen size are only trusted on loads; a first-sight exit starts
// already exited with zero duration.
func insertRow(tx *gorm.DB, siteID, signature string, input *Input, now time.Time) error {
	locationID, err := locations.Resolve(tx, input.Geo)
	if err != nil {
		return err
	}

	row := Pageview{
		ID:               uuid.NewString(),
		SiteID:           siteID,
		Hostname:         input.Hostname,
		Pathname:         input.Pathname,
		VisitorSignature: signature,
		Browser:          BrowserFor(input.UserAgent),
		OperatingSystem:  OperatingSystemFor(input.UserAgent),
		Duration:         0,
		LocationID:       locationID,
		HasExited:        input.Kind == KindExit,
		CreatedAt:        now,
	}
	if input.Kind == KindLoad {
		row.ReferrerHostname = input.ReferrerHostname
		row.ReferrerPathname = input.ReferrerPathname
		row.ScreenSize = input.ScreenSize
	}
	row.RecomputeDedupHash()

	return tx.Create(&row).Error
}
