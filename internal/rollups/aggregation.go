package rollups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"pagepulse/internal/pkg/async"
)

const insertBatchSize = 200

// snapshotRow is one raw pageview joined with its resolved location.
type snapshotRow struct {
	SiteID           string
	Hostname         string
	Pathname         string
	VisitorSignature string
	ReferrerHostname *string
	ScreenSize       *string
	Browser          string
	OperatingSystem  string
	Duration         int
	CreatedAt        time.Time
	Region           *string
	Country          *string
	City             *string
}

// TruncateToHour buckets a timestamp by wall-clock hour in the reference
// timezone. Two events in the same local hour land in the same bucket no
// matter what offset they arrived with.
func TruncateToHour(t time.Time, tz *time.Location) time.Time {
	lt := t.In(tz)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, tz)
}

// Run aggregates the pageviews created within [now-lookback, now) into
// the six rollup tables. All groupings read one shared snapshot and then
// insert concurrently; each table succeeds or fails on its own, and a
// failed grouping never aborts its siblings. Rerunning a window appends
// duplicate rows, which readers are expected to tolerate.
func Run(dbManager cartridge.DBManager, logger *slog.Logger, now time.Time, lookback time.Duration, tz *time.Location) error {
	db := dbManager.GetConnection()
	windowStart := now.Add(-lookback)

	var rows []snapshotRow
	err := db.Table("pageviews").
		Select(`pageviews.site_id, pageviews.hostname, pageviews.pathname,
			pageviews.visitor_signature, pageviews.referrer_hostname,
			pageviews.screen_size, pageviews.browser, pageviews.operating_system,
			pageviews.duration, pageviews.created_at,
			locations.region, locations.country, locations.city`).
		Joins("LEFT JOIN locations ON locations.id = pageviews.location_id").
		Where("pageviews.created_at >= ? AND pageviews.created_at < ?", windowStart, now).
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to read pageview snapshot: %w", err)
	}

	if len(rows) == 0 {
		logger.Debug("No pageviews in aggregation window",
			slog.Time("from", windowStart), slog.Time("to", now))
		return nil
	}

	createdAt := time.Now().UTC()
	tasks := []async.Task{
		{Name: "site_stats", Execute: func() (interface{}, error) {
			return nil, insertStats(logger, db, buildSiteStats(rows, tz, createdAt))
		}},
		{Name: "page_stats", Execute: func() (interface{}, error) {
			return nil, insertStats(logger, db, buildPageStats(rows, tz, createdAt))
		}},
		{Name: "referrer_stats", Execute: func() (interface{}, error) {
			return nil, insertStats(logger, db, buildReferrerStats(rows, tz, createdAt))
		}},
		{Name: "browser_stats", Execute: func() (interface{}, error) {
			return nil, insertStats(logger, db, buildBrowserStats(rows, tz, createdAt))
		}},
		{Name: "device_type_stats", Execute: func() (interface{}, error) {
			return nil, insertStats(logger, db, buildDeviceTypeStats(rows, tz, createdAt))
		}},
		{Name: "location_stats", Execute: func() (interface{}, error) {
			return nil, insertStats(logger, db, buildLocationStats(rows, tz, createdAt))
		}},
	}

	pool := async.NewPool(len(tasks))
	results := pool.Execute(context.Background(), tasks)

	var errs []error
	for name, result := range results {
		if result.Err != nil {
			logger.Error("Rollup grouping failed",
				slog.String("grouping", name), slog.Any("error", result.Err))
			errs = append(errs, fmt.Errorf("%s: %w", name, result.Err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("Aggregated pageviews into rollups",
		slog.Int("pageviews", len(rows)),
		slog.Time("from", windowStart), slog.Time("to", now))
	return nil
}

// insertStats appends one grouping's batch in its own write transaction.
// A nil or empty batch inserts nothing.
func insertStats[T any](logger *slog.Logger, db *gorm.DB, stats []T) error {
	if len(stats) == 0 {
		return nil
	}
	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.CreateInBatches(stats, insertBatchSize).Error
	})
}

// group accumulates one (dimension, hour) bucket.
type group struct {
	pageViews     int
	visitors      map[string]struct{}
	totalDuration int
}

func newGroupMap() map[string]*group { return make(map[string]*group) }

func (g *group) add(row snapshotRow) {
	g.pageViews++
	g.totalDuration += row.Duration
	g.visitors[row.VisitorSignature] = struct{}{}
}

func accumulate(groups map[string]*group, key string, row snapshotRow) {
	g, ok := groups[key]
	if !ok {
		g = &group{visitors: make(map[string]struct{})}
		groups[key] = g
	}
	g.add(row)
}

// avgDuration is the arithmetic mean rounded half away from zero.
func (g *group) avgDuration() int {
	if g.pageViews == 0 {
		return 0
	}
	return int(math.Floor(float64(g.totalDuration)/float64(g.pageViews) + 0.5))
}

func buildSiteStats(rows []snapshotRow, tz *time.Location, createdAt time.Time) []SiteStat {
	groups := newGroupMap()
	dims := make(map[string]SiteStat)
	for _, row := range rows {
		hour := TruncateToHour(row.CreatedAt, tz)
		key := fmt.Sprintf("%s|%d", row.SiteID, hour.Unix())
		accumulate(groups, key, row)
		dims[key] = SiteStat{SiteID: row.SiteID, Hour: hour, CreatedAt: createdAt}
	}

	stats := make([]SiteStat, 0, len(groups))
	for key, g := range groups {
		stat := dims[key]
		stat.PageViewsCount = g.pageViews
		stat.VisitorsCount = len(g.visitors)
		stat.AvgDuration = g.avgDuration()
		stats = append(stats, stat)
	}
	return stats
}

func buildPageStats(rows []snapshotRow, tz *time.Location, createdAt time.Time) []PageStat {
	groups := newGroupMap()
	dims := make(map[string]PageStat)
	for _, row := range rows {
		hour := TruncateToHour(row.CreatedAt, tz)
		key := fmt.Sprintf("%s|%s|%s|%d", row.SiteID, row.Hostname, row.Pathname, hour.Unix())
		accumulate(groups, key, row)
		dims[key] = PageStat{
			SiteID: row.SiteID, Hostname: row.Hostname, Pathname: row.Pathname,
			Hour: hour, CreatedAt: createdAt,
		}
	}

	stats := make([]PageStat, 0, len(groups))
	for key, g := range groups {
		stat := dims[key]
		stat.PageViewsCount = g.pageViews
		stat.VisitorsCount = len(g.visitors)
		stat.AvgDuration = g.avgDuration()
		stats = append(stats, stat)
	}
	return stats
}

func buildReferrerStats(rows []snapshotRow, tz *time.Location, createdAt time.Time) []ReferrerStat {
	groups := newGroupMap()
	dims := make(map[string]ReferrerStat)
	for _, row := range rows {
		referrer := DirectTraffic
		if row.ReferrerHostname != nil && *row.ReferrerHostname != "" {
			referrer = *row.ReferrerHostname
		}
		hour := TruncateToHour(row.CreatedAt, tz)
		key := fmt.Sprintf("%s|%s|%s|%d", row.SiteID, row.Pathname, referrer, hour.Unix())
		accumulate(groups, key, row)
		dims[key] = ReferrerStat{
			SiteID: row.SiteID, Pathname: row.Pathname, ReferrerHostname: referrer,
			Hour: hour, CreatedAt: createdAt,
		}
	}

	stats := make([]ReferrerStat, 0, len(groups))
	for key, g := range groups {
		stat := dims[key]
		stat.PageViewsCount = g.pageViews
		stat.VisitorsCount = len(g.visitors)
		stat.AvgDuration = g.avgDuration()
		stats = append(stats, stat)
	}
	return stats
}

func buildBrowserStats(rows []snapshotRow, tz *time.Location, createdAt time.Time) []BrowserStat {
	groups := newGroupMap()
	dims := make(map[string]BrowserStat)
	for _, row := range rows {
		hour := TruncateToHour(row.CreatedAt, tz)
		key := fmt.Sprintf("%s|%s|%s|%d", row.SiteID, row.Pathname, row.Browser, hour.Unix())
		accumulate(groups, key, row)
		dims[key] = BrowserStat{
			SiteID: row.SiteID, Pathname: row.Pathname, Browser: row.Browser,
			Hour: hour, CreatedAt: createdAt,
		}
	}

	stats := make([]BrowserStat, 0, len(groups))
	for key, g := range groups {
		stat := dims[key]
		stat.PageViewsCount = g.pageViews
		stat.VisitorsCount = len(g.visitors)
		stat.AvgDuration = g.avgDuration()
		stats = append(stats, stat)
	}
	return stats
}

func buildDeviceTypeStats(rows []snapshotRow, tz *time.Location, createdAt time.Time) []DeviceTypeStat {
	groups := newGroupMap()
	dims := make(map[string]DeviceTypeStat)
	for _, row := range rows {
		deviceType := DeviceClassFor(row.ScreenSize)
		hour := TruncateToHour(row.CreatedAt, tz)
		key := fmt.Sprintf("%s|%s|%s|%s|%d",
			row.SiteID, row.Pathname, row.OperatingSystem, deviceType, hour.Unix())
		accumulate(groups, key, row)
		dims[key] = DeviceTypeStat{
			SiteID: row.SiteID, Pathname: row.Pathname,
			OS: row.OperatingSystem, DeviceType: deviceType,
			Hour: hour, CreatedAt: createdAt,
		}
	}

	stats := make([]DeviceTypeStat, 0, len(groups))
	for key, g := range groups {
		stat := dims[key]
		stat.PageViewsCount = g.pageViews
		stat.VisitorsCount = len(g.visitors)
		stat.AvgDuration = g.avgDuration()
		stats = append(stats, stat)
	}
	return stats
}

func buildLocationStats(rows []snapshotRow, tz *time.Location, createdAt time.Time) []LocationStat {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	groups := newGroupMap()
	dims := make(map[string]LocationStat)
	for _, row := range rows {
		// Pageviews without any location signal are left out of this grouping.
		if row.Region == nil && row.Country == nil && row.City == nil {
			continue
		}
		hour := TruncateToHour(row.CreatedAt, tz)
		key := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
			row.SiteID, row.Pathname, deref(row.Region), deref(row.Country), deref(row.City), hour.Unix())
		accumulate(groups, key, row)
		dims[key] = LocationStat{
			SiteID: row.SiteID, Pathname: row.Pathname,
			Region: row.Region, Country: row.Country, City: row.City,
			Hour: hour, CreatedAt: createdAt,
		}
	}

	stats := make([]LocationStat, 0, len(groups))
	for key, g := range groups {
		stat := dims[key]
		stat.PageViewsCount = g.pageViews
		stat.VisitorsCount = len(g.visitors)
		stat.AvgDuration = g.avgDuration()
		stats = append(stats, stat)
	}
	return stats
}
