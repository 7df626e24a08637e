package rollups

import (
	"fmt"
	"time"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"pagepulse/internal/pkg/referrers"
)

// Query selects rollup rows for one site over a time range. Pathname
// narrows every table except the site totals, which carry no pathname.
type Query struct {
	SiteID   string
	From     time.Time
	To       time.Time
	Pathname string
}

func (q Query) scope(db *gorm.DB) *gorm.DB {
	return db.Where("site_id = ? AND hour >= ? AND hour < ?", q.SiteID, q.From, q.To).
		Order("hour ASC")
}

func (q Query) scopeWithPathname(db *gorm.DB) *gorm.DB {
	scoped := q.scope(db)
	if q.Pathname != "" {
		scoped = scoped.Where("pathname = ?", q.Pathname)
	}
	return scoped
}

// GetSiteStats returns the per-hour site totals for the range.
func GetSiteStats(db *gorm.DB, q Query) ([]SiteStat, error) {
	var stats []SiteStat
	if err := q.scope(db.Model(&SiteStat{})).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to query site stats: %w", err)
	}
	return stats, nil
}

// GetPageStats returns per-page rows, optionally narrowed to one pathname.
func GetPageStats(db *gorm.DB, q Query) ([]PageStat, error) {
	var stats []PageStat
	if err := q.scopeWithPathname(db.Model(&PageStat{})).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to query page stats: %w", err)
	}
	return stats, nil
}

// GetReferrerStats returns per-referrer rows for the range with raw
// hostnames replaced by display names. The Direct bucket passes through.
func GetReferrerStats(db *gorm.DB, q Query) ([]ReferrerStat, error) {
	var stats []ReferrerStat
	if err := q.scopeWithPathname(db.Model(&ReferrerStat{})).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to query referrer stats: %w", err)
	}
	return convertReferrerStats(stats), nil
}

// convertReferrerStats rewrites referrer hostnames into source names.
func convertReferrerStats(stats []ReferrerStat) []ReferrerStat {
	if len(stats) == 0 {
		return []ReferrerStat{}
	}

	result := make([]ReferrerStat, len(stats))
	for i, stat := range stats {
		if stat.ReferrerHostname != DirectTraffic {
			stat.ReferrerHostname = referrers.DisplayName(stat.ReferrerHostname)
		}
		result[i] = stat
	}
	return result
}

// GetBrowserStats returns per-browser rows for the range.
func GetBrowserStats(db *gorm.DB, q Query) ([]BrowserStat, error) {
	var stats []BrowserStat
	if err := q.scopeWithPathname(db.Model(&BrowserStat{})).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to query browser stats: %w", err)
	}
	return stats, nil
}

// GetDeviceTypeStats returns per-device-class rows for the range.
func GetDeviceTypeStats(db *gorm.DB, q Query) ([]DeviceTypeStat, error) {
	var stats []DeviceTypeStat
	if err := q.scopeWithPathname(db.Model(&DeviceTypeStat{})).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to query device type stats: %w", err)
	}
	return stats, nil
}

// GetLocationStats returns per-location rows for the range with stored
// ISO country codes replaced by display names.
func GetLocationStats(db *gorm.DB, q Query) ([]LocationStat, error) {
	var stats []LocationStat
	if err := q.scopeWithPathname(db.Model(&LocationStat{})).Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to query location stats: %w", err)
	}
	return convertLocationStats(stats), nil
}

// convertLocationStats swaps ISO alpha codes for common country names.
// Codes gountries does not recognize pass through upper-cased.
func convertLocationStats(stats []LocationStat) []LocationStat {
	if len(stats) == 0 {
		return []LocationStat{}
	}

	caser := cases.Upper(language.AmericanEnglish)
	countries := gountries.New()

	result := make([]LocationStat, len(stats))
	for i, stat := range stats {
		if stat.Country != nil {
			if country, err := countries.FindCountryByAlpha(*stat.Country); err == nil {
				name := country.Name.Common
				stat.Country = &name
			} else {
				upper := caser.String(*stat.Country)
				stat.Country = &upper
			}
		}
		result[i] = stat
	}
	return result
}
