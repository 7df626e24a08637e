// Package rollups maintains the hourly aggregate tables derived from raw
// pageviews. Rows are append-only; re-running a window appends another
// batch rather than mutating prior output.
package rollups

import "time"

// DirectTraffic labels pageviews that arrived without a referrer.
const DirectTraffic = "Direct"

// SiteStat aggregates overall traffic per site per hour.
type SiteStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID         string    `gorm:"index;not null" json:"site_id"`
	PageViewsCount int       `gorm:"default:0" json:"page_views_count"`
	VisitorsCount  int       `gorm:"default:0" json:"visitors_count"`
	AvgDuration    int       `gorm:"default:0" json:"avg_duration"`
	Hour           time.Time `gorm:"index;type:datetime" json:"hour"`
	CreatedAt      time.Time `json:"created_at"`
}

// PageStat aggregates traffic per page per hour.
type PageStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID         string    `gorm:"index;not null" json:"site_id"`
	Hostname       string    `gorm:"index" json:"hostname"`
	Pathname       string    `gorm:"index" json:"pathname"`
	PageViewsCount int       `gorm:"default:0" json:"page_views_count"`
	VisitorsCount  int       `gorm:"default:0" json:"visitors_count"`
	AvgDuration    int       `gorm:"default:0" json:"avg_duration"`
	Hour           time.Time `gorm:"index;type:datetime" json:"hour"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReferrerStat aggregates traffic per page per referrer hostname per
// hour. Pageviews without a referrer fold into the DirectTraffic bucket.
type ReferrerStat struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID           string    `gorm:"index;not null" json:"site_id"`
	Pathname         string    `gorm:"index" json:"pathname"`
	ReferrerHostname string    `gorm:"index" json:"referrer_hostname"`
	PageViewsCount   int       `gorm:"default:0" json:"page_views_count"`
	VisitorsCount    int       `gorm:"default:0" json:"visitors_count"`
	AvgDuration      int       `gorm:"default:0" json:"avg_duration"`
	Hour             time.Time `gorm:"index;type:datetime" json:"hour"`
	CreatedAt        time.Time `json:"created_at"`
}

// BrowserStat aggregates traffic per page per browser family per hour.
type BrowserStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID         string    `gorm:"index;not null" json:"site_id"`
	Pathname       string    `gorm:"index" json:"pathname"`
	Browser        string    `gorm:"index" json:"browser"`
	PageViewsCount int       `gorm:"default:0" json:"page_views_count"`
	VisitorsCount  int       `gorm:"default:0" json:"visitors_count"`
	AvgDuration    int       `gorm:"default:0" json:"avg_duration"`
	Hour           time.Time `gorm:"index;type:datetime" json:"hour"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeviceTypeStat aggregates traffic per page per operating system and
// device class per hour. The class is derived from the stored screen
// size at aggregation time.
type DeviceTypeStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID         string    `gorm:"index;not null" json:"site_id"`
	Pathname       string    `gorm:"index" json:"pathname"`
	OS             string    `gorm:"column:os;index" json:"os"`
	DeviceType     string    `gorm:"index" json:"device_type"`
	PageViewsCount int       `gorm:"default:0" json:"page_views_count"`
	VisitorsCount  int       `gorm:"default:0" json:"visitors_count"`
	AvgDuration    int       `gorm:"default:0" json:"avg_duration"`
	Hour           time.Time `gorm:"index;type:datetime" json:"hour"`
	CreatedAt      time.Time `json:"created_at"`
}

// LocationStat aggregates traffic per page per location per hour.
// Pageviews with no resolved location are not represented here.
type LocationStat struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SiteID         string    `gorm:"index;not null" json:"site_id"`
	Pathname       string    `gorm:"index" json:"pathname"`
	Region         *string   `gorm:"index" json:"region"`
	Country        *string   `gorm:"index" json:"country"`
	City           *string   `gorm:"index" json:"city"`
	PageViewsCount int       `gorm:"default:0" json:"page_views_count"`
	VisitorsCount  int       `gorm:"default:0" json:"visitors_count"`
	AvgDuration    int       `gorm:"default:0" json:"avg_duration"`
	Hour           time.Time `gorm:"index;type:datetime" json:"hour"`
	CreatedAt      time.Time `json:"created_at"`
}
