package sites

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SiteNotFoundError represents an error when a site is not found
type SiteNotFoundError struct {
	Hostname string
}

func (e *SiteNotFoundError) Error() string {
	return fmt.Sprintf("site not found for hostname: %s", e.Hostname)
}

// NewSiteNotFoundError creates a new SiteNotFoundError
func NewSiteNotFoundError(hostname string) *SiteNotFoundError {
	return &SiteNotFoundError{Hostname: hostname}
}

// ErrSiteAlreadyExists is returned when creating a site with a hostname
// that is already registered.
var ErrSiteAlreadyExists = errors.New("site already exists")

// Site represents a registered tracked site. The hostname is the tracking
// identity: incoming events carry a hostname and are attributed through it.
type Site struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Hostname  string    `gorm:"uniqueIndex;not null" json:"hostname"`
	OwnerID   string    `gorm:"index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GetSiteByHostname retrieves a site by exact hostname match.
// It accepts a transaction to be used as part of a larger transaction process.
func GetSiteByHostname(tx *gorm.DB, hostname string) (*Site, error) {
	var site Site
	if err := tx.Where("hostname = ?", hostname).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewSiteNotFoundError(hostname)
		}
		return nil, fmt.Errorf("unexpected error querying site: %w", err)
	}
	return &site, nil
}

// GetSiteByID retrieves a site by its ID
func GetSiteByID(db *gorm.DB, id string) (*Site, error) {
	var site Site
	if err := db.Where("id = ?", id).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewSiteNotFoundError(id)
		}
		return nil, err
	}
	return &site, nil
}

// GetAllSites retrieves all sites
func GetAllSites(db *gorm.DB) ([]Site, error) {
	var sites []Site
	if err := db.Order("created_at ASC").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to get sites: %w", err)
	}
	return sites, nil
}

// CreateSite registers a new site. The hostname must not be registered
// already; a duplicate returns ErrSiteAlreadyExists.
func CreateSite(db *gorm.DB, site *Site) error {
	site.Hostname = strings.ToLower(strings.TrimSpace(site.Hostname))
	if site.Hostname == "" {
		return errors.New("hostname is required")
	}
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	site.CreatedAt = time.Now().UTC()

	var count int64
	if err := db.Model(&Site{}).Where("hostname = ?", site.Hostname).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check hostname availability: %w", err)
	}
	if count > 0 {
		return ErrSiteAlreadyExists
	}

	return db.Create(site).Error
}

// UpdateSiteName renames a site. Only the name is mutable.
func UpdateSiteName(db *gorm.DB, id, name string) error {
	result := db.Model(&Site{}).Where("id = ?", id).Update("name", name)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NewSiteNotFoundError(id)
	}
	return nil
}

// SiteWithStats represents a site with recent traffic statistics
type SiteWithStats struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Hostname      string    `json:"hostname"`
	CreatedAt     time.Time `json:"created_at"`
	PageviewCount int64     `json:"pageview_count"`
}

// GetSitesWithStats retrieves all sites enriched with pageview counts
// over the trailing daysBack days.
func GetSitesWithStats(db *gorm.DB, daysBack int) ([]SiteWithStats, error) {
	allSites, err := GetAllSites(db)
	if err != nil {
		return nil, err
	}

	result := make([]SiteWithStats, len(allSites))
	timeLimit := time.Now().UTC().AddDate(0, 0, -daysBack)

	for i, site := range allSites {
		var pageviewCount int64
		err := db.Table("pageviews").
			Where("site_id = ? AND created_at >= ?", site.ID, timeLimit).
			Count(&pageviewCount).Error
		if err != nil {
			// On error, default to 0 but continue
			pageviewCount = 0
		}

		result[i] = SiteWithStats{
			ID:            site.ID,
			Name:          site.Name,
			Hostname:      site.Hostname,
			CreatedAt:     site.CreatedAt,
			PageviewCount: pageviewCount,
		}
	}

	return result, nil
}
