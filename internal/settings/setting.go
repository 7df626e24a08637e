package settings

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// Settings keys
const (
	KeyExcludedIPs = "excluded_ips"
	KeyAdminAPIKey = "admin_api_key"
)

var excludedIPsCache *cache.Cache[string, []string]

// SetupDefaultSettings initializes default settings in the database
func SetupDefaultSettings(dbConn *gorm.DB) error {
	settings := []Setting{
		{Key: KeyExcludedIPs, Value: ""},
	}
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		for _, setting := range settings {
			// Use raw SQL for upsert
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, setting.Key, setting.Value, time.Now().UTC(), time.Now().UTC()).Error
			if err != nil {
				slog.Default().Error("Failed to upsert setting", slog.String("key", setting.Key), slog.Any("error", err))
				return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})

	// Initialize the cache
	loadCache(dbConn, slog.Default())

	return err
}

// IsIPExcluded reports whether the client IP is on the exclusion list.
// Events from excluded IPs are acknowledged but never stored.
func IsIPExcluded(ip string) (bool, error) {
	// If the cache isn't initialized yet, return false
	if excludedIPsCache == nil {
		return false, nil
	}

	excludedIPs, err := excludedIPsCache.Get(KeyExcludedIPs)
	if err != nil {
		return false, fmt.Errorf("failed to check excluded IPs: %w", err)
	}

	for _, excludedIP := range excludedIPs {
		if excludedIP != "" && excludedIP == ip {
			return true, nil
		}
	}
	return false, nil
}

// GetSetting retrieves a setting value from the database
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	result := dbConn.Where("key = ?", key).First(&setting)

	if result.Error != nil {
		return "", result.Error
	}

	return setting.Value, nil
}

// UpdateSetting updates a setting, creating it when absent, then refreshes
// the exclusion cache.
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		result := tx.Model(&Setting{}).Where("key = ?", key).Update("value", value)
		if result.Error != nil {
			return fmt.Errorf("failed to update setting: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			setting := Setting{Key: key, Value: value}
			if err := tx.Create(&setting).Error; err != nil {
				return fmt.Errorf("failed to create setting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if excludedIPsCache != nil {
		excludedIPsCache.Clear()
	}
	loadCache(dbConn, slog.Default())

	return nil
}

// ResetCache drops the exclusion cache. UpdateSetting points the cache at
// whichever connection it was called with, so tests reset it when their
// database goes away.
func ResetCache() {
	if excludedIPsCache != nil {
		excludedIPsCache.Clear()
	}
	excludedIPsCache = nil
}

// loadCache initializes the excluded IPs cache against the given connection.
func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) ([]string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).Scan(&value).Error
		if err != nil {
			return nil, err
		}
		// Comma-separated list
		excludedIPs := strings.Split(value, ",")
		for i, ip := range excludedIPs {
			excludedIPs[i] = strings.TrimSpace(ip)
		}
		return excludedIPs, nil
	}
	excludedIPsCache = cache.NewCache[string, []string](logger, 5*time.Minute, fetchFunc)
}

// GetAdminAPIKey retrieves the admin API key
func GetAdminAPIKey(db *gorm.DB) (string, error) {
	return GetSetting(db, KeyAdminAPIKey)
}

// GetOrCreateAdminAPIKey returns the existing API key or generates a new one
func GetOrCreateAdminAPIKey(db *gorm.DB) (string, error) {
	key, err := GetAdminAPIKey(db)
	if err == nil && key != "" {
		return key, nil
	}
	return GenerateAdminAPIKey(db)
}

// GenerateAdminAPIKey creates a new random API key and stores it
func GenerateAdminAPIKey(db *gorm.DB) (string, error) {
	key := generateRandomToken(32)
	if err := UpdateSetting(db, KeyAdminAPIKey, key); err != nil {
		return "", err
	}
	return key, nil
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[randInt(len(charset))]
	}
	return string(b)
}

// randInt returns a cryptographically secure random int in [0, max)
func randInt(max int) int {
	var buf [1]byte
	_, _ = rand.Read(buf[:])
	return int(buf[0]) % max
}
