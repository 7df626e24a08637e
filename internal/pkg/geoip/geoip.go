// Package geoip wraps an optional GeoLite2 City database. When the
// database file is absent the lookups simply return nothing; geography
// then falls back to whatever edge headers the request carried.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"pagepulse/internal/config"
)

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	logger = l
}

// InitGeoDB opens the GeoLite2 City database.
// Returns nil if the database is not configured or not found (GeoIP is optional).
func InitGeoDB() *geoip2.Reader {
	cfg := config.GetConfig()
	if cfg.GeoDBPath == "" {
		if logger != nil {
			logger.Debug("GeoIP database path not configured - GeoIP lookups disabled")
		}
		return nil
	}

	if _, err := os.Stat(cfg.GeoDBPath); os.IsNotExist(err) {
		if logger != nil {
			logger.Info("GeoLite2 database not found - GeoIP lookups disabled",
				slog.String("path", cfg.GeoDBPath),
				slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		}
		return nil
	} else if err != nil {
		if logger != nil {
			logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(cfg.GeoDBPath)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open GeoLite2 database",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	if logger != nil {
		logger.Info("GeoLite2 database initialized successfully",
			slog.String("path", cfg.GeoDBPath))
	}
	return db
}

// GetGeoDB returns the GeoLite2 database reader, initializing it if necessary.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = InitGeoDB()
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// CityLookup is the location extracted for an IP. Empty fields mean the
// database had no data at that granularity.
type CityLookup struct {
	CountryCode string
	Region      string
	City        string
}

// LookupCity resolves an IP to country/region/city. Returns false when
// the database is unavailable, the IP unparseable, or nothing was found.
func LookupCity(ipAddress string) (CityLookup, bool) {
	db := GetGeoDB()
	if db == nil {
		return CityLookup{}, false
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return CityLookup{}, false
	}

	record, err := db.City(ip)
	if err != nil {
		if logger != nil {
			logger.Debug("GeoIP city lookup failed",
				slog.String("ip", ipAddress), slog.Any("error", err))
		}
		return CityLookup{}, false
	}

	result := CityLookup{
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		result.Region = record.Subdivisions[0].IsoCode
	}

	if result.CountryCode == "" && result.Region == "" && result.City == "" {
		return CityLookup{}, false
	}
	return result, true
}

// ReloadGeoDB reloads the GeoLite2 database from disk.
// Call this after downloading a new database file.
func ReloadGeoDB() {
	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = InitGeoDB()

	if geoDB != nil && logger != nil {
		logger.Info("GeoLite2 database reloaded successfully")
	}
}
