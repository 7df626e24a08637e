package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/cache"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pagepulse/internal"
	"pagepulse/internal/config"
	"pagepulse/internal/locations"
	"pagepulse/internal/pageviews"
	"pagepulse/internal/rollups"
	"pagepulse/internal/settings"
	"pagepulse/internal/sites"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with pagepulse's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all pagepulse models for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&sites.Site{},
		&pageviews.Pageview{},
		&locations.Location{},
		&settings.Setting{},
		&rollups.SiteStat{},
		&rollups.PageStat{},
		&rollups.ReferrerStat{},
		&rollups.BrowserStat{},
		&rollups.DeviceTypeStat{},
		&rollups.LocationStat{},
	}
}

// SetupTestDB creates a test database with all pagepulse models migrated.
// Uses a named in-memory database with cache=shared to allow multiple connections
// to share the same database within a test. Caches the database by test name
// so multiple calls within the same test return the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// Create a unique named in-memory database for each test
	// cache=shared allows multiple connections to the same database
	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		// The settings cache may have been pointed at this database
		settings.ResetCache()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	// SAFETY CHECK: Ensure we're in test environment
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set PAGEPULSE_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	logger := GetLogger()
	dbManager := NewTestDBManager(db)

	return dbManager, logger
}

// SetupTestDBManagerWithSite creates a test database manager with a registered site
func SetupTestDBManagerWithSite(t *testing.T, hostname string) (*TestDBManager, *slog.Logger, sites.Site) {
	dbManager, logger := SetupTestDBManager(t)
	site := CreateTestSite(dbManager.GetConnection(), hostname)
	return dbManager, logger, site
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	var tables []string
	for _, name := range tableNames {
		if name != "migrations" && name != "schema_migrations" {
			tables = append(tables, name)
		}
	}

	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CleanTables cleans specific tables or all tables if none specified
func CleanTables(db *gorm.DB, tables []string) {
	if len(tables) == 0 {
		CleanAllTables(db)
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CleanAllRollups clears every rollup table
func CleanAllRollups(db *gorm.DB) {
	CleanTables(db, []string{
		"site_stats", "page_stats", "referrer_stats",
		"browser_stats", "device_type_stats", "location_stats",
	})
}

// CreateTestSite registers a site in the test database, reusing an
// existing row when the hostname is already taken
func CreateTestSite(db *gorm.DB, hostname string) sites.Site {
	var site sites.Site
	if db.Where("hostname = ?", hostname).First(&site).Error != nil {
		site = sites.Site{
			ID:        uuid.NewString(),
			Name:      hostname,
			Hostname:  hostname,
			CreatedAt: time.Now().UTC(),
		}
		db.Create(&site)
	}
	return site
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	// Same server config as production so tests exercise the
	// Sec-Fetch-Site validation with the cross-site allowlist.
	cfg := internal.ServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
