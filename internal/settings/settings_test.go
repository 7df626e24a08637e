package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepulse/internal/settings"
	"pagepulse/internal/testsupport"
)

func TestSetupDefaultSettings(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	require.NoError(t, settings.SetupDefaultSettings(db))

	value, err := settings.GetSetting(db, settings.KeyExcludedIPs)
	require.NoError(t, err)
	assert.Equal(t, "", value)

	// Running twice keeps existing values
	require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, "10.0.0.1"))
	require.NoError(t, settings.SetupDefaultSettings(db))
	value, err = settings.GetSetting(db, settings.KeyExcludedIPs)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", value)
}

func TestIsIPExcluded(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	require.NoError(t, settings.SetupDefaultSettings(db))
	require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, "10.0.0.1, 192.168.1.5"))

	tests := []struct {
		name     string
		ip       string
		excluded bool
	}{
		{"excluded ip", "10.0.0.1", true},
		{"excluded ip with surrounding spaces in list", "192.168.1.5", true},
		{"unlisted ip", "203.0.113.9", false},
		{"empty ip", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			excluded, err := settings.IsIPExcluded(tt.ip)
			require.NoError(t, err)
			assert.Equal(t, tt.excluded, excluded)
		})
	}
}

func TestResetCacheDropsExclusions(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	require.NoError(t, settings.SetupDefaultSettings(db))
	require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, "10.0.0.1"))

	excluded, err := settings.IsIPExcluded("10.0.0.1")
	require.NoError(t, err)
	require.True(t, excluded)

	// After a reset the exclusion list is gone until the next load
	settings.ResetCache()
	excluded, err = settings.IsIPExcluded("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, excluded)
}

func TestAdminAPIKey(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	require.NoError(t, settings.SetupDefaultSettings(db))

	key, err := settings.GetOrCreateAdminAPIKey(db)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	// Stable across calls
	again, err := settings.GetOrCreateAdminAPIKey(db)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	// Regeneration replaces it
	fresh, err := settings.GenerateAdminAPIKey(db)
	require.NoError(t, err)
	assert.NotEqual(t, key, fresh)
}
