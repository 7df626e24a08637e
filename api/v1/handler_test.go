// Package v1_test contains tests for the API v1 handlers
package v1_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepulse/internal/config"
	"pagepulse/internal/pageviews"
	"pagepulse/internal/rollups"
	"pagepulse/internal/settings"
	"pagepulse/internal/testsupport"
)

const testAdminKey = "test-admin-api-key"

// trackPayload builds the nested body the tracking snippet sends.
func trackPayload(eventType, hostname string) map[string]interface{} {
	return map[string]interface{}{
		"type": eventType,
		"site": map[string]interface{}{
			"hostname": hostname,
			"pathname": "/pricing",
		},
		"referrer": map[string]interface{}{
			"hostname": "www.google.com",
			"pathname": "/search",
		},
		"screenSize": "1920x1080",
	}
}

func postJSON(t *testing.T, path string, payload map[string]interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	// Browsers label the snippet's POST cross-site
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &parsed))
	return parsed
}

func TestTrackEventHandler(t *testing.T) {
	t.Run("accepts load for registered hostname", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", trackPayload("load", "example.com"))
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		payload := decodeBody(t, resp)
		assert.Equal(t, true, payload["success"])

		var count int64
		require.NoError(t, db.Model(&pageviews.Pageview{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		var row pageviews.Pageview
		require.NoError(t, db.First(&row).Error)
		assert.Equal(t, "/pricing", row.Pathname)
		require.NotNil(t, row.ReferrerHostname)
		assert.Equal(t, "www.google.com", *row.ReferrerHostname)
		require.NotNil(t, row.ReferrerPathname)
		assert.Equal(t, "/search", *row.ReferrerPathname)
	})

	t.Run("treats a null referrer as direct traffic", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		payload := trackPayload("load", "example.com")
		payload["referrer"] = map[string]interface{}{"hostname": nil, "pathname": nil}
		resp, err := app.Test(postJSON(t, "/x/api/v1/events", payload), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var row pageviews.Pageview
		require.NoError(t, db.First(&row).Error)
		assert.Nil(t, row.ReferrerHostname)
		assert.Nil(t, row.ReferrerPathname)
	})

	t.Run("folds a ping into the prior load", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(postJSON(t, "/x/api/v1/events", trackPayload("load", "example.com")), 30000)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		ping := trackPayload("ping", "example.com")
		ping["inactiveTime"] = 5
		resp, err = app.Test(postJSON(t, "/x/api/v1/events", ping), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var count int64
		require.NoError(t, db.Model(&pageviews.Pageview{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("returns 404 for unregistered hostname", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", trackPayload("load", "unregistered.com"))
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		payload := decodeBody(t, resp)
		assert.Equal(t, false, payload["success"])
		assert.NotEmpty(t, payload["error"])

		var count int64
		require.NoError(t, db.Model(&pageviews.Pageview{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("rejects unknown event type", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", trackPayload("click", "example.com"))
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects missing hostname", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		req := postJSON(t, "/x/api/v1/events", trackPayload("load", "  "))
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects inactiveTime above the cap", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		ping := trackPayload("ping", "example.com")
		ping["inactiveTime"] = config.GetConfig().MaxInactiveSeconds + 1
		resp, err := app.Test(postJSON(t, "/x/api/v1/events", ping), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var count int64
		require.NoError(t, db.Model(&pageviews.Pageview{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("rejects negative inactiveTime", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		exit := trackPayload("exit", "example.com")
		exit["inactiveTime"] = -1
		resp, err := app.Test(postJSON(t, "/x/api/v1/events", exit), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAggregateHandler(t *testing.T) {
	signBody := func(key string, body []byte) string {
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("runs aggregation for a signed request", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		cfg := config.GetConfig()
		cfg.SigningKey = "test-signing-key"
		t.Cleanup(func() { cfg.SigningKey = "" })

		site := testsupport.CreateTestSite(db, "example.com")
		now := time.Now().UTC()
		view := pageviews.Pageview{
			ID:               "pv-agg-1",
			SiteID:           site.ID,
			Hostname:         site.Hostname,
			Pathname:         "/",
			VisitorSignature: "sig-agg-1",
			Browser:          "Chrome",
			OperatingSystem:  "Windows",
			Duration:         12,
			DedupHash:        "0123456789abcdef0123456789abcdef",
			CreatedAt:        now.Add(-5 * time.Minute),
		}
		require.NoError(t, db.Create(&view).Error)

		app := testsupport.CreateMinimalTestApp(t, db)

		body := []byte(`{}`)
		req := httptest.NewRequest("POST", "/x/api/v1/aggregate", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", signBody("test-signing-key", body))

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		payload := decodeBody(t, resp)
		assert.Equal(t, true, payload["success"])

		var count int64
		require.NoError(t, db.Model(&rollups.SiteStat{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rejects a missing signature", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		cfg := config.GetConfig()
		cfg.SigningKey = "test-signing-key"
		t.Cleanup(func() { cfg.SigningKey = "" })

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("POST", "/x/api/v1/aggregate", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects an invalid signature", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		cfg := config.GetConfig()
		cfg.SigningKey = "test-signing-key"
		t.Cleanup(func() { cfg.SigningKey = "" })

		app := testsupport.CreateMinimalTestApp(t, db)

		body := []byte(`{}`)
		req := httptest.NewRequest("POST", "/x/api/v1/aggregate", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", signBody("wrong-key", body))

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejects when no signing key is configured", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)

		app := testsupport.CreateMinimalTestApp(t, db)

		body := []byte(`{}`)
		req := httptest.NewRequest("POST", "/x/api/v1/aggregate", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", signBody("anything", body))

		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSiteHandlers(t *testing.T) {
	withAdminKey := func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer "+testAdminKey)
		return req
	}

	t.Run("requires the admin API key", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.UpdateSetting(db, settings.KeyAdminAPIKey, testAdminKey))

		app := testsupport.CreateMinimalTestApp(t, db)

		req := httptest.NewRequest("GET", "/x/api/v1/sites", nil)
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		req = httptest.NewRequest("GET", "/x/api/v1/sites", nil)
		req.Header.Set("Authorization", "Bearer wrong-key")
		resp, err = app.Test(req, 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("creates and lists sites", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.UpdateSetting(db, settings.KeyAdminAPIKey, testAdminKey))

		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(withAdminKey(postJSON(t, "/x/api/v1/sites", map[string]interface{}{
			"name":     "Example",
			"hostname": "Example.COM",
		})), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		created := decodeBody(t, resp)
		data := created["data"].(map[string]interface{})
		assert.Equal(t, "example.com", data["hostname"])
		assert.Equal(t, "Example", data["name"])

		// Duplicate hostname conflicts
		resp, err = app.Test(withAdminKey(postJSON(t, "/x/api/v1/sites", map[string]interface{}{
			"hostname": "example.com",
		})), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, err = app.Test(withAdminKey(httptest.NewRequest("GET", "/x/api/v1/sites", nil)), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		listed := decodeBody(t, resp)
		items := listed["data"].([]interface{})
		assert.Len(t, items, 1)
	})

	t.Run("renames a site", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.UpdateSetting(db, settings.KeyAdminAPIKey, testAdminKey))

		site := testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(withAdminKey(postJSON(t, "/x/api/v1/sites/"+site.ID, map[string]interface{}{
			"name": "Renamed",
		})), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = app.Test(withAdminKey(postJSON(t, "/x/api/v1/sites/missing-id", map[string]interface{}{
			"name": "Renamed",
		})), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestStatsHandler(t *testing.T) {
	withAdminKey := func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer "+testAdminKey)
		return req
	}

	t.Run("returns rollup rows for a dimension", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.UpdateSetting(db, settings.KeyAdminAPIKey, testAdminKey))

		site := testsupport.CreateTestSite(db, "example.com")
		hour := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour)
		require.NoError(t, db.Create(&rollups.SiteStat{
			SiteID: site.ID, PageViewsCount: 10, VisitorsCount: 4, AvgDuration: 30, Hour: hour,
		}).Error)
		require.NoError(t, db.Create(&rollups.PageStat{
			SiteID: site.ID, Hostname: "example.com", Pathname: "/pricing",
			PageViewsCount: 3, VisitorsCount: 2, AvgDuration: 20, Hour: hour,
		}).Error)

		app := testsupport.CreateMinimalTestApp(t, db)

		path := fmt.Sprintf("/x/api/v1/sites/%s/stats/site", site.ID)
		resp, err := app.Test(withAdminKey(httptest.NewRequest("GET", path, nil)), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		payload := decodeBody(t, resp)
		assert.Equal(t, true, payload["success"])
		rows := payload["data"].([]interface{})
		require.Len(t, rows, 1)
		row := rows[0].(map[string]interface{})
		assert.Equal(t, float64(10), row["page_views_count"])
		assert.Equal(t, float64(4), row["visitors_count"])

		// Pathname narrowing on the pages dimension
		path = fmt.Sprintf("/x/api/v1/sites/%s/stats/pages?pathname=/pricing", site.ID)
		resp, err = app.Test(withAdminKey(httptest.NewRequest("GET", path, nil)), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		payload = decodeBody(t, resp)
		assert.Len(t, payload["data"].([]interface{}), 1)

		path = fmt.Sprintf("/x/api/v1/sites/%s/stats/pages?pathname=/other", site.ID)
		resp, err = app.Test(withAdminKey(httptest.NewRequest("GET", path, nil)), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		payload = decodeBody(t, resp)
		assert.Len(t, payload["data"].([]interface{}), 0)
	})

	t.Run("honors an explicit time range", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.UpdateSetting(db, settings.KeyAdminAPIKey, testAdminKey))

		site := testsupport.CreateTestSite(db, "example.com")
		old := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
		require.NoError(t, db.Create(&rollups.SiteStat{
			SiteID: site.ID, PageViewsCount: 7, VisitorsCount: 3, Hour: old,
		}).Error)

		app := testsupport.CreateMinimalTestApp(t, db)

		path := fmt.Sprintf("/x/api/v1/sites/%s/stats/site?from=%s&to=%s", site.ID,
			"2026-01-10T00:00:00Z", "2026-01-11T00:00:00Z")
		resp, err := app.Test(withAdminKey(httptest.NewRequest("GET", path, nil)), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		payload := decodeBody(t, resp)
		assert.Len(t, payload["data"].([]interface{}), 1)

		// Default range (last 24h) excludes the old bucket
		path = fmt.Sprintf("/x/api/v1/sites/%s/stats/site", site.ID)
		resp, err = app.Test(withAdminKey(httptest.NewRequest("GET", path, nil)), 30000)
		require.NoError(t, err)
		payload = decodeBody(t, resp)
		assert.Len(t, payload["data"].([]interface{}), 0)
	})

	t.Run("rejects an unknown dimension", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.UpdateSetting(db, settings.KeyAdminAPIKey, testAdminKey))

		site := testsupport.CreateTestSite(db, "example.com")
		app := testsupport.CreateMinimalTestApp(t, db)

		path := fmt.Sprintf("/x/api/v1/sites/%s/stats/sessions", site.ID)
		resp, err := app.Test(withAdminKey(httptest.NewRequest("GET", path, nil)), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("returns 404 for an unknown site", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.UpdateSetting(db, settings.KeyAdminAPIKey, testAdminKey))

		app := testsupport.CreateMinimalTestApp(t, db)

		resp, err := app.Test(withAdminKey(httptest.NewRequest("GET", "/x/api/v1/sites/missing/stats/site", nil)), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
