package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepulse/internal/testsupport"
)

func TestHealthEndpoint(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	app := testsupport.CreateMinimalTestApp(t, db)

	for _, method := range []string{"GET", "HEAD"} {
		resp, err := app.Test(httptest.NewRequest(method, "/_health", nil), 30000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, method)
	}
}
