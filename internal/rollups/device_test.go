package rollups_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pagepulse/internal/rollups"
)

func strptr(s string) *string { return &s }

func TestDeviceClassFor(t *testing.T) {
	tests := []struct {
		name       string
		screenSize *string
		expected   string
	}{
		{"nil screen size", nil, "Unknown"},
		{"phone width", strptr("390x844"), "Mobile"},
		{"just below mobile boundary", strptr("575x800"), "Mobile"},
		{"mobile boundary is tablet", strptr("576x800"), "Tablet"},
		{"tablet width", strptr("768x1024"), "Tablet"},
		{"just below tablet boundary", strptr("991x600"), "Tablet"},
		{"tablet boundary is desktop", strptr("992x600"), "Desktop"},
		{"desktop width", strptr("1920x1080"), "Desktop"},
		{"uppercase separator", strptr("1280X720"), "Desktop"},
		{"missing separator", strptr("1920"), "Unknown"},
		{"non-numeric width", strptr("widex1080"), "Unknown"},
		{"zero width", strptr("0x600"), "Unknown"},
		{"negative width", strptr("-10x600"), "Unknown"},
		{"empty string", strptr(""), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, rollups.DeviceClassFor(tt.screenSize))
		})
	}
}

func TestTruncateToHour(t *testing.T) {
	tz, err := time.LoadLocation("America/New_York")
	assert.NoError(t, err)

	// 14:59:59 UTC is 09:59:59 in New York, bucketed to 09:00 local
	utc := time.Date(2026, 3, 1, 14, 59, 59, 0, time.UTC)
	got := rollups.TruncateToHour(utc, tz)

	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 0, got.Minute())
	assert.Equal(t, tz.String(), got.Location().String())

	// Two instants in the same local hour share a bucket
	other := time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, got, rollups.TruncateToHour(other, tz))
}
