package pageviews_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pagepulse/internal/pageviews"
)

func TestBrowserFor(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{
			name:      "Edge before Chrome",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36 Edg/120.0",
			expected:  "Edge",
		},
		{
			name:      "Internet Explorer",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Trident/7.0; rv:11.0) like Gecko",
			expected:  "Internet Explorer",
		},
		{
			name:      "Firefox",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			expected:  "Firefox",
		},
		{
			name:      "Chrome before Safari",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
			expected:  "Chrome",
		},
		{
			name:      "Safari",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Safari/604.1",
			expected:  "Safari",
		},
		{
			name:      "Case insensitive",
			userAgent: "MOZILLA/5.0 FIREFOX/121.0",
			expected:  "Firefox",
		},
		{
			name:      "Unrecognized",
			userAgent: "curl/8.4.0",
			expected:  "Unknown",
		},
		{
			name:      "Empty",
			userAgent: "",
			expected:  "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pageviews.BrowserFor(tt.userAgent))
		})
	}
}

func TestOperatingSystemFor(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		expected  string
	}{
		{
			name:      "Windows",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
			expected:  "Windows",
		},
		{
			name:      "Android before Linux",
			userAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 8) Chrome/120.0",
			expected:  "Android",
		},
		{
			name:      "iPhone before Mac",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Safari/604.1",
			expected:  "iOS",
		},
		{
			name:      "iPad",
			userAgent: "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) Safari/604.1",
			expected:  "iOS",
		},
		{
			name:      "MacOS",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
			expected:  "MacOS",
		},
		{
			name:      "Linux",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0",
			expected:  "Linux",
		},
		{
			name:      "Unrecognized",
			userAgent: "curl/8.4.0",
			expected:  "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pageviews.OperatingSystemFor(tt.userAgent))
		})
	}
}

func TestDedupHash(t *testing.T) {
	open := pageviews.DedupHash("site-1", "sig", "/pricing", false)
	exited := pageviews.DedupHash("site-1", "sig", "/pricing", true)

	assert.Len(t, open, 32)
	assert.NotEqual(t, open, exited)
	assert.Equal(t, open, pageviews.DedupHash("site-1", "sig", "/pricing", false))

	assert.NotEqual(t, open, pageviews.DedupHash("site-2", "sig", "/pricing", false))
	assert.NotEqual(t, open, pageviews.DedupHash("site-1", "other", "/pricing", false))
	assert.NotEqual(t, open, pageviews.DedupHash("site-1", "sig", "/", false))
}
