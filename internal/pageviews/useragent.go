package pageviews

import "strings"

// Classification fallback when nothing matches.
const (
	UnknownBrowser         = "Unknown"
	UnknownOperatingSystem = "Unknown"
)

// browserRules are checked in order; the first substring hit wins.
// Chromium-based browsers embed "safari" and Edge embeds "chrome", so
// the more specific tokens come first.
var browserRules = []struct {
	token string
	name  string
}{
	{"edg/", "Edge"},
	{"trident/", "Internet Explorer"},
	{"firefox/", "Firefox"},
	{"chrome/", "Chrome"},
	{"safari/", "Safari"},
}

// osRules are checked in order. Android UAs contain "linux" and iOS UAs
// contain "mac os", so the mobile tokens come first.
var osRules = []struct {
	token string
	name  string
}{
	{"windows", "Windows"},
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"mac os", "MacOS"},
	{"linux", "Linux"},
}

// BrowserFor classifies a raw User-Agent header into a browser family.
func BrowserFor(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, rule := range browserRules {
		if strings.Contains(ua, rule.token) {
			return rule.name
		}
	}
	return UnknownBrowser
}

// OperatingSystemFor classifies a raw User-Agent header into an OS family.
func OperatingSystemFor(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, rule := range osRules {
		if strings.Contains(ua, rule.token) {
			return rule.name
		}
	}
	return UnknownOperatingSystem
}
