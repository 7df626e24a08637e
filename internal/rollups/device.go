package rollups

import (
	"strconv"
	"strings"
)

// Device classes derived from viewport width.
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
	DeviceUnknown = "Unknown"
)

// Bootstrap-style breakpoints: below 576px is a phone, below 992px a
// tablet, everything wider a desktop.
const (
	mobileMaxWidth = 576
	tabletMaxWidth = 992
)

// DeviceClassFor maps a stored "WxH" screen size to a device class.
// A missing or malformed value classifies as Unknown rather than being
// misread as a tiny screen.
func DeviceClassFor(screenSize *string) string {
	if screenSize == nil {
		return DeviceUnknown
	}

	parts := strings.SplitN(strings.ToLower(*screenSize), "x", 2)
	if len(parts) != 2 {
		return DeviceUnknown
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || width <= 0 {
		return DeviceUnknown
	}

	switch {
	case width < mobileMaxWidth:
		return DeviceMobile
	case width < tabletMaxWidth:
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}
