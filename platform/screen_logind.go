//go:build linux

package platform

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// backlightScreen treats the first backlight device's bl_power file as the
// portable stand-in for the early-suspend/late-resume "screen on/off"
// signal spec §1 delegates to the platform: bl_power reads 0 when the
// panel is on and nonzero (commonly 4, FB_BLANK_POWERDOWN) once the
// display has been blanked for suspend.
type backlightScreen struct {
	path  string
	cache *CachedValue[bool]
}

// NewBacklightScreenMonitor scans /sys/class/backlight for a device and
// wraps its bl_power file. ok is false if the host has no backlight
// (headless server, desktop workstation) — callers should fall back to
// always-on in that case.
func NewBacklightScreenMonitor() (mon ScreenMonitor, ok bool) {
	matches, _ := filepath.Glob("/sys/class/backlight/*/bl_power")
	if len(matches) == 0 {
		return nil, false
	}
	return &backlightScreen{
		path:  matches[0],
		cache: NewCachedValue[bool](1 * time.Second),
	}, true
}

func (b *backlightScreen) Locked() bool {
	return b.cache.Get(b.fetch)
}

func (b *backlightScreen) fetch() bool {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return false
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	return v != 0
}
