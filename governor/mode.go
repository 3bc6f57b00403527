package governor

import (
	"time"

	"interactived/platform"
)

// selectFreq resolves the per-tick frequency choice of spec §4.3: below
// go_hispeed_load the core tracks load off the active profile's
// target_loads curve via chooseFreq; at or above it (or while boosted)
// the core jumps straight to hispeed_freq, refining upward via
// chooseFreq only once it is already running at or above hispeed_freq.
func selectFreq(profile *TuningProfile, currentFreq uint32, load uint32, isBoosted bool, loadAdjFreq uint64, chooseFreq func(rel platform.Relation) uint32) uint32 {
	hispeed := profile.HispeedFreq()

	if load >= profile.GoHispeedLoad() || isBoosted {
		if hispeed == 0 || currentFreq < hispeed {
			return hispeed
		}
		newFreq := chooseFreq(platform.RelL)
		if newFreq < hispeed {
			newFreq = hispeed
		}
		return newFreq
	}

	return chooseFreq(platform.RelH)
}

// boosted reports whether a boostpulse window is currently live (spec
// §4.2's boostpulse_endtime, the per-core mode-selector signal — distinct
// from the hot-plug decider's own coreboost_endtime), and if so the
// floor frequency it imposes: boost_values carries only an alternate
// target_loads curve (spec §6), so the floor itself is always
// busy_values' hispeed_freq.
func (c *ControllerContext) boosted(now time.Time) (floor uint32, active bool) {
	pulseEnd := time.Unix(0, c.boostpulseEndNS.Load())
	if now.Before(pulseEnd) {
		return c.Busy.HispeedFreq(), true
	}
	return 0, false
}

// activeProfile resolves which TuningProfile currently governs
// per-core frequency selection (spec §4.2): gpu_idle always wins and
// selects idle_values; otherwise a live boostpulse selects boost_values
// (target_loads only — other knobs still come from busy_values, handled
// by the caller); otherwise busy_values.
func (c *ControllerContext) activeProfile(now time.Time) *TuningProfile {
	if c.gpuIdle.Load() {
		return c.Idle
	}
	pulseEnd := time.Unix(0, c.boostpulseEndNS.Load())
	if now.Before(pulseEnd) {
		return c.Boost
	}
	return c.Busy
}

// hotplugMode is which row of spec §4.5's up_val/down_val table applies
// this tick.
type hotplugMode int

const (
	modeBusy hotplugMode = iota
	modeGPUIdle
	modeTouchBoost
)

// hotplugCounterStep is the (up_val, down_val) counter-advance pair for
// a hotplugMode (spec §4.2's table).
func hotplugCounterStep(mode hotplugMode) (up, down int32) {
	switch mode {
	case modeGPUIdle:
		return 3, 6
	case modeTouchBoost:
		return 15, 7
	default:
		return 10, 5
	}
}

// hotplugThresholds is spec §4.5's 2×4×2 `U(n)`/`D(n)` table: row 0 is
// GPU-idle, row 1 is GPU-busy; each indexed by online core count
// 1..ActiveCores. n=1's up entry is the zero value: any load at all
// satisfies avg >= up, so a 1-core cluster always brings a second core up
// rather than being stuck below cores_on_touch.
var hotplugThresholds = [2][ActiveCores + 1]struct{ up, down uint32 }{
	// GPU idle
	{
		1: {0, 80},
		2: {40, 85},
		3: {50, 90},
		4: {60, 100},
	},
	// GPU busy
	{
		1: {0, 60},
		2: {30, 60},
		3: {30, 65},
		4: {40, 100},
	},
}

func hotplugThreshold(gpuIdle bool, n int) (up, down uint32) {
	if n < 1 {
		n = 1
	}
	if n > ActiveCores {
		n = ActiveCores
	}
	row := 1
	if gpuIdle {
		row = 0
	}
	t := hotplugThresholds[row][n]
	return t.up, t.down
}
