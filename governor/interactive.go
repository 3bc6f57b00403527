package governor

import (
	"time"

	"interactived/platform"
)

// maxChooseFreqIterations bounds choose_freq's convergence loop. The
// frequency table is small (tens of entries at most) so a handful of
// iterations is always enough to settle; bounding it turns a
// mis-specified target_loads curve into a slightly-off answer instead of
// an infinite loop (spec §9's oscillation-risk note).
const maxChooseFreqIterations = 16

// chooseFreq repeatedly re-evaluates which table entry satisfies
// target_loads at its own frequency, the way the original driver avoids
// settling on a frequency whose target load doesn't match the bracket it
// landed in. It converges when a candidate reproduces itself. loadAdjFreq
// is spec §4.3's loadadjfreq (cputime_speedadj/Δt × 100 — i.e. already
// load-percent-times-frequency, not a plain percent-busy figure), so a
// candidate frequency is loadAdjFreq/targetLoad with no extra scaling.
func chooseFreq(profile *TuningProfile, table []uint32, loadAdjFreq uint64, rel platform.Relation) uint32 {
	if len(table) == 0 {
		return 0
	}
	prev := table[0]
	for i := 0; i < maxChooseFreqIterations; i++ {
		targetLoad := TargetLoadAt(profile.TargetLoads(), prev)
		if targetLoad == 0 {
			targetLoad = 1
		}
		candidate := uint32(loadAdjFreq / uint64(targetLoad))
		next, err := targetInTable(table, candidate, rel)
		if err != nil {
			return prev
		}
		if next == prev {
			return next
		}
		prev = next
	}
	return prev
}

// Tick runs one load-sampler + mode-selector pass for a single core
// (spec §4.1-§4.3): sample load, resolve the mode-selected target
// frequency, round it into the hardware table, and, if it differs from
// the core's last requested frequency and min_sample_time/
// above_hispeed_delay allow it, queue the core onto the speed-change
// worker. It is the direct translation of cpufreq_interactive_timer and
// is exercised directly by tests as well as by the production timer
// callback.
func (c *ControllerContext) Tick(core *CoreState) error {
	core.loadLock.Lock()
	defer core.loadLock.Unlock()

	enabled, ok := core.gate.TryAcquire()
	if !ok || !enabled {
		return nil
	}

	if c.Platform.GPU != nil {
		c.gpuIdle.Store(c.Platform.GPU.Idle())
	}
	gpuIdle := c.gpuIdle.Load()

	result, err := c.sample(core, !gpuIdle)
	if err != nil {
		return err
	}
	core.lastLoad = result.cpuLoad

	// loadadjfreq (spec §4.1/§4.3): cputime_speedadj/Δt × 100, the
	// accumulator sample() has been building since the last time this
	// tick (or a POSTCHANGE re-anchor) cleared it. Dividing by the
	// core's curFreq (policy.current_freq) turns it back into a load
	// percentage for go_hispeed_load comparison, the way
	// cpufreq_interactive_timer derives cpu_load from loadadjfreq.
	var loadAdjFreq uint64
	if dtNS := uint64(result.now.Sub(core.speedAdjTimestamp).Nanoseconds()); dtNS > 0 {
		loadAdjFreq = core.speedAdjNS * 100 / dtNS
	}
	core.speedAdjNS = 0
	core.speedAdjTimestamp = result.now

	var load uint32
	if core.curFreq > 0 {
		load = uint32(loadAdjFreq / uint64(core.curFreq))
	}

	// profile selects the target_loads curve (busy/idle/boost); knobProfile
	// is every other tunable, which boost_values never carries (spec
	// §4.2) so a boosted tick still reads hispeed_freq, go_hispeed_load,
	// min_sample_time and above_hispeed_delay off busy_values.
	profile := c.activeProfile(result.now)
	floor, isBoosted := c.boosted(result.now)
	knobProfile := profile
	if isBoosted {
		knobProfile = c.Busy
	}

	table, err := c.Platform.Freq.FreqTable(core.Policy.ID)
	if err != nil {
		return err
	}

	newFreq := selectFreq(knobProfile, core.targetFreq, load, isBoosted, loadAdjFreq, func(rel platform.Relation) uint32 {
		return chooseFreq(profile, table, loadAdjFreq, rel)
	})
	if isBoosted && newFreq < floor {
		newFreq = floor
	}

	// Floor validation (spec §4.3): a frequency above hispeed_freq becomes
	// the core's floor, and the core may not drop below that floor until
	// min_sample_time has elapsed since it was set, guarding against a
	// single idle tick undoing a legitimate ramp-up.
	if core.floorFreq != 0 && newFreq < core.floorFreq {
		if result.now.Sub(core.floorValidateTime) < knobProfile.MinSampleTime() {
			newFreq = core.floorFreq
		}
	}

	if newFreq >= knobProfile.HispeedFreq() && knobProfile.HispeedFreq() != 0 {
		if core.hispeedValidateTime.IsZero() || result.now.Sub(core.hispeedValidateTime) >= knobProfile.AboveHispeedDelay() {
			core.hispeedValidateTime = result.now
		} else if core.targetFreq >= knobProfile.HispeedFreq() && newFreq > core.targetFreq {
			// Still inside the above_hispeed_delay window: hold at the
			// last requested frequency rather than ramping further.
			newFreq = core.targetFreq
		}
	}

	if newFreq > knobProfile.HispeedFreq() && (newFreq != core.floorFreq || core.floorValidateTime.IsZero()) {
		core.floorFreq = newFreq
		core.floorValidateTime = result.now
	}

	if newFreq == core.targetFreq {
		c.rearmTimer(core, knobProfile)
		return nil
	}

	core.targetFreq = newFreq
	c.queueSpeedChange(core.CPU)
	c.rearmTimer(core, knobProfile)
	return nil
}

// rearmTimer reschedules the core's sampling timer at timer_rate, the
// per-CPU pinned deferrable timer spec §5 describes. timer_slack is not
// read here: no slack timer is armed, and a negative timer_slack does not
// change when or whether the sampling timer is rearmed.
//
// Per spec §4.3 step 13, a core parked at its policy's max frequency does
// not get the timer rearmed: it sits until the idle hook's IDLE_END fires
// the next tick. core.timerPending tracks this so the idle hook knows
// whether it needs to arm the timer itself.
func (c *ControllerContext) rearmTimer(core *CoreState, profile *TuningProfile) {
	if core.timer == nil {
		return
	}
	if _, max, err := c.Platform.Freq.PolicyLimits(core.Policy.ID); err == nil && max != 0 && core.targetFreq == max {
		core.timer.Stop()
		core.timerPending = false
		return
	}
	rate := profile.TimerRate()
	if rate <= 0 {
		rate = 20 * time.Millisecond
	}
	core.timer.Reset(rate)
	core.timerPending = true
}
