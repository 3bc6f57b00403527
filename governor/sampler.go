package governor

import "time"

// sampleResult is one load sample (spec §4.1): cpuLoad is the
// percent-busy figure over the window since the core's last sample (a
// simple instantaneous estimate, used only by the hot-plug decider and
// telemetry — distinct from the load-adjusted figure the governor's own
// frequency selection acts on, which is derived from cputime_speedadj in
// Tick).
type sampleResult struct {
	now         time.Time
	cpuLoad     uint32
	deltaIdleNS uint64
	deltaWallNS uint64
}

// sample reads the platform's idle-time source, diffs it against the
// core's last reading, stores the new reading, and — per spec §4.1 —
// adds active_time × curFreq to cputime_speedadj. Must be called with
// core.loadLock held. The first call for a core after it starts has no
// prior reading to diff against, so it reports zero load and only
// anchors cputime_speedadj_timestamp.
func (c *ControllerContext) sample(core *CoreState, includeIOWait bool) (sampleResult, error) {
	now := c.Clock.Now()
	idleNS, wallNS, err := c.Platform.Idle.IdleNS(core.CPU, includeIOWait)
	if err != nil {
		return sampleResult{}, err
	}

	var result sampleResult
	result.now = now

	if !core.haveSample {
		core.speedAdjTimestamp = now
	}

	if core.haveSample && wallNS > core.lastWallNS {
		deltaWall := wallNS - core.lastWallNS
		deltaIdle := idleNS - core.timeInIdleNS
		if deltaIdle > deltaWall {
			deltaIdle = deltaWall
		}
		active := deltaWall - deltaIdle
		result.deltaIdleNS = deltaIdle
		result.deltaWallNS = deltaWall
		result.cpuLoad = uint32(active * 100 / deltaWall)
		core.speedAdjNS += active * uint64(core.curFreq)
	}

	core.timeInIdleNS = idleNS
	core.lastWallNS = wallNS
	core.haveSample = true

	return result, nil
}

// reanchor is the frequency-change notifier's POSTCHANGE handler (spec
// §4.4): it calls the sampler to flush active time accrued at the old
// frequency into cputime_speedadj before curFreq changes, so the
// accumulator never misattributes a segment that actually ran at a
// different rate than core.curFreq records. Must be called with
// core.loadLock held; the caller updates curFreq immediately after.
func (c *ControllerContext) reanchor(core *CoreState, includeIOWait bool) {
	_, _ = c.sample(core, includeIOWait)
}
