package governor

import (
	"log"
	"runtime"

	"interactived/platform"
)

// queueSpeedChange marks cpu's policy dirty and wakes the speed-change
// worker, mirroring cpufreq_interactive_speedchange_task's wake_up_process
// pattern: any number of cores can queue between wake-ups and the worker
// only ever does one pass per wake.
func (c *ControllerContext) queueSpeedChange(cpu int) {
	c.speedchangeMu.Lock()
	c.speedchangeSet[cpu] = struct{}{}
	c.speedchangeMu.Unlock()

	select {
	case c.speedchangeWake <- struct{}{}:
	default:
	}
}

// runSpeedChangeWorker is the goroutine started by Start: it blocks on
// speedchangeWake, drains the dirty-CPU set, and for every policy that
// had a dirty member recomputes cluster_max (the highest target_freq
// among every CPU sharing that policy) and pushes it down through
// Platform.Freq (spec §4.4). It first locks itself to its OS thread and
// asks Platform.Priority for realtime scheduling on that thread; a failure
// (e.g. EPERM for an unprivileged daemon) is logged and the worker runs
// at the default scheduling class.
func (c *ControllerContext) runSpeedChangeWorker() {
	// The thread is never unlocked, so it exits with the goroutine rather
	// than returning to the runtime's pool with a realtime class.
	runtime.LockOSThread()
	if c.Platform.Priority != nil {
		if err := c.Platform.Priority.SetRealtime(); err != nil {
			log.Printf("governor: speed-change worker realtime priority: %v", err)
		}
	}
	for {
		select {
		case <-c.stopWorkers:
			return
		case <-c.speedchangeWake:
			c.drainSpeedChanges()
		}
	}
}

func (c *ControllerContext) drainSpeedChanges() {
	c.speedchangeMu.Lock()
	dirtyCPUs := c.speedchangeSet
	c.speedchangeSet = make(map[int]struct{})
	c.speedchangeMu.Unlock()

	dirtyPolicies := make(map[int]struct{})
	for cpu := range dirtyCPUs {
		if core, ok := c.Cores[cpu]; ok {
			dirtyPolicies[core.Policy.ID] = struct{}{}
		}
	}

	for policyID := range dirtyPolicies {
		policy := c.Policies[policyID]
		if policy == nil {
			continue
		}
		clusterMax := uint32(0)
		for _, cpu := range policy.CPUs {
			core := c.Cores[cpu]
			if core == nil {
				continue
			}
			core.loadLock.Lock()
			if core.gate.Enabled() && core.targetFreq > clusterMax {
				clusterMax = core.targetFreq
			}
			core.loadLock.Unlock()
		}
		if clusterMax == 0 {
			continue
		}
		// Spec §4.4 step 3: round down to the highest table entry at or
		// below cluster_max, not up — cluster_max is already a member of
		// the table (some core's already-quantized target_freq), so RelH
		// vs RelL usually lands on the same entry, but RelH is what the
		// driver call specifies.
		if err := c.Platform.Freq.SetFrequency(policyID, clusterMax, platform.RelH); err != nil {
			continue
		}

		// POSTCHANGE notifier (spec §4.4): the hardware for this policy
		// just moved to clusterMax, so every CPU sharing it — not only
		// the one whose target_freq drove the change — must flush
		// whatever active time it accrued at the old curFreq into
		// cputime_speedadj before curFreq is updated, or that segment
		// would be mis-attributed to the new rate.
		gpuIdle := c.gpuIdle.Load()
		for _, cpu := range policy.CPUs {
			core := c.Cores[cpu]
			if core == nil {
				continue
			}
			core.loadLock.Lock()
			c.reanchor(core, !gpuIdle)
			core.curFreq = clusterMax
			core.loadLock.Unlock()
		}
	}
}
