package governor

import (
	"context"
	"fmt"
	"time"

	"interactived/platform"
)

// hotplugTickInterval is the fixed 30ms cadence of the ordered hot-plug
// decider (spec §4.5).
const hotplugTickInterval = 30 * time.Millisecond

// Start brings the governor up (spec §4.6's START): every core's enable
// gate opens, its sampling timer starts ticking at its profile's
// timer_rate, and the speed-change worker and hot-plug decider goroutines
// launch. Start is idempotent; calling it twice is a no-op.
func (c *ControllerContext) Start() {
	c.govLock.Lock()
	defer c.govLock.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.stopWorkers = make(chan struct{})

	for _, core := range c.Cores {
		core := core
		core.loadLock.Lock()
		core.gate.Set(true)
		core.floorFreq = 0
		core.floorValidateTime = time.Time{}
		core.hispeedValidateTime = time.Time{}
		core.haveSample = false
		core.speedAdjNS = 0
		core.speedAdjTimestamp = time.Time{}
		if cur, err := c.Platform.Freq.CurrentFreq(core.Policy.ID); err == nil && cur != 0 {
			core.curFreq = cur
		} else {
			core.curFreq = core.targetFreq
		}
		profile := c.activeProfile(c.Clock.Now())
		rate := profile.TimerRate()
		if rate <= 0 {
			rate = 20 * time.Millisecond
		}
		core.timer = time.AfterFunc(rate, func() { c.timerFire(core) })
		core.timerPending = true
		if c.Platform.IdleNotif != nil {
			core.idleUnsub = c.Platform.IdleNotif.Subscribe(core.CPU, func(ev platform.IdleEvent) {
				c.idleHook(core, ev)
			})
		}
		core.loadLock.Unlock()
	}

	go c.runSpeedChangeWorker()
	go c.runHotplugLoop()
}

// timerFire is the per-core timer callback: run one tick and let Tick
// itself rearm the timer at the (possibly now-different) timer_rate.
func (c *ControllerContext) timerFire(core *CoreState) {
	select {
	case <-c.stopWorkers:
		return
	default:
	}
	_ = c.Tick(core)
}

// runHotplugLoop ticks the ordered hot-plug decider every
// hotplugTickInterval until Stop fires stopWorkers.
func (c *ControllerContext) runHotplugLoop() {
	ticker := time.NewTicker(hotplugTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopWorkers:
			return
		case <-ticker.C:
			c.hotplugTick(c.allCPUs())
		}
	}
}

// Stop brings the governor down (spec §4.6's STOP): every core's enable
// gate closes (blocking until any in-flight tick finishes), timers are
// stopped, and the speed-change and hot-plug goroutines are told to
// exit. Stop is idempotent.
func (c *ControllerContext) Stop() {
	c.govLock.Lock()
	defer c.govLock.Unlock()
	if !c.started {
		return
	}
	c.started = false

	for _, core := range c.Cores {
		core.gate.Set(false)
		core.loadLock.Lock()
		if core.timer != nil {
			core.timer.Stop()
		}
		if core.slackTimer != nil {
			core.slackTimer.Stop()
		}
		unsub := core.idleUnsub
		core.idleUnsub = nil
		core.loadLock.Unlock()
		if unsub != nil {
			unsub()
		}
	}

	close(c.stopWorkers)
}

// Limits applies a new [min, max] to a policy (spec §4.6's LIMITS),
// clamping every core sharing that policy's target frequency into range
// and waking the speed-change worker so the hardware catches up.
func (c *ControllerContext) Limits(policyID int, min, max uint32) error {
	policy := c.Policies[policyID]
	if policy == nil {
		return errPolicyNotFound(policyID)
	}

	policy.mu.Lock()
	policy.min, policy.max = min, max
	policy.mu.Unlock()

	for _, cpu := range policy.CPUs {
		core := c.Cores[cpu]
		if core == nil {
			continue
		}
		core.loadLock.Lock()
		clamped := core.targetFreq
		if clamped < min {
			clamped = min
		}
		if clamped > max {
			clamped = max
		}
		changed := clamped != core.targetFreq
		core.targetFreq = clamped
		core.loadLock.Unlock()
		if changed {
			c.queueSpeedChange(cpu)
		}
	}
	return nil
}

// Suspend is the early-suspend half of spec §4.6's suspend/resume pair:
// flush and cancel the hot-plug decider, offline every CPU with index >
// 0, and reset the hysteresis counters. Interactive governor timers are
// left to quiesce naturally as their CPUs go offline rather than being
// stopped here.
func (c *ControllerContext) Suspend(ctx context.Context) {
	c.govLock.Lock()
	wasStarted := c.started
	if wasStarted {
		close(c.stopWorkers)
		c.started = false
	}
	c.govLock.Unlock()

	online := c.Platform.Hotplug.OnlineCPUs()
	for _, cpu := range online {
		if cpu == 0 {
			continue
		}
		if err := c.Platform.Hotplug.CPUDown(cpu); err != nil {
			c.recordHotplugFailure(fmt.Sprintf("suspend: take cpu%d offline: %v", cpu, err))
		}
	}

	c.hotplugMu.Lock()
	c.firstCounter = 0
	c.thirdCounter = 0
	c.hotplugMu.Unlock()
}

// Resume is late-resume (spec §4.6): clears gpu_idle, re-arms the
// coreboost and boostpulse windows, brings two cores online, and
// restarts the governor's worker goroutines.
func (c *ControllerContext) Resume(ctx context.Context, max map[int]uint32) {
	now := c.Clock.Now()
	c.gpuIdle.Store(false)
	c.coreboostEndNS.Store(now.Add(BoostTime).UnixNano())

	dur := time.Duration(c.boostpulseDuration.Load())
	if dur <= 0 {
		dur = 80 * time.Millisecond
	}
	c.boostpulseEndNS.Store(now.Add(dur).UnixNano())

	for id, m := range max {
		policy := c.Policies[id]
		if policy == nil {
			continue
		}
		policy.mu.Lock()
		min := policy.min
		policy.mu.Unlock()
		_ = c.Limits(id, min, m)
	}

	allCPUs := c.allCPUs()
	online := c.Platform.Hotplug.OnlineCPUs()
	for len(online) < 2 && len(online) < len(allCPUs) {
		c.bringUpNext(allCPUs, online)
		online = c.Platform.Hotplug.OnlineCPUs()
	}

	c.Start()
}

type policyNotFoundError int

func (e policyNotFoundError) Error() string {
	return fmt.Sprintf("governor: no such policy %d", int(e))
}

func errPolicyNotFound(id int) error {
	return policyNotFoundError(id)
}
