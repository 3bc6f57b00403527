package governor

import (
	"time"

	"interactived/platform"
)

// idleHook implements spec §4.3's idle-enter/exit notifier. On IDLE_START,
// a core that isn't already parked at its policy's minimum gets the
// sampling timer armed if it isn't pending, so a core that goes idle right
// after a tick still gets evaluated at the next timer_rate boundary. On
// IDLE_END, a pending-but-already-expired timer is treated as having fired:
// both timers are stopped and Tick runs inline rather than waiting for the
// timer goroutine to catch up; otherwise the timer is armed if it wasn't
// already pending.
func (c *ControllerContext) idleHook(core *CoreState, ev platform.IdleEvent) {
	switch ev {
	case platform.IdleStart:
		core.loadLock.Lock()
		min, _, err := c.Platform.Freq.PolicyLimits(core.Policy.ID)
		atMin := err == nil && min != 0 && core.targetFreq == min
		pending := core.timerPending
		core.loadLock.Unlock()
		if atMin || pending {
			return
		}
		c.armTimerNow(core)

	case platform.IdleEnd:
		core.loadLock.Lock()
		pending := core.timerPending
		expired := pending && core.timer != nil && !core.timer.Stop()
		core.loadLock.Unlock()

		switch {
		case expired:
			if core.slackTimer != nil {
				core.slackTimer.Stop()
			}
			core.loadLock.Lock()
			core.timerPending = false
			core.loadLock.Unlock()
			_ = c.Tick(core)
		case !pending:
			c.armTimerNow(core)
		}
	}
}

// armTimerNow arms a core's sampling timer at its active profile's
// timer_rate, used by the idle hook to arm a timer that rearmTimer left
// stopped (spec §4.3 step 13's no-rearm-at-max case).
func (c *ControllerContext) armTimerNow(core *CoreState) {
	core.loadLock.Lock()
	defer core.loadLock.Unlock()
	if core.timer == nil {
		return
	}
	profile := c.activeProfile(c.Clock.Now())
	if _, isBoosted := c.boosted(c.Clock.Now()); isBoosted {
		profile = c.Busy
	}
	rate := profile.TimerRate()
	if rate <= 0 {
		rate = 20 * time.Millisecond
	}
	core.timer.Reset(rate)
	core.timerPending = true
}
