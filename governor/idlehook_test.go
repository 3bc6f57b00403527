package governor

import (
	"testing"
	"time"

	"interactived/platform"
)

func newIdleHookController(t *testing.T) (*ControllerContext, *platform.Sim, *fakeClock) {
	t.Helper()
	table := []uint32{300000, 600000, 900000, 1200000}
	sim := platform.NewSim(map[int][]int{0: {0}}, table)
	clock := newFakeClock()
	ctrl := NewController(sim.Platform(), map[int][]int{0: {0}}, clock)

	ctrl.Busy.SetHispeedFreq(900000)
	ctrl.Busy.SetGoHispeedLoad(85)
	ctrl.Busy.SetTargetLoads([]uint32{90})

	core := ctrl.Cores[0]
	core.gate.Set(true)
	core.targetFreq = table[0]
	core.curFreq = table[0]
	// A no-op callback: these tests drive idleHook directly and only care
	// about the timer's armed/expired state, not the production timer
	// callback's own Tick-and-rearm behavior.
	core.timer = time.AfterFunc(time.Hour, func() {})
	core.timer.Stop()

	return ctrl, sim, clock
}

func TestIdleStartArmsTimerWhenNotAtPolicyMin(t *testing.T) {
	ctrl, _, _ := newIdleHookController(t)
	core := ctrl.Cores[0]
	core.targetFreq = 600000 // not at policy min (300000)

	ctrl.idleHook(core, platform.IdleStart)

	core.loadLock.Lock()
	pending := core.timerPending
	core.loadLock.Unlock()
	if !pending {
		t.Errorf("IDLE_START on a core above policy.min did not arm the timer")
	}
}

func TestIdleStartNoopsAtPolicyMin(t *testing.T) {
	ctrl, _, _ := newIdleHookController(t)
	core := ctrl.Cores[0]
	core.targetFreq = 300000 // policy min

	ctrl.idleHook(core, platform.IdleStart)

	core.loadLock.Lock()
	pending := core.timerPending
	core.loadLock.Unlock()
	if pending {
		t.Errorf("IDLE_START armed the timer for a core already parked at policy.min")
	}
}

func TestIdleEndRunsTickInlineWhenTimerAlreadyExpired(t *testing.T) {
	ctrl, sim, clock := newIdleHookController(t)
	core := ctrl.Cores[0]

	// Baseline tick establishes haveSample so the next one measures a
	// real delta instead of anchoring for the first time.
	if err := ctrl.Tick(core); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}

	core.loadLock.Lock()
	core.timer.Reset(time.Nanosecond)
	core.timerPending = true
	core.loadLock.Unlock()
	time.Sleep(time.Millisecond) // let the real timer actually expire

	sim.AdvanceIdle(0, 20*time.Millisecond, 2*time.Millisecond) // ~90% busy
	clock.Advance(20 * time.Millisecond)

	ctrl.idleHook(core, platform.IdleEnd)

	core.loadLock.Lock()
	freq := core.targetFreq
	core.loadLock.Unlock()
	if freq <= 300000 {
		t.Errorf("IDLE_END with an expired timer did not run Tick inline: targetFreq = %d", freq)
	}
}

func TestIdleEndArmsTimerWhenNotPending(t *testing.T) {
	ctrl, _, _ := newIdleHookController(t)
	core := ctrl.Cores[0]

	ctrl.idleHook(core, platform.IdleEnd)

	core.loadLock.Lock()
	pending := core.timerPending
	core.loadLock.Unlock()
	if !pending {
		t.Errorf("IDLE_END did not arm a timer that wasn't already pending")
	}
}
