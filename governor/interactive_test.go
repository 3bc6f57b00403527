package governor

import (
	"testing"
	"time"

	"interactived/platform"
)

func newTestController(t *testing.T) (*ControllerContext, *platform.Sim, *fakeClock) {
	t.Helper()
	table := []uint32{300000, 600000, 900000, 1200000}
	sim := platform.NewSim(map[int][]int{0: {0, 1}}, table)
	clock := newFakeClock()
	ctrl := NewController(sim.Platform(), map[int][]int{0: {0, 1}}, clock)

	ctrl.Busy.SetHispeedFreq(900000)
	ctrl.Busy.SetGoHispeedLoad(85)
	ctrl.Busy.SetTargetLoads([]uint32{90})
	ctrl.Busy.SetMinSampleTime(0)
	ctrl.Busy.SetAboveHispeedDelay(0)

	core := ctrl.Cores[0]
	core.gate.Set(true)
	core.targetFreq = table[0]
	core.curFreq = table[0]

	return ctrl, sim, clock
}

func TestTickIdleStaysAtFloor(t *testing.T) {
	ctrl, sim, clock := newTestController(t)
	core := ctrl.Cores[0]

	if err := ctrl.Tick(core); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}

	for i := 0; i < 5; i++ {
		sim.AdvanceIdle(0, 20*time.Millisecond, 20*time.Millisecond) // fully idle
		clock.Advance(20 * time.Millisecond)
		if err := ctrl.Tick(core); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	if core.targetFreq != 300000 {
		t.Errorf("idle core drifted to %d, want floor 300000", core.targetFreq)
	}
}

func TestTickRampsUpUnderSustainedLoad(t *testing.T) {
	ctrl, sim, clock := newTestController(t)
	core := ctrl.Cores[0]

	if err := ctrl.Tick(core); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}
	baseline := core.targetFreq

	sim.AdvanceIdle(0, 20*time.Millisecond, 2*time.Millisecond) // ~90% busy
	clock.Advance(20 * time.Millisecond)
	if err := ctrl.Tick(core); err != nil {
		t.Fatalf("busy tick: %v", err)
	}

	if core.targetFreq <= baseline {
		t.Fatalf("targetFreq after sustained load = %d, want > baseline %d", core.targetFreq, baseline)
	}
	if core.targetFreq < ctrl.Busy.HispeedFreq() {
		t.Errorf("targetFreq after sustained load = %d, want >= hispeed_freq %d", core.targetFreq, ctrl.Busy.HispeedFreq())
	}
	peak := core.targetFreq

	sim.AdvanceIdle(0, 20*time.Millisecond, 19*time.Millisecond) // back to idle
	clock.Advance(20 * time.Millisecond)
	if err := ctrl.Tick(core); err != nil {
		t.Fatalf("cooldown tick: %v", err)
	}
	if core.targetFreq >= peak {
		t.Errorf("targetFreq after cooldown = %d, want < peak %d", core.targetFreq, peak)
	}
}

func TestBoostPulseForcesFloor(t *testing.T) {
	ctrl, sim, clock := newTestController(t)
	core := ctrl.Cores[0]

	if err := ctrl.Tick(core); err != nil {
		t.Fatalf("baseline tick: %v", err)
	}

	ctrl.SetBoostpulseDuration(100 * time.Millisecond)
	ctrl.BoostPulse()

	sim.AdvanceIdle(0, 20*time.Millisecond, 20*time.Millisecond) // idle, but boosted
	clock.Advance(20 * time.Millisecond)
	if err := ctrl.Tick(core); err != nil {
		t.Fatalf("boosted tick: %v", err)
	}

	if core.targetFreq < ctrl.Busy.HispeedFreq() {
		t.Errorf("boosted idle core settled at %d, want >= hispeed_freq %d", core.targetFreq, ctrl.Busy.HispeedFreq())
	}
}
