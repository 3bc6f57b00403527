package governor

import (
	"testing"
	"time"

	"interactived/platform"
)

func TestDrainSpeedChangesUsesRelationHAndReanchorsClusterCurFreq(t *testing.T) {
	table := []uint32{300000, 600000, 900000, 1200000}
	policies := map[int][]int{0: {0, 1}}
	sim := platform.NewSim(policies, table)
	clock := newFakeClock()
	ctrl := NewController(sim.Platform(), policies, clock)

	for _, cpu := range []int{0, 1} {
		core := ctrl.Cores[cpu]
		core.gate.Set(true)
		core.curFreq = table[0]
		core.targetFreq = table[0]
		core.haveSample = false
	}

	// Prime both cores with a sample so reanchor has something to flush.
	for _, cpu := range []int{0, 1} {
		if _, err := ctrl.sample(ctrl.Cores[cpu], true); err != nil {
			t.Fatalf("prime sample cpu%d: %v", cpu, err)
		}
	}
	sim.AdvanceIdle(0, 10*time.Millisecond, 1*time.Millisecond)
	sim.AdvanceIdle(1, 10*time.Millisecond, 9*time.Millisecond)

	// CPU 0 wants the higher frequency; it should become cluster_max for
	// the shared policy and CPU 1 must be re-anchored too even though its
	// own target_freq never changed.
	ctrl.Cores[0].targetFreq = 900000
	ctrl.queueSpeedChange(0)

	ctrl.drainSpeedChanges()

	if len(sim.SetFreqCalls) != 1 {
		t.Fatalf("SetFrequency calls = %d, want 1", len(sim.SetFreqCalls))
	}
	call := sim.SetFreqCalls[0]
	if call.Rel != platform.RelH {
		t.Errorf("SetFrequency relation = %v, want platform.RelH", call.Rel)
	}
	if call.Target != 900000 {
		t.Errorf("SetFrequency target = %d, want cluster_max 900000", call.Target)
	}

	for _, cpu := range []int{0, 1} {
		core := ctrl.Cores[cpu]
		core.loadLock.Lock()
		cur := core.curFreq
		adj := core.speedAdjNS
		core.loadLock.Unlock()
		if cur != 900000 {
			t.Errorf("cpu%d curFreq = %d after POSTCHANGE, want 900000", cpu, cur)
		}
		// Both CPUs shared the policy, so the POSTCHANGE notifier must
		// have reanchored cpu1 too even though only cpu0's target_freq
		// drove the change: its accrued active time at the old curFreq
		// (300000) should now be flushed into cputime_speedadj.
		if adj == 0 {
			t.Errorf("cpu%d speedAdjNS = 0 after POSTCHANGE reanchor, want accrued active time flushed", cpu)
		}
	}
}
