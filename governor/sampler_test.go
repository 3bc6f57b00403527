package governor

import (
	"testing"
	"time"

	"interactived/platform"
)

func TestSampleFirstReadingReportsZeroLoad(t *testing.T) {
	sim := platform.NewSim(map[int][]int{0: {0}}, []uint32{300000, 600000})
	ctrl := NewController(sim.Platform(), map[int][]int{0: {0}}, newFakeClock())
	core := ctrl.Cores[0]

	result, err := ctrl.sample(core, true)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if result.cpuLoad != 0 {
		t.Errorf("first sample cpuLoad = %d, want 0 (no prior reading to diff against)", result.cpuLoad)
	}
	if !core.haveSample {
		t.Errorf("haveSample not set after first sample")
	}
}

func TestSampleComputesBusyPercent(t *testing.T) {
	sim := platform.NewSim(map[int][]int{0: {0}}, []uint32{300000, 600000})
	ctrl := NewController(sim.Platform(), map[int][]int{0: {0}}, newFakeClock())
	core := ctrl.Cores[0]

	if _, err := ctrl.sample(core, true); err != nil {
		t.Fatalf("baseline sample: %v", err)
	}

	sim.AdvanceIdle(0, 20*time.Millisecond, 5*time.Millisecond) // 75% busy
	result, err := ctrl.sample(core, true)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if result.cpuLoad != 75 {
		t.Errorf("cpuLoad = %d, want 75", result.cpuLoad)
	}
}

func TestSampleFullyIdleReportsZero(t *testing.T) {
	sim := platform.NewSim(map[int][]int{0: {0}}, []uint32{300000, 600000})
	ctrl := NewController(sim.Platform(), map[int][]int{0: {0}}, newFakeClock())
	core := ctrl.Cores[0]

	if _, err := ctrl.sample(core, true); err != nil {
		t.Fatalf("baseline sample: %v", err)
	}

	sim.AdvanceIdle(0, 20*time.Millisecond, 20*time.Millisecond)
	result, err := ctrl.sample(core, true)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if result.cpuLoad != 0 {
		t.Errorf("cpuLoad = %d, want 0", result.cpuLoad)
	}
}
