package governor

import (
	"testing"

	"interactived/platform"
)

func newHotplugController(t *testing.T) (*ControllerContext, *platform.Sim) {
	t.Helper()
	table := []uint32{300000, 600000, 900000, 1200000}
	policies := map[int][]int{0: {0}, 1: {1}, 2: {2}, 3: {3}}
	sim := platform.NewSim(policies, table)
	ctrl := NewController(sim.Platform(), policies, newFakeClock())
	for cpu := 2; cpu <= 3; cpu++ {
		sim.CPUDown(cpu)
	}
	for _, core := range ctrl.Cores {
		core.gate.Set(true)
	}
	return ctrl, sim
}

// setClusterLoad sets every CPU's last-observed load, including
// currently offline ones, so the average stays representative of
// "sustained load" as cores are brought online mid-test.
func setClusterLoad(ctrl *ControllerContext, cpus []int, load uint32) {
	for _, cpu := range cpus {
		core := ctrl.Cores[cpu]
		core.loadLock.Lock()
		core.lastLoad = load
		core.loadLock.Unlock()
	}
}

// busyUpStep/busyDownStep are the GPU-busy (10, 5) counter steps (spec
// §4.2's mode table) the tests below tick through by hand.
const (
	busyUpStep   = 10
	busyDownStep = 5
)

// TestHotplugBringsUpCoreUnderSustainedHighLoad exercises the up
// direction of the hysteresis counter: enough consecutive over-threshold
// ticks to saturate first_counter (DefaultCounter / up_val of them) must
// bring a third core online.
func TestHotplugBringsUpCoreUnderSustainedHighLoad(t *testing.T) {
	ctrl, sim := newHotplugController(t)
	allCPUs := []int{0, 1, 2, 3}

	setClusterLoad(ctrl, allCPUs, 90)

	ticks := DefaultCounter / busyUpStep
	for i := 0; i < ticks; i++ {
		ctrl.hotplugTick(allCPUs)
	}

	online := sim.OnlineCPUs()
	if len(online) != 3 {
		t.Fatalf("online cpus after %d sustained high-load ticks = %v, want 3 cores online", ticks, online)
	}
}

// TestHotplugBriefLoadSpikeDoesNotTripCounter checks that a burst of
// high load shorter than the saturation window doesn't bring a core
// online, and that the counter decays back down rather than carrying
// over once the load drops.
func TestHotplugBriefLoadSpikeDoesNotTripCounter(t *testing.T) {
	ctrl, sim := newHotplugController(t)
	allCPUs := []int{0, 1, 2, 3}

	setClusterLoad(ctrl, allCPUs, 90)
	short := DefaultCounter/busyUpStep - 2
	for i := 0; i < short; i++ {
		ctrl.hotplugTick(allCPUs)
	}

	if online := sim.OnlineCPUs(); len(online) != 2 {
		t.Fatalf("online cpus after a brief spike = %v, want still 2", online)
	}

	setClusterLoad(ctrl, allCPUs, 0)
	for i := 0; i < 20; i++ {
		ctrl.hotplugTick(allCPUs)
	}

	ctrl.hotplugMu.Lock()
	first := ctrl.firstCounter
	ctrl.hotplugMu.Unlock()
	if first > 0 {
		t.Errorf("first_counter = %d after sustained idle, want it decayed back to 0", first)
	}
}

// TestHotplugNeverDropsBelowOneCore checks the floor invariant: the
// tear-down path refuses to take the cluster below one online core even
// under sustained idle load.
func TestHotplugNeverDropsBelowOneCore(t *testing.T) {
	ctrl, sim := newHotplugController(t)
	allCPUs := []int{0, 1, 2, 3}

	setClusterLoad(ctrl, allCPUs, 0)
	for i := 0; i < DefaultCounter*3; i++ {
		ctrl.hotplugTick(allCPUs)
	}

	online := sim.OnlineCPUs()
	if len(online) < 1 {
		t.Fatalf("online cpus = %v, fell below the floor of 1", online)
	}
}

// TestHotplugRecordsFailureAlert checks that repeated hot-plug failures
// past HotplugAlertThreshold push an alert.
func TestHotplugRecordsFailureAlert(t *testing.T) {
	ctrl, sim := newHotplugController(t)
	allCPUs := []int{0, 1, 2, 3}

	sim.FailCPUUp(2, errFailed{})
	setClusterLoad(ctrl, allCPUs, 90)

	ticksPerAttempt := DefaultCounter / busyUpStep
	for i := 0; i < ticksPerAttempt*HotplugAlertThreshold; i++ {
		ctrl.hotplugTick(allCPUs)
	}

	select {
	case msg := <-ctrl.Alerts:
		if msg == "" {
			t.Errorf("expected non-empty alert message")
		}
	default:
		t.Errorf("expected a hot-plug alert after repeated failures, got none")
	}
}

// TestHotplugBringsUpSecondCoreFromSingleCoreCluster is spec §8 Scenario
// E: a 1-core cluster has no up threshold to clear (n=1's up entry is 0),
// so any sustained load at all must bring a second core online without
// needing touchBoost's separate bypass path.
func TestHotplugBringsUpSecondCoreFromSingleCoreCluster(t *testing.T) {
	ctrl, sim := newHotplugController(t)
	allCPUs := []int{0, 1, 2, 3}
	for cpu := 1; cpu <= 3; cpu++ {
		sim.CPUDown(cpu)
	}

	setClusterLoad(ctrl, allCPUs, 62)

	ticks := DefaultCounter / busyUpStep
	for i := 0; i < ticks; i++ {
		ctrl.hotplugTick(allCPUs)
	}

	online := sim.OnlineCPUs()
	if len(online) != 2 {
		t.Fatalf("online cpus after sustained load on a 1-core cluster = %v, want 2", online)
	}
}

type errFailed struct{}

func (errFailed) Error() string { return "simulated hot-plug failure" }
