package governor

import (
	"sort"
	"time"

	"interactived/platform"
)

// NewController wires a ControllerContext over the given platform and
// policy layout (policy id -> CPUs sharing that frequency domain). Every
// core starts disabled; call Start to bring the sampler timers, the
// speed-change worker, and the hot-plug decider to life (spec §4.6).
func NewController(p *platform.Platform, policies map[int][]int, clock Clock) *ControllerContext {
	if clock == nil {
		clock = RealClock()
	}

	ctx := &ControllerContext{
		Platform:        p,
		Clock:           clock,
		Cores:           make(map[int]*CoreState),
		Policies:        make(map[int]*Policy),
		Busy:            NewTuningProfile("busy"),
		Idle:            NewTuningProfile("idle"),
		Boost:           NewTuningProfile("boost"),
		speedchangeSet:  make(map[int]struct{}),
		speedchangeWake: make(chan struct{}, 1),
		stopWorkers:     make(chan struct{}),
		Alerts:          make(chan string, 8),
	}
	ctx.coresOnTouch.Store(DefaultCoresOnTouch)

	for policyID, cpus := range policies {
		policy := &Policy{ID: policyID, CPUs: append([]int(nil), cpus...)}
		ctx.Policies[policyID] = policy
		for _, cpu := range cpus {
			ctx.Cores[cpu] = &CoreState{CPU: cpu, Policy: policy}
		}
	}

	return ctx
}

// allCPUs returns every CPU the controller knows about, in ascending CPU
// id order. Callers use it as the bring-up sequence, so the first offline
// entry is always the lowest-numbered one.
func (c *ControllerContext) allCPUs() []int {
	out := make([]int, 0, len(c.Cores))
	for cpu := range c.Cores {
		out = append(out, cpu)
	}
	sort.Ints(out)
	return out
}

// BoostPulse starts a boostpulse window of the configured
// boostpulse_duration (spec §4.2/§6).
func (c *ControllerContext) BoostPulse() {
	now := c.Clock.Now()
	duration := time.Duration(c.boostpulseDuration.Load())
	if duration <= 0 {
		duration = 80 * time.Millisecond
	}
	c.boostpulseEndNS.Store(now.Add(duration).UnixNano())
}

// SetBoostpulseDuration sets the boostpulse window length applied by the
// next BoostPulse call.
func (c *ControllerContext) SetBoostpulseDuration(d time.Duration) {
	c.boostpulseDuration.Store(int64(d))
}

// SetCoresOnTouch sets how many cores a touch-driven hot-plug forces
// online (spec §4.5's cores_on_touch tunable).
func (c *ControllerContext) SetCoresOnTouch(n int) {
	c.coresOnTouch.Store(int32(n))
}

// TouchPulse is the cluster-wide counterpart of BoostPulse driven by the
// touch monitor: it forces cores_on_touch cores online and starts a
// coreboost window.
func (c *ControllerContext) TouchPulse(boost time.Duration) {
	c.touchBoost(c.allCPUs(), boost, c.Clock.Now())
}

// GPUIdle reports the GPU idle/busy coupling signal as last observed by
// any core's tick (spec §4.2's GPU coupling note).
func (c *ControllerContext) GPUIdle() bool {
	return c.gpuIdle.Load()
}
