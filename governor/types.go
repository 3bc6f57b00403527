// Package governor implements the per-core interactive frequency governor
// and cluster-wide hot-plug decider (spec §§3-5): the load sampler, mode
// selector/boost, speed-change worker, hot-plug decider, and their shared
// lifecycle and tunable surface.
package governor

import (
	"sync"
	"sync/atomic"
	"time"

	"interactived/platform"
)

// TuningProfile is one named bundle of the knobs spec §6's tunables table
// exposes (busy_values, idle_values, boost_values). Fields are guarded by
// mu the way the original target_loads attribute was guarded by a
// profile-local spinlock; reads take a short lock rather than going
// through atomics because target_loads is a slice, not a scalar.
type TuningProfile struct {
	Name string

	mu                sync.Mutex
	hispeedFreq       uint32
	goHispeedLoad     uint32
	minSampleTime     time.Duration
	timerRate         time.Duration
	aboveHispeedDelay time.Duration
	timerSlack        time.Duration // negative disables deferred-timer slack
	targetLoads       []uint32      // [load0, boundary0, load1, boundary1, ..., loadN]
}

// NewTuningProfile builds a profile seeded with spec §6's stock defaults,
// which differ per profile name: busy_values and idle_values each have
// their own hispeed_freq/go_hispeed_load/timing defaults, while
// boost_values only ever contributes target_loads (spec §4.2) and is
// left at the zero value for everything else.
func NewTuningProfile(name string) *TuningProfile {
	p := &TuningProfile{Name: name, targetLoads: []uint32{90}}
	switch name {
	case "idle":
		p.hispeedFreq = 702000
		p.goHispeedLoad = 99
		p.minSampleTime = 20 * time.Millisecond
		p.timerRate = 30 * time.Millisecond
		p.aboveHispeedDelay = 150 * time.Millisecond
		p.timerSlack = -1
	case "boost":
		// target_loads only; hispeed_freq/go_hispeed_load/etc. are never
		// read off this profile (Tick falls back to busy_values).
	default: // "busy"
		p.hispeedFreq = 1350000
		p.goHispeedLoad = 93
		p.minSampleTime = 60 * time.Millisecond
		p.timerRate = 20 * time.Millisecond
		p.aboveHispeedDelay = 30 * time.Millisecond
		p.timerSlack = 40 * time.Millisecond
	}
	return p
}

func (p *TuningProfile) HispeedFreq() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hispeedFreq
}

func (p *TuningProfile) SetHispeedFreq(v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hispeedFreq = v
}

func (p *TuningProfile) GoHispeedLoad() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.goHispeedLoad
}

func (p *TuningProfile) SetGoHispeedLoad(v uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.goHispeedLoad = v
}

func (p *TuningProfile) MinSampleTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minSampleTime
}

func (p *TuningProfile) SetMinSampleTime(v time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minSampleTime = v
}

func (p *TuningProfile) TimerRate() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timerRate
}

func (p *TuningProfile) SetTimerRate(v time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timerRate = v
}

func (p *TuningProfile) AboveHispeedDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aboveHispeedDelay
}

func (p *TuningProfile) SetAboveHispeedDelay(v time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aboveHispeedDelay = v
}

func (p *TuningProfile) TimerSlack() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timerSlack
}

func (p *TuningProfile) SetTimerSlack(v time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timerSlack = v
}

func (p *TuningProfile) TargetLoads() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, len(p.targetLoads))
	copy(out, p.targetLoads)
	return out
}

func (p *TuningProfile) SetTargetLoads(v []uint32) {
	cp := make([]uint32, len(v))
	copy(cp, v)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targetLoads = cp
}

// Policy groups the CPUs that share one frequency domain (one cpufreq
// policyN), as spec §4.4's speed-change worker needs to compute a single
// cluster_max across every CPU in the group before calling SetFrequency
// once per policy.
type Policy struct {
	ID  int
	CPUs []int

	mu  sync.Mutex
	min uint32
	max uint32
}

// CoreState is the per-core data spec §3 describes: load-tracking
// counters, the two validate timestamps, the floor/target frequencies,
// and the enable gate. loadLock corresponds to the original's load_lock
// spinlock and protects every field below it.
type CoreState struct {
	CPU    int
	Policy *Policy

	gate enableGate

	loadLock            sync.Mutex
	targetFreq          uint32
	curFreq             uint32 // policy.current_freq: what the hardware was last actually told to run at
	floorFreq           uint32
	floorValidateTime   time.Time
	hispeedValidateTime time.Time
	timeInIdleNS        uint64
	lastWallNS          uint64
	haveSample          bool
	lastLoad            uint32 // most recent percent-busy sample, read by the hot-plug decider

	speedAdjNS        uint64    // cputime_speedadj: Σ(active_ns × curFreq) since the last clear
	speedAdjTimestamp time.Time // cputime_speedadj_timestamp

	timer        *time.Timer
	slackTimer   *time.Timer
	timerPending bool // false once rearmTimer declines to rearm at policy.max; the idle hook re-arms it
	idleUnsub    func()
}

// ControllerContext is the process-wide state every governor component
// reads and mutates: the per-core array, the three tuning profiles, the
// coupling signals the mode selector and hot-plug decider share, and the
// platform collaborators everything ultimately calls through.
type ControllerContext struct {
	Platform *platform.Platform
	Clock    Clock

	Cores    map[int]*CoreState
	Policies map[int]*Policy

	Busy, Idle, Boost *TuningProfile

	gpuIdle            atomic.Bool
	boostpulseEndNS    atomic.Int64
	coreboostEndNS     atomic.Int64
	boostpulseDuration atomic.Int64 // nanoseconds
	coresOnTouch       atomic.Int32

	speedchangeMu  sync.Mutex
	speedchangeSet map[int]struct{}
	speedchangeWake chan struct{}

	hotplugMu     sync.Mutex
	firstCounter  int32
	thirdCounter  int32
	hotplugFailures int32

	govLock sync.Mutex
	started bool

	stopWorkers chan struct{}

	// Alerts receives one message per HotplugAlertThreshold run of
	// consecutive hot-plug failures (spec §7). Buffered so the decider
	// never blocks on a slow or absent consumer; a full buffer just
	// drops the alert.
	Alerts chan string
}

const (
	// DefaultCounter bounds the hot-plug hysteresis counters (spec §4.5,
	// §6).
	DefaultCounter = 50
	// DefaultCoresOnTouch is how many cores a touch event forces online
	// (spec §4.5, §6).
	DefaultCoresOnTouch = 2
	// ActiveCores is the largest cluster size the up/down threshold table
	// is defined for (spec §4.5's 2×4×2 table, spec §6's ACTIVE_CORES).
	ActiveCores = 4
	// BoostTime is how long a cluster-wide coreboost window stays open
	// once armed (spec §4.5, §6).
	BoostTime = 3000 * time.Millisecond
	// HotplugAlertThreshold is how many consecutive hot-plug failures the
	// lifecycle tolerates before pushing one alert (spec §7 addition).
	HotplugAlertThreshold = 5
)
