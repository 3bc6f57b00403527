package platform

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Sim is a deterministic, in-memory stand-in for every collaborator in
// Platform. It backs every test in the governor package and the
// daemon's -simulate run mode (no sysfs tree required). Unlike the real
// platform, Sim's idle-time clock is advanced explicitly by the caller
// (AdvanceIdle) rather than read from the OS, so tests get reproducible
// load figures without sleeping.
type Sim struct {
	mu sync.Mutex

	tables map[int][]uint32 // policy -> ascending frequency table
	min    map[int]uint32
	max    map[int]uint32
	cur    map[int]uint32

	policyOf map[int]int  // cpu -> policy id
	online   map[int]bool // cpu -> online

	idle map[int]*simIdleCPU // cpu -> cumulative idle/wall counters

	gpuIdle      bool
	screenLocked bool
	touch        TouchMonitor

	upErr, downErr map[int]error // injected hotplug failures, keyed by cpu

	idleSubs map[int]map[int]func(IdleEvent) // cpu -> subscription id -> callback
	idleNext int

	// SetFreqCalls records every SetFrequency invocation in order, for
	// assertions in speed-change-worker tests.
	SetFreqCalls []SimSetFreqCall
}

// SimSetFreqCall is one recorded SetFrequency invocation.
type SimSetFreqCall struct {
	Policy int
	Target uint32
	Rel    Relation
}

type simIdleCPU struct {
	idleNS uint64
	wallNS uint64
}

// NewSim builds a Sim with the given policy layout: policies maps a
// policy id to the CPUs it governs, and freqTable is shared by every
// policy (ascending Hz-equivalent values, matching spec §6's tunables
// table). All CPUs start online at the table's lowest frequency.
func NewSim(policies map[int][]int, freqTable []uint32) *Sim {
	table := append([]uint32(nil), freqTable...)
	sort.Slice(table, func(i, j int) bool { return table[i] < table[j] })

	s := &Sim{
		tables:   make(map[int][]uint32),
		min:      make(map[int]uint32),
		max:      make(map[int]uint32),
		cur:      make(map[int]uint32),
		policyOf: make(map[int]int),
		online:   make(map[int]bool),
		idle:     make(map[int]*simIdleCPU),
		upErr:    make(map[int]error),
		downErr:  make(map[int]error),
		touch:    NewTouchMonitor(),
		idleSubs: make(map[int]map[int]func(IdleEvent)),
	}
	for policy, cpus := range policies {
		s.tables[policy] = table
		s.min[policy] = table[0]
		s.max[policy] = table[len(table)-1]
		s.cur[policy] = table[0]
		for _, cpu := range cpus {
			s.policyOf[cpu] = policy
			s.online[cpu] = true
			s.idle[cpu] = &simIdleCPU{}
		}
	}
	return s
}

// Platform wraps the Sim's own interface implementations into a *Platform
// ready to hand to a controller under test.
func (s *Sim) Platform() *Platform {
	return &Platform{
		Freq:      s,
		Idle:      s,
		Hotplug:   s,
		GPU:       s,
		Touch:     s.touch,
		Screen:    s,
		Priority:  NewRealtimePriority(1),
		IdleNotif: s,
	}
}

// --- FrequencyDriver ---

func (s *Sim) FreqTable(policy int) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.tables[policy]
	if !ok {
		return nil, fmt.Errorf("platform: sim has no policy %d", policy)
	}
	return append([]uint32(nil), table...), nil
}

func (s *Sim) TargetInTable(policy int, reqHz uint32, rel Relation) (uint32, error) {
	table, err := s.FreqTable(policy)
	if err != nil {
		return 0, err
	}
	return targetInTable(table, reqHz, rel)
}

func (s *Sim) SetFrequency(policy int, targetHz uint32, rel Relation) error {
	target, err := s.TargetInTable(policy, targetHz, rel)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur[policy] = target
	s.SetFreqCalls = append(s.SetFreqCalls, SimSetFreqCall{Policy: policy, Target: target, Rel: rel})
	s.mu.Unlock()
	return nil
}

func (s *Sim) PolicyLimits(policy int) (min, max uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	min, ok := s.min[policy]
	if !ok {
		return 0, 0, fmt.Errorf("platform: sim has no policy %d", policy)
	}
	return min, s.max[policy], nil
}

func (s *Sim) CurrentFreq(policy int) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cur[policy]
	if !ok {
		return 0, fmt.Errorf("platform: sim has no policy %d", policy)
	}
	return cur, nil
}

// SetLimits lets a test impose LIMITS (spec §4.6) directly.
func (s *Sim) SetLimits(policy int, min, max uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.min[policy] = min
	s.max[policy] = max
}

// --- IdleTimeSource ---

func (s *Sim) IdleNS(cpu int, includeIOWait bool) (idleNS, wallNS uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.idle[cpu]
	if !ok {
		return 0, 0, fmt.Errorf("platform: sim has no cpu%d", cpu)
	}
	return c.idleNS, c.wallNS, nil
}

// AdvanceIdle moves a simulated CPU's clock forward by wall, crediting
// idle of that duration (busy = wall - idle, so idle == wall is a fully
// idle tick and idle == 0 is fully busy).
func (s *Sim) AdvanceIdle(cpu int, wall, idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.idle[cpu]
	if c == nil {
		c = &simIdleCPU{}
		s.idle[cpu] = c
	}
	c.wallNS += uint64(wall.Nanoseconds())
	c.idleNS += uint64(idle.Nanoseconds())
}

// --- HotplugController ---

func (s *Sim) CPUUp(cpu int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upErr[cpu]; err != nil {
		return err
	}
	s.online[cpu] = true
	return nil
}

func (s *Sim) CPUDown(cpu int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.downErr[cpu]; err != nil {
		return err
	}
	s.online[cpu] = false
	return nil
}

func (s *Sim) OnlineCPUs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for cpu, on := range s.online {
		if on {
			out = append(out, cpu)
		}
	}
	sort.Ints(out)
	return out
}

// FailCPUUp makes the next and all subsequent CPUUp(cpu) calls return err
// (nil clears the injected failure). Used by hot-plug-decider tests that
// exercise the retry/failure-count path.
func (s *Sim) FailCPUUp(cpu int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upErr[cpu] = err
}

// FailCPUDown is FailCPUUp for the tear-down direction.
func (s *Sim) FailCPUDown(cpu int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downErr[cpu] = err
}

// --- GPUMonitor / ScreenMonitor ---

func (s *Sim) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gpuIdle
}

// SetGPUIdle lets a test drive the simulated GPU idle/busy signal.
func (s *Sim) SetGPUIdle(idle bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gpuIdle = idle
}

func (s *Sim) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenLocked
}

// SetScreenLocked lets a test drive the simulated screen on/off signal.
func (s *Sim) SetScreenLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenLocked = locked
}

// Touch exposes the Sim's TouchMonitor so tests can Poke it directly.
func (s *Sim) Touch() TouchMonitor {
	return s.touch
}

// --- IdleNotifier ---

func (s *Sim) Subscribe(cpu int, fn func(IdleEvent)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idleSubs[cpu] == nil {
		s.idleSubs[cpu] = make(map[int]func(IdleEvent))
	}
	id := s.idleNext
	s.idleNext++
	s.idleSubs[cpu][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.idleSubs[cpu], id)
	}
}

// EnterIdle/ExitIdle let a test fire IDLE_START/IDLE_END for a CPU
// directly, exercising the governor's idle hook without needing a real
// idle notifier.
func (s *Sim) EnterIdle(cpu int) { s.fireIdle(cpu, IdleStart) }
func (s *Sim) ExitIdle(cpu int)  { s.fireIdle(cpu, IdleEnd) }

func (s *Sim) fireIdle(cpu int, ev IdleEvent) {
	s.mu.Lock()
	subs := make([]func(IdleEvent), 0, len(s.idleSubs[cpu]))
	for _, fn := range s.idleSubs[cpu] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
