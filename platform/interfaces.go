// Package platform defines the hardware/OS collaborators the governor talks
// to (spec §6): the frequency-table driver, idle-time accounting, per-CPU
// hot-plug primitives, and the GPU/touch/screen signal sources. Each has a
// real implementation (sysfs, gopsutil, DRM) and a deterministic simulated
// one used by tests and by hosts that don't expose the real sysfs tree.
package platform

import "time"

// Relation mirrors cpufreq's CPUFREQ_RELATION_* — how a requested frequency
// should be rounded against the discrete frequency table.
type Relation int

const (
	// RelL rounds up: the lowest table entry >= the request.
	RelL Relation = iota
	// RelH rounds down: the highest table entry <= the request.
	RelH
	// RelC picks the closest table entry.
	RelC
)

// FrequencyDriver enumerates a policy's discrete frequency table and drives
// the hardware to a member of it.
type FrequencyDriver interface {
	FreqTable(policy int) ([]uint32, error)
	TargetInTable(policy int, reqHz uint32, rel Relation) (uint32, error)
	SetFrequency(policy int, targetHz uint32, rel Relation) error
	PolicyLimits(policy int) (min, max uint32, err error)
	CurrentFreq(policy int) (uint32, error)
}

// IdleTimeSource reports cumulative idle time for a CPU, in nanoseconds,
// alongside the wall-clock reading it was taken at.
type IdleTimeSource interface {
	IdleNS(cpu int, includeIOWait bool) (idleNS, wallNS uint64, err error)
}

// HotplugController brings cores online and offline.
type HotplugController interface {
	CPUUp(cpu int) error
	CPUDown(cpu int) error
	OnlineCPUs() []int
}

// GPUMonitor reports whether the GPU is currently idle.
type GPUMonitor interface {
	Idle() bool
}

// TouchMonitor is poked by the (out of scope) touch-input subsystem and
// remembers when the resulting boost window ends.
type TouchMonitor interface {
	Poke(boost time.Duration)
	BoostEndtime() time.Time
}

// ScreenMonitor reports the early-suspend / late-resume signal (screen
// on/off).
type ScreenMonitor interface {
	Locked() bool
}

// IdleEvent is IDLE_START or IDLE_END on a CPU's entering-idle notifier
// (spec §4.3's idle hook).
type IdleEvent int

const (
	IdleStart IdleEvent = iota
	IdleEnd
)

// IdleNotifier delivers per-CPU idle-enter/exit transitions. Subscribe
// returns an unsubscribe func; fn may be called from any goroutine and
// must not block. A nil IdleNotifier on Platform is valid — the governor
// simply never fires the idle hook and relies on its periodic timer
// alone (see DESIGN.md on the userspace idle-notifier boundary).
type IdleNotifier interface {
	Subscribe(cpu int, fn func(IdleEvent)) (unsubscribe func())
}

// ThreadPriority requests realtime scheduling for the calling goroutine's
// OS thread. A no-op implementation is valid (see DESIGN.md on the
// userspace-Go RT-priority boundary).
type ThreadPriority interface {
	SetRealtime() error
}

// Platform bundles every collaborator the governor needs. Swapping this
// struct's fields is how production vs. simulated vs. partial (e.g.
// no-GPU) hosts are assembled.
type Platform struct {
	Freq      FrequencyDriver
	Idle      IdleTimeSource
	Hotplug   HotplugController
	GPU       GPUMonitor
	Touch     TouchMonitor
	Screen    ScreenMonitor
	Priority  ThreadPriority
	IdleNotif IdleNotifier // optional; nil disables the idle hook
}
