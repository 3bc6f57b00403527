package platform

import (
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// gopsutilIdle reports per-CPU cumulative idle time via gopsutil's
// /proc/stat reader, the same "snapshot the whole table, diff against the
// last one" shape monitor/cpu.go used over Mach host_processor_info: we
// keep the last read under a mutex and hand back whichever cumulative
// counter the caller asked for.
type gopsutilIdle struct {
	mu   sync.Mutex
	last []cpu.TimesStat
}

// NewGopsutilIdleSource builds an IdleTimeSource backed by gopsutil.
func NewGopsutilIdleSource() IdleTimeSource {
	return &gopsutilIdle{}
}

func (g *gopsutilIdle) IdleNS(cpuID int, includeIOWait bool) (idleNS, wallNS uint64, err error) {
	times, err := cpu.Times(true)
	if err != nil {
		return 0, 0, err
	}

	g.mu.Lock()
	g.last = times
	g.mu.Unlock()

	if cpuID < 0 || cpuID >= len(times) {
		return 0, 0, fmt.Errorf("platform: no per-cpu stat for cpu%d", cpuID)
	}

	t := times[cpuID]
	idleSeconds := t.Idle
	if includeIOWait {
		idleSeconds += t.Iowait
	}

	return uint64(idleSeconds * float64(time.Second)), uint64(time.Now().UnixNano()), nil
}
