//go:build linux

package platform

import "golang.org/x/sys/unix"

// realtimePriority asks the kernel to move the calling OS thread into
// SCHED_FIFO, the nearest userspace analogue of the kernel speed-change
// worker's RT-FIFO scheduling (spec §5). Go does not let a goroutine pin
// itself to one OS thread without runtime.LockOSThread, so callers must
// lock the thread first; SetRealtime only sets the scheduling class on
// whichever thread happens to call it.
type realtimePriority struct {
	priority int
}

// NewRealtimePriority builds a ThreadPriority that requests SCHED_FIFO at
// the given priority (1-99) for the calling thread.
func NewRealtimePriority(priority int) ThreadPriority {
	return &realtimePriority{priority: priority}
}

func (r *realtimePriority) SetRealtime() error {
	return unix.SchedSetscheduler(0, unix.SCHED_FIFO, &unix.SchedParam{Priority: int32(r.priority)})
}
