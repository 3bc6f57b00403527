package governor

// CoreSnapshot is CoreState's externally safe, lock-protected read —
// used by the HTTP/websocket status surface, never by the control loop
// itself.
type CoreSnapshot struct {
	CPU        int
	Enabled    bool
	TargetFreq uint32
	FloorFreq  uint32
	Load       uint32
}

// Snapshot reads a consistent view of a single core's state.
func (core *CoreState) Snapshot() CoreSnapshot {
	core.loadLock.Lock()
	defer core.loadLock.Unlock()
	return CoreSnapshot{
		CPU:        core.CPU,
		Enabled:    core.gate.Enabled(),
		TargetFreq: core.targetFreq,
		FloorFreq:  core.floorFreq,
		Load:       core.lastLoad,
	}
}

// AllCPUs returns every CPU id the controller knows about.
func (c *ControllerContext) AllCPUs() []int {
	return c.allCPUs()
}

// OnlineCPUs is a thin pass-through to the hot-plug controller, exposed
// so the HTTP layer doesn't need its own Platform reference.
func (c *ControllerContext) OnlineCPUs() []int {
	return c.Platform.Hotplug.OnlineCPUs()
}
