//go:build linux

package platform

// NewRealPlatform assembles a Platform backed by the real sysfs cpufreq
// tree, gopsutil idle accounting, DRM GPU idle detection, and backlight
// bl_power screen state. policyCPU maps policy id to one representative CPU in
// that policy (cpufreq groups cores sharing a clock domain under one
// policyN directory).
func NewRealPlatform(policyCPU map[int]int) *Platform {
	screen, ok := NewBacklightScreenMonitor()
	if !ok {
		screen = alwaysUnlockedScreen{}
	}

	return &Platform{
		Freq:     NewSysfsFrequencyDriver(policyCPU),
		Idle:     NewGopsutilIdleSource(),
		Hotplug:  NewSysfsHotplugController(),
		GPU:      NewDRMGPUMonitor(0, 5),
		Touch:    NewTouchMonitor(),
		Screen:   screen,
		Priority: NewRealtimePriority(1),
	}
}

type alwaysUnlockedScreen struct{}

func (alwaysUnlockedScreen) Locked() bool { return false }
