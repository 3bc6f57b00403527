//go:build linux

package platform

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// drmGPU reads the generic DRM sysfs busy-percent knob
// (/sys/class/drm/cardN/device/gpu_busy_percent, exposed by amdgpu and a
// handful of other DRM drivers) and treats the GPU idle while the reading,
// cached for two seconds, is at or below the configured idle threshold.
type drmGPU struct {
	path      string
	threshold int
	cache     *CachedValue[int]
}

// NewDRMGPUMonitor builds a GPUMonitor over the given DRM card index.
// idleThreshold is the utilization percent at or below which the GPU is
// considered idle (0 for a strict reading).
func NewDRMGPUMonitor(cardIndex, idleThreshold int) GPUMonitor {
	return &drmGPU{
		path:      "/sys/class/drm/card" + strconv.Itoa(cardIndex) + "/device/gpu_busy_percent",
		threshold: idleThreshold,
		cache:     NewCachedValue[int](2 * time.Second),
	}
}

func (g *drmGPU) Idle() bool {
	util := g.cache.Get(g.fetch)
	return util <= g.threshold
}

func (g *drmGPU) fetch() int {
	data, err := os.ReadFile(g.path)
	if err != nil {
		// No DRM busy-percent knob on this host; treat as idle so the
		// governor favors power savings rather than assuming load it
		// cannot observe.
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return v
}
