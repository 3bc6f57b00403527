//go:build !linux

package platform

// NewRealPlatform has no sysfs cpufreq tree to drive outside Linux; the
// caller falls back to the simulated platform instead.
func NewRealPlatform(policyCPU map[int]int) *Platform {
	return nil
}
