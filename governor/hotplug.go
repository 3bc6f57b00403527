package governor

import (
	"fmt"
	"time"
)

// hotplugTick is the 30ms-tick ordered hot-plug decider (spec §4.5): it
// averages each online core's last percent-busy sample across the
// cluster (the samples are not scaled by current or maximum frequency),
// resolves the up/down counter-step and threshold table
// for the current mode, and brings a core online or takes one offline
// when a hysteresis counter saturates. Cores are always brought up and
// torn down in order (lowest-numbered idle core up first, highest-
// numbered online core down first).
func (c *ControllerContext) hotplugTick(allCPUs []int) {
	now := c.Clock.Now()
	online := c.Platform.Hotplug.OnlineCPUs()
	n := len(online)
	if n == 0 {
		return
	}

	gpuIdle := c.gpuIdle.Load()
	coreEnd := time.Unix(0, c.coreboostEndNS.Load())
	touchBoostActive := now.Before(coreEnd)
	needCores := int(c.coresOnTouch.Load())

	mode := modeBusy
	switch {
	case gpuIdle:
		mode = modeGPUIdle
	case touchBoostActive && n < needCores:
		mode = modeTouchBoost
	}
	upVal, downVal := hotplugCounterStep(mode)
	up, down := hotplugThreshold(gpuIdle, n)

	avg := c.clusterAverageLoad(online)

	c.hotplugMu.Lock()
	defer c.hotplugMu.Unlock()

	switch {
	case avg >= up:
		c.coreboostEndNS.Store(now.Add(BoostTime).UnixNano())
		c.firstCounter = capCounter(c.firstCounter + upVal)
		c.thirdCounter = decayTowardZero(c.thirdCounter, upVal)
		if c.firstCounter >= DefaultCounter {
			c.firstCounter = 0
			c.thirdCounter = -DefaultCounter
			c.bringUpNext(allCPUs, online)
		}

	case avg <= down:
		c.thirdCounter = capCounter(c.thirdCounter + downVal)
		c.firstCounter = decayTowardZero(c.firstCounter, downVal)
		if c.thirdCounter >= DefaultCounter {
			if n == needCores && touchBoostActive {
				// Deferred: a touch-driven boost still wants this many
				// cores online.
			} else {
				c.firstCounter = 0
				c.thirdCounter = 0
				c.tearDownLast(online)
			}
		}

	default:
		half := now.Add(BoostTime / 2)
		if half.After(coreEnd) {
			c.coreboostEndNS.Store(half.UnixNano())
		}
		c.firstCounter = decayTowardZero(c.firstCounter, downVal)
		c.thirdCounter = decayTowardZero(c.thirdCounter, downVal)
	}
}

func capCounter(v int32) int32 {
	if v > DefaultCounter {
		return DefaultCounter
	}
	if v < -DefaultCounter {
		return -DefaultCounter
	}
	return v
}

func decayTowardZero(v, step int32) int32 {
	if v > 0 {
		v -= step
		if v < 0 {
			v = 0
		}
		return v
	}
	if v < 0 {
		v += step
		if v > 0 {
			v = 0
		}
		return v
	}
	return 0
}

// clusterAverageLoad is the mean of each online core's last computed
// load (spec §4.5's cluster-wide coupling signal), read without
// disturbing the per-core load-sampler's own state.
func (c *ControllerContext) clusterAverageLoad(online []int) uint32 {
	if len(online) == 0 {
		return 0
	}
	var sum uint64
	var n int
	for _, cpu := range online {
		core := c.Cores[cpu]
		if core == nil {
			continue
		}
		core.loadLock.Lock()
		if core.gate.Enabled() {
			sum += uint64(core.lastLoad)
			n++
		}
		core.loadLock.Unlock()
	}
	if n == 0 {
		return 0
	}
	return uint32(sum / uint64(n))
}

func (c *ControllerContext) bringUpNext(allCPUs, online []int) {
	onlineSet := make(map[int]bool, len(online))
	for _, cpu := range online {
		onlineSet[cpu] = true
	}
	for _, cpu := range allCPUs {
		if onlineSet[cpu] {
			continue
		}
		if err := c.Platform.Hotplug.CPUUp(cpu); err != nil {
			c.recordHotplugFailure(fmt.Sprintf("bring cpu%d online: %v", cpu, err))
			return
		}
		c.hotplugFailures = 0
		return
	}
}

func (c *ControllerContext) tearDownLast(online []int) {
	if len(online) <= 1 {
		return // the decider never takes the cluster below one core
	}
	highest := online[0]
	for _, cpu := range online {
		if cpu > highest {
			highest = cpu
		}
	}
	if err := c.Platform.Hotplug.CPUDown(highest); err != nil {
		c.recordHotplugFailure(fmt.Sprintf("take cpu%d offline: %v", highest, err))
		return
	}
	c.hotplugFailures = 0
}

func (c *ControllerContext) recordHotplugFailure(reason string) {
	c.hotplugFailures++
	if c.hotplugFailures >= HotplugAlertThreshold {
		c.hotplugFailures = 0
		select {
		case c.Alerts <- "hot-plug: " + reason:
		default:
		}
	}
}

// touchBoost brings cores_on_touch cores online immediately and primes
// coreboost_endtime, the cluster-wide analogue of a touch-driven
// boostpulse (spec §4.5).
func (c *ControllerContext) touchBoost(allCPUs []int, boost time.Duration, now time.Time) {
	c.coreboostEndNS.Store(now.Add(boost).UnixNano())
	need := int(c.coresOnTouch.Load())
	for i := 0; i < need; i++ {
		online := c.Platform.Hotplug.OnlineCPUs()
		if len(online) >= need || len(online) >= len(allCPUs) {
			break
		}
		c.bringUpNext(allCPUs, online)
	}
}
