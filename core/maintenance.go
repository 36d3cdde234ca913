package core

import (
	"math"

	"github.com/encodeous/fuzzyrpl/perf"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type maintenanceState int

const (
	maintenanceIdle maintenanceState = iota
	maintenanceRunning
)

// StartMaintenance arms the one second heartbeat. The first discovery probe
// is held back by the configured start delay.
func (c *Coordinator) StartMaintenance() {
	disc := c.cfg.Discovery
	c.nextDiscovery = 0
	if disc.StartDelay < disc.Interval {
		c.nextDiscovery = disc.Interval - disc.StartDelay
	}
	c.maintenance.apply(Transition[maintenanceState]{maintenanceRunning, state.MaintenanceTick})
}

func (c *Coordinator) onMaintenance() Transition[maintenanceState] {
	c.router.PurgeExpiredRoutes()
	c.router.RecomputeRanks()

	if !c.cfg.Discovery.Disabled {
		if c.nextDiscovery < math.MaxUint16 {
			c.nextDiscovery++
		}
		if len(c.graphs) == 0 && c.nextDiscovery >= c.cfg.Discovery.Interval {
			c.nextDiscovery = 0
			c.Stats.DiscoverySent++
			perf.DiscoverySent.Add(1)
			c.router.Log(DiscoverySent, "soliciting advertisements")
			c.router.SendDiscoveryProbe(fn.None[state.NodeId]())
		}
	}
	return Transition[maintenanceState]{maintenanceRunning, again}
}
