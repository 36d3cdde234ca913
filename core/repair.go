package core

import (
	"github.com/encodeous/fuzzyrpl/perf"
	"github.com/encodeous/fuzzyrpl/state"
)

type repairState int

const (
	repairIdle repairState = iota
	repairArmed
)

// RequestRepair schedules one repair message toward the preferred hop of g.
// Requests made while one is already scheduled are absorbed.
func (c *Coordinator) RequestRepair(g *Graph) {
	if g.left {
		return
	}
	if g.repair.active() {
		c.router.Log(RepairAlreadyScheduled, "repair already scheduled",
			"graph", g.Id, "in", g.repair.remaining())
		return
	}
	l := c.cfg.RepairLatency
	d := c.uniform(l/2, l+l/2)
	g.repair.apply(Transition[repairState]{repairArmed, d})
	c.router.Log(RepairScheduled, "repair scheduled", "graph", g.Id, "in", d)
}

func (g *Graph) onRepair() Transition[repairState] {
	if !g.c.transmitReady() {
		g.c.router.Log(SendDeferred, "no usable local address, deferring repair", "graph", g.Id)
		return Transition[repairState]{repairArmed, state.DeferTick}
	}
	hop, ok := g.preferredHop()
	if !ok {
		g.c.router.Log(NoPreferredHop, "dropping repair, no preferred hop", "graph", g.Id)
		return Transition[repairState]{State: repairIdle}
	}
	g.Stats.Repairs++
	perf.RepairsSent.Add(1)
	g.c.router.Log(RepairSent, "sending repair", "graph", g.Id, "hop", hop, "lifetime", g.lifetime)
	g.c.router.SendRepair(g, hop, g.lifetime)
	return Transition[repairState]{State: repairIdle}
}
