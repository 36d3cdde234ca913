package core

import (
	"slices"
	"time"

	"github.com/encodeous/fuzzyrpl/state"
)

// Coordinator owns every timer of one node: the maintenance heartbeat and the
// per-graph advertisement, repair and arrival-prediction timers. All methods
// must be called from the execution context that runs the alarm callbacks.
type Coordinator struct {
	alarms state.AlarmService
	router Router
	rand   Random
	cfg    state.TimerCfg

	// sendReady latches once the local address has been seen usable
	sendReady     bool
	nextDiscovery uint16
	maintenance   *machine[maintenanceState]
	graphs        []*Graph
	Stats         CoordinatorStats
}

type CoordinatorStats struct {
	Resets        uint64
	DiscoverySent uint64
}

func NewCoordinator(alarms state.AlarmService, router Router, rand Random, cfg state.TimerCfg) *Coordinator {
	c := &Coordinator{
		alarms: alarms,
		router: router,
		rand:   rand,
		cfg:    cfg.WithDefaults(),
	}
	c.maintenance = newMachine(alarms, maintenanceIdle, c.onMaintenance)
	return c
}

func (c *Coordinator) Now() time.Time {
	return c.alarms.Now()
}

func (c *Coordinator) Config() state.TimerCfg {
	return c.cfg
}

func (c *Coordinator) Graphs() []*Graph {
	return slices.Clone(c.graphs)
}

// JoinGraph creates the state of a graph this node joined or formed and
// starts advertising at the minimal interval.
func (c *Coordinator) JoinGraph(id GraphId) *Graph {
	if g := c.Graph(id); g != nil {
		return g
	}
	g := newGraph(c, id)
	c.graphs = append(c.graphs, g)
	c.ResetAdvertisementTimer(g, true)
	return g
}

func (c *Coordinator) Graph(id GraphId) *Graph {
	idx := slices.IndexFunc(c.graphs, func(g *Graph) bool {
		return g.Id == id
	})
	if idx == -1 {
		return nil
	}
	return c.graphs[idx]
}

// LeaveGraph tears down every timer of g. Later calls on g are no-ops.
func (c *Coordinator) LeaveGraph(g *Graph) {
	idx := slices.Index(c.graphs, g)
	if idx == -1 {
		return
	}
	c.graphs = slices.Delete(c.graphs, idx, idx+1)
	g.trickle.stop()
	g.repair.stop()
	g.discardPrediction()
	g.left = true
}

// Stop disarms every alarm owned by the coordinator.
func (c *Coordinator) Stop() {
	c.maintenance.stop()
	for _, g := range slices.Clone(c.graphs) {
		c.LeaveGraph(g)
	}
}

// transmitReady reports whether messages may be sent, latching the first
// positive answer of the address check.
func (c *Coordinator) transmitReady() bool {
	if !c.sendReady && c.router.LocalAddressReady() {
		c.sendReady = true
	}
	return c.sendReady
}

// uniform returns a duration drawn uniformly from [lo, hi).
func (c *Coordinator) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(c.rand.Float64()*float64(hi-lo))
}
