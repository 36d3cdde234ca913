package core

import (
	"time"

	"github.com/encodeous/fuzzyrpl/state"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type GraphId uint8

// Schedule is the look-ahead a node advertises about its own timer: the
// time left in the current interval and the split of the next one.
type Schedule struct {
	Delay     time.Duration
	NextTime  time.Duration
	NextDelay time.Duration
}

// Window is the total time until the end of the advertised next send window.
func (s Schedule) Window() time.Duration {
	return s.Delay + s.NextTime + s.NextDelay
}

// split divides one trickle interval at its send point.
type split struct {
	first  time.Duration
	second time.Duration
}

type GraphStats struct {
	Intervals  uint64
	Sent       uint64
	Suppressed uint64
	Repairs    uint64
	// advertisements from the preferred hop fed to the predictor
	Heard    uint64
	Received uint64 // consistent advertisements heard, summed over finished intervals
}

// Graph holds the timer state of one routing graph the node participates in.
type Graph struct {
	Id GraphId
	c  *Coordinator

	minExp     uint8
	doublings  uint8
	curExp     uint8
	counter    uint8
	redundancy uint8
	// pendingSend is set during the first part of the interval, until the send point
	pendingSend bool
	// nextDelay is the remainder of the current interval after the send point
	nextDelay time.Duration
	lookahead fn.Option[split]
	trickle   *machine[trickleState]

	repair   *machine[repairState]
	lifetime time.Duration

	preferred  fn.Option[state.NodeId]
	prediction *Prediction
	latency    time.Duration

	left  bool
	Stats GraphStats
}

func newGraph(c *Coordinator, id GraphId) *Graph {
	g := &Graph{
		Id:         id,
		c:          c,
		minExp:     c.cfg.Trickle.MinIntervalExp,
		doublings:  c.cfg.Trickle.Doublings,
		curExp:     c.cfg.Trickle.MinIntervalExp,
		redundancy: c.cfg.Trickle.Redundancy,
		lifetime:   c.cfg.RouteLifetime,
	}
	g.trickle = newMachine(c.alarms, trickleIdle, g.onTrickle)
	g.repair = newMachine(c.alarms, repairIdle, g.onRepair)
	return g
}

func (g *Graph) IntervalExp() uint8 {
	return g.curExp
}

func (g *Graph) MinIntervalExp() uint8 {
	return g.minExp
}

func (g *Graph) MaxIntervalExp() uint8 {
	return g.minExp + g.doublings
}

func (g *Graph) RedundancyCounter() uint8 {
	return g.counter
}

func (g *Graph) PendingSend() bool {
	return g.pendingSend
}

func (g *Graph) RouteLifetime() time.Duration {
	return g.lifetime
}

func (g *Graph) PreferredHop() fn.Option[state.NodeId] {
	return g.preferred
}

// Prediction returns the arrival prediction of the preferred hop, or nil.
func (g *Graph) Prediction() *Prediction {
	return g.prediction
}

// Latency is the last lateness observed for the preferred hop's advertisements.
func (g *Graph) Latency() time.Duration {
	return g.latency
}

func (g *Graph) preferredHop() (state.NodeId, bool) {
	var hop state.NodeId
	g.preferred.WhenSome(func(n state.NodeId) {
		hop = n
	})
	return hop, g.preferred.IsSome()
}

func (g *Graph) isPreferred(n state.NodeId) bool {
	return g.preferred == fn.Some(n)
}

// Schedule returns the look-ahead to put in an advertisement sent now.
func (g *Graph) Schedule() Schedule {
	s := Schedule{Delay: g.nextDelay}
	g.lookahead.WhenSome(func(next split) {
		s.NextTime = next.first
		s.NextDelay = next.second
	})
	if g.trickle.active() {
		s.Delay = g.trickle.remaining()
		if g.pendingSend {
			s.Delay += g.nextDelay
		}
	}
	return s
}

// NoteConsistentAdvertisement counts an advertisement heard from a neighbor
// that agrees with this node's view of g.
func (c *Coordinator) NoteConsistentAdvertisement(g *Graph) {
	if g.left || g.counter == ^uint8(0) {
		return
	}
	g.counter++
}
