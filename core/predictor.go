package core

import (
	"time"

	"github.com/encodeous/fuzzyrpl/perf"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type predictState int

const (
	predictIdle predictState = iota
	// predictWaiting waits until the end of the expected arrival window
	predictWaiting
	// predictProbing sends unicast discovery probes until the neighbor advertises again
	predictProbing
)

// Prediction tracks when the next advertisement of the preferred hop of a
// graph is due. The expected window is [IntervalStart+Time, IntervalStart+Time+Delay].
type Prediction struct {
	Neighbor      state.NodeId
	FirstReceived bool
	IntervalStart time.Time
	Time          time.Duration
	Delay         time.Duration

	g *Graph
	m *machine[predictState]
}

func newPrediction(g *Graph, n state.NodeId) *Prediction {
	p := &Prediction{
		Neighbor: n,
		g:        g,
	}
	p.m = newMachine(g.c.alarms, predictIdle, p.onExpire)
	return p
}

// ProbeOutstanding reports whether the expected advertisement was missed and
// the neighbor is being probed.
func (p *Prediction) ProbeOutstanding() bool {
	return p.m.state == predictProbing
}

// Expected is the start of the expected arrival window.
func (p *Prediction) Expected() time.Time {
	return p.IntervalStart.Add(p.Time)
}

// WindowEnd is the end of the expected arrival window.
func (p *Prediction) WindowEnd() time.Time {
	return p.IntervalStart.Add(p.Time + p.Delay)
}

// expect derives a fresh window from the schedule the neighbor advertised at now.
func (p *Prediction) expect(now time.Time, s Schedule) {
	p.IntervalStart = now.Add(s.Delay)
	p.Time = s.NextTime
	p.Delay = s.NextDelay
	p.m.apply(Transition[predictState]{predictWaiting, s.Window()})
	p.g.c.router.Log(PredictionArmed, "next advertisement expected",
		"graph", p.g.Id, "neighbor", p.Neighbor, "from", p.Expected(), "until", p.WindowEnd())
}

// stale reports whether p no longer belongs to the preferred hop of its graph.
func (p *Prediction) stale() bool {
	return p.g.prediction != p || !p.g.isPreferred(p.Neighbor)
}

func (p *Prediction) onExpire() Transition[predictState] {
	if p.stale() {
		return Transition[predictState]{State: predictIdle}
	}
	c := p.g.c
	switch p.m.state {
	case predictWaiting:
		p.FirstReceived = false
		perf.PredictionMisses.Add(1)
		c.router.Log(AdvertisementMissed, "expected advertisement did not arrive, probing",
			"graph", p.g.Id, "neighbor", p.Neighbor, "window_end", p.WindowEnd())
	case predictProbing:
		perf.ProbesSent.Add(1)
		c.router.Log(ProbeSent, "probing preferred hop", "graph", p.g.Id, "neighbor", p.Neighbor)
		c.router.SendDiscoveryProbe(fn.Some(p.Neighbor))
	}
	pc := c.cfg.Predictor
	return Transition[predictState]{predictProbing, c.uniform(pc.ProbeMin, pc.ProbeMax)}
}

// OnPreferredHopChosen starts tracking n, the new preferred hop of g, from
// the schedule it last advertised. That advertisement counts as the first
// one received, so the window is armed right away. Any previous prediction
// is dropped.
func (c *Coordinator) OnPreferredHopChosen(g *Graph, n state.NodeId, s Schedule) {
	if g.left {
		return
	}
	g.discardPrediction()
	g.preferred = fn.Some(n)
	p := newPrediction(g, n)
	g.prediction = p
	s.NextDelay += c.cfg.Predictor.Skew
	p.expect(c.Now(), s)
	p.FirstReceived = true
}

// ClearPreferredHop forgets the preferred hop of g and its prediction.
func (c *Coordinator) ClearPreferredHop(g *Graph) {
	g.discardPrediction()
	g.preferred = fn.None[state.NodeId]()
}

// OnAdvertisementReceived feeds the predictor with an advertisement heard
// from n carrying the sender's schedule.
func (c *Coordinator) OnAdvertisementReceived(g *Graph, n state.NodeId, s Schedule) {
	if g.left {
		return
	}
	p := g.prediction
	if p == nil || p.stale() || p.Neighbor != n {
		c.router.Log(StaleAdvertisement, "ignoring advertisement from non-preferred neighbor",
			"graph", g.Id, "neighbor", n)
		return
	}
	g.Stats.Heard++
	now := c.Now()
	s.NextDelay += c.cfg.Predictor.Skew

	switch {
	case p.ProbeOutstanding():
		// realign on the end of the window that was missed
		anchor := p.WindowEnd()
		residual := anchor.Add(s.NextTime).Sub(now)
		if residual < 0 {
			c.router.Log(RealignFailed, "advertised schedule already elapsed, predicting afresh",
				"graph", g.Id, "neighbor", n, "behind", -residual)
			p.expect(now, s)
			p.FirstReceived = true
			return
		}
		p.IntervalStart = anchor
		p.Time = s.NextTime
		p.Delay = s.NextDelay
		p.FirstReceived = true
		p.m.apply(Transition[predictState]{predictWaiting, residual + s.NextDelay})
		c.router.Log(ProbeRecovered, "preferred hop advertised again",
			"graph", g.Id, "neighbor", n, "from", p.Expected(), "until", p.WindowEnd())
	case now.After(p.Expected()):
		g.latency = now.Sub(p.Expected())
		perf.LatencySamples.Add(float64(g.latency.Milliseconds()))
		c.router.Log(LateAdvertisement, "advertisement arrived after the expected time",
			"graph", g.Id, "neighbor", n, "latency", g.latency)
		c.router.UpdateMetricContainer(g)
		p.expect(now, s)
	case s.NextTime+s.NextDelay == p.Time+p.Delay:
		p.expect(now, s)
	default:
		// the sender changed its schedule, usually after a reset
		c.router.Log(ScheduleDiverged, "advertisement with a new schedule",
			"graph", g.Id, "neighbor", n, "was_until", p.WindowEnd())
		p.expect(now, s)
	}
}

func (g *Graph) discardPrediction() {
	if g.prediction == nil {
		return
	}
	g.prediction.m.stop()
	g.prediction = nil
	g.latency = 0
}
