package core

import (
	"fmt"
	"time"

	"github.com/encodeous/fuzzyrpl/perf"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type trickleState int

const (
	trickleIdle trickleState = iota
	// trickleWaitSend waits for the randomized send point of the interval
	trickleWaitSend
	// trickleWaitEnd waits for the end of the interval
	trickleWaitEnd
)

func (s trickleState) String() string {
	switch s {
	case trickleIdle:
		return "idle"
	case trickleWaitSend:
		return "wait-send"
	case trickleWaitEnd:
		return "wait-end"
	}
	return fmt.Sprintf("trickleState(%d)", int(s))
}

// split draws the send point of an interval of 2^exp units. The first part
// is at least half the interval, the rest is the second part.
func (c *Coordinator) split(exp uint8) split {
	d := state.IntervalUnit << exp
	half := d / 2
	first := half + time.Duration(c.rand.Float64()*float64(half))
	return split{first: first, second: d - first}
}

func (g *Graph) startInterval() Transition[trickleState] {
	cur := g.lookahead.UnwrapOrFunc(func() split {
		return g.c.split(g.curExp)
	})

	g.Stats.Intervals++
	g.Stats.Received += uint64(g.counter)
	g.counter = 0
	g.pendingSend = true
	g.nextDelay = cur.second

	next := g.c.split(min(g.curExp+1, g.MaxIntervalExp()))
	g.lookahead = fn.Some(next)
	g.c.router.PublishSchedule(g, Schedule{
		Delay:     cur.second,
		NextTime:  next.first,
		NextDelay: next.second,
	})
	g.c.router.Log(IntervalStarted, "interval started",
		"graph", g.Id, "exp", g.curExp, "send_in", cur.first, "end_in", cur.first+cur.second)
	return Transition[trickleState]{trickleWaitSend, cur.first}
}

func (g *Graph) onTrickle() Transition[trickleState] {
	switch g.trickle.state {
	case trickleWaitSend:
		if !g.c.transmitReady() {
			g.c.router.Log(SendDeferred, "no usable local address, deferring advertisement", "graph", g.Id)
			return Transition[trickleState]{trickleWaitSend, state.DeferTick}
		}
		if g.counter < g.redundancy {
			g.Stats.Sent++
			perf.AdvertisementsSent.Add(1)
			g.c.router.Log(AdvertisementSent, "sending advertisement", "graph", g.Id, "exp", g.curExp)
			g.c.router.SendAdvertisement(g, fn.None[state.NodeId]())
		} else {
			g.Stats.Suppressed++
			perf.AdvertisementsSuppressed.Add(1)
			g.c.router.Log(AdvertisementSuppressed, "suppressing advertisement",
				"graph", g.Id, "heard", g.counter, "threshold", g.redundancy)
		}
		g.pendingSend = false
		return Transition[trickleState]{trickleWaitEnd, g.nextDelay}
	case trickleWaitEnd:
		if g.curExp < g.MaxIntervalExp() {
			g.curExp++
		}
		return g.startInterval()
	}
	return Transition[trickleState]{State: trickleIdle}
}

// ResetAdvertisementTimer returns g to the minimal interval. Without force the
// reset only happens when the interval has already grown.
func (c *Coordinator) ResetAdvertisementTimer(g *Graph, force bool) {
	if g.left {
		return
	}
	if !force && g.curExp <= g.minExp {
		return
	}
	c.Stats.Resets++
	g.curExp = g.minExp
	g.lookahead = fn.None[split]()
	g.trickle.apply(g.startInterval())
	c.router.Log(TimerReset, "advertisement timer reset", "graph", g.Id, "force", force)
}
