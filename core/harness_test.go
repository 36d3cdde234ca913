package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/fuzzyrpl/state"
	"github.com/google/go-cmp/cmp"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var epoch = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RouterHarness records every call the timers make into the router.
type RouterHarness struct {
	actions []HarnessEvent
	ready   bool
	// onSchedule observes every published schedule
	onSchedule func(g *Graph, s Schedule)
}

func (h *RouterHarness) PurgeExpiredRoutes() {
	h.actions = append(h.actions, MakeEvent("PURGE"))
}

func (h *RouterHarness) RecomputeRanks() {
	h.actions = append(h.actions, MakeEvent("RANKS"))
}

func (h *RouterHarness) LocalAddressReady() bool {
	return h.ready
}

func (h *RouterHarness) SendDiscoveryProbe(target fn.Option[state.NodeId]) {
	h.actions = append(h.actions, MakeEvent("DIS", target))
}

func (h *RouterHarness) SendAdvertisement(g *Graph, target fn.Option[state.NodeId]) {
	h.actions = append(h.actions, MakeEvent("DIO", g.Id, target))
}

func (h *RouterHarness) SendRepair(g *Graph, nextHop state.NodeId, lifetime time.Duration) {
	h.actions = append(h.actions, MakeEvent("DAO", g.Id, nextHop, lifetime))
}

func (h *RouterHarness) PublishSchedule(g *Graph, s Schedule) {
	if h.onSchedule != nil {
		h.onSchedule(g, s)
	}
	h.actions = append(h.actions, MakeEvent("SCHEDULE", g.Id, s))
}

func (h *RouterHarness) UpdateMetricContainer(g *Graph) {
	h.actions = append(h.actions, MakeEvent("METRIC", g.Id, g.Latency()))
}

func (h *RouterHarness) Log(event TimerEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}

// GetActions drains the recorded calls. Log events stay recorded for Logged.
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	logs := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			logs = append(logs, action)
		} else {
			x = append(x, action)
		}
	}
	h.actions = logs
	return x
}

// Logged counts the recorded log events of kind e without draining them.
func (h *RouterHarness) Logged(e TimerEvent) int {
	return len(slices.DeleteFunc(slices.Clone(h.actions), func(action HarnessEvent) bool {
		return action.Message != "LOG" || action.Args[0] != e
	}))
}

func (e HarnessEvents) count(msg string, args ...any) int {
	n := 0
	for _, event := range e {
		if event.Message != msg || len(event.Args) < len(args) {
			continue
		}
		match := true
		for i, arg := range args {
			if !cmp.Equal(event.Args[i], arg, cmp.Comparer(func(a, b fn.Option[state.NodeId]) bool {
				return a == b
			})) {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.count(msg, args...) > 0 {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.count(msg, args...) > 0 {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

func (e HarnessEvents) AssertCount(t *testing.T, n int, msg string, args ...any) {
	t.Helper()
	if got := e.count(msg, args...); got != n {
		t.Fatal("Expected ", n, " events ", msg, " with args: ", args, " got ", got, " in ", e)
	}
}

// fixedRand always draws the same value.
type fixedRand float64

func (f fixedRand) Float64() float64 {
	return float64(f)
}

func newHarness(cfg state.TimerCfg, rand Random) (*state.VirtualScheduler, *RouterHarness, *Coordinator) {
	v := state.NewVirtualScheduler(epoch)
	h := &RouterHarness{ready: true}
	c := NewCoordinator(v, h, rand, cfg)
	return v, h, c
}

var (
	broadcast = fn.None[state.NodeId]()
	unicastA  = fn.Some[state.NodeId]("A")
)
