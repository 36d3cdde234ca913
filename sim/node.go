package sim

import (
	"fmt"
	"log/slog"
	"maps"
	"net/netip"
	"slices"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/gaissmai/bart"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type Route struct {
	Graph   core.GraphId
	NextHop state.NodeId
	Expires time.Time
}

type NodeStats struct {
	DIOSent      uint64
	DISSent      uint64
	DAOSent      uint64
	DAOForwarded uint64
	Received     uint64
	ParentSwitch uint64
}

type candidate struct {
	rank  uint16
	sched core.Schedule
	heard time.Time
}

// scheduleAt ages the advertised schedule to now. The delay may turn
// negative once the advertised interval already ended.
func (c candidate) scheduleAt(now time.Time) core.Schedule {
	s := c.sched
	s.Delay -= now.Sub(c.heard)
	return s
}

// dag is this node's membership in one graph.
type dag struct {
	g          *core.Graph
	root       state.NodeId
	rank       uint16
	parent     fn.Option[state.NodeId]
	candidates map[state.NodeId]candidate
	published  core.Schedule
	latency    time.Duration
	// last time a repair toward the parent was requested
	repairAt time.Time
	// after detaching, only candidates ranked below floor are eligible until holdUntil
	floor     uint16
	holdUntil time.Time
}

// Node is a simulated router. It owns the route table and rank computation
// and lets its Coordinator decide when to advertise, repair and probe.
type Node struct {
	Id     state.NodeId
	cfg    state.NodeCfg
	net    *Network
	log    *slog.Logger
	timers *core.Coordinator
	// forms is the graph this node roots, zero if it only joins
	forms  core.GraphId
	bootAt time.Time

	dags   map[core.GraphId]*dag
	routes bart.Table[Route]
	expiry map[netip.Prefix]time.Time
	Stats  NodeStats
}

func newNode(n *Network, cfg state.NodeCfg, timers state.TimerCfg, forms core.GraphId, rng core.Random) *Node {
	node := &Node{
		Id:     cfg.Id,
		cfg:    cfg,
		net:    n,
		log:    n.log.With("node", cfg.Id),
		forms:  forms,
		dags:   make(map[core.GraphId]*dag),
		expiry: make(map[netip.Prefix]time.Time),
	}
	node.timers = core.NewCoordinator(n.alarms, node, rng, timers)
	return node
}

func (n *Node) Timers() *core.Coordinator {
	return n.timers
}

func (n *Node) start() {
	n.bootAt = n.timers.Now().Add(n.cfg.BootDelay)
	n.timers.StartMaintenance()
	if n.forms != 0 {
		d := &dag{
			root:       n.Id,
			rank:       state.RootRank,
			candidates: make(map[state.NodeId]candidate),
		}
		n.dags[n.forms] = d
		d.g = n.timers.JoinGraph(n.forms)
		n.log.Info("formed graph", "graph", n.forms)
	}
}

func (n *Node) isRoot(d *dag) bool {
	return d.root == n.Id
}

// Rank returns the rank of the node in graph id.
func (n *Node) Rank(id core.GraphId) uint16 {
	d, ok := n.dags[id]
	if !ok {
		return state.InfiniteRank
	}
	return d.rank
}

func (n *Node) Parent(id core.GraphId) fn.Option[state.NodeId] {
	d, ok := n.dags[id]
	if !ok {
		return fn.None[state.NodeId]()
	}
	return d.parent
}

// Lookup finds the route toward addr, longest prefix first.
func (n *Node) Lookup(addr netip.Addr) (Route, bool) {
	return n.routes.Lookup(addr)
}

func (n *Node) RouteCount() int {
	return len(n.expiry)
}

func (n *Node) receive(from state.NodeId, msg Message) {
	n.Stats.Received++
	switch m := msg.(type) {
	case DIO:
		n.handleDIO(from, m)
	case DIS:
		n.handleDIS(from, m)
	case DAO:
		n.handleDAO(from, m)
	}
}

func (n *Node) handleDIO(from state.NodeId, m DIO) {
	d, ok := n.dags[m.Graph]
	if !ok {
		if m.Rank == state.InfiniteRank {
			return
		}
		d = &dag{
			root:       m.Root,
			rank:       state.InfiniteRank,
			candidates: make(map[state.NodeId]candidate),
		}
		n.dags[m.Graph] = d
		d.g = n.timers.JoinGraph(m.Graph)
		n.log.Info("joined graph", "graph", m.Graph, "root", m.Root, "via", from)
	}

	prev, known := d.candidates[from]
	if m.Rank == state.InfiniteRank {
		delete(d.candidates, from)
	} else {
		d.candidates[from] = candidate{rank: m.Rank, sched: m.Schedule, heard: n.timers.Now()}
	}
	switch {
	case known && prev.rank == m.Rank:
		n.timers.NoteConsistentAdvertisement(d.g)
	case !known && m.Rank == state.InfiniteRank:
		// a detached neighbour we never counted on
	default:
		n.timers.ResetAdvertisementTimer(d.g, false)
	}

	if n.isRoot(d) {
		return
	}
	if n.selectParent(d) {
		return
	}
	if d.parent == fn.Some(from) {
		n.timers.OnAdvertisementReceived(d.g, from, m.Schedule)
	}
}

func (n *Node) handleDIS(from state.NodeId, m DIS) {
	if !m.Unicast {
		for _, d := range n.sortedDags() {
			n.timers.ResetAdvertisementTimer(d.g, false)
		}
		return
	}
	for _, d := range n.sortedDags() {
		n.SendAdvertisement(d.g, fn.Some(from))
	}
}

func (n *Node) handleDAO(from state.NodeId, m DAO) {
	d, ok := n.dags[m.Graph]
	if !ok || !m.Target.IsValid() {
		return
	}
	n.installRoute(m.Target, Route{
		Graph:   m.Graph,
		NextHop: from,
		Expires: n.timers.Now().Add(m.Lifetime),
	})
	if n.isRoot(d) {
		return
	}
	if m.Hops >= maxDAOHops {
		n.log.Warn("dropping looping DAO", "target", m.Target, "origin", m.Origin)
		return
	}
	m.Hops++
	d.parent.WhenSome(func(parent state.NodeId) {
		n.Stats.DAOForwarded++
		n.net.send(n.Id, parent, m)
	})
}

func (n *Node) installRoute(prefix netip.Prefix, r Route) {
	n.routes.Insert(prefix, r)
	n.expiry[prefix] = r.Expires
}

func (n *Node) linkDown(peer state.NodeId) {
	for _, d := range n.sortedDags() {
		if _, ok := d.candidates[peer]; !ok {
			continue
		}
		delete(d.candidates, peer)
		if !n.isRoot(d) {
			n.selectParent(d)
		}
	}
}

// selectParent picks the candidate with the lowest rank, keeping the current
// parent on ties. Only candidates ranked below the node are eligible unless it
// is detached. It reports whether the parent changed.
func (n *Node) selectParent(d *dag) bool {
	best := fn.None[state.NodeId]()
	bestRank := state.InfiniteRank
	held := n.timers.Now().Before(d.holdUntil)
	ids := slices.Sorted(maps.Keys(d.candidates))
	for _, id := range ids {
		c := d.candidates[id]
		if c.rank >= d.rank && d.rank != state.InfiniteRank && d.parent != fn.Some(id) {
			continue
		}
		if held && c.rank >= d.floor {
			continue
		}
		if c.rank < bestRank || (c.rank == bestRank && d.parent == fn.Some(id)) {
			best = fn.Some(id)
			bestRank = c.rank
		}
	}

	rank := state.InfiniteRank
	if bestRank <= state.InfiniteRank-state.MinHopRankInc {
		rank = bestRank + state.MinHopRankInc
	} else {
		best = fn.None[state.NodeId]()
	}

	changed := best != d.parent
	if best.IsNone() && d.parent.IsSome() {
		d.floor = d.rank
		d.holdUntil = n.timers.Now().Add(state.DetachHoldDown)
	}
	if rank != d.rank {
		n.log.Debug("rank changed", "graph", d.g.Id, "from", d.rank, "to", rank)
		d.rank = rank
		if !changed {
			n.timers.ResetAdvertisementTimer(d.g, false)
		}
	}
	if !changed {
		return false
	}

	d.parent = best
	n.Stats.ParentSwitch++
	if best.IsNone() {
		n.log.Warn("lost every parent", "graph", d.g.Id)
		// whatever is left ranks below the old position and may be a descendant
		clear(d.candidates)
		n.timers.ClearPreferredHop(d.g)
		n.timers.ResetAdvertisementTimer(d.g, true)
		return true
	}
	best.WhenSome(func(parent state.NodeId) {
		n.log.Info("preferred parent changed", "graph", d.g.Id, "parent", parent, "rank", rank)
		n.timers.OnPreferredHopChosen(d.g, parent, d.candidates[parent].scheduleAt(n.timers.Now()))
		n.timers.ResetAdvertisementTimer(d.g, true)
		n.requestRepair(d)
	})
	return true
}

func (n *Node) requestRepair(d *dag) {
	d.repairAt = n.timers.Now()
	n.timers.RequestRepair(d.g)
}

func (n *Node) sortedDags() []*dag {
	ids := slices.Sorted(maps.Keys(n.dags))
	dags := make([]*dag, 0, len(ids))
	for _, id := range ids {
		dags = append(dags, n.dags[id])
	}
	return dags
}

// Router implementation

func (n *Node) PurgeExpiredRoutes() {
	now := n.timers.Now()
	for prefix, at := range n.expiry {
		if now.Before(at) {
			continue
		}
		n.routes.Delete(prefix)
		delete(n.expiry, prefix)
		n.log.Debug("route expired", "prefix", prefix)
	}
}

// RecomputeRanks also refreshes the downward route before it expires at the root.
func (n *Node) RecomputeRanks() {
	now := n.timers.Now()
	for _, d := range n.sortedDags() {
		if n.isRoot(d) || n.selectParent(d) {
			continue
		}
		if d.parent.IsSome() && now.Sub(d.repairAt) >= d.g.RouteLifetime()/2 {
			n.requestRepair(d)
		}
	}
}

func (n *Node) LocalAddressReady() bool {
	return !n.timers.Now().Before(n.bootAt)
}

func (n *Node) SendDiscoveryProbe(target fn.Option[state.NodeId]) {
	n.Stats.DISSent++
	if target.IsNone() {
		n.net.broadcast(n.Id, DIS{})
	}
	target.WhenSome(func(to state.NodeId) {
		n.net.send(n.Id, to, DIS{Unicast: true})
	})
}

func (n *Node) SendAdvertisement(g *core.Graph, target fn.Option[state.NodeId]) {
	d, ok := n.dags[g.Id]
	if !ok {
		return
	}
	msg := DIO{
		Graph:    g.Id,
		Root:     d.root,
		Rank:     d.rank,
		Schedule: g.Schedule(),
	}
	n.Stats.DIOSent++
	if target.IsNone() {
		n.net.broadcast(n.Id, msg)
	}
	target.WhenSome(func(to state.NodeId) {
		n.net.send(n.Id, to, msg)
	})
}

func (n *Node) SendRepair(g *core.Graph, nextHop state.NodeId, lifetime time.Duration) {
	if !n.cfg.Prefix.IsValid() {
		n.log.Debug("no prefix to announce", "graph", g.Id)
		return
	}
	n.Stats.DAOSent++
	n.net.send(n.Id, nextHop, DAO{
		Graph:    g.Id,
		Origin:   n.Id,
		Target:   n.cfg.Prefix,
		Lifetime: lifetime,
	})
}

func (n *Node) PublishSchedule(g *core.Graph, s core.Schedule) {
	if d, ok := n.dags[g.Id]; ok {
		d.published = s
	}
}

func (n *Node) UpdateMetricContainer(g *core.Graph) {
	if d, ok := n.dags[g.Id]; ok {
		d.latency = g.Latency()
	}
}

func (n *Node) Log(event core.TimerEvent, desc string, args ...any) {
	msg := fmt.Sprintf("%s %s", event.String(), desc)
	if event.IsWarning() {
		n.log.Warn(msg, args...)
		return
	}
	n.log.Debug(msg, args...)
}

// Status summarizes one graph membership.
type Status struct {
	Graph       core.GraphId
	Root        state.NodeId
	Rank        uint16
	Parent      fn.Option[state.NodeId]
	IntervalExp uint8
	Latency     time.Duration
	Advertised  core.Schedule
	Stats       core.GraphStats
}

func (n *Node) Status() []Status {
	out := make([]Status, 0, len(n.dags))
	for _, d := range n.sortedDags() {
		out = append(out, Status{
			Graph:       d.g.Id,
			Root:        d.root,
			Rank:        d.rank,
			Parent:      d.parent,
			IntervalExp: d.g.IntervalExp(),
			Latency:     d.latency,
			Advertised:  d.published,
			Stats:       d.g.Stats,
		})
	}
	return out
}
