package sim

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/perf"
	"github.com/encodeous/fuzzyrpl/state"
)

// Scheduler runs fn once after d, on the same execution context as the alarms.
type Scheduler func(d time.Duration, fn func())

type NetworkStats struct {
	Sent      uint64
	Dropped   uint64
	Delivered uint64
}

// Network connects the simulated nodes over lossy links with latency.
type Network struct {
	alarms state.AlarmService
	after  Scheduler
	log    *slog.Logger
	link   state.LinkCfg
	rng    *rand.Rand

	nodes map[state.NodeId]*Node
	order []state.NodeId
	adj   map[state.NodeId][]state.NodeId
	Stats NetworkStats
}

func NewNetwork(cfg *state.MeshCfg, alarms state.AlarmService, after Scheduler, log *slog.Logger) (*Network, error) {
	links, err := cfg.Links()
	if err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	n := &Network{
		alarms: alarms,
		after:  after,
		log:    log,
		link:   cfg.Link,
		rng:    rand.New(rand.NewPCG(cfg.Seed, 0)),
		nodes:  make(map[state.NodeId]*Node),
		adj:    make(map[state.NodeId][]state.NodeId),
	}
	if n.link.Latency == 0 {
		n.link.Latency = state.DefaultLinkLatency
	}
	for _, l := range links {
		n.connect(l.V1, l.V2)
	}

	graph := core.GraphId(0)
	for i, ncfg := range cfg.Nodes {
		var id core.GraphId
		if ncfg.Root {
			graph++
			id = graph
		}
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)+1))
		node := newNode(n, ncfg, cfg.TimersFor(ncfg.Id), id, rng)
		n.nodes[ncfg.Id] = node
		n.order = append(n.order, ncfg.Id)
	}
	return n, nil
}

func (n *Network) connect(a, b state.NodeId) {
	if a == b || slices.Contains(n.adj[a], b) {
		return
	}
	n.adj[a] = append(n.adj[a], b)
	n.adj[b] = append(n.adj[b], a)
	slices.Sort(n.adj[a])
	slices.Sort(n.adj[b])
}

// Start boots every node.
func (n *Network) Start() {
	for _, id := range n.order {
		n.nodes[id].start()
	}
}

// Stop disarms the timers of every node.
func (n *Network) Stop() {
	for _, id := range n.order {
		n.nodes[id].timers.Stop()
	}
}

func (n *Network) Node(id state.NodeId) *Node {
	return n.nodes[id]
}

func (n *Network) Nodes() []*Node {
	nodes := make([]*Node, 0, len(n.order))
	for _, id := range n.order {
		nodes = append(nodes, n.nodes[id])
	}
	return nodes
}

func (n *Network) Neighbours(id state.NodeId) []state.NodeId {
	return slices.Clone(n.adj[id])
}

func (n *Network) linked(a, b state.NodeId) bool {
	return slices.Contains(n.adj[a], b)
}

// Cut takes the link between a and b down. Both ends notice immediately.
func (n *Network) Cut(a, b state.NodeId) error {
	if !n.linked(a, b) {
		return fmt.Errorf("no link between %s and %s", a, b)
	}
	n.adj[a] = slices.DeleteFunc(n.adj[a], func(x state.NodeId) bool { return x == b })
	n.adj[b] = slices.DeleteFunc(n.adj[b], func(x state.NodeId) bool { return x == a })
	n.nodes[a].linkDown(b)
	n.nodes[b].linkDown(a)
	return nil
}

// Connect brings a link between a and b up.
func (n *Network) Connect(a, b state.NodeId) error {
	if n.nodes[a] == nil || n.nodes[b] == nil {
		return fmt.Errorf("unknown node in link %s-%s", a, b)
	}
	n.connect(a, b)
	return nil
}

func (n *Network) delay() time.Duration {
	d := n.link.Latency
	if n.link.Jitter > 0 {
		d += time.Duration(n.rng.Int64N(int64(n.link.Jitter)))
	}
	return d
}

// send delivers msg to a direct neighbour of from.
func (n *Network) send(from, to state.NodeId, msg Message) {
	if !n.linked(from, to) {
		n.log.Debug("no link", "from", from, "to", to, "msg", msg)
		return
	}
	n.Stats.Sent++
	if n.link.Loss > 0 && n.rng.Float64() < n.link.Loss {
		n.Stats.Dropped++
		perf.MessagesDropped.Add(1)
		return
	}
	n.after(n.delay(), func() {
		// the link may have gone down while the message was in flight
		if !n.linked(from, to) {
			n.Stats.Dropped++
			perf.MessagesDropped.Add(1)
			return
		}
		n.Stats.Delivered++
		n.nodes[to].receive(from, msg)
	})
}

func (n *Network) broadcast(from state.NodeId, msg Message) {
	for _, to := range n.adj[from] {
		n.send(from, to, msg)
	}
}
