package state

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"
)

type NodeId string

// TrickleCfg bounds the advertisement interval. Zero values select the defaults.
type TrickleCfg struct {
	MinIntervalExp uint8 `yaml:"min_interval_exp,omitempty"`
	Doublings      uint8 `yaml:"doublings,omitempty"`
	Redundancy     uint8 `yaml:"redundancy,omitempty"`
}

type DiscoveryCfg struct {
	Disabled   bool   `yaml:"disabled,omitempty"`
	Interval   uint16 `yaml:"interval,omitempty"`    // in maintenance ticks
	StartDelay uint16 `yaml:"start_delay,omitempty"` // in maintenance ticks
}

type PredictorCfg struct {
	Skew     time.Duration `yaml:"skew,omitempty"`
	ProbeMin time.Duration `yaml:"probe_min,omitempty"`
	ProbeMax time.Duration `yaml:"probe_max,omitempty"`
}

type TimerCfg struct {
	Trickle       TrickleCfg    `yaml:"trickle,omitempty"`
	Discovery     DiscoveryCfg  `yaml:"discovery,omitempty"`
	Predictor     PredictorCfg  `yaml:"predictor,omitempty"`
	RepairLatency time.Duration `yaml:"repair_latency,omitempty"`
	RouteLifetime time.Duration `yaml:"route_lifetime,omitempty"`
}

// NodeCfg represents a single node of the mesh
type NodeCfg struct {
	Id        NodeId
	Prefix    netip.Prefix  `yaml:"prefix"`               // announced towards the root in repair messages
	Root      bool          `yaml:"root,omitempty"`       // the node forms a graph instead of joining one
	BootDelay time.Duration `yaml:"boot_delay,omitempty"` // time until the local address becomes usable
	Timers    *TimerCfg     `yaml:"timers,omitempty"`     // overrides the mesh-wide timers
}

type LinkCfg struct {
	Latency time.Duration `yaml:"latency,omitempty"`
	Jitter  time.Duration `yaml:"jitter,omitempty"`
	Loss    float64       `yaml:"loss,omitempty"` // probability in [0, 1) that a message is dropped
}

type MeshCfg struct {
	Nodes   []NodeCfg
	Graph   []string
	Link    LinkCfg  `yaml:"link,omitempty"`
	Timers  TimerCfg `yaml:"timers,omitempty"`
	Seed    uint64   `yaml:"seed,omitempty"`
	LogPath string   `yaml:"log_path,omitempty"` // if not empty, logs are also written to this file
}

// WithDefaults fills every zero field from the package defaults.
func (t TimerCfg) WithDefaults() TimerCfg {
	if t.Trickle.MinIntervalExp == 0 {
		t.Trickle.MinIntervalExp = DefaultMinIntervalExp
	}
	if t.Trickle.Doublings == 0 {
		t.Trickle.Doublings = DefaultDoublings
	}
	if t.Trickle.Redundancy == 0 {
		t.Trickle.Redundancy = DefaultRedundancy
	}
	if t.Discovery.Interval == 0 {
		t.Discovery.Interval = DiscoveryInterval
	}
	if t.Discovery.StartDelay == 0 {
		t.Discovery.StartDelay = DiscoveryStartDelay
	}
	if t.Predictor.Skew == 0 {
		t.Predictor.Skew = ArrivalSkew
	}
	if t.Predictor.ProbeMin == 0 {
		t.Predictor.ProbeMin = ProbeRetryMin
	}
	if t.Predictor.ProbeMax == 0 {
		t.Predictor.ProbeMax = ProbeRetryMax
	}
	if t.RepairLatency == 0 {
		t.RepairLatency = DefaultRepairLatency
	}
	if t.RouteLifetime == 0 {
		t.RouteLifetime = DefaultRouteLifetime
	}
	return t
}

func (m *MeshCfg) NodeIds() []NodeId {
	ids := make([]NodeId, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		ids = append(ids, n.Id)
	}
	return ids
}

func (m *MeshCfg) TryGetNode(id NodeId) *NodeCfg {
	idx := slices.IndexFunc(m.Nodes, func(cfg NodeCfg) bool {
		return cfg.Id == id
	})
	if idx == -1 {
		return nil
	}
	return &m.Nodes[idx]
}

// TimersFor returns the effective timer configuration of a node.
func (m *MeshCfg) TimersFor(id NodeId) TimerCfg {
	cfg := m.Timers
	if n := m.TryGetNode(id); n != nil && n.Timers != nil {
		cfg = *n.Timers
	}
	return cfg.WithDefaults()
}

func (m *MeshCfg) Links() ([]Pair[NodeId, NodeId], error) {
	return ParseGraph(m.Graph, m.NodeIds())
}

func parseSymbolList(s string, validSymbols []string) ([]string, error) {
	line := make([]string, 0)
	for _, sym := range strings.Split(strings.TrimSpace(s), ",") {
		x := strings.TrimSpace(sym)
		if x == "" {
			continue
		}
		if !slices.Contains(validSymbols, x) {
			return nil, fmt.Errorf(`%s is not a valid node/group`, x)
		}
		line = append(line, x)
	}
	if len(line) == 0 {
		return nil, fmt.Errorf(`node/group list must not be empty`)
	}
	slices.Sort(line)
	return line, nil
}

/*
ParseGraph turns the link syntax into the set of undirected links:

	left = n1, n2        // defines the group "left"
	right = n3, left     // groups may contain groups
	left, n4             // every member of left is linked to n4, members of left are not linked to each other
	right, right         // every member of right is linked to every other member
*/
func ParseGraph(graph []string, nodes []NodeId) ([]Pair[NodeId, NodeId], error) {
	isNode := func(sym string) bool {
		return slices.Contains(nodes, NodeId(sym))
	}
	symbols := make([]string, 0, len(nodes))
	for _, n := range nodes {
		symbols = append(symbols, string(n))
	}

	groups := make(map[string][]string)
	groupOrder := make([]string, 0)
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		name, _, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if strings.Count(line, "=") != 1 {
			return nil, fmt.Errorf("invalid graph: %s. group definition must contain one '='", line)
		}
		name = strings.TrimSpace(name)
		if isNode(name) {
			return nil, fmt.Errorf("group name must not be a node name: %s", name)
		}
		if _, dup := groups[name]; dup {
			return nil, fmt.Errorf("duplicate group name: %s", name)
		}
		groups[name] = nil
		groupOrder = append(groupOrder, name)
		symbols = append(symbols, name)
	}

	lines := make([][]string, 0)
	for _, line := range graph {
		line = strings.ToLower(strings.TrimSpace(line))
		if name, members, ok := strings.Cut(line, "="); ok {
			lst, err := parseSymbolList(members, symbols)
			if err != nil {
				return nil, err
			}
			groups[strings.TrimSpace(name)] = lst
			continue
		}
		names, err := parseSymbolList(line, symbols)
		if err != nil {
			return nil, err
		}
		if len(names) < 2 {
			return nil, fmt.Errorf("invalid pairing, %v", names)
		}
		lines = append(lines, names)
	}

	expanded := make(map[string][]NodeId)
	var expand func(sym string, path []string) ([]NodeId, error)
	expand = func(sym string, path []string) ([]NodeId, error) {
		if isNode(sym) {
			return []NodeId{NodeId(sym)}, nil
		}
		if members, ok := expanded[sym]; ok {
			return members, nil
		}
		if idx := slices.Index(path, sym); idx != -1 {
			cycle := slices.Clone(path[idx:])
			slices.Sort(cycle)
			return nil, fmt.Errorf("cycle detected in graph: %v", cycle)
		}
		members := make([]NodeId, 0)
		for _, m := range groups[sym] {
			sub, err := expand(m, append(path, sym))
			if err != nil {
				return nil, err
			}
			members = append(members, sub...)
		}
		slices.Sort(members)
		members = slices.Compact(members)
		expanded[sym] = members
		return members, nil
	}
	for _, g := range groupOrder {
		if _, err := expand(g, nil); err != nil {
			return nil, err
		}
	}

	pairings := make([]Pair[NodeId, NodeId], 0)
	for _, names := range lines {
		for i := range names {
			for j := i + 1; j < len(names); j++ {
				left, _ := expand(names[i], nil)
				right, _ := expand(names[j], nil)
				for _, x := range left {
					for _, y := range right {
						if x != y {
							pairings = append(pairings, MakeSortedPair(x, y))
						}
					}
				}
			}
		}
	}
	SortPairs(pairings)
	return slices.Compact(pairings), nil
}

// GetPeers returns the nodes linked to id.
func (m *MeshCfg) GetPeers(id NodeId) ([]NodeId, error) {
	links, err := m.Links()
	if err != nil {
		return nil, err
	}
	peers := make([]NodeId, 0)
	for _, l := range links {
		switch id {
		case l.V1:
			peers = append(peers, l.V2)
		case l.V2:
			peers = append(peers, l.V1)
		}
	}
	return peers, nil
}
