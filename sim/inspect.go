package sim

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/encodeous/fuzzyrpl/state"
)

func (m *Mesh) Inspect() string {
	if m.Network == nil {
		return ""
	}
	return m.Describe(m.alarms.Now())
}

// Describe renders every node's graph memberships and route table.
func (n *Network) Describe(now time.Time) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Network: sent=%d delivered=%d dropped=%d\n", n.Stats.Sent, n.Stats.Delivered, n.Stats.Dropped))
	for _, node := range n.Nodes() {
		sb.WriteString(node.Describe(now))
	}
	return sb.String()
}

func (n *Node) Describe(now time.Time) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("\n%s:\n", n.Id))
	st := n.Status()
	if len(st) == 0 {
		sb.WriteString("  (detached)\n")
	}
	for _, s := range st {
		parent := s.Parent.UnwrapOr("-")
		rank := fmt.Sprint(s.Rank)
		if s.Rank == state.InfiniteRank {
			rank = "inf"
		}
		sb.WriteString(fmt.Sprintf("  graph %d root %s rank %s parent %s\n", s.Graph, s.Root, rank, parent))
		sb.WriteString(fmt.Sprintf("    trickle: exp=%d intervals=%d sent=%d suppressed=%d\n",
			s.IntervalExp, s.Stats.Intervals, s.Stats.Sent, s.Stats.Suppressed))
		sb.WriteString(fmt.Sprintf("    predictor: heard=%d latency=%s repairs=%d\n", s.Stats.Heard, s.Latency, s.Stats.Repairs))
	}

	rt := make([]string, 0)
	for prefix := range n.expiry {
		r, ok := n.routes.Get(prefix)
		if !ok {
			continue
		}
		rt = append(rt, describeRoute(prefix, r, now))
	}
	slices.Sort(rt)
	if len(rt) > 0 {
		sb.WriteString("  routes:\n")
		sb.WriteString(strings.Join(rt, "\n") + "\n")
	}
	ts := n.timers.Stats
	sb.WriteString(fmt.Sprintf("  timers: resets=%d discovery=%d\n", ts.Resets, ts.DiscoverySent))
	sb.WriteString(fmt.Sprintf("  sent: dio=%d dis=%d dao=%d forwarded=%d received=%d\n",
		n.Stats.DIOSent, n.Stats.DISSent, n.Stats.DAOSent, n.Stats.DAOForwarded, n.Stats.Received))
	return sb.String()
}

func describeRoute(prefix netip.Prefix, r Route, now time.Time) string {
	return fmt.Sprintf("    - %s via %s (graph %d) expires %.2fs", prefix, r.NextHop, r.Graph, r.Expires.Sub(now).Seconds())
}
