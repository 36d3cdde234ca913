package sim

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/state"
)

// Message is one control message exchanged over a simulated link.
type Message interface {
	fmt.Stringer
	message()
}

// DIO advertises a graph, the sender's rank in it and the sender's trickle schedule.
type DIO struct {
	Graph    core.GraphId
	Root     state.NodeId
	Rank     uint16
	Schedule core.Schedule
}

// DIS solicits advertisements.
type DIS struct {
	Unicast bool
}

// DAO announces that Target is reachable through the sender, for Lifetime.
type DAO struct {
	Graph    core.GraphId
	Origin   state.NodeId
	Target   netip.Prefix
	Lifetime time.Duration
	Hops     uint8
}

// maxDAOHops bounds forwarding while parent pointers still form a loop.
const maxDAOHops = 64

func (DIO) message() {}
func (DIS) message() {}
func (DAO) message() {}

func (m DIO) String() string {
	return fmt.Sprintf("DIO(graph: %d, root: %s, rank: %d, delay: %s, next: %s+%s)",
		m.Graph, m.Root, m.Rank, m.Schedule.Delay, m.Schedule.NextTime, m.Schedule.NextDelay)
}

func (m DIS) String() string {
	if m.Unicast {
		return "DIS(unicast)"
	}
	return "DIS"
}

func (m DAO) String() string {
	return fmt.Sprintf("DAO(graph: %d, origin: %s, target: %s, lifetime: %s)",
		m.Graph, m.Origin, m.Target, m.Lifetime)
}
