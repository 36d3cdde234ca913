package core

import (
	"fmt"
	"time"

	"github.com/encodeous/fuzzyrpl/state"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type TimerEvent int

// trace events

const (
	AdvertisementSent TimerEvent = iota
	AdvertisementSuppressed
	SendDeferred
	IntervalStarted
	TimerReset
	RepairScheduled
	RepairAlreadyScheduled
	RepairSent
	DiscoverySent
	PredictionArmed
	LateAdvertisement
	ScheduleDiverged
	StaleAdvertisement
	ProbeSent
	ProbeRecovered
)

// warn events

const (
	NoPreferredHop TimerEvent = iota + 1000
	AdvertisementMissed
	RealignFailed
)

var eventNames = map[TimerEvent]string{
	AdvertisementSent:       "AdvertisementSent",
	AdvertisementSuppressed: "AdvertisementSuppressed",
	SendDeferred:            "SendDeferred",
	IntervalStarted:         "IntervalStarted",
	TimerReset:              "TimerReset",
	RepairScheduled:         "RepairScheduled",
	RepairAlreadyScheduled:  "RepairAlreadyScheduled",
	RepairSent:              "RepairSent",
	DiscoverySent:           "DiscoverySent",
	PredictionArmed:         "PredictionArmed",
	LateAdvertisement:       "LateAdvertisement",
	ScheduleDiverged:        "ScheduleDiverged",
	StaleAdvertisement:      "StaleAdvertisement",
	ProbeSent:               "ProbeSent",
	ProbeRecovered:          "ProbeRecovered",
	NoPreferredHop:          "NoPreferredHop",
	AdvertisementMissed:     "AdvertisementMissed",
	RealignFailed:           "RealignFailed",
}

func (e TimerEvent) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("TimerEvent(%d)", int(e))
}

// IsWarning reports whether the event signals degraded convergence rather than normal operation.
func (e TimerEvent) IsWarning() bool {
	return e >= NoPreferredHop
}

// Router is the set of collaborators the timers drive. It owns the route
// table, rank computation and message encoding; the timers only decide when.
type Router interface {
	PurgeExpiredRoutes()
	RecomputeRanks()
	// LocalAddressReady gates every transmission.
	LocalAddressReady() bool
	// SendDiscoveryProbe solicits advertisements. None broadcasts.
	SendDiscoveryProbe(target fn.Option[state.NodeId])
	// SendAdvertisement emits g's advertisement carrying g.Schedule(). None broadcasts.
	SendAdvertisement(g *Graph, target fn.Option[state.NodeId])
	SendRepair(g *Graph, nextHop state.NodeId, lifetime time.Duration)
	// PublishSchedule hands over the triple the next advertisement of g will carry.
	PublishSchedule(g *Graph, s Schedule)
	// UpdateMetricContainer is invoked after g.Latency() changed.
	UpdateMetricContainer(g *Graph)
	Log(event TimerEvent, desc string, args ...any)
}

// Random yields uniformly distributed values in [0, 1).
type Random interface {
	Float64() float64
}
