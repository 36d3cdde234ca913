package state

import "time"

const (
	// InfiniteRank is advertised by nodes that are not attached to a graph.
	InfiniteRank = ^(uint16)(0)
)

var (
	MaintenanceTick = time.Second
	// DeferTick is how long a send is postponed while the local address is not usable.
	DeferTick = time.Second
	// IntervalUnit scales a trickle exponent e to a duration of 2^e units.
	IntervalUnit = time.Millisecond

	DefaultMinIntervalExp = uint8(12) // 4.096s
	DefaultDoublings      = uint8(8)  // ~17.5 minutes at most
	DefaultRedundancy     = uint8(10)
	DefaultRepairLatency  = time.Second * 8
	DefaultRouteLifetime  = time.Minute * 30

	// discovery probes are counted in maintenance ticks
	DiscoveryInterval   = uint16(60)
	DiscoveryStartDelay = uint16(5)

	// ArrivalSkew is added to the advertised window length to absorb propagation and processing delay.
	ArrivalSkew   = time.Millisecond * 400
	ProbeRetryMin = time.Millisecond * 100
	ProbeRetryMax = time.Second

	MinHopRankInc = uint16(256)
	RootRank      = MinHopRankInc
	// a node that lost every parent refuses to attach below its old rank for this long
	DetachHoldDown = time.Minute

	DefaultLinkLatency = time.Millisecond * 5

	// dispatches slower than this are reported
	DispatchWarnThreshold = time.Millisecond * 4
	StatusInterval        = time.Second * 10
)
