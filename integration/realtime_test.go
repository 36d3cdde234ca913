//go:build integration

package integration

import (
	"net/netip"
	"testing"
	"time"

	"github.com/encodeous/fuzzyrpl/sim"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func prefix(i int) netip.Prefix {
	return netip.PrefixFrom(netip.AddrFrom16([16]byte{0xfd, 15: byte(i)}), 128)
}

// realtimeMesh uses short intervals so a line converges within a second
func realtimeMesh(graph ...string) state.MeshCfg {
	return state.MeshCfg{
		Nodes: []state.NodeCfg{
			{Id: "r", Root: true, Prefix: prefix(1)},
			{Id: "a", Prefix: prefix(2)},
			{Id: "b", Prefix: prefix(3)},
			{Id: "c", Prefix: prefix(4)},
		},
		Graph: graph,
		Link:  state.LinkCfg{Latency: time.Millisecond},
		Timers: state.TimerCfg{
			Trickle:       state.TrickleCfg{MinIntervalExp: 6, Doublings: 4, Redundancy: 3},
			Discovery:     state.DiscoveryCfg{Disabled: true},
			RepairLatency: 50 * time.Millisecond,
		},
		Seed: 3,
	}
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	h, err := StartRealtime(realtimeMesh("r, a", "a, b", "b, c"), nil)
	require.NoError(t, err)
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, h.Stop())
	assert.True(t, h.State.Stopping.Load())
}

func TestRealtimeLineConverges(t *testing.T) {
	defer goleak.VerifyNone(t)
	h, err := StartRealtime(realtimeMesh("r, a", "a, b", "b, c"), nil)
	require.NoError(t, err)
	defer h.Stop()

	attached := NewSignal()
	go func() {
		err := h.WaitFor(10*time.Second, func(net *sim.Network) bool {
			return net.Node("c").Rank(1) == 1024
		})
		if err == nil {
			attached.Trigger()
		}
	}()
	require.NoError(t, attached.Wait(15*time.Second))

	require.NoError(t, h.WaitFor(10*time.Second, func(net *sim.Network) bool {
		_, ok := net.Node("r").Lookup(prefix(4).Addr())
		return ok
	}))
}

func TestRealtimeFailover(t *testing.T) {
	defer goleak.VerifyNone(t)
	h, err := StartRealtime(realtimeMesh("r, a", "r, b", "a, c", "b, c"), nil)
	require.NoError(t, err)
	defer h.Stop()

	require.NoError(t, h.WaitFor(10*time.Second, func(net *sim.Network) bool {
		return net.Node("c").Parent(1).IsSome()
	}))
	res, err := h.Query(func(net *sim.Network) any {
		c := net.Node("c")
		first := c.Parent(1).UnsafeFromSome()
		if err := net.Cut(first, "c"); err != nil {
			return err
		}
		return first
	})
	require.NoError(t, err)
	first, ok := res.(state.NodeId)
	require.True(t, ok, "cut failed: %v", res)

	require.NoError(t, h.WaitFor(10*time.Second, func(net *sim.Network) bool {
		route, ok := net.Node("r").Lookup(prefix(4).Addr())
		return ok && route.NextHop != first
	}))
}
