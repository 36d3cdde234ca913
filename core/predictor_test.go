package core

import (
	"testing"
	"time"

	"github.com/encodeous/fuzzyrpl/state"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ms = time.Millisecond

func predictorCfg() state.TimerCfg {
	return state.TimerCfg{
		Predictor: state.PredictorCfg{
			Skew:     400 * ms,
			ProbeMin: 100 * ms,
			ProbeMax: time.Second,
		},
		Trickle: state.TrickleCfg{MinIntervalExp: 20},
	}
}

// the neighbor schedule used throughout: nothing left of the current
// interval, the next one sends after 1000 and ends 500 later
var adSchedule = Schedule{Delay: 0, NextTime: 1000 * ms, NextDelay: 500 * ms}

func TestPredictor_Window(t *testing.T) {
	_, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)

	p := g.Prediction()
	require.NotNil(t, p)
	assert.Equal(t, state.NodeId("A"), p.Neighbor)
	assert.True(t, p.FirstReceived)
	assert.False(t, p.ProbeOutstanding())
	assert.Equal(t, epoch.Add(1000*ms), p.Expected())
	assert.Equal(t, epoch.Add(1900*ms), p.WindowEnd())
	assert.Equal(t, fn.Some[state.NodeId]("A"), g.PreferredHop())
	assert.Equal(t, 1, h.Logged(PredictionArmed))
}

func TestPredictor_LateAdvertisement(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)

	v.Advance(1600 * ms)
	c.OnAdvertisementReceived(g, "A", adSchedule)
	assert.Equal(t, 600*ms, g.Latency())
	a := h.GetActions()
	a.AssertCount(t, 1, "METRIC", GraphId(1), 600*ms)

	// the window restarts from the new advertisement
	p := g.Prediction()
	assert.Equal(t, epoch.Add(2600*ms), p.Expected())
	assert.Equal(t, epoch.Add(3500*ms), p.WindowEnd())

	v.Advance(1400 * ms)
	c.OnAdvertisementReceived(g, "A", adSchedule)
	assert.Equal(t, 400*ms, g.Latency())
	a = h.GetActions()
	a.AssertCount(t, 1, "METRIC", GraphId(1), 400*ms)
	assert.Equal(t, 0, h.Logged(AdvertisementMissed))
}

func TestPredictor_EarlyUnchangedSchedule(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)

	v.Advance(500 * ms)
	c.OnAdvertisementReceived(g, "A", adSchedule)
	a := h.GetActions()
	a.AssertNotContains(t, "METRIC")
	assert.Equal(t, time.Duration(0), g.Latency())

	p := g.Prediction()
	assert.Equal(t, epoch.Add(1500*ms), p.Expected())
	assert.Equal(t, epoch.Add(2400*ms), p.WindowEnd())
	assert.Equal(t, 2, h.Logged(PredictionArmed))

	// the wait timer moved with the window
	v.Advance(1800 * ms)
	assert.False(t, p.ProbeOutstanding())
	v.Advance(100 * ms)
	assert.True(t, p.ProbeOutstanding())
}

func TestPredictor_DivergedSchedule(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)

	v.Advance(500 * ms)
	c.OnAdvertisementReceived(g, "A", Schedule{NextTime: 2000 * ms, NextDelay: 500 * ms})
	assert.Equal(t, 1, h.Logged(ScheduleDiverged))

	// no latency sample, the window follows the new schedule
	p := g.Prediction()
	assert.Equal(t, epoch.Add(2500*ms), p.Expected())
	assert.Equal(t, epoch.Add(3400*ms), p.WindowEnd())
	a := h.GetActions()
	a.AssertNotContains(t, "METRIC")

	v.Advance(2000 * ms)
	assert.False(t, p.ProbeOutstanding())
}

// an advertisement arriving exactly at the expected time is on time
func TestPredictor_OnTimeAtWindowStart(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)

	v.Advance(1000 * ms)
	c.OnAdvertisementReceived(g, "A", Schedule{NextTime: 2000 * ms, NextDelay: 1000 * ms})
	a := h.GetActions()
	a.AssertNotContains(t, "METRIC")
	assert.Equal(t, epoch.Add(3000*ms), g.Prediction().Expected())
}

func TestPredictor_ProbeLoop(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)
	p := g.Prediction()

	v.Advance(1899 * ms)
	assert.False(t, p.ProbeOutstanding())
	v.Advance(1 * ms)
	assert.True(t, p.ProbeOutstanding())
	assert.False(t, p.FirstReceived)
	assert.Equal(t, 1, h.Logged(AdvertisementMissed))
	a := h.GetActions()
	a.AssertNotContains(t, "DIS")

	// the zero draw probes every 100ms
	v.Advance(200 * ms)
	a = h.GetActions()
	a.AssertCount(t, 2, "DIS", unicastA)
	assert.Equal(t, 1, h.Logged(AdvertisementMissed))

	// realign on the missed window: it ended at 1900, the advertisement
	// announces a send 1000 later
	c.OnAdvertisementReceived(g, "A", adSchedule)
	assert.False(t, p.ProbeOutstanding())
	assert.True(t, p.FirstReceived)
	assert.Equal(t, 1, h.Logged(ProbeRecovered))
	assert.Equal(t, epoch.Add(2900*ms), p.Expected())
	assert.Equal(t, epoch.Add(3800*ms), p.WindowEnd())

	v.Advance(1699 * ms)
	a = h.GetActions()
	a.AssertNotContains(t, "DIS")
	assert.False(t, p.ProbeOutstanding())
	v.Advance(1 * ms)
	assert.True(t, p.ProbeOutstanding())
}

func TestPredictor_RealignFailed(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)
	p := g.Prediction()

	v.Advance(4 * time.Second)
	require.True(t, p.ProbeOutstanding())

	c.OnAdvertisementReceived(g, "A", Schedule{NextTime: 100 * ms, NextDelay: 100 * ms})
	assert.Equal(t, 1, h.Logged(RealignFailed))
	assert.False(t, p.ProbeOutstanding())
	assert.Equal(t, epoch.Add(4100*ms), p.Expected())
	assert.Equal(t, epoch.Add(4600*ms), p.WindowEnd())
}

func TestPredictor_SwitchPreferredHop(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)
	old := g.Prediction()

	v.Advance(500 * ms)
	c.OnPreferredHopChosen(g, "B", Schedule{NextTime: 5 * time.Second, NextDelay: time.Second})
	p := g.Prediction()
	require.NotSame(t, old, p)
	assert.Equal(t, state.NodeId("B"), p.Neighbor)
	assert.Equal(t, epoch.Add(5500*ms), p.Expected())

	// A is no longer tracked, its window lapses silently
	c.OnAdvertisementReceived(g, "A", adSchedule)
	assert.Equal(t, 1, h.Logged(StaleAdvertisement))
	assert.Equal(t, epoch.Add(5500*ms), p.Expected())
	v.Advance(3 * time.Second)
	assert.Equal(t, 0, h.Logged(AdvertisementMissed))
	a := h.GetActions()
	a.AssertNotContains(t, "DIS")
	assert.False(t, old.ProbeOutstanding())

	c.OnAdvertisementReceived(g, "B", Schedule{NextTime: 5 * time.Second, NextDelay: time.Second})
	assert.Equal(t, time.Duration(0), g.Latency())
	assert.Equal(t, uint64(1), g.Stats.Heard)
}

func TestPredictor_SwitchDuringProbe(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)
	v.Advance(2 * time.Second)
	require.True(t, g.Prediction().ProbeOutstanding())

	c.OnPreferredHopChosen(g, "B", Schedule{NextTime: time.Hour})
	h.GetActions()
	v.Advance(5 * time.Second)
	a := h.GetActions()
	a.AssertNotContains(t, "DIS")
}

func TestPredictor_ClearPreferredHop(t *testing.T) {
	v, h, c := newHarness(predictorCfg(), fixedRand(0))
	g := c.JoinGraph(1)
	c.OnPreferredHopChosen(g, "A", adSchedule)
	v.Advance(1600 * ms)
	c.OnAdvertisementReceived(g, "A", adSchedule)
	require.Equal(t, 600*ms, g.Latency())

	c.ClearPreferredHop(g)
	assert.Nil(t, g.Prediction())
	assert.True(t, g.PreferredHop().IsNone())
	assert.Equal(t, time.Duration(0), g.Latency())

	c.OnAdvertisementReceived(g, "A", adSchedule)
	assert.Equal(t, 1, h.Logged(StaleAdvertisement))
	v.Advance(10 * time.Second)
	a := h.GetActions()
	a.AssertNotContains(t, "DIS")
}
