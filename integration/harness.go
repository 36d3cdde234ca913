//go:build integration

package integration

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/sim"
	"github.com/encodeous/fuzzyrpl/state"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}
func (s Signal) Triggered() bool {
	select {
	case <-s:
		return true
	default:
		return false
	}
}
func (s Signal) Wait(timeout time.Duration) error {
	select {
	case <-s:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("signal not triggered after %s", timeout)
	}
}

// RealtimeHarness runs a mesh on the dispatch loop with wall-clock alarms.
type RealtimeHarness struct {
	State *state.State
	Mesh  *sim.Mesh
	errs  chan error
}

func StartRealtime(cfg state.MeshCfg, log *slog.Logger) (*RealtimeHarness, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s, dispatch := core.NewState(cfg, log)
	h := &RealtimeHarness{
		State: s,
		Mesh:  &sim.Mesh{},
		errs:  make(chan error, 1),
	}
	if err := core.InitModules(s, h.Mesh); err != nil {
		return nil, err
	}
	go func() {
		h.errs <- core.MainLoop(s, dispatch)
	}()
	return h, nil
}

// Query runs fn on the main loop.
func (h *RealtimeHarness) Query(fn func(net *sim.Network) any) (any, error) {
	return h.State.DispatchWait(func(*state.State) (any, error) {
		return fn(h.Mesh.Network), nil
	})
}

// WaitFor polls cond on the main loop until it holds.
func (h *RealtimeHarness) WaitFor(timeout time.Duration, cond func(net *sim.Network) bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		res, err := h.Query(func(net *sim.Network) any {
			return cond(net)
		})
		if err != nil {
			return err
		}
		if res.(bool) {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("condition not met after %s", timeout)
}

// Stop cancels the main loop and returns its result.
func (h *RealtimeHarness) Stop() error {
	h.State.Cancel(nil)
	return <-h.errs
}
