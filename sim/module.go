package sim

import (
	"log/slog"
	"time"

	"github.com/encodeous/fuzzyrpl/state"
)

// Mesh runs the configured network in real time on the main loop.
type Mesh struct {
	*Network
}

func (m *Mesh) Init(s *state.State) error {
	net, err := NewNetwork(&s.MeshCfg, s.Env, func(d time.Duration, fn func()) {
		s.ScheduleTask(func(*state.State) error {
			fn()
			return nil
		}, d)
	}, s.Log)
	if err != nil {
		return err
	}
	m.Network = net
	s.Log.Info("starting mesh", "nodes", len(net.order))
	net.Start()
	return nil
}

func (m *Mesh) Cleanup(s *state.State) error {
	if m.Network != nil {
		m.Stop()
	}
	return nil
}

// NewVirtual builds a network driven by a virtual clock starting at start.
func NewVirtual(cfg *state.MeshCfg, start time.Time, log *slog.Logger) (*Network, *state.VirtualScheduler, error) {
	v := state.NewVirtualScheduler(start)
	net, err := NewNetwork(cfg, v, v.AfterFunc, log)
	if err != nil {
		return nil, nil, err
	}
	return net, v, nil
}
