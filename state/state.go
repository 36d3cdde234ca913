package state

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/clock"
)

type Module interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	Modules map[string]Module
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	MeshCfg
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Clock    clock.Clock
	Started  atomic.Bool
	Stopping atomic.Bool
}

// Get returns the module of type T registered on s, or the zero value.
func Get[T Module](s *State) T {
	for _, m := range s.Modules {
		if v, ok := m.(T); ok {
			return v
		}
	}
	var zero T
	return zero
}
