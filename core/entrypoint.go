package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/encodeous/fuzzyrpl/perf"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	"github.com/lightningnetwork/lnd/clock"
	slogmulti "github.com/samber/slog-multi"
)

// ReadMeshConfig loads the mesh description at cfgPath.
func ReadMeshConfig(cfgPath string) (*state.MeshCfg, error) {
	var cfg state.MeshCfg
	file, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", cfgPath, err)
	}
	return &cfg, nil
}

// NewLogger writes colored output to stderr, and plain text to logPath if set.
func NewLogger(level slog.Level, prefix, logPath string) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			CustomPrefix: prefix,
			TimeFormat:   time.StampMilli,
		}))

	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// NewState builds the single-threaded state and its dispatch queue.
func NewState(cfg state.MeshCfg, logger *slog.Logger) (*state.State, chan func(*state.State) error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	dispatch := make(chan func(env *state.State) error, 128)
	s := &state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			MeshCfg:         cfg,
			Log:             logger,
			Clock:           clock.NewDefaultClock(),
		},
	}
	return s, dispatch
}

// Start runs modules on the main loop until a shutdown signal arrives or a
// dispatched function fails. If ready is not nil, it receives the state once
// every module is initialized.
func Start(cfg state.MeshCfg, logLevel slog.Level, ready chan<- *state.State, modules ...state.Module) error {
	logger, err := NewLogger(logLevel, "fuzzyrpl", cfg.LogPath)
	if err != nil {
		return err
	}
	s, dispatch := NewState(cfg, logger)

	s.Log.Info("init modules")
	err = InitModules(s, modules...)
	if err != nil {
		return err
	}
	s.Log.Info("init modules complete")
	s.Log.Info("fuzzyrpl has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")
	if ready != nil {
		ready <- s
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-s.Context.Done():
			return
		}
	}()

	return MainLoop(s, dispatch)
}

// InitModules registers and initializes modules in order. Initialization
// runs before the main loop, so modules may touch the state directly.
func InitModules(s *state.State, modules ...state.Module) error {
	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return fmt.Errorf("init %T: %w", module, err)
		}
	}
	return nil
}

// MainLoop executes dispatched functions one at a time until the context is
// cancelled, then stops every module.
func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	var failure error
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := runDispatched(s, fun)
			if err != nil {
				s.Log.Error("error occurred during dispatch", "error", err)
				failure = err
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.DispatchWarnThreshold {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
			Stop(s)
			return failure
		}
	}
}

// runDispatched turns a panic of fun into its error.
func runDispatched(s *state.State, fun func(*state.State) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during dispatch: %v", r)
		}
	}()
	return fun(s)
}

// Stop cancels the context and cleans up every module. It is idempotent.
// The dispatch channel stays open, senders give up on the cancelled context.
func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}
