package cmd

import (
	"log/slog"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/sim"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mesh in real time",
	Long:  `Runs every node of the mesh on the wall clock until interrupted. The state can be inspected with the inspect command while it runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadMesh()
		if err != nil {
			panic(err)
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		sock, _ := cmd.Flags().GetString("socket")
		every, _ := cmd.Flags().GetDuration("status")

		ready := make(chan *state.State, 1)
		go func() {
			s := <-ready
			if sock != "" {
				if err := core.ServeIPC(s, sock); err != nil {
					s.Log.Warn("failed to serve ipc", "socket", sock, "error", err)
				}
			}
			if every > 0 {
				reportStatus(s, every)
			}
		}()

		err = core.Start(*cfg, level, ready, &sim.Mesh{})
		if err != nil {
			panic(err)
		}
	},
	GroupID: "mesh",
}

// reportStatus logs a summary of every node until the main loop stops.
func reportStatus(s *state.State, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.Context.Done():
			return
		case <-ticker.C:
		}
		res, err := s.DispatchWait(func(s *state.State) (any, error) {
			m := state.Get[*sim.Mesh](s)
			if m == nil || m.Network == nil {
				return nil, nil
			}
			out := make(map[state.NodeId][]sim.Status)
			for _, n := range m.Nodes() {
				out[n.Id] = n.Status()
			}
			return out, nil
		})
		if err != nil || res == nil {
			continue
		}
		for id, st := range res.(map[state.NodeId][]sim.Status) {
			for _, g := range st {
				s.Log.Info("status", "node", id, "graph", g.Graph, "rank", g.Rank,
					"parent", g.Parent.UnwrapOr("-"), "exp", g.IntervalExp, "latency", g.Latency)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringP("socket", "s", "fuzzyrpl.sock", "Unix socket to serve inspect requests on, empty to disable")
	runCmd.Flags().DurationP("status", "t", state.StatusInterval, "Interval between status reports, 0 to disable")
}
