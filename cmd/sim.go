package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/encodeous/fuzzyrpl/sim"
	"github.com/encodeous/fuzzyrpl/state"
	"github.com/spf13/cobra"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Simulate the mesh on a virtual clock",
	Long: `Runs the mesh on a virtual clock as fast as possible and prints the state of every node at the end.
Links can be cut and restored during the run, e.g. --cut a-b@30s --connect a-b@90s.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadMesh()
		if err != nil {
			panic(err)
		}
		duration, _ := cmd.Flags().GetDuration("duration")
		cuts, _ := cmd.Flags().GetStringSlice("cut")
		connects, _ := cmd.Flags().GetStringSlice("connect")

		level := slog.LevelWarn
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		log, err := core.NewLogger(level, "sim", cfg.LogPath)
		if err != nil {
			panic(err)
		}

		net, v, err := sim.NewVirtual(cfg, time.Now(), log)
		if err != nil {
			panic(err)
		}
		schedule := func(events []string, apply func(a, b state.NodeId) error) {
			for _, e := range events {
				ev, err := parseLinkEvent(e)
				if err != nil {
					panic(err)
				}
				v.AfterFunc(ev.at, func() {
					if err := apply(ev.a, ev.b); err != nil {
						log.Warn("link event failed", "event", e, "error", err)
						return
					}
					log.Info("link event", "event", e)
				})
			}
		}
		schedule(cuts, net.Cut)
		schedule(connects, net.Connect)

		net.Start()
		v.Advance(duration)
		fmt.Print(net.Describe(v.Now()))
		net.Stop()
	},
	GroupID: "mesh",
}

func init() {
	rootCmd.AddCommand(simCmd)

	simCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	simCmd.Flags().DurationP("duration", "d", 10*time.Minute, "Virtual time to simulate")
	simCmd.Flags().StringSlice("cut", nil, "Take a link down at a virtual time, a-b@30s")
	simCmd.Flags().StringSlice("connect", nil, "Bring a link up at a virtual time, a-b@90s")
}
