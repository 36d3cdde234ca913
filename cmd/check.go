package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validates the mesh config",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadMesh()
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		links, _ := cfg.Links()
		fmt.Printf("%s is valid: %d nodes, %d links\n", meshConfigPath, len(cfg.Nodes), len(links))
		for _, n := range cfg.Nodes {
			t := cfg.TimersFor(n.Id)
			fmt.Printf(" - %s root=%v prefix=%s trickle=2^%d..2^%d k=%d\n", n.Id, n.Root, n.Prefix,
				t.Trickle.MinIntervalExp, t.Trickle.MinIntervalExp+t.Trickle.Doublings, t.Trickle.Redundancy)
		}
	},
	GroupID: "mesh",
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
