package cmd

import (
	"fmt"
	"net/netip"
	"os"

	"github.com/encodeous/fuzzyrpl/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var newMeshCmd = &cobra.Command{
	Use:   "new-mesh",
	Short: "Writes a sample mesh config",
	Long:  `Writes a mesh of n nodes to the config path. Node n0 is the root. A line links the nodes in order, a star links every node to the root.`,
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("nodes")
		topology, _ := cmd.Flags().GetString("topology")
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := sampleMesh(n, topology)
		if err != nil {
			panic(err)
		}
		if _, err := os.Stat(meshConfigPath); err == nil && !force {
			fmt.Printf("%s already exists, use --force to overwrite\n", meshConfigPath)
			return
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			panic(err)
		}
		err = os.WriteFile(meshConfigPath, out, 0600)
		if err != nil {
			panic(err)
		}
		fmt.Printf("wrote %s\n", meshConfigPath)
	},
	GroupID: "init",
}

func sampleMesh(n int, topology string) (*state.MeshCfg, error) {
	if n < 2 || n > 255 {
		return nil, fmt.Errorf("node count %d must be in [2, 255]", n)
	}
	cfg := &state.MeshCfg{
		Link: state.LinkCfg{Latency: state.DefaultLinkLatency},
		Seed: 1,
	}
	for i := range n {
		cfg.Nodes = append(cfg.Nodes, state.NodeCfg{
			Id:     state.NodeId(fmt.Sprintf("n%d", i)),
			Root:   i == 0,
			Prefix: netip.PrefixFrom(netip.AddrFrom16([16]byte{0xfd, 15: byte(i + 1)}), 128),
		})
	}
	for i := 1; i < n; i++ {
		switch topology {
		case "line":
			cfg.Graph = append(cfg.Graph, fmt.Sprintf("n%d, n%d", i-1, i))
		case "star":
			cfg.Graph = append(cfg.Graph, fmt.Sprintf("n0, n%d", i))
		default:
			return nil, fmt.Errorf("unknown topology %q", topology)
		}
	}
	return cfg, state.MeshConfigValidator(cfg)
}

func init() {
	rootCmd.AddCommand(newMeshCmd)

	newMeshCmd.Flags().IntP("nodes", "n", 5, "Number of nodes")
	newMeshCmd.Flags().StringP("topology", "t", "line", "line or star")
	newMeshCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config")
}
