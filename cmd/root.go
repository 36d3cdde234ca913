package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var meshConfigPath = "mesh.yaml"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fuzzyrpl",
	Short: "Fuzzy RPL timer simulator",
	Long: `fuzzyrpl runs the timers of an RPL-style routing protocol over a simulated mesh.
Every node advertises with a trickle timer, predicts when its preferred parent advertises next, and probes it when the advertisement does not arrive.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Create a Mesh",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "mesh",
		Title: "Mesh Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&meshConfigPath, "config", "c", meshConfigPath, "mesh config")
}
