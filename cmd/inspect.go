package cmd

import (
	"fmt"

	"github.com/encodeous/fuzzyrpl/core"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects a running mesh",
	Run: func(cmd *cobra.Command, args []string) {
		sock := "fuzzyrpl.sock"
		if len(args) == 1 {
			sock = args[0]
		}
		result, err := core.IPCGet(sock)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		fmt.Print(result)
	},
	GroupID: "mesh",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
