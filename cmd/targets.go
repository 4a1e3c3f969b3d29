package cmd

import (
	"fmt"

	"probekit/targets"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Lists the available capture targets",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range targets.Names() {
			target, err := targets.Load(name)
			if err != nil {
				continue
			}
			fmt.Printf("%-12s %d proxies, output %s\n",
				name, len(target.Capture.Proxies), target.Capture.OutputDir)
		}
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
