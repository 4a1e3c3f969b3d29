package cmd

import (
	"fmt"
	"os"

	"probekit/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "probekit",
	Short: "Capture and analyze the HTTP traffic of agent CLIs",
	Long: `probekit stands up reverse proxies in front of an agent CLI's API
endpoints, records every request/response pair to a JSONL traffic log, and
turns the log into a Markdown analysis report.

Targets bundle the proxy topology and report rendering for one application;
run 'probekit targets' to list them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(cfgFile, logLevelFlag); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/probekit/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: DEBUG, INFO, ERROR (overrides config/default)")
}
