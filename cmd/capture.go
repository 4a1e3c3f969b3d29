package cmd

import (
	"fmt"
	"os"

	"probekit/config"
	"probekit/core"
	"probekit/logger"
	"probekit/targets"

	"github.com/spf13/cobra"
)

var (
	captureTargetName    string
	captureOutputDir     string
	captureUpstreamProxy string
)

var captureCmd = &cobra.Command{
	Use:   "capture --target <name> [flags] [-- command [args...]]",
	Short: "Runs capture proxies for a target, optionally driving a command",
	Long: `Starts one reverse proxy per upstream declared by the target profile and
records all traffic flowing through them to traffic.jsonl.

With a trailing command after '--', the command runs with the target's
environment overrides applied and capture stops when it exits; probekit
exits with the command's exit code. Without a command, the proxies run
until Ctrl+C and the overrides are printed for manual export.`,
	Example: `  probekit capture --target codex -- codex "explain this repo"
  probekit capture --target codex --output-dir /tmp/run1`,
	Run: func(cmd *cobra.Command, args []string) {
		target, err := targets.Load(captureTargetName)
		if err != nil {
			logger.Error("capture: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		profile := target.Capture

		// Flag > profile > config for the output directory. An explicitly
		// set --upstream-proxy wins even when empty, so a profile's default
		// upstream can be switched off from the command line.
		if cmd.Flags().Changed("output-dir") {
			profile.OutputDir = captureOutputDir
		} else if profile.OutputDir == "" {
			profile.OutputDir = config.AppConfig.Capture.OutputDir
		}
		if cmd.Flags().Changed("upstream-proxy") {
			profile.UpstreamProxy = captureUpstreamProxy
		} else if profile.UpstreamProxy == "" {
			profile.UpstreamProxy = config.AppConfig.Capture.UpstreamProxy
		}

		var targetCmd []string
		if at := cmd.ArgsLenAtDash(); at >= 0 {
			targetCmd = args[at:]
		}

		exitCode, err := core.RunCapture(profile, targetCmd)
		if err != nil {
			logger.Error("capture: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(exitCode)
	},
}

func init() {
	captureCmd.Flags().StringVarP(&captureTargetName, "target", "t", "", "target profile name (see 'probekit targets')")
	captureCmd.Flags().StringVarP(&captureOutputDir, "output-dir", "o", "", "directory for traffic.jsonl (overrides profile/config)")
	captureCmd.Flags().StringVar(&captureUpstreamProxy, "upstream-proxy", "", "upstream HTTP proxy to chain through (overrides profile/config)")
	captureCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(captureCmd)
}
