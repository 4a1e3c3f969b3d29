package cmd

import (
	"fmt"
	"os"

	"probekit/core"
	"probekit/logger"
	"probekit/models"

	"github.com/spf13/cobra"
)

var (
	proxyListenPort    int
	proxyUpstreamURL   string
	proxyPurpose       string
	proxyUpstreamProxy string
)

// proxyCmd runs a single capture proxy in the foreground. 'capture' spawns
// one of these per upstream; it is also usable standalone for a one-off
// reverse proxy. The output directory comes from PROBEKIT_OUTPUT_DIR when
// set, so spawned instances all append to the same traffic log.
var proxyCmd = &cobra.Command{
	Use:   "proxy --listen-port <port> --upstream-url <url> [flags]",
	Short: "Runs a single capture reverse proxy (spawned by 'capture')",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := models.ProxyConfig{
			ListenPort:  proxyListenPort,
			UpstreamURL: proxyUpstreamURL,
			Purpose:     proxyPurpose,
		}

		outputDir := core.ResolveOutputDir()
		rec, err := core.NewRecorder(outputDir)
		if err != nil {
			logger.ProxyError("proxy: preparing output dir %s: %v", outputDir, err)
			fmt.Fprintf(os.Stderr, "Error: preparing output dir %s: %v\n", outputDir, err)
			os.Exit(1)
		}

		logger.ProxyInfo("Starting capture proxy :%d -> %s (%s), log %s",
			cfg.ListenPort, cfg.UpstreamURL, cfg.Purpose, rec.Path())
		if err := core.RunProxy(cfg, proxyUpstreamProxy, rec); err != nil {
			logger.ProxyError("proxy: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	proxyCmd.Flags().IntVar(&proxyListenPort, "listen-port", 0, "local port to listen on")
	proxyCmd.Flags().StringVar(&proxyUpstreamURL, "upstream-url", "", "upstream origin to forward to, e.g. https://api.example.com/")
	proxyCmd.Flags().StringVar(&proxyPurpose, "purpose", "", "human-readable label for this proxy instance")
	proxyCmd.Flags().StringVar(&proxyUpstreamProxy, "upstream-proxy", "", "upstream HTTP proxy to chain through")
	proxyCmd.MarkFlagRequired("listen-port")
	proxyCmd.MarkFlagRequired("upstream-url")
	rootCmd.AddCommand(proxyCmd)
}
