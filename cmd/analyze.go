package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"probekit/core"
	"probekit/logger"
	"probekit/targets"

	"github.com/spf13/cobra"
)

var (
	analyzeTargetName string
	analyzeInputPath  string
	analyzeOutputPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze --target <name> --input <traffic.jsonl> [flags]",
	Short: "Generates a Markdown analysis report from a traffic log",
	Long: `Reads a traffic.jsonl capture, computes aggregate statistics (endpoints,
methods, status codes, body key paths) and writes a Markdown report with a
full per-request conversation log. Bodies are rendered by the target's
renderer; sensitive headers named by the target are redacted.`,
	Run: func(cmd *cobra.Command, args []string) {
		target, err := targets.Load(analyzeTargetName)
		if err != nil {
			logger.Error("analyze: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		outputPath := analyzeOutputPath
		if outputPath == "" {
			outputPath = filepath.Join(filepath.Dir(analyzeInputPath), "analysis_report.md")
		}

		entries, err := core.LoadEntries(analyzeInputPath)
		if err != nil {
			logger.Error("analyze: %v", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			logger.Error("analyze: no valid entries in %s", analyzeInputPath)
			fmt.Fprintf(os.Stderr, "Error: no valid entries in %s\n", analyzeInputPath)
			os.Exit(1)
		}

		analysis := core.Analyze(entries)
		report := core.FormatReport(analysis, entries, analyzeInputPath, target.Analysis)

		if dir := filepath.Dir(outputPath); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				logger.Error("analyze: creating report directory %s: %v", dir, err)
				fmt.Fprintf(os.Stderr, "Error: creating report directory %s: %v\n", dir, err)
				os.Exit(1)
			}
		}
		if err := os.WriteFile(outputPath, []byte(report), 0640); err != nil {
			logger.Error("analyze: writing report to %s: %v", outputPath, err)
			fmt.Fprintf(os.Stderr, "Error: writing report to %s: %v\n", outputPath, err)
			os.Exit(1)
		}

		logger.Info("Analysis report written to %s (%d entries)", outputPath, len(entries))
		fmt.Printf("Analyzed %d requests.\nReport written to %s\n", len(entries), outputPath)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeTargetName, "target", "t", "", "target profile name (see 'probekit targets')")
	analyzeCmd.Flags().StringVarP(&analyzeInputPath, "input", "i", "", "path to the traffic.jsonl file to analyze")
	analyzeCmd.Flags().StringVarP(&analyzeOutputPath, "output", "o", "", "report path (default: analysis_report.md next to the input)")
	analyzeCmd.MarkFlagRequired("target")
	analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}
