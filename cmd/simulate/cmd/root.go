// Package cmd implements the fraudgate-simulate command line.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mbd888/fraudgate/internal/logging"
	"github.com/mbd888/fraudgate/internal/policy"
	"github.com/mbd888/fraudgate/internal/simulation"
	"github.com/spf13/cobra"
)

var (
	policyPath string
	outPath    string
	nEvents    int
	seed       uint64
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "fraudgate-simulate",
	Short: "Replay synthetic traffic through a decision policy",
	Long: `fraudgate-simulate generates labelled synthetic events, decides each one
with the given policy and a fresh rate-limit state, and prints an aggregate
report of decisions, precision proxies and the most frequent triggers.`,
	SilenceUsage: true,
	RunE:         runSimulate,
}

func init() {
	rootCmd.Flags().StringVar(&policyPath, "policy", "", "policy file (YAML or JSON); embedded default when empty")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the report to this file instead of stdout")
	rootCmd.Flags().IntVarP(&nEvents, "events", "n", 1200, "number of synthetic events")
	rootCmd.Flags().Uint64Var(&seed, "seed", 77, "generator seed")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := logging.NewWithWriter(logLevel, logFormat, cmd.ErrOrStderr())

	if nEvents <= 0 {
		return fmt.Errorf("--events must be positive, got %d", nEvents)
	}

	cfg, err := policy.Load(policyPath)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	report := simulation.Run(cfg, simulation.Generate(nEvents, seed))
	logger.Info("simulation finished",
		"events", report.NEvents,
		"allow", report.Decisions["allow"],
		"review", report.Decisions["review"],
		"block", report.Decisions["block"],
	)

	if outPath == "" {
		return writeReport(cmd.OutOrStdout(), report)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	if err := writeReport(f, report); err != nil {
		return err
	}
	logger.Info("report saved", "path", outPath)
	return nil
}

func writeReport(w io.Writer, report simulation.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
