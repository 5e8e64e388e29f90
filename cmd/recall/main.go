// Package main provides the recall CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/recall/internal/config"
	"github.com/joss/recall/internal/source"
)

var (
	version = "0.1.0"
	pretty  bool
	jsonOut bool
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "Reconcile chat-session records with their summary documents",
		Long: `recall keeps an external chat-session store and a directory of
summary documents in agreement.

Pipeline:
  recall index    Snapshot the session store into a source index
  recall diff     Cross-reference the index against summary files
  recall sync     Execute a per-session command over the gap and
                  record the outcome in the ledger

Use 'recall doctor' to check the environment.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return nil
		},
	}

	pretty = term.IsTerminal(int(os.Stdout.Fd()))
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", pretty, "Pretty print output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output the full artifact as JSON")

	rootCmd.AddCommand(
		indexCmd(),
		diffCmd(),
		syncCmd(),
		doctorCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show recall version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("recall version %s\n", version)
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment health",
		Long: `Diagnose the recall environment.

Checks:
  - Session store reachable and queryable
  - Summary directory exists
  - Artifact directory writable`,
		Run: func(cmd *cobra.Command, args []string) {
			healthy := true

			st, err := source.Open(cfg.StoreDB)
			if err != nil {
				fmt.Printf("✗ store: %v\n", err)
				healthy = false
			} else {
				fmt.Printf("✓ store: %s\n", cfg.StoreDB)
				st.Close()
			}

			if info, err := os.Stat(cfg.SummaryDir); err != nil || !info.IsDir() {
				fmt.Printf("✗ summary dir: %s (missing)\n", cfg.SummaryDir)
				healthy = false
			} else {
				fmt.Printf("✓ summary dir: %s\n", cfg.SummaryDir)
			}

			if err := config.EnsureDir(cfg.ArtifactDir); err != nil {
				fmt.Printf("✗ artifact dir: %v\n", err)
				healthy = false
			} else {
				fmt.Printf("✓ artifact dir: %s\n", cfg.ArtifactDir)
			}

			if !healthy {
				os.Exit(1)
			}
		},
	}
}
