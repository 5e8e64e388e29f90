package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/recall/internal/artifact"
	"github.com/joss/recall/internal/diff"
	"github.com/joss/recall/internal/exec"
	"github.com/joss/recall/internal/ledger"
	"github.com/joss/recall/internal/plan"
	"github.com/joss/recall/internal/render"
	"github.com/joss/recall/internal/syncer"
)

func syncCmd() *cobra.Command {
	var reportPath string
	var planOut string
	var ledgerPath string
	var logPath string
	var template string
	var workDir string
	var limit int
	var dryRun bool
	var failFast bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Plan and execute summary generation for the gap",
		Long: `Build a sync plan from the diff report, run the configured
command once per new or stale session, append the run to the sync
log, and fold the outcome into the ledger. Run 'recall diff' first.

The command template substitutes {session_id}, {project_id}, and
{key} literally before running through 'sh -c'. Without --command
the run is a dry run with every item skipped.

Examples:
  recall sync --dry-run -c 'recap generate --session {session_id}'
  recall sync -c 'recap generate --session {session_id}' --fail-fast
  recall sync -c 'recap generate --session {session_id}' -n 10`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if reportPath == "" {
				reportPath = cfg.ReportPath()
			}
			if planOut == "" {
				planOut = cfg.PlanPath()
			}
			if ledgerPath == "" {
				ledgerPath = cfg.LedgerPath()
			}
			if logPath == "" {
				logPath = cfg.SyncLog
			}

			report := &diff.Report{}
			if err := artifact.ReadJSON(reportPath, report); err != nil {
				exitErr(fmt.Errorf("%w (run 'recall diff' first)", err))
			}

			p := plan.Build(report, reportPath)
			if err := artifact.WriteJSON(planOut, p); err != nil {
				exitErr(err)
			}

			out := syncer.Execute(ctx, exec.NewOSRunner(), p, syncer.Options{
				Template: template,
				WorkDir:  workDir,
				Limit:    limit,
				FailFast: failFast,
				DryRun:   dryRun,
			})

			if err := syncer.WriteLog(logPath, out); err != nil {
				exitErr(err)
			}

			led, err := ledger.Load(ledgerPath, cfg.ProcessedVersion)
			if err != nil {
				exitErr(err)
			}
			now := time.Now()
			led.ApplyReport(report, now)
			led.ApplyResults(out.Results, now)
			if err := led.Save(ledgerPath); err != nil {
				exitErr(err)
			}

			if jsonOut {
				printJSON(out)
				return
			}
			r := render.New(pretty)
			fmt.Print(r.Plan(p, planOut))
			fmt.Print(r.Run(out, verbose))
			fmt.Print(r.Ledger(led, ledgerPath))
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Path to the diff report artifact")
	cmd.Flags().StringVar(&planOut, "plan-out", "", "Where to write the sync plan")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Path to the ledger artifact")
	cmd.Flags().StringVar(&logPath, "log", "", "Path to the append-only sync log")
	cmd.Flags().StringVarP(&template, "command", "c", "", "Per-session command template")
	cmd.Flags().StringVarP(&workDir, "workdir", "w", "", "Working directory for spawned commands")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Cap the number of items processed (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Substitute commands without executing")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop after the first failed item")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Itemize every executed command")

	return cmd
}
