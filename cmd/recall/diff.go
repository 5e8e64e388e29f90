package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/recall/internal/artifact"
	"github.com/joss/recall/internal/diff"
	"github.com/joss/recall/internal/render"
	"github.com/joss/recall/internal/source"
	"github.com/joss/recall/internal/summary"
)

func diffCmd() *cobra.Command {
	var indexPath string
	var summaryDir string
	var pattern string
	var outPath string
	var projects []string
	var includeGlobal bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Classify every session against its summary document",
		Long: `Load the source index, scan the summary directory, and classify
every key as new, stale, unchanged, orphan, or unknown. Run
'recall index' first.

Examples:
  recall diff                          # Full classification
  recall diff -p prj_123 -p prj_456    # Two projects only
  recall diff --global                 # Include global-scoped sessions
  recall diff -v                       # Itemize every bucket`,
		Run: func(cmd *cobra.Command, args []string) {
			if indexPath == "" {
				indexPath = cfg.SourceIndexPath()
			}
			if summaryDir == "" {
				summaryDir = cfg.SummaryDir
			}
			if pattern == "" {
				pattern = cfg.SummaryPattern
			}
			if outPath == "" {
				outPath = cfg.ReportPath()
			}

			idx := &source.Index{}
			if err := artifact.ReadJSON(indexPath, idx); err != nil {
				exitErr(fmt.Errorf("%w (run 'recall index' first)", err))
			}

			sums, err := summary.Scan(summaryDir, pattern)
			if err != nil {
				exitErr(err)
			}

			report := diff.Classify(idx, sums, diff.Scope{
				Projects:      projects,
				IncludeGlobal: includeGlobal,
			})

			if err := artifact.WriteJSON(outPath, report); err != nil {
				exitErr(err)
			}

			if jsonOut {
				printJSON(report)
				return
			}
			r := render.New(pretty)
			fmt.Print(r.Report(report, verbose))
		},
	}

	cmd.Flags().StringVar(&indexPath, "source-index", "", "Path to the source index artifact")
	cmd.Flags().StringVar(&summaryDir, "summaries", "", "Summary directory to scan")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Summary filename pattern")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Where to write the diff report")
	cmd.Flags().StringArrayVarP(&projects, "project", "p", nil, "Restrict to project id (repeatable)")
	cmd.Flags().BoolVar(&includeGlobal, "global", false, "Include sessions in the global project")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Itemize entries per bucket")

	return cmd
}
