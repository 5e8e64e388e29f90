// Package render provides output formatting for terminal consumption.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/joss/recall/internal/diff"
	"github.com/joss/recall/internal/ledger"
	"github.com/joss/recall/internal/plan"
	"github.com/joss/recall/internal/source"
	"github.com/joss/recall/internal/summary"
	"github.com/joss/recall/internal/syncer"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// SourceIndex summarizes an indexing pass.
func (r *Renderer) SourceIndex(idx *source.Index, outPath string) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Source Index\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  Store:    %s\n", idx.StorePath)
		if idx.ProjectFilter != "" {
			fmt.Fprintf(&sb, "  Project:  %s\n", idx.ProjectFilter)
		}
		if idx.SessionFilter != "" {
			fmt.Fprintf(&sb, "  Session:  %s\n", idx.SessionFilter)
		}
		fmt.Fprintf(&sb, "  Sessions: %d\n", idx.Count)
		fmt.Fprintf(&sb, "  Written:  %s\n", outPath)
	} else {
		fmt.Fprintf(&sb, "indexed=%d store=%s out=%s\n", idx.Count, idx.StorePath, outPath)
	}

	return sb.String()
}

// SummaryScan summarizes the summary directory scan.
func (r *Renderer) SummaryScan(idx *summary.Index) string {
	var sb strings.Builder

	if r.pretty {
		fmt.Fprintf(&sb, "  Summaries: %d\n", len(idx.Entries))
		for _, d := range idx.Duplicates {
			fmt.Fprintf(&sb, "  %s duplicate for %s: kept %s, dropped %s\n",
				color.YellowString("!"), d.Key, d.Kept, d.Dropped)
		}
	} else {
		fmt.Fprintf(&sb, "summaries=%d duplicates=%d\n", len(idx.Entries), len(idx.Duplicates))
	}

	return sb.String()
}

// Report formats a classification report.
func (r *Renderer) Report(rep *diff.Report, verbose bool) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Diff Report\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  %s %-10s %d\n", color.GreenString("+"), "new", rep.Counts.New)
		fmt.Fprintf(&sb, "  %s %-10s %d\n", color.YellowString("~"), "stale", rep.Counts.Stale)
		fmt.Fprintf(&sb, "  %s %-10s %d\n", color.HiBlackString("="), "unchanged", rep.Counts.Unchanged)
		fmt.Fprintf(&sb, "  %s %-10s %d\n", color.RedString("-"), "orphan", rep.Counts.Orphan)
		fmt.Fprintf(&sb, "  %s %-10s %d\n", color.MagentaString("?"), "unknown", rep.Counts.Unknown)
		fmt.Fprintf(&sb, "  total: %d\n", rep.Counts.Total)
	} else {
		fmt.Fprintf(&sb, "new=%d stale=%d unchanged=%d orphan=%d unknown=%d total=%d\n",
			rep.Counts.New, rep.Counts.Stale, rep.Counts.Unchanged,
			rep.Counts.Orphan, rep.Counts.Unknown, rep.Counts.Total)
	}

	for _, d := range rep.Duplicates {
		if r.pretty {
			fmt.Fprintf(&sb, "  %s duplicate summaries for %s (dropped %s)\n",
				color.YellowString("!"), d.Key, d.Dropped)
		} else {
			fmt.Fprintf(&sb, "duplicate key=%s dropped=%s\n", d.Key, d.Dropped)
		}
	}

	if verbose {
		r.reportList(&sb, "new", rep.New)
		r.reportList(&sb, "stale", rep.Stale)
		r.reportList(&sb, "orphan", rep.Orphan)
		r.reportList(&sb, "unknown", rep.Unknown)
	}

	return sb.String()
}

func (r *Renderer) reportList(sb *strings.Builder, name string, entries []diff.Entry) {
	if len(entries) == 0 {
		return
	}
	if r.pretty {
		fmt.Fprintf(sb, "\n%s\n", color.CyanString(strings.ToUpper(name)))
	} else {
		fmt.Fprintf(sb, "%s:\n", name)
	}
	for _, e := range entries {
		ts := ""
		if e.LatestMS != 0 {
			ts = time.UnixMilli(e.LatestMS).UTC().Format("2006-01-02 15:04")
		}
		if r.pretty {
			fmt.Fprintf(sb, "  %s  %s  %s\n", e.Key, color.HiBlackString(ts), e.Reason)
		} else {
			fmt.Fprintf(sb, "  %s %s %s\n", e.Key, ts, e.Reason)
		}
	}
}

// Plan summarizes a sync plan.
func (r *Renderer) Plan(p *plan.Plan, outPath string) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Sync Plan\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  Plan:  %s\n", p.PlanID)
		fmt.Fprintf(&sb, "  New:   %d\n", p.Counts.New)
		fmt.Fprintf(&sb, "  Stale: %d\n", p.Counts.Stale)
		fmt.Fprintf(&sb, "  Total: %d\n", p.Counts.Total)
		if outPath != "" {
			fmt.Fprintf(&sb, "  Written: %s\n", outPath)
		}
	} else {
		fmt.Fprintf(&sb, "plan=%s new=%d stale=%d total=%d\n",
			p.PlanID, p.Counts.New, p.Counts.Stale, p.Counts.Total)
	}

	return sb.String()
}

// Run formats the outcome of a sync run.
func (r *Renderer) Run(out *syncer.Outcome, verbose bool) string {
	var sb strings.Builder

	if r.pretty {
		title := "Sync Run"
		if out.DryRun {
			title = "Sync Run (dry run)"
		}
		sb.WriteString(color.CyanString(title + "\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
	}

	for _, w := range out.Warnings {
		if r.pretty {
			fmt.Fprintf(&sb, "  %s %s\n", color.YellowString("!"), w)
		} else {
			fmt.Fprintf(&sb, "warning: %s\n", w)
		}
	}

	if verbose || out.Failed() > 0 {
		for _, res := range out.Results {
			r.formatResult(&sb, res, verbose)
		}
	}

	if r.pretty {
		fmt.Fprintf(&sb, "  %s %d succeeded, %s %d failed, %d skipped\n",
			color.GreenString("✓"), out.Succeeded(),
			color.RedString("✗"), out.Failed(), out.Skipped())
	} else {
		fmt.Fprintf(&sb, "run=%s success=%d failed=%d skipped=%d dry_run=%v\n",
			out.RunID, out.Succeeded(), out.Failed(), out.Skipped(), out.DryRun)
	}

	return sb.String()
}

func (r *Renderer) formatResult(sb *strings.Builder, res syncer.Result, verbose bool) {
	if !verbose && res.Status != syncer.ItemFailed {
		return
	}

	icon := "•"
	switch res.Status {
	case syncer.ItemSuccess:
		icon = color.GreenString("✓")
	case syncer.ItemFailed:
		icon = color.RedString("✗")
	case syncer.ItemSkipped:
		icon = color.HiBlackString("○")
	}

	if r.pretty {
		fmt.Fprintf(sb, "  %s %s", icon, res.Key)
		if res.DurationMS > 0 {
			fmt.Fprintf(sb, " %s", color.HiBlackString(FormatDuration(time.Duration(res.DurationMS)*time.Millisecond)))
		}
		sb.WriteString("\n")
		if res.Command != "" && verbose {
			fmt.Fprintf(sb, "    %s\n", color.HiBlackString(res.Command))
		}
		if res.Error != "" {
			fmt.Fprintf(sb, "    %s\n", color.RedString(res.Error))
		}
		if res.Reason != "" && res.Status == syncer.ItemSkipped {
			fmt.Fprintf(sb, "    %s\n", color.HiBlackString(res.Reason))
		}
	} else {
		fmt.Fprintf(sb, "[%s] %s", res.Status, res.Key)
		if res.Reason != "" {
			fmt.Fprintf(sb, " reason=%s", res.Reason)
		}
		if res.Error != "" {
			fmt.Fprintf(sb, " error=%q", res.Error)
		}
		sb.WriteString("\n")
	}
}

// Ledger summarizes the ledger after an update.
func (r *Renderer) Ledger(l *ledger.Ledger, path string) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Ledger\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  Processed: %d\n", l.Stats.Processed)
		fmt.Fprintf(&sb, "  Pending:   %d\n", l.Stats.Pending)
		fmt.Fprintf(&sb, "  Orphan:    %d\n", l.Stats.Orphan)
		fmt.Fprintf(&sb, "  Unknown:   %d\n", l.Stats.Unknown)
		fmt.Fprintf(&sb, "  Total:     %d\n", l.Stats.Total)
		fmt.Fprintf(&sb, "  Written:   %s\n", path)
	} else {
		fmt.Fprintf(&sb, "processed=%d pending=%d orphan=%d unknown=%d total=%d\n",
			l.Stats.Processed, l.Stats.Pending, l.Stats.Orphan, l.Stats.Unknown, l.Stats.Total)
	}

	return sb.String()
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
