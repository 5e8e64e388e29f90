package syncer

import (
	"github.com/joss/recall/internal/artifact"
)

// LogRecord is one sync invocation in the append-only JSONL log: the
// durable execution history, independent of the ledger's point-in-time
// view. One record per invocation, never per item.
type LogRecord struct {
	RunID             string   `json:"run_id"`
	Timestamp         string   `json:"timestamp"`
	PlanID            string   `json:"plan_id,omitempty"`
	Template          string   `json:"template,omitempty"`
	EffectiveTemplate string   `json:"effective_template,omitempty"`
	DryRun            bool     `json:"dry_run"`
	Warnings          []string `json:"warnings,omitempty"`
	Success           int      `json:"success"`
	Failed            int      `json:"failed"`
	Skipped           int      `json:"skipped"`
	Items             []Result `json:"items"`
}

// WriteLog appends the outcome of one sync run to the log file.
func WriteLog(path string, out *Outcome) error {
	rec := LogRecord{
		RunID:             out.RunID,
		Timestamp:         artifact.Now(),
		PlanID:            out.PlanID,
		Template:          out.Template,
		EffectiveTemplate: out.EffectiveTemplate,
		DryRun:            out.DryRun,
		Warnings:          out.Warnings,
		Success:           out.Succeeded(),
		Failed:            out.Failed(),
		Skipped:           out.Skipped(),
		Items:             out.Results,
	}
	return artifact.AppendJSONL(path, rec)
}
