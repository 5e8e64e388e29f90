// Package syncer executes a sync plan item by item and records the
// durable execution history.
package syncer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joss/recall/internal/diff"
	"github.com/joss/recall/internal/exec"
	"github.com/joss/recall/internal/plan"
)

// ItemStatus is the disposition of one executed plan item.
type ItemStatus string

const (
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
	ItemSkipped ItemStatus = "skipped"
)

// Skip reasons.
const (
	SkipNoTemplate = "missing-command-template"
	SkipDryRun     = "dry-run"
)

// Template tokens substituted by plain text replacement. No shell
// escaping is performed: callers must keep identifiers shell-safe.
// This is a documented contract, not an oversight — quoting here
// would change the observable command strings.
const (
	TokenSessionID = "{session_id}"
	TokenProjectID = "{project_id}"
	TokenKey       = "{key}"
)

// Result is the outcome for one plan item.
type Result struct {
	Key        string      `json:"key"`
	SessionID  string      `json:"session_id"`
	ProjectID  string      `json:"project_id"`
	PlanStatus diff.Status `json:"plan_status"`
	Status     ItemStatus  `json:"status"`
	Command    string      `json:"command,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
}

// Options control one sync run.
type Options struct {
	// Template is the per-session command. Empty means dry run with
	// every item skipped as missing-command-template.
	Template string

	// WorkDir is where commands execute.
	WorkDir string

	// Limit caps the number of items processed (0 = no cap).
	Limit int

	// FailFast stops the run after the first failed item; remaining
	// items are left unprocessed, not recorded as skipped.
	FailFast bool

	// DryRun substitutes but never executes.
	DryRun bool
}

// Outcome is the full record of one sync invocation.
type Outcome struct {
	RunID             string   `json:"run_id"`
	PlanID            string   `json:"plan_id,omitempty"`
	Template          string   `json:"template,omitempty"`
	EffectiveTemplate string   `json:"effective_template,omitempty"`
	DryRun            bool     `json:"dry_run"`
	Warnings          []string `json:"warnings,omitempty"`
	Results           []Result `json:"results"`
}

// Succeeded, Failed, Skipped count results by status.
func (o *Outcome) Succeeded() int { return o.countStatus(ItemSuccess) }
func (o *Outcome) Failed() int    { return o.countStatus(ItemFailed) }
func (o *Outcome) Skipped() int   { return o.countStatus(ItemSkipped) }

func (o *Outcome) countStatus(s ItemStatus) int {
	n := 0
	for _, r := range o.Results {
		if r.Status == s {
			n++
		}
	}
	return n
}

// projectFlagPattern recognizes an existing project flag in a
// template: the executor cannot tell whether such a flag is
// positional or carries a literal value, so it warns instead of
// rewriting the template.
var projectFlagPattern = regexp.MustCompile(`(^|\s)(--project(=|\s|$)|-p\s)`)

// Execute runs the plan strictly sequentially, one subprocess at a
// time, in plan order. Commands run through `sh -c` in the working
// directory via the supplied runner. A hung command stalls the whole
// run: there is no timeout beyond ctx.
func Execute(ctx context.Context, runner exec.Runner, p *plan.Plan, opts Options) *Outcome {
	out := &Outcome{
		RunID:    uuid.New().String(),
		PlanID:   p.PlanID,
		Template: opts.Template,
		DryRun:   opts.DryRun || opts.Template == "",
		Results:  []Result{},
	}

	template := opts.Template
	if template != "" && p.Scope.IncludeGlobal && !strings.Contains(template, TokenProjectID) {
		if projectFlagPattern.MatchString(template) {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"scope includes the global project but template already has a project flag; not rewriting: %s", template))
		} else {
			template += " --project " + TokenProjectID
		}
	}
	out.EffectiveTemplate = template

	items := p.Items
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}

	for _, item := range items {
		res := Result{
			Key:        item.Key,
			SessionID:  item.SessionID,
			ProjectID:  item.ProjectID,
			PlanStatus: item.Status,
		}

		switch {
		case opts.Template == "":
			res.Status = ItemSkipped
			res.Reason = SkipNoTemplate

		case opts.DryRun:
			res.Status = ItemSkipped
			res.Reason = SkipDryRun
			res.Command = substitute(template, item)

		default:
			res.Command = substitute(template, item)
			start := time.Now()
			output, err := runner.RunInDir(ctx, opts.WorkDir, "sh", "-c", res.Command)
			res.DurationMS = time.Since(start).Milliseconds()

			if err != nil {
				res.Status = ItemFailed
				res.Error = errorText(output, err)
			} else {
				res.Status = ItemSuccess
			}
		}

		out.Results = append(out.Results, res)

		if opts.FailFast && res.Status == ItemFailed {
			break
		}
	}

	return out
}

func substitute(template string, item plan.Item) string {
	cmd := strings.ReplaceAll(template, TokenSessionID, item.SessionID)
	cmd = strings.ReplaceAll(cmd, TokenProjectID, item.ProjectID)
	cmd = strings.ReplaceAll(cmd, TokenKey, item.Key)
	return cmd
}

func errorText(output []byte, err error) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v: %s", err, text)
}
