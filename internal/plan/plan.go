// Package plan extracts the addressable subset of a diff report into
// an ordered sync plan.
package plan

import (
	"github.com/oklog/ulid/v2"

	"github.com/joss/recall/internal/artifact"
	"github.com/joss/recall/internal/diff"
)

// PlanVersion identifies the sync plan schema.
const PlanVersion = "1"

// Item is one actionable session. Session and project ids are always
// non-empty: entries missing either cannot be addressed by a
// per-session command and are excluded at build time.
type Item struct {
	Key       string      `json:"key"`
	SessionID string      `json:"session_id"`
	ProjectID string      `json:"project_id"`
	Status    diff.Status `json:"status"`
	Reason    string      `json:"reason"`

	SourceFingerprint string `json:"source_fingerprint,omitempty"`
	SourceLatestMS    int64  `json:"source_latest_ms,omitempty"`
	SummaryPath       string `json:"summary_path,omitempty"`
}

// Counts are the aggregate totals of the filtered plan, recomputed
// from the items rather than copied from the diff report.
type Counts struct {
	New   int `json:"new"`
	Stale int `json:"stale"`
	Total int `json:"total"`
}

// Plan is the persisted sync plan artifact. Immutable once written;
// the executor consumes Items in order.
type Plan struct {
	Version     string     `json:"version"`
	PlanID      string     `json:"plan_id"`
	GeneratedAt string     `json:"generated_at"`
	ReportID    string     `json:"report_id,omitempty"`
	ReportPath  string     `json:"report_path,omitempty"`
	Scope       diff.Scope `json:"scope"`
	Counts      Counts     `json:"counts"`
	Items       []Item     `json:"items"`
}

// Build takes the new then stale lists in order, drops entries with a
// missing identifier, and maps the remainder to plan items.
// reportPath records where the diff report was persisted, carried for
// traceability only (empty when the report was never written).
func Build(report *diff.Report, reportPath string) *Plan {
	p := &Plan{
		Version:     PlanVersion,
		PlanID:      ulid.Make().String(),
		GeneratedAt: artifact.Now(),
		ReportID:    report.ReportID,
		ReportPath:  reportPath,
		Scope:       report.Scope,
		Items:       []Item{},
	}

	appendEntries := func(entries []diff.Entry, status diff.Status) {
		for _, e := range entries {
			if e.SessionID == "" || e.ProjectID == "" {
				continue
			}
			p.Items = append(p.Items, Item{
				Key:               e.Key,
				SessionID:         e.SessionID,
				ProjectID:         e.ProjectID,
				Status:            status,
				Reason:            e.Reason,
				SourceFingerprint: e.SourceFingerprint,
				SourceLatestMS:    e.SourceLatestMS,
				SummaryPath:       e.SummaryPath,
			})
			switch status {
			case diff.StatusStale:
				p.Counts.Stale++
			default:
				p.Counts.New++
			}
		}
	}

	appendEntries(report.New, diff.StatusNew)
	appendEntries(report.Stale, diff.StatusStale)
	p.Counts.Total = p.Counts.New + p.Counts.Stale

	return p
}
