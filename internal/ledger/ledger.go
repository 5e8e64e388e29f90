// Package ledger maintains the persisted audit state for every key
// ever observed by the pipeline. The ledger is a superset accumulated
// across runs: a run that doesn't see a key leaves its entry alone.
package ledger

import (
	"errors"
	"os"
	"time"

	"github.com/joss/recall/internal/artifact"
	"github.com/joss/recall/internal/diff"
	"github.com/joss/recall/internal/syncer"
)

// LedgerVersion identifies the ledger schema.
const LedgerVersion = "1"

// Status is the last known disposition of a key.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusPending   Status = "pending"
	StatusOrphan    Status = "orphan"
	StatusUnknown   Status = "unknown"
)

// Entry is the per-key audit record.
type Entry struct {
	Key       string `json:"key"`
	SessionID string `json:"session_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`

	SourceFingerprint  string `json:"source_fingerprint,omitempty"`
	SummaryFingerprint string `json:"summary_fingerprint,omitempty"`
	SourceLatestMS     int64  `json:"source_latest_ms,omitempty"`
	SummaryGeneratedMS int64  `json:"summary_generated_ms,omitempty"`
	SummaryPath        string `json:"summary_path,omitempty"`

	// ProcessedAt is set only when the entry transitions to
	// processed; VerifiedAt is refreshed on every observation.
	ProcessedAt string `json:"processed_at,omitempty"`
	VerifiedAt  string `json:"verified_at,omitempty"`
}

// Stats are the aggregate counts, recomputed over the full merged
// mapping after every update.
type Stats struct {
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
	Orphan    int `json:"orphan"`
	Unknown   int `json:"unknown"`
	Total     int `json:"total"`
}

// Ledger is the persisted artifact. ProcessedVersion lets external
// consumers detect semantic changes in what "processed" means.
type Ledger struct {
	Version          string           `json:"version"`
	ProcessedVersion int              `json:"processed_version"`
	GeneratedAt      string           `json:"generated_at"`
	Stats            Stats            `json:"stats"`
	Entries          map[string]Entry `json:"entries"`
}

// New seeds a fresh ledger.
func New(processedVersion int) *Ledger {
	return &Ledger{
		Version:          LedgerVersion,
		ProcessedVersion: processedVersion,
		Entries:          make(map[string]Entry),
	}
}

// Load reads a prior ledger from disk, or seeds a fresh one when the
// file doesn't exist yet.
func Load(path string, processedVersion int) (*Ledger, error) {
	l := New(processedVersion)
	if err := artifact.ReadJSON(path, l); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(processedVersion), nil
		}
		return nil, err
	}
	if l.Entries == nil {
		l.Entries = make(map[string]Entry)
	}
	return l, nil
}

// Save writes the ledger artifact.
func (l *Ledger) Save(path string) error {
	l.GeneratedAt = artifact.Now()
	l.recomputeStats()
	return artifact.WriteJSON(path, l)
}

// statusFor maps a classification to a ledger disposition.
func statusFor(s diff.Status) Status {
	switch s {
	case diff.StatusUnchanged:
		return StatusProcessed
	case diff.StatusNew, diff.StatusStale:
		return StatusPending
	case diff.StatusOrphan:
		return StatusOrphan
	default:
		return StatusUnknown
	}
}

// ApplyReport upserts an entry for every key reachable from the diff
// report — the union of all five buckets, not just the plan items.
// Keys absent from the report are carried forward unchanged.
func (l *Ledger) ApplyReport(report *diff.Report, now time.Time) {
	for diffStatus, entries := range report.Lists() {
		status := statusFor(diffStatus)
		for _, de := range entries {
			l.observe(de, status, now)
		}
	}
	l.recomputeStats()
}

func (l *Ledger) observe(de diff.Entry, status Status, now time.Time) {
	entry, existed := l.Entries[de.Key]
	prevStatus := entry.Status

	entry.Key = de.Key
	entry.Status = status
	entry.Reason = de.Reason
	entry.VerifiedAt = formatTime(now)

	// Fields absent from the new observation carry forward.
	if de.SessionID != "" {
		entry.SessionID = de.SessionID
	}
	if de.ProjectID != "" {
		entry.ProjectID = de.ProjectID
	}
	if de.SourceFingerprint != "" {
		entry.SourceFingerprint = de.SourceFingerprint
	}
	if de.SummaryFingerprint != "" {
		entry.SummaryFingerprint = de.SummaryFingerprint
	}
	if de.SourceLatestMS != 0 {
		entry.SourceLatestMS = de.SourceLatestMS
	}
	if de.SummaryGeneratedMS != 0 {
		entry.SummaryGeneratedMS = de.SummaryGeneratedMS
	}
	if de.SummaryPath != "" {
		entry.SummaryPath = de.SummaryPath
	}

	if status == StatusProcessed && (!existed || prevStatus != StatusProcessed || entry.ProcessedAt == "") {
		entry.ProcessedAt = processedAt(de.SummaryGeneratedMS, entry.ProcessedAt, now)
	}

	l.Entries[de.Key] = entry
}

// processedAt prefers the observed summary's generated-at time, then
// the prior value, then now.
func processedAt(summaryGeneratedMS int64, prior string, now time.Time) string {
	if summaryGeneratedMS != 0 {
		return formatTime(time.UnixMilli(summaryGeneratedMS).UTC())
	}
	if prior != "" {
		return prior
	}
	return formatTime(now)
}

// ApplyResults overlays sync execution results onto the ledger.
// Policy: success marks the key processed; failed and skipped items
// stay pending with a "failed: <error>" / "skipped: <reason>" reason,
// so the pending count after a partially-failed run includes failures
// awaiting retry. (The alternative policy — recording only successes —
// was rejected; see DESIGN.md.)
func (l *Ledger) ApplyResults(results []syncer.Result, now time.Time) {
	for _, r := range results {
		entry := l.Entries[r.Key]
		entry.Key = r.Key
		if r.SessionID != "" {
			entry.SessionID = r.SessionID
		}
		if r.ProjectID != "" {
			entry.ProjectID = r.ProjectID
		}
		entry.VerifiedAt = formatTime(now)

		switch r.Status {
		case syncer.ItemSuccess:
			if entry.Status != StatusProcessed || entry.ProcessedAt == "" {
				entry.ProcessedAt = processedAt(entry.SummaryGeneratedMS, entry.ProcessedAt, now)
			}
			entry.Status = StatusProcessed
			entry.Reason = "synced"
		case syncer.ItemFailed:
			entry.Status = StatusPending
			entry.Reason = "failed: " + r.Error
		case syncer.ItemSkipped:
			entry.Status = StatusPending
			entry.Reason = "skipped: " + r.Reason
		}

		l.Entries[r.Key] = entry
	}
	l.recomputeStats()
}

func (l *Ledger) recomputeStats() {
	stats := Stats{}
	for _, e := range l.Entries {
		switch e.Status {
		case StatusProcessed:
			stats.Processed++
		case StatusPending:
			stats.Pending++
		case StatusOrphan:
			stats.Orphan++
		case StatusUnknown:
			stats.Unknown++
		}
	}
	stats.Total = len(l.Entries)
	l.Stats = stats
}

func formatTime(t time.Time) string {
	return t.UTC().Format(artifact.TimeFormat)
}
