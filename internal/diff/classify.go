// Package diff cross-references the source index and the summary
// index, classifying every key into one of five states.
package diff

import (
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/joss/recall/internal/artifact"
	"github.com/joss/recall/internal/source"
	"github.com/joss/recall/internal/summary"
)

// ReportVersion identifies the diff report schema.
const ReportVersion = "1"

// GlobalProjectID is the synthetic project for sessions not tied to a
// repository.
const GlobalProjectID = "global"

// Status is the classification of one key.
type Status string

const (
	StatusNew       Status = "new"
	StatusStale     Status = "stale"
	StatusUnchanged Status = "unchanged"
	StatusOrphan    Status = "orphan"
	StatusUnknown   Status = "unknown"
)

// Reason codes attached to classifications.
const (
	ReasonMissingSource    = "missing-source"
	ReasonMissingSummary   = "missing-summary"
	ReasonMissingTimestamp = "missing-timestamp"
	ReasonSourceNewer      = "source-newer"
	ReasonSummaryCurrent   = "summary-current"
)

// Entry is the classification result for one key, carrying through
// fields from whichever side(s) produced it. Session and project ids
// are empty on the side-less entries (an orphan has no source side).
type Entry struct {
	Key       string `json:"key"`
	SessionID string `json:"session_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Status    Status `json:"status"`
	Reason    string `json:"reason"`

	SourceFingerprint string `json:"source_fingerprint,omitempty"`
	SourceUpdatedMS   int64  `json:"source_updated_ms,omitempty"`
	SourceLatestMS    int64  `json:"source_latest_ms,omitempty"`

	SummaryFingerprint string `json:"summary_fingerprint,omitempty"`
	SummaryGeneratedMS int64  `json:"summary_generated_ms,omitempty"`
	SummaryMtimeMS     int64  `json:"summary_mtime_ms,omitempty"`
	SummaryPath        string `json:"summary_path,omitempty"`

	// LatestMS is the sort key: the max of the source and summary
	// timestamps, 0 when neither side had one.
	LatestMS int64 `json:"latest_ms,omitempty"`
}

// Scope restricts classification to a set of project ids. An empty
// Projects list allows every real project; the synthetic global
// project is controlled separately.
type Scope struct {
	Projects      []string `json:"projects,omitempty"`
	IncludeGlobal bool     `json:"include_global"`
}

// Allows reports whether a project id is inside the scope.
func (s Scope) Allows(projectID string) bool {
	if projectID == GlobalProjectID {
		return s.IncludeGlobal
	}
	if len(s.Projects) == 0 {
		return true
	}
	for _, p := range s.Projects {
		if p == projectID {
			return true
		}
	}
	return false
}

// Counts are the aggregate totals per status.
type Counts struct {
	New       int `json:"new"`
	Stale     int `json:"stale"`
	Unchanged int `json:"unchanged"`
	Orphan    int `json:"orphan"`
	Unknown   int `json:"unknown"`
	Total     int `json:"total"`
}

// Report is one full classification pass. Regenerated fresh each run;
// persisting it is optional and never authoritative.
type Report struct {
	Version     string `json:"version"`
	ReportID    string `json:"report_id"`
	GeneratedAt string `json:"generated_at"`
	Scope       Scope  `json:"scope"`
	Counts      Counts `json:"counts"`

	New       []Entry `json:"new"`
	Stale     []Entry `json:"stale"`
	Unchanged []Entry `json:"unchanged"`
	Orphan    []Entry `json:"orphan"`
	Unknown   []Entry `json:"unknown"`

	Duplicates []summary.Duplicate `json:"duplicates,omitempty"`
}

// Classify cross-references both indexes over the union of their keys.
// Every in-scope key lands in exactly one status list; the lists are
// sorted by latest-ms descending then key ascending, which downstream
// planning and ledger merging rely on for reproducible output.
func Classify(src *source.Index, sums *summary.Index, scope Scope) *Report {
	report := &Report{
		Version:     ReportVersion,
		ReportID:    ulid.Make().String(),
		GeneratedAt: artifact.Now(),
		Scope:       scope,
		Duplicates:  sums.Duplicates,
	}

	srcByKey := src.ByKey()

	keys := make(map[string]struct{}, len(srcByKey)+len(sums.Entries))
	for k := range srcByKey {
		keys[k] = struct{}{}
	}
	for k := range sums.Entries {
		keys[k] = struct{}{}
	}

	for key := range keys {
		se, hasSource := srcByKey[key]
		su, hasSummary := sums.Entries[key]

		projectID := se.ProjectID
		if !hasSource {
			projectID = su.ProjectID
		}
		if !scope.Allows(projectID) {
			continue
		}

		entry := classifyKey(key, se, hasSource, su, hasSummary)
		switch entry.Status {
		case StatusNew:
			report.New = append(report.New, entry)
		case StatusStale:
			report.Stale = append(report.Stale, entry)
		case StatusUnchanged:
			report.Unchanged = append(report.Unchanged, entry)
		case StatusOrphan:
			report.Orphan = append(report.Orphan, entry)
		case StatusUnknown:
			report.Unknown = append(report.Unknown, entry)
		}
	}

	for _, list := range [][]Entry{report.New, report.Stale, report.Unchanged, report.Orphan, report.Unknown} {
		sortEntries(list)
	}

	report.Counts = Counts{
		New:       len(report.New),
		Stale:     len(report.Stale),
		Unchanged: len(report.Unchanged),
		Orphan:    len(report.Orphan),
		Unknown:   len(report.Unknown),
	}
	report.Counts.Total = report.Counts.New + report.Counts.Stale +
		report.Counts.Unchanged + report.Counts.Orphan + report.Counts.Unknown

	return report
}

// classifyKey applies the decision procedure in its required order:
// summary-only is an orphan, source-only is new, then both-present
// keys split on timestamp availability and ordering.
func classifyKey(key string, se source.Entry, hasSource bool, su summary.Entry, hasSummary bool) Entry {
	entry := Entry{Key: key}

	if hasSummary {
		entry.SessionID = su.SessionID
		entry.ProjectID = su.ProjectID
		entry.SummaryFingerprint = su.Fingerprint
		entry.SummaryGeneratedMS = su.GeneratedAtMS
		entry.SummaryMtimeMS = su.MtimeMS
		entry.SummaryPath = su.Path
	}
	if hasSource {
		entry.SessionID = se.SessionID
		entry.ProjectID = se.ProjectID
		entry.SourceFingerprint = se.Fingerprint
		entry.SourceUpdatedMS = se.UpdatedMS
		entry.SourceLatestMS = se.LatestMS()
	}

	switch {
	case !hasSource:
		entry.Status = StatusOrphan
		entry.Reason = ReasonMissingSource
		entry.LatestMS = su.Recency()

	case !hasSummary:
		entry.Status = StatusNew
		entry.Reason = ReasonMissingSummary
		entry.LatestMS = entry.SourceLatestMS

	default:
		sourceLatest := se.LatestMS()
		summaryRecency := su.Recency()
		entry.LatestMS = max(sourceLatest, summaryRecency)

		switch {
		case sourceLatest == 0 || summaryRecency == 0:
			entry.Status = StatusUnknown
			entry.Reason = ReasonMissingTimestamp
		case sourceLatest > summaryRecency:
			entry.Status = StatusStale
			entry.Reason = ReasonSourceNewer
		default:
			entry.Status = StatusUnchanged
			entry.Reason = ReasonSummaryCurrent
		}
	}

	return entry
}

func sortEntries(list []Entry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].LatestMS != list[j].LatestMS {
			return list[i].LatestMS > list[j].LatestMS
		}
		return list[i].Key < list[j].Key
	})
}

// Lists returns the five status lists in their canonical order.
func (r *Report) Lists() map[Status][]Entry {
	return map[Status][]Entry{
		StatusNew:       r.New,
		StatusStale:     r.Stale,
		StatusUnchanged: r.Unchanged,
		StatusOrphan:    r.Orphan,
		StatusUnknown:   r.Unknown,
	}
}
