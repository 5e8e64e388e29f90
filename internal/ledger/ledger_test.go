package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/recall/internal/diff"
	"github.com/joss/recall/internal/syncer"
)

var testNow = time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)

func testReport() *diff.Report {
	return &diff.Report{
		New: []diff.Entry{
			{Key: "p:n1", SessionID: "n1", ProjectID: "p", Reason: diff.ReasonMissingSummary,
				SourceFingerprint: "fp-n1", SourceLatestMS: 300},
		},
		Stale: []diff.Entry{
			{Key: "p:s1", SessionID: "s1", ProjectID: "p", Reason: diff.ReasonSourceNewer,
				SourceFingerprint: "fp-s1", SummaryFingerprint: "sum-s1",
				SourceLatestMS: 500, SummaryGeneratedMS: 400, SummaryPath: "/s/s1.md"},
		},
		Unchanged: []diff.Entry{
			{Key: "p:u1", SessionID: "u1", ProjectID: "p", Reason: diff.ReasonSummaryCurrent,
				SourceFingerprint: "fp-u1", SummaryFingerprint: "sum-u1",
				SourceLatestMS: 100, SummaryGeneratedMS: 200, SummaryPath: "/s/u1.md"},
		},
		Orphan: []diff.Entry{
			{Key: "p:o1", SessionID: "o1", ProjectID: "p", Reason: diff.ReasonMissingSource,
				SummaryFingerprint: "sum-o1", SummaryGeneratedMS: 50, SummaryPath: "/s/o1.md"},
		},
		Unknown: []diff.Entry{
			{Key: "p:k1", SessionID: "k1", ProjectID: "p", Reason: diff.ReasonMissingTimestamp,
				SourceFingerprint: "fp-k1", SummaryFingerprint: "sum-k1", SummaryPath: "/s/k1.md"},
		},
	}
}

func TestApplyReportMapsStatuses(t *testing.T) {
	l := New(1)
	l.ApplyReport(testReport(), testNow)

	require.Len(t, l.Entries, 5)
	assert.Equal(t, StatusPending, l.Entries["p:n1"].Status)
	assert.Equal(t, StatusPending, l.Entries["p:s1"].Status)
	assert.Equal(t, StatusProcessed, l.Entries["p:u1"].Status)
	assert.Equal(t, StatusOrphan, l.Entries["p:o1"].Status)
	assert.Equal(t, StatusUnknown, l.Entries["p:k1"].Status)

	assert.Equal(t, Stats{Processed: 1, Pending: 2, Orphan: 1, Unknown: 1, Total: 5}, l.Stats)

	for _, e := range l.Entries {
		assert.Equal(t, "2026-02-12T10:00:00Z", e.VerifiedAt)
	}
}

func TestApplyReportProcessedAtFromSummary(t *testing.T) {
	l := New(1)
	l.ApplyReport(testReport(), testNow)

	// The unchanged entry's processed_at comes from the summary's
	// generated-at, not the run time.
	u1 := l.Entries["p:u1"]
	assert.Equal(t, time.UnixMilli(200).UTC().Format(time.RFC3339), u1.ProcessedAt)

	// Pending entries never get processed_at.
	assert.Empty(t, l.Entries["p:n1"].ProcessedAt)
	assert.Empty(t, l.Entries["p:s1"].ProcessedAt)
}

func TestApplyReportCarryForward(t *testing.T) {
	l := New(1)
	l.Entries["p:o1"] = Entry{
		Key:               "p:o1",
		Status:            StatusProcessed,
		SourceFingerprint: "fp-old",
		SourceLatestMS:    10,
		ProcessedAt:       "2026-02-01T00:00:00Z",
	}

	l.ApplyReport(testReport(), testNow)

	// The orphan observation has no source side; the old source
	// fields survive while the status flips.
	o1 := l.Entries["p:o1"]
	assert.Equal(t, StatusOrphan, o1.Status)
	assert.Equal(t, "fp-old", o1.SourceFingerprint)
	assert.Equal(t, int64(10), o1.SourceLatestMS)
	assert.Equal(t, "sum-o1", o1.SummaryFingerprint)
	assert.Equal(t, "2026-02-01T00:00:00Z", o1.ProcessedAt, "processed_at not cleared by later states")
}

func TestApplyReportSupersetMerge(t *testing.T) {
	l := New(1)
	l.Entries["q:gone"] = Entry{
		Key:        "q:gone",
		Status:     StatusProcessed,
		VerifiedAt: "2026-01-01T00:00:00Z",
	}

	report := testReport()
	l.ApplyReport(report, testNow)

	// Merged keys are a superset of prior and current; prior-only
	// entries are untouched.
	assert.Len(t, l.Entries, 6)
	gone := l.Entries["q:gone"]
	assert.Equal(t, StatusProcessed, gone.Status)
	assert.Equal(t, "2026-01-01T00:00:00Z", gone.VerifiedAt)
	assert.Equal(t, 6, l.Stats.Total)
	assert.Equal(t, 2, l.Stats.Processed)
}

func TestApplyReportProcessedAtStableAcrossRuns(t *testing.T) {
	l := New(1)
	l.ApplyReport(testReport(), testNow)
	first := l.Entries["p:u1"].ProcessedAt

	l.ApplyReport(testReport(), testNow.Add(time.Hour))
	assert.Equal(t, first, l.Entries["p:u1"].ProcessedAt)
	assert.Equal(t, "2026-02-12T11:00:00Z", l.Entries["p:u1"].VerifiedAt)
}

func TestApplyResults(t *testing.T) {
	l := New(1)
	l.ApplyReport(testReport(), testNow)

	results := []syncer.Result{
		{Key: "p:n1", SessionID: "n1", ProjectID: "p", Status: syncer.ItemSuccess},
		{Key: "p:s1", SessionID: "s1", ProjectID: "p", Status: syncer.ItemFailed, Error: "exit status 1: boom"},
	}
	l.ApplyResults(results, testNow.Add(time.Minute))

	n1 := l.Entries["p:n1"]
	assert.Equal(t, StatusProcessed, n1.Status)
	assert.Equal(t, "synced", n1.Reason)
	assert.Equal(t, "2026-02-12T10:01:00Z", n1.ProcessedAt, "no summary timestamp yet, falls back to now")

	s1 := l.Entries["p:s1"]
	assert.Equal(t, StatusPending, s1.Status)
	assert.Equal(t, "failed: exit status 1: boom", s1.Reason)
	assert.Empty(t, s1.ProcessedAt)

	assert.Equal(t, Stats{Processed: 2, Pending: 1, Orphan: 1, Unknown: 1, Total: 5}, l.Stats)
}

func TestApplyResultsSkipped(t *testing.T) {
	l := New(1)
	l.ApplyResults([]syncer.Result{
		{Key: "p:a", SessionID: "a", ProjectID: "p", Status: syncer.ItemSkipped, Reason: syncer.SkipDryRun},
	}, testNow)

	a := l.Entries["p:a"]
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, "skipped: dry-run", a.Reason)
	assert.Equal(t, 1, l.Stats.Pending)
}

func TestApplyResultsSuccessUsesSummaryTimestamp(t *testing.T) {
	l := New(1)
	l.Entries["p:s1"] = Entry{
		Key:                "p:s1",
		Status:             StatusPending,
		SummaryGeneratedMS: 1700000000000,
	}
	l.ApplyResults([]syncer.Result{
		{Key: "p:s1", SessionID: "s1", ProjectID: "p", Status: syncer.ItemSuccess},
	}, testNow)

	want := time.UnixMilli(1700000000000).UTC().Format(time.RFC3339)
	assert.Equal(t, want, l.Entries["p:s1"].ProcessedAt)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "ledger.json")

	l := New(2)
	l.ApplyReport(testReport(), testNow)
	require.NoError(t, l.Save(path))

	loaded, err := Load(path, 2)
	require.NoError(t, err)
	assert.Equal(t, LedgerVersion, loaded.Version)
	assert.Equal(t, 2, loaded.ProcessedVersion)
	assert.Equal(t, l.Stats, loaded.Stats)
	assert.Equal(t, l.Entries, loaded.Entries)
	assert.NotEmpty(t, loaded.GeneratedAt)
}

func TestLoadMissingSeedsFresh(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "none.json"), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, l.ProcessedVersion)
	assert.Empty(t, l.Entries)
}
