package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/recall/internal/diff"
)

func TestBuildOrderAndStatus(t *testing.T) {
	report := &diff.Report{
		ReportID: "01TESTREPORT",
		New: []diff.Entry{
			{Key: "p:n1", SessionID: "n1", ProjectID: "p", Reason: diff.ReasonMissingSummary, SourceLatestMS: 300},
			{Key: "p:n2", SessionID: "n2", ProjectID: "p", Reason: diff.ReasonMissingSummary, SourceLatestMS: 100},
		},
		Stale: []diff.Entry{
			{Key: "p:s1", SessionID: "s1", ProjectID: "p", Reason: diff.ReasonSourceNewer, SourceLatestMS: 200, SummaryPath: "/s/s1.md"},
		},
	}

	p := Build(report, "/artifacts/diff-report.json")

	assert.Equal(t, PlanVersion, p.Version)
	assert.NotEmpty(t, p.PlanID)
	assert.Equal(t, "01TESTREPORT", p.ReportID)
	assert.Equal(t, "/artifacts/diff-report.json", p.ReportPath)

	// New entries first preserving list order, then stale entries.
	require.Len(t, p.Items, 3)
	assert.Equal(t, "p:n1", p.Items[0].Key)
	assert.Equal(t, diff.StatusNew, p.Items[0].Status)
	assert.Equal(t, "p:n2", p.Items[1].Key)
	assert.Equal(t, "p:s1", p.Items[2].Key)
	assert.Equal(t, diff.StatusStale, p.Items[2].Status)
	assert.Equal(t, "/s/s1.md", p.Items[2].SummaryPath)

	assert.Equal(t, Counts{New: 2, Stale: 1, Total: 3}, p.Counts)
}

func TestBuildExcludesUnaddressableEntries(t *testing.T) {
	report := &diff.Report{
		New: []diff.Entry{
			{Key: "p:ok", SessionID: "ok", ProjectID: "p"},
			{Key: ":no-project", SessionID: "no-project"},
			{Key: "p:", ProjectID: "p"},
		},
		Stale: []diff.Entry{
			{Key: "p:st", SessionID: "st", ProjectID: "p"},
		},
	}

	p := Build(report, "")

	// Count is bounded by new+stale, equal only when nothing was dropped.
	assert.LessOrEqual(t, p.Counts.Total, len(report.New)+len(report.Stale))
	require.Len(t, p.Items, 2)
	assert.Equal(t, "p:ok", p.Items[0].Key)
	assert.Equal(t, "p:st", p.Items[1].Key)
	assert.Equal(t, Counts{New: 1, Stale: 1, Total: 2}, p.Counts)
}

func TestBuildEmptyReport(t *testing.T) {
	p := Build(&diff.Report{}, "")
	assert.Empty(t, p.Items)
	assert.Equal(t, Counts{}, p.Counts)
}
