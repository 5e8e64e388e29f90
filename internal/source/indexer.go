package source

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/joss/recall/internal/artifact"
)

// IndexVersion identifies the source index schema.
const IndexVersion = "1"

// Entry is one session's metadata snapshot. Immutable once written to
// an index; the whole index is regenerated on every run.
type Entry struct {
	Key       string `json:"key"`
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
	Slug      string `json:"slug,omitempty"`
	Title     string `json:"title,omitempty"`
	Directory string `json:"directory,omitempty"`
	Version   string `json:"version,omitempty"`

	SummaryAdditions int `json:"summary_additions,omitempty"`
	SummaryDeletions int `json:"summary_deletions,omitempty"`
	SummaryFiles     int `json:"summary_files,omitempty"`

	CreatedMS int64 `json:"created_ms,omitempty"`
	UpdatedMS int64 `json:"updated_ms,omitempty"`

	MessageCount    int   `json:"message_count"`
	PartCount       int   `json:"part_count"`
	MessageLatestMS int64 `json:"message_latest_ms,omitempty"`
	PartLatestMS    int64 `json:"part_latest_ms,omitempty"`

	Fingerprint string `json:"fingerprint"`
}

// LatestMS is the best-available last-activity timestamp for the
// session: the max of updated-at, latest message, and latest part.
// 0 when the store had none of them.
func (e Entry) LatestMS() int64 {
	latest := e.UpdatedMS
	if e.MessageLatestMS > latest {
		latest = e.MessageLatestMS
	}
	if e.PartLatestMS > latest {
		latest = e.PartLatestMS
	}
	return latest
}

// Index is the persisted source index artifact.
type Index struct {
	Version       string  `json:"version"`
	GeneratedAt   string  `json:"generated_at"`
	StorePath     string  `json:"store_path,omitempty"`
	ProjectFilter string  `json:"project_filter,omitempty"`
	SessionFilter string  `json:"session_filter,omitempty"`
	Count         int     `json:"count"`
	Entries       []Entry `json:"entries"`
}

// Options filter the sessions included in an index build.
type Options struct {
	ProjectID string
	SessionID string
}

// Key builds the join key shared by every pipeline stage.
func Key(projectID, sessionID string) string {
	return projectID + ":" + sessionID
}

// BuildIndex reads the store and produces a complete source index.
// A session-id filter that matches nothing is fatal: the caller asked
// for a specific session and the store doesn't have it. A project
// filter that matches nothing yields an empty index.
func BuildIndex(ctx context.Context, st *Store, opts Options) (*Index, error) {
	sessions, err := st.Sessions(ctx, opts.ProjectID, opts.SessionID)
	if err != nil {
		return nil, err
	}
	if opts.SessionID != "" && len(sessions) == 0 {
		return nil, fmt.Errorf("session %q not found in store", opts.SessionID)
	}

	msgStats, err := st.MessageStats(ctx)
	if err != nil {
		return nil, err
	}
	partStats, err := st.PartStats(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(sessions))
	for _, row := range sessions {
		msg := msgStats[row.ID]
		part := partStats[row.ID]

		e := Entry{
			Key:              Key(row.ProjectID, row.ID),
			SessionID:        row.ID,
			ProjectID:        row.ProjectID,
			Slug:             row.Slug,
			Title:            row.Title,
			Directory:        row.Directory,
			Version:          row.Version,
			SummaryAdditions: row.SummaryAdditions,
			SummaryDeletions: row.SummaryDeletions,
			SummaryFiles:     row.SummaryFiles,
			CreatedMS:        row.CreatedMS,
			UpdatedMS:        row.UpdatedMS,
			MessageCount:     msg.Count,
			PartCount:        part.Count,
			MessageLatestMS:  msg.LatestMS,
			PartLatestMS:     part.LatestMS,
		}
		e.Fingerprint = Fingerprint(e)
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedMS != entries[j].CreatedMS {
			return entries[i].CreatedMS > entries[j].CreatedMS
		}
		return entries[i].Key < entries[j].Key
	})

	return &Index{
		Version:       IndexVersion,
		GeneratedAt:   artifact.Now(),
		StorePath:     st.path,
		ProjectFilter: opts.ProjectID,
		SessionFilter: opts.SessionID,
		Count:         len(entries),
		Entries:       entries,
	}, nil
}

// ByKey returns the index entries keyed by join key.
func (idx *Index) ByKey() map[string]Entry {
	m := make(map[string]Entry, len(idx.Entries))
	for _, e := range idx.Entries {
		m[e.Key] = e
	}
	return m
}

// Fingerprint hashes every field that indicates the session changed.
// Missing fields render as empty strings, so the digest moves under a
// superset of observable mutations: some stat churn re-fingerprints a
// session that didn't meaningfully change, which is the accepted cost
// of keeping the change detector a flat field list.
func Fingerprint(e Entry) string {
	fields := []string{
		e.ProjectID,
		e.SessionID,
		e.Slug,
		e.Title,
		e.Directory,
		e.Version,
		strconv.Itoa(e.SummaryAdditions),
		strconv.Itoa(e.SummaryDeletions),
		strconv.Itoa(e.SummaryFiles),
		msField(e.CreatedMS),
		msField(e.UpdatedMS),
		strconv.Itoa(e.MessageCount),
		strconv.Itoa(e.PartCount),
		msField(e.MessageLatestMS),
		msField(e.PartLatestMS),
	}
	sum := blake3.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func msField(ms int64) string {
	if ms == 0 {
		return ""
	}
	return strconv.FormatInt(ms, 10)
}
