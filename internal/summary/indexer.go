// Package summary scans a directory of summary documents and resolves
// them into one winning entry per session key.
package summary

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
)

// Entry is one parsed summary document.
type Entry struct {
	Key       string `json:"key"`
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`

	// GeneratedAtMS is the business timestamp from front-matter;
	// MtimeMS is the file-modified fallback. 0 means unknown.
	GeneratedAtMS int64 `json:"generated_at_ms,omitempty"`
	MtimeMS       int64 `json:"mtime_ms,omitempty"`

	Model      string `json:"model,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Title      string `json:"title,omitempty"`

	// Fingerprint hashes the raw file bytes, front-matter included;
	// any textual edit invalidates it.
	Fingerprint string `json:"fingerprint"`
}

// Recency is the best-available "last meaningful update" timestamp:
// generated-at if present, else file mtime, else 0.
func (e Entry) Recency() int64 {
	if e.GeneratedAtMS != 0 {
		return e.GeneratedAtMS
	}
	return e.MtimeMS
}

// Duplicate records one losing candidate for a key. Kept is the
// winner for that key at the time the loser was displaced; a later
// file may displace the winner again.
type Duplicate struct {
	Key     string `json:"key"`
	Kept    string `json:"kept"`
	Dropped string `json:"dropped"`
}

// Index maps each key to its winning summary entry.
type Index struct {
	Entries    map[string]Entry `json:"entries"`
	Duplicates []Duplicate      `json:"duplicates,omitempty"`
}

// Scan walks dir for files matching pattern (relative to dir,
// doublestar syntax) and builds the summary index. Files without
// parseable front-matter or without both session_id and project_id
// are silently skipped: they are non-summary files that happen to
// match the glob. Matched paths are indexed in lexical order so the
// first-seen tie-break is deterministic.
func Scan(dir, pattern string) (*Index, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("summary directory %s: %w", dir, err)
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("summary pattern %q: %w", pattern, err)
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan summaries: %w", err)
	}
	sort.Strings(paths)

	idx := &Index{Entries: make(map[string]Entry)}
	for _, path := range paths {
		entry, ok := parseFile(path)
		if !ok {
			continue
		}
		idx.add(entry)
	}
	return idx, nil
}

// add merges one candidate into the index. A candidate displaces the
// current winner only with strictly greater recency; ties (including
// both-unknown) keep the first-seen entry.
func (idx *Index) add(candidate Entry) {
	existing, ok := idx.Entries[candidate.Key]
	if !ok {
		idx.Entries[candidate.Key] = candidate
		return
	}

	if candidate.Recency() > existing.Recency() {
		idx.Entries[candidate.Key] = candidate
		idx.Duplicates = append(idx.Duplicates, Duplicate{
			Key:     candidate.Key,
			Kept:    candidate.Path,
			Dropped: existing.Path,
		})
		return
	}

	idx.Duplicates = append(idx.Duplicates, Duplicate{
		Key:     candidate.Key,
		Kept:    existing.Path,
		Dropped: candidate.Path,
	})
}

func parseFile(path string) (Entry, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, false
	}

	fm, ok := parseFrontMatter(string(content))
	if !ok {
		return Entry{}, false
	}
	if fm.SessionID == "" || fm.ProjectID == "" {
		return Entry{}, false
	}

	entry := Entry{
		Key:           fm.ProjectID + ":" + fm.SessionID,
		SessionID:     fm.SessionID,
		ProjectID:     fm.ProjectID,
		Path:          path,
		GeneratedAtMS: parseTimestampMS(fm.GeneratedAt),
		Model:         fm.Model,
		ChunkCount:    fm.ChunkCount,
		Title:         fm.Title,
	}
	if entry.ChunkCount == 0 && len(fm.Chunks) > 0 {
		entry.ChunkCount = len(fm.Chunks)
	}

	if info, err := os.Stat(path); err == nil {
		entry.MtimeMS = info.ModTime().UnixMilli()
	}

	sum := blake3.Sum256(content)
	entry.Fingerprint = hex.EncodeToString(sum[:])
	return entry, true
}
