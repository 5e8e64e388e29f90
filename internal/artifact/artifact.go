// Package artifact reads and writes the persisted pipeline documents.
// All artifacts are pretty-printed, newline-terminated JSON; the sync
// log is append-only JSON lines.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimeFormat is how artifact timestamps are rendered.
const TimeFormat = time.RFC3339

// Now returns the current UTC time formatted for artifact envelopes.
func Now() string {
	return time.Now().UTC().Format(TimeFormat)
}

// WriteJSON writes a document as pretty-printed JSON, replacing the
// target in a single rename so readers never observe a partial file.
func WriteJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// ReadJSON loads a document. A missing file surfaces as an error
// wrapping os.ErrNotExist so callers can report the absent artifact.
func ReadJSON(path string, doc any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return nil
}

// AppendJSONL appends one record as a single JSON line.
func AppendJSONL(path string, rec any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append log %s: %w", path, err)
	}
	return nil
}
