package summary

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontMatter is the typed shape of a summary document header. All
// fields are optional at parse time; the indexer decides which ones a
// usable summary requires.
type frontMatter struct {
	SessionID   string   `yaml:"session_id"`
	ProjectID   string   `yaml:"project_id"`
	GeneratedAt string   `yaml:"generated_at"`
	Model       string   `yaml:"model"`
	ChunkCount  int      `yaml:"chunk_count"`
	Chunks      []string `yaml:"chunks"`
	Title       string   `yaml:"title"`
}

const frontMatterDelim = "---"

// parseFrontMatter extracts the leading front-matter block. Returns
// false when the document has no parseable block; callers treat that
// as "not a summary file", never as an error.
func parseFrontMatter(content string) (frontMatter, bool) {
	var fm frontMatter

	if !strings.HasPrefix(content, frontMatterDelim) {
		return fm, false
	}
	parts := strings.SplitN(content, frontMatterDelim, 3)
	if len(parts) < 3 {
		return fm, false
	}
	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		return fm, false
	}
	return fm, true
}

// timestampLayouts are the accepted generated_at formats, most
// specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestampMS converts a front-matter timestamp to unix
// milliseconds. Returns 0 for empty or unparseable values.
func parseTimestampMS(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
