package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEntry() Entry {
	return Entry{
		ProjectID:       "proj_a",
		SessionID:       "ses_1",
		Slug:            "fix-auth",
		Title:           "Fix auth flow",
		Directory:       "/repos/app",
		Version:         "0.5.0",
		CreatedMS:       1700000000000,
		UpdatedMS:       1700000100000,
		MessageCount:    12,
		PartCount:       40,
		MessageLatestMS: 1700000100000,
		PartLatestMS:    1700000100500,
	}
}

func TestFingerprintStable(t *testing.T) {
	a := baseEntry()
	b := baseEntry()
	assert.Equal(t, Fingerprint(a), Fingerprint(b), "identical field sets must hash equal")
}

func TestFingerprintSensitive(t *testing.T) {
	base := Fingerprint(baseEntry())

	mutations := map[string]func(*Entry){
		"project":        func(e *Entry) { e.ProjectID = "proj_b" },
		"session":        func(e *Entry) { e.SessionID = "ses_2" },
		"slug":           func(e *Entry) { e.Slug = "other" },
		"title":          func(e *Entry) { e.Title = "Other" },
		"directory":      func(e *Entry) { e.Directory = "/repos/other" },
		"version":        func(e *Entry) { e.Version = "0.6.0" },
		"additions":      func(e *Entry) { e.SummaryAdditions = 9 },
		"deletions":      func(e *Entry) { e.SummaryDeletions = 2 },
		"files":          func(e *Entry) { e.SummaryFiles = 1 },
		"created":        func(e *Entry) { e.CreatedMS++ },
		"updated":        func(e *Entry) { e.UpdatedMS++ },
		"message count":  func(e *Entry) { e.MessageCount++ },
		"part count":     func(e *Entry) { e.PartCount++ },
		"message latest": func(e *Entry) { e.MessageLatestMS++ },
		"part latest":    func(e *Entry) { e.PartLatestMS++ },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := baseEntry()
			mutate(&e)
			assert.NotEqual(t, base, Fingerprint(e), "mutating %s must change the fingerprint", name)
		})
	}
}

func TestEntryLatestMS(t *testing.T) {
	e := Entry{UpdatedMS: 100, MessageLatestMS: 300, PartLatestMS: 200}
	assert.Equal(t, int64(300), e.LatestMS())

	assert.Equal(t, int64(0), Entry{}.LatestMS())
}

// newTestStore builds an external-store fixture in a temp sqlite file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	schema := `
	CREATE TABLE projects (id TEXT PRIMARY KEY, worktree TEXT);
	CREATE TABLE sessions (
		id TEXT PRIMARY KEY, project_id TEXT NOT NULL,
		slug TEXT, title TEXT, directory TEXT, version TEXT,
		summary_additions INTEGER, summary_deletions INTEGER, summary_files INTEGER,
		created_at INTEGER, updated_at INTEGER
	);
	CREATE TABLE messages (id TEXT PRIMARY KEY, session_id TEXT NOT NULL, created_at INTEGER);
	CREATE TABLE parts (id TEXT PRIMARY KEY, message_id TEXT, session_id TEXT NOT NULL, created_at INTEGER);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)

	fixtures := []string{
		`INSERT INTO projects VALUES ('proj_a', '/repos/app'), ('proj_b', '/repos/lib'), ('global', NULL)`,
		`INSERT INTO sessions VALUES
			('ses_1', 'proj_a', 'fix-auth', 'Fix auth', '/repos/app', '0.5.0', 3, 1, 2, 1000, 2000),
			('ses_2', 'proj_a', NULL, 'Add cache', '/repos/app', '0.5.0', NULL, NULL, NULL, 3000, 4000),
			('ses_3', 'proj_b', 'docs', 'Write docs', '/repos/lib', '0.5.0', 0, 0, 0, 3000, 3500)`,
		`INSERT INTO messages VALUES
			('m1', 'ses_1', 1500), ('m2', 'ses_1', 2500), ('m3', 'ses_2', 3100)`,
		`INSERT INTO parts VALUES
			('p1', 'm1', 'ses_1', 1500), ('p2', 'm2', 'ses_1', 2600), ('p3', 'm3', 'ses_2', 3200)`,
	}
	for _, stmt := range fixtures {
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBuildIndex(t *testing.T) {
	st := newTestStore(t)

	idx, err := BuildIndex(context.Background(), st, Options{})
	require.NoError(t, err)

	assert.Equal(t, IndexVersion, idx.Version)
	assert.NotEmpty(t, idx.GeneratedAt)
	require.Equal(t, 3, idx.Count)
	require.Len(t, idx.Entries, 3)

	// created-ms descending, key ascending on ties:
	// ses_2 and ses_3 share created_at 3000, proj_a:ses_2 < proj_b:ses_3.
	assert.Equal(t, "proj_a:ses_2", idx.Entries[0].Key)
	assert.Equal(t, "proj_b:ses_3", idx.Entries[1].Key)
	assert.Equal(t, "proj_a:ses_1", idx.Entries[2].Key)

	byKey := idx.ByKey()
	ses1 := byKey["proj_a:ses_1"]
	assert.Equal(t, 2, ses1.MessageCount)
	assert.Equal(t, 2, ses1.PartCount)
	assert.Equal(t, int64(2500), ses1.MessageLatestMS)
	assert.Equal(t, int64(2600), ses1.PartLatestMS)
	assert.Equal(t, int64(2600), ses1.LatestMS())
	assert.NotEmpty(t, ses1.Fingerprint)

	ses3 := byKey["proj_b:ses_3"]
	assert.Equal(t, 0, ses3.MessageCount)
	assert.Equal(t, int64(3500), ses3.LatestMS())
}

func TestBuildIndexProjectFilter(t *testing.T) {
	st := newTestStore(t)

	idx, err := BuildIndex(context.Background(), st, Options{ProjectID: "proj_b"})
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	assert.Equal(t, "proj_b:ses_3", idx.Entries[0].Key)
	assert.Equal(t, "proj_b", idx.ProjectFilter)

	// A project filter matching nothing is an empty index, not an error.
	idx, err = BuildIndex(context.Background(), st, Options{ProjectID: "proj_missing"})
	require.NoError(t, err)
	assert.Empty(t, idx.Entries)
	assert.Equal(t, 0, idx.Count)
}

func TestBuildIndexSessionFilterMissingIsFatal(t *testing.T) {
	st := newTestStore(t)

	_, err := BuildIndex(context.Background(), st, Options{SessionID: "ses_missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ses_missing")
}

func TestOpenMissingStore(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
}

func TestProjectForWorktree(t *testing.T) {
	st := newTestStore(t)

	p, err := st.ProjectForWorktree(context.Background(), "/repos/lib")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "proj_b", p.ID)

	p, err = st.ProjectForWorktree(context.Background(), "/repos/unknown")
	require.NoError(t, err)
	assert.Nil(t, p)
}
