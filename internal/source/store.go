// Package source reads the external chat-session store and builds the
// versioned source index used by the diff classifier.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a read-only handle on the external sqlite session store.
type Store struct {
	db   *sql.DB
	path string
}

// Project is one project row from the external store.
type Project struct {
	ID       string `json:"id"`
	Worktree string `json:"worktree"`
}

// SessionRow is one session row from the external store. Timestamps
// are unix milliseconds; 0 means the store had no value.
type SessionRow struct {
	ID        string
	ProjectID string
	Slug      string
	Title     string
	Directory string
	Version   string

	SummaryAdditions int
	SummaryDeletions int
	SummaryFiles     int

	CreatedMS int64
	UpdatedMS int64
}

// ActivityStat aggregates message or part activity for one session.
type ActivityStat struct {
	Count    int
	LatestMS int64
}

// Open opens the store read-only. A missing or unreadable database is
// fatal for the indexing run, so errors here are returned as-is.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("session store %s: %w", path, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", filepath.Clean(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("session store unreachable: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Projects lists all projects with their worktree paths.
func (s *Store) Projects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, worktree FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var worktree sql.NullString
		if err := rows.Scan(&p.ID, &worktree); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Worktree = worktree.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectForWorktree resolves a repository path to its project.
// Returns nil when no project claims the path.
func (s *Store) ProjectForWorktree(ctx context.Context, dir string) (*Project, error) {
	projects, err := s.Projects(ctx)
	if err != nil {
		return nil, err
	}
	dir = filepath.Clean(dir)
	for _, p := range projects {
		if p.Worktree != "" && filepath.Clean(p.Worktree) == dir {
			return &p, nil
		}
	}
	return nil, nil
}

// Sessions lists sessions, optionally filtered by project and/or
// session id. An empty filter matches everything.
func (s *Store) Sessions(ctx context.Context, projectID, sessionID string) ([]SessionRow, error) {
	query := `
		SELECT id, project_id, slug, title, directory, version,
		       summary_additions, summary_deletions, summary_files,
		       created_at, updated_at
		FROM sessions
		WHERE (? = '' OR project_id = ?)
		  AND (? = '' OR id = ?)
		ORDER BY created_at DESC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID, projectID, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var r SessionRow
		var slug, title, directory, version sql.NullString
		var additions, deletions, files sql.NullInt64
		var created, updated sql.NullInt64

		if err := rows.Scan(&r.ID, &r.ProjectID, &slug, &title, &directory, &version,
			&additions, &deletions, &files, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		r.Slug = slug.String
		r.Title = title.String
		r.Directory = directory.String
		r.Version = version.String
		r.SummaryAdditions = int(additions.Int64)
		r.SummaryDeletions = int(deletions.Int64)
		r.SummaryFiles = int(files.Int64)
		r.CreatedMS = created.Int64
		r.UpdatedMS = updated.Int64
		sessions = append(sessions, r)
	}
	return sessions, rows.Err()
}

// MessageStats aggregates message count and latest created-at per
// session across the whole store.
func (s *Store) MessageStats(ctx context.Context) (map[string]ActivityStat, error) {
	return s.activityStats(ctx, `
		SELECT session_id, COUNT(*), COALESCE(MAX(created_at), 0)
		FROM messages GROUP BY session_id
	`, "messages")
}

// PartStats aggregates part count and latest created-at per session.
func (s *Store) PartStats(ctx context.Context) (map[string]ActivityStat, error) {
	return s.activityStats(ctx, `
		SELECT session_id, COUNT(*), COALESCE(MAX(created_at), 0)
		FROM parts GROUP BY session_id
	`, "parts")
}

func (s *Store) activityStats(ctx context.Context, query, what string) (map[string]ActivityStat, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", what, err)
	}
	defer rows.Close()

	stats := make(map[string]ActivityStat)
	for rows.Next() {
		var sessionID string
		var stat ActivityStat
		if err := rows.Scan(&sessionID, &stat.Count, &stat.LatestMS); err != nil {
			return nil, fmt.Errorf("scan %s stat: %w", what, err)
		}
		stats[sessionID] = stat
	}
	return stats, rows.Err()
}
