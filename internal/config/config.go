// Package config provides centralized configuration for the recall CLI.
// Values are resolved in order: built-in defaults, ~/.recall/config.toml,
// RECALL_* environment variables. Command-line flags override all three.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all recall settings.
type Config struct {
	// StoreDB is the path to the external chat-session sqlite store.
	StoreDB string `toml:"store_db"`

	// SummaryDir is the directory scanned for summary documents.
	SummaryDir string `toml:"summary_dir"`

	// SummaryPattern matches summary filenames relative to SummaryDir.
	SummaryPattern string `toml:"summary_pattern"`

	// ArtifactDir holds the persisted pipeline artifacts.
	ArtifactDir string `toml:"artifact_dir"`

	// SyncLog is the append-only JSONL sync execution log.
	SyncLog string `toml:"sync_log"`

	// ProcessedVersion marks the semantics of "processed" in the ledger.
	// Bump when the definition changes so consumers can detect it.
	ProcessedVersion int `toml:"processed_version"`
}

// Load resolves the configuration from defaults, config file, and env.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	recallHome := filepath.Join(home, ".recall")

	cfg := &Config{
		StoreDB:          filepath.Join(home, ".local", "share", "opencode", "opencode.db"),
		SummaryDir:       filepath.Join(recallHome, "summaries"),
		SummaryPattern:   "session-summary-*.md",
		ArtifactDir:      filepath.Join(recallHome, "artifacts"),
		SyncLog:          filepath.Join(recallHome, "logs", "sync.jsonl"),
		ProcessedVersion: 1,
	}

	cfgPath := filepath.Join(recallHome, "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	cfg.StoreDB = expandHome(cfg.StoreDB, home)
	cfg.SummaryDir = expandHome(cfg.SummaryDir, home)
	cfg.ArtifactDir = expandHome(cfg.ArtifactDir, home)
	cfg.SyncLog = expandHome(cfg.SyncLog, home)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.StoreDB = envDefault("RECALL_STORE_DB", cfg.StoreDB)
	cfg.SummaryDir = envDefault("RECALL_SUMMARY_DIR", cfg.SummaryDir)
	cfg.SummaryPattern = envDefault("RECALL_SUMMARY_PATTERN", cfg.SummaryPattern)
	cfg.ArtifactDir = envDefault("RECALL_ARTIFACT_DIR", cfg.ArtifactDir)
	cfg.SyncLog = envDefault("RECALL_SYNC_LOG", cfg.SyncLog)
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}

// SourceIndexPath is the default location of the source index artifact.
func (c *Config) SourceIndexPath() string {
	return filepath.Join(c.ArtifactDir, "source-index.json")
}

// ReportPath is the default location of the diff report artifact.
func (c *Config) ReportPath() string {
	return filepath.Join(c.ArtifactDir, "diff-report.json")
}

// PlanPath is the default location of the sync plan artifact.
func (c *Config) PlanPath() string {
	return filepath.Join(c.ArtifactDir, "sync-plan.json")
}

// LedgerPath is the default location of the ledger artifact.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.ArtifactDir, "ledger.json")
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
