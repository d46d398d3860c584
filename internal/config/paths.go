package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the application paths.
// This is the single source of truth for file locations: every component
// receives a *Paths instead of building paths on its own.
type Paths struct {
	BaseDir string

	DataDir     string
	BranchesDir string
	QuotesDir   string
	IndexDir    string
	ReportsDir  string
	BackupsDir  string
	LogsDir     string

	RegistryFile string
}

// NewPaths builds the path set rooted at baseDir. An empty baseDir roots the
// tree at the current working directory, which is what the CLIs want when run
// from a checkout.
func NewPaths(baseDir string) *Paths {
	if baseDir == "" {
		baseDir = "."
	}

	dataDir := filepath.Join(baseDir, "data")
	branchesDir := filepath.Join(dataDir, "branches")
	quotesDir := filepath.Join(dataDir, "quotes")

	return &Paths{
		BaseDir:      baseDir,
		DataDir:      dataDir,
		BranchesDir:  branchesDir,
		QuotesDir:    quotesDir,
		IndexDir:     filepath.Join(quotesDir, "index"),
		ReportsDir:   filepath.Join(dataDir, "reports"),
		BackupsDir:   filepath.Join(dataDir, "backups"),
		LogsDir:      filepath.Join(baseDir, "logs"),
		RegistryFile: filepath.Join(branchesDir, "registry.csv"),
	}
}

// EnsureDirectories creates every directory the pipeline writes into.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.DataDir,
		p.BranchesDir,
		p.QuotesDir,
		p.IndexDir,
		p.ReportsDir,
		p.BackupsDir,
		filepath.Join(p.BackupsDir, "registry"),
		filepath.Join(p.BackupsDir, "merged"),
		p.LogsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// BranchDir returns the root directory for one branch's files.
func (p *Paths) BranchDir(systemKey string) string {
	return filepath.Join(p.BranchesDir, systemKey)
}

// DailyDir returns the directory holding one branch's per-day CSV files.
func (p *Paths) DailyDir(systemKey string) string {
	return filepath.Join(p.BranchesDir, systemKey, "daily")
}

// DailyCSVPath returns the path of one branch's daily file for an ISO date.
func (p *Paths) DailyCSVPath(systemKey, isoDate string) string {
	return filepath.Join(p.DailyDir(systemKey), isoDate+".csv")
}

// MergedCSVPath returns the path of one branch's merged history table.
func (p *Paths) MergedCSVPath(systemKey string) string {
	return filepath.Join(p.BranchesDir, systemKey, "meta", "merged.csv")
}

// RegistryBackupDir returns the backup directory for registry rewrites.
func (p *Paths) RegistryBackupDir() string {
	return filepath.Join(p.BackupsDir, "registry")
}

// MergedBackupDir returns the backup directory for merged-history rewrites.
func (p *Paths) MergedBackupDir() string {
	return filepath.Join(p.BackupsDir, "merged")
}

// QuoteCSVPath returns the OHLCV history file for one stock code.
func (p *Paths) QuoteCSVPath(code string) string {
	return filepath.Join(p.QuotesDir, code+".csv")
}

// IndexCSVPath returns the history file for one index category.
func (p *Paths) IndexCSVPath(category string) string {
	return filepath.Join(p.IndexDir, category+".csv")
}

// ReportPath returns the path of a generated report file.
func (p *Paths) ReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// LogPath returns the path of a log file.
func (p *Paths) LogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
