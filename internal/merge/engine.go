// Package merge folds per-day flow files into each branch's historical
// table. This is the data-integrity core of the pipeline: merged history is
// only ever superseded, never deleted, and re-running a fetch for an
// already-merged date safely overwrites stale rows because new data is
// concatenated strictly after old data before the last-wins dedup.
package merge

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/files"
	"github.com/minleu94/technical-analysis-sub001/internal/store"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// BranchResult summarizes one branch's reconciliation pass.
type BranchResult struct {
	SystemKey         string `json:"system_key"`
	FilesMerged       int    `json:"files_merged"`
	NewRecords        int    `json:"new_records"`
	TotalRecords      int    `json:"total_records"`
	DuplicatesRemoved int    `json:"duplicates_removed"`
	Error             string `json:"error,omitempty"`
}

// Result aggregates a full merge pass. It is always returned, even under
// partial failure.
type Result struct {
	Branches        []BranchResult `json:"branches"`
	UpdatedBranches []string       `json:"updated_branches"`
	FailedBranches  []string       `json:"failed_branches"`
	TotalRecords    int            `json:"total_records"`
}

// Engine is the only writer of merged history tables.
type Engine struct {
	paths     *config.Paths
	discovery *files.Discovery
	manager   *files.Manager
	logger    *slog.Logger

	// now is injectable for deterministic backup names in tests.
	now func() time.Time
}

// NewEngine creates a merge engine.
func NewEngine(paths *config.Paths, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		paths:     paths,
		discovery: files.NewDiscovery(paths.BranchesDir),
		manager:   files.NewManager(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// MergeAll reconciles every given branch independently. A failure on one
// branch is recorded and does not stop the others.
func (e *Engine) MergeAll(systemKeys []string, force bool) Result {
	var result Result
	for _, key := range systemKeys {
		br, err := e.MergeBranch(key, force)
		if err != nil {
			br.Error = err.Error()
			result.FailedBranches = append(result.FailedBranches, key)
			e.logger.Error("branch merge failed",
				slog.String("branch", key),
				slog.String("error", err.Error()))
		} else if br.FilesMerged > 0 {
			result.UpdatedBranches = append(result.UpdatedBranches, key)
		}
		result.TotalRecords += br.TotalRecords
		result.Branches = append(result.Branches, br)
	}
	return result
}

// MergeBranch folds the branch's daily files into its merged history.
func (e *Engine) MergeBranch(systemKey string, force bool) (BranchResult, error) {
	result := BranchResult{SystemKey: systemKey}
	log := e.logger.With(slog.String("branch", systemKey))
	mergedPath := e.paths.MergedCSVPath(systemKey)

	// Existing history. Malformed history is treated as invalid and rebuilt
	// from the daily files rather than corrupting the run by half-merging.
	// Force keeps the history too: stale rows are overwritten by the
	// last-wins dedup, not discarded wholesale.
	var history []domain.DailyRecord
	hadHistory := config.FileExists(mergedPath)
	if hadHistory {
		var err error
		history, err = store.ReadFlowCSV(mergedPath)
		if err != nil {
			log.Warn("existing history invalid, rebuilding from daily files",
				slog.String("error", err.Error()))
			history = nil
		}
	}

	existingDates := make(map[string]bool, len(history))
	for _, rec := range history {
		existingDates[rec.Date] = true
	}

	dailyFiles, err := e.discovery.FindDailyFiles(e.paths.DailyDir(systemKey))
	if err != nil {
		return result, fmt.Errorf("failed to enumerate daily files: %w", err)
	}

	var newBatch []domain.DailyRecord
	for _, df := range dailyFiles {
		if !force && existingDates[df.Date] {
			continue
		}
		records, err := store.ReadFlowCSV(df.Path)
		if err != nil {
			// Missing columns or an unreadable file skips that file only.
			log.Warn("skipping invalid daily file",
				slog.String("file", df.Name),
				slog.String("error", err.Error()))
			continue
		}
		newBatch = append(newBatch, records...)
		result.FilesMerged++
	}
	result.NewRecords = len(newBatch)

	if result.FilesMerged == 0 && !force {
		result.TotalRecords = len(history)
		log.Info("branch already up to date", slog.Int("total_records", len(history)))
		return result, nil
	}

	// New data is appended after history so the last occurrence of a key is
	// always the freshest one.
	combined := append(history, newBatch...)
	merged, removed := dedupLastWins(combined)
	result.DuplicatesRemoved = removed
	result.TotalRecords = len(merged)

	sortRecords(merged)

	if hadHistory {
		if err := e.backupMerged(systemKey, mergedPath); err != nil {
			return result, fmt.Errorf("failed to back up history: %w", err)
		}
	}
	if err := store.WriteFlowCSV(mergedPath, merged); err != nil {
		return result, fmt.Errorf("failed to write merged history: %w", err)
	}

	log.Info("branch merged",
		slog.Int("files_merged", result.FilesMerged),
		slog.Int("new_records", result.NewRecords),
		slog.Int("total_records", result.TotalRecords),
		slog.Int("duplicates_removed", result.DuplicatesRemoved))
	return result, nil
}

// dedupLastWins keeps the last occurrence per (date, trade_type,
// counterparty_broker_code) key, preserving the freshest data.
func dedupLastWins(records []domain.DailyRecord) ([]domain.DailyRecord, int) {
	byKey := make(map[string]domain.DailyRecord, len(records))
	for _, rec := range records {
		byKey[rec.Key()] = rec
	}
	merged := make([]domain.DailyRecord, 0, len(byKey))
	for _, rec := range byKey {
		merged = append(merged, rec)
	}
	return merged, len(records) - len(merged)
}

// sortRecords orders by (date, trade_type, counterparty_broker_code) for
// deterministic output.
func sortRecords(records []domain.DailyRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.TradeType != b.TradeType {
			return a.TradeType < b.TradeType
		}
		return a.CounterpartyBrokerCode < b.CounterpartyBrokerCode
	})
}

func (e *Engine) backupMerged(systemKey, mergedPath string) error {
	name := fmt.Sprintf("%s_merged_%s.csv", systemKey, e.now().Format("20060102_150405"))
	return e.manager.CopyFile(mergedPath, filepath.Join(e.paths.MergedBackupDir(), name))
}
