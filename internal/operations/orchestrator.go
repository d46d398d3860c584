// Package operations drives the broker-branch pipeline: branches outer,
// trading dates inner, one fetch in flight at a time over the shared browser
// session, followed by a merge pass over the touched branches.
package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/minleu94/technical-analysis-sub001/internal/browser"
	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/dataprocessing"
	"github.com/minleu94/technical-analysis-sub001/internal/merge"
	"github.com/minleu94/technical-analysis-sub001/internal/registry"
	"github.com/minleu94/technical-analysis-sub001/internal/scraper"
	"github.com/minleu94/technical-analysis-sub001/internal/store"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

// BranchLoader yields the active branch entries.
type BranchLoader interface {
	Load() ([]domain.BranchEntry, error)
}

// DayFetcher fetches the table set for one (branch, date) pair.
type DayFetcher interface {
	FetchDay(ctx context.Context, branch domain.BranchEntry, date time.Time) ([]dataprocessing.Table, error)
}

// DayStore persists per-day records.
type DayStore interface {
	Exists(systemKey, isoDate string) bool
	WriteDaily(systemKey, isoDate string, records []domain.DailyRecord) error
}

// Merger reconciles daily files into branch history.
type Merger interface {
	MergeAll(systemKeys []string, force bool) merge.Result
}

// Orchestrator owns one run of the pipeline end to end.
type Orchestrator struct {
	cfg     config.ScraperConfig
	loader  BranchLoader
	session browser.Manager
	fetcher DayFetcher
	store   DayStore
	merger  Merger
	logger  *slog.Logger
}

// New wires the orchestrator with the production components.
func New(cfg *config.Config, paths *config.Paths, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	session := browser.NewChromeManager(cfg.Scraper, logger)
	return &Orchestrator{
		cfg:     cfg.Scraper,
		loader:  registry.New(paths, logger),
		session: session,
		fetcher: scraper.NewFetcher(cfg.Scraper, session, logger),
		store:   store.NewDailyStore(paths, logger),
		merger:  merge.NewEngine(paths, logger),
		logger:  logger,
	}
}

// NewWithComponents wires an orchestrator from explicit parts; used by tests
// and by callers that already hold a session manager.
func NewWithComponents(cfg config.ScraperConfig, loader BranchLoader, session browser.Manager,
	fetcher DayFetcher, st DayStore, merger Merger, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:     cfg,
		loader:  loader,
		session: session,
		fetcher: fetcher,
		store:   st,
		merger:  merger,
		logger:  logger,
	}
}

// Run executes the pipeline over the requested date range. It always returns
// a structured result, even on total failure, and always releases the
// browser session, even on panic or cancellation.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (result *RunResult) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	result = &RunResult{
		RunID:     runID,
		StartedAt: time.Now(),
	}
	log := o.logger.With(slog.String("run_id", result.RunID))

	if opts.Delay > 0 {
		if f, ok := o.fetcher.(interface{ SetDelay(time.Duration) }); ok {
			f.SetDelay(opts.Delay)
		}
	}

	defer func() {
		// Session release is the one mandatory cleanup; daily files already
		// written are retained and safe to resume from.
		o.session.Cleanup()
		if r := recover(); r != nil {
			log.Error("run panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			result.Success = false
			result.Message = fmt.Sprintf("run aborted by panic: %v", r)
		}
		result.FinishedAt = time.Now()
	}()

	branches, err := o.loader.Load()
	if err != nil {
		if errors.Is(err, registry.ErrRegistryMissing) {
			log.Warn("branch registry missing, nothing to do")
			result.Success = true
			result.Message = "branch registry missing: nothing to do"
			return result
		}
		result.Message = fmt.Sprintf("failed to load branch registry: %v", err)
		return result
	}
	branches = filterBranches(branches, opts.BranchKeys)
	if len(branches) == 0 {
		result.Success = true
		result.Message = "no active branches selected: nothing to do"
		return result
	}

	dates := TradingDates(opts.From, opts.To)
	if len(dates) == 0 {
		result.Success = true
		result.Message = "no trading dates in range: nothing to do"
		return result
	}

	log.Info("run starting",
		slog.Int("branches", len(branches)),
		slog.Int("dates", len(dates)),
		slog.Bool("force_all", opts.ForceAll))

	total := len(branches) * len(dates)
	done := 0
	updatedDates := map[string]bool{}
	failedDates := map[string]bool{}
	skippedDates := map[string]bool{}

	for _, branch := range branches {
		branchUpdated := false
		branchFailed := false

		for _, date := range dates {
			if ctx.Err() != nil {
				log.Warn("run cancelled", slog.String("error", ctx.Err().Error()))
				branchFailed = true
				break
			}

			isoDate := date.Format("2006-01-02")
			done++
			report(opts.Progress,
				fmt.Sprintf("%s %s", branch.SystemKey, isoDate),
				float64(done)/float64(total)*100)

			// Idempotency check happens before any network activity.
			if !opts.ForceAll && o.store.Exists(branch.SystemKey, isoDate) {
				skippedDates[isoDate] = true
				continue
			}

			records, err := o.fetchDay(ctx, branch, date, isoDate)
			if err != nil {
				log.Error("date failed",
					slog.String("branch", branch.SystemKey),
					slog.String("date", isoDate),
					slog.String("error", err.Error()))
				failedDates[isoDate] = true
				branchFailed = true
				continue
			}

			if err := o.store.WriteDaily(branch.SystemKey, isoDate, records); err != nil {
				log.Error("daily write failed",
					slog.String("branch", branch.SystemKey),
					slog.String("date", isoDate),
					slog.String("error", err.Error()))
				failedDates[isoDate] = true
				branchFailed = true
				continue
			}

			updatedDates[isoDate] = true
			branchUpdated = true
		}

		switch {
		case branchFailed:
			result.FailedBranches = append(result.FailedBranches, branch.SystemKey)
		case branchUpdated:
			result.UpdatedBranches = append(result.UpdatedBranches, branch.SystemKey)
		}

		if ctx.Err() != nil {
			break
		}
	}

	result.UpdatedDates = sortedKeys(updatedDates)
	result.FailedDates = sortedKeys(failedDates)
	result.SkippedDates = sortedKeys(skippedDates)

	// Merge pass over every selected branch, so daily files written by
	// earlier interrupted runs are folded in too.
	report(opts.Progress, "merging branch histories", 99)
	keys := make([]string, 0, len(branches))
	for _, b := range branches {
		keys = append(keys, b.SystemKey)
	}
	mergeResult := o.merger.MergeAll(keys, opts.ForceAll)
	result.TotalRecords = mergeResult.TotalRecords
	for _, key := range mergeResult.FailedBranches {
		if !contains(result.FailedBranches, key) {
			result.FailedBranches = append(result.FailedBranches, key)
		}
	}

	// Partial success is success: at least one branch must have survived.
	// A run where everything was already up to date also counts.
	result.Success = len(result.FailedBranches) < len(branches)
	result.summarize()
	report(opts.Progress, result.Message, 100)
	log.Info("run finished",
		slog.Bool("success", result.Success),
		slog.String("summary", result.SummaryLine()))
	return result
}

func (o *Orchestrator) fetchDay(ctx context.Context, branch domain.BranchEntry, date time.Time, isoDate string) ([]domain.DailyRecord, error) {
	tables, err := o.fetcher.FetchDay(ctx, branch, date)
	if err != nil {
		return nil, err
	}
	return dataprocessing.ParseFlows(tables, branch, isoDate, o.logger)
}

func filterBranches(branches []domain.BranchEntry, keys []string) []domain.BranchEntry {
	if len(keys) == 0 {
		return branches
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var filtered []domain.BranchEntry
	for _, b := range branches {
		if want[b.SystemKey] {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

func report(progress ProgressFunc, message string, percent float64) {
	if progress != nil {
		progress(message, percent)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	// dates are ISO strings; lexical order is chronological
	sort.Strings(keys)
	return keys
}
