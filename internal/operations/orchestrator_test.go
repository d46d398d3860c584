package operations

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minleu94/technical-analysis-sub001/internal/config"
	"github.com/minleu94/technical-analysis-sub001/internal/dataprocessing"
	"github.com/minleu94/technical-analysis-sub001/internal/merge"
	"github.com/minleu94/technical-analysis-sub001/internal/registry"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

type fakeLoader struct {
	entries []domain.BranchEntry
	err     error
}

func (l *fakeLoader) Load() ([]domain.BranchEntry, error) { return l.entries, l.err }

type fakeSession struct {
	cleanups int
}

func (s *fakeSession) Ensure(ctx context.Context) (context.Context, error)   { return ctx, nil }
func (s *fakeSession) IsAlive(ctx context.Context) bool                      { return true }
func (s *fakeSession) Recreate(ctx context.Context) (context.Context, error) { return ctx, nil }
func (s *fakeSession) Cleanup()                                              { s.cleanups++ }

type fakeFetcher struct {
	failKeys map[string]bool
	calls    []string
}

// flowTables builds a positional table set carrying one buy row.
func flowTables() []dataprocessing.Table {
	tables := make([]dataprocessing.Table, dataprocessing.SellTableIndex+1)
	flow := dataprocessing.Table{
		{"h"}, {"h"},
		{"1234元大證券", "100", "0", "100"},
	}
	tables[dataprocessing.BuyTableIndex] = flow
	tables[dataprocessing.SellTableIndex] = flow
	return tables
}

func (f *fakeFetcher) FetchDay(ctx context.Context, branch domain.BranchEntry, date time.Time) ([]dataprocessing.Table, error) {
	f.calls = append(f.calls, branch.SystemKey+"|"+date.Format("2006-01-02"))
	if f.failKeys[branch.SystemKey] {
		return nil, errors.New("fetch failed after 3 attempts")
	}
	return flowTables(), nil
}

type fakeStore struct {
	existing map[string]bool
	written  map[string]int
	writeErr error
}

func (s *fakeStore) Exists(systemKey, isoDate string) bool {
	return s.existing[systemKey+"|"+isoDate]
}

func (s *fakeStore) WriteDaily(systemKey, isoDate string, records []domain.DailyRecord) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.written == nil {
		s.written = map[string]int{}
	}
	s.written[systemKey+"|"+isoDate] = len(records)
	return nil
}

type fakeMerger struct {
	result merge.Result
	keys   []string
}

func (m *fakeMerger) MergeAll(systemKeys []string, force bool) merge.Result {
	m.keys = systemKeys
	return m.result
}

func branchEntry(key string) domain.BranchEntry {
	return domain.BranchEntry{
		SystemKey: key,
		URLParamA: "a",
		URLParamB: "b",
		IsActive:  true,
	}
}

// two weekdays
var (
	runFrom = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	runTo   = time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
)

func newTestOrchestrator(loader BranchLoader, session *fakeSession, fetcher DayFetcher,
	st DayStore, merger Merger) *Orchestrator {
	return NewWithComponents(config.ScraperConfig{MaxRetries: 3, MinTableCount: 15, RequestDelay: time.Millisecond},
		loader, session, fetcher, st, merger, nil)
}

func TestRunPartialFailureIsolation(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a"), branchEntry("branch-b")}}
	session := &fakeSession{}
	fetcher := &fakeFetcher{failKeys: map[string]bool{"branch-a": true}}
	st := &fakeStore{}
	merger := &fakeMerger{result: merge.Result{TotalRecords: 4}}

	orch := newTestOrchestrator(loader, session, fetcher, st, merger)
	result := orch.Run(context.Background(), RunOptions{From: runFrom, To: runTo})

	assert.True(t, result.Success)
	assert.Equal(t, []string{"branch-a"}, result.FailedBranches)
	assert.Equal(t, []string{"branch-b"}, result.UpdatedBranches)
	assert.Equal(t, 4, result.TotalRecords)
	assert.Equal(t, 1, session.cleanups)
	// The merge pass still covers both branches.
	assert.ElementsMatch(t, []string{"branch-a", "branch-b"}, merger.keys)
}

func TestRunTotalFailure(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a")}}
	fetcher := &fakeFetcher{failKeys: map[string]bool{"branch-a": true}}
	session := &fakeSession{}

	orch := newTestOrchestrator(loader, session, fetcher, &fakeStore{}, &fakeMerger{})
	result := orch.Run(context.Background(), RunOptions{From: runFrom, To: runTo})

	assert.False(t, result.Success)
	assert.Equal(t, []string{"branch-a"}, result.FailedBranches)
	assert.Len(t, result.FailedDates, 2)
	assert.Equal(t, 1, session.cleanups)
}

func TestRunSkipsExistingDates(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a")}}
	fetcher := &fakeFetcher{}
	st := &fakeStore{existing: map[string]bool{
		"branch-a|2026-08-24": true,
	}}

	orch := newTestOrchestrator(loader, &fakeSession{}, fetcher, st, &fakeMerger{})
	result := orch.Run(context.Background(), RunOptions{From: runFrom, To: runTo})

	assert.True(t, result.Success)
	assert.Equal(t, []string{"2026-08-24"}, result.SkippedDates)
	assert.Equal(t, []string{"2026-08-25"}, result.UpdatedDates)
	// The skipped date never reached the network.
	assert.Equal(t, []string{"branch-a|2026-08-25"}, fetcher.calls)
}

func TestRunForceAllIgnoresExisting(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a")}}
	fetcher := &fakeFetcher{}
	st := &fakeStore{existing: map[string]bool{
		"branch-a|2026-08-24": true,
		"branch-a|2026-08-25": true,
	}}

	orch := newTestOrchestrator(loader, &fakeSession{}, fetcher, st, &fakeMerger{})
	result := orch.Run(context.Background(), RunOptions{From: runFrom, To: runTo, ForceAll: true})

	assert.True(t, result.Success)
	assert.Empty(t, result.SkippedDates)
	assert.Len(t, fetcher.calls, 2)
}

func TestRunRegistryMissing(t *testing.T) {
	loader := &fakeLoader{err: registry.ErrRegistryMissing}
	session := &fakeSession{}

	orch := newTestOrchestrator(loader, session, &fakeFetcher{}, &fakeStore{}, &fakeMerger{})
	result := orch.Run(context.Background(), RunOptions{From: runFrom, To: runTo})

	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "nothing to do")
	assert.Equal(t, 1, session.cleanups)
}

func TestRunBranchFilter(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a"), branchEntry("branch-b")}}
	fetcher := &fakeFetcher{}

	orch := newTestOrchestrator(loader, &fakeSession{}, fetcher, &fakeStore{}, &fakeMerger{})
	result := orch.Run(context.Background(), RunOptions{
		From:       runFrom,
		To:         runTo,
		BranchKeys: []string{"branch-b"},
	})

	assert.True(t, result.Success)
	for _, call := range fetcher.calls {
		assert.Contains(t, call, "branch-b|")
	}
}

func TestRunHonorsProvidedRunID(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a")}}
	orch := newTestOrchestrator(loader, &fakeSession{}, &fakeFetcher{}, &fakeStore{}, &fakeMerger{})

	result := orch.Run(context.Background(), RunOptions{
		RunID: "fixed-id",
		From:  runFrom,
		To:    runTo,
	})
	assert.Equal(t, "fixed-id", result.RunID)

	generated := orch.Run(context.Background(), RunOptions{From: runFrom, To: runTo})
	assert.NotEmpty(t, generated.RunID)
}

func TestRunReportsProgress(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a")}}
	orch := newTestOrchestrator(loader, &fakeSession{}, &fakeFetcher{}, &fakeStore{}, &fakeMerger{})

	var percents []float64
	result := orch.Run(context.Background(), RunOptions{
		From: runFrom,
		To:   runTo,
		Progress: func(message string, percent float64) {
			percents = append(percents, percent)
		},
	})

	require.True(t, result.Success)
	require.NotEmpty(t, percents)
	assert.Equal(t, float64(100), percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestRunCancelledContext(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a")}}
	session := &fakeSession{}
	orch := newTestOrchestrator(loader, session, &fakeFetcher{}, &fakeStore{}, &fakeMerger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := orch.Run(ctx, RunOptions{From: runFrom, To: runTo})

	assert.False(t, result.Success)
	// Cleanup still runs on cancellation.
	assert.Equal(t, 1, session.cleanups)
}

func TestSummaryLine(t *testing.T) {
	r := &RunResult{
		UpdatedDates: []string{"2026-08-24", "2026-08-25"},
		FailedDates:  []string{"2026-08-26"},
		SkippedDates: []string{},
		TotalRecords: 42,
	}
	assert.Equal(t, "RUN_SUMMARY updated=2 failed=1 skipped=0 records=42", r.SummaryLine())
}

func TestRunWriteFailureMarksDate(t *testing.T) {
	loader := &fakeLoader{entries: []domain.BranchEntry{branchEntry("branch-a")}}
	st := &fakeStore{writeErr: fmt.Errorf("disk full")}

	orch := newTestOrchestrator(loader, &fakeSession{}, &fakeFetcher{}, st, &fakeMerger{})
	result := orch.Run(context.Background(), RunOptions{From: runFrom, To: runTo})

	assert.False(t, result.Success)
	assert.Len(t, result.FailedDates, 2)
	assert.Equal(t, []string{"branch-a"}, result.FailedBranches)
}
