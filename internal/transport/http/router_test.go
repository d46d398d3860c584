package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minleu94/technical-analysis-sub001/internal/exporter"
	"github.com/minleu94/technical-analysis-sub001/internal/operations"
	"github.com/minleu94/technical-analysis-sub001/internal/registry"
	"github.com/minleu94/technical-analysis-sub001/pkg/contracts/domain"
)

type fakeRunService struct {
	startErr error
	lastOpts operations.RunOptions
	runs     map[string]operations.RunState
}

func (s *fakeRunService) Start(opts operations.RunOptions) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	s.lastOpts = opts
	return "run-1", nil
}

func (s *fakeRunService) Get(runID string) (operations.RunState, error) {
	state, ok := s.runs[runID]
	if !ok {
		return operations.RunState{}, operations.ErrUnknownRun
	}
	return state, nil
}

func (s *fakeRunService) List() []operations.RunState {
	states := make([]operations.RunState, 0, len(s.runs))
	for _, state := range s.runs {
		states = append(states, state)
	}
	return states
}

type fakeBranchSource struct {
	entries []domain.BranchEntry
	err     error
}

func (s *fakeBranchSource) LoadAll() ([]domain.BranchEntry, error) {
	return s.entries, s.err
}

type fakeSummarySource struct {
	summaries []exporter.CounterpartySummary
	err       error
}

func (s *fakeSummarySource) SummarizeCounterparties(string) ([]exporter.CounterpartySummary, error) {
	return s.summaries, s.err
}

type testServerDeps struct {
	runs     *fakeRunService
	branches *fakeBranchSource
	reports  *fakeSummarySource
}

func newTestServer(t *testing.T) (*httptest.Server, *testServerDeps) {
	t.Helper()
	deps := &testServerDeps{
		runs:     &fakeRunService{runs: map[string]operations.RunState{}},
		branches: &fakeBranchSource{},
		reports:  &fakeSummarySource{},
	}
	router := NewRouter(RouterDeps{
		Operations: NewOperationsHandler(deps.runs, nil),
		Branches:   NewBranchesHandler(deps.branches, nil),
		Reports:    NewReportsHandler(deps.reports, nil),
		Health:     NewHealthHandler("test"),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, deps
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	var status HealthStatus
	resp := getJSON(t, server.URL+"/api/health", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "test", status.Version)
}

func TestStartRunAccepted(t *testing.T) {
	server, deps := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/operations/broker-flows",
		`{"from":"2026-08-24","to":"2026-08-28","branches":["kgi-taipei"],"delay_seconds":10,"force":true}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started StartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	assert.Equal(t, "run-1", started.RunID)
	assert.Equal(t, "running", started.Status)

	opts := deps.runs.lastOpts
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC), opts.From)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), opts.To)
	assert.Equal(t, []string{"kgi-taipei"}, opts.BranchKeys)
	assert.Equal(t, 10*time.Second, opts.Delay)
	assert.True(t, opts.ForceAll)
}

func TestStartRunValidation(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing dates", `{}`},
		{"malformed date", `{"from":"2026/08/24","to":"2026-08-28"}`},
		{"reversed range", `{"from":"2026-08-28","to":"2026-08-24"}`},
		{"delay out of range", `{"from":"2026-08-24","to":"2026-08-28","delay_seconds":900}`},
		{"not json", `from=2026-08-24`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL+"/api/operations/broker-flows", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestStartRunConflict(t *testing.T) {
	server, deps := newTestServer(t)
	deps.runs.startErr = operations.ErrRunActive

	resp := postJSON(t, server.URL+"/api/operations/broker-flows",
		`{"from":"2026-08-24","to":"2026-08-28"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetRun(t *testing.T) {
	server, deps := newTestServer(t)
	deps.runs.runs["run-7"] = operations.RunState{
		RunID:  "run-7",
		Status: operations.RunStatusCompleted,
	}

	var state operations.RunState
	resp := getJSON(t, server.URL+"/api/operations/run-7", &state)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, operations.RunStatusCompleted, state.Status)

	resp = getJSON(t, server.URL+"/api/operations/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListBranches(t *testing.T) {
	server, deps := newTestServer(t)
	deps.branches.entries = []domain.BranchEntry{
		{SystemKey: "kgi-taipei", BrokerCode: "9200", BranchCode: "9216", DisplayName: "凱基台北"},
	}

	var entries []domain.BranchEntry
	resp := getJSON(t, server.URL+"/api/branches/", &entries)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, entries, 1)
	assert.Equal(t, "kgi-taipei", entries[0].SystemKey)
}

func TestListBranchesMissingRegistry(t *testing.T) {
	server, deps := newTestServer(t)
	deps.branches.err = registry.ErrRegistryMissing

	var entries []domain.BranchEntry
	resp := getJSON(t, server.URL+"/api/branches/", &entries)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, entries)
}

func TestCounterpartySummary(t *testing.T) {
	server, deps := newTestServer(t)
	deps.reports.summaries = []exporter.CounterpartySummary{
		{BrokerCode: "1234", BrokerName: "元大", NetQty: 250, TradingDays: 2},
	}

	var summaries []exporter.CounterpartySummary
	resp := getJSON(t, server.URL+"/api/branches/kgi-taipei/summary", &summaries)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, summaries, 1)
	assert.Equal(t, "1234", summaries[0].BrokerCode)

	deps.reports.err = errors.New("disk gone")
	resp = getJSON(t, server.URL+"/api/branches/kgi-taipei/summary", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
