package operations

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service errors, mapped to API errors by the transport layer.
var (
	ErrRunActive  = errors.New("a run is already in progress")
	ErrUnknownRun = errors.New("unknown run id")
)

// RunStatus is the lifecycle state of a tracked run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunState is the tracked view of one run. Result is nil until the run
// finishes.
type RunState struct {
	RunID     string     `json:"run_id"`
	Status    RunStatus  `json:"status"`
	Message   string     `json:"message"`
	Percent   float64    `json:"percent"`
	StartedAt time.Time  `json:"started_at"`
	Result    *RunResult `json:"result,omitempty"`
}

// Runner executes one orchestrated run. Satisfied by *Orchestrator.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) *RunResult
}

// Service tracks orchestrator runs launched from the API. Only one run may
// be active at a time because runs share the browser session and the data
// directory.
type Service struct {
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	runs   map[string]*RunState
	order  []string
	active string
}

// NewService creates a run service around the given runner.
func NewService(runner Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner: runner,
		logger: logger,
		runs:   make(map[string]*RunState),
	}
}

// Start launches a run in the background and returns its id. It returns
// ErrRunActive while a previous run is still executing. The run detaches
// from the caller's context so an aborted HTTP request does not kill a
// half-finished scrape.
func (s *Service) Start(opts RunOptions) (string, error) {
	s.mu.Lock()
	if s.active != "" {
		s.mu.Unlock()
		return "", ErrRunActive
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	opts.RunID = runID

	state := &RunState{
		RunID:     runID,
		Status:    RunStatusRunning,
		Message:   "run started",
		StartedAt: time.Now(),
	}
	s.runs[runID] = state
	s.order = append(s.order, runID)
	s.active = runID
	s.mu.Unlock()

	userProgress := opts.Progress
	opts.Progress = func(message string, percent float64) {
		s.mu.Lock()
		state.Message = message
		state.Percent = percent
		s.mu.Unlock()
		if userProgress != nil {
			userProgress(message, percent)
		}
	}

	go s.execute(opts, state)

	return runID, nil
}

func (s *Service) execute(opts RunOptions, state *RunState) {
	result := s.runner.Run(context.Background(), opts)

	s.mu.Lock()
	defer s.mu.Unlock()

	state.Result = result
	state.Percent = 100
	state.Message = result.Message
	if result.Success {
		state.Status = RunStatusCompleted
	} else {
		state.Status = RunStatusFailed
	}
	s.active = ""

	s.logger.Info("run finished",
		"run_id", state.RunID,
		"status", string(state.Status),
		"records", result.TotalRecords)
}

// Get returns a snapshot of one run's state.
func (s *Service) Get(runID string) (RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.runs[runID]
	if !ok {
		return RunState{}, ErrUnknownRun
	}
	return *state, nil
}

// List returns snapshots of all tracked runs in start order.
func (s *Service) List() []RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.runs[id])
	}
	return out
}

// Active reports the id of the currently executing run, if any.
func (s *Service) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != ""
}
