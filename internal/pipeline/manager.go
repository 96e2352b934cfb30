package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/telescout/telescout/internal/logger"
)

// ErrAlreadyRunning is returned when a run is started while one is active.
var ErrAlreadyRunning = errors.New("a run is already active")

// Runner is the pipeline surface the manager drives.
type Runner interface {
	Run(ctx context.Context, historical, live bool) error
	SetRunID(id uuid.UUID)
	Stats() Snapshot
}

// Run describes an active pipeline run.
type Run struct {
	ID         uuid.UUID `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Historical bool      `json:"historical"`
	Live       bool      `json:"live"`
}

// Manager owns the single active run: at most one run at a time, started
// detached from the caller's context so an HTTP request ending does not kill
// it.
type Manager struct {
	mu      sync.Mutex
	current *Run
	cancel  context.CancelFunc
	runner  Runner
	lastErr error
	log     *logger.Logger
}

// NewManager creates a run manager for the given runner.
func NewManager(runner Runner) *Manager {
	return &Manager{
		runner: runner,
		log:    logger.Get(),
	}
}

// Start launches a run with the given phases. Returns ErrAlreadyRunning if a
// run is active.
func (m *Manager) Start(historical, live bool) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// detach from the caller: an HTTP request context would cancel the run
	// the moment the response is written
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	run := &Run{
		ID:         uuid.New(),
		StartedAt:  time.Now(),
		Historical: historical,
		Live:       live,
	}
	m.current = run
	m.lastErr = nil
	m.runner.SetRunID(run.ID)

	go m.execute(runCtx, run)

	return run, nil
}

// Stop cancels the active run. Safe to call when nothing is running.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.current = nil
}

// Current returns the active run, or nil.
func (m *Manager) Current() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastError returns the terminal error of the most recent run, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Stats returns the runner's statistics snapshot.
func (m *Manager) Stats() Snapshot {
	return m.runner.Stats()
}

// Wait blocks until the active run finishes or ctx is canceled. Used by the
// CLI entrypoint, which has no reason to outlive the run.
func (m *Manager) Wait(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.Current() == nil {
				return
			}
		}
	}
}

func (m *Manager) execute(ctx context.Context, run *Run) {
	err := m.runner.Run(ctx, run.Historical, run.Live)

	m.mu.Lock()
	if m.current != nil && m.current.ID == run.ID {
		m.current = nil
		m.cancel = nil
	}
	m.lastErr = err
	m.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		m.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("run terminated with error")
		return
	}
	m.log.Info().Str("run_id", run.ID.String()).Msg("run finished")
}
