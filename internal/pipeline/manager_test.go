package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRunner runs until its context is canceled or release is closed.
type blockingRunner struct {
	mu      sync.Mutex
	runID   uuid.UUID
	started chan struct{}
	release chan struct{}
	result  error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(ctx context.Context, _, _ bool) error {
	close(r.started)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.release:
		return r.result
	}
}

func (r *blockingRunner) SetRunID(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID = id
}

func (r *blockingRunner) Stats() Snapshot { return Snapshot{State: StateIdle} }

func TestManager_StartAndStop(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(runner)

	run, err := m.Start(true, true)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, run.Historical)
	assert.True(t, run.Live)

	<-runner.started

	current := m.Current()
	require.NotNil(t, current)
	assert.Equal(t, run.ID, current.ID)

	runner.mu.Lock()
	assert.Equal(t, run.ID, runner.runID, "run id handed to the runner before start")
	runner.mu.Unlock()

	m.Stop()
	assert.Nil(t, m.Current())
}

func TestManager_SecondStartRejected(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(runner)

	_, err := m.Start(true, true)
	require.NoError(t, err)
	<-runner.started

	_, err = m.Start(false, true)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	m.Stop()
}

func TestManager_RunFinishClearsCurrent(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(runner)

	_, err := m.Start(true, false)
	require.NoError(t, err)
	<-runner.started

	close(runner.release)

	require.Eventually(t, func() bool { return m.Current() == nil }, time.Second, 10*time.Millisecond)
	assert.NoError(t, m.LastError())
}

func TestManager_LastErrorKept(t *testing.T) {
	runner := newBlockingRunner()
	runner.result = assert.AnError
	m := NewManager(runner)

	_, err := m.Start(true, false)
	require.NoError(t, err)
	<-runner.started
	close(runner.release)

	require.Eventually(t, func() bool { return m.Current() == nil }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, m.LastError(), assert.AnError)

	// a new start clears the previous terminal error
	runner2 := newBlockingRunner()
	m.runner = runner2
	_, err = m.Start(true, true)
	require.NoError(t, err)
	assert.NoError(t, m.LastError())
	m.Stop()
}

func TestManager_WaitReturnsWhenRunEnds(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(runner)

	_, err := m.Start(true, false)
	require.NoError(t, err)
	<-runner.started

	done := make(chan struct{})
	go func() {
		m.Wait(context.Background())
		close(done)
	}()

	close(runner.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the run ended")
	}
}

func TestManager_WaitHonorsContext(t *testing.T) {
	runner := newBlockingRunner()
	m := NewManager(runner)

	_, err := m.Start(true, true)
	require.NoError(t, err)
	<-runner.started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Wait(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return on context cancellation")
	}
	m.Stop()
}
