package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"grimvault/internal/validate"
)

type mockValidator struct {
	mu      sync.Mutex
	calls   []uuid.UUID
	started chan uuid.UUID
	release chan struct{}
	err     error
}

func (m *mockValidator) ValidateModule(_ context.Context, moduleID uuid.UUID) (*validate.ModuleReport, error) {
	m.mu.Lock()
	m.calls = append(m.calls, moduleID)
	m.mu.Unlock()

	if m.started != nil {
		m.started <- moduleID
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	return &validate.ModuleReport{ModuleID: moduleID, Valid: true}, nil
}

func (m *mockValidator) validated() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID{}, m.calls...)
}

func waitForState(t *testing.T, s *Scheduler, jobID uuid.UUID, want State) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := s.Job(jobID)
		if !ok {
			t.Fatalf("job %s not found", jobID)
		}
		if job.State == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := s.Job(jobID)
	t.Fatalf("job %s never reached %s, stuck at %s", jobID, want, job.State)
	return Job{}
}

func TestSchedule_Completes(t *testing.T) {
	validator := &mockValidator{}
	s := New(validator, 2, zerolog.Nop())
	defer s.Stop()

	moduleID := uuid.New()
	jobID := s.Schedule(moduleID, false)

	job := waitForState(t, s, jobID, StateCompleted)
	if job.Report == nil || !job.Report.Valid {
		t.Fatalf("expected report on completion, got %+v", job)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Fatalf("expected timestamps, got %+v", job)
	}
	if got := validator.validated(); len(got) != 1 || got[0] != moduleID {
		t.Fatalf("expected one validation of %s, got %v", moduleID, got)
	}
}

func TestSchedule_Failure(t *testing.T) {
	validator := &mockValidator{err: errors.New("db gone")}
	s := New(validator, 1, zerolog.Nop())
	defer s.Stop()

	jobID := s.Schedule(uuid.New(), false)
	job := waitForState(t, s, jobID, StateFailed)
	if job.Error != "db gone" {
		t.Fatalf("expected error message, got %+v", job)
	}
	// Failed is terminal.
	if s.Cancel(jobID) {
		t.Fatal("cancel of a failed job must return false")
	}
}

func TestSchedule_SingleFlight(t *testing.T) {
	validator := &mockValidator{
		started: make(chan uuid.UUID, 1),
		release: make(chan struct{}),
	}
	s := New(validator, 1, zerolog.Nop())

	moduleID := uuid.New()
	first := s.Schedule(moduleID, false)
	<-validator.started

	if again := s.Schedule(moduleID, false); again != first {
		t.Fatalf("expected single-flight to return %s, got %s", first, again)
	}
	forced := s.Schedule(moduleID, true)
	if forced == first {
		t.Fatal("force must enqueue a fresh job")
	}

	close(validator.release)
	s.Stop()

	waitForState(t, s, first, StateCompleted)
	waitForState(t, s, forced, StateCompleted)
	if got := validator.validated(); len(got) != 2 {
		t.Fatalf("expected two runs, got %v", got)
	}
}

func TestCancel_PendingOnly(t *testing.T) {
	validator := &mockValidator{
		started: make(chan uuid.UUID, 1),
		release: make(chan struct{}),
	}
	s := New(validator, 1, zerolog.Nop())

	runningID := s.Schedule(uuid.New(), false)
	<-validator.started

	pendingModule := uuid.New()
	pendingID := s.Schedule(pendingModule, false)

	if !s.Cancel(pendingID) {
		t.Fatal("cancel of a pending job must succeed")
	}
	job, _ := s.Job(pendingID)
	if job.State != StateCancelled {
		t.Fatalf("expected cancelled, got %s", job.State)
	}
	if s.Cancel(pendingID) {
		t.Fatal("cancel is not idempotent on a terminal job")
	}
	if s.Cancel(runningID) {
		t.Fatal("cancel of a running job must return false")
	}
	if job, _ := s.Job(runningID); job.State != StateRunning {
		t.Fatalf("running job state must not change, got %s", job.State)
	}

	close(validator.release)
	s.Stop()

	// The cancelled job never reached the validator.
	for _, moduleID := range validator.validated() {
		if moduleID == pendingModule {
			t.Fatal("cancelled job must not run")
		}
	}
	if job, _ := s.Job(pendingID); job.State != StateCancelled {
		t.Fatalf("terminal state reverted to %s", job.State)
	}
}

func TestBatchSchedule(t *testing.T) {
	validator := &mockValidator{}
	s := New(validator, 2, zerolog.Nop())

	modules := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	jobIDs := s.BatchSchedule(modules)
	if len(jobIDs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobIDs))
	}
	s.Stop()

	for _, jobID := range jobIDs {
		waitForState(t, s, jobID, StateCompleted)
	}
	if got := validator.validated(); len(got) != 3 {
		t.Fatalf("expected 3 runs, got %v", got)
	}
}

func TestActiveJobs(t *testing.T) {
	validator := &mockValidator{
		started: make(chan uuid.UUID, 1),
		release: make(chan struct{}),
	}
	s := New(validator, 1, zerolog.Nop())

	first := s.Schedule(uuid.New(), false)
	<-validator.started
	second := s.Schedule(uuid.New(), false)

	active := s.ActiveJobs()
	if len(active) != 2 {
		t.Fatalf("expected 2 active jobs, got %d", len(active))
	}
	if active[0].ID != first || active[1].ID != second {
		t.Fatalf("expected oldest first, got %+v", active)
	}

	close(validator.release)
	s.Stop()

	if remaining := s.ActiveJobs(); len(remaining) != 0 {
		t.Fatalf("expected no active jobs after drain, got %+v", remaining)
	}
}

func lockCount(s *Scheduler) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.moduleLocks)
}

func TestModuleLocks_PrunedAfterDrain(t *testing.T) {
	validator := &mockValidator{
		started: make(chan uuid.UUID, 1),
		release: make(chan struct{}),
	}
	s := New(validator, 1, zerolog.Nop())

	moduleID := uuid.New()
	runningID := s.Schedule(moduleID, false)
	<-validator.started

	// A forced duplicate queued behind the running job, then cancelled
	// before pickup. Neither may leave a lock behind.
	queuedID := s.Schedule(moduleID, true)
	if !s.Cancel(queuedID) {
		t.Fatal("cancel of the queued job must succeed")
	}

	close(validator.release)
	s.Stop()
	waitForState(t, s, runningID, StateCompleted)

	if locks := lockCount(s); locks != 0 {
		t.Fatalf("expected module locks pruned after drain, got %d", locks)
	}
}

func TestModuleLocks_PrunedOnFailure(t *testing.T) {
	validator := &mockValidator{err: errors.New("db gone")}
	s := New(validator, 1, zerolog.Nop())

	jobID := s.Schedule(uuid.New(), false)
	s.Stop()
	waitForState(t, s, jobID, StateFailed)

	if locks := lockCount(s); locks != 0 {
		t.Fatalf("expected module locks pruned after failure, got %d", locks)
	}
}

func TestJob_NotFound(t *testing.T) {
	s := New(&mockValidator{}, 1, zerolog.Nop())
	defer s.Stop()
	if _, ok := s.Job(uuid.New()); ok {
		t.Fatal("expected not found")
	}
}
