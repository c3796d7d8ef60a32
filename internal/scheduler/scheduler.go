// Package scheduler runs module validation as background jobs so callers
// on the request path never block on a full validation pass.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"grimvault/internal/validate"
)

// Validator is the single call a job executes.
type Validator interface {
	ValidateModule(ctx context.Context, moduleID uuid.UUID) (*validate.ModuleReport, error)
}

// State of a job. Transitions are one-way: pending → running →
// completed | failed, or pending → cancelled. Terminal states never
// revert.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Job tracks one scheduled validation run. Report is set on completion,
// Error on failure.
type Job struct {
	ID          uuid.UUID
	ModuleID    uuid.UUID
	State       State
	Force       bool
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Report      *validate.ModuleReport
	Error       string
}

type Scheduler struct {
	validator Validator
	pool      *workerpool.WorkerPool
	logger    zerolog.Logger

	mu          sync.Mutex
	jobs        map[uuid.UUID]*Job
	moduleLocks map[uuid.UUID]*sync.Mutex
}

func New(validator Validator, workers int, logger zerolog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		validator:   validator,
		pool:        workerpool.New(workers),
		logger:      logger,
		jobs:        make(map[uuid.UUID]*Job),
		moduleLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Schedule enqueues a validation run and returns immediately. Without
// force, an already pending or running job for the same module is
// returned instead of enqueuing a duplicate.
func (s *Scheduler) Schedule(moduleID uuid.UUID, force bool) uuid.UUID {
	s.mu.Lock()
	if !force {
		for _, job := range s.jobs {
			if job.ModuleID == moduleID && !job.State.Terminal() {
				s.mu.Unlock()
				return job.ID
			}
		}
	}

	job := &Job{
		ID:        uuid.New(),
		ModuleID:  moduleID,
		State:     StatePending,
		Force:     force,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.logger.Debug().
		Str("job", job.ID.String()).
		Str("module", moduleID.String()).
		Bool("force", force).
		Msg("validation scheduled")
	s.pool.Submit(func() { s.run(job.ID) })
	return job.ID
}

// BatchSchedule enqueues one job per module id.
func (s *Scheduler) BatchSchedule(moduleIDs []uuid.UUID) []uuid.UUID {
	jobIDs := make([]uuid.UUID, 0, len(moduleIDs))
	for _, moduleID := range moduleIDs {
		jobIDs = append(jobIDs, s.Schedule(moduleID, false))
	}
	return jobIDs
}

// Job returns a snapshot of one job.
func (s *Scheduler) Job(jobID uuid.UUID) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// ActiveJobs snapshots all pending and running jobs, oldest first.
func (s *Scheduler) ActiveJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Job, 0)
	for _, job := range s.jobs {
		if !job.State.Terminal() {
			active = append(active, *job)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active
}

// Cancel moves a pending job to cancelled. A running or terminal job is
// left untouched and Cancel reports false; a running job completes
// regardless.
func (s *Scheduler) Cancel(jobID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.State != StatePending {
		return false
	}
	job.State = StateCancelled
	now := time.Now()
	job.CompletedAt = &now
	s.pruneModuleLock(job.ModuleID)
	s.logger.Debug().Str("job", jobID.String()).Msg("validation cancelled")
	return true
}

// pruneModuleLock drops the per-module mutex once no live job references
// the module, so a long-lived scheduler does not accumulate locks for
// every module ever validated. Caller must hold s.mu.
func (s *Scheduler) pruneModuleLock(moduleID uuid.UUID) {
	for _, job := range s.jobs {
		if job.ModuleID == moduleID && !job.State.Terminal() {
			return
		}
	}
	delete(s.moduleLocks, moduleID)
}

// Stop drains the queue and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.pool.StopWait()
}

func (s *Scheduler) run(jobID uuid.UUID) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.State != StatePending {
		s.mu.Unlock()
		return
	}
	moduleLock := s.moduleLocks[job.ModuleID]
	if moduleLock == nil {
		moduleLock = &sync.Mutex{}
		s.moduleLocks[job.ModuleID] = moduleLock
	}
	s.mu.Unlock()

	// Same-module runs serialize here so two workers never replace the
	// same module's validation errors concurrently.
	moduleLock.Lock()
	defer moduleLock.Unlock()

	s.mu.Lock()
	if job.State != StatePending {
		// Cancelled while queued behind another run of the same module.
		s.mu.Unlock()
		return
	}
	job.State = StateRunning
	started := time.Now()
	job.StartedAt = &started
	moduleID := job.ModuleID
	s.mu.Unlock()

	report, err := s.validator.ValidateModule(context.Background(), moduleID)

	s.mu.Lock()
	defer s.mu.Unlock()
	completed := time.Now()
	job.CompletedAt = &completed
	if err != nil {
		job.State = StateFailed
		job.Error = err.Error()
		s.pruneModuleLock(moduleID)
		s.logger.Error().Err(err).
			Str("job", jobID.String()).
			Str("module", moduleID.String()).
			Msg("validation job failed")
		return
	}
	job.State = StateCompleted
	job.Report = report
	s.pruneModuleLock(moduleID)
	s.logger.Info().
		Str("job", jobID.String()).
		Str("module", moduleID.String()).
		Bool("valid", report.Valid).
		Msg("validation job completed")
}
