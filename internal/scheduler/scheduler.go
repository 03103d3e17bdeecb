package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/ingestion"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// JobRunner abstracts the ingestion runner for scheduling.
type JobRunner interface {
	Run(ctx context.Context, job domain.IngestionJob) (domain.IngestionJob, error)
}

// Options bound each scheduler tick.
type Options struct {
	// Interval between ticks; the first tick runs immediately on Start.
	Interval time.Duration
	// MaxJobsPerTick caps how many jobs one tick runs in total.
	MaxJobsPerTick int
	// MaxJobsPerTenant caps how many of those may belong to one tenant,
	// so a single tenant's backlog cannot starve others.
	MaxJobsPerTenant int
	// PendingBatch is how many pending jobs are loaded per tick before
	// the fairness selection is applied.
	PendingBatch int
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		Interval:         30 * time.Second,
		MaxJobsPerTick:   5,
		MaxJobsPerTenant: 2,
		PendingBatch:     50,
	}
}

// Scheduler polls for pending jobs across all tenants and drives them to
// completion, sequentially, under a single-flight guard.
type Scheduler struct {
	jobs    repository.JobRepository
	runner  JobRunner
	opts    Options
	cron    *gocron.Scheduler
	ticking *atomic.Bool
	log     *logrus.Entry
}

// TickSummary reports what one executed tick did.
type TickSummary struct {
	Selected  int
	Completed int
	Failed    int
	Skipped   int
}

// New creates a scheduler. Call Start to begin ticking.
func New(jobs repository.JobRepository, runner JobRunner, opts Options) *Scheduler {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.MaxJobsPerTick <= 0 {
		opts.MaxJobsPerTick = defaults.MaxJobsPerTick
	}
	if opts.MaxJobsPerTenant <= 0 {
		opts.MaxJobsPerTenant = defaults.MaxJobsPerTenant
	}
	if opts.PendingBatch <= 0 {
		opts.PendingBatch = defaults.PendingBatch
	}
	return &Scheduler{
		jobs:    jobs,
		runner:  runner,
		opts:    opts,
		ticking: atomic.NewBool(false),
		log:     logrus.WithField("component", "scheduler"),
	}
}

// Start begins the timer loop with an immediate first run.
func (s *Scheduler) Start() error {
	if s.cron != nil {
		return nil
	}
	cron := gocron.NewScheduler(time.UTC)
	if _, err := cron.Every(s.opts.Interval).StartImmediately().Do(func() {
		_, _ = s.RunTick(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule ingestion tick: %w", err)
	}
	cron.StartAsync()
	s.cron = cron
	s.log.WithField("interval", s.opts.Interval).Info("scheduler started")
	return nil
}

// Stop halts the timer loop. An in-flight tick finishes on its own.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.log.Info("scheduler stopped")
}

// IsRunning reports whether the timer loop is active.
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil
}

// ErrTickInProgress is returned when a tick fires while the previous one is
// still running; the new tick is skipped entirely, not queued.
var ErrTickInProgress = errors.New("tick already in progress")

// RunTick executes one scheduling pass. Safe to call manually; overlapping
// calls are rejected by the single-flight guard.
func (s *Scheduler) RunTick(ctx context.Context) (TickSummary, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		return TickSummary{}, ErrTickInProgress
	}
	defer s.ticking.Store(false)

	summary := TickSummary{}

	pending, err := s.jobs.ListPending(ctx, s.opts.PendingBatch)
	if err != nil {
		return summary, fmt.Errorf("failed to load pending jobs: %w", err)
	}
	if len(pending) == 0 {
		return summary, nil
	}

	selected := selectFair(pending, s.opts.MaxJobsPerTenant, s.opts.MaxJobsPerTick)
	summary.Selected = len(selected)

	for _, job := range selected {
		done, runErr := s.runner.Run(ctx, job)
		switch {
		case runErr == nil:
			if done.Status == domain.JobStatusFailed {
				summary.Failed++
			} else {
				summary.Completed++
			}
		case errors.Is(runErr, ingestion.ErrJobClaimed):
			// Another process took it between selection and claim.
			summary.Skipped++
		default:
			summary.Failed++
			s.log.WithError(runErr).WithField("job_id", job.ID).Error("job run failed")
			if ferr := s.jobs.MarkFailed(ctx, job.ID, runErr.Error()); ferr != nil && !errors.Is(ferr, repository.ErrJobNotFound) {
				s.log.WithError(ferr).WithField("job_id", job.ID).Error("failed to force-fail job")
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"pending":   len(pending),
		"selected":  summary.Selected,
		"completed": summary.Completed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("tick finished")

	return summary, nil
}

// selectFair picks a bounded, round-robin subset across tenants from a FIFO
// ordered pending list. Tenants are visited in order of their oldest pending
// job; each round takes at most one job per tenant until either cap is hit.
func selectFair(pending []domain.IngestionJob, maxPerTenant, maxTotal int) []domain.IngestionJob {
	queues := make(map[uuid.UUID][]domain.IngestionJob)
	order := []uuid.UUID{}
	for _, job := range pending {
		if _, seen := queues[job.TenantID]; !seen {
			order = append(order, job.TenantID)
		}
		queues[job.TenantID] = append(queues[job.TenantID], job)
	}

	selected := []domain.IngestionJob{}
	taken := make(map[uuid.UUID]int)

	for round := 0; round < maxPerTenant && len(selected) < maxTotal; round++ {
		for _, tenant := range order {
			if len(selected) >= maxTotal {
				break
			}
			queue := queues[tenant]
			if taken[tenant] >= len(queue) || taken[tenant] >= maxPerTenant {
				continue
			}
			selected = append(selected, queue[taken[tenant]])
			taken[tenant]++
		}
	}

	return selected
}
