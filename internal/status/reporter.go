package status

import (
	"context"
	"fmt"
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

// QueueStatus summarizes the current job queue.
type QueueStatus struct {
	Counts map[domain.JobStatus]int64 `json:"counts"`
	// NextJob is the oldest pending job, the next one a tick will pick up.
	NextJob *domain.IngestionJob `json:"next_job,omitempty"`
}

// Statistics aggregates job outcomes over a rolling day window.
type Statistics struct {
	WindowDays  int     `json:"window_days"`
	TotalJobs   int     `json:"total_jobs"`
	SuccessRate float64 `json:"success_rate"`
	// AvgProcessingSeconds is mean(completedAt - createdAt) over completed
	// jobs only.
	AvgProcessingSeconds float64                   `json:"avg_processing_seconds"`
	ByEntityType         map[domain.EntityType]int `json:"by_entity_type"`
	ByStatus             map[domain.JobStatus]int  `json:"by_status"`
}

// StuckJob is a job left in processing or pending beyond the staleness
// threshold, typically by a crashed run.
type StuckJob struct {
	Job          domain.IngestionJob `json:"job"`
	StuckMinutes int                 `json:"stuck_minutes"`
}

// Diagnosis is the operator-facing health view of the queue.
type Diagnosis struct {
	StuckJobs  []StuckJob                 `json:"stuck_jobs"`
	RecentJobs []domain.IngestionJob      `json:"recent_jobs"`
	Counts     map[domain.JobStatus]int64 `json:"counts"`
}

// Reporter exposes read-only aggregation over job records plus the manual
// stuck-job recovery operation.
type Reporter struct {
	jobs       repository.JobRepository
	stuckAfter time.Duration
	now        func() time.Time
}

// NewReporter creates a reporter with the given staleness threshold.
func NewReporter(jobs repository.JobRepository, stuckAfter time.Duration) *Reporter {
	if stuckAfter <= 0 {
		stuckAfter = 15 * time.Minute
	}
	return &Reporter{jobs: jobs, stuckAfter: stuckAfter, now: time.Now}
}

// QueueStatus returns per-status counts and the next job to process.
// A nil tenantID reports globally.
func (r *Reporter) QueueStatus(ctx context.Context, tenantID *uuid.UUID) (QueueStatus, error) {
	counts, err := r.jobs.CountByStatus(ctx, tenantID)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("failed to count jobs: %w", err)
	}

	next, err := r.jobs.OldestPending(ctx, tenantID)
	if err != nil {
		return QueueStatus{}, fmt.Errorf("failed to find next job: %w", err)
	}

	return QueueStatus{Counts: counts, NextJob: next}, nil
}

// Statistics aggregates the last windowDays of jobs.
func (r *Reporter) Statistics(ctx context.Context, tenantID *uuid.UUID, windowDays int) (Statistics, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := r.now().AddDate(0, 0, -windowDays)

	jobs, err := r.jobs.ListWindow(ctx, tenantID, since)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to load jobs for statistics: %w", err)
	}

	stats := Statistics{
		WindowDays:   windowDays,
		TotalJobs:    len(jobs),
		ByEntityType: make(map[domain.EntityType]int),
		ByStatus:     make(map[domain.JobStatus]int),
	}

	completed := 0
	var totalProcessing time.Duration
	for _, job := range jobs {
		stats.ByEntityType[job.EntityType]++
		stats.ByStatus[job.Status]++
		if job.Status == domain.JobStatusCompleted && job.CompletedAt != nil {
			completed++
			totalProcessing += job.CompletedAt.Sub(job.CreatedAt)
		}
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(completed) / float64(stats.TotalJobs)
	}
	if completed > 0 {
		stats.AvgProcessingSeconds = totalProcessing.Seconds() / float64(completed)
	}

	return stats, nil
}

// Diagnose surfaces stuck jobs with their staleness, recent activity, and a
// status histogram.
func (r *Reporter) Diagnose(ctx context.Context, tenantID *uuid.UUID) (Diagnosis, error) {
	threshold := r.now().Add(-r.stuckAfter)

	stuck, err := r.jobs.ListStuck(ctx, tenantID, threshold)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("failed to list stuck jobs: %w", err)
	}

	diagnosis := Diagnosis{StuckJobs: make([]StuckJob, 0, len(stuck))}
	for _, job := range stuck {
		diagnosis.StuckJobs = append(diagnosis.StuckJobs, StuckJob{
			Job:          job,
			StuckMinutes: int(r.now().Sub(job.UpdatedAt).Minutes()),
		})
	}

	recent, err := r.jobs.ListRecent(ctx, tenantID, 10)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	diagnosis.RecentJobs = recent

	counts, err := r.jobs.CountByStatus(ctx, tenantID)
	if err != nil {
		return Diagnosis{}, fmt.Errorf("failed to count jobs: %w", err)
	}
	diagnosis.Counts = counts

	return diagnosis, nil
}

// ResetStuck force-transitions all currently stuck jobs back to pending,
// making them eligible for the next scheduler tick. This is the only repair
// path for a job orphaned by a crashed run.
func (r *Reporter) ResetStuck(ctx context.Context, tenantID *uuid.UUID) (int64, error) {
	threshold := r.now().Add(-r.stuckAfter)
	recovered, err := r.jobs.ResetStuck(ctx, tenantID, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck jobs: %w", err)
	}
	return recovered, nil
}
