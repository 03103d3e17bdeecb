package ingestion

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jagjerez/maintenance-app-sub001/internal/blob"
	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/sirupsen/logrus"
)

// RunnerOptions bound a single job run.
type RunnerOptions struct {
	// MaxRowsPerRun caps how many rows one run processes; rows beyond the
	// cap are counted as limited and dropped from this run.
	MaxRowsPerRun int
	// CheckpointEvery controls how often counters are persisted mid-run so
	// the read side observes live progress.
	CheckpointEvery int
}

// DefaultRunnerOptions returns the production limits.
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{MaxRowsPerRun: 100, CheckpointEvery: 10}
}

// Runner drives one ingestion job end to end: claim, fetch, parse, process
// rows, checkpoint, finalize.
type Runner struct {
	jobs       repository.JobRepository
	blobs      blob.Store
	parser     *Parser
	processors *ProcessorSet
	opts       RunnerOptions
	log        *logrus.Entry
}

// NewRunner wires a job runner.
func NewRunner(jobs repository.JobRepository, blobs blob.Store, processors *ProcessorSet, opts RunnerOptions) *Runner {
	if opts.MaxRowsPerRun <= 0 {
		opts.MaxRowsPerRun = DefaultRunnerOptions().MaxRowsPerRun
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultRunnerOptions().CheckpointEvery
	}
	return &Runner{
		jobs:       jobs,
		blobs:      blobs,
		parser:     NewParser(),
		processors: processors,
		opts:       opts,
		log:        logrus.WithField("component", "job-runner"),
	}
}

// Run executes one job. The job is claimed with a conditional update first;
// ErrJobClaimed means another runner took it and nothing was done. Row-scoped
// failures are recorded on the job and never abort the batch; only fetch and
// parse failures fail the job itself.
func (r *Runner) Run(ctx context.Context, job domain.IngestionJob) (result domain.IngestionJob, err error) {
	log := r.log.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"tenant_id":   job.TenantID,
		"entity_type": job.EntityType,
	})

	claimed, err := r.jobs.Claim(ctx, job.ID)
	if err != nil {
		return job, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}
	if !claimed {
		return job, ErrJobClaimed
	}
	job.Status = domain.JobStatusProcessing

	// A panicking processor must fail this job without taking down the
	// scheduler loop.
	defer func() {
		if p := recover(); p != nil {
			reason := fmt.Sprintf("panic during processing: %v", p)
			log.WithField("panic", p).Error("job run panicked")
			_ = r.jobs.MarkFailed(ctx, job.ID, reason)
			job.Status = domain.JobStatusFailed
			job.FailureReason = reason
			result = job
			err = fmt.Errorf("job %s panicked: %v", job.ID, p)
		}
	}()

	payload, err := r.blobs.Fetch(ctx, job.FileURL)
	if err != nil {
		return r.fail(ctx, job, log, fmt.Sprintf("failed to fetch file: %v", err))
	}

	rows, err := r.parser.Parse(payload, filepath.Ext(job.FileName))
	if err != nil {
		return r.fail(ctx, job, log, fmt.Sprintf("failed to parse file: %v", err))
	}

	processor, ok := r.processors.For(job.EntityType)
	if !ok {
		return r.fail(ctx, job, log, fmt.Sprintf("no processor for entity type %s", job.EntityType))
	}

	job.TotalRows = len(rows)
	job.LimitedRows = 0
	if job.TotalRows > r.opts.MaxRowsPerRun {
		job.LimitedRows = job.TotalRows - r.opts.MaxRowsPerRun
		rows = rows[:r.opts.MaxRowsPerRun]
	}
	job.ProcessedRows = 0
	job.SuccessRows = 0
	job.ErrorRows = 0
	job.Errors = []domain.RowError{}

	for i, row := range rows {
		rowNumber := i + 1

		if procErr := processor.Process(ctx, job.TenantID, row); procErr != nil {
			job.Errors = append(job.Errors, toRowError(rowNumber, procErr))
			job.ErrorRows++
		} else {
			job.SuccessRows++
		}
		job.ProcessedRows++

		if job.ProcessedRows%r.opts.CheckpointEvery == 0 {
			if cpErr := r.jobs.UpdateProgress(ctx, job); cpErr != nil {
				log.WithError(cpErr).Warn("failed to checkpoint job progress")
			}
		}
	}

	if err := r.jobs.MarkCompleted(ctx, job); err != nil {
		return job, fmt.Errorf("failed to finalize job %s: %w", job.ID, err)
	}
	job.Status = domain.JobStatusCompleted

	log.WithFields(logrus.Fields{
		"total_rows":     job.TotalRows,
		"processed_rows": job.ProcessedRows,
		"success_rows":   job.SuccessRows,
		"error_rows":     job.ErrorRows,
		"limited_rows":   job.LimitedRows,
	}).Info("job completed")

	return job, nil
}

func (r *Runner) fail(ctx context.Context, job domain.IngestionJob, log *logrus.Entry, reason string) (domain.IngestionJob, error) {
	log.WithField("reason", reason).Warn("job failed")
	if err := r.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		return job, fmt.Errorf("failed to record job failure: %w", err)
	}
	job.Status = domain.JobStatusFailed
	job.FailureReason = reason
	return job, nil
}
