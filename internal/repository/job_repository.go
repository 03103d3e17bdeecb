package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, tenant_id, entity_type, status, file_url, file_name, file_size,
	total_rows, processed_rows, success_rows, error_rows, limited_rows,
	errors, failure_reason, created_at, updated_at, completed_at`

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository wires a job repository backed by pgxpool.
func NewJobRepository(pool *pgxpool.Pool) JobRepository {
	return &jobRepository{pool: pool}
}

func (r *jobRepository) Create(ctx context.Context, job domain.IngestionJob) (domain.IngestionJob, error) {
	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return domain.IngestionJob{}, fmt.Errorf("failed to marshal job errors: %w", err)
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO ingestion_jobs (id, tenant_id, entity_type, status, file_url, file_name, file_size, errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+jobColumns,
		job.ID,
		job.TenantID,
		string(job.EntityType),
		string(job.Status),
		job.FileURL,
		job.FileName,
		job.FileSize,
		errorsJSON,
	)

	created, err := scanJob(row)
	if err != nil {
		return domain.IngestionJob{}, fmt.Errorf("failed to create ingestion job: %w", err)
	}
	return created, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.IngestionJob, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`,
		id,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.IngestionJob{}, ErrJobNotFound
		}
		return domain.IngestionJob{}, fmt.Errorf("failed to get ingestion job: %w", err)
	}
	return job, nil
}

func (r *jobRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.IngestionJob, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(
		ctx,
		`SELECT count(*) FROM ingestion_jobs WHERE tenant_id = $1`,
		tenantID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ingestion jobs: %w", err)
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+jobColumns+`
		 FROM ingestion_jobs
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ingestion jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (r *jobRepository) ListPending(ctx context.Context, limit int) ([]domain.IngestionJob, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+jobColumns+`
		 FROM ingestion_jobs
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *jobRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE ingestion_jobs
		 SET status = 'processing', updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepository) UpdateProgress(ctx context.Context, job domain.IngestionJob) error {
	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal job errors: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE ingestion_jobs
		 SET total_rows = $2, processed_rows = $3, success_rows = $4,
		     error_rows = $5, limited_rows = $6, errors = $7, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		job.ID,
		job.TotalRows,
		job.ProcessedRows,
		job.SuccessRows,
		job.ErrorRows,
		job.LimitedRows,
		errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to checkpoint job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *jobRepository) MarkCompleted(ctx context.Context, job domain.IngestionJob) error {
	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal job errors: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE ingestion_jobs
		 SET status = 'completed', total_rows = $2, processed_rows = $3,
		     success_rows = $4, error_rows = $5, limited_rows = $6, errors = $7,
		     updated_at = now(), completed_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		job.ID,
		job.TotalRows,
		job.ProcessedRows,
		job.SuccessRows,
		job.ErrorRows,
		job.LimitedRows,
		errorsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *jobRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE ingestion_jobs
		 SET status = 'failed', failure_reason = $2, updated_at = now(), completed_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id,
		reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (r *jobRepository) CountByStatus(ctx context.Context, tenantID *uuid.UUID) (map[domain.JobStatus]int64, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT status, count(*)
		 FROM ingestion_jobs
		 WHERE $1::uuid IS NULL OR tenant_id = $1
		 GROUP BY status`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.JobStatus]int64, len(domain.JobStatuses))
	for _, status := range domain.JobStatuses {
		counts[status] = 0
	}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.JobStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

func (r *jobRepository) OldestPending(ctx context.Context, tenantID *uuid.UUID) (*domain.IngestionJob, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+jobColumns+`
		 FROM ingestion_jobs
		 WHERE status = 'pending' AND ($1::uuid IS NULL OR tenant_id = $1)
		 ORDER BY created_at ASC
		 LIMIT 1`,
		tenantID,
	)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find oldest pending job: %w", err)
	}
	return &job, nil
}

func (r *jobRepository) ListWindow(ctx context.Context, tenantID *uuid.UUID, since time.Time) ([]domain.IngestionJob, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+jobColumns+`
		 FROM ingestion_jobs
		 WHERE created_at >= $2 AND ($1::uuid IS NULL OR tenant_id = $1)
		 ORDER BY created_at DESC`,
		tenantID,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs in window: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *jobRepository) ListStuck(ctx context.Context, tenantID *uuid.UUID, olderThan time.Time) ([]domain.IngestionJob, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+jobColumns+`
		 FROM ingestion_jobs
		 WHERE status IN ('processing', 'pending')
		   AND updated_at < $2
		   AND ($1::uuid IS NULL OR tenant_id = $1)
		 ORDER BY updated_at ASC`,
		tenantID,
		olderThan,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *jobRepository) ListRecent(ctx context.Context, tenantID *uuid.UUID, limit int) ([]domain.IngestionJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+jobColumns+`
		 FROM ingestion_jobs
		 WHERE $1::uuid IS NULL OR tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		tenantID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *jobRepository) ResetStuck(ctx context.Context, tenantID *uuid.UUID, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE ingestion_jobs
		 SET status = 'pending', updated_at = now()
		 WHERE status IN ('processing', 'pending')
		   AND updated_at < $2
		   AND ($1::uuid IS NULL OR tenant_id = $1)`,
		tenantID,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stuck jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectJobs(rows pgx.Rows) ([]domain.IngestionJob, error) {
	jobs := []domain.IngestionJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingestion job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingestion jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (domain.IngestionJob, error) {
	var (
		job           domain.IngestionJob
		entityType    string
		status        string
		errorsJSON    []byte
		failureReason pgtype.Text
		completedAt   pgtype.Timestamptz
	)

	if err := row.Scan(
		&job.ID,
		&job.TenantID,
		&entityType,
		&status,
		&job.FileURL,
		&job.FileName,
		&job.FileSize,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.SuccessRows,
		&job.ErrorRows,
		&job.LimitedRows,
		&errorsJSON,
		&failureReason,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	); err != nil {
		return domain.IngestionJob{}, err
	}

	job.EntityType = domain.EntityType(entityType)
	job.Status = domain.JobStatus(status)
	if err := json.Unmarshal(errorsJSON, &job.Errors); err != nil {
		return domain.IngestionJob{}, fmt.Errorf("failed to decode job errors: %w", err)
	}
	if failureReason.Valid {
		job.FailureReason = failureReason.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}
