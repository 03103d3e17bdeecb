package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("ingestion job not found")
	// ErrEntityNotFound is returned when no entity matches an internal code.
	ErrEntityNotFound = errors.New("entity not found")
)

// JobRepository persists ingestion job records and their status machine.
type JobRepository interface {
	Create(ctx context.Context, job domain.IngestionJob) (domain.IngestionJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.IngestionJob, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.IngestionJob, int, error)

	// ListPending returns up to limit pending jobs across all tenants,
	// ordered by creation time ascending.
	ListPending(ctx context.Context, limit int) ([]domain.IngestionJob, error)

	// Claim transitions a job from pending to processing as a single
	// conditional update. A false result means another runner took it.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// UpdateProgress checkpoints counters and row errors mid-run.
	UpdateProgress(ctx context.Context, job domain.IngestionJob) error

	// MarkCompleted finalizes a processing job with its counters.
	MarkCompleted(ctx context.Context, job domain.IngestionJob) error

	// MarkFailed finalizes a processing job with a fatal cause.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// Read-side queries for status reporting. A nil tenantID means global scope.
	CountByStatus(ctx context.Context, tenantID *uuid.UUID) (map[domain.JobStatus]int64, error)
	OldestPending(ctx context.Context, tenantID *uuid.UUID) (*domain.IngestionJob, error)
	ListWindow(ctx context.Context, tenantID *uuid.UUID, since time.Time) ([]domain.IngestionJob, error)
	ListStuck(ctx context.Context, tenantID *uuid.UUID, olderThan time.Time) ([]domain.IngestionJob, error)
	ListRecent(ctx context.Context, tenantID *uuid.UUID, limit int) ([]domain.IngestionJob, error)

	// ResetStuck moves stale pending/processing jobs back to pending and
	// returns how many were recovered.
	ResetStuck(ctx context.Context, tenantID *uuid.UUID, olderThan time.Time) (int64, error)
}

// EntityRepository persists tenant-scoped maintenance entities keyed by
// internal code.
type EntityRepository interface {
	Create(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	Update(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	GetByInternalCode(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType, internalCode string) (domain.Entity, error)
	ListByType(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) ([]domain.Entity, error)
	CountByType(ctx context.Context, tenantID uuid.UUID, entityType domain.EntityType) (int64, error)
}
