package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobStatuses lists every valid status, useful for histogram style reports.
var JobStatuses = []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed}

// CanTransitionTo reports whether the status machine allows moving to next.
// Transitions are monotone forward except the administrative recovery edge
// processing->pending used to unstick a crashed run.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusPending
	default:
		return false
	}
}

// RowError captures one row-scoped ingestion failure.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// IngestionJob tracks the processing lifecycle of a single uploaded file.
type IngestionJob struct {
	ID         uuid.UUID  `json:"id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	EntityType EntityType `json:"entity_type"`
	Status     JobStatus  `json:"status"`

	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`

	TotalRows     int `json:"total_rows"`
	ProcessedRows int `json:"processed_rows"`
	SuccessRows   int `json:"success_rows"`
	ErrorRows     int `json:"error_rows"`
	LimitedRows   int `json:"limited_rows"`

	Errors []RowError `json:"errors"`

	// FailureReason is set only on jobs that failed before row processing
	// could finish (unreachable file, unreadable format).
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewIngestionJob creates a pending job for an uploaded file reference.
func NewIngestionJob(tenantID uuid.UUID, entityType EntityType, fileURL, fileName string, fileSize int64) IngestionJob {
	now := time.Now()
	return IngestionJob{
		ID:         uuid.New(),
		TenantID:   tenantID,
		EntityType: entityType,
		Status:     JobStatusPending,
		FileURL:    fileURL,
		FileName:   fileName,
		FileSize:   fileSize,
		Errors:     []RowError{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the counter invariants of a job record.
func (j IngestionJob) Validate() error {
	if j.ProcessedRows != j.SuccessRows+j.ErrorRows {
		return fmt.Errorf("processed rows %d != success %d + error %d", j.ProcessedRows, j.SuccessRows, j.ErrorRows)
	}
	if j.ProcessedRows > j.TotalRows {
		return fmt.Errorf("processed rows %d exceeds total rows %d", j.ProcessedRows, j.TotalRows)
	}
	if j.LimitedRows < 0 {
		return fmt.Errorf("limited rows %d is negative", j.LimitedRows)
	}
	return nil
}

// IsTerminal reports whether the job reached a final state.
func (j IngestionJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
