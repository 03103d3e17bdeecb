package status

import (
	"context"
	"testing"
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

// stubJobRepo serves canned job records for the read-side queries.
type stubJobRepo struct {
	jobs []domain.IngestionJob
}

func (r *stubJobRepo) matches(job domain.IngestionJob, tenantID *uuid.UUID) bool {
	return tenantID == nil || job.TenantID == *tenantID
}

func (r *stubJobRepo) Create(_ context.Context, job domain.IngestionJob) (domain.IngestionJob, error) {
	r.jobs = append(r.jobs, job)
	return job, nil
}

func (r *stubJobRepo) GetByID(_ context.Context, id uuid.UUID) (domain.IngestionJob, error) {
	for _, job := range r.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return domain.IngestionJob{}, repository.ErrJobNotFound
}

func (r *stubJobRepo) List(_ context.Context, tenantID uuid.UUID, _, _ int) ([]domain.IngestionJob, int, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		if job.TenantID == tenantID {
			out = append(out, job)
		}
	}
	return out, len(out), nil
}

func (r *stubJobRepo) ListPending(_ context.Context, limit int) ([]domain.IngestionJob, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusPending {
			out = append(out, job)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubJobRepo) Claim(_ context.Context, _ uuid.UUID) (bool, error) { return false, nil }

func (r *stubJobRepo) UpdateProgress(_ context.Context, _ domain.IngestionJob) error { return nil }

func (r *stubJobRepo) MarkCompleted(_ context.Context, _ domain.IngestionJob) error { return nil }

func (r *stubJobRepo) MarkFailed(_ context.Context, _ uuid.UUID, _ string) error { return nil }

func (r *stubJobRepo) CountByStatus(_ context.Context, tenantID *uuid.UUID) (map[domain.JobStatus]int64, error) {
	counts := make(map[domain.JobStatus]int64)
	for _, job := range r.jobs {
		if r.matches(job, tenantID) {
			counts[job.Status]++
		}
	}
	return counts, nil
}

func (r *stubJobRepo) OldestPending(_ context.Context, tenantID *uuid.UUID) (*domain.IngestionJob, error) {
	var oldest *domain.IngestionJob
	for i := range r.jobs {
		job := r.jobs[i]
		if job.Status != domain.JobStatusPending || !r.matches(job, tenantID) {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			copied := job
			oldest = &copied
		}
	}
	return oldest, nil
}

func (r *stubJobRepo) ListWindow(_ context.Context, tenantID *uuid.UUID, since time.Time) ([]domain.IngestionJob, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		if r.matches(job, tenantID) && !job.CreatedAt.Before(since) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (r *stubJobRepo) ListStuck(_ context.Context, tenantID *uuid.UUID, olderThan time.Time) ([]domain.IngestionJob, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusProcessing && r.matches(job, tenantID) && job.UpdatedAt.Before(olderThan) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (r *stubJobRepo) ListRecent(_ context.Context, tenantID *uuid.UUID, limit int) ([]domain.IngestionJob, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		if r.matches(job, tenantID) {
			out = append(out, job)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubJobRepo) ResetStuck(_ context.Context, tenantID *uuid.UUID, olderThan time.Time) (int64, error) {
	var recovered int64
	for i := range r.jobs {
		job := r.jobs[i]
		if job.Status == domain.JobStatusProcessing && r.matches(job, tenantID) && job.UpdatedAt.Before(olderThan) {
			r.jobs[i].Status = domain.JobStatusPending
			recovered++
		}
	}
	return recovered, nil
}

func jobAt(tenantID uuid.UUID, status domain.JobStatus, createdAt time.Time) domain.IngestionJob {
	job := domain.NewIngestionJob(tenantID, domain.EntityTypeLocations, "https://files.example.com/f.csv", "f.csv", 0)
	job.Status = status
	job.CreatedAt = createdAt
	job.UpdatedAt = createdAt
	return job
}

func TestQueueStatus(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	older := jobAt(tenantID, domain.JobStatusPending, now.Add(-2*time.Hour))
	newer := jobAt(tenantID, domain.JobStatusPending, now.Add(-1*time.Hour))
	done := jobAt(tenantID, domain.JobStatusCompleted, now.Add(-3*time.Hour))
	repo := &stubJobRepo{jobs: []domain.IngestionJob{newer, older, done}}

	reporter := NewReporter(repo, 15*time.Minute)
	queueStatus, err := reporter.QueueStatus(context.Background(), &tenantID)
	if err != nil {
		t.Fatalf("queue status returned error: %v", err)
	}

	if queueStatus.Counts[domain.JobStatusPending] != 2 || queueStatus.Counts[domain.JobStatusCompleted] != 1 {
		t.Fatalf("unexpected counts: %+v", queueStatus.Counts)
	}
	if queueStatus.NextJob == nil || queueStatus.NextJob.ID != older.ID {
		t.Fatalf("next job should be the oldest pending, got %+v", queueStatus.NextJob)
	}
}

func TestStatisticsAggregation(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	completedA := jobAt(tenantID, domain.JobStatusCompleted, now.Add(-1*time.Hour))
	doneA := completedA.CreatedAt.Add(30 * time.Second)
	completedA.CompletedAt = &doneA

	completedB := jobAt(tenantID, domain.JobStatusCompleted, now.Add(-2*time.Hour))
	completedB.EntityType = domain.EntityTypeMachines
	doneB := completedB.CreatedAt.Add(90 * time.Second)
	completedB.CompletedAt = &doneB

	failed := jobAt(tenantID, domain.JobStatusFailed, now.Add(-3*time.Hour))
	pending := jobAt(tenantID, domain.JobStatusPending, now.Add(-4*time.Hour))
	outsideWindow := jobAt(tenantID, domain.JobStatusCompleted, now.AddDate(0, 0, -30))

	repo := &stubJobRepo{jobs: []domain.IngestionJob{completedA, completedB, failed, pending, outsideWindow}}
	reporter := NewReporter(repo, 15*time.Minute)

	stats, err := reporter.Statistics(context.Background(), &tenantID, 7)
	if err != nil {
		t.Fatalf("statistics returned error: %v", err)
	}

	if stats.TotalJobs != 4 {
		t.Fatalf("expected 4 jobs inside the window, got %d", stats.TotalJobs)
	}
	if stats.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %f", stats.SuccessRate)
	}
	// Mean of 30s and 90s over completed jobs only.
	if stats.AvgProcessingSeconds != 60 {
		t.Fatalf("expected avg processing 60s, got %f", stats.AvgProcessingSeconds)
	}
	if stats.ByEntityType[domain.EntityTypeLocations] != 3 || stats.ByEntityType[domain.EntityTypeMachines] != 1 {
		t.Fatalf("unexpected entity type histogram: %+v", stats.ByEntityType)
	}
	if stats.ByStatus[domain.JobStatusCompleted] != 2 || stats.ByStatus[domain.JobStatusFailed] != 1 || stats.ByStatus[domain.JobStatusPending] != 1 {
		t.Fatalf("unexpected status histogram: %+v", stats.ByStatus)
	}
}

func TestStatisticsEmptyWindow(t *testing.T) {
	reporter := NewReporter(&stubJobRepo{}, 15*time.Minute)

	stats, err := reporter.Statistics(context.Background(), nil, 7)
	if err != nil {
		t.Fatalf("statistics returned error: %v", err)
	}
	if stats.TotalJobs != 0 || stats.SuccessRate != 0 || stats.AvgProcessingSeconds != 0 {
		t.Fatalf("unexpected stats for empty window: %+v", stats)
	}
}

func TestDiagnoseReportsStuckJobs(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	stuck := jobAt(tenantID, domain.JobStatusProcessing, now.Add(-45*time.Minute))
	fresh := jobAt(tenantID, domain.JobStatusProcessing, now.Add(-5*time.Minute))
	repo := &stubJobRepo{jobs: []domain.IngestionJob{stuck, fresh}}

	reporter := NewReporter(repo, 15*time.Minute)
	diagnosis, err := reporter.Diagnose(context.Background(), &tenantID)
	if err != nil {
		t.Fatalf("diagnose returned error: %v", err)
	}

	if len(diagnosis.StuckJobs) != 1 {
		t.Fatalf("expected 1 stuck job, got %d", len(diagnosis.StuckJobs))
	}
	if diagnosis.StuckJobs[0].Job.ID != stuck.ID {
		t.Fatalf("wrong job flagged as stuck: %+v", diagnosis.StuckJobs[0])
	}
	if minutes := diagnosis.StuckJobs[0].StuckMinutes; minutes < 44 || minutes > 46 {
		t.Fatalf("expected roughly 45 stuck minutes, got %d", minutes)
	}
	if diagnosis.Counts[domain.JobStatusProcessing] != 2 {
		t.Fatalf("unexpected counts: %+v", diagnosis.Counts)
	}
}

func TestResetStuckRecoversJobs(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()

	stuck := jobAt(tenantID, domain.JobStatusProcessing, now.Add(-45*time.Minute))
	fresh := jobAt(tenantID, domain.JobStatusProcessing, now.Add(-5*time.Minute))
	repo := &stubJobRepo{jobs: []domain.IngestionJob{stuck, fresh}}

	reporter := NewReporter(repo, 15*time.Minute)
	recovered, err := reporter.ResetStuck(context.Background(), &tenantID)
	if err != nil {
		t.Fatalf("reset returned error: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected 1 recovered job, got %d", recovered)
	}

	pending, _ := repo.ListPending(context.Background(), 10)
	if len(pending) != 1 || pending[0].ID != stuck.ID {
		t.Fatalf("stuck job not back in pending: %+v", pending)
	}
}
