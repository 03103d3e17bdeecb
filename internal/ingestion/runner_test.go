package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"

	"github.com/google/uuid"
)

// stubJobRepo is an in-memory JobRepository covering what the runner touches.
type stubJobRepo struct {
	jobs        map[uuid.UUID]domain.IngestionJob
	checkpoints int
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: make(map[uuid.UUID]domain.IngestionJob)}
}

func (r *stubJobRepo) add(job domain.IngestionJob) domain.IngestionJob {
	r.jobs[job.ID] = job
	return job
}

func (r *stubJobRepo) Create(_ context.Context, job domain.IngestionJob) (domain.IngestionJob, error) {
	return r.add(job), nil
}

func (r *stubJobRepo) GetByID(_ context.Context, id uuid.UUID) (domain.IngestionJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return domain.IngestionJob{}, repository.ErrJobNotFound
	}
	return job, nil
}

func (r *stubJobRepo) List(_ context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.IngestionJob, int, error) {
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

func (r *stubJobRepo) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	job, ok := r.jobs[id]
	if !ok || job.Status != domain.JobStatusPending {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	r.jobs[id] = job
	return true, nil
}

func (r *stubJobRepo) UpdateProgress(_ context.Context, job domain.IngestionJob) error {
	r.checkpoints++
	r.jobs[job.ID] = job
	return nil
}

func (r *stubJobRepo) MarkCompleted(_ context.Context, job domain.IngestionJob) error {
	job.Status = domain.JobStatusCompleted
	now := time.Now()
	job.CompletedAt = &now
	r.jobs[job.ID] = job
	return nil
}

func (r *stubJobRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	job.Status = domain.JobStatusFailed
	job.FailureReason = reason
	now := time.Now()
	job.CompletedAt = &now
	r.jobs[id] = job
	return nil
}

func (r *stubJobRepo) CountByStatus(_ context.Context, _ *uuid.UUID) (map[domain.JobStatus]int64, error) {
	counts := make(map[domain.JobStatus]int64)
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func (r *stubJobRepo) OldestPending(_ context.Context, _ *uuid.UUID) (*domain.IngestionJob, error) {
	var oldest *domain.IngestionJob
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			copied := job
			oldest = &copied
		}
	}
	return oldest, nil
}

func (r *stubJobRepo) ListWindow(_ context.Context, _ *uuid.UUID, since time.Time) ([]domain.IngestionJob, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		if !job.CreatedAt.Before(since) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (r *stubJobRepo) ListStuck(_ context.Context, _ *uuid.UUID, olderThan time.Time) ([]domain.IngestionJob, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusProcessing && job.UpdatedAt.Before(olderThan) {
			out = append(out, job)
		}
	}
	return out, nil
}

func (r *stubJobRepo) ListRecent(_ context.Context, _ *uuid.UUID, limit int) ([]domain.IngestionJob, error) {
	var out []domain.IngestionJob
	for _, job := range r.jobs {
		out = append(out, job)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubJobRepo) ResetStuck(_ context.Context, _ *uuid.UUID, olderThan time.Time) (int64, error) {
	var recovered int64
	for id, job := range r.jobs {
		if job.Status == domain.JobStatusProcessing && job.UpdatedAt.Before(olderThan) {
			job.Status = domain.JobStatusPending
			r.jobs[id] = job
			recovered++
		}
	}
	return recovered, nil
}

// stubBlobStore serves fixed payloads by URL.
type stubBlobStore struct {
	files map[string][]byte
	err   error
}

func (s *stubBlobStore) Fetch(_ context.Context, url string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	payload, ok := s.files[url]
	if !ok {
		return nil, fmt.Errorf("no such file %s", url)
	}
	return payload, nil
}

func locationsCSV(rows int, badRows map[int]bool) []byte {
	var b strings.Builder
	b.WriteString("internalCode,name\n")
	for i := 1; i <= rows; i++ {
		if badRows[i] {
			b.WriteString(fmt.Sprintf("LOC-%d,\n", i))
		} else {
			b.WriteString(fmt.Sprintf("LOC-%d,Location %d\n", i, i))
		}
	}
	return []byte(b.String())
}

func newTestRunner(jobs *stubJobRepo, blobs *stubBlobStore, opts RunnerOptions) *Runner {
	return NewRunner(jobs, blobs, NewProcessorSet(newStubEntityRepo()), opts)
}

func TestRunnerCompletesJob(t *testing.T) {
	jobs := newStubJobRepo()
	blobs := &stubBlobStore{files: map[string][]byte{
		"https://files.example.com/locations.csv": locationsCSV(8, nil),
	}}
	runner := newTestRunner(jobs, blobs, RunnerOptions{MaxRowsPerRun: 100, CheckpointEvery: 10})

	job := jobs.add(domain.NewIngestionJob(uuid.New(), domain.EntityTypeLocations, "https://files.example.com/locations.csv", "locations.csv", 0))

	result, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if result.Status != domain.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if result.TotalRows != 8 || result.ProcessedRows != 8 || result.SuccessRows != 8 || result.ErrorRows != 0 || result.LimitedRows != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("counter invariants violated: %v", err)
	}

	stored, _ := jobs.GetByID(context.Background(), job.ID)
	if stored.Status != domain.JobStatusCompleted || stored.CompletedAt == nil {
		t.Fatalf("job not finalized in store: %+v", stored)
	}
}

func TestRunnerCapsRowsAndRecordsRowErrors(t *testing.T) {
	jobs := newStubJobRepo()
	blobs := &stubBlobStore{files: map[string][]byte{
		"https://files.example.com/big.csv": locationsCSV(150, map[int]bool{3: true, 40: true, 77: true}),
	}}
	runner := newTestRunner(jobs, blobs, RunnerOptions{MaxRowsPerRun: 100, CheckpointEvery: 10})

	job := jobs.add(domain.NewIngestionJob(uuid.New(), domain.EntityTypeLocations, "https://files.example.com/big.csv", "big.csv", 0))

	result, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if result.Status != domain.JobStatusCompleted {
		t.Fatalf("partial failure must still complete, got %s", result.Status)
	}
	if result.TotalRows != 150 || result.LimitedRows != 50 || result.ProcessedRows != 100 {
		t.Fatalf("unexpected cap accounting: %+v", result)
	}
	if result.ErrorRows != 3 || result.SuccessRows != 97 {
		t.Fatalf("unexpected row outcome counters: %+v", result)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 row errors, got %d", len(result.Errors))
	}
	if result.Errors[0].Row != 3 || result.Errors[0].Field != "name" {
		t.Fatalf("unexpected first row error: %+v", result.Errors[0])
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("counter invariants violated: %v", err)
	}
}

func TestRunnerCheckpointsProgress(t *testing.T) {
	jobs := newStubJobRepo()
	blobs := &stubBlobStore{files: map[string][]byte{
		"https://files.example.com/locations.csv": locationsCSV(25, nil),
	}}
	runner := newTestRunner(jobs, blobs, RunnerOptions{MaxRowsPerRun: 100, CheckpointEvery: 10})

	job := jobs.add(domain.NewIngestionJob(uuid.New(), domain.EntityTypeLocations, "https://files.example.com/locations.csv", "locations.csv", 0))

	if _, err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	// 25 rows with a checkpoint every 10 persists progress at rows 10 and 20.
	if jobs.checkpoints != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", jobs.checkpoints)
	}
}

func TestRunnerFailsJobOnFetchError(t *testing.T) {
	jobs := newStubJobRepo()
	blobs := &stubBlobStore{err: errors.New("connection refused")}
	runner := newTestRunner(jobs, blobs, RunnerOptions{})

	job := jobs.add(domain.NewIngestionJob(uuid.New(), domain.EntityTypeLocations, "https://files.example.com/gone.csv", "gone.csv", 0))

	result, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("fatal job failure is not a runner error: %v", err)
	}
	if result.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if !strings.Contains(result.FailureReason, "failed to fetch file") {
		t.Fatalf("unexpected failure reason: %q", result.FailureReason)
	}
}

func TestRunnerFailsJobOnUnsupportedFormat(t *testing.T) {
	jobs := newStubJobRepo()
	blobs := &stubBlobStore{files: map[string][]byte{
		"https://files.example.com/report.pdf": []byte("%PDF-1.4"),
	}}
	runner := newTestRunner(jobs, blobs, RunnerOptions{})

	job := jobs.add(domain.NewIngestionJob(uuid.New(), domain.EntityTypeLocations, "https://files.example.com/report.pdf", "report.pdf", 0))

	result, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("fatal job failure is not a runner error: %v", err)
	}
	if result.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if !strings.Contains(result.FailureReason, "failed to parse file") {
		t.Fatalf("unexpected failure reason: %q", result.FailureReason)
	}
}

func TestRunnerSkipsAlreadyClaimedJob(t *testing.T) {
	jobs := newStubJobRepo()
	runner := newTestRunner(jobs, &stubBlobStore{}, RunnerOptions{})

	job := domain.NewIngestionJob(uuid.New(), domain.EntityTypeLocations, "https://files.example.com/locations.csv", "locations.csv", 0)
	job.Status = domain.JobStatusProcessing
	jobs.add(job)

	if _, err := runner.Run(context.Background(), job); !errors.Is(err, ErrJobClaimed) {
		t.Fatalf("expected ErrJobClaimed, got %v", err)
	}
}

func TestRunnerCompletesEmptyFile(t *testing.T) {
	jobs := newStubJobRepo()
	blobs := &stubBlobStore{files: map[string][]byte{
		"https://files.example.com/empty.csv": []byte(""),
	}}
	runner := newTestRunner(jobs, blobs, RunnerOptions{})

	job := jobs.add(domain.NewIngestionJob(uuid.New(), domain.EntityTypeLocations, "https://files.example.com/empty.csv", "empty.csv", 0))

	result, err := runner.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if result.Status != domain.JobStatusCompleted || result.TotalRows != 0 || result.ProcessedRows != 0 {
		t.Fatalf("empty file should complete with zero counters: %+v", result)
	}
}
