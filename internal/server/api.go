package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jagjerez/maintenance-app-sub001/internal/auth"
	"github.com/jagjerez/maintenance-app-sub001/internal/domain"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"
	"github.com/jagjerez/maintenance-app-sub001/internal/scheduler"
	"github.com/jagjerez/maintenance-app-sub001/internal/status"

	"github.com/google/uuid"
)

// SchedulerControl is the slice of the scheduler exposed to the API. The
// start/stop/run endpoints exist for local operation, not production use.
type SchedulerControl interface {
	Start() error
	Stop()
	IsRunning() bool
	RunTick(ctx context.Context) (scheduler.TickSummary, error)
}

// API exposes the ingestion pipeline to the upload/UI collaborator.
type API struct {
	jobs      repository.JobRepository
	reporter  *status.Reporter
	scheduler SchedulerControl
}

// NewAPI wires the HTTP surface.
func NewAPI(jobs repository.JobRepository, reporter *status.Reporter, sched SchedulerControl) *API {
	return &API{jobs: jobs, reporter: reporter, scheduler: sched}
}

// Routes registers every endpoint on a fresh mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", a.handleSubmitJob)
	mux.HandleFunc("GET /api/jobs", a.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", a.handleGetJob)
	mux.HandleFunc("GET /api/queue/status", a.handleQueueStatus)
	mux.HandleFunc("GET /api/queue/stats", a.handleQueueStats)
	mux.HandleFunc("GET /api/queue/diagnose", a.handleDiagnose)
	mux.HandleFunc("POST /api/queue/reset-stuck", a.handleResetStuck)
	mux.HandleFunc("POST /api/scheduler/start", a.handleSchedulerStart)
	mux.HandleFunc("POST /api/scheduler/stop", a.handleSchedulerStop)
	mux.HandleFunc("POST /api/scheduler/run", a.handleSchedulerRun)
	return mux
}

type submitJobRequest struct {
	EntityType string `json:"entityType"`
	FileURL    string `json:"fileUrl"`
	FileName   string `json:"fileName"`
	FileSize   int64  `json:"fileSize"`
}

func (a *API) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenantID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	entityType, err := domain.ParseEntityType(strings.TrimSpace(req.EntityType))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FileURL) == "" {
		http.Error(w, "fileUrl is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.FileName) == "" {
		http.Error(w, "fileName is required", http.StatusBadRequest)
		return
	}

	job := domain.NewIngestionJob(tenantID, entityType, req.FileURL, req.FileName, req.FileSize)
	created, err := a.jobs.Create(r.Context(), job)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenantID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	jobs, total, err := a.jobs.List(r.Context(), tenantID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": total,
	})
}

func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	tenantID, err := auth.RequireTenantID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid job id: %v", err), http.StatusBadRequest)
		return
	}

	job, err := a.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if job.TenantID != tenantID {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (a *API) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	queueStatus, err := a.reporter.QueueStatus(r.Context(), tenantScope(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, queueStatus)
}

func (a *API) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	stats, err := a.reporter.Statistics(r.Context(), tenantScope(r), days)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	diagnosis, err := a.reporter.Diagnose(r.Context(), tenantScope(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, diagnosis)
}

func (a *API) handleResetStuck(w http.ResponseWriter, r *http.Request) {
	recovered, err := a.reporter.ResetStuck(r.Context(), tenantScope(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recovered": recovered})
}

func (a *API) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if err := a.scheduler.Start(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": a.scheduler.IsRunning()})
}

func (a *API) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	a.scheduler.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": a.scheduler.IsRunning()})
}

func (a *API) handleSchedulerRun(w http.ResponseWriter, r *http.Request) {
	summary, err := a.scheduler.RunTick(r.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrTickInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// tenantScope returns the optional tenant filter for read endpoints: scoped
// when the header is present, global otherwise.
func tenantScope(r *http.Request) *uuid.UUID {
	if id, ok := auth.TenantIDFromContext(r.Context()); ok {
		return &id
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
