package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/graphgen-api/internal/api/shared"
	"github.com/phrazzld/graphgen-api/internal/artifact"
	"github.com/phrazzld/graphgen-api/internal/events"
	"github.com/phrazzld/graphgen-api/internal/job"
	"github.com/phrazzld/graphgen-api/internal/platform/logger"
)

// JobService is the part of job.Manager the handlers use.
type JobService interface {
	Submit(ctx context.Context, req job.CreateRequest) (job.Job, error)
	Get(id string) (job.Job, error)
	Responses() []job.Response
	ReadLog(id string) (job.LogView, error)
	ListArtifacts(id string) ([]artifact.Artifact, error)
	ResolveArtifact(id, relPath string) (string, error)
}

// EventLister returns the recorded lifecycle events of a job.
type EventLister interface {
	ListByJob(ctx context.Context, jobID string) ([]events.JobEvent, error)
}

// JobListResponse is the body of GET /api/jobs.
type JobListResponse struct {
	Jobs []job.Response `json:"jobs"`
}

// JobArtifactsResponse is the body of GET /api/jobs/{id}/artifacts.
type JobArtifactsResponse struct {
	JobID     string              `json:"job_id"`
	Artifacts []artifact.Artifact `json:"artifacts"`
}

// JobEventsResponse is the body of GET /api/jobs/{id}/events.
type JobEventsResponse struct {
	JobID  string            `json:"job_id"`
	Events []events.JobEvent `json:"events"`
}

// JobHandler serves the job endpoints.
type JobHandler struct {
	jobs   JobService
	events EventLister
}

// NewJobHandler creates a JobHandler. eventLister may be nil when no audit
// store is configured.
func NewJobHandler(jobs JobService, eventLister EventLister) *JobHandler {
	return &JobHandler{jobs: jobs, events: eventLister}
}

// CreateJob handles POST /api/jobs.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req job.CreateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	submitted, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	subject, _ := shared.GetSubject(r.Context())
	logger.FromContext(r.Context()).Info("job submitted",
		"job_id", submitted.ID,
		"subject", subject)

	shared.RespondWithJSON(w, r, http.StatusOK, submitted.Response())
}

// ListJobs handles GET /api/jobs. Jobs are listed newest first.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, JobListResponse{Jobs: h.jobs.Responses()})
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, j.Response())
}

// GetJobLogs handles GET /api/jobs/{id}/logs.
func (h *JobHandler) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	view, err := h.jobs.ReadLog(chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// GetJobArtifacts handles GET /api/jobs/{id}/artifacts.
func (h *JobHandler) GetJobArtifacts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifacts, err := h.jobs.ListArtifacts(id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, JobArtifactsResponse{JobID: id, Artifacts: artifacts})
}

// DownloadArtifact handles GET /api/jobs/{id}/artifacts/download?path=REL.
// Any path that does not resolve to a file inside the run directory is
// reported as not found.
func (h *JobHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Query parameter 'path' is required")
		return
	}

	target, err := h.jobs.ResolveArtifact(chi.URLParam(r, "id"), rel)
	if err != nil {
		HandleAPIError(w, r, err, "Artifact not found")
		return
	}

	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			HandleAPIError(w, r, fmt.Errorf("%w: %v", job.ErrNotFound, err), "Artifact not found")
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	name := filepath.Base(target)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// ListJobEvents handles GET /api/jobs/{id}/events. The route is only
// registered when an event lister is configured.
func (h *JobHandler) ListJobEvents(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	recorded, err := h.events.ListByJob(r.Context(), j.ID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, JobEventsResponse{JobID: j.ID, Events: recorded})
}
