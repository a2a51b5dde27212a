package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jobstream/internal/jobstream/registry"
	"jobstream/pkg/api"
	"jobstream/pkg/errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req api.StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.Command == "" && !req.Simulated {
		writeError(w, http.StatusBadRequest, "command required")
		return
	}

	job, err := s.registry.Start(r.Context(), registry.StartRequest{
		ID:        req.JobID,
		Command:   req.Command,
		Args:      req.Args,
		Dir:       req.Dir,
		Target:    req.Target,
		Simulated: req.Simulated,
	})
	if err != nil {
		switch {
		case errors.IsConflictError(err):
			writeError(w, http.StatusConflict, err.Error())
		case errors.IsValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Error("job start failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, api.StartJobResponse{
		JobID:   job.ID,
		Started: true,
		Target:  job.Target,
	})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.registry.Cancel(jobID); err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.log.Error("job cancel failed", "jobId", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, api.CancelJobResponse{JobID: jobID, OK: true})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.registry.Job(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, api.FromJob(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.registry.List()
	infos := make([]api.JobInfo, 0, len(jobs))
	for _, job := range jobs {
		infos = append(infos, api.FromJob(job))
	}
	writeJSON(w, http.StatusOK, api.ListJobsResponse{Jobs: infos})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
