package server

import (
	"net/http"
	"time"

	"github.com/prismvfx/farmhand/farm"
)

const (
	// Default and max limits for job listing queries
	defaultJobLimit = 50
	maxJobLimit     = 500
)

// HandleJobs handles requests to /api/jobs
// GET: list jobs, newest first, filtered by ?status= and ?farm=
// POST: validate and submit a render job
func (s *Server) HandleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListJobs(w, r)
	case http.MethodPost:
		s.handleSubmitJob(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQueryParam(r, "limit", defaultJobLimit, 1, maxJobLimit)
	status := r.URL.Query().Get("status")
	farmFilter := r.URL.Query().Get("farm")

	jobs := s.orch.List(limit, status, farmFilter)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req farm.Request
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	s.logger.Infow("Render job submission",
		"farm", req.Farm,
		"dcc", req.DCC,
		"scene", req.Scene,
		"remote", r.RemoteAddr,
	)

	job, err := s.orch.Submit(r.Context(), req)
	if err != nil {
		handleError(w, s.logger, err, "failed to submit render job")
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// HandleJob handles requests to /api/jobs/{id}
// GET: job details including status history
// Sub-resource: POST /api/jobs/{id}/cancel
func (s *Server) HandleJob(w http.ResponseWriter, r *http.Request) {
	pathParts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		writeError(w, http.StatusBadRequest, "Missing job ID")
		return
	}
	jobID := pathParts[0]

	if len(pathParts) > 1 && pathParts[1] == "cancel" {
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.handleCancelJob(w, r, jobID)
		return
	}

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	job, ok := s.orch.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found: "+jobID)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	s.logger.Infow("Render job cancellation", "job_id", shortID(jobID), "remote", r.RemoteAddr)

	job, err := s.orch.Cancel(r.Context(), jobID)
	if err != nil {
		handleError(w, s.logger, err, "failed to cancel render job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleFarms handles requests to /api/farms
// GET: registered farms and their advertised capabilities. Farms without
// capability metadata appear with a null value.
func (s *Server) HandleFarms(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"farms": s.orch.Registry().CapabilitySnapshot(),
	})
}

// HandleAnalytics handles requests to /api/analytics
// GET: aggregate job statistics by status, farm, and submission age
func (s *Server) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Analytics(time.Now()))
}

// HandleStoreStats handles requests to /api/store/stats
// GET: persistence and retention counters
func (s *Server) HandleStoreStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.orch.StoreStats())
}
