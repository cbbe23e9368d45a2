package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/earnboard/earnboard/internal/common"
	"github.com/earnboard/earnboard/internal/models"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	now := time.Now()
	resp := map[string]interface{}{
		"status":  "ok",
		"uptime":  now.Sub(s.app.StartupTime).Truncate(time.Second).String(),
		"version": common.GetVersion(),
	}

	statuses, err := s.app.Pipeline.Status(r.Context())
	if err != nil {
		resp["status"] = "degraded"
		resp["pipeline_error"] = err.Error()
		WriteJSON(w, http.StatusOK, resp)
		return
	}

	timeout := s.app.Config.Pipeline.GetRunTimeout()
	jobs := make(map[string]string, len(statuses))
	for _, status := range statuses {
		state := status.Status
		if status.Stuck(now, timeout) {
			state = "stuck"
			resp["status"] = "degraded"
		}
		jobs[status.Job] = state

		// Informational only: quotes older than a cycle are flagged without
		// degrading the health status.
		if status.Job == models.JobQuoteFeed && status.Status == models.RunStatusSuccess {
			resp["quotes_fresh"] = common.IsFresh(status.FinishedAt, 2*common.FreshnessQuote)
		}
	}
	resp["jobs"] = jobs

	WriteJSON(w, http.StatusOK, resp)
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleReportList handles GET /api/reports. Rows come back ordered by
// symbol; ?size_bucket= narrows to one bucket.
func (s *Server) handleReportList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	reports, err := s.app.Storage.ReportStorage().List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Report list failed")
		WriteError(w, http.StatusInternalServerError, "Failed to load reports")
		return
	}

	if bucket := r.URL.Query().Get("size_bucket"); bucket != "" {
		filtered := reports[:0]
		for _, report := range reports {
			if report.SizeBucket == bucket {
				filtered = append(filtered, report)
			}
		}
		reports = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(reports),
		"reports": reports,
	})
}

// handleReportGet handles GET /api/reports/{symbol}.
func (s *Server) handleReportGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	symbol = strings.ToUpper(strings.TrimSuffix(symbol, "/"))
	if symbol == "" || strings.Contains(symbol, "/") {
		WriteError(w, http.StatusBadRequest, "Invalid symbol")
		return
	}

	report, err := s.app.Storage.ReportStorage().Get(r.Context(), symbol)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Report not found")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// handlePipelineStatus handles GET /api/pipeline/status.
func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	statuses, err := s.app.Pipeline.Status(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Pipeline status failed")
		WriteError(w, http.StatusInternalServerError, "Failed to load pipeline status")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": statuses,
	})
}

// handlePipelineRun handles POST /api/pipeline/run. ?force=true bypasses the
// post-reset quiet window. A cycle already in flight yields 409.
func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	force := r.URL.Query().Get("force") == "true"
	status, err := s.app.Pipeline.RunCycle(r.Context(), force)
	if err != nil {
		if errors.Is(err, models.ErrRunInProgress) {
			WriteError(w, http.StatusConflict, "Pipeline run already in progress")
			return
		}
		s.logger.Error().Err(err).Msg("Pipeline run failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, status)
}
