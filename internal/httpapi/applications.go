package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/application"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/event"
	"github.com/cmcp0/torreai-new-screening-process-approach/internal/torre"
)

type createApplicationRequest struct {
	Username   string `json:"username"`
	JobOfferID string `json:"job_offer_id"`
}

type createApplicationResponse struct {
	ApplicationID string `json:"application_id"`
}

// handleCreateApplication is POST /api/applications: fetch the candidate and
// the offer upstream, persist the application graph, publish JobOfferApplied.
func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "username and job_offer_id are required")
		return
	}

	result, err := s.applications.CreateApplication(r.Context(), req.Username, req.JobOfferID)
	if err != nil {
		s.writeCreateError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createApplicationResponse{
		ApplicationID: result.ApplicationID.String(),
	})
}

// writeCreateError maps intake failures onto the documented status codes.
func (s *Server) writeCreateError(w http.ResponseWriter, err error) {
	var statusErr *torre.StatusError

	switch {
	case errors.Is(err, application.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "username and job_offer_id are required")
	case errors.Is(err, event.ErrBrokerUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Event broker unavailable")
	case errors.Is(err, application.ErrCandidateNotFound):
		writeError(w, http.StatusNotFound, "Candidate not found")
	case errors.Is(err, application.ErrJobOfferNotFound):
		writeError(w, http.StatusNotFound, "Job offer not found")
	case errors.As(err, &statusErr):
		if statusErr.Code >= 500 {
			writeError(w, http.StatusBadGateway, "Upstream service error")
		} else {
			writeError(w, http.StatusUnprocessableEntity, "Invalid data from upstream")
		}
	default:
		// Torre connection and timeout failures land here.
		writeError(w, http.StatusServiceUnavailable, "Upstream service unavailable")
	}
}

type analysisResponse struct {
	FitScore int      `json:"fit_score"`
	Skills   []string `json:"skills"`
	Failed   bool     `json:"failed,omitempty"`
}

// handleGetAnalysis is GET /api/applications/{id}/analysis. An unknown or
// malformed id is a 404; a known application without an analysis row yet is
// a 202 so clients keep polling.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseApplicationID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Application not found")
		return
	}

	result, err := s.analyses.GetForApplication(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Analysis lookup failed")
		return
	}
	if !result.FoundApplication {
		writeError(w, http.StatusNotFound, "Application not found")
		return
	}
	if result.Analysis == nil {
		// Pending: an empty object tells pollers to come back, the status
		// code carries the meaning.
		writeJSON(w, http.StatusAccepted, struct{}{})
		return
	}

	resp := analysisResponse{
		FitScore: result.Analysis.FitScore,
		Skills:   result.Analysis.Skills,
		Failed:   result.Analysis.Status == domain.AnalysisFailedStatus,
	}
	if resp.Skills == nil {
		resp.Skills = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}
