package server

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/lookup"
	"github.com/sells-group/lead-intake/internal/model"
)

func (s *Server) handleCRM(w http.ResponseWriter, r *http.Request) {
	if s.deps.CRM == nil {
		writeError(w, http.StatusServiceUnavailable, "CRM not configured")
		return
	}
	lead, ok := s.loadLead(w, r)
	if !ok {
		return
	}
	res, err := s.deps.CRM.Lookup(r.Context(), lead)
	if s.lookupFailed(w, lead.ID, err, "CRM") {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	if s.deps.Meetings == nil {
		writeError(w, http.StatusServiceUnavailable, "Meetings not configured")
		return
	}
	lead, ok := s.loadLead(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Meetings.Lookup(r.Context(), lead)
	if s.lookupFailed(w, lead.ID, err, "Meetings") {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) lookupFailed(w http.ResponseWriter, leadID string, err error, service string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, lookup.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, service+" not configured")
	default:
		zap.L().Error("lookup failed", zap.String("service", service), zap.String("lead_id", leadID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, service+" lookup failed")
	}
	return true
}

func (s *Server) handleSalespeople(w http.ResponseWriter, _ *http.Request) {
	team := s.deps.Team
	if team == nil {
		team = []config.Salesperson{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"salespeople": team})
}

func (s *Server) handleListLearning(w http.ResponseWriter, r *http.Request) {
	company := strings.TrimSpace(r.URL.Query().Get("company"))
	entries, err := s.deps.Store.ListCustomerLearning(r.Context(), company)
	if err != nil {
		zap.L().Error("list customer learning", zap.String("company", company), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch")
		return
	}
	if entries == nil {
		entries = []model.CustomerLearning{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type learningRequest struct {
	Company  string `json:"company" validate:"required"`
	Industry string `json:"industry"`
	UseCase  string `json:"use_case"`
	Insights string `json:"insights"`
	Outcome  string `json:"outcome" validate:"max=64"`
}

type learningResponse struct {
	Entry  *model.CustomerLearning `json:"entry"`
	Action string                  `json:"action"`
}

// handleSaveLearning creates the company's learning record or appends the
// new insights to the existing one.
func (s *Server) handleSaveLearning(w http.ResponseWriter, r *http.Request) {
	var req learningRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Company = strings.TrimSpace(req.Company)
	if err := s.validate.Struct(req); err != nil {
		if req.Company == "" {
			writeError(w, http.StatusBadRequest, "Company required")
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request", Message: "invalid fields: " + invalidFields(err)})
		return
	}

	entry, err := s.deps.Store.UpsertCustomerLearning(r.Context(), model.CustomerLearning{
		CompanyName: req.Company,
		Industry:    strings.TrimSpace(req.Industry),
		UseCase:     strings.TrimSpace(req.UseCase),
		Insights:    strings.TrimSpace(req.Insights),
		Outcome:     req.Outcome,
	})
	if err != nil {
		zap.L().Error("save customer learning", zap.String("company", req.Company), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save")
		return
	}
	action := "updated"
	if entry.CreatedAt.Equal(entry.UpdatedAt) {
		action = "created"
	}
	writeJSON(w, http.StatusOK, learningResponse{Entry: entry, Action: action})
}
