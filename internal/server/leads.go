package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/pipeline"
	"github.com/sells-group/lead-intake/internal/store"
)

type leadResponse struct {
	Success bool        `json:"success,omitempty"`
	Lead    *model.Lead `json:"lead"`
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{
		Status:          model.LeadStatus(q.Get("status")),
		PipelineStage:   q.Get("stage"),
		AssignedToEmail: q.Get("assigned_to"),
		Search:          strings.TrimSpace(q.Get("search")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	leads, err := s.deps.Store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("list leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list leads")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, ok := s.loadLead(w, r)
	if !ok {
		return
	}
	detail := model.LeadDetail{Lead: lead, Sources: []model.Source{}}

	rpt, err := s.deps.Store.GetReport(r.Context(), lead.ID)
	switch {
	case err == nil:
		detail.Report = rpt
	case !errors.Is(err, store.ErrNotFound):
		zap.L().Error("get report", zap.String("lead_id", lead.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load report")
		return
	}

	sources, err := s.deps.Store.ListSources(r.Context(), lead.ID)
	if err != nil {
		zap.L().Error("list sources", zap.String("lead_id", lead.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load sources")
		return
	}
	if sources != nil {
		detail.Sources = sources
	}
	writeJSON(w, http.StatusOK, detail)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,lead_status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		names := make([]string, 0, 5)
		for _, st := range model.AllLeadStatuses() {
			names = append(names, string(st))
		}
		writeError(w, http.StatusBadRequest, "Invalid status. Must be one of: "+strings.Join(names, ", "))
		return
	}

	id := chi.URLParam(r, "id")
	lead, err := s.deps.Store.UpdateLeadStatus(r.Context(), id, store.StatusUpdate{Status: model.LeadStatus(req.Status)})
	if s.leadWriteFailed(w, id, err, "Failed to update lead status") {
		return
	}
	writeJSON(w, http.StatusOK, leadResponse{Success: true, Lead: lead})
}

type assignRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	SlackID       string `json:"slack_id"`
	PipelineStage string `json:"pipeline_stage" validate:"omitempty,pipeline_stage"`
}

// handleAssign assigns a salesperson. Without an explicit stage, a lead
// still in the unassigned column moves to new; otherwise its stage is kept.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "name and email are required",
			Message: "invalid fields: " + invalidFields(err),
		})
		return
	}

	lead, ok := s.loadLead(w, r)
	if !ok {
		return
	}
	stage := req.PipelineStage
	if stage == "" {
		stage = lead.PipelineStage
		if stage == "" || stage == model.StageUnassigned {
			stage = model.StageNew
		}
	}

	updated, err := s.deps.Store.AssignLead(r.Context(), lead.ID, model.Assignment{
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.TrimSpace(req.Email),
		SlackID:       strings.TrimSpace(req.SlackID),
		PipelineStage: stage,
		AssignedAt:    time.Now().UTC(),
	})
	if s.leadWriteFailed(w, lead.ID, err, "Failed to assign") {
		return
	}
	writeJSON(w, http.StatusOK, leadResponse{Lead: updated})
}

type stageRequest struct {
	PipelineStage string `json:"pipeline_stage" validate:"required,pipeline_stage"`
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "pipeline_stage required",
			Message: "must be one of: " + strings.Join(model.PipelineStages(), ", "),
		})
		return
	}

	id := chi.URLParam(r, "id")
	lead, err := s.deps.Store.UpdatePipelineStage(r.Context(), id, req.PipelineStage)
	if s.leadWriteFailed(w, id, err, "Failed to update stage") {
		return
	}
	writeJSON(w, http.StatusOK, leadResponse{Lead: lead})
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := s.deps.Store.UnassignLead(r.Context(), id)
	if s.leadWriteFailed(w, id, err, "Failed to unassign") {
		return
	}
	writeJSON(w, http.StatusOK, leadResponse{Lead: lead})
}

// leadWriteFailed writes the error response for a failed lead update and
// reports whether it did.
func (s *Server) leadWriteFailed(w http.ResponseWriter, id string, err error, msg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Lead not found")
	default:
		zap.L().Error(strings.ToLower(msg), zap.String("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, msg)
	}
	return true
}

type reprocessResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	LeadID   string `json:"lead_id"`
	Enqueued bool   `json:"enqueued"`
}

// handleReprocess clears the lead's report and sources, resets it to
// pending and schedules it. A failed enqueue leaves the lead pending.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := s.deps.Pipeline.Reprocess(r.Context(), id, s.deps.Queue)
	switch {
	case errors.Is(err, pipeline.ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	case err != nil && lead == nil:
		zap.L().Error("reprocess lead", zap.String("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reprocess lead")
		return
	case err != nil:
		zap.L().Warn("reprocess: enqueue failed, lead left pending", zap.String("lead_id", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, reprocessResponse{
		Success:  true,
		Message:  "Reprocessing started for " + lead.Company,
		LeadID:   id,
		Enqueued: err == nil && s.deps.Queue != nil,
	})
}
