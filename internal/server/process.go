package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/pipeline"
	"github.com/sells-group/lead-intake/pkg/slack"
)

type processRequest struct {
	LeadID      string `json:"lead_id"`
	LeadIDCamel string `json:"leadId"`
}

func (p processRequest) id() string {
	if p.LeadID != "" {
		return p.LeadID
	}
	return p.LeadIDCamel
}

// processResponse mirrors the pipeline result. Invalid leads carry reason
// and score; complete leads carry the report headline.
type processResponse struct {
	Success          bool             `json:"success"`
	Status           model.LeadStatus `json:"status"`
	LeadID           string           `json:"lead_id,omitempty"`
	ReportID         string           `json:"report_id,omitempty"`
	OpportunityScore *int             `json:"opportunity_score,omitempty"`
	RecommendedRobot string           `json:"recommended_robot,omitempty"`
	NewsCount        *int             `json:"news_count,omitempty"`
	SourceCount      *int             `json:"source_count,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	Score            *int             `json:"score,omitempty"`
}

func toProcessResponse(res *pipeline.Result) processResponse {
	if res.Status != model.LeadStatusComplete {
		return processResponse{
			Status: res.Status,
			Reason: res.Reason,
			Score:  &res.ValidationScore,
		}
	}
	return processResponse{
		Success:          true,
		Status:           res.Status,
		LeadID:           res.LeadID,
		ReportID:         res.ReportID,
		OpportunityScore: &res.OpportunityScore,
		RecommendedRobot: res.RecommendedRobot,
		NewsCount:        &res.NewsCount,
		SourceCount:      &res.SourceCount,
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.process(w, r, strings.TrimSpace(req.id()))
}

func (s *Server) handleProcessGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("lead_id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing lead_id query parameter",
			"usage": "GET /api/process?lead_id=<uuid>",
		})
		return
	}
	s.process(w, r, id)
}

// process runs the pipeline synchronously for one lead.
func (s *Server) process(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing lead_id parameter")
		return
	}

	res, err := s.deps.Pipeline.Process(r.Context(), id)
	switch {
	case errors.Is(err, pipeline.ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "Lead not found")
		return
	case err != nil:
		zap.L().Error("process lead", zap.String("lead_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "Internal processing error",
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, toProcessResponse(res))
}

// eventResponse acknowledges a Slack event.
type eventResponse struct {
	OK     bool             `json:"ok"`
	LeadID string           `json:"leadId,omitempty"`
	Status model.LeadStatus `json:"status,omitempty"`
	Result string           `json:"result,omitempty"`
}

func (s *Server) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if r.Header.Get(slack.HeaderSignature) == "" || r.Header.Get(slack.HeaderTimestamp) == "" {
		writeError(w, http.StatusBadRequest, "Missing signature or timestamp")
		return
	}
	if err := s.deps.Verifier.Verify(r.Header, body); err != nil {
		zap.L().Warn("slack: rejected event", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	env, err := slack.ParseEnvelope(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event payload")
		return
	}
	if env.Type == slack.TypeURLVerification {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": env.Challenge})
		return
	}

	out, err := s.deps.Intake.HandleEvent(r.Context(), env)
	if err != nil {
		zap.L().Error("slack: handle event", zap.String("event_id", env.EventID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{
		OK:     true,
		LeadID: out.LeadID,
		Status: out.Status,
		Result: string(out.Result),
	})
}
