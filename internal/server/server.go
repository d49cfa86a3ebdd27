// Package server exposes the intake HTTP API: the Slack Events webhook, the
// pipeline trigger, and the lead, assignment and lookup endpoints behind
// the sales console.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/intake"
	"github.com/sells-group/lead-intake/internal/lookup"
	"github.com/sells-group/lead-intake/internal/metrics"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/pipeline"
	"github.com/sells-group/lead-intake/internal/store"
	"github.com/sells-group/lead-intake/pkg/slack"
)

// maxBodyBytes caps request bodies, including Slack event payloads.
const maxBodyBytes = 1 << 20

// Store is the persistence the API reads and writes directly.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, upd store.StatusUpdate) (*model.Lead, error)
	AssignLead(ctx context.Context, id string, a model.Assignment) (*model.Lead, error)
	UnassignLead(ctx context.Context, id string) (*model.Lead, error)
	UpdatePipelineStage(ctx context.Context, id, stage string) (*model.Lead, error)
	GetReport(ctx context.Context, leadID string) (*model.Report, error)
	ListSources(ctx context.Context, leadID string) ([]model.Source, error)
	ListCustomerLearning(ctx context.Context, company string) ([]model.CustomerLearning, error)
	UpsertCustomerLearning(ctx context.Context, cl model.CustomerLearning) (*model.CustomerLearning, error)
	Ping(ctx context.Context) error
}

// Pipeline runs and resets lead processing.
type Pipeline interface {
	Process(ctx context.Context, leadID string) (*pipeline.Result, error)
	Reprocess(ctx context.Context, leadID string, q pipeline.Enqueuer) (*model.Lead, error)
}

// Intake turns Slack events into leads.
type Intake interface {
	HandleEvent(ctx context.Context, env *slack.Envelope) (*intake.Outcome, error)
}

// CRMLookup serves the CRM panel.
type CRMLookup interface {
	Lookup(ctx context.Context, lead *model.Lead) (*lookup.CRMResult, error)
}

// MeetingsLookup serves the meetings panel.
type MeetingsLookup interface {
	Lookup(ctx context.Context, lead *model.Lead) (*lookup.MeetingsResult, error)
}

// Deps are the collaborators behind the API. Queue, CRM, Meetings and
// Metrics may be nil.
type Deps struct {
	Store          Store
	Pipeline       Pipeline
	Queue          pipeline.Enqueuer
	Intake         Intake
	Verifier       *slack.Verifier
	CRM            CRMLookup
	Meetings       MeetingsLookup
	Team           []config.Salesperson
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// Server is the HTTP API.
type Server struct {
	deps     Deps
	validate *validator.Validate
	router   chi.Router
}

// New creates a Server and builds its routes.
func New(deps Deps) *Server {
	s := &Server{deps: deps, validate: newValidator()}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/slack/events", s.handleSlackEvents)

		r.Post("/process", s.handleProcess)
		r.Get("/process", s.handleProcessGet)

		r.Get("/leads", s.handleListLeads)
		r.Route("/leads/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetLead)
			r.Patch("/status", s.handleStatus)
			r.Post("/assign", s.handleAssign)
			r.Patch("/assign", s.handleStage)
			r.Delete("/assign", s.handleUnassign)
			r.Post("/reprocess", s.handleReprocess)
			r.Get("/crm", s.handleCRM)
			r.Get("/meetings", s.handleMeetings)
		})

		r.Get("/salespeople", s.handleSalespeople)
		r.Get("/customer-learning", s.handleListLearning)
		r.Post("/customer-learning", s.handleSaveLearning)
	})
	return r
}

// Run serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// observe logs and records metrics for every request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.deps.Metrics.RecordHTTP(r.Method, route, status, elapsed)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return eris.Wrap(err, "decode request body")
	}
	return nil
}

// loadLead fetches the {id} lead, writing a 404 or 500 on failure.
func (s *Server) loadLead(w http.ResponseWriter, r *http.Request) (*model.Lead, bool) {
	id := chi.URLParam(r, "id")
	lead, err := s.deps.Store.GetLead(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Lead not found")
		return nil, false
	case err != nil:
		zap.L().Error("load lead", zap.String("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load lead")
		return nil, false
	}
	return lead, true
}
