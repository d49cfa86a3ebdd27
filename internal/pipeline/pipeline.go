// Package pipeline drives a persisted lead through validation, research and
// report generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/metrics"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/report"
	"github.com/sells-group/lead-intake/internal/research"
	"github.com/sells-group/lead-intake/internal/resilience"
	"github.com/sells-group/lead-intake/internal/store"
	"github.com/sells-group/lead-intake/internal/validate"
)

// ErrLeadNotFound is returned when the lead id does not exist. It is never
// retried.
var ErrLeadNotFound = errors.New("pipeline: lead not found")

// Store is the persistence the pipeline needs.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, upd store.StatusUpdate) (*model.Lead, error)
	CreateReport(ctx context.Context, r *model.Report) error
	DeleteReport(ctx context.Context, leadID string) error
	AddSources(ctx context.Context, sources []model.Source) error
	DeleteSources(ctx context.Context, leadID string) error
}

// Researcher gathers public information about a company.
type Researcher interface {
	Research(ctx context.Context, name, website string) (*model.ResearchResult, error)
}

// ReportBuilder turns a lead and its research into a report.
type ReportBuilder interface {
	Build(ctx context.Context, lead *model.Lead, res *model.ResearchResult) (*report.Output, error)
}

// Refiner re-scores a borderline validation result.
type Refiner interface {
	Refine(ctx context.Context, lead *model.Lead, base validate.Result) validate.Result
}

// Notifier announces a completed lead.
type Notifier interface {
	LeadProcessed(ctx context.Context, lead *model.Lead, rpt *model.Report) error
}

// Enqueuer schedules a lead for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, leadID string) error
}

// Thresholds are the validation gates applied before research.
type Thresholds struct {
	// HardFloor rejects a lead before any semantic check.
	HardFloor int
	// BorderlineLow and BorderlineHigh bound the half-open band [low, high)
	// that gets a semantic second opinion.
	BorderlineLow  int
	BorderlineHigh int
	// AdmitFloor rejects an invalid lead after the semantic check.
	AdmitFloor int
}

// DefaultThresholds returns the production gates: 40, [40,70), 50.
func DefaultThresholds() Thresholds {
	return Thresholds{HardFloor: 40, BorderlineLow: 40, BorderlineHigh: 70, AdmitFloor: 50}
}

// Borderline reports whether score falls in the semantic band.
func (t Thresholds) Borderline(score int) bool {
	return score >= t.BorderlineLow && score < t.BorderlineHigh
}

// Result summarizes one pipeline run.
type Result struct {
	LeadID           string           `json:"lead_id"`
	Status           model.LeadStatus `json:"status"`
	ReportID         string           `json:"report_id,omitempty"`
	OpportunityScore int              `json:"opportunity_score,omitempty"`
	RecommendedRobot string           `json:"recommended_robot,omitempty"`
	NewsCount        int              `json:"news_count"`
	SourceCount      int              `json:"source_count"`
	ValidationScore  int              `json:"score"`
	Reason           string           `json:"reason,omitempty"`
	Fallback         bool             `json:"fallback,omitempty"`
}

// Pipeline orchestrates validation, research and report generation for a
// single lead per call. Runs for different leads share no state.
type Pipeline struct {
	store      Store
	rules      validate.Rules
	semantic   Refiner
	research   Researcher
	reports    ReportBuilder
	notifier   Notifier
	metrics    *metrics.Metrics
	thresholds Thresholds
	retry      resilience.RetryConfig
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSemantic enables the semantic pass for borderline scores.
func WithSemantic(r Refiner) Option {
	return func(p *Pipeline) { p.semantic = r }
}

// WithNotifier announces completed leads.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithMetrics records outcomes and stage durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithThresholds overrides the validation gates.
func WithThresholds(t Thresholds) Option {
	return func(p *Pipeline) { p.thresholds = t }
}

// WithRetry overrides the retry policy for the research and report stages.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *Pipeline) { p.retry = cfg }
}

// WithConfig applies the validation and retry settings from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(p *Pipeline) {
		v := cfg.Validation
		p.thresholds = Thresholds{
			HardFloor:      v.HardFloor,
			BorderlineLow:  v.BorderlineLow,
			BorderlineHigh: v.BorderlineHigh,
			AdmitFloor:     v.AdmitFloor,
		}
		p.rules = validate.Rules{ValidScore: v.ValidScore}
		p.retry.MaxAttempts = cfg.Pipeline.RetryAttempts
		p.retry.InitialBackoff = time.Duration(cfg.Pipeline.RetryBackoffMs) * time.Millisecond
	}
}

// New creates a Pipeline. The semantic pass, notifier and metrics are off
// unless enabled by options.
func New(st Store, researcher Researcher, builder ReportBuilder, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      st,
		rules:      validate.Rules{ValidScore: validate.DefaultValidScore},
		research:   researcher,
		reports:    builder,
		thresholds: DefaultThresholds(),
		retry:      resilience.StageRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the pipeline for one lead. A missing lead returns
// ErrLeadNotFound untouched. Any other failure resets the lead to pending
// with a diagnostic note so it can be retried.
func (p *Pipeline) Process(ctx context.Context, leadID string) (*Result, error) {
	lead, err := p.store.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrLeadNotFound, "pipeline: lead %s", leadID)
		}
		return nil, eris.Wrapf(err, "pipeline: get lead %s", leadID)
	}

	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("company", lead.Company))
	log.Info("pipeline: processing lead", zap.String("status", string(lead.Status)))

	start := time.Now()
	res, err := p.run(ctx, lead, log)
	p.metrics.ObserveStage("total", start)
	if err != nil {
		log.Error("pipeline: processing failed", zap.Error(err))
		p.markRetryable(ctx, lead.ID, err, log)
		p.metrics.RecordOutcome("error")
		return nil, err
	}

	log.Info("pipeline: lead processed",
		zap.String("status", string(res.Status)),
		zap.Int("score", res.ValidationScore),
		zap.Int("opportunity_score", res.OpportunityScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	p.metrics.RecordOutcome(string(res.Status))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, lead *model.Lead, log *zap.Logger) (*Result, error) {
	if err := p.setStatus(ctx, lead, model.LeadStatusValidating, nil); err != nil {
		return nil, err
	}

	v, admitted := p.validate(ctx, lead, log)
	if !admitted {
		return p.reject(ctx, lead, v)
	}

	if err := p.setStatus(ctx, lead, model.LeadStatusResearching, nil); err != nil {
		return nil, err
	}

	stageStart := time.Now()
	found, err := resilience.DoVal(ctx, p.retryFor("research", lead.ID), func(ctx context.Context) (*model.ResearchResult, error) {
		return p.research.Research(ctx, lead.Company, lead.Website)
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: research")
	}
	p.metrics.ObserveStage("research", stageStart)
	log.Debug("pipeline: research done", zap.String("summary", research.Summary(found)))

	stageStart = time.Now()
	out, err := resilience.DoVal(ctx, p.retryFor("report", lead.ID), func(ctx context.Context) (*report.Output, error) {
		return p.reports.Build(ctx, lead, found)
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build report")
	}
	p.metrics.ObserveStage("report", stageStart)
	p.metrics.RecordReportPath(out.Path())

	if err := p.persist(ctx, lead.ID, out); err != nil {
		return nil, err
	}

	if err := p.setStatus(ctx, lead, model.LeadStatusComplete, store.Note("")); err != nil {
		return nil, err
	}

	p.notify(ctx, lead, out.Report, log)

	return &Result{
		LeadID:           lead.ID,
		Status:           model.LeadStatusComplete,
		ReportID:         out.Report.ID,
		OpportunityScore: out.Report.OpportunityScore,
		RecommendedRobot: out.Report.RecommendedRobot,
		NewsCount:        len(found.News),
		SourceCount:      len(out.Sources),
		ValidationScore:  v.Score,
		Reason:           v.Reason,
		Fallback:         out.Fallback,
	}, nil
}

// validate applies the two-tier gate. The deterministic score must clear
// the hard floor; disqualified leads stop there too. A borderline score
// then gets the semantic pass, and an invalid result must still clear the
// admit floor.
func (p *Pipeline) validate(ctx context.Context, lead *model.Lead, log *zap.Logger) (validate.Result, bool) {
	start := time.Now()
	defer p.metrics.ObserveStage("validate", start)

	v := p.rules.Validate(lead)
	if v.Disqualified || v.Score < p.thresholds.HardFloor {
		return v, false
	}
	if p.semantic != nil && p.thresholds.Borderline(v.Score) {
		refined := p.semantic.Refine(ctx, lead, v)
		log.Debug("pipeline: semantic validation",
			zap.Int("rule_score", v.Score),
			zap.Int("semantic_score", refined.Score),
			zap.Bool("valid", refined.IsValid),
		)
		v = refined
	}
	return v, v.IsValid || v.Score >= p.thresholds.AdmitFloor
}

func (p *Pipeline) reject(ctx context.Context, lead *model.Lead, v validate.Result) (*Result, error) {
	if err := p.setStatus(ctx, lead, model.LeadStatusInvalid, store.Note(v.Reason)); err != nil {
		return nil, err
	}
	return &Result{
		LeadID:          lead.ID,
		Status:          model.LeadStatusInvalid,
		ValidationScore: v.Score,
		Reason:          v.Reason,
	}, nil
}

// persist replaces any earlier report and sources for the lead. Each write
// is its own statement; a failure part way leaves state that reprocessing
// clears.
func (p *Pipeline) persist(ctx context.Context, leadID string, out *report.Output) error {
	if err := p.store.DeleteSources(ctx, leadID); err != nil {
		return eris.Wrap(err, "pipeline: clear sources")
	}
	if err := p.store.DeleteReport(ctx, leadID); err != nil {
		return eris.Wrap(err, "pipeline: clear report")
	}
	out.Report.LeadID = leadID
	if err := p.store.CreateReport(ctx, out.Report); err != nil {
		return eris.Wrap(err, "pipeline: save report")
	}
	if len(out.Sources) == 0 {
		return nil
	}
	for i := range out.Sources {
		out.Sources[i].LeadID = leadID
	}
	if err := p.store.AddSources(ctx, out.Sources); err != nil {
		return eris.Wrap(err, "pipeline: save sources")
	}
	return nil
}

func (p *Pipeline) setStatus(ctx context.Context, lead *model.Lead, to model.LeadStatus, note *string) error {
	if !model.CanTransition(lead.Status, to) {
		zap.L().Debug("pipeline: out of sequence status change",
			zap.String("lead_id", lead.ID),
			zap.String("from", string(lead.Status)),
			zap.String("to", string(to)),
		)
	}
	updated, err := p.store.UpdateLeadStatus(ctx, lead.ID, store.StatusUpdate{Status: to, ValidationErrors: note})
	if err != nil {
		return eris.Wrapf(err, "pipeline: set status %s", to)
	}
	if updated != nil {
		*lead = *updated
	} else {
		lead.Status = to
	}
	return nil
}

// markRetryable writes the lead back to pending with the failure. The write
// outlives a canceled request context; its own failure is only logged.
func (p *Pipeline) markRetryable(ctx context.Context, leadID string, cause error, log *zap.Logger) {
	note := FailureNote(cause)
	_, err := p.store.UpdateLeadStatus(context.WithoutCancel(ctx), leadID, store.StatusUpdate{
		Status:           model.LeadStatusPending,
		ValidationErrors: &note,
	})
	if err != nil {
		log.Error("pipeline: could not reset lead to pending", zap.Error(err))
	}
}

// FailureNote is the diagnostic stored on a lead whose run failed.
func FailureNote(err error) string {
	return fmt.Sprintf("Processing failed: %s. Will retry.", err.Error())
}

func (p *Pipeline) notify(ctx context.Context, lead *model.Lead, rpt *model.Report, log *zap.Logger) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.LeadProcessed(ctx, lead, rpt); err != nil {
		log.Warn("pipeline: notification failed", zap.Error(err))
	}
}

func (p *Pipeline) retryFor(stage, leadID string) resilience.RetryConfig {
	cfg := p.retry
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = resilience.RetryUnlessPermanent
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(stage, leadID)
	}
	return cfg
}

// Reprocess clears a lead's report and sources, resets it to pending and
// schedules a fresh run. q may be nil to only reset.
func (p *Pipeline) Reprocess(ctx context.Context, leadID string, q Enqueuer) (*model.Lead, error) {
	if _, err := p.store.GetLead(ctx, leadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrLeadNotFound, "pipeline: lead %s", leadID)
		}
		return nil, eris.Wrapf(err, "pipeline: get lead %s", leadID)
	}
	if err := p.store.DeleteSources(ctx, leadID); err != nil {
		return nil, eris.Wrap(err, "pipeline: reprocess: delete sources")
	}
	if err := p.store.DeleteReport(ctx, leadID); err != nil {
		return nil, eris.Wrap(err, "pipeline: reprocess: delete report")
	}
	lead, err := p.store.UpdateLeadStatus(ctx, leadID, store.StatusUpdate{
		Status:           model.LeadStatusPending,
		ValidationErrors: store.Note(""),
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reprocess: reset status")
	}
	if q != nil {
		if err := q.Enqueue(ctx, leadID); err != nil {
			return lead, eris.Wrap(err, "pipeline: reprocess: enqueue")
		}
	}
	zap.L().Info("pipeline: lead queued for reprocessing",
		zap.String("lead_id", leadID),
		zap.String("company", lead.Company),
	)
	return lead, nil
}
