// Package store persists leads, reports, sources and customer learning.
// Every write is a single statement; callers tolerate partial failure by
// reprocessing, which deletes and regenerates a lead's report and sources.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sells-group/lead-intake/internal/model"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key (slack timestamp, report
	// per lead) is already taken.
	ErrDuplicate = errors.New("store: duplicate")
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status          model.LeadStatus `json:"status,omitempty"`
	PipelineStage   string           `json:"pipeline_stage,omitempty"`
	AssignedToEmail string           `json:"assigned_to_email,omitempty"`
	Search          string           `json:"search,omitempty"`
	Limit           int              `json:"limit,omitempty"`
	Offset          int              `json:"offset,omitempty"`
}

// DefaultListLimit caps ListLeads when the filter sets no limit.
const DefaultListLimit = 100

func (f LeadFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// StatusUpdate changes a lead's status. A nil ValidationErrors leaves the
// column untouched; a pointer to "" clears it.
type StatusUpdate struct {
	Status           model.LeadStatus
	ValidationErrors *string
}

// Note returns a pointer to s for StatusUpdate.ValidationErrors.
func Note(s string) *string { return &s }

// Store defines the persistence interface for the intake pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	FindLeadBySlackTimestamp(ctx context.Context, ts string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, upd StatusUpdate) (*model.Lead, error)

	// Pipeline board
	AssignLead(ctx context.Context, id string, a model.Assignment) (*model.Lead, error)
	UnassignLead(ctx context.Context, id string) (*model.Lead, error)
	UpdatePipelineStage(ctx context.Context, id, stage string) (*model.Lead, error)

	// Reports and sources
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, leadID string) (*model.Report, error)
	DeleteReport(ctx context.Context, leadID string) error
	AddSources(ctx context.Context, sources []model.Source) error
	ListSources(ctx context.Context, leadID string) ([]model.Source, error)
	DeleteSources(ctx context.Context, leadID string) error

	// Customer learning
	ListCustomerLearning(ctx context.Context, company string) ([]model.CustomerLearning, error)
	UpsertCustomerLearning(ctx context.Context, cl model.CustomerLearning) (*model.CustomerLearning, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// leadColumns is the shared column list for lead selects and RETURNING.
const leadColumns = `id, company, contact_name, job_title, phone, email, state, country,
	website, industry, company_size, use_case, timeline, lead_source, lead_score,
	tell_us_more, raw_message, status, validation_errors, slack_event_id,
	slack_timestamp, slack_channel, assigned_to_name, assigned_to_email,
	assigned_to_slack_id, assigned_at, pipeline_stage, created_at, updated_at`

const reportColumns = `id, lead_id, company_summary, use_case_analysis, recent_news,
	recommended_robot, recommendation_rationale, recommendation_confidence,
	opportunity_score, talking_points, roi_angles, risk_factors,
	additional_opportunities, competitor_context, created_at`

const sourceColumns = `id, lead_id, title, url, description, created_at`

const learningColumns = `id, company_name, industry, use_case, insights, outcome, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var (
		l                                      model.Lead
		validationErrors, eventID, slackTS     *string
		channel, assignedName, assignedEmail   *string
		assignedSlack                          *string
		assignedAt                             *time.Time
		status                                 string
	)
	err := row.Scan(
		&l.ID, &l.Company, &l.ContactName, &l.JobTitle, &l.Phone, &l.Email, &l.State, &l.Country,
		&l.Website, &l.Industry, &l.CompanySize, &l.UseCase, &l.Timeline, &l.LeadSource, &l.LeadScore,
		&l.TellUsMore, &l.RawMessage, &status, &validationErrors, &eventID,
		&slackTS, &channel, &assignedName, &assignedEmail,
		&assignedSlack, &assignedAt, &l.PipelineStage, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	l.ValidationErrors = deref(validationErrors)
	l.SlackEventID = deref(eventID)
	l.SlackTimestamp = deref(slackTS)
	l.SlackChannel = deref(channel)
	l.AssignedToName = deref(assignedName)
	l.AssignedToEmail = deref(assignedEmail)
	l.AssignedToSlackID = deref(assignedSlack)
	l.AssignedAt = assignedAt
	return &l, nil
}

func scanReport(row scannable) (*model.Report, error) {
	var r model.Report
	err := row.Scan(
		&r.ID, &r.LeadID, &r.CompanySummary, &r.UseCaseAnalysis, &r.RecentNews,
		&r.RecommendedRobot, &r.RecommendationRationale, &r.RecommendationConfidence,
		&r.OpportunityScore, &r.TalkingPoints, &r.ROIAngles, &r.RiskFactors,
		&r.AdditionalOpportunities, &r.CompetitorContext, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanSource(row scannable) (model.Source, error) {
	var (
		s    model.Source
		desc *string
	)
	if err := row.Scan(&s.ID, &s.LeadID, &s.Title, &s.URL, &desc, &s.CreatedAt); err != nil {
		return s, err
	}
	s.Description = deref(desc)
	return s, nil
}

func scanLearning(row scannable) (*model.CustomerLearning, error) {
	var cl model.CustomerLearning
	err := row.Scan(&cl.ID, &cl.CompanyName, &cl.Industry, &cl.UseCase, &cl.Insights, &cl.Outcome, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

// nullable maps "" to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// likePattern builds a case-insensitive substring pattern, escaping LIKE
// wildcards with backslash.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

// learningKey is the case-insensitive uniqueness key for customer learning.
func learningKey(company string) string {
	return strings.ToLower(strings.TrimSpace(company))
}
