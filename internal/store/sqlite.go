package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-intake/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                   TEXT PRIMARY KEY,
	company              TEXT NOT NULL DEFAULT '',
	contact_name         TEXT NOT NULL DEFAULT '',
	job_title            TEXT NOT NULL DEFAULT '',
	phone                TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL DEFAULT '',
	country              TEXT NOT NULL DEFAULT '',
	website              TEXT NOT NULL DEFAULT '',
	industry             TEXT NOT NULL DEFAULT '',
	company_size         TEXT NOT NULL DEFAULT '',
	use_case             TEXT NOT NULL DEFAULT '',
	timeline             TEXT NOT NULL DEFAULT '',
	lead_source          TEXT NOT NULL DEFAULT '',
	lead_score           INTEGER NOT NULL DEFAULT 0,
	tell_us_more         TEXT NOT NULL DEFAULT '',
	raw_message          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	validation_errors    TEXT,
	slack_event_id       TEXT,
	slack_timestamp      TEXT UNIQUE,
	slack_channel        TEXT,
	assigned_to_name     TEXT,
	assigned_to_email    TEXT,
	assigned_to_slack_id TEXT,
	assigned_at          DATETIME,
	pipeline_stage       TEXT NOT NULL DEFAULT 'unassigned',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_pipeline_stage ON leads(pipeline_stage);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);

CREATE TABLE IF NOT EXISTS reports (
	id                        TEXT PRIMARY KEY,
	lead_id                   TEXT NOT NULL UNIQUE REFERENCES leads(id) ON DELETE CASCADE,
	company_summary           TEXT NOT NULL DEFAULT '',
	use_case_analysis         TEXT NOT NULL DEFAULT '',
	recent_news               TEXT NOT NULL DEFAULT '',
	recommended_robot         TEXT NOT NULL DEFAULT '',
	recommendation_rationale  TEXT NOT NULL DEFAULT '',
	recommendation_confidence INTEGER NOT NULL DEFAULT 0,
	opportunity_score         INTEGER NOT NULL DEFAULT 0,
	talking_points            TEXT NOT NULL DEFAULT '[]',
	roi_angles                TEXT NOT NULL DEFAULT '[]',
	risk_factors              TEXT NOT NULL DEFAULT '[]',
	additional_opportunities  TEXT NOT NULL DEFAULT '[]',
	competitor_context        TEXT NOT NULL DEFAULT '',
	created_at                DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sources (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	title       TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	description TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sources_lead_id ON sources(lead_id);

CREATE TABLE IF NOT EXISTS customer_learning (
	id           TEXT PRIMARY KEY,
	company_key  TEXT NOT NULL UNIQUE,
	company_name TEXT NOT NULL,
	industry     TEXT NOT NULL DEFAULT '',
	use_case     TEXT NOT NULL DEFAULT '',
	insights     TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// liteErr maps driver errors onto the package sentinels.
func liteErr(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrapf(ErrDuplicate, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusPending
	}
	if lead.PipelineStage == "" {
		lead.PipelineStage = model.StageUnassigned
	}
	now := time.Now().UTC()
	lead.CreatedAt, lead.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, company, contact_name, job_title, phone, email, state, country,
			website, industry, company_size, use_case, timeline, lead_source, lead_score,
			tell_us_more, raw_message, status, validation_errors, slack_event_id,
			slack_timestamp, slack_channel, pipeline_stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Company, lead.ContactName, lead.JobTitle, lead.Phone, lead.Email, lead.State, lead.Country,
		lead.Website, lead.Industry, lead.CompanySize, lead.UseCase, lead.Timeline, lead.LeadSource, lead.LeadScore,
		lead.TellUsMore, lead.RawMessage, string(lead.Status), nullable(lead.ValidationErrors), nullable(lead.SlackEventID),
		nullable(lead.SlackTimestamp), nullable(lead.SlackChannel), lead.PipelineStage, now, now,
	)
	if err != nil {
		return liteErr(err, "sqlite: insert lead %s", lead.ID)
	}
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id))
	if err != nil {
		return nil, liteErr(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) FindLeadBySlackTimestamp(ctx context.Context, ts string) (*model.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE slack_timestamp = ?`, ts))
	if err != nil {
		return nil, liteErr(err, "sqlite: find lead by slack ts %s", ts)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.PipelineStage != "" {
		query += ` AND pipeline_stage = ?`
		args = append(args, filter.PipelineStage)
	}
	if filter.AssignedToEmail != "" {
		query += ` AND lower(assigned_to_email) = lower(?)`
		args = append(args, filter.AssignedToEmail)
	}
	if filter.Search != "" {
		query += ` AND (lower(company) LIKE ? ESCAPE '\' OR lower(contact_name) LIKE ? ESCAPE '\' OR lower(email) LIKE ? ESCAPE '\')`
		p := likePattern(filter.Search)
		args = append(args, p, p, p)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, id string, upd StatusUpdate) (*model.Lead, error) {
	var row *sql.Row
	now := time.Now().UTC()
	if upd.ValidationErrors == nil {
		row = s.db.QueryRowContext(ctx,
			`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? RETURNING `+leadColumns,
			string(upd.Status), now, id,
		)
	} else {
		row = s.db.QueryRowContext(ctx,
			`UPDATE leads SET status = ?, validation_errors = ?, updated_at = ? WHERE id = ? RETURNING `+leadColumns,
			string(upd.Status), nullable(*upd.ValidationErrors), now, id,
		)
	}
	lead, err := scanLead(row)
	if err != nil {
		return nil, liteErr(err, "sqlite: update lead status %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) AssignLead(ctx context.Context, id string, a model.Assignment) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE leads SET assigned_to_name = ?, assigned_to_email = ?, assigned_to_slack_id = ?,
			assigned_at = ?, pipeline_stage = ?, updated_at = ?
		WHERE id = ? RETURNING `+leadColumns,
		a.Name, a.Email, nullable(a.SlackID), a.AssignedAt.UTC(), a.PipelineStage, time.Now().UTC(), id,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, liteErr(err, "sqlite: assign lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) UnassignLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE leads SET assigned_to_name = NULL, assigned_to_email = NULL, assigned_to_slack_id = NULL,
			assigned_at = NULL, pipeline_stage = ?, updated_at = ?
		WHERE id = ? RETURNING `+leadColumns,
		model.StageUnassigned, time.Now().UTC(), id,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, liteErr(err, "sqlite: unassign lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) UpdatePipelineStage(ctx context.Context, id, stage string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE leads SET pipeline_stage = ?, updated_at = ? WHERE id = ? RETURNING `+leadColumns,
		stage, time.Now().UTC(), id,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, liteErr(err, "sqlite: update pipeline stage %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.LeadID, r.CompanySummary, r.UseCaseAnalysis, r.RecentNews,
		r.RecommendedRobot, r.RecommendationRationale, r.RecommendationConfidence,
		r.OpportunityScore, r.TalkingPoints, r.ROIAngles, r.RiskFactors,
		r.AdditionalOpportunities, r.CompetitorContext, r.CreatedAt,
	)
	if err != nil {
		return liteErr(err, "sqlite: insert report for lead %s", r.LeadID)
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, leadID string) (*model.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE lead_id = ?`, leadID))
	if err != nil {
		return nil, liteErr(err, "sqlite: get report for lead %s", leadID)
	}
	return r, nil
}

func (s *SQLiteStore) DeleteReport(ctx context.Context, leadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE lead_id = ?`, leadID)
	return eris.Wrapf(err, "sqlite: delete report for lead %s", leadID)
}

// AddSources inserts all sources with one multi-row statement.
func (s *SQLiteStore) AddSources(ctx context.Context, sources []model.Source) error {
	if len(sources) == 0 {
		return nil
	}
	now := time.Now().UTC()
	var (
		b    strings.Builder
		args = make([]any, 0, len(sources)*6)
	)
	b.WriteString(`INSERT INTO sources (id, lead_id, title, url, description, created_at) VALUES `)
	for i := range sources {
		if sources[i].ID == "" {
			sources[i].ID = uuid.New().String()
		}
		sources[i].CreatedAt = now
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?)")
		src := sources[i]
		args = append(args, src.ID, src.LeadID, src.Title, src.URL, nullable(src.Description), now)
	}
	_, err := s.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return liteErr(err, "sqlite: add sources")
	}
	return nil
}

func (s *SQLiteStore) ListSources(ctx context.Context, leadID string) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE lead_id = ? ORDER BY created_at, rowid`, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list sources for lead %s", leadID)
	}
	defer rows.Close() //nolint:errcheck

	sources := []model.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

func (s *SQLiteStore) DeleteSources(ctx context.Context, leadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE lead_id = ?`, leadID)
	return eris.Wrapf(err, "sqlite: delete sources for lead %s", leadID)
}

func (s *SQLiteStore) ListCustomerLearning(ctx context.Context, company string) ([]model.CustomerLearning, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+learningColumns+` FROM customer_learning
		WHERE company_key LIKE ? ESCAPE '\' ORDER BY updated_at DESC`,
		likePattern(company),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list customer learning")
	}
	defer rows.Close() //nolint:errcheck

	entries := []model.CustomerLearning{}
	for rows.Next() {
		cl, err := scanLearning(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan customer learning")
		}
		entries = append(entries, *cl)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list customer learning iterate")
}

// UpsertCustomerLearning mirrors the postgres upsert: insights are appended
// to an existing record for the same company.
func (s *SQLiteStore) UpsertCustomerLearning(ctx context.Context, cl model.CustomerLearning) (*model.CustomerLearning, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO customer_learning (id, company_key, company_name, industry, use_case, insights, outcome, created_at, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?8)
		ON CONFLICT (company_key) DO UPDATE SET
			insights = CASE
				WHEN excluded.insights = '' THEN customer_learning.insights
				WHEN customer_learning.insights = '' THEN excluded.insights
				ELSE customer_learning.insights || ?9 || excluded.insights END,
			industry = COALESCE(NULLIF(excluded.industry, ''), customer_learning.industry),
			use_case = COALESCE(NULLIF(excluded.use_case, ''), customer_learning.use_case),
			outcome = COALESCE(NULLIF(excluded.outcome, ''), customer_learning.outcome),
			updated_at = excluded.updated_at
		RETURNING `+learningColumns,
		uuid.New().String(), learningKey(cl.CompanyName), cl.CompanyName, cl.Industry, cl.UseCase,
		cl.Insights, cl.Outcome, now, model.InsightSeparator,
	)
	out, err := scanLearning(row)
	if err != nil {
		return nil, liteErr(err, "sqlite: upsert customer learning %s", cl.CompanyName)
	}
	return out, nil
}
