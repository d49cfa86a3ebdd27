package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/db"
	"github.com/sells-group/lead-intake/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection. These
// are the per-lead reads issued on every pipeline run and dashboard view.
var preparedStatements = map[string]string{
	"get_lead":     `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`,
	"get_report":   `SELECT ` + reportColumns + ` FROM reports WHERE lead_id = $1`,
	"list_sources": `SELECT ` + sourceColumns + ` FROM sources WHERE lead_id = $1 ORDER BY created_at, id`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	assigned_at          TIMESTAMPTZ,
	pipeline_stage       TEXT NOT NULL DEFAULT 'unassigned',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_pipeline_stage ON leads(pipeline_stage);
CREATE INDEX IF NOT EXISTS idx_leads_assigned_email ON leads(assigned_to_email);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);

CREATE TABLE IF NOT EXISTS reports (
	id                        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sources (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id     TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	title       TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL,
	description TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sources_lead_id ON sources(lead_id);

CREATE TABLE IF NOT EXISTS customer_learning (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_key  TEXT NOT NULL UNIQUE,
	company_name TEXT NOT NULL,
	industry     TEXT NOT NULL DEFAULT '',
	use_case     TEXT NOT NULL DEFAULT '',
	insights     TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// pgErr maps driver errors onto the package sentinels.
func pgErr(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == "23505" {
		return eris.Wrapf(ErrDuplicate, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, company, contact_name, job_title, phone, email, state, country,
			website, industry, company_size, use_case, timeline, lead_source, lead_score,
			tell_us_more, raw_message, status, validation_errors, slack_event_id,
			slack_timestamp, slack_channel, pipeline_stage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		lead.ID, lead.Company, lead.ContactName, lead.JobTitle, lead.Phone, lead.Email, lead.State, lead.Country,
		lead.Website, lead.Industry, lead.CompanySize, lead.UseCase, lead.Timeline, lead.LeadSource, lead.LeadScore,
		lead.TellUsMore, lead.RawMessage, string(lead.Status), nullable(lead.ValidationErrors), nullable(lead.SlackEventID),
		nullable(lead.SlackTimestamp), nullable(lead.SlackChannel), lead.PipelineStage, now, now,
	)
	if err != nil {
		return pgErr(err, "postgres: insert lead %s", lead.ID)
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		return nil, pgErr(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) FindLeadBySlackTimestamp(ctx context.Context, ts string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE slack_timestamp = $1`, ts)
	lead, err := scanLead(row)
	if err != nil {
		return nil, pgErr(err, "postgres: find lead by slack ts %s", ts)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.PipelineStage != "" {
		query += fmt.Sprintf(` AND pipeline_stage = $%d`, argIdx)
		args = append(args, filter.PipelineStage)
		argIdx++
	}
	if filter.AssignedToEmail != "" {
		query += fmt.Sprintf(` AND lower(assigned_to_email) = lower($%d)`, argIdx)
		args = append(args, filter.AssignedToEmail)
		argIdx++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(` AND (lower(company) LIKE $%d OR lower(contact_name) LIKE $%d OR lower(email) LIKE $%d)`, argIdx, argIdx, argIdx)
		args = append(args, likePattern(filter.Search))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id string, upd StatusUpdate) (*model.Lead, error) {
	var row pgx.Row
	now := time.Now().UTC()
	if upd.ValidationErrors == nil {
		row = s.pool.QueryRow(ctx,
			`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3 RETURNING `+leadColumns,
			string(upd.Status), now, id,
		)
	} else {
		row = s.pool.QueryRow(ctx,
			`UPDATE leads SET status = $1, validation_errors = $2, updated_at = $3 WHERE id = $4 RETURNING `+leadColumns,
			string(upd.Status), nullable(*upd.ValidationErrors), now, id,
		)
	}
	lead, err := scanLead(row)
	if err != nil {
		return nil, pgErr(err, "postgres: update lead status %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) AssignLead(ctx context.Context, id string, a model.Assignment) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE leads SET assigned_to_name = $1, assigned_to_email = $2, assigned_to_slack_id = $3,
			assigned_at = $4, pipeline_stage = $5, updated_at = $6
		WHERE id = $7 RETURNING `+leadColumns,
		a.Name, a.Email, nullable(a.SlackID), a.AssignedAt.UTC(), a.PipelineStage, time.Now().UTC(), id,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, pgErr(err, "postgres: assign lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) UnassignLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE leads SET assigned_to_name = NULL, assigned_to_email = NULL, assigned_to_slack_id = NULL,
			assigned_at = NULL, pipeline_stage = $1, updated_at = $2
		WHERE id = $3 RETURNING `+leadColumns,
		model.StageUnassigned, time.Now().UTC(), id,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, pgErr(err, "postgres: unassign lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) UpdatePipelineStage(ctx context.Context, id, stage string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE leads SET pipeline_stage = $1, updated_at = $2 WHERE id = $3 RETURNING `+leadColumns,
		stage, time.Now().UTC(), id,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, pgErr(err, "postgres: update pipeline stage %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.LeadID, r.CompanySummary, r.UseCaseAnalysis, r.RecentNews,
		r.RecommendedRobot, r.RecommendationRationale, r.RecommendationConfidence,
		r.OpportunityScore, r.TalkingPoints.String(), r.ROIAngles.String(), r.RiskFactors.String(),
		r.AdditionalOpportunities.String(), r.CompetitorContext, r.CreatedAt,
	)
	if err != nil {
		return pgErr(err, "postgres: insert report for lead %s", r.LeadID)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, leadID string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE lead_id = $1`, leadID)
	r, err := scanReport(row)
	if err != nil {
		return nil, pgErr(err, "postgres: get report for lead %s", leadID)
	}
	return r, nil
}

func (s *PostgresStore) DeleteReport(ctx context.Context, leadID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE lead_id = $1`, leadID)
	return eris.Wrapf(err, "postgres: delete report for lead %s", leadID)
}

// AddSources bulk-loads sources with COPY.
func (s *PostgresStore) AddSources(ctx context.Context, sources []model.Source) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(sources))
	for i := range sources {
		if sources[i].ID == "" {
			sources[i].ID = uuid.New().String()
		}
		sources[i].CreatedAt = now
		src := sources[i]
		rows = append(rows, []any{src.ID, src.LeadID, src.Title, src.URL, nullable(src.Description), now})
	}
	_, err := db.CopyRows(ctx, s.pool, "sources",
		[]string{"id", "lead_id", "title", "url", "description", "created_at"}, rows)
	return eris.Wrap(err, "postgres: add sources")
}

func (s *PostgresStore) ListSources(ctx context.Context, leadID string) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE lead_id = $1 ORDER BY created_at, id`, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list sources for lead %s", leadID)
	}
	defer rows.Close()

	sources := []model.Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

func (s *PostgresStore) DeleteSources(ctx context.Context, leadID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sources WHERE lead_id = $1`, leadID)
	return eris.Wrapf(err, "postgres: delete sources for lead %s", leadID)
}

func (s *PostgresStore) ListCustomerLearning(ctx context.Context, company string) ([]model.CustomerLearning, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+learningColumns+` FROM customer_learning
		WHERE company_key LIKE $1 ORDER BY updated_at DESC`,
		likePattern(company),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list customer learning")
	}
	defer rows.Close()

	entries := []model.CustomerLearning{}
	for rows.Next() {
		cl, err := scanLearning(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan customer learning")
		}
		entries = append(entries, *cl)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list customer learning iterate")
}

// UpsertCustomerLearning inserts a learning record or appends insights to the
// existing record for the same company. Blank fields on update keep the
// stored value.
func (s *PostgresStore) UpsertCustomerLearning(ctx context.Context, cl model.CustomerLearning) (*model.CustomerLearning, error) {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO customer_learning (id, company_key, company_name, industry, use_case, insights, outcome, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (company_key) DO UPDATE SET
			insights = CASE
				WHEN EXCLUDED.insights = '' THEN customer_learning.insights
				WHEN customer_learning.insights = '' THEN EXCLUDED.insights
				ELSE customer_learning.insights || $9 || EXCLUDED.insights END,
			industry = COALESCE(NULLIF(EXCLUDED.industry, ''), customer_learning.industry),
			use_case = COALESCE(NULLIF(EXCLUDED.use_case, ''), customer_learning.use_case),
			outcome = COALESCE(NULLIF(EXCLUDED.outcome, ''), customer_learning.outcome),
			updated_at = EXCLUDED.updated_at
		RETURNING `+learningColumns,
		uuid.New().String(), learningKey(cl.CompanyName), cl.CompanyName, cl.Industry, cl.UseCase,
		cl.Insights, cl.Outcome, now, model.InsightSeparator,
	)
	out, err := scanLearning(row)
	if err != nil {
		return nil, pgErr(err, "postgres: upsert customer learning %s", cl.CompanyName)
	}
	return out, nil
}
