package report

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/pkg/anthropic"
)

const (
	reportMaxTokens   = 4096
	reportTemperature = 0.4
	defaultConfidence = 75
)

// Report generation paths, as recorded by metrics.
const (
	PathLLM      = "llm"
	PathFallback = "fallback"
)

// Output is a built report with its citations.
type Output struct {
	Report   *model.Report
	Sources  []model.Source
	Fallback bool
}

// Path names how the report was generated.
func (o *Output) Path() string {
	if o.Fallback {
		return PathFallback
	}
	return PathLLM
}

// Builder turns a lead and its research into a report.
type Builder struct {
	llm       anthropic.Client
	model     string
	catalog   *Catalog
	reference string
}

// Option configures a Builder.
type Option func(*Builder)

// WithCatalog replaces the default product catalog.
func WithCatalog(c *Catalog) Option {
	return func(b *Builder) {
		if c != nil {
			b.catalog = c
		}
	}
}

// WithReference embeds product documentation in the system prompt in place
// of the catalog summary.
func WithReference(ref string) Option {
	return func(b *Builder) { b.reference = ref }
}

// NewBuilder creates a Builder. A nil llm always takes the fallback path.
func NewBuilder(llm anthropic.Client, model string, opts ...Option) *Builder {
	b := &Builder{llm: llm, model: model, catalog: DefaultCatalog()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Catalog returns the catalog the builder recommends from.
func (b *Builder) Catalog() *Catalog { return b.catalog }

// Build generates the report. LLM failures fall back to the rule-based
// report; only context cancellation is returned as an error.
func (b *Builder) Build(ctx context.Context, lead *model.Lead, res *model.ResearchResult) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "report: build")
	}
	out := &Output{Sources: Sources(lead, res)}

	if b.llm != nil {
		rpt, err := b.generate(ctx, lead, res)
		if err == nil {
			out.Report = rpt
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, eris.Wrap(ctxErr, "report: build")
		}
		zap.L().Warn("report: llm generation failed, using fallback",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}

	out.Report = b.fallback(lead, res)
	out.Fallback = true
	return out, nil
}

// llmReport mirrors the JSON contract in the system prompt. Lists and
// free-text fields stay raw so any shape the model emits can be folded.
type llmReport struct {
	CompanySummary           string          `json:"company_summary"`
	UseCaseAnalysis          string          `json:"use_case_analysis"`
	RecentNews               json.RawMessage `json:"recent_news"`
	AdditionalOpportunities  json.RawMessage `json:"additional_opportunities"`
	RecommendedRobot         string          `json:"recommended_robot"`
	RecommendationRationale  string          `json:"recommendation_rationale"`
	RecommendationConfidence flexInt         `json:"recommendation_confidence"`
	OpportunityScore         flexInt         `json:"opportunity_score"`
	TalkingPoints            json.RawMessage `json:"talking_points"`
	ROIAngles                json.RawMessage `json:"roi_angles"`
	RiskFactors              json.RawMessage `json:"risk_factors"`
	CompetitorContext        string          `json:"competitor_context"`
}

func (b *Builder) generate(ctx context.Context, lead *model.Lead, res *model.ResearchResult) (*model.Report, error) {
	resp, err := b.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       b.model,
		MaxTokens:   reportMaxTokens,
		Temperature: anthropic.Float(reportTemperature),
		System:      anthropic.CachedSystem(b.systemPrompt()),
		Messages:    []anthropic.Message{{Role: "user", Content: userPrompt(lead, res)}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: generate")
	}
	resp.Usage.Log(b.model, "report")

	var r llmReport
	if err := anthropic.DecodeJSON(resp, &r); err != nil {
		return nil, eris.Wrap(err, "report: decode")
	}
	if strings.TrimSpace(r.CompanySummary) == "" {
		return nil, eris.New("report: response missing company_summary")
	}

	robot, ok := b.catalog.Lookup(r.RecommendedRobot)
	if !ok {
		if r.RecommendedRobot != "" {
			zap.L().Debug("report: model recommended unknown robot",
				zap.String("lead_id", lead.ID),
				zap.String("robot", r.RecommendedRobot),
			)
		}
		robot = b.catalog.Recommend(lead.UseCase)
	}

	confidence := int(r.RecommendationConfidence)
	if confidence == 0 {
		confidence = defaultConfidence
	}
	score := int(r.OpportunityScore)
	if score == 0 {
		score = FallbackScore(lead)
	}

	return &model.Report{
		LeadID:                   lead.ID,
		CompanySummary:           strings.TrimSpace(r.CompanySummary),
		UseCaseAnalysis:          strings.TrimSpace(r.UseCaseAnalysis),
		RecentNews:               rawText(r.RecentNews),
		RecommendedRobot:         robot.Name,
		RecommendationRationale:  strings.TrimSpace(r.RecommendationRationale),
		RecommendationConfidence: model.ClampScore(confidence),
		OpportunityScore:         model.ClampScore(score),
		TalkingPoints:            model.DecodeTextList(r.TalkingPoints),
		ROIAngles:                model.DecodeTextList(r.ROIAngles),
		RiskFactors:              model.DecodeTextList(r.RiskFactors),
		AdditionalOpportunities:  model.DecodeTextList(r.AdditionalOpportunities),
		CompetitorContext:        strings.TrimSpace(r.CompetitorContext),
	}, nil
}

// rawText returns a JSON string's value, or the compact JSON text of any
// other value. null yields "".
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// flexInt decodes a JSON number or numeric string, rounding fractions.
// Anything else decodes as zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(math.Round(v))
	return nil
}
