package validate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/pkg/anthropic"
)

const (
	semanticMaxTokens   = 256
	semanticTemperature = 0.2
)

// Semantic re-scores leads with an LLM.
type Semantic struct {
	llm       anthropic.Client
	model     string
	reference string
}

// NewSemantic creates a semantic validator. reference is optional product
// documentation embedded in the system prompt.
func NewSemantic(llm anthropic.Client, model, reference string) *Semantic {
	return &Semantic{llm: llm, model: model, reference: reference}
}

// LoadReference reads the product reference file. A missing or unset path
// yields an empty reference.
func LoadReference(path string) string {
	if path == "" {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		zap.L().Warn("validate: product reference unavailable", zap.String("path", path), zap.Error(err))
		return ""
	}
	return string(b)
}

type semanticReply struct {
	IsValid *bool   `json:"isValid"`
	Reason  *string `json:"reason"`
	Score   *int    `json:"score"`
}

// Refine asks the LLM to judge lead. Any request or decode failure returns
// base unchanged.
func (s *Semantic) Refine(ctx context.Context, lead *model.Lead, base Result) Result {
	if s == nil || s.llm == nil {
		return base
	}
	res, err := s.ask(ctx, lead)
	if err != nil {
		zap.L().Warn("validate: semantic validation failed, keeping rule result",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
		return base
	}
	return res
}

func (s *Semantic) ask(ctx context.Context, lead *model.Lead) (Result, error) {
	resp, err := s.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   semanticMaxTokens,
		Temperature: anthropic.Float(semanticTemperature),
		System:      anthropic.CachedSystem(s.systemPrompt()),
		Messages:    []anthropic.Message{{Role: "user", Content: LeadSummary(lead)}},
	})
	if err != nil {
		return Result{}, eris.Wrap(err, "validate: semantic request")
	}
	resp.Usage.Log(s.model, "semantic_validation")

	var reply semanticReply
	if err := anthropic.DecodeJSON(resp, &reply); err != nil {
		return Result{}, err
	}

	out := Result{Reason: "Unable to determine"}
	if reply.IsValid != nil {
		out.IsValid = *reply.IsValid
	}
	if reply.Reason != nil {
		out.Reason = *reply.Reason
	}
	if reply.Score != nil {
		out.Score = model.ClampScore(*reply.Score)
	}
	return out, nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// LeadSummary renders the lead fields shown to the semantic validator.
func LeadSummary(lead *model.Lead) string {
	title := lead.JobTitle
	if title == "" {
		title = "No title"
	}
	lines := []string{
		"Company: " + orNA(lead.Company),
		fmt.Sprintf("Contact: %s (%s)", orNA(lead.ContactName), title),
		"Email: " + orNA(lead.Email),
		"Phone: " + orNA(lead.Phone),
		"State: " + orNA(lead.State),
		"Use Case: " + orNA(lead.UseCase),
		"Timeline: " + orNA(lead.Timeline),
		fmt.Sprintf("Lead Score: %d", lead.LeadScore),
		"Tell Us More: " + orNA(lead.TellUsMore),
	}
	return strings.Join(lines, "\n")
}

func (s *Semantic) systemPrompt() string {
	var b strings.Builder
	b.WriteString(`You are a lead qualification expert for a collaborative robotics company.
Your job is to assess whether an inbound lead is a legitimate business inquiry worth researching.
`)
	if s.reference != "" {
		b.WriteString("\nProduct Reference:\n")
		b.WriteString(s.reference)
		b.WriteString("\n")
	}
	b.WriteString(`
Return ONLY valid JSON with these fields:
- isValid (boolean): true if this is a real business lead worth researching
- reason (string): 1-2 sentence explanation
- score (number): 0-100 confidence that this is a quality lead

Factors that INCREASE score: company domain email, specific use case matching our products (welding, palletizing, machine tending, material handling, inspection), detailed "tell us more", positive CRM lead score, timeline urgency, job title suggesting decision-maker.

Factors that DECREASE score: personal email (gmail, etc), vague or missing description, generic company name, negative CRM lead score, "Other" use case with no detail, no phone number.`)
	return b.String()
}
