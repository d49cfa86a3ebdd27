package report

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-intake/internal/model"
)

const reportContract = `Respond ONLY with a JSON object using exactly these keys:
{
  "company_summary": "2-3 sentences on who the company is and what they do",
  "use_case_analysis": "how their stated use case maps onto our products",
  "recent_news": "notable recent developments, or an empty string",
  "additional_opportunities": ["other processes we could automate"],
  "recommended_robot": "one of: %s",
  "recommendation_rationale": "why this robot fits",
  "recommendation_confidence": 0-100,
  "opportunity_score": 0-100,
  "talking_points": [{"topic": "...", "detail": "...", "question": "..."}],
  "roi_angles": [{"angle": "...", "explanation": "..."}],
  "risk_factors": [{"risk": "...", "mitigation": "..."}],
  "competitor_context": "alternatives they are likely evaluating"
}`

func (b *Builder) systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a sales research analyst for a collaborative robotics company. ")
	sb.WriteString("Given an inbound lead and research findings, write a concise report that prepares a salesperson for the first call.\n\n")
	if b.reference != "" {
		sb.WriteString("PRODUCT REFERENCE:\n")
		sb.WriteString(b.reference)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("PRODUCT CATALOG:\n")
		sb.WriteString(b.catalog.Prompt())
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, reportContract, strings.Join(b.catalog.Names(), ", "))
	return sb.String()
}

func userPrompt(lead *model.Lead, res *model.ResearchResult) string {
	var sb strings.Builder
	sb.WriteString("LEAD INFORMATION:\n")
	fmt.Fprintf(&sb, "Company: %s\n", lead.Company)
	fmt.Fprintf(&sb, "Contact: %s", lead.ContactName)
	if lead.JobTitle != "" {
		fmt.Fprintf(&sb, " (%s)", lead.JobTitle)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Location: %s\n", location(lead))
	fmt.Fprintf(&sb, "Use Case: %s\n", orDefault(lead.UseCase, "Not specified"))
	fmt.Fprintf(&sb, "Timeline: %s\n", orDefault(lead.Timeline, "Not specified"))
	fmt.Fprintf(&sb, "Lead Source: %s\n", orDefault(lead.LeadSource, "Unknown"))
	fmt.Fprintf(&sb, "Lead Score: %d\n", lead.LeadScore)
	fmt.Fprintf(&sb, "Description: %s\n\n", orDefault(lead.TellUsMore, "No additional details provided"))
	sb.WriteString("RESEARCH FINDINGS:\n")
	sb.WriteString(researchContext(res))
	return sb.String()
}

func location(lead *model.Lead) string {
	switch {
	case lead.State != "":
		return lead.State + ", " + orDefault(lead.Country, "US")
	case lead.Country != "":
		return lead.Country
	default:
		return "Unknown"
	}
}

func researchContext(res *model.ResearchResult) string {
	if res == nil {
		return "No additional research data available."
	}
	var parts []string
	c := res.Company
	if c.Description != "" {
		parts = append(parts, "Company Description: "+c.Description)
	}
	if c.Website != "" {
		parts = append(parts, "Website: "+c.Website)
	}
	if c.Industry != "" {
		parts = append(parts, "Industry: "+c.Industry)
	}
	if c.Size != "" {
		parts = append(parts, "Company Size: "+c.Size)
	}
	if len(res.News) > 0 {
		var nb strings.Builder
		nb.WriteString("Recent News:")
		for _, n := range topNews(res.News, 5) {
			fmt.Fprintf(&nb, "\n- %q (%s, %s)\n  %s", n.Title, n.Source, orDefault(n.Date, "undated"), n.Snippet)
		}
		parts = append(parts, nb.String())
	}
	if len(parts) == 0 {
		return "No additional research data available."
	}
	return strings.Join(parts, "\n\n")
}

func topNews(news []model.NewsItem, n int) []model.NewsItem {
	if len(news) > n {
		return news[:n]
	}
	return news
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
