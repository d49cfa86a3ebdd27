package model

import "time"

// Report is the AI-generated sales analysis attached to a lead.
type Report struct {
	ID                       string    `json:"id"`
	LeadID                   string    `json:"lead_id"`
	CompanySummary           string    `json:"company_summary"`
	UseCaseAnalysis          string    `json:"use_case_analysis"`
	RecentNews               string    `json:"recent_news"`
	RecommendedRobot         string    `json:"recommended_robot"`
	RecommendationRationale  string    `json:"recommendation_rationale"`
	RecommendationConfidence int       `json:"recommendation_confidence"`
	OpportunityScore         int       `json:"opportunity_score"`
	TalkingPoints            TextList  `json:"talking_points"`
	ROIAngles                TextList  `json:"roi_angles"`
	RiskFactors              TextList  `json:"risk_factors"`
	AdditionalOpportunities  TextList  `json:"additional_opportunities"`
	CompetitorContext        string    `json:"competitor_context"`
	CreatedAt                time.Time `json:"created_at"`
}

// Source is a citation backing a report.
type Source struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"lead_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CustomerLearning accumulates closed-deal insights per company.
type CustomerLearning struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	Industry    string    `json:"industry,omitempty"`
	UseCase     string    `json:"use_case,omitempty"`
	Insights    string    `json:"insights"`
	Outcome     string    `json:"outcome,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InsightSeparator joins insights appended to an existing learning record.
const InsightSeparator = "\n\n---\n\n"

// ClampScore bounds v to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
