package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/lead-intake/internal/model"
)

// FallbackScore estimates opportunity without an LLM: base 50, plus
// intent signals from the form.
func FallbackScore(lead *model.Lead) int {
	score := 50
	if lead.LeadScore > 50 {
		score += 15
	}
	switch {
	case strings.Contains(lead.Timeline, "0-30"):
		score += 15
	case strings.Contains(lead.Timeline, "30-60"):
		score += 10
	}
	if utf8.RuneCountInString(lead.TellUsMore) > 50 {
		score += 10
	}
	if lead.Phone != "" {
		score += 5
	}
	return model.ClampScore(score)
}

// fallback builds a minimal report from the lead and research alone.
func (b *Builder) fallback(lead *model.Lead, res *model.ResearchResult) *model.Report {
	robot := b.catalog.Recommend(lead.UseCase)
	uc := orDefault(lead.UseCase, "general")

	var summary strings.Builder
	fmt.Fprintf(&summary, "%s is a company", lead.Company)
	if lead.State != "" {
		fmt.Fprintf(&summary, " based in %s", lead.State)
	}
	if lead.Industry != "" {
		fmt.Fprintf(&summary, " in the %s industry", lead.Industry)
	}
	fmt.Fprintf(&summary, ". They submitted an inquiry about %s automation", strings.ToLower(uc))
	if lead.TellUsMore != "" {
		fmt.Fprintf(&summary, ". They noted: %q", truncate(lead.TellUsMore, 200))
	}
	summary.WriteString(".")

	return &model.Report{
		LeadID:         lead.ID,
		CompanySummary: summary.String(),
		UseCaseAnalysis: fmt.Sprintf("%s is interested in %s automation. Further research and discovery call "+
			"needed to fully assess their requirements and how we can help.", lead.Company, uc),
		RecentNews:       newsDigest(res, 3),
		RecommendedRobot: robot.Name,
		RecommendationRationale: fmt.Sprintf("The %s (%s) is recommended based on their stated %s use case. "+
			"It offers %s payload with %s reach. A discovery call will help confirm the best fit.",
			robot.Name, robot.Price, strings.ToLower(uc), robot.Payload, robot.Reach),
		RecommendationConfidence: 60,
		OpportunityScore:         FallbackScore(lead),
		TalkingPoints: model.TextList{
			fmt.Sprintf("Primary Use Case: Discuss their %s requirements in detail. "+
				"Can you walk me through your current process and where the bottlenecks are?", uc),
			fmt.Sprintf("Timeline: They indicated a %s timeline. "+
				"What is driving your timeline, is there a specific event or production target?", orDefault(lead.Timeline, "flexible")),
		},
		ROIAngles:               model.TextList{"Labor Savings: Automating manual tasks can significantly reduce labor costs"},
		RiskFactors:             model.TextList{"Incomplete information: Prioritize a discovery call to understand full requirements before quoting"},
		AdditionalOpportunities: model.TextList{},
		CompetitorContext:       "Unknown. Determine during the discovery call which alternatives they are evaluating.",
	}
}

type newsDigestItem struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
	Date   string `json:"date,omitempty"`
}

// newsDigest renders the top n news items as a JSON array, or "" when there
// is no news.
func newsDigest(res *model.ResearchResult, n int) string {
	if res == nil || len(res.News) == 0 {
		return ""
	}
	items := make([]newsDigestItem, 0, n)
	for _, item := range topNews(res.News, n) {
		items = append(items, newsDigestItem{Title: item.Title, URL: item.URL, Source: item.Source, Date: item.Date})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(b)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
