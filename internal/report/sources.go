package report

import (
	"fmt"

	"github.com/sells-group/lead-intake/internal/model"
)

const maxNewsSources = 5

// Sources lists the citations for a report: the company website when known,
// then up to five news articles.
func Sources(lead *model.Lead, res *model.ResearchResult) []model.Source {
	var out []model.Source
	if res == nil {
		return out
	}
	if res.Company.Website != "" {
		out = append(out, model.Source{
			LeadID:      lead.ID,
			Title:       lead.Company + " — Company Website",
			URL:         res.Company.Website,
			Description: orDefault(res.Company.Description, "Company homepage"),
		})
	}
	for _, n := range topNews(res.News, maxNewsSources) {
		if n.URL == "" {
			continue
		}
		desc := n.Source
		if n.Date != "" {
			desc += " — " + n.Date
		}
		out = append(out, model.Source{
			LeadID:      lead.ID,
			Title:       n.Title,
			URL:         n.URL,
			Description: fmt.Sprintf("%s: %s", desc, truncate(n.Snippet, 200)),
		})
	}
	return out
}
