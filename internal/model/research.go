package model

// CompanyInfo is what the research step learned about a company.
type CompanyInfo struct {
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Size        string `json:"size,omitempty"`
}

// NewsItem is one recent article about a company.
type NewsItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}

// ResearchResult aggregates company info and news. Absent fields mean
// "unknown", never a validation failure.
type ResearchResult struct {
	Company CompanyInfo `json:"company"`
	News    []NewsItem  `json:"news"`
	Logo    string      `json:"logo,omitempty"`
}

// NewResearchResult returns the minimal result for a company: its name and
// an empty news list.
func NewResearchResult(name string) *ResearchResult {
	return &ResearchResult{Company: CompanyInfo{Name: name}, News: []NewsItem{}}
}
