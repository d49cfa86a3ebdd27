// Package research gathers public information about a lead's company.
package research

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/pkg/tavily"
)

const (
	companyResults    = 5
	newsResults       = 10
	descriptionLength = 300
	snippetLength     = 200

	defaultFaviconURL  = "https://www.google.com/s2/favicons"
	defaultClearbitURL = "https://logo.clearbit.com"
)

// Researcher runs the company, news and logo lookups.
type Researcher struct {
	search      tavily.Client
	http        *http.Client
	faviconURL  string
	clearbitURL string
}

// Option configures a Researcher.
type Option func(*Researcher)

// WithHTTPClient sets the client used for the logo check.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Researcher) { r.http = hc }
}

// WithLogoURLs overrides the favicon and Clearbit endpoints.
func WithLogoURLs(favicon, clearbit string) Option {
	return func(r *Researcher) {
		if favicon != "" {
			r.faviconURL = favicon
		}
		if clearbit != "" {
			r.clearbitURL = clearbit
		}
	}
}

// New creates a Researcher. A nil search client makes every call return
// the minimal result.
func New(search tavily.Client, opts ...Option) *Researcher {
	r := &Researcher{
		search:      search,
		http:        &http.Client{Timeout: 10 * time.Second},
		faviconURL:  defaultFaviconURL,
		clearbitURL: defaultClearbitURL,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Research looks up company info, recent news and a logo concurrently. Each
// lookup fails on its own: a failed search leaves its field empty. The only
// error returned is the context's.
func (r *Researcher) Research(ctx context.Context, name, website string) (*model.ResearchResult, error) {
	if r == nil || r.search == nil {
		res := model.NewResearchResult(name)
		res.Company.Website = website
		return res, nil
	}

	var (
		company model.CompanyInfo
		news    []model.NewsItem
		logo    string
		g       errgroup.Group
	)
	g.Go(func() error {
		company = r.searchCompany(ctx, name)
		return nil
	})
	g.Go(func() error {
		news = r.searchNews(ctx, name)
		return nil
	})
	g.Go(func() error {
		logo = r.lookupLogo(ctx, name, website)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if company.Website == "" && website != "" {
		company.Website = website
	}
	if news == nil {
		news = []model.NewsItem{}
	}
	return &model.ResearchResult{Company: company, News: news, Logo: logo}, nil
}

func (r *Researcher) searchCompany(ctx context.Context, name string) model.CompanyInfo {
	info := model.CompanyInfo{Name: name}
	resp, err := r.search.Search(ctx, tavily.SearchRequest{
		Query:      name + " company information website",
		MaxResults: companyResults,
	})
	if err != nil {
		zap.L().Warn("research: company search failed", zap.String("company", name), zap.Error(err))
		return info
	}
	if len(resp.Results) == 0 {
		return info
	}
	top := resp.Results[0]
	info.Website = top.URL
	info.Description = truncate(top.Content, descriptionLength)
	info.Logo = top.Thumbnail
	return info
}

func (r *Researcher) searchNews(ctx context.Context, name string) []model.NewsItem {
	resp, err := r.search.Search(ctx, tavily.SearchRequest{
		Query:      name + " news recent",
		MaxResults: newsResults,
	})
	if err != nil {
		zap.L().Warn("research: news search failed", zap.String("company", name), zap.Error(err))
		return []model.NewsItem{}
	}
	news := make([]model.NewsItem, 0, len(resp.Results))
	for _, item := range resp.Results {
		news = append(news, model.NewsItem{
			Title:   item.Title,
			URL:     item.URL,
			Source:  SourceName(item.URL),
			Snippet: truncate(item.Content, snippetLength),
			Date:    item.PublishedDate,
		})
	}
	return news
}

// lookupLogo prefers the site's favicon when it resolves and otherwise
// guesses a Clearbit logo URL from the company name.
func (r *Researcher) lookupLogo(ctx context.Context, name, website string) string {
	if host := hostOf(website); host != "" {
		favicon := r.faviconURL + "?sz=128&domain=" + url.QueryEscape(host)
		if r.exists(ctx, favicon) {
			return favicon
		}
	}
	if name == "" {
		return ""
	}
	return r.clearbitURL + "/" + url.PathEscape(name)
}

func (r *Researcher) exists(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

// SourceName returns the host of rawURL without a "www." label.
func SourceName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.Replace(u.Hostname(), "www.", "", 1)
}

func hostOf(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Summary renders research as plain text for prompts. Only the first three
// news items are listed.
func Summary(res *model.ResearchResult) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Company: " + res.Company.Name + "\n")
	if res.Company.Website != "" {
		b.WriteString("Website: " + res.Company.Website + "\n")
	}
	if res.Company.Description != "" {
		b.WriteString("Description: " + res.Company.Description + "\n")
	}
	if len(res.News) > 0 {
		b.WriteString("\nRecent News:\n")
		for i, n := range res.News {
			if i == 3 {
				break
			}
			b.WriteString("- " + n.Title + "\n  Source: " + n.Source + "\n  URL: " + n.URL + "\n")
		}
	}
	return b.String()
}
