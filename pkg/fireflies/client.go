// Package fireflies queries meeting transcripts from the Fireflies.ai
// GraphQL API.
package fireflies

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-intake/internal/resilience"
)

const defaultBaseURL = "https://api.fireflies.ai/graphql"

const transcriptFields = `
    id
    title
    date
    duration
    organizer_email
    participants
    transcript_url
    summary {
      overview
      action_items
      keywords
    }`

const byTitleQuery = `query SearchTranscripts($title: String, $limit: Int) {
  transcripts(title: $title, limit: $limit) {` + transcriptFields + `
  }
}`

const byParticipantQuery = `query SearchByParticipant($email: String, $limit: Int) {
  transcripts(participant_email: $email, limit: $limit) {` + transcriptFields + `
  }
}`

// Client searches meeting transcripts.
type Client interface {
	SearchByTitle(ctx context.Context, title string, limit int) ([]Transcript, error)
	SearchByParticipant(ctx context.Context, email string, limit int) ([]Transcript, error)
}

// Transcript is one recorded meeting.
type Transcript struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Date           float64  `json:"date"`
	Duration       float64  `json:"duration"`
	OrganizerEmail string   `json:"organizer_email"`
	Participants   []string `json:"participants"`
	TranscriptURL  string   `json:"transcript_url"`
	Summary        *Summary `json:"summary"`
}

// Time converts the epoch-millisecond Date into a time.Time. A zero Date
// yields the zero time.
func (t Transcript) Time() time.Time {
	if t.Date == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(t.Date)).UTC()
}

// Summary is the AI-generated meeting summary.
type Summary struct {
	Overview    string   `json:"overview"`
	ActionItems string   `json:"action_items"`
	Keywords    []string `json:"keywords"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type transcriptsResponse struct {
	Data struct {
		Transcripts []Transcript `json:"transcripts"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the GraphQL endpoint.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles requests to rps per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Fireflies client authenticated with a bearer key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchByTitle(ctx context.Context, title string, limit int) ([]Transcript, error) {
	return c.transcripts(ctx, byTitleQuery, map[string]any{"title": title, "limit": limit})
}

func (c *httpClient) SearchByParticipant(ctx context.Context, email string, limit int) ([]Transcript, error) {
	return c.transcripts(ctx, byParticipantQuery, map[string]any{"email": email, "limit": limit})
}

func (c *httpClient) transcripts(ctx context.Context, query string, vars map[string]any) ([]Transcript, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fireflies: rate limit")
		}
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, eris.Wrap(err, "fireflies: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fireflies: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fireflies: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fireflies: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("fireflies", resp.StatusCode, respBody)
	}

	var out transcriptsResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "fireflies: unmarshal response")
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return nil, eris.Errorf("fireflies: graphql: %s", strings.Join(msgs, "; "))
	}
	return out.Data.Transcripts, nil
}
