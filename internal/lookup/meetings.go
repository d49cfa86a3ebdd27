package lookup

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intake/internal/metrics"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/resilience"
	"github.com/sells-group/lead-intake/pkg/fireflies"
)

const meetingSearchLimit = 10

// Meeting is one recorded call in the meetings panel.
type Meeting struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Date           time.Time `json:"date"`
	Duration       float64   `json:"duration"`
	OrganizerEmail string    `json:"organizer_email"`
	Participants   []string  `json:"participants"`
	TranscriptURL  string    `json:"transcript_url"`
	Overview       *string   `json:"overview"`
	ActionItems    *string   `json:"action_items"`
	Keywords       []string  `json:"keywords"`
}

// MeetingsResult is the meetings panel payload.
type MeetingsResult struct {
	Meetings []Meeting `json:"meetings"`
	Total    int       `json:"total"`
}

// Meetings searches recorded calls that mention a lead.
type Meetings struct {
	client  fireflies.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
}

// NewMeetings creates a meetings lookup. A nil client yields a lookup that
// always returns ErrNotConfigured.
func NewMeetings(client fireflies.Client, m *metrics.Metrics) *Meetings {
	return &Meetings{
		client:  client,
		metrics: m,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "fireflies",
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
		}),
	}
}

// Configured reports whether the lookup can reach Fireflies.
func (m *Meetings) Configured() bool {
	return m != nil && m.client != nil
}

// Lookup searches transcripts by contact name and company in the title, then
// by the lead's email among participants. Results are deduplicated by id and
// sorted newest first.
func (m *Meetings) Lookup(ctx context.Context, lead *model.Lead) (*MeetingsResult, error) {
	if !m.Configured() {
		return nil, ErrNotConfigured
	}

	found, err := resilience.ExecuteVal(ctx, m.breaker, func(ctx context.Context) ([]fireflies.Transcript, error) {
		return m.search(ctx, lead)
	})
	if err != nil {
		m.metrics.RecordLookupError("fireflies")
		return nil, eris.Wrapf(err, "lookup: meetings for lead %s", lead.ID)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Date > found[j].Date })

	out := &MeetingsResult{Meetings: make([]Meeting, 0, len(found)), Total: len(found)}
	for _, t := range found {
		out.Meetings = append(out.Meetings, toMeeting(t))
	}
	return out, nil
}

func (m *Meetings) search(ctx context.Context, lead *model.Lead) ([]fireflies.Transcript, error) {
	seen := make(map[string]bool)
	var all []fireflies.Transcript
	add := func(ts []fireflies.Transcript) {
		for _, t := range ts {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			all = append(all, t)
		}
	}

	for _, term := range []string{lead.ContactName, lead.Company} {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		ts, err := m.client.SearchByTitle(ctx, term, meetingSearchLimit)
		if err != nil {
			return nil, err
		}
		add(ts)
	}

	if email := strings.TrimSpace(lead.Email); email != "" {
		ts, err := m.client.SearchByParticipant(ctx, email, meetingSearchLimit)
		if err != nil {
			return nil, err
		}
		add(ts)
	}
	return all, nil
}

func toMeeting(t fireflies.Transcript) Meeting {
	mt := Meeting{
		ID:             t.ID,
		Title:          t.Title,
		Date:           t.Time(),
		Duration:       t.Duration,
		OrganizerEmail: t.OrganizerEmail,
		Participants:   t.Participants,
		TranscriptURL:  t.TranscriptURL,
		Keywords:       []string{},
	}
	if mt.Participants == nil {
		mt.Participants = []string{}
	}
	if s := t.Summary; s != nil {
		if s.Overview != "" {
			mt.Overview = &s.Overview
		}
		if s.ActionItems != "" {
			mt.ActionItems = &s.ActionItems
		}
		if len(s.Keywords) > 0 {
			mt.Keywords = s.Keywords
		}
	}
	return mt
}
