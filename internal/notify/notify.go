// Package notify tells the sales team a lead finished processing: a reply in
// the Slack thread of the original alert and, optionally, a page in a Notion
// leads database.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/pkg/notion"
	"github.com/sells-group/lead-intake/pkg/slack"
)

const summaryLimit = 300

// Notifier is told about each completed lead.
type Notifier interface {
	LeadProcessed(ctx context.Context, lead *model.Lead, rpt *model.Report) error
}

// Slack replies in the thread of the lead's source message.
type Slack struct {
	client     slack.Client
	consoleURL string
}

// SlackOption configures the Slack notifier.
type SlackOption func(*Slack)

// WithConsoleURL links the reply to the lead's page in the sales console.
func WithConsoleURL(base string) SlackOption {
	return func(s *Slack) {
		s.consoleURL = strings.TrimRight(base, "/")
	}
}

// NewSlack creates a thread-reply notifier.
func NewSlack(client slack.Client, opts ...SlackOption) *Slack {
	s := &Slack{client: client}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LeadProcessed posts the score and recommended robot as a thread reply.
// Leads without a source message are skipped.
func (s *Slack) LeadProcessed(ctx context.Context, lead *model.Lead, rpt *model.Report) error {
	if lead.SlackChannel == "" || lead.SlackTimestamp == "" {
		zap.L().Debug("notify: lead has no slack thread", zap.String("lead_id", lead.ID))
		return nil
	}
	_, err := s.client.PostMessage(ctx, slack.Message{
		Channel:  lead.SlackChannel,
		ThreadTS: lead.SlackTimestamp,
		Text:     s.text(lead, rpt),
		Mrkdwn:   true,
	})
	if err != nil {
		return eris.Wrapf(err, "notify: slack reply for lead %s", lead.ID)
	}
	return nil
}

func (s *Slack) text(lead *model.Lead, rpt *model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":white_check_mark: Research complete for *%s*\n", lead.Company)
	fmt.Fprintf(&b, "Opportunity score: *%d/100*\n", rpt.OpportunityScore)
	fmt.Fprintf(&b, "Recommended robot: *%s* (%d%% confidence)", rpt.RecommendedRobot, rpt.RecommendationConfidence)
	if summary := clip(rpt.CompanySummary, summaryLimit); summary != "" {
		fmt.Fprintf(&b, "\n>%s", summary)
	}
	if s.consoleURL != "" {
		fmt.Fprintf(&b, "\n<%s/leads/%s|View full report>", s.consoleURL, lead.ID)
	}
	return b.String()
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}

// Notion upserts one page per lead in a database.
type Notion struct {
	client notion.Client
	dbID   string
}

// NewNotion creates a Notion page notifier for the database dbID.
func NewNotion(client notion.Client, dbID string) *Notion {
	return &Notion{client: client, dbID: dbID}
}

// LeadProcessed creates or updates the lead's page.
func (n *Notion) LeadProcessed(ctx context.Context, lead *model.Lead, rpt *model.Report) error {
	id, err := notion.UpsertLeadPage(ctx, n.client, n.dbID, notion.LeadPage{
		LeadID:           lead.ID,
		Company:          lead.Company,
		Contact:          lead.ContactName,
		Email:            lead.Email,
		Status:           string(lead.Status),
		RecommendedRobot: rpt.RecommendedRobot,
		OpportunityScore: rpt.OpportunityScore,
		UseCase:          lead.UseCase,
		Website:          lead.Website,
	})
	if err != nil {
		return eris.Wrapf(err, "notify: notion page for lead %s", lead.ID)
	}
	zap.L().Debug("notify: notion page upserted", zap.String("lead_id", lead.ID), zap.String("page_id", id))
	return nil
}

// Multi fans a completion out to several notifiers. Every notifier runs even
// when an earlier one fails; the failures are joined.
type Multi []Notifier

// LeadProcessed calls each notifier in order.
func (m Multi) LeadProcessed(ctx context.Context, lead *model.Lead, rpt *model.Report) error {
	var errs []error
	for _, n := range m {
		if err := n.LeadProcessed(ctx, lead, rpt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
