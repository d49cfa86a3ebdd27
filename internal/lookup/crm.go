// Package lookup backs the lead detail panels that pull related records from
// external systems: CRM history from Salesforce and recorded meetings from
// Fireflies. Both degrade to ErrNotConfigured when credentials are absent.
package lookup

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-intake/internal/metrics"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/resilience"
	"github.com/sells-group/lead-intake/pkg/salesforce"
)

// ErrNotConfigured is returned when a lookup's backing service has no
// credentials.
var ErrNotConfigured = eris.New("lookup: service not configured")

// Engagement types.
const EngagementNote = "note"

// CRMResult is the CRM panel payload.
type CRMResult struct {
	Contact     *salesforce.Contact      `json:"contact"`
	Company     *salesforce.Account      `json:"company"`
	Deals       []salesforce.Opportunity `json:"deals"`
	Tickets     []salesforce.Case        `json:"tickets"`
	Engagements []Engagement             `json:"engagements"`
	Links       Links                    `json:"links"`
}

// Engagement is an activity logged against the contact.
type Engagement struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Links are deep links into the CRM UI.
type Links struct {
	Contact string     `json:"contact,omitempty"`
	Company string     `json:"company,omitempty"`
	Deals   []DealLink `json:"deals"`
}

// DealLink points at one opportunity.
type DealLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CRM looks up a lead's contact, account and related records.
type CRM struct {
	client      salesforce.Client
	instanceURL string
	breaker     *resilience.CircuitBreaker
	metrics     *metrics.Metrics
}

// NewCRM creates a CRM lookup. A nil client yields a lookup that always
// returns ErrNotConfigured.
func NewCRM(client salesforce.Client, instanceURL string, m *metrics.Metrics) *CRM {
	return &CRM{
		client:      client,
		instanceURL: instanceURL,
		metrics:     m,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "salesforce",
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
		}),
	}
}

// Configured reports whether the lookup can reach Salesforce.
func (c *CRM) Configured() bool {
	return c != nil && c.client != nil
}

// Lookup finds the lead's contact (by email, then by name) and company, then
// fans out for deals, tickets and notes on the first contact.
func (c *CRM) Lookup(ctx context.Context, lead *model.Lead) (*CRMResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	res, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*CRMResult, error) {
		return c.lookup(ctx, lead)
	})
	if err != nil {
		c.metrics.RecordLookupError("salesforce")
		return nil, eris.Wrapf(err, "lookup: crm for lead %s", lead.ID)
	}
	return res, nil
}

func (c *CRM) lookup(ctx context.Context, lead *model.Lead) (*CRMResult, error) {
	res := &CRMResult{
		Deals:       []salesforce.Opportunity{},
		Tickets:     []salesforce.Case{},
		Engagements: []Engagement{},
		Links:       Links{Deals: []DealLink{}},
	}

	contacts, err := c.findContacts(ctx, lead)
	if err != nil {
		return nil, err
	}
	if len(contacts) > 0 {
		res.Contact = &contacts[0]
	}

	if company := strings.TrimSpace(lead.Company); company != "" {
		accounts, err := salesforce.FindAccountsByName(ctx, c.client, company)
		if err != nil {
			return nil, err
		}
		if len(accounts) > 0 {
			res.Company = &accounts[0]
		}
	}

	if res.Contact != nil {
		c.related(ctx, res)
	}

	c.link(res)
	return res, nil
}

func (c *CRM) findContacts(ctx context.Context, lead *model.Lead) ([]salesforce.Contact, error) {
	if email := strings.TrimSpace(lead.Email); email != "" {
		contacts, err := salesforce.FindContactsByEmail(ctx, c.client, email)
		if err != nil {
			return nil, err
		}
		if len(contacts) > 0 {
			return contacts, nil
		}
	}
	if name := strings.TrimSpace(lead.ContactName); name != "" {
		return salesforce.FindContactsByName(ctx, c.client, name)
	}
	return nil, nil
}

// related loads opportunities, cases and notes for the matched contact.
// Opportunities hang off the account, so the contact's own account wins
// over the name-matched one. A failed association query leaves that list
// empty rather than failing the panel.
func (c *CRM) related(ctx context.Context, res *CRMResult) {
	contactID := res.Contact.ID
	accountID := res.Contact.AccountID
	if accountID == "" && res.Company != nil {
		accountID = res.Company.ID
	}
	log := zap.L().With(zap.String("contact_id", contactID))

	var g errgroup.Group
	if accountID != "" {
		g.Go(func() error {
			opps, err := salesforce.ListOpportunities(ctx, c.client, accountID)
			if err != nil {
				log.Warn("lookup: crm opportunities unavailable", zap.String("account_id", accountID), zap.Error(err))
				return nil
			}
			res.Deals = append(res.Deals, opps...)
			return nil
		})
	}
	g.Go(func() error {
		cases, err := salesforce.ListCases(ctx, c.client, contactID)
		if err != nil {
			log.Warn("lookup: crm cases unavailable", zap.Error(err))
			return nil
		}
		res.Tickets = append(res.Tickets, cases...)
		return nil
	})
	g.Go(func() error {
		notes, err := salesforce.ListNotes(ctx, c.client, contactID)
		if err != nil {
			log.Warn("lookup: crm notes unavailable", zap.Error(err))
			return nil
		}
		for _, n := range notes {
			res.Engagements = append(res.Engagements, Engagement{
				ID:        n.ID,
				Type:      EngagementNote,
				Title:     n.Title,
				Body:      n.Body,
				Timestamp: n.CreatedDate,
			})
		}
		return nil
	})
	_ = g.Wait()
}

func (c *CRM) link(res *CRMResult) {
	if res.Contact != nil {
		res.Links.Contact = salesforce.RecordURL(c.instanceURL, "Contact", res.Contact.ID)
	}
	if res.Company != nil {
		res.Links.Company = salesforce.RecordURL(c.instanceURL, "Account", res.Company.ID)
	}
	for _, d := range res.Deals {
		res.Links.Deals = append(res.Links.Deals, DealLink{
			ID:  d.ID,
			URL: salesforce.RecordURL(c.instanceURL, "Opportunity", d.ID),
		})
	}
}
