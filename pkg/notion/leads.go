package notion

import (
	"context"
	"unicode/utf8"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Property names in the leads database.
const (
	PropName             = "Name"
	PropLeadID           = "Lead ID"
	PropContact          = "Contact"
	PropEmail            = "Email"
	PropStatus           = "Status"
	PropRecommendedRobot = "Recommended Robot"
	PropOpportunityScore = "Opportunity Score"
	PropUseCase          = "Use Case"
	PropWebsite          = "Website"
)

// maxRichText is Notion's per-text-object content limit.
const maxRichText = 2000

// LeadPage is the projection of a processed lead written to Notion.
type LeadPage struct {
	LeadID           string
	Company          string
	Contact          string
	Email            string
	Status           string
	RecommendedRobot string
	OpportunityScore int
	UseCase          string
	Website          string
}

// Properties renders the page properties.
func (p LeadPage) Properties() notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(p.Company),
		},
		PropLeadID:           richTextProp(p.LeadID),
		PropContact:          richTextProp(p.Contact),
		PropRecommendedRobot: richTextProp(p.RecommendedRobot),
		PropUseCase:          richTextProp(p.UseCase),
		PropStatus: notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: p.Status},
		},
		PropOpportunityScore: notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: float64(p.OpportunityScore),
		},
	}
	if p.Email != "" {
		props[PropEmail] = notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: p.Email}
	}
	if p.Website != "" {
		props[PropWebsite] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: p.Website}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	if utf8.RuneCountInString(s) > maxRichText {
		s = string([]rune(s)[:maxRichText])
	}
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

func richTextProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(s)}
}

// FindLeadPage returns the page whose Lead ID equals leadID, or nil.
func FindLeadPage(ctx context.Context, c Client, dbID, leadID string) (*notionapi.Page, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropLeadID,
			RichText: &notionapi.TextFilterCondition{Equals: leadID},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: find lead page")
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// UpsertLeadPage updates the lead's existing page or creates one, and
// returns the page id. Reprocessed leads therefore keep a single page.
func UpsertLeadPage(ctx context.Context, c Client, dbID string, p LeadPage) (string, error) {
	existing, err := FindLeadPage(ctx, c, dbID, p.LeadID)
	if err != nil {
		return "", err
	}

	if existing != nil {
		page, err := c.UpdatePage(ctx, string(existing.ID), &notionapi.PageUpdateRequest{
			Properties: p.Properties(),
		})
		if err != nil {
			return "", eris.Wrap(err, "notion: update lead page")
		}
		return string(page.ID), nil
	}

	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: p.Properties(),
	})
	if err != nil {
		return "", eris.Wrap(err, "notion: create lead page")
	}
	return string(page.ID), nil
}
