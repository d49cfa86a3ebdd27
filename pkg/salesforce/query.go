package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID               string `json:"Id" salesforce:"Id"`
	FirstName        string `json:"FirstName" salesforce:"FirstName"`
	LastName         string `json:"LastName" salesforce:"LastName"`
	Name             string `json:"Name" salesforce:"Name"`
	Email            string `json:"Email" salesforce:"Email"`
	Title            string `json:"Title" salesforce:"Title"`
	Phone            string `json:"Phone" salesforce:"Phone"`
	AccountID        string `json:"AccountId" salesforce:"AccountId"`
	LeadSource       string `json:"LeadSource" salesforce:"LeadSource"`
	LastModifiedDate string `json:"LastModifiedDate" salesforce:"LastModifiedDate"`
}

// Account represents a Salesforce Account record.
type Account struct {
	ID                string  `json:"Id" salesforce:"Id"`
	Name              string  `json:"Name" salesforce:"Name"`
	Website           string  `json:"Website" salesforce:"Website"`
	Industry          string  `json:"Industry" salesforce:"Industry"`
	Description       string  `json:"Description" salesforce:"Description"`
	BillingCity       string  `json:"BillingCity" salesforce:"BillingCity"`
	BillingState      string  `json:"BillingState" salesforce:"BillingState"`
	BillingCountry    string  `json:"BillingCountry" salesforce:"BillingCountry"`
	NumberOfEmployees int     `json:"NumberOfEmployees" salesforce:"NumberOfEmployees"`
	AnnualRevenue     float64 `json:"AnnualRevenue" salesforce:"AnnualRevenue"`
}

// Opportunity represents a Salesforce Opportunity (deal).
type Opportunity struct {
	ID               string  `json:"Id" salesforce:"Id"`
	Name             string  `json:"Name" salesforce:"Name"`
	Amount           float64 `json:"Amount" salesforce:"Amount"`
	StageName        string  `json:"StageName" salesforce:"StageName"`
	CloseDate        string  `json:"CloseDate" salesforce:"CloseDate"`
	OwnerID          string  `json:"OwnerId" salesforce:"OwnerId"`
	LastModifiedDate string  `json:"LastModifiedDate" salesforce:"LastModifiedDate"`
}

// Case represents a Salesforce Case (support ticket).
type Case struct {
	ID               string `json:"Id" salesforce:"Id"`
	Subject          string `json:"Subject" salesforce:"Subject"`
	Description      string `json:"Description" salesforce:"Description"`
	Status           string `json:"Status" salesforce:"Status"`
	Priority         string `json:"Priority" salesforce:"Priority"`
	CreatedDate      string `json:"CreatedDate" salesforce:"CreatedDate"`
	LastModifiedDate string `json:"LastModifiedDate" salesforce:"LastModifiedDate"`
}

// Note represents a Salesforce Note attached to a record.
type Note struct {
	ID               string `json:"Id" salesforce:"Id"`
	Title            string `json:"Title" salesforce:"Title"`
	Body             string `json:"Body" salesforce:"Body"`
	CreatedDate      string `json:"CreatedDate" salesforce:"CreatedDate"`
	LastModifiedDate string `json:"LastModifiedDate" salesforce:"LastModifiedDate"`
}

var (
	contactFields = []string{
		"Id", "FirstName", "LastName", "Name", "Email", "Title", "Phone",
		"AccountId", "LeadSource", "LastModifiedDate",
	}
	accountFields = []string{
		"Id", "Name", "Website", "Industry", "Description",
		"BillingCity", "BillingState", "BillingCountry",
		"NumberOfEmployees", "AnnualRevenue",
	}
	opportunityFields = []string{
		"Id", "Name", "Amount", "StageName", "CloseDate", "OwnerId", "LastModifiedDate",
	}
	caseFields = []string{
		"Id", "Subject", "Description", "Status", "Priority", "CreatedDate", "LastModifiedDate",
	}
	noteFields = []string{"Id", "Title", "Body", "CreatedDate", "LastModifiedDate"}
)

// Search limits for the CRM panel.
const (
	contactLimit = 5
	relatedLimit = 10
	noteLimit    = 5
)

// FindContactsByEmail returns contacts whose Email equals email.
func FindContactsByEmail(ctx context.Context, c Client, email string) ([]Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Email = '%s' ORDER BY LastModifiedDate DESC LIMIT %d",
		strings.Join(contactFields, ", "), escapeSoql(email), contactLimit,
	)
	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contacts by email %s", email))
	}
	return contacts, nil
}

// FindContactsByName returns contacts whose Name equals name.
func FindContactsByName(ctx context.Context, c Client, name string) ([]Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Name = '%s' ORDER BY LastModifiedDate DESC LIMIT %d",
		strings.Join(contactFields, ", "), escapeSoql(name), contactLimit,
	)
	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contacts by name %s", name))
	}
	return contacts, nil
}

// FindAccountsByName returns accounts whose Name contains name.
func FindAccountsByName(ctx context.Context, c Client, name string) ([]Account, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE Name LIKE '%%%s%%' LIMIT %d",
		strings.Join(accountFields, ", "), escapeSoqlLike(name), contactLimit,
	)
	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find accounts by name %s", name))
	}
	return accounts, nil
}

// ListOpportunities returns the most recent opportunities on an account.
func ListOpportunities(ctx context.Context, c Client, accountID string) ([]Opportunity, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Opportunity WHERE AccountId = '%s' ORDER BY LastModifiedDate DESC LIMIT %d",
		strings.Join(opportunityFields, ", "), escapeSoql(accountID), relatedLimit,
	)
	var opps []Opportunity
	if err := c.Query(ctx, soql, &opps); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: list opportunities for %s", accountID))
	}
	return opps, nil
}

// ListCases returns the most recent cases raised by a contact.
func ListCases(ctx context.Context, c Client, contactID string) ([]Case, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Case WHERE ContactId = '%s' ORDER BY CreatedDate DESC LIMIT %d",
		strings.Join(caseFields, ", "), escapeSoql(contactID), relatedLimit,
	)
	var cases []Case
	if err := c.Query(ctx, soql, &cases); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: list cases for %s", contactID))
	}
	return cases, nil
}

// ListNotes returns the most recent notes attached to a record.
func ListNotes(ctx context.Context, c Client, parentID string) ([]Note, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Note WHERE ParentId = '%s' ORDER BY LastModifiedDate DESC LIMIT %d",
		strings.Join(noteFields, ", "), escapeSoql(parentID), noteLimit,
	)
	var notes []Note
	if err := c.Query(ctx, soql, &notes); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: list notes for %s", parentID))
	}
	return notes, nil
}

// RecordURL builds the Lightning URL for a record.
func RecordURL(instanceURL, sObject, id string) string {
	return fmt.Sprintf("%s/lightning/r/%s/%s/view", strings.TrimRight(instanceURL, "/"), sObject, id)
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "\\'")
}

// escapeSoqlLike additionally escapes LIKE wildcards.
func escapeSoqlLike(s string) string {
	s = escapeSoql(s)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
