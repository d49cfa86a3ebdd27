package lookup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intake/internal/metrics"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/resilience"
	"github.com/sells-group/lead-intake/pkg/fireflies"
	"github.com/sells-group/lead-intake/pkg/salesforce"
)

const instance = "https://acme.my.salesforce.com"

type mockSF struct{ mock.Mock }

func (m *mockSF) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	return args.Error(0)
}

// on registers a query whose SOQL contains fragment and fills out with rows.
func on[T any](m *mockSF, fragment string, rows []T, err error) *mock.Call {
	return m.On("Query", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, fragment)
	}), mock.Anything).Run(func(args mock.Arguments) {
		if p, ok := args.Get(2).(*[]T); ok {
			*p = rows
		}
	}).Return(err)
}

type mockFireflies struct{ mock.Mock }

func (m *mockFireflies) SearchByTitle(ctx context.Context, title string, limit int) ([]fireflies.Transcript, error) {
	args := m.Called(ctx, title, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fireflies.Transcript), args.Error(1)
}

func (m *mockFireflies) SearchByParticipant(ctx context.Context, email string, limit int) ([]fireflies.Transcript, error) {
	args := m.Called(ctx, email, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fireflies.Transcript), args.Error(1)
}

func testLead() *model.Lead {
	return &model.Lead{
		ID:          "lead-1",
		Company:     "Acme Fabrication",
		ContactName: "Jane Doe",
		Email:       "jane@acmefab.com",
	}
}

func TestCRMLookup_ContactByEmail(t *testing.T) {
	sf := new(mockSF)
	on(sf, "FROM Contact WHERE Email", []salesforce.Contact{{ID: "003A", Name: "Jane Doe", AccountID: "001A"}}, nil)
	on(sf, "FROM Account WHERE Name LIKE", []salesforce.Account{{ID: "001B", Name: "Acme Fabrication Inc"}}, nil)
	on(sf, "FROM Opportunity WHERE AccountId = '001A'", []salesforce.Opportunity{
		{ID: "006A", Name: "Cell 1", StageName: "Prospecting"},
		{ID: "006B", Name: "Cell 2", StageName: "Closed Won"},
	}, nil)
	on(sf, "FROM Case WHERE ContactId = '003A'", []salesforce.Case{{ID: "500A", Subject: "Gripper"}}, nil)
	on(sf, "FROM Note WHERE ParentId = '003A'", []salesforce.Note{{ID: "002A", Title: "Intro call", Body: "Wants a demo", CreatedDate: "2026-01-02"}}, nil)

	res, err := NewCRM(sf, instance, nil).Lookup(context.Background(), testLead())
	require.NoError(t, err)

	require.NotNil(t, res.Contact)
	assert.Equal(t, "003A", res.Contact.ID)
	require.NotNil(t, res.Company)
	assert.Equal(t, "001B", res.Company.ID)
	assert.Len(t, res.Deals, 2)
	assert.Len(t, res.Tickets, 1)
	require.Len(t, res.Engagements, 1)
	assert.Equal(t, Engagement{ID: "002A", Type: "note", Title: "Intro call", Body: "Wants a demo", Timestamp: "2026-01-02"}, res.Engagements[0])

	assert.Equal(t, instance+"/lightning/r/Contact/003A/view", res.Links.Contact)
	assert.Equal(t, instance+"/lightning/r/Account/001B/view", res.Links.Company)
	assert.Equal(t, []DealLink{
		{ID: "006A", URL: instance + "/lightning/r/Opportunity/006A/view"},
		{ID: "006B", URL: instance + "/lightning/r/Opportunity/006B/view"},
	}, res.Links.Deals)
	sf.AssertNotCalled(t, "Query", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.Contains(s, "Contact WHERE Name")
	}), mock.Anything)
}

func TestCRMLookup_FallsBackToName(t *testing.T) {
	sf := new(mockSF)
	on(sf, "FROM Contact WHERE Email", []salesforce.Contact{}, nil)
	on(sf, "FROM Contact WHERE Name = 'Jane Doe'", []salesforce.Contact{{ID: "003B"}}, nil)
	on(sf, "FROM Account WHERE Name LIKE", []salesforce.Account{{ID: "001C"}}, nil)
	on(sf, "FROM Opportunity WHERE AccountId = '001C'", []salesforce.Opportunity{}, nil)
	on(sf, "FROM Case", []salesforce.Case{}, nil)
	on(sf, "FROM Note", []salesforce.Note{}, nil)

	res, err := NewCRM(sf, instance, nil).Lookup(context.Background(), testLead())
	require.NoError(t, err)
	require.NotNil(t, res.Contact)
	assert.Equal(t, "003B", res.Contact.ID)
	assert.Empty(t, res.Deals)
	assert.NotNil(t, res.Links.Deals)
	sf.AssertExpectations(t)
}

func TestCRMLookup_NoMatches(t *testing.T) {
	sf := new(mockSF)
	on(sf, "FROM Contact WHERE Email", []salesforce.Contact{}, nil)
	on(sf, "FROM Contact WHERE Name", []salesforce.Contact{}, nil)
	on(sf, "FROM Account", []salesforce.Account{}, nil)

	res, err := NewCRM(sf, instance, nil).Lookup(context.Background(), testLead())
	require.NoError(t, err)
	assert.Nil(t, res.Contact)
	assert.Nil(t, res.Company)
	assert.Empty(t, res.Links.Contact)
	assert.Empty(t, res.Engagements)
	sf.AssertNumberOfCalls(t, "Query", 3)
}

func TestCRMLookup_AssociationFailureDegrades(t *testing.T) {
	sf := new(mockSF)
	on(sf, "FROM Contact WHERE Email", []salesforce.Contact{{ID: "003A", AccountID: "001A"}}, nil)
	on(sf, "FROM Account", []salesforce.Account{}, nil)
	on(sf, "FROM Opportunity", []salesforce.Opportunity{}, errors.New("INVALID_SESSION_ID"))
	on(sf, "FROM Case", []salesforce.Case{{ID: "500A"}}, nil)
	on(sf, "FROM Note", []salesforce.Note{}, errors.New("timeout"))

	m := metrics.New()
	res, err := NewCRM(sf, instance, m).Lookup(context.Background(), testLead())
	require.NoError(t, err)
	assert.Empty(t, res.Deals)
	assert.NotNil(t, res.Deals)
	assert.Len(t, res.Tickets, 1)
	assert.Empty(t, res.Engagements)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LookupErrors.WithLabelValues("salesforce")))
}

func TestCRMLookup_ErrorCounted(t *testing.T) {
	sf := new(mockSF)
	on(sf, "FROM Contact WHERE Email", []salesforce.Contact(nil), errors.New("sf: query: INVALID_SESSION_ID"))
	m := metrics.New()

	_, err := NewCRM(sf, instance, m).Lookup(context.Background(), testLead())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_SESSION_ID")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupErrors.WithLabelValues("salesforce")))
}

func TestCRMLookup_CircuitOpens(t *testing.T) {
	sf := new(mockSF)
	on(sf, "FROM Contact WHERE Email", []salesforce.Contact(nil), errors.New("down"))
	crm := NewCRM(sf, instance, nil)

	for i := 0; i < 5; i++ {
		_, err := crm.Lookup(context.Background(), testLead())
		require.Error(t, err)
	}
	_, err := crm.Lookup(context.Background(), testLead())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	sf.AssertNumberOfCalls(t, "Query", 5)
}

func TestCRMLookup_NotConfigured(t *testing.T) {
	_, err := NewCRM(nil, instance, nil).Lookup(context.Background(), testLead())
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilCRM *CRM
	assert.False(t, nilCRM.Configured())
}

func TestMeetingsLookup(t *testing.T) {
	ff := new(mockFireflies)
	older := fireflies.Transcript{ID: "t1", Title: "Jane Doe intro", Date: 1_700_000_000_000}
	newer := fireflies.Transcript{
		ID: "t2", Title: "Acme Fabrication demo", Date: 1_760_000_000_000,
		Participants: []string{"jane@acmefab.com"},
		Summary:      &fireflies.Summary{Overview: "Demoed welding cell", ActionItems: "Send quote", Keywords: []string{"welding"}},
	}
	ff.On("SearchByTitle", mock.Anything, "Jane Doe", 10).Return([]fireflies.Transcript{older}, nil)
	ff.On("SearchByTitle", mock.Anything, "Acme Fabrication", 10).Return([]fireflies.Transcript{newer}, nil)
	ff.On("SearchByParticipant", mock.Anything, "jane@acmefab.com", 10).Return([]fireflies.Transcript{newer, older}, nil)

	res, err := NewMeetings(ff, nil).Lookup(context.Background(), testLead())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	require.Len(t, res.Meetings, 2)
	assert.Equal(t, "t2", res.Meetings[0].ID)
	assert.Equal(t, "t1", res.Meetings[1].ID)

	first := res.Meetings[0]
	require.NotNil(t, first.Overview)
	assert.Equal(t, "Demoed welding cell", *first.Overview)
	require.NotNil(t, first.ActionItems)
	assert.Equal(t, "Send quote", *first.ActionItems)
	assert.Equal(t, []string{"welding"}, first.Keywords)
	assert.Equal(t, int64(1_760_000_000_000), first.Date.UnixMilli())

	second := res.Meetings[1]
	assert.Nil(t, second.Overview)
	assert.Nil(t, second.ActionItems)
	assert.Equal(t, []string{}, second.Keywords)
	assert.Equal(t, []string{}, second.Participants)
	ff.AssertExpectations(t)
}

func TestMeetingsLookup_SkipsBlankTerms(t *testing.T) {
	ff := new(mockFireflies)
	ff.On("SearchByTitle", mock.Anything, "Acme Fabrication", 10).Return([]fireflies.Transcript{}, nil)

	lead := &model.Lead{ID: "lead-2", Company: "Acme Fabrication"}
	res, err := NewMeetings(ff, nil).Lookup(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Meetings)
	ff.AssertNotCalled(t, "SearchByParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestMeetingsLookup_Error(t *testing.T) {
	ff := new(mockFireflies)
	ff.On("SearchByTitle", mock.Anything, mock.Anything, 10).Return(nil, errors.New("fireflies: unexpected status 500"))
	m := metrics.New()

	_, err := NewMeetings(ff, m).Lookup(context.Background(), testLead())
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LookupErrors.WithLabelValues("fireflies")))
}

func TestMeetingsLookup_NotConfigured(t *testing.T) {
	_, err := NewMeetings(nil, nil).Lookup(context.Background(), testLead())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
