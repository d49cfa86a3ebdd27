package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intake/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleLead(ts string) *model.Lead {
	return &model.Lead{
		Company:        "Acme Robotics",
		ContactName:    "Jane Smith",
		JobTitle:       "VP Operations",
		Email:          "jane@acme.com",
		Phone:          "+15551234567",
		UseCase:        "Warehouse cleaning",
		LeadScore:      72,
		RawMessage:     "Company: Acme Robotics",
		SlackTimestamp: ts,
		SlackChannel:   "C05B5QBJVAM",
	}
}

func TestSQLite_CreateAndGetLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := sampleLead("1700000000.000100")
	require.NoError(t, st.CreateLead(ctx, lead))
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, model.LeadStatusPending, lead.Status)
	assert.Equal(t, model.StageUnassigned, lead.PipelineStage)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", got.Company)
	assert.Equal(t, 72, got.LeadScore)
	assert.Equal(t, "1700000000.000100", got.SlackTimestamp)
	assert.Empty(t, got.ValidationErrors)
	assert.Nil(t, got.AssignedAt)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_GetLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetLead(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_CreateLead_DuplicateSlackTimestamp(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateLead(ctx, sampleLead("1700000000.000200")))
	err := st.CreateLead(ctx, sampleLead("1700000000.000200"))
	assert.ErrorIs(t, err, ErrDuplicate)

	// Leads without a slack timestamp never collide.
	require.NoError(t, st.CreateLead(ctx, sampleLead("")))
	require.NoError(t, st.CreateLead(ctx, sampleLead("")))
}

func TestSQLite_FindLeadBySlackTimestamp(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := sampleLead("1700000000.000300")
	require.NoError(t, st.CreateLead(ctx, lead))

	got, err := st.FindLeadBySlackTimestamp(ctx, "1700000000.000300")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)

	_, err = st.FindLeadBySlackTimestamp(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateLeadStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := sampleLead("")
	require.NoError(t, st.CreateLead(ctx, lead))

	got, err := st.UpdateLeadStatus(ctx, lead.ID, StatusUpdate{
		Status:           model.LeadStatusInvalid,
		ValidationErrors: Note("Test submission detected"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusInvalid, got.Status)
	assert.Equal(t, "Test submission detected", got.ValidationErrors)

	// A nil note leaves validation_errors untouched.
	got, err = st.UpdateLeadStatus(ctx, lead.ID, StatusUpdate{Status: model.LeadStatusComplete})
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusComplete, got.Status)
	assert.Equal(t, "Test submission detected", got.ValidationErrors)

	// An empty note clears it.
	got, err = st.UpdateLeadStatus(ctx, lead.ID, StatusUpdate{Status: model.LeadStatusPending, ValidationErrors: Note("")})
	require.NoError(t, err)
	assert.Empty(t, got.ValidationErrors)

	_, err = st.UpdateLeadStatus(ctx, "missing", StatusUpdate{Status: model.LeadStatusPending})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := sampleLead("1")
	b := sampleLead("2")
	b.Company = "Globex 100% Corp"
	b.Status = model.LeadStatusInvalid
	c := sampleLead("3")
	c.Company = "Initech"
	for _, l := range []*model.Lead{a, b, c} {
		require.NoError(t, st.CreateLead(ctx, l))
	}

	all, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	invalid, err := st.ListLeads(ctx, LeadFilter{Status: model.LeadStatusInvalid})
	require.NoError(t, err)
	require.Len(t, invalid, 1)
	assert.Equal(t, b.ID, invalid[0].ID)

	search, err := st.ListLeads(ctx, LeadFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "Globex 100% Corp", search[0].Company)

	search, err = st.ListLeads(ctx, LeadFilter{Search: "INITECH"})
	require.NoError(t, err)
	assert.Len(t, search, 1)

	page, err := st.ListLeads(ctx, LeadFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = st.ListLeads(ctx, LeadFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLite_AssignUnassignStage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := sampleLead("")
	require.NoError(t, st.CreateLead(ctx, lead))

	at := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	got, err := st.AssignLead(ctx, lead.ID, model.Assignment{
		Name:          "Dana Reyes",
		Email:         "dana@example.org",
		SlackID:       "U123",
		PipelineStage: model.StageNew,
		AssignedAt:    at,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", got.AssignedToName)
	assert.Equal(t, "U123", got.AssignedToSlackID)
	assert.Equal(t, model.StageNew, got.PipelineStage)
	require.NotNil(t, got.AssignedAt)
	assert.True(t, at.Equal(*got.AssignedAt))

	mine, err := st.ListLeads(ctx, LeadFilter{AssignedToEmail: "DANA@example.org"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	got, err = st.UpdatePipelineStage(ctx, lead.ID, model.StageQualified)
	require.NoError(t, err)
	assert.Equal(t, model.StageQualified, got.PipelineStage)
	assert.Equal(t, "Dana Reyes", got.AssignedToName)

	got, err = st.UnassignLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AssignedToName)
	assert.Empty(t, got.AssignedToEmail)
	assert.Nil(t, got.AssignedAt)
	assert.Equal(t, model.StageUnassigned, got.PipelineStage)

	_, err = st.UpdatePipelineStage(ctx, "missing", model.StageWon)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ReportLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := sampleLead("")
	require.NoError(t, st.CreateLead(ctx, lead))

	r := &model.Report{
		LeadID:                   lead.ID,
		CompanySummary:           "Acme builds things.",
		RecommendedRobot:         "Scrubber 50 Pro",
		RecommendationConfidence: 8,
		OpportunityScore:         78,
		TalkingPoints:            model.TextList{"Labor savings", "24/7 cleaning"},
		ROIAngles:                model.TextList{"Reduce overtime"},
	}
	require.NoError(t, st.CreateReport(ctx, r))
	assert.NotEmpty(t, r.ID)

	got, err := st.GetReport(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Scrubber 50 Pro", got.RecommendedRobot)
	assert.Equal(t, 78, got.OpportunityScore)
	assert.Equal(t, model.TextList{"Labor savings", "24/7 cleaning"}, got.TalkingPoints)
	assert.Equal(t, model.TextList{}, got.RiskFactors)

	assert.ErrorIs(t, st.CreateReport(ctx, &model.Report{LeadID: lead.ID}), ErrDuplicate)

	require.NoError(t, st.DeleteReport(ctx, lead.ID))
	_, err = st.GetReport(ctx, lead.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, st.DeleteReport(ctx, lead.ID))
}

func TestSQLite_Sources(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := sampleLead("")
	require.NoError(t, st.CreateLead(ctx, lead))

	require.NoError(t, st.AddSources(ctx, nil))

	sources := []model.Source{
		{LeadID: lead.ID, Title: "Acme expands", URL: "https://news.example.com/a", Description: "Expansion"},
		{LeadID: lead.ID, Title: "Acme hires", URL: "https://news.example.com/b"},
	}
	require.NoError(t, st.AddSources(ctx, sources))
	assert.NotEmpty(t, sources[0].ID)

	got, err := st.ListSources(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Acme expands", got[0].Title)
	assert.Equal(t, "Expansion", got[0].Description)
	assert.Empty(t, got[1].Description)

	require.NoError(t, st.DeleteSources(ctx, lead.ID))
	got, err = st.ListSources(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_CustomerLearningUpsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.UpsertCustomerLearning(ctx, model.CustomerLearning{
		CompanyName: "Acme Robotics",
		Industry:    "Logistics",
		Insights:    "Loved the demo",
	})
	require.NoError(t, err)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	updated, err := st.UpsertCustomerLearning(ctx, model.CustomerLearning{
		CompanyName: "ACME ROBOTICS",
		Insights:    "Signed a pilot",
		Outcome:     "won",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Loved the demo"+model.InsightSeparator+"Signed a pilot", updated.Insights)
	assert.Equal(t, "Logistics", updated.Industry)
	assert.Equal(t, "won", updated.Outcome)
	assert.False(t, updated.CreatedAt.Equal(updated.UpdatedAt))

	_, err = st.UpsertCustomerLearning(ctx, model.CustomerLearning{CompanyName: "Globex", Insights: "Cold"})
	require.NoError(t, err)

	entries, err := st.ListCustomerLearning(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Acme Robotics", entries[0].CompanyName)

	entries, err = st.ListCustomerLearning(ctx, "")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSQLite_SourcesRequireLead(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := sampleLead("")
	require.NoError(t, st.CreateLead(ctx, lead))
	require.NoError(t, st.AddSources(ctx, []model.Source{{LeadID: lead.ID, URL: "https://x.example"}}))

	err := st.AddSources(ctx, []model.Source{{LeadID: "missing", URL: "https://x.example"}})
	assert.Error(t, err)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%acme%`, likePattern("ACME"))
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
}
