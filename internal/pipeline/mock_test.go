package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/report"
	"github.com/sells-group/lead-intake/internal/store"
	"github.com/sells-group/lead-intake/internal/validate"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) UpdateLeadStatus(ctx context.Context, id string, upd store.StatusUpdate) (*model.Lead, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) CreateReport(ctx context.Context, r *model.Report) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) DeleteReport(ctx context.Context, leadID string) error {
	return m.Called(ctx, leadID).Error(0)
}

func (m *mockStore) AddSources(ctx context.Context, sources []model.Source) error {
	return m.Called(ctx, sources).Error(0)
}

func (m *mockStore) DeleteSources(ctx context.Context, leadID string) error {
	return m.Called(ctx, leadID).Error(0)
}

// --- Researcher Mock ---

type mockResearcher struct {
	mock.Mock
}

func (m *mockResearcher) Research(ctx context.Context, name, website string) (*model.ResearchResult, error) {
	args := m.Called(ctx, name, website)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ResearchResult), args.Error(1)
}

// --- ReportBuilder Mock ---

type mockBuilder struct {
	mock.Mock
}

func (m *mockBuilder) Build(ctx context.Context, lead *model.Lead, res *model.ResearchResult) (*report.Output, error) {
	args := m.Called(ctx, lead, res)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.Output), args.Error(1)
}

// --- Refiner Mock ---

type mockRefiner struct {
	mock.Mock
}

func (m *mockRefiner) Refine(ctx context.Context, lead *model.Lead, base validate.Result) validate.Result {
	args := m.Called(ctx, lead, base)
	return args.Get(0).(validate.Result)
}

// --- Notifier Mock ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) LeadProcessed(ctx context.Context, lead *model.Lead, rpt *model.Report) error {
	return m.Called(ctx, lead, rpt).Error(0)
}

// --- Enqueuer Mock ---

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, leadID string) error {
	return m.Called(ctx, leadID).Error(0)
}
