package server

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-intake/internal/intake"
	"github.com/sells-group/lead-intake/internal/lookup"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/pipeline"
	"github.com/sells-group/lead-intake/internal/store"
	"github.com/sells-group/lead-intake/pkg/slack"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) lead(args mock.Arguments) (*model.Lead, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return m.lead(m.Called(ctx, id))
}

func (m *mockStore) ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

func (m *mockStore) UpdateLeadStatus(ctx context.Context, id string, upd store.StatusUpdate) (*model.Lead, error) {
	return m.lead(m.Called(ctx, id, upd))
}

func (m *mockStore) AssignLead(ctx context.Context, id string, a model.Assignment) (*model.Lead, error) {
	return m.lead(m.Called(ctx, id, a))
}

func (m *mockStore) UnassignLead(ctx context.Context, id string) (*model.Lead, error) {
	return m.lead(m.Called(ctx, id))
}

func (m *mockStore) UpdatePipelineStage(ctx context.Context, id, stage string) (*model.Lead, error) {
	return m.lead(m.Called(ctx, id, stage))
}

func (m *mockStore) GetReport(ctx context.Context, leadID string) (*model.Report, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *mockStore) ListSources(ctx context.Context, leadID string) ([]model.Source, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Source), args.Error(1)
}

func (m *mockStore) ListCustomerLearning(ctx context.Context, company string) ([]model.CustomerLearning, error) {
	args := m.Called(ctx, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CustomerLearning), args.Error(1)
}

func (m *mockStore) UpsertCustomerLearning(ctx context.Context, cl model.CustomerLearning) (*model.CustomerLearning, error) {
	args := m.Called(ctx, cl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CustomerLearning), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPipeline struct{ mock.Mock }

func (m *mockPipeline) Process(ctx context.Context, leadID string) (*pipeline.Result, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

func (m *mockPipeline) Reprocess(ctx context.Context, leadID string, q pipeline.Enqueuer) (*model.Lead, error) {
	args := m.Called(ctx, leadID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

type mockIntake struct{ mock.Mock }

func (m *mockIntake) HandleEvent(ctx context.Context, env *slack.Envelope) (*intake.Outcome, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intake.Outcome), args.Error(1)
}

type mockCRM struct{ mock.Mock }

func (m *mockCRM) Lookup(ctx context.Context, lead *model.Lead) (*lookup.CRMResult, error) {
	args := m.Called(ctx, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lookup.CRMResult), args.Error(1)
}

type mockMeetings struct{ mock.Mock }

func (m *mockMeetings) Lookup(ctx context.Context, lead *model.Lead) (*lookup.MeetingsResult, error) {
	args := m.Called(ctx, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lookup.MeetingsResult), args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(ctx context.Context, leadID string) error {
	return m.Called(ctx, leadID).Error(0)
}
