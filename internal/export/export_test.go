package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/store"
)

type mockSource struct{ mock.Mock }

func (m *mockSource) ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

func (m *mockSource) GetReport(ctx context.Context, leadID string) (*model.Report, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func TestWriteFile(t *testing.T) {
	created := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	src := new(mockSource)
	src.On("ListLeads", mock.Anything, store.LeadFilter{Status: model.LeadStatusComplete, Limit: pageSize}).
		Return([]model.Lead{
			{ID: "a", Company: "Acme Fabrication", ContactName: "Jane Doe", LeadScore: 70, Status: model.LeadStatusComplete, CreatedAt: created},
			{ID: "b", Company: "Globex", Status: model.LeadStatusComplete},
		}, nil)
	src.On("GetReport", mock.Anything, "a").Return(&model.Report{OpportunityScore: 81, RecommendedRobot: "Thor"}, nil)
	src.On("GetReport", mock.Anything, "b").Return(nil, store.ErrNotFound)

	path := filepath.Join(t.TempDir(), "leads.xlsx")
	n, err := WriteFile(context.Background(), src, store.LeadFilter{Status: model.LeadStatusComplete, Limit: 5, Offset: 9}, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[SheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	cells := func(r int) []string {
		var out []string
		for _, c := range sheet.Rows[r].Cells {
			out = append(out, c.String())
		}
		return out
	}
	assert.Equal(t, Header, cells(0))

	first := cells(1)
	assert.Equal(t, "Acme Fabrication", first[1])
	assert.Equal(t, "70", first[14])
	assert.Equal(t, "complete", first[15])
	assert.Equal(t, "81", first[18])
	assert.Equal(t, "Thor", first[19])
	assert.Equal(t, "2026-03-04T15:00:00Z", first[20])

	second := cells(2)
	assert.Equal(t, "Globex", second[1])
	for _, v := range second[16:] {
		assert.Empty(t, v)
	}
}

func TestBuild_Pages(t *testing.T) {
	page := make([]model.Lead, pageSize)
	for i := range page {
		page[i] = model.Lead{ID: fmt.Sprintf("l%d", i)}
	}
	src := new(mockSource)
	src.On("ListLeads", mock.Anything, store.LeadFilter{Limit: pageSize}).Return(page, nil).Once()
	src.On("ListLeads", mock.Anything, store.LeadFilter{Limit: pageSize, Offset: pageSize}).
		Return([]model.Lead{{ID: "last"}}, nil).Once()
	src.On("GetReport", mock.Anything, mock.Anything).Return(nil, store.ErrNotFound)

	f, n, err := Build(context.Background(), src, store.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, pageSize+1, n)
	assert.Len(t, f.Sheet[SheetName].Rows, pageSize+2)
	src.AssertExpectations(t)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		src := new(mockSource)
		src.On("ListLeads", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
		_, _, err := Build(context.Background(), src, store.LeadFilter{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "export: list leads")
	})
	t.Run("report", func(t *testing.T) {
		src := new(mockSource)
		src.On("ListLeads", mock.Anything, mock.Anything).Return([]model.Lead{{ID: "x"}}, nil)
		src.On("GetReport", mock.Anything, "x").Return(nil, errors.New("db down"))
		_, _, err := Build(context.Background(), src, store.LeadFilter{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "report for lead x")
	})
}

func TestRow_Blank(t *testing.T) {
	row := Row(&model.Lead{ID: "z"}, nil)
	assert.Len(t, row, len(Header))
	assert.Equal(t, "0", row[14])
	assert.Equal(t, "", row[20])
}
