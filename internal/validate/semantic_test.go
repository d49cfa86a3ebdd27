package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(s string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{Content: []anthropic.ContentBlock{{Type: "text", Text: s}}}
}

var base = Result{IsValid: false, Reason: "Generic company name (possible test/spam)", Score: 55}

func TestSemantic_Refine(t *testing.T) {
	llm := &mockAnthropicClient{}
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.MaxTokens == 256 && req.Temperature != nil && *req.Temperature == 0.2 &&
			req.Model == "claude-test" && len(req.Messages) == 1
	})).Return(textResponse("```json\n{\"isValid\": true, \"reason\": \"Real plant\", \"score\": 81}\n```"), nil)

	res := NewSemantic(llm, "claude-test", "").Refine(context.Background(), completeLead(), base)
	assert.Equal(t, Result{IsValid: true, Reason: "Real plant", Score: 81}, res)
	llm.AssertExpectations(t)
}

func TestSemantic_MissingFieldsDefault(t *testing.T) {
	llm := &mockAnthropicClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"score": 140}`), nil)

	res := NewSemantic(llm, "m", "").Refine(context.Background(), completeLead(), base)
	assert.False(t, res.IsValid)
	assert.Equal(t, "Unable to determine", res.Reason)
	assert.Equal(t, 100, res.Score)
}

func TestSemantic_FallsBackToBase(t *testing.T) {
	tests := []struct {
		name string
		resp *anthropic.MessageResponse
		err  error
	}{
		{"request error", nil, errors.New("overloaded")},
		{"not json", textResponse("I think this lead is fine."), nil},
		{"empty", textResponse(""), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockAnthropicClient{}
			llm.On("CreateMessage", mock.Anything, mock.Anything).Return(tt.resp, tt.err)
			res := NewSemantic(llm, "m", "").Refine(context.Background(), completeLead(), base)
			assert.Equal(t, base, res)
		})
	}
}

func TestSemantic_NilClient(t *testing.T) {
	var s *Semantic
	assert.Equal(t, base, s.Refine(context.Background(), completeLead(), base))
	assert.Equal(t, base, NewSemantic(nil, "m", "").Refine(context.Background(), completeLead(), base))
}

func TestSemantic_ReferenceInPrompt(t *testing.T) {
	s := NewSemantic(nil, "m", "Arm X: 18kg payload")
	assert.Contains(t, s.systemPrompt(), "Product Reference:\nArm X: 18kg payload")
	assert.NotContains(t, NewSemantic(nil, "m", "").systemPrompt(), "Product Reference")
}

func TestLoadReference(t *testing.T) {
	assert.Empty(t, LoadReference(""))
	assert.Empty(t, LoadReference(filepath.Join(t.TempDir(), "missing.md")))

	path := filepath.Join(t.TempDir(), "ref.md")
	require.NoError(t, os.WriteFile(path, []byte("catalog"), 0o644))
	assert.Equal(t, "catalog", LoadReference(path))
}

func TestLeadSummary(t *testing.T) {
	got := LeadSummary(&model.Lead{Company: "Acme", ContactName: "Jo", LeadScore: 12})
	assert.Contains(t, got, "Company: Acme")
	assert.Contains(t, got, "Contact: Jo (No title)")
	assert.Contains(t, got, "Email: N/A")
	assert.Contains(t, got, "Lead Score: 12")
}
