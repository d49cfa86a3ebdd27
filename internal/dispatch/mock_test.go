package dispatch

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-intake/internal/pipeline"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, leadID string) (*pipeline.Result, error) {
	args := m.Called(ctx, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Result), args.Error(1)
}

// gateProcessor blocks every run until release is closed.
type gateProcessor struct {
	release chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

func newGateProcessor() *gateProcessor {
	return &gateProcessor{release: make(chan struct{}), calls: map[string]int{}}
}

func (g *gateProcessor) Process(_ context.Context, leadID string) (*pipeline.Result, error) {
	g.mu.Lock()
	g.calls[leadID]++
	g.mu.Unlock()
	<-g.release
	return &pipeline.Result{LeadID: leadID, Status: "complete"}, nil
}

func (g *gateProcessor) count(leadID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[leadID]
}

func (g *gateProcessor) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}
