package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/pipeline"
)

func TestLocal_RunsJobs(t *testing.T) {
	proc := &mockProcessor{}
	proc.On("Process", mock.Anything, "lead-1").Return(&pipeline.Result{LeadID: "lead-1", Status: "complete"}, nil).Once()
	proc.On("Process", mock.Anything, "lead-2").Return(nil, pipeline.ErrLeadNotFound).Once()

	l := NewLocal(proc, 2)
	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))
	require.NoError(t, l.Enqueue(context.Background(), "lead-2"))
	require.NoError(t, l.Close())

	proc.AssertExpectations(t)
}

func TestLocal_DetachesFromCallerContext(t *testing.T) {
	proc := &mockProcessor{}
	proc.On("Process", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "lead-1").
		Return(&pipeline.Result{Status: "complete"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	l := NewLocal(proc, 1)
	require.NoError(t, l.Enqueue(ctx, "lead-1"))
	cancel()
	require.NoError(t, l.Close())
	proc.AssertExpectations(t)
}

func TestLocal_RerunsLeadEnqueuedWhileRunning(t *testing.T) {
	proc := newGateProcessor()
	l := NewLocal(proc, 1)

	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))
	require.Eventually(t, func() bool { return proc.count("lead-1") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))
	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))

	close(proc.release)
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.leads) == 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Close())
	assert.Equal(t, 2, proc.count("lead-1"))
}

func TestLocal_SkipsLeadAlreadyQueued(t *testing.T) {
	proc := newGateProcessor()
	l := NewLocal(proc, 1)

	require.NoError(t, l.Enqueue(context.Background(), "lead-0"))
	require.Eventually(t, func() bool { return proc.count("lead-0") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))
	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))

	close(proc.release)
	require.NoError(t, l.Close())
	assert.Equal(t, 1, proc.count("lead-1"))
}

func TestLocal_RequeueAfterFinish(t *testing.T) {
	proc := newGateProcessor()
	close(proc.release)
	l := NewLocal(proc, 1)

	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.leads) == 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Enqueue(context.Background(), "lead-1"))
	require.NoError(t, l.Close())
	assert.Equal(t, 2, proc.count("lead-1"))
}

func TestLocal_QueueFull(t *testing.T) {
	proc := newGateProcessor()
	l := NewLocal(proc, 1)

	var full int
	for i := 0; i < localQueueSize+2; i++ {
		if err := l.Enqueue(context.Background(), fmt.Sprintf("lead-%d", i)); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			full++
		}
	}
	assert.Positive(t, full)

	close(proc.release)
	require.NoError(t, l.Close())
	assert.Equal(t, localQueueSize+2-full, proc.total())
}

func TestLocal_Closed(t *testing.T) {
	l := NewLocal(&mockProcessor{}, 0)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Enqueue(context.Background(), "lead-1"), ErrClosed)
}

func TestNew(t *testing.T) {
	d, err := New(&config.Config{Dispatch: config.DispatchConfig{Backend: "local", Concurrency: 2}}, &mockProcessor{})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, d)
	require.NoError(t, d.Close())

	d, err = New(&config.Config{
		Dispatch: config.DispatchConfig{Backend: "asynq", Queue: "leads"},
		Redis:    config.RedisConfig{URL: "redis://localhost:6379/0"},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AsynqClient{}, d)
	require.NoError(t, d.Close())

	_, err = New(&config.Config{Dispatch: config.DispatchConfig{Backend: "asynq"}}, nil)
	assert.Error(t, err)

	_, err = New(&config.Config{Dispatch: config.DispatchConfig{Backend: "sqs"}}, nil)
	assert.ErrorContains(t, err, "unknown backend")
}
