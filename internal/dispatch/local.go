package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultConcurrency = 4
	localQueueSize     = 256
	localJobTimeout    = 10 * time.Minute
)

// Local runs jobs on a bounded pool of goroutines inside the process. A lead
// already waiting in the queue is not queued again. A lead enqueued while it
// runs is run once more after the current run finishes.
type Local struct {
	proc    Processor
	jobs    chan string
	timeout time.Duration

	mu     sync.Mutex
	leads  map[string]*leadState
	closed bool
	wg     sync.WaitGroup
}

type leadState struct {
	running bool
	rerun   bool
}

// NewLocal starts concurrency workers. Values below 1 use the default of 4.
func NewLocal(proc Processor, concurrency int) *Local {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	l := &Local{
		proc:     proc,
		jobs:     make(chan string, localQueueSize),
		timeout:  localJobTimeout,
		leads:    make(map[string]*leadState),
	}
	l.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go l.worker()
	}
	return l
}

// Enqueue accepts leadID without blocking. The job runs on a context
// detached from ctx so it outlives the request that queued it.
func (l *Local) Enqueue(_ context.Context, leadID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if st, ok := l.leads[leadID]; ok {
		if st.running {
			st.rerun = true
			zap.L().Debug("dispatch: lead running, rerun after it finishes", zap.String("lead_id", leadID))
		} else {
			zap.L().Debug("dispatch: lead already queued", zap.String("lead_id", leadID))
		}
		return nil
	}
	select {
	case l.jobs <- leadID:
		l.leads[leadID] = &leadState{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (l *Local) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.jobs)
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}

func (l *Local) worker() {
	defer l.wg.Done()
	for leadID := range l.jobs {
		l.mu.Lock()
		if st, ok := l.leads[leadID]; ok {
			st.running = true
		}
		l.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		_ = run(ctx, l.proc, leadID)
		cancel()

		l.finish(leadID)
	}
}

// finish clears leadID's state, queueing it again when a rerun was asked
// for during the run.
func (l *Local) finish(leadID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.leads[leadID]
	delete(l.leads, leadID)
	if st == nil || !st.rerun {
		return
	}
	if l.closed {
		zap.L().Warn("dispatch: dropping rerun, dispatcher closed", zap.String("lead_id", leadID))
		return
	}
	select {
	case l.jobs <- leadID:
		l.leads[leadID] = &leadState{}
	default:
		zap.L().Error("dispatch: queue full, dropping rerun", zap.String("lead_id", leadID))
	}
}
