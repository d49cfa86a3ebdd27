// Package dispatch runs pipeline jobs asynchronously on a local goroutine
// pool, an asynq queue or a temporal workflow.
package dispatch

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/pipeline"
)

// Backend names accepted by dispatch.backend.
const (
	BackendLocal    = "local"
	BackendAsynq    = "asynq"
	BackendTemporal = "temporal"
)

var (
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("dispatch: closed")
	// ErrQueueFull is returned when the local queue has no room.
	ErrQueueFull = errors.New("dispatch: queue full")
)

// Processor runs the pipeline for one lead.
type Processor interface {
	Process(ctx context.Context, leadID string) (*pipeline.Result, error)
}

// Dispatcher schedules leads for processing. Enqueue returns once the job
// is accepted; it never waits for the run.
type Dispatcher interface {
	Enqueue(ctx context.Context, leadID string) error
	Close() error
}

// New builds the dispatcher selected by cfg.Dispatch.Backend. proc is only
// used by the local backend; queue backends hand work to a separate worker.
func New(cfg *config.Config, proc Processor) (Dispatcher, error) {
	switch cfg.Dispatch.Backend {
	case BackendLocal, "":
		return NewLocal(proc, cfg.Dispatch.Concurrency), nil
	case BackendAsynq:
		return NewAsynqClient(cfg.Redis.URL, cfg.Redis.TLSInsecure, cfg.Dispatch.Queue)
	case BackendTemporal:
		c, err := DialTemporal(cfg.Temporal)
		if err != nil {
			return nil, err
		}
		return NewTemporal(c, cfg.Temporal.TaskQueue), nil
	default:
		return nil, eris.Errorf("dispatch: unknown backend %q", cfg.Dispatch.Backend)
	}
}

// run processes one lead and logs the outcome. A missing lead is logged but
// not retried.
func run(ctx context.Context, proc Processor, leadID string) error {
	res, err := proc.Process(ctx, leadID)
	if err != nil {
		if errors.Is(err, pipeline.ErrLeadNotFound) {
			zap.L().Warn("dispatch: lead not found", zap.String("lead_id", leadID))
		} else {
			zap.L().Error("dispatch: processing failed", zap.String("lead_id", leadID), zap.Error(err))
		}
		return err
	}
	zap.L().Info("dispatch: lead processed",
		zap.String("lead_id", leadID),
		zap.String("status", string(res.Status)),
	)
	return nil
}
