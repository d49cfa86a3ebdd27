package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/pipeline"
)

const (
	defaultTaskQueue = "lead-intake"
	// errTypeLeadNotFound marks the activity failure that must not retry.
	errTypeLeadNotFound = "LeadNotFound"
)

// WorkflowID is the temporal workflow id for a lead's run. Starting a second
// run while one is open is rejected by the server.
func WorkflowID(leadID string) string { return "lead-process-" + leadID }

// activityMaxAttempts is one: pipeline stages retry internally and a failed
// run resets the lead to pending.
const activityMaxAttempts = 1

// ProcessLeadWorkflow runs the pipeline as a single activity attempt.
func ProcessLeadWorkflow(ctx workflow.Context, leadID string) (*pipeline.Result, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("ProcessLeadWorkflow started", "lead_id", leadID)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        activityMaxAttempts,
			NonRetryableErrorTypes: []string{errTypeLeadNotFound},
		},
	})

	var a *Activities
	var res pipeline.Result
	if err := workflow.ExecuteActivity(ctx, a.ProcessLead, leadID).Get(ctx, &res); err != nil {
		logger.Error("ProcessLeadWorkflow failed", "lead_id", leadID, "error", err)
		return nil, err
	}
	logger.Info("ProcessLeadWorkflow completed", "lead_id", leadID, "status", string(res.Status))
	return &res, nil
}

// Activities holds the temporal activities for the pipeline.
type Activities struct {
	proc Processor
}

// NewActivities wraps proc for worker registration.
func NewActivities(proc Processor) *Activities {
	return &Activities{proc: proc}
}

// ProcessLead runs the pipeline for leadID.
func (a *Activities) ProcessLead(ctx context.Context, leadID string) (*pipeline.Result, error) {
	res, err := a.proc.Process(ctx, leadID)
	if err != nil {
		if errors.Is(err, pipeline.ErrLeadNotFound) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), errTypeLeadNotFound, err)
		}
		return nil, err
	}
	return res, nil
}

// DialTemporal connects to the temporal frontend described by cfg.
func DialTemporal(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "dispatch: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// Temporal starts one ProcessLeadWorkflow per enqueued lead.
type Temporal struct {
	client    client.Client
	taskQueue string
}

// NewTemporal creates a dispatcher on taskQueue.
func NewTemporal(c client.Client, taskQueue string) *Temporal {
	if taskQueue == "" {
		taskQueue = defaultTaskQueue
	}
	return &Temporal{client: c, taskQueue: taskQueue}
}

// Enqueue starts the workflow. A run already open for the lead is left in
// place.
func (t *Temporal) Enqueue(ctx context.Context, leadID string) error {
	run, err := t.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(leadID),
		TaskQueue: t.taskQueue,
	}, ProcessLeadWorkflow, leadID)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		zap.L().Debug("dispatch: workflow already running", zap.String("lead_id", leadID))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "dispatch: start workflow for lead %s", leadID)
	}
	zap.L().Debug("dispatch: workflow started",
		zap.String("lead_id", leadID),
		zap.String("run_id", run.GetRunID()),
	)
	return nil
}

// Close closes the temporal client.
func (t *Temporal) Close() error {
	t.client.Close()
	return nil
}

// TemporalWorker hosts the workflow and activities.
type TemporalWorker struct {
	worker worker.Worker
}

// NewTemporalWorker registers ProcessLeadWorkflow and its activities on
// taskQueue.
func NewTemporalWorker(c client.Client, taskQueue string, proc Processor, concurrency int) *TemporalWorker {
	if taskQueue == "" {
		taskQueue = defaultTaskQueue
	}
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: concurrency,
	})
	w.RegisterWorkflow(ProcessLeadWorkflow)
	w.RegisterActivity(NewActivities(proc))
	return &TemporalWorker{worker: w}
}

// Run polls the task queue until ctx is canceled.
func (w *TemporalWorker) Run(ctx context.Context) error {
	if err := w.worker.Start(); err != nil {
		return eris.Wrap(err, "dispatch: start temporal worker")
	}
	<-ctx.Done()
	w.worker.Stop()
	return nil
}
