package dispatch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/pipeline"
)

// TaskProcessLead is the asynq task type for a pipeline run.
const TaskProcessLead = "lead:process"

const (
	defaultQueue        = "leads"
	taskMaxRetry        = 0 // stages retry on their own; a failed run leaves the lead pending
	taskTimeout         = 10 * time.Minute
	defaultAsynqWorkers = 4
)

// ProcessLeadPayload is the JSON body of a TaskProcessLead task.
type ProcessLeadPayload struct {
	LeadID string `json:"lead_id"`
}

// NewProcessLeadTask builds the task for leadID.
func NewProcessLeadTask(leadID string) (*asynq.Task, error) {
	data, err := json.Marshal(ProcessLeadPayload{LeadID: leadID})
	if err != nil {
		return nil, eris.Wrap(err, "dispatch: marshal payload")
	}
	return asynq.NewTask(TaskProcessLead, data), nil
}

// ParseProcessLeadPayload decodes a TaskProcessLead task.
func ParseProcessLeadPayload(task *asynq.Task) (ProcessLeadPayload, error) {
	var payload ProcessLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ProcessLeadPayload{}, eris.Wrap(err, "dispatch: decode payload")
	}
	if payload.LeadID == "" {
		return ProcessLeadPayload{}, eris.New("dispatch: payload missing lead_id")
	}
	return payload, nil
}

// TaskID is the asynq dedupe key for leadID.
func TaskID(leadID string) string { return "process:" + leadID }

// AsynqClient enqueues pipeline runs on redis.
type AsynqClient struct {
	client *asynq.Client
	queue  string
}

// NewAsynqClient connects to redisURL.
func NewAsynqClient(redisURL string, tlsInsecure bool, queue string) (*AsynqClient, error) {
	opt, err := RedisClientOpt(redisURL, tlsInsecure)
	if err != nil {
		return nil, err
	}
	if queue == "" {
		queue = defaultQueue
	}
	return &AsynqClient{client: asynq.NewClient(opt), queue: queue}, nil
}

func taskOptions(queue, leadID string) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(queue),
		asynq.TaskID(TaskID(leadID)),
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(taskTimeout),
	}
}

// Enqueue schedules leadID. A task still pending or running for the lead is
// left in place.
func (c *AsynqClient) Enqueue(ctx context.Context, leadID string) error {
	task, err := NewProcessLeadTask(leadID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, taskOptions(c.queue, leadID)...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		zap.L().Debug("dispatch: lead already queued", zap.String("lead_id", leadID))
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "dispatch: enqueue lead %s", leadID)
	}
	zap.L().Debug("dispatch: task enqueued", zap.String("lead_id", leadID), zap.String("task_id", info.ID))
	return nil
}

// Close releases the redis connection.
func (c *AsynqClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// AsynqWorker consumes TaskProcessLead tasks.
type AsynqWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	proc   Processor
}

// NewAsynqWorker creates a worker serving queue with concurrency handlers.
func NewAsynqWorker(redisURL string, tlsInsecure bool, queue string, concurrency int, proc Processor) (*AsynqWorker, error) {
	opt, err := RedisClientOpt(redisURL, tlsInsecure)
	if err != nil {
		return nil, err
	}
	if queue == "" {
		queue = defaultQueue
	}
	if concurrency < 1 {
		concurrency = defaultAsynqWorkers
	}

	w := &AsynqWorker{
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: concurrency,
			Queues:      map[string]int{queue: 1},
		}),
		mux:  asynq.NewServeMux(),
		proc: proc,
	}
	w.mux.HandleFunc(TaskProcessLead, w.handleProcessLead)
	return w, nil
}

func (w *AsynqWorker) handleProcessLead(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseProcessLeadPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	err = run(ctx, w.proc, payload.LeadID)
	if errors.Is(err, pipeline.ErrLeadNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run serves tasks until ctx is canceled.
func (w *AsynqWorker) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()
	if err := w.server.Run(w.mux); err != nil {
		return eris.Wrap(err, "dispatch: asynq worker")
	}
	return nil
}

// RedisClientOpt converts a redis URL into asynq connection options.
// tlsInsecure skips certificate verification, for managed redis behind
// self-signed certificates.
func RedisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, eris.New("dispatch: redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, eris.Wrap(err, "dispatch: parse redis url")
	}

	var tlsConfig *tls.Config
	switch {
	case opt.TLSConfig != nil:
		tlsConfig = opt.TLSConfig.Clone()
		if tlsInsecure {
			tlsConfig.InsecureSkipVerify = true //nolint:gosec
		}
	case tlsInsecure:
		tlsConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
