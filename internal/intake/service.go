package intake

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/metrics"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/store"
	"github.com/sells-group/lead-intake/pkg/slack"
)

// LeadStore is the persistence the intake service needs.
type LeadStore interface {
	CreateLead(ctx context.Context, lead *model.Lead) error
	FindLeadBySlackTimestamp(ctx context.Context, ts string) (*model.Lead, error)
}

// Enqueuer schedules a pending lead for processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, leadID string) error
}

// Guard claims a key once. Claim returns false when the key was already
// claimed, for example by an earlier delivery of the same Slack event.
// Release drops a claim so a redelivery is handled again.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Result describes what the intake service did with a message.
type Result string

const (
	ResultIgnored   Result = "ignored"
	ResultDuplicate Result = "duplicate"
	ResultPending   Result = "pending"
	ResultInvalid   Result = "invalid"
)

// Outcome is returned for every handled event or message.
type Outcome struct {
	Result   Result           `json:"result"`
	LeadID   string           `json:"lead_id,omitempty"`
	Status   model.LeadStatus `json:"status,omitempty"`
	Enqueued bool             `json:"enqueued"`
}

// Message is one lead-alert message, from a webhook or a saved export.
type Message struct {
	Text      string
	Timestamp string
	Channel   string
	EventID   string
}

// Config selects which Slack messages are lead alerts.
type Config struct {
	ChannelID string
	BotID     string
}

// Service turns lead-alert messages into stored leads.
type Service struct {
	store   LeadStore
	queue   Enqueuer
	guard   Guard
	metrics *metrics.Metrics
	cfg     Config
}

// Option configures a Service.
type Option func(*Service)

// WithGuard deduplicates webhook redeliveries by Slack event id.
func WithGuard(g Guard) Option {
	return func(s *Service) { s.guard = g }
}

// WithMetrics records ingest results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates an intake service. queue may be nil, in which case
// pending leads are stored but not scheduled.
func NewService(st LeadStore, queue Enqueuer, cfg Config, opts ...Option) *Service {
	s := &Service{store: st, queue: queue, cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	return s
}

// HandleEvent processes one Events API callback.
func (s *Service) HandleEvent(ctx context.Context, env *slack.Envelope) (*Outcome, error) {
	if env == nil || env.Type != slack.TypeEventCallback {
		return s.record(&Outcome{Result: ResultIgnored}), nil
	}
	ev := env.Event
	if !IsLeadAlert(ev, s.cfg.ChannelID, s.cfg.BotID) {
		return s.record(&Outcome{Result: ResultIgnored}), nil
	}

	key := "slack:event:" + env.EventID
	claimed := false
	if s.guard != nil && env.EventID != "" {
		ok, err := s.guard.Claim(ctx, key)
		switch {
		case err != nil:
			// The store still rejects duplicate timestamps.
			zap.L().Warn("intake: dedupe guard unavailable", zap.String("event_id", env.EventID), zap.Error(err))
		case !ok:
			zap.L().Debug("intake: duplicate event delivery", zap.String("event_id", env.EventID))
			return s.record(&Outcome{Result: ResultDuplicate}), nil
		default:
			claimed = true
		}
	}

	out, err := s.Ingest(ctx, Message{
		Text:      ev.Text,
		Timestamp: ev.Timestamp(),
		Channel:   ev.Channel,
		EventID:   env.EventID,
	})
	if err != nil && claimed {
		// Slack retries failed deliveries with the same event id.
		if rerr := s.guard.Release(ctx, key); rerr != nil {
			zap.L().Error("intake: release dedupe claim", zap.String("event_id", env.EventID), zap.Error(rerr))
		}
	}
	return out, err
}

// Ingest parses and stores one message. A message whose timestamp is
// already stored yields ResultDuplicate with the existing lead id.
func (s *Service) Ingest(ctx context.Context, msg Message) (*Outcome, error) {
	if msg.Timestamp != "" {
		existing, err := s.store.FindLeadBySlackTimestamp(ctx, msg.Timestamp)
		switch {
		case err == nil:
			return s.record(&Outcome{Result: ResultDuplicate, LeadID: existing.ID, Status: existing.Status}), nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, eris.Wrap(err, "intake: lookup slack timestamp")
		}
	}

	lead := ParseMessage(msg.Text).ToLead()
	lead.SlackTimestamp = msg.Timestamp
	lead.SlackChannel = msg.Channel
	lead.SlackEventID = msg.EventID

	if err := s.store.CreateLead(ctx, lead); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return s.record(&Outcome{Result: ResultDuplicate}), nil
		}
		return nil, eris.Wrap(err, "intake: create lead")
	}

	out := &Outcome{LeadID: lead.ID, Status: lead.Status, Result: ResultPending}
	if lead.Status == model.LeadStatusInvalid {
		out.Result = ResultInvalid
		zap.L().Info("intake: lead rejected",
			zap.String("lead_id", lead.ID),
			zap.String("company", lead.Company),
			zap.String("reason", lead.ValidationErrors),
		)
		return s.record(out), nil
	}

	zap.L().Info("intake: lead stored",
		zap.String("lead_id", lead.ID),
		zap.String("company", lead.Company),
		zap.Int("lead_score", lead.LeadScore),
	)
	if s.queue != nil {
		// A lead that fails to enqueue stays pending and can be reprocessed.
		if err := s.queue.Enqueue(ctx, lead.ID); err != nil {
			zap.L().Error("intake: enqueue failed", zap.String("lead_id", lead.ID), zap.Error(err))
		} else {
			out.Enqueued = true
		}
	}
	return s.record(out), nil
}

func (s *Service) record(out *Outcome) *Outcome {
	s.metrics.RecordIngest(string(out.Result))
	return out
}
