package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/metrics"
	"github.com/sells-group/lead-intake/internal/notify"
	"github.com/sells-group/lead-intake/internal/pipeline"
	"github.com/sells-group/lead-intake/internal/report"
	"github.com/sells-group/lead-intake/internal/research"
	"github.com/sells-group/lead-intake/internal/store"
	"github.com/sells-group/lead-intake/internal/validate"
	anthropicpkg "github.com/sells-group/lead-intake/pkg/anthropic"
	"github.com/sells-group/lead-intake/pkg/notion"
	"github.com/sells-group/lead-intake/pkg/salesforce"
	"github.com/sells-group/lead-intake/pkg/slack"
	"github.com/sells-group/lead-intake/pkg/tavily"
)

// appEnv holds the store, metrics and pipeline shared by every command
// that processes leads.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for mode, opens and migrates the store, builds
// the API clients and assembles the Pipeline. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	p, m, err := initPipeline(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &appEnv{Store: st, Pipeline: p, Metrics: m}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initPipeline(st store.Store) (*pipeline.Pipeline, *metrics.Metrics, error) {
	llm := initLLM()
	search := initSearch()

	catalog, err := report.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}
	reference := validate.LoadReference(cfg.Validation.ReferencePath)
	builder := report.NewBuilder(llm, cfg.Anthropic.Model,
		report.WithCatalog(catalog),
		report.WithReference(reference),
	)

	m := metrics.New()
	opts := []pipeline.Option{
		pipeline.WithConfig(cfg),
		pipeline.WithMetrics(m),
	}
	if cfg.Validation.Semantic && llm != nil {
		opts = append(opts, pipeline.WithSemantic(validate.NewSemantic(llm, cfg.Anthropic.Model, reference)))
	} else {
		zap.L().Debug("semantic validation disabled")
	}
	if n := initNotifier(); len(n) > 0 {
		opts = append(opts, pipeline.WithNotifier(n))
	}

	return pipeline.New(st, research.New(search), builder, opts...), m, nil
}

// initLLM returns nil without an API key, so reports take the fallback
// path and the semantic pass is skipped.
func initLLM() anthropicpkg.Client {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic key not set, reports use the rule-based fallback")
		return nil
	}
	return anthropicpkg.NewClient(cfg.Anthropic.Key)
}

// initSearch returns nil without an API key, so research yields the
// minimal result without any requests.
func initSearch() tavily.Client {
	if cfg.Tavily.Key == "" {
		zap.L().Warn("tavily key not set, research disabled")
		return nil
	}
	return tavily.NewClient(cfg.Tavily.Key,
		tavily.WithBaseURL(cfg.Tavily.BaseURL),
		tavily.WithRateLimit(cfg.Tavily.RPS),
	)
}

// initNotifier returns the completion sinks that have credentials.
func initNotifier() notify.Multi {
	var n notify.Multi
	if cfg.Slack.BotToken != "" {
		client := slack.NewClient(cfg.Slack.BotToken, slack.WithBaseURL(cfg.Slack.BaseURL))
		n = append(n, notify.NewSlack(client, notify.WithConsoleURL(cfg.Server.ConsoleURL)))
	}
	if cfg.Notion.Token != "" && cfg.Notion.LeadDB != "" {
		n = append(n, notify.NewNotion(notion.NewClient(cfg.Notion.Token), cfg.Notion.LeadDB))
		zap.L().Info("notion lead sink enabled")
	}
	return n
}

// initSalesforce connects to Salesforce when credentials are configured.
// A nil client means the CRM panel is disabled.
func initSalesforce() (salesforce.Client, error) {
	if !cfg.Salesforce.Enabled() {
		zap.L().Debug("salesforce not configured, CRM panel disabled")
		return nil, nil
	}
	return salesforce.Connect(
		cfg.Salesforce.LoginURL,
		cfg.Salesforce.Username,
		cfg.Salesforce.ClientID,
		cfg.Salesforce.KeyPath,
		salesforce.WithRateLimit(cfg.Salesforce.RPS),
	)
}

func dedupeTTL() time.Duration {
	return time.Duration(cfg.Redis.DedupeTTL) * time.Hour
}
