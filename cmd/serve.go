package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/dedupe"
	"github.com/sells-group/lead-intake/internal/dispatch"
	"github.com/sells-group/lead-intake/internal/intake"
	"github.com/sells-group/lead-intake/internal/lookup"
	"github.com/sells-group/lead-intake/internal/server"
	"github.com/sells-group/lead-intake/pkg/fireflies"
	"github.com/sells-group/lead-intake/pkg/slack"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Slack webhook and lead API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		queue, err := dispatch.New(cfg, env.Pipeline)
		if err != nil {
			return eris.Wrap(err, "init dispatcher")
		}
		defer func() { _ = queue.Close() }()

		intakeOpts := []intake.Option{intake.WithMetrics(env.Metrics)}
		if cfg.Redis.URL != "" {
			guard, err := dedupe.Connect(ctx, cfg.Redis.URL, cfg.Redis.TLSInsecure, dedupeTTL())
			if err != nil {
				return eris.Wrap(err, "connect dedupe guard")
			}
			defer func() { _ = guard.Close() }()
			intakeOpts = append(intakeOpts, intake.WithGuard(guard))
		}
		svc := intake.NewService(env.Store, queue, intake.Config{
			ChannelID: cfg.Slack.LeadChannelID,
			BotID:     cfg.Slack.LeadBotID,
		}, intakeOpts...)

		deps := server.Deps{
			Store:          env.Store,
			Pipeline:       env.Pipeline,
			Queue:          queue,
			Intake:         svc,
			Verifier:       slack.NewVerifier(cfg.Slack.SigningSecret),
			Team:           cfg.Sales.Team,
			Metrics:        env.Metrics,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}

		sf, err := initSalesforce()
		if err != nil {
			// The panel reports "not configured"; the rest of the API still serves.
			zap.L().Warn("salesforce unavailable, CRM panel disabled", zap.Error(err))
		} else if sf != nil {
			deps.CRM = lookup.NewCRM(sf, cfg.Salesforce.InstanceURL, env.Metrics)
		}
		if cfg.Fireflies.Key != "" {
			ff := fireflies.NewClient(cfg.Fireflies.Key, fireflies.WithBaseURL(cfg.Fireflies.BaseURL))
			deps.Meetings = lookup.NewMeetings(ff, env.Metrics)
		}

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}
		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("dispatch", cfg.Dispatch.Backend),
			zap.Bool("crm", deps.CRM != nil),
			zap.Bool("meetings", deps.Meetings != nil),
		)
		return server.New(deps).Run(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
