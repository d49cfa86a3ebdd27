package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/dispatch"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued leads from asynq or temporal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := cfg.Dispatch.Concurrency
		if workerConcurrency > 0 {
			concurrency = workerConcurrency
		}
		zap.L().Info("starting worker",
			zap.String("backend", cfg.Dispatch.Backend),
			zap.Int("concurrency", concurrency),
		)

		switch cfg.Dispatch.Backend {
		case dispatch.BackendAsynq:
			w, err := dispatch.NewAsynqWorker(cfg.Redis.URL, cfg.Redis.TLSInsecure, cfg.Dispatch.Queue, concurrency, env.Pipeline)
			if err != nil {
				return eris.Wrap(err, "init asynq worker")
			}
			return w.Run(ctx)
		case dispatch.BackendTemporal:
			c, err := dispatch.DialTemporal(cfg.Temporal)
			if err != nil {
				return err
			}
			defer c.Close()
			return dispatch.NewTemporalWorker(c, cfg.Temporal.TaskQueue, env.Pipeline, concurrency).Run(ctx)
		default:
			return eris.Errorf("worker: backend %q has no queue to consume", cfg.Dispatch.Backend)
		}
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "parallel jobs (overrides dispatch.concurrency)")
	rootCmd.AddCommand(workerCmd)
}
