package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/intake"
)

var ingestProcess bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Store leads from a saved alert or a Slack channel export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		msgs, err := intake.ReadMessages(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		svc := intake.NewService(env.Store, nil, intake.Config{
			ChannelID: cfg.Slack.LeadChannelID,
			BotID:     cfg.Slack.LeadBotID,
		}, intake.WithMetrics(env.Metrics))

		counts := make(map[intake.Result]int)
		for _, msg := range msgs {
			if msg.Channel == "" {
				msg.Channel = cfg.Slack.LeadChannelID
			}
			out, err := svc.Ingest(ctx, msg)
			if err != nil {
				return eris.Wrapf(err, "ingest message %s", msg.Timestamp)
			}
			counts[out.Result]++

			if !ingestProcess || out.Result != intake.ResultPending {
				continue
			}
			res, err := env.Pipeline.Process(ctx, out.LeadID)
			if err != nil {
				// The lead stays pending and can be reprocessed later.
				zap.L().Error("ingest: processing failed", zap.String("lead_id", out.LeadID), zap.Error(err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", res.LeadID, res.Status, res.OpportunityScore)
		}

		zap.L().Info("ingest complete",
			zap.String("file", args[0]),
			zap.Int("messages", len(msgs)),
			zap.Int("pending", counts[intake.ResultPending]),
			zap.Int("invalid", counts[intake.ResultInvalid]),
			zap.Int("duplicate", counts[intake.ResultDuplicate]),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestProcess, "process", false, "run the pipeline for each new pending lead")
	rootCmd.AddCommand(ingestCmd)
}
