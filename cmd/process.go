package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <lead-id>",
	Short: "Run the pipeline for one lead and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Process(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "process lead %s", args[0])
		}
		zap.L().Info("lead processed",
			zap.String("lead_id", res.LeadID),
			zap.String("status", string(res.Status)),
			zap.Int("opportunity_score", res.OpportunityScore),
		)
		return printJSON(cmd, res)
	},
}

var reprocessNow bool

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <lead-id>",
	Short: "Clear a lead's report and reset it to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Pipeline.Reprocess(ctx, args[0], nil)
		if err != nil {
			return eris.Wrapf(err, "reprocess lead %s", args[0])
		}
		if !reprocessNow {
			fmt.Fprintf(cmd.OutOrStdout(), "lead %s (%s) reset to %s\n", lead.ID, lead.Company, lead.Status)
			return nil
		}

		res, err := env.Pipeline.Process(ctx, lead.ID)
		if err != nil {
			return eris.Wrapf(err, "process lead %s", lead.ID)
		}
		return printJSON(cmd, res)
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode result")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	reprocessCmd.Flags().BoolVar(&reprocessNow, "now", false, "run the pipeline immediately after resetting")
	rootCmd.AddCommand(processCmd, reprocessCmd)
}
