package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/export"
	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/store"
)

var (
	exportStatus string
	exportStage  string
)

var exportCmd = &cobra.Command{
	Use:   "export <path.xlsx>",
	Short: "Write leads and their report headlines to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter := store.LeadFilter{
			Status:        model.LeadStatus(exportStatus),
			PipelineStage: exportStage,
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return eris.Errorf("invalid --status %q", exportStatus)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		n, err := export.WriteFile(ctx, st, filter, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("export complete", zap.String("path", args[0]), zap.Int("leads", n))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only export leads with this status")
	exportCmd.Flags().StringVar(&exportStage, "stage", "", "only export leads in this pipeline stage")
	rootCmd.AddCommand(exportCmd)
}
