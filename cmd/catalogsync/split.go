package main

import (
	"catalogsync/internal/pipeline"

	"github.com/spf13/cobra"
)

func newSplitCmd(a *app) *cobra.Command {
	var opts pipeline.SplitOptions

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Write in-stock products as chunked CSV files for manual import",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			report, err := a.components.Runner().Split(ctx, opts)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return runError(ctx, err)
		},
	}

	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "Products per file (default SPLIT_CHUNK_SIZE)")
	cmd.Flags().StringVar(&opts.OutDir, "out", "", "Output directory (default SPLIT_OUTPUT_DIR)")
	return cmd
}
