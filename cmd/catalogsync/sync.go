package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"catalogsync/internal/models"
	"catalogsync/internal/pipeline"

	"github.com/spf13/cobra"
)

func newSyncCmd(a *app) *cobra.Command {
	var opts pipeline.SyncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create every in-stock catalog product that the store does not have yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 0 {
				return withCode(exitUsage, fmt.Errorf("--limit must be >= 0"))
			}
			ctx := cmd.Context()
			report, err := a.components.Runner().Sync(ctx, opts)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return runError(ctx, err)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Send at most this many sellable products (0 = all)")
	return cmd
}

func printReport(w io.Writer, r *pipeline.Report) {
	s := r.Stats
	fmt.Fprintf(w, "\nRun %s (%s) %s\n", r.Run.ID, r.Run.Kind, r.Run.Status)
	if r.Run.Source != "" {
		fmt.Fprintf(w, "  source:        %s (%s, %s schema)\n", r.Run.Source, r.Run.Origin, r.Run.Schema)
	}
	fmt.Fprintf(w, "  sellable:      %d\n", s.Sellable)
	fmt.Fprintf(w, "  out of stock:  %d\n", s.OutOfStock)

	if r.Run.Kind == models.RunKindSync {
		fmt.Fprintf(w, "  processed:     %d\n", s.Processed)
		fmt.Fprintf(w, "  created:       %d\n", s.Created)
		fmt.Fprintf(w, "  duplicates:    %d\n", s.Duplicates)
		fmt.Fprintf(w, "  errors:        %d\n", s.ErrorCount())
		kinds := make([]string, 0, len(s.Errors))
		for k := range s.Errors {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "    %-12s %d\n", k, s.Errors[k])
		}
		fmt.Fprintf(w, "  inventory:     %d set, %d failed, %d skipped\n", s.InventoryUpdated, s.InventoryErrors, s.InventorySkipped)
		fmt.Fprintf(w, "  category:      %d assigned, %d product type, %d failed\n", s.CategoryAssigned, s.CategoryFallback, s.CategoryErrors)
		fmt.Fprintf(w, "  metadata:      %d attached, %d failed\n", s.MetadataAttached, s.MetadataErrors)
		fmt.Fprintf(w, "  success rate:  %.1f%%\n", s.SuccessRate())
	}
	for _, f := range r.Files {
		fmt.Fprintf(w, "  wrote:         %s\n", f)
	}
	fmt.Fprintf(w, "  duration:      %s\n", s.Duration().Round(time.Millisecond))
	if r.Run.Message != "" {
		fmt.Fprintf(w, "  message:       %s\n", r.Run.Message)
	}
}
