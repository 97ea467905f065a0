package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/di/providers"
	"github.com/reelfeed/reelfeed/internal/domain"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit int
		date  string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			storeHandle, err := invoke[*providers.StoreHandle](ctx)
			if err != nil {
				return err
			}

			var runs []*domain.RunMetadata
			if date != "" {
				runs, err = storeHandle.RunsOn(cmd.Context(), date)
			} else {
				runs, err = storeHandle.RecentRuns(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				t := r.Totals()
				elapsed := ""
				if !r.FinishedAt.IsZero() {
					elapsed = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
				}
				rows = append(rows, []string{
					r.RunID,
					r.Kind,
					r.RunDate,
					string(r.Status),
					yesNo(r.DryRun),
					strconv.Itoa(len(r.Jobs)),
					strconv.Itoa(t.DocumentsUpserted),
					strconv.Itoa(t.ErrorsCount),
					elapsed,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Kind", "Date", "Status", "Dry run", "Jobs", "Upserted", "Errors", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of recent runs")
	cmd.Flags().StringVar(&date, "date", "", "Only runs started on this day (YYYY-MM-DD)")
	return cmd
}
