package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/config"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List configured jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := invoke[*config.Config](ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cfg.Jobs))
			for _, j := range cfg.PipelineJobs() {
				rows = append(rows, []string{
					j.Name,
					string(j.EntityType),
					yesNo(j.Enabled),
					strconv.Itoa(j.WindowDays),
					strconv.Itoa(j.MaxPages),
					strconv.Itoa(j.BatchSize),
					strconv.FormatFloat(j.Policy.MinPopularity, 'f', -1, 64),
					strconv.Itoa(j.Policy.MinVoteCount),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Name", "Type", "Enabled", "Window days", "Max pages", "Batch", "Min popularity", "Min votes"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
				nil,
			))
			return nil
		},
	}
}
