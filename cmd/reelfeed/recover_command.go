package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/recovery"
	"github.com/reelfeed/reelfeed/internal/report"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Find and restore documents lost to legacy key collisions",
		Long: `Scan the store for source ids whose sibling type (movie/tv) is missing and
re-fetch those documents. --dry-run only reports what would be fetched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scanner, err := invoke[*recovery.Scanner](ctx)
			if err != nil {
				return err
			}

			rep, err := scanner.Run(cmd.Context(), recovery.Options{Limit: limit, DryRun: dryRun})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Title(rep.Run))
			fmt.Fprintf(out, "candidates found: %d, attempted: %d, dry run: %s\n",
				rep.Found, rep.Job.ChangesFound, yesNo(rep.DryRun))
			if !rep.DryRun {
				fmt.Fprintln(out, renderRun(rep.Run))
			}
			if rep.Run.AnyFailed() {
				return errJobsFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report candidates without fetching or writing")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum candidates to repair (0 = all)")
	return cmd
}
