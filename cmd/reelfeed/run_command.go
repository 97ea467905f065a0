package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domainerrors "github.com/reelfeed/reelfeed/internal/errors"
	"github.com/reelfeed/reelfeed/internal/feed"
	"github.com/reelfeed/reelfeed/internal/pipeline"
	"github.com/reelfeed/reelfeed/internal/report"
)

// errJobsFailed makes the process exit non-zero after the summary is printed.
var errJobsFailed = errors.New("one or more jobs failed")

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		jobs       []string
		startDate  string
		endDate    string
		dryRun     bool
		maxBatches int
		maxPages   int
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll change feeds and upsert changed documents",
		Long: `Run every enabled job, or the jobs named with --job, over a date window.
The window defaults to yesterday (UTC) extended back by each job's window_days.
Exit status is 1 when any job failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := parseWindow(startDate, endDate)
			if err != nil {
				return err
			}

			runner, err := invoke[*pipeline.Runner](ctx)
			if err != nil {
				return err
			}

			run, err := runner.Run(cmd.Context(), pipeline.RunOptions{
				Jobs:       jobs,
				Window:     window,
				DryRun:     dryRun,
				MaxBatches: maxBatches,
				MaxPages:   maxPages,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.Title(run))
			fmt.Fprintf(out, "run %s window %s..%s\n", run.RunID, run.StartDate, run.EndDate)
			fmt.Fprintln(out, renderRun(run))
			for _, j := range run.Jobs {
				if j.Error != "" {
					fmt.Fprintf(out, "%s: %s\n", j.JobName, j.Error)
				}
			}

			if run.AnyFailed() {
				return errJobsFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&jobs, "job", nil, "Job to run (repeatable); default is every enabled job")
	flags.StringVar(&startDate, "start-date", "", "First day of the window (YYYY-MM-DD)")
	flags.StringVar(&endDate, "end-date", "", "Last day of the window (YYYY-MM-DD)")
	flags.BoolVar(&dryRun, "dry-run", false, "Poll, fetch, normalize and filter without writing documents")
	flags.IntVar(&maxBatches, "max-batches", 0, "Candidate batches per job (0 = unlimited)")
	flags.IntVar(&maxPages, "max-pages", 0, "Change feed pages per job (0 = job setting)")
	flags.IntVar(&limit, "limit", 0, "Candidates processed per job (0 = unlimited)")
	return cmd
}

// parseWindow accepts both dates, only one, or neither. A single date is a
// one-day window.
func parseWindow(start, end string) (feed.Window, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return feed.Window{}, nil
	}
	if start == "" {
		start = end
	}
	if end == "" {
		end = start
	}

	s, err := time.Parse(feed.DateLayout, start)
	if err != nil {
		return feed.Window{}, domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid --start-date %q", start)
	}
	e, err := time.Parse(feed.DateLayout, end)
	if err != nil {
		return feed.Window{}, domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid --end-date %q", end)
	}
	w := feed.Window{Start: s, End: e}
	return w, w.Validate()
}
