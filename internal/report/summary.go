package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// Title returns a one-line headline for run.
func Title(run *domain.RunMetadata) string {
	kind := run.Kind
	if kind == "" {
		kind = "etl"
	}
	title := fmt.Sprintf("reelfeed %s %s: %s", kind, run.RunDate, run.Status)
	if run.DryRun {
		title += " (dry run)"
	}
	return title
}

// Summary renders run as plain text, one line per job followed by totals.
func Summary(run *domain.RunMetadata) string {
	var b strings.Builder
	if run.StartDate != "" {
		fmt.Fprintf(&b, "window %s..%s\n", run.StartDate, run.EndDate)
	}
	for _, j := range run.Jobs {
		fmt.Fprintf(&b, "%s [%s] %s: %d changes, %d upserted, %d filtered, %d not found, %d errors\n",
			j.JobName, j.EntityType, j.Status,
			j.ChangesFound, j.DocumentsUpserted, j.Filtered, j.NotFound, j.ErrorsCount)
		if j.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", j.Error)
		}
	}

	t := run.Totals()
	elapsed := time.Duration(0)
	if !run.FinishedAt.IsZero() {
		elapsed = run.FinishedAt.Sub(run.StartedAt).Round(time.Second)
	}
	fmt.Fprintf(&b, "total: %d upserted, %d errors in %s", t.DocumentsUpserted, t.ErrorsCount, elapsed)
	return b.String()
}
