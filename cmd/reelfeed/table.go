package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/reelfeed/reelfeed/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, footer []string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	toRow := func(cells []string) table.Row {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(cells) {
				r[i] = cells[i]
			} else {
				r[i] = ""
			}
		}
		return r
	}

	tw.AppendHeader(toRow(headers))
	for _, row := range rows {
		tw.AppendRow(toRow(row))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(footer))
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

var jobColumns = []string{"Job", "Type", "Status", "Changes", "Skipped", "Fetched", "Not found", "Filtered", "Upserted", "Errors", "Duration"}

var jobAligns = []columnAlignment{
	alignLeft, alignLeft, alignLeft,
	alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight,
}

func jobRow(j domain.JobResult) []string {
	return []string{
		j.JobName,
		string(j.EntityType),
		string(j.Status),
		strconv.Itoa(j.ChangesFound),
		strconv.Itoa(j.Skipped),
		strconv.Itoa(j.Fetched),
		strconv.Itoa(j.NotFound),
		strconv.Itoa(j.Filtered),
		strconv.Itoa(j.DocumentsUpserted),
		strconv.Itoa(j.ErrorsCount),
		j.Duration.Round(time.Millisecond).String(),
	}
}

// renderRun prints one row per job and a totals footer.
func renderRun(run *domain.RunMetadata) string {
	rows := make([][]string, 0, len(run.Jobs))
	for _, j := range run.Jobs {
		rows = append(rows, jobRow(j))
	}
	totals := run.Totals()
	totals.JobName = "total"
	totals.Status = domain.JobStatus(run.Status)
	return renderTable(jobColumns, rows, jobAligns, jobRow(totals))
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
