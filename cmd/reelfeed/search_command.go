package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/di/providers"
	"github.com/reelfeed/reelfeed/internal/domain"
	"github.com/reelfeed/reelfeed/internal/search"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		types []string
		limit int
		sort  string
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Query the search index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexHandle, err := invoke[*providers.SearchIndexHandle](ctx)
			if err != nil {
				return err
			}

			q := search.Query{Text: strings.Join(args, " "), Limit: limit, SortBy: sort}
			for _, t := range types {
				et, err := domain.ParseEntityType(t)
				if err != nil {
					return err
				}
				q.EntityTypes = append(q.EntityTypes, et)
			}

			res, err := indexHandle.Search(cmd.Context(), q)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(res.Hits))
			for _, h := range res.Hits {
				year := ""
				if h.ReleaseYear > 0 {
					year = strconv.Itoa(h.ReleaseYear)
				}
				rows = append(rows, []string{
					h.Key,
					string(h.EntityType),
					h.Title,
					year,
					strconv.FormatFloat(h.Popularity, 'f', 1, 64),
					strconv.FormatFloat(h.Score, 'f', 3, 64),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d hits for %q\n", res.Total, res.Query)
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"Key", "Type", "Title", "Year", "Popularity", "Score"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
					nil,
				))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "Restrict to entity types (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum hits")
	cmd.Flags().StringVar(&sort, "sort", "relevance", "relevance, popularity, rating or year")
	return cmd
}
