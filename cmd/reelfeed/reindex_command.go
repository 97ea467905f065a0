package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/di/providers"
)

func newReindexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			storeHandle, err := invoke[*providers.StoreHandle](ctx)
			if err != nil {
				return err
			}
			indexHandle, err := invoke[*providers.SearchIndexHandle](ctx)
			if err != nil {
				return err
			}

			n, err := indexHandle.Reindex(cmd.Context(), storeHandle.ScanDocuments(cmd.Context()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents\n", n)
			return nil
		},
	}
}
