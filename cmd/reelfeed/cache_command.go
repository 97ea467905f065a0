package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reelfeed/reelfeed/internal/cache"
	"github.com/reelfeed/reelfeed/internal/di/providers"
)

func newClearCacheCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove cached upstream responses and normalized payloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			storeHandle, err := invoke[*providers.StoreHandle](ctx)
			if err != nil {
				return err
			}
			if err := cache.Clear(storeHandle.Store); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}
