package main

import (
	"github.com/spf13/cobra"
)

// newRootCommand wires subcommands to ctx. The caller closes ctx once the
// command returns, including on error.
func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reelfeed",
		Short:         "Change-feed ingestion for movie, tv and person metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (default ./reelfeed.toml)")
	flags.StringVar(&ctx.envFile, "env-file", ".env", "Path to .env file")
	flags.StringVar(&ctx.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&ctx.storePath, "store-path", "", "Document store directory")
	flags.StringVar(&ctx.indexPath, "index-path", "", "Search index directory")

	rootCmd.AddCommand(
		newRunCommand(ctx),
		newRecoverCommand(ctx),
		newReindexCommand(ctx),
		newSearchCommand(ctx),
		newJobsCommand(ctx),
		newRunsCommand(ctx),
		newClearCacheCommand(ctx),
	)
	return rootCmd
}
