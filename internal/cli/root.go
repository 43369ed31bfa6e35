// Package cli implements the readinglog command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/readinglog/internal/entrypoint"
)

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCommand(version string) *cobra.Command {
	var configFlag string
	var databaseFlag string

	ctx := newCommandContext(&configFlag, &databaseFlag)

	serve := func(cmd *cobra.Command, args []string) error {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		return entrypoint.Run(cfg, version)
	}

	rootCmd := &cobra.Command{
		Use:           "readinglog",
		Short:         "Reading session and progress ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (overrides CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&databaseFlag, "database", "", "Library database path (overrides DATABASE_PATH)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})
	rootCmd.AddCommand(newBooksCommand(ctx))
	rootCmd.AddCommand(newInsightsCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))

	return rootCmd
}
