package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/readinglog/internal/entrypoint"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain the session history",
	}
	sessionsCmd.AddCommand(newSessionsResetCommand(ctx))
	sessionsCmd.AddCommand(newSessionsCleanupCommand(ctx))
	return sessionsCmd
}

func newSessionsResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every reading session (book progress is kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the session history without --yes")
			}
			// The lock keeps this from running beside a server with open sessions.
			return ctx.withApp(true, func(app *entrypoint.App) error {
				deleted, err := app.Manager.ResetSessions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d sessions\n", deleted)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func newSessionsCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-orphans",
		Short: "Delete sessions and notes whose book no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(false, func(app *entrypoint.App) error {
				sessions, err := app.Sessions.DeleteOrphans(cmd.Context())
				if err != nil {
					return err
				}
				notes, err := app.Notes.DeleteOrphans(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d orphan sessions and %d orphan notes\n", sessions, notes)
				return nil
			})
		},
	}
}
