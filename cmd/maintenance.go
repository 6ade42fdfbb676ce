package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vkhitrin/cosmicding-sub000/internal/config"
)

var faviconsCmd = &cobra.Command{
	Use:   "favicons",
	Short: "Manage the favicon cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var faviconsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every cached favicon",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *app) error {
			if !confirm("purge the favicon cache?") {
				return ErrActionAborted
			}

			n, err := app.store.PurgeFavicons(cmd.Context())
			if err != nil {
				return fmt.Errorf("%w", err)
			}

			fmt.Printf("%d favicon(s) purged\n", n)

			return nil
		})
	},
}

var dbCmd = &cobra.Command{
	Use:     "database",
	Aliases: []string{"db"},
	Short:   "Database maintenance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var dbVacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Rebuild the database file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *app) error {
			if err := app.store.Vacuum(cmd.Context()); err != nil {
				return fmt.Errorf("%w", err)
			}

			fmt.Println("vacuumed " + config.App.Path.Database)

			return nil
		})
	},
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify database integrity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *app) error {
			if err := app.store.VerifyIntegrity(cmd.Context()); err != nil {
				return fmt.Errorf("%w", err)
			}

			v, err := app.store.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("%w", err)
			}

			fmt.Printf("ok: %s (schema v%d)\n", config.App.Path.Database, v)

			return nil
		})
	},
}

func init() {
	faviconsCmd.AddCommand(faviconsPurgeCmd)
	dbCmd.AddCommand(dbVacuumCmd, dbCheckCmd)
	Root.AddCommand(faviconsCmd, dbCmd)
}
