package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [id]",
	Short: "Refresh bookmarks of all enabled accounts, or of one account",
	Long: `Refresh bookmarks from the remote instances.

Without an id every enabled account's profile is checked first, then all
accounts are refreshed one after the other after the configured startup
delay. An account whose fetch fails keeps its previous bookmarks.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		return withApp(ctx, func(app *app) error {
			app.startSpinner("refreshing bookmarks...")

			var err error
			if len(args) == 0 {
				err = app.engine.Start(ctx)
			} else {
				var id int64
				if id, err = parseID(args[0]); err == nil {
					err = app.engine.RefreshOne(ctx, id)
				}
			}

			if err != nil {
				app.stopSpinner("")
				return fmt.Errorf("%w", err)
			}

			c := app.engine.Session().Bookmarks
			app.stopSpinner(fmt.Sprintf("%d bookmarks cached", c.TotalEntries))

			return nil
		})
	},
}

func init() {
	Root.AddCommand(refreshCmd)
}
