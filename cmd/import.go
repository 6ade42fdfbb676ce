package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vkhitrin/cosmicding-sub000/internal/importer"
	"github.com/vkhitrin/cosmicding-sub000/pkg/reconcile"
)

var importAccount int64

var importCmd = &cobra.Command{
	Use:   "import <file.json|dir>",
	Short: "Import bookmarks from JSON into an account",
	Long: `Import bookmarks from a JSON file, or every .json file under a directory.

Bookmarks are added one at a time. Press Ctrl-C to cancel the remaining
items; a failure on any item stops the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		bs, err := importer.Load(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%w", err)
		}

		return withApp(ctx, func(app *app) error {
			sig := make(chan os.Signal, 1)
			done := make(chan struct{})
			signal.Notify(sig, os.Interrupt)
			defer signal.Stop(sig)
			defer close(done)

			go func() {
				select {
				case <-sig:
					app.engine.Session().CancelOperation()
				case <-done:
				}
			}()

			app.startSpinner(fmt.Sprintf("importing %d bookmarks...", len(bs)))
			rep, err := app.engine.Import(ctx, importAccount, bs)
			app.stopSpinner(rep.String())

			if errors.Is(err, reconcile.ErrImportCancelled) {
				return nil
			}

			if err != nil {
				return fmt.Errorf("%w", err)
			}

			if rep.Failed != "" {
				return fmt.Errorf("%w: stopped at %s", reconcile.ErrProvider, rep.Failed)
			}

			return nil
		})
	},
}

func init() {
	importCmd.Flags().Int64VarP(&importAccount, "account", "a", 0, "account id")
	_ = importCmd.MarkFlagRequired("account")
	Root.AddCommand(importCmd)
}
