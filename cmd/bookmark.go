package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
)

var bookmarkFlags struct {
	account  int64
	title    string
	desc     string
	notes    string
	tags     string
	archived bool
	unread   bool
	shared   bool
}

var bookmarkCmd = &cobra.Command{
	Use:     "bookmark",
	Aliases: []string{"bm"},
	Short:   "Manage a single bookmark",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var bookmarkAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a bookmark to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &bookmarkFlags
		b := bookmark.New(f.account, args[0], f.title, bookmark.ParseTags(f.tags)...)
		b.Description = f.desc
		b.Notes = f.notes
		b.IsArchived = f.archived
		b.Unread = f.unread
		b.Shared = f.shared

		return withApp(cmd.Context(), func(app *app) error {
			app.startSpinner("saving bookmark...")
			out, err := app.engine.AddBookmark(cmd.Context(), f.account, b)
			app.stopSpinner("")

			if err != nil {
				return fmt.Errorf("%w", err)
			}

			printBookmark(out)

			return nil
		})
	},
}

var bookmarkEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit an owned bookmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBookmark(cmd, args, func(app *app, b *bookmark.Bookmark) error {
			fl := cmd.Flags()
			f := &bookmarkFlags
			if fl.Changed("title") {
				b.Title = f.title
			}
			if fl.Changed("desc") {
				b.Description = f.desc
			}
			if fl.Changed("notes") {
				b.Notes = f.notes
			}
			if fl.Changed("tags") {
				b.TagNames = bookmark.ParseTags(f.tags)
			}
			if fl.Changed("archived") {
				b.IsArchived = f.archived
			}
			if fl.Changed("unread") {
				b.Unread = f.unread
			}
			if fl.Changed("shared") {
				b.Shared = f.shared
			}

			app.startSpinner("saving bookmark...")
			out, err := app.engine.EditBookmark(cmd.Context(), b)
			app.stopSpinner("")

			if err != nil {
				return fmt.Errorf("%w", err)
			}

			printBookmark(out)

			return nil
		})
	},
}

var bookmarkRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove an owned bookmark",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBookmark(cmd, args, func(app *app, b *bookmark.Bookmark) error {
			if !confirm(fmt.Sprintf("remove %q?", b.DisplayTitle())) {
				return ErrActionAborted
			}

			return app.engine.RemoveBookmark(cmd.Context(), b.ID)
		})
	},
}

var bookmarkOpenCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Open a bookmark in the default browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBookmark(cmd, args, func(_ *app, b *bookmark.Bookmark) error {
			return openInBrowser(b.URL)
		})
	},
}

var bookmarkCopyCmd = &cobra.Command{
	Use:   "copy <id>",
	Short: "Copy a bookmark URL to the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBookmark(cmd, args, func(_ *app, b *bookmark.Bookmark) error {
			if err := copyToClipboard(b.URL); err != nil {
				return err
			}

			fmt.Println("copied: " + b.URL)

			return nil
		})
	},
}

func withBookmark(cmd *cobra.Command, args []string, fn func(app *app, b *bookmark.Bookmark) error) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(app *app) error {
		b, err := app.store.BookmarkByID(cmd.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", bookmark.ErrNotFound, id)
			}

			return err
		}

		return fn(app, b)
	})
}

func init() {
	add := bookmarkAddCmd.Flags()
	add.Int64VarP(&bookmarkFlags.account, "account", "a", 0, "account id")
	_ = bookmarkAddCmd.MarkFlagRequired("account")

	for _, c := range []*cobra.Command{bookmarkAddCmd, bookmarkEditCmd} {
		f := c.Flags()
		f.StringVarP(&bookmarkFlags.title, "title", "t", "", "title")
		f.StringVarP(&bookmarkFlags.desc, "desc", "d", "", "description")
		f.StringVar(&bookmarkFlags.notes, "notes", "", "notes")
		f.StringVar(&bookmarkFlags.tags, "tags", "", "space or comma separated tags")
		f.BoolVar(&bookmarkFlags.archived, "archived", false, "archive the bookmark")
		f.BoolVar(&bookmarkFlags.unread, "unread", false, "mark as unread")
		f.BoolVar(&bookmarkFlags.shared, "shared", false, "share the bookmark")
	}

	bookmarkCmd.AddCommand(bookmarkAddCmd, bookmarkEditCmd, bookmarkRemoveCmd, bookmarkOpenCmd, bookmarkCopyCmd)
	Root.AddCommand(bookmarkCmd)
}
