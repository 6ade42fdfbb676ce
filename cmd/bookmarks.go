package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
)

var listFlags struct {
	page    int
	perPage int
	sort    string
	json    bool
}

var bookmarksCmd = &cobra.Command{
	Use:     "bookmarks [query]",
	Aliases: []string{"ls", "list"},
	Short:   "List or search cached bookmarks of enabled accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f := &listFlags

		return withApp(ctx, func(app *app) error {
			e := app.engine
			if cmd.Flags().Changed("sort") {
				s, err := bookmark.ParseSortOrder(f.sort)
				if err != nil {
					return err
				}
				if err := e.SetSort(ctx, s); err != nil {
					return err
				}
			}

			if f.perPage > 0 {
				if err := e.SetItemsPerPage(ctx, f.perPage); err != nil {
					return err
				}
			}

			if err := e.Search(ctx, strings.Join(args, " ")); err != nil {
				return err
			}

			if err := e.GoToPage(ctx, max(f.page-1, 0)); err != nil {
				return err
			}

			c := e.Session().Bookmarks
			if f.json {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")

				return enc.Encode(c.Result)
			}

			for _, b := range c.Result {
				printBookmark(b)
			}

			fmt.Printf("page %d of %d (%d bookmarks)\n", c.CurrentPage, c.TotalPages, c.TotalEntries)

			return nil
		})
	},
}

func printBookmark(b *bookmark.Bookmark) {
	var flags []string
	if !b.IsOwner {
		flags = append(flags, "shared")
	}
	if b.IsArchived {
		flags = append(flags, "archived")
	}
	if b.Unread {
		flags = append(flags, "unread")
	}

	title := b.DisplayTitle()
	if len(flags) > 0 {
		title += " [" + strings.Join(flags, ",") + "]"
	}

	fmt.Printf("%5d  %s\n       %s\n", b.ID, title, b.URL)
	if len(b.TagNames) > 0 {
		fmt.Printf("       #%s\n", strings.Join(b.TagNames, " #"))
	}
}

func init() {
	f := bookmarksCmd.Flags()
	f.IntVarP(&listFlags.page, "page", "p", 1, "page number")
	f.IntVar(&listFlags.perPage, "per-page", 0, "items per page (default from settings)")
	f.StringVarP(&listFlags.sort, "sort", "s", "newest", "sort order [newest|oldest|title-asc|title-desc]")
	f.BoolVarP(&listFlags.json, "json", "j", false, "print data in JSON format")
	Root.AddCommand(bookmarksCmd)
}
