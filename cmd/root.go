// Package cmd is the command line front end of the bookmark cache.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vkhitrin/cosmicding-sub000/internal/config"
)

var (
	// settings loaded from the YAML settings file.
	settings = config.Defaults()

	dataDir string
	force   bool
	verbose int
)

// Root is the top level command.
var Root = &cobra.Command{
	Use:           config.App.Cmd,
	Short:         "Local-first cache of linkding bookmarks",
	Long:          "Mirror bookmarks of linkding accounts and local collections into a local database.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	Root.PersistentFlags().CountVarP(&verbose, "verbose", "v", "verbosity level (-v, -vv, -vvv)")
	Root.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default: user data dir)")
	Root.PersistentFlags().BoolVar(&force, "force", false, "force action | don't ask confirmation")
	Root.CompletionOptions.HiddenDefaultCmd = true
}

func initConfig() {
	config.SetVerbosity(verbose)

	p := dataDir
	if p == "" {
		var err error
		if p, err = config.DataPath(); err != nil {
			errAndExit(err)
		}
	}

	config.SetAppPaths(p)

	s, err := config.Load(config.App.Path.ConfigFile)
	if err != nil {
		slog.Error("loading settings", "error", err)
		errAndExit(err)
	}
	settings = s
}

// Execute runs the root command.
func Execute() {
	if err := Root.ExecuteContext(context.Background()); err != nil {
		errAndExit(err)
	}
}

func errAndExit(err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", config.App.Name, err)
	os.Exit(1)
}
