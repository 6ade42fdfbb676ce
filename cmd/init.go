package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vkhitrin/cosmicding-sub000/internal/config"
	"github.com/vkhitrin/cosmicding-sub000/pkg/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the bookmarks database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := db.Init(config.App.Path.Database)
		if err != nil {
			return fmt.Errorf("%w", err)
		}
		defer r.Close()

		if err := r.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("%w", err)
		}

		v, err := r.SchemaVersion(cmd.Context())
		if err != nil {
			return fmt.Errorf("%w", err)
		}

		fmt.Printf("database initialized: %s (schema v%d)\n", config.App.Path.Database, v)

		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings file",
	RunE: func(_ *cobra.Command, _ []string) error {
		p := config.App.Path.ConfigFile
		if err := config.Write(p, force); err != nil {
			return fmt.Errorf("%w", err)
		}

		fmt.Println("settings file: " + p)

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings and paths",
	RunE: func(_ *cobra.Command, _ []string) error {
		fmt.Printf("data:           %s\n", config.App.Path.Data)
		fmt.Printf("database:       %s\n", config.App.Path.Database)
		fmt.Printf("settings file:  %s\n", config.App.Path.ConfigFile)
		fmt.Printf("items per page: %d\n", settings.ItemsPerPage)
		fmt.Printf("sort:           %s\n", settings.Sort)
		fmt.Printf("startup delay:  %s\n", settings.StartupDelay)
		fmt.Printf("favicons:       %d workers, %d/s\n", settings.Favicons.Workers, settings.Favicons.Rate)
		fmt.Printf("http timeout:   %s\n", settings.HTTP.Timeout)

		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s v%s\n", config.App.Name, config.App.Version)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	Root.AddCommand(initCmd, configCmd, versionCmd)
}
