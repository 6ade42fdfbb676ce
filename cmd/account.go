package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkhitrin/cosmicding-sub000/pkg/account"
)

var accountFlags struct {
	name     string
	instance string
	token    string
	local    bool
	insecure bool
	disabled bool
	noCheck  bool
	enable   bool
	newToken bool
}

var accountCmd = &cobra.Command{
	Use:     "account",
	Aliases: []string{"acc"},
	Short:   "Manage accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a linkding or local account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := &accountFlags

		var a *account.Account
		if f.local {
			a = account.NewLocal(f.name)
		} else {
			token := f.token
			if token == "" {
				var err error
				if token, err = readSecret("API token: "); err != nil {
					return err
				}
			}
			a = account.NewRemote(f.name, f.instance, token)
			a.TrustInvalidCerts = f.insecure
		}
		a.Enabled = !f.disabled

		return withApp(cmd.Context(), func(app *app) error {
			app.startSpinner("adding account...")
			err := app.engine.AddAccount(cmd.Context(), a, !f.noCheck)
			app.stopSpinner("")

			if err != nil {
				return fmt.Errorf("%w", err)
			}

			printAccount(a)

			return nil
		})
	},
}

var accountListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(app *app) error {
			c := app.engine.Session().Accounts
			if err := c.Reload(cmd.Context()); err != nil {
				return err
			}

			for {
				for _, a := range c.Result {
					printAccount(a)
				}

				if !c.Next() {
					break
				}

				if err := c.FetchPage(cmd.Context()); err != nil {
					return err
				}
			}

			fmt.Printf("%d account(s)\n", c.TotalEntries)

			return nil
		})
	},
}

var accountEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(app *app) error {
			a, err := app.store.AccountByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("%w", err)
			}

			fl := cmd.Flags()
			f := &accountFlags
			if fl.Changed("name") {
				a.DisplayName = f.name
			}
			if fl.Changed("instance") {
				a.Instance = f.instance
			}
			if fl.Changed("token") {
				a.APIToken = f.token
			}
			if f.newToken {
				if a.APIToken, err = readSecret("new API token: "); err != nil {
					return err
				}
			}
			if fl.Changed("insecure") {
				a.TrustInvalidCerts = f.insecure
			}
			if fl.Changed("enable") {
				a.Enabled = f.enable
			}

			app.startSpinner("updating account...")
			err = app.engine.EditAccount(cmd.Context(), a)
			app.stopSpinner("")

			if err != nil {
				return fmt.Errorf("%w", err)
			}

			printAccount(a)

			return nil
		})
	},
}

var accountRemoveCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove an account and its cached bookmarks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(app *app) error {
			a, err := app.store.AccountByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("%w", err)
			}

			if !confirm(fmt.Sprintf("remove account %s?", a)) {
				return ErrActionAborted
			}

			return app.engine.RemoveAccount(cmd.Context(), id)
		})
	},
}

func printAccount(a *account.Account) {
	state := "enabled"
	if !a.Enabled {
		state = "disabled"
	}

	sync := "never synced"
	if a.LastSyncTimestamp > 0 {
		status := "ok"
		if !a.LastSyncStatus {
			status = "failed"
		}
		sync = fmt.Sprintf("last sync %s (%s)", time.Unix(a.LastSyncTimestamp, 0).Format(time.DateTime), status)
	}

	fmt.Printf("%4d  %-20s %-8s %-36s %-8s %s\n", a.ID, a.DisplayName, a.Provider, a.Instance, state, sync)
}

func init() {
	add := accountAddCmd.Flags()
	add.StringVarP(&accountFlags.name, "name", "n", "", "display name")
	add.StringVarP(&accountFlags.instance, "instance", "i", "", "linkding instance URL")
	add.StringVar(&accountFlags.token, "token", "", "API token (prompted when empty)")
	add.BoolVar(&accountFlags.local, "local", false, "create the local account")
	add.BoolVar(&accountFlags.insecure, "insecure", false, "trust invalid TLS certificates")
	add.BoolVar(&accountFlags.disabled, "disabled", false, "add the account disabled")
	add.BoolVar(&accountFlags.noCheck, "no-check", false, "skip the profile check")
	_ = accountAddCmd.MarkFlagRequired("name")
	accountAddCmd.MarkFlagsMutuallyExclusive("local", "instance")

	edit := accountEditCmd.Flags()
	edit.StringVarP(&accountFlags.name, "name", "n", "", "display name")
	edit.StringVarP(&accountFlags.instance, "instance", "i", "", "linkding instance URL")
	edit.StringVar(&accountFlags.token, "token", "", "API token")
	edit.BoolVar(&accountFlags.newToken, "prompt-token", false, "prompt for a new API token")
	edit.BoolVar(&accountFlags.insecure, "insecure", false, "trust invalid TLS certificates")
	edit.BoolVar(&accountFlags.enable, "enable", true, "enable or disable the account (--enable=false)")

	accountCmd.AddCommand(accountAddCmd, accountListCmd, accountEditCmd, accountRemoveCmd)
	Root.AddCommand(accountCmd)
}
