package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/settings"
)

var (
	superuserName string

	superuserCmd = &cobra.Command{
		Use:   "superuser",
		Short: "Manage the local superuser login",
	}

	superuserEnsureCmd = &cobra.Command{
		Use:   "ensure",
		Short: "Create or reset the local superuser",
		Long:  "Creates the account if missing, otherwise resets its password. The password is read from TEAMCTL_PASSWORD.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("TEAMCTL_PASSWORD")
			if password == "" {
				return fmt.Errorf("TEAMCTL_PASSWORD is not set")
			}
			accounts, err := accountService()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			acct, created, err := accounts.EnsureSuperuser(ctx, superuserName, password)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s superuser %s (%s)\n", verb, acct.Username, acct.ID)
			return nil
		},
	}

	permsCmd = &cobra.Command{
		Use:   "perms",
		Short: "Inspect permission resolution",
	}

	permsCheckCmd = &cobra.Command{
		Use:   "check ACCOUNT_ID",
		Short: "Show the resolved capabilities of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := accountService()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			p, err := accounts.Principal(ctx, args[0])
			if err != nil {
				return err
			}
			return writePermissions(cmd.OutOrStdout(), p)
		},
	}

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "List or change runtime settings",
	}
)

func init() {
	superuserEnsureCmd.Flags().StringVar(&superuserName, "username", "admin", "Superuser login name")
	superuserCmd.AddCommand(superuserEnsureCmd)
	permsCmd.AddCommand(permsCheckCmd)

	settingsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every setting with its effective value",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := settingsService()
				if err != nil {
					return err
				}
				ctx, cancel := commandContext(cmd)
				defer cancel()
				snap, err := svc.Snapshot(ctx)
				if err != nil {
					return err
				}
				return writeSettings(cmd.OutOrStdout(), snap)
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print the effective value of one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := settingsService()
				if err != nil {
					return err
				}
				ctx, cancel := commandContext(cmd)
				defer cancel()
				snap, err := svc.Snapshot(ctx)
				if err != nil {
					return err
				}
				v, ok := snap.Get(args[0])
				if !ok {
					return fmt.Errorf("%w: %s", settings.ErrUnknownKey, args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Validate and store one setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := settingsService()
				if err != nil {
					return err
				}
				ctx, cancel := commandContext(cmd)
				defer cancel()
				key := strings.ToUpper(args[0])
				v, err := svc.Update(ctx, key, args[1], "teamctl")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", key, v)
				return nil
			},
		},
	)
}

func writePermissions(w io.Writer, p auth.Principal) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "account\t%s (%s)\n", p.Account.Username, p.Account.ID)
	for _, info := range auth.Registry {
		mark := "-"
		if p.HasPermission(info.Capability) {
			mark = "yes"
		}
		if v, ok := p.Account.Overrides[info.Capability]; ok {
			mark += fmt.Sprintf(" (override=%t)", v)
		}
		fmt.Fprintf(tw, "%s\t%s\n", info.Capability, mark)
	}
	return tw.Flush()
}

func writeSettings(w io.Writer, snap settings.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range settings.Definitions() {
		v, _ := snap.Get(d.Key)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Key, v, d.Description)
	}
	return tw.Flush()
}
