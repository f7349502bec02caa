package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kobo/internal/session"
)

func pinCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Manage the account's PIN lock",
	}
	cmd.AddCommand(pinSetCmd(a))
	cmd.AddCommand(pinToggleCmd(a, "enable", true))
	cmd.AddCommand(pinToggleCmd(a, "disable", false))
	return cmd
}

func pinSetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set or change the 4-digit PIN",
		Long: `Set the account's PIN and enable the lock. Changing an existing PIN
requires --current.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pin, _ := cmd.Flags().GetString("pin")
			current, _ := cmd.Flags().GetString("current")

			account, err := a.account()
			if err != nil {
				return err
			}
			res, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			st, err := session.NewSettingsService(res.Store, time.Now).SetPIN(cmd.Context(), account, pin, current)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd, st)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PIN set for %s\n", account)
			return nil
		},
	}
	cmd.Flags().String("pin", "", "new PIN, exactly 4 digits")
	cmd.Flags().String("current", "", "current PIN when changing one")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func pinToggleCmd(a *app, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s the PIN lock", map[bool]string{true: "Enable", false: "Disable"}[enabled]),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := a.account()
			if err != nil {
				return err
			}
			res, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			st, err := session.NewSettingsService(res.Store, time.Now).SetPINEnabled(cmd.Context(), account, enabled)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd, st)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PIN lock %sd for %s\n", use, account)
			return nil
		},
	}
}
