package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kobo/internal/core"
	"kobo/internal/gateway"
)

func txnCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "txn",
		Aliases: []string{"transactions"},
		Short:   "Record and list transactions",
	}
	cmd.AddCommand(txnAddCmd(a))
	cmd.AddCommand(txnListCmd(a))
	return cmd
}

func txnAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Example: `  koboctl txn add -a alice --amount 12.50 --category Food --payee "Corner shop"
  koboctl txn add -a alice --type income --amount 2500 --category Salary --payee Acme --date 2025-03-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fl := cmd.Flags()
			amountFlag, _ := fl.GetString("amount")
			typeFlag, _ := fl.GetString("type")
			dateFlag, _ := fl.GetString("date")

			var in gateway.TransactionInput
			cents, err := core.ParseDecimalToCents(amountFlag)
			if err != nil {
				return err
			}
			in.Amount = core.Money{Cents: cents}
			if in.Type, err = core.ParseTransactionType(typeFlag); err != nil {
				return err
			}
			if dateFlag != "" {
				if in.Date, err = time.Parse(time.DateOnly, dateFlag); err != nil {
					return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", dateFlag)
				}
			}
			in.Category, _ = fl.GetString("category")
			in.Payee, _ = fl.GetString("payee")
			in.Description, _ = fl.GetString("description")

			account, err := a.account()
			if err != nil {
				return err
			}
			res, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			tx, err := gateway.New(res.Store, gateway.WithLogger(a.logger)).RecordTransaction(cmd.Context(), account, in)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd, tx)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s %s (%s)\n", tx.Type, tx.Amount.Format(), tx.Category, tx.ID)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.String("amount", "", "amount in major units, e.g. 12.50")
	fl.String("type", string(core.Expense), "Expense or Income")
	fl.String("category", "", "category name")
	fl.String("payee", "", "who was paid or who paid")
	fl.String("description", "", "free-form note")
	fl.String("date", "", "transaction date, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("payee")
	return cmd
}

func txnListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")

			var p *core.Period
			if fromFlag != "" || toFlag != "" {
				if fromFlag == "" || toFlag == "" {
					return fmt.Errorf("%w: --from and --to go together", core.ErrInvalidPeriod)
				}
				start, err := time.Parse(time.DateOnly, fromFlag)
				if err != nil {
					return fmt.Errorf("invalid --from %q: want YYYY-MM-DD", fromFlag)
				}
				end, err := time.Parse(time.DateOnly, toFlag)
				if err != nil {
					return fmt.Errorf("invalid --to %q: want YYYY-MM-DD", toFlag)
				}
				p = &core.Period{Start: start, End: end.Add(24*time.Hour - time.Millisecond)}
			}

			account, err := a.account()
			if err != nil {
				return err
			}
			res, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			txs, err := gateway.New(res.Store, gateway.WithLogger(a.logger)).Transactions(cmd.Context(), account, p)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd, txs)
			}
			tw := newTable(cmd)
			fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tCATEGORY\tPAYEE")
			for _, tx := range txs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", tx.Date.Format(time.DateOnly), tx.Type, tx.Amount.Format(), tx.Category, tx.Payee)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("from", "", "first day, YYYY-MM-DD")
	cmd.Flags().String("to", "", "last day, YYYY-MM-DD, inclusive")
	return cmd
}
