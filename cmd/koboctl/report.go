package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kobo/internal/aggregate"
	"kobo/internal/core"
	"kobo/internal/gateway"
	"kobo/internal/period"
)

func reportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run analytics reports over an account's transactions",
	}

	short := map[aggregate.Report]string{
		aggregate.ReportSummary:    "Income, expense, net balance and average",
		aggregate.ReportBreakdown:  "Expense share per category",
		aggregate.ReportTrend:      "Category spend this month against last month",
		aggregate.ReportComparison: "Lookback window against the window before it",
		aggregate.ReportSeries:     "Income and expense per chart bucket",
	}
	for _, r := range []aggregate.Report{
		aggregate.ReportSummary,
		aggregate.ReportBreakdown,
		aggregate.ReportTrend,
		aggregate.ReportComparison,
		aggregate.ReportSeries,
	} {
		cmd.AddCommand(reportSubCmd(a, r, short[r]))
	}
	return cmd
}

func reportSubCmd(a *app, rep aggregate.Report, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(rep),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := filterFromFlags(cmd)
			if err != nil {
				return err
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

			txs, err := gateway.New(res.Store, gateway.WithLogger(a.logger)).Transactions(cmd.Context(), account, nil)
			if err != nil {
				return err
			}

			out := aggregate.Compute(rep, txs, f, time.Now())
			if a.jsonOutput() {
				return printJSON(cmd, out)
			}
			return printReport(cmd, out)
		},
	}

	fl := cmd.Flags()
	fl.String("lookback", "", "rolling window: week, month, quarter, year, all")
	fl.String("type", "", "only Expense or Income transactions")
	fl.String("category", "", "only this category name")
	fl.String("from", "", "earliest date, YYYY-MM-DD")
	fl.String("to", "", "latest date, YYYY-MM-DD, inclusive")
	return cmd
}

func filterFromFlags(cmd *cobra.Command) (aggregate.Filter, error) {
	var f aggregate.Filter
	fl := cmd.Flags()

	if v, _ := fl.GetString("lookback"); v != "" {
		l, err := period.ParseLookback(v)
		if err != nil {
			return f, err
		}
		f.Lookback = l
	}
	if v, _ := fl.GetString("type"); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	f.Category, _ = fl.GetString("category")
	f.Category = strings.TrimSpace(f.Category)

	if v, _ := fl.GetString("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return f, fmt.Errorf("invalid --from %q: want YYYY-MM-DD", v)
		}
		f.From = t
	}
	if v, _ := fl.GetString("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return f, fmt.Errorf("invalid --to %q: want YYYY-MM-DD", v)
		}
		f.To = t.Add(24*time.Hour - time.Millisecond)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("%w: --to is before --from", core.ErrInvalidPeriod)
	}
	return f, nil
}

func printReport(cmd *cobra.Command, out any) error {
	tw := newTable(cmd)
	switch v := out.(type) {
	case aggregate.Summary:
		fmt.Fprintf(tw, "Income\t%s\n", v.Income.Format())
		fmt.Fprintf(tw, "Expense\t%s\n", v.Expense.Format())
		fmt.Fprintf(tw, "Net\t%s\n", v.Net.Format())
		fmt.Fprintf(tw, "Transactions\t%d\n", v.Count)
		fmt.Fprintf(tw, "Average\t%s\n", v.Average.Format())
	case []aggregate.CategoryShare:
		fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tSHARE")
		for _, s := range v {
			fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", s.Name, s.Amount.Format(), s.Percent)
		}
	case []aggregate.CategoryTrend:
		fmt.Fprintln(tw, "CATEGORY\tTHIS MONTH\tLAST MONTH\tCHANGE")
		for _, t := range v {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%+.1f%% %s\n", t.Name, t.Current.Format(), t.Previous.Format(), t.Change, t.Direction)
		}
	case aggregate.Comparison:
		fmt.Fprintln(tw, "WINDOW\tSTART\tEND\tINCOME\tEXPENSE\tCOUNT")
		for _, w := range []struct {
			name string
			t    aggregate.WindowTotals
		}{{"current", v.Current}, {"previous", v.Previous}} {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", w.name,
				w.t.Start.Format(time.DateOnly), w.t.End.Format(time.DateOnly),
				w.t.Income.Format(), w.t.Expense.Format(), w.t.Count)
		}
		fmt.Fprintf(tw, "change\t\t\t%+.1f%%\t%+.1f%%\t\n", v.IncomeChange, v.ExpenseChange)
	case []aggregate.Point:
		fmt.Fprintln(tw, "BUCKET\tINCOME\tEXPENSE")
		for _, p := range v {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Label, p.Income.Format(), p.Expense.Format())
		}
	default:
		return fmt.Errorf("unsupported report output %T", out)
	}
	return tw.Flush()
}
