package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kobo/internal/core"
	"kobo/internal/period"
)

type periodRow struct {
	Duration core.BudgetDuration `json:"duration"`
	Period   core.Period         `json:"period"`
	Label    string              `json:"label"`
}

func periodCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Show budgeting periods",
		Long: `Print the budgeting period containing --at (default today), optionally
stepped forward or back, followed by --count-1 subsequent periods.`,
		Example: `  koboctl period --duration weekly
  koboctl period --at 2025-03-15 --step previous --count 3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			durFlag, _ := cmd.Flags().GetString("duration")
			atFlag, _ := cmd.Flags().GetString("at")
			step, _ := cmd.Flags().GetString("step")
			count, _ := cmd.Flags().GetInt("count")

			d, err := period.ParseDuration(durFlag)
			if err != nil {
				return err
			}
			at := time.Now().UTC()
			if atFlag != "" {
				if at, err = time.Parse(time.DateOnly, atFlag); err != nil {
					return fmt.Errorf("invalid --at %q: want YYYY-MM-DD", atFlag)
				}
			}
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			p, err := period.Current(d, at)
			if err != nil {
				return err
			}
			switch step {
			case "", "current":
			case "next":
				p, err = period.Next(d, p)
			case "previous", "prev":
				p, err = period.Previous(d, p)
			default:
				return fmt.Errorf("unknown step %q: want current, next or previous", step)
			}
			if err != nil {
				return err
			}

			rows := make([]periodRow, 0, count)
			for i := 0; i < count; i++ {
				rows = append(rows, periodRow{Duration: d, Period: p, Label: period.Label(d, p)})
				if p, err = period.Next(d, p); err != nil {
					return err
				}
			}

			if a.jsonOutput() {
				return printJSON(cmd, rows)
			}
			tw := newTable(cmd)
			fmt.Fprintln(tw, "LABEL\tSTART\tEND")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Label,
					r.Period.Start.Format(time.DateOnly), r.Period.End.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("duration", string(core.DefaultBudgetDuration), "budgeting duration (weekly, monthly, yearly)")
	cmd.Flags().String("at", "", "reference date, YYYY-MM-DD")
	cmd.Flags().String("step", "current", "current, next or previous")
	cmd.Flags().Int("count", 1, "number of consecutive periods to print")

	return cmd
}
