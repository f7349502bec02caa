package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kobo/internal/core"
	"kobo/internal/period"
)

// Report names one analytics view.
type Report string

const (
	ReportSummary    Report = "summary"
	ReportBreakdown  Report = "breakdown"
	ReportTrend      Report = "trend"
	ReportComparison Report = "comparison"
	ReportSeries     Report = "series"
)

var ErrUnknownReport = errors.New("unknown report")

func ParseReport(s string) (Report, error) {
	r := Report(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case ReportSummary, ReportBreakdown, ReportTrend, ReportComparison, ReportSeries:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReport, s)
}

// NeedsWindow reports whether the view is meaningless without a lookback.
func (r Report) NeedsWindow() bool {
	return r == ReportComparison || r == ReportSeries
}

// DefaultLookback fills in the last month for views that need a window.
func (f Filter) DefaultLookback(r Report) Filter {
	if f.Lookback == "" && r.NeedsWindow() {
		f.Lookback = period.LastMonth
	}
	return f
}

// Compute runs report r over txs. The result is one of Summary,
// []CategoryShare, []CategoryTrend, Comparison or []Point.
func Compute(r Report, txs []core.Transaction, f Filter, now time.Time) any {
	f = f.DefaultLookback(r)
	switch r {
	case ReportBreakdown:
		return Breakdown(f.Apply(txs, now))
	case ReportTrend:
		return Trend(f.Apply(txs, now), now)
	case ReportComparison:
		// The previous window lies before the lookback, so only the other
		// criteria narrow the input.
		window := f.Lookback
		f.Lookback = ""
		return Compare(f.Apply(txs, now), window, now)
	case ReportSeries:
		return Series(f.Apply(txs, now), f.Lookback)
	default:
		return Totals(f.Apply(txs, now))
	}
}
