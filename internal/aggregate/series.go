package aggregate

import (
	"sort"
	"time"

	"kobo/internal/core"
	"kobo/internal/period"
)

// MaxSeriesPoints caps the number of buckets returned by Series.
const MaxSeriesPoints = 10

// Point is one chart bucket.
type Point struct {
	Label   string     `json:"label"`
	Time    time.Time  `json:"time"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
}

// Series buckets transactions by the lookback's label granularity. A bucket
// takes the date of the first transaction that created it; buckets come back
// in ascending time order, keeping only the most recent MaxSeriesPoints.
//
// Labels are not unique across years for week, month and quarter lookbacks,
// so callers filter to the lookback window first.
func Series(txs []core.Transaction, l period.Lookback) []Point {
	index := make(map[string]int)
	points := make([]Point, 0)
	for _, tx := range txs {
		label := l.BucketLabel(tx.Date)
		i, ok := index[label]
		if !ok {
			i = len(points)
			index[label] = i
			points = append(points, Point{Label: label, Time: tx.Date.UTC()})
		}
		switch tx.Type {
		case core.Income:
			points[i].Income = points[i].Income.Add(tx.Amount)
		case core.Expense:
			points[i].Expense = points[i].Expense.Add(tx.Amount)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})
	if len(points) > MaxSeriesPoints {
		points = points[len(points)-MaxSeriesPoints:]
	}
	return points
}
