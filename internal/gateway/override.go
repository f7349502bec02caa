package gateway

import (
	"sort"
	"time"

	"kobo/internal/core"
)

// MatchOverride picks the override for categoryID whose bounds are each
// strictly less than tolerance away from p. Among several candidates it prefers the smallest
// total drift, then the newest, then the lowest id.
func MatchOverride(overrides []core.BudgetOverride, categoryID string, p core.Period, tolerance time.Duration) (core.BudgetOverride, bool) {
	type candidate struct {
		o     core.BudgetOverride
		drift time.Duration
	}
	var candidates []candidate
	for _, o := range overrides {
		if o.CategoryID != categoryID {
			continue
		}
		ds, de := abs(o.PeriodStart.Sub(p.Start)), abs(o.PeriodEnd.Sub(p.End))
		if ds >= tolerance || de >= tolerance {
			continue
		}
		candidates = append(candidates, candidate{o: o, drift: ds + de})
	}
	if len(candidates) == 0 {
		return core.BudgetOverride{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.drift != b.drift {
			return a.drift < b.drift
		}
		if !a.o.CreatedAt.Equal(b.o.CreatedAt) {
			return a.o.CreatedAt.After(b.o.CreatedAt)
		}
		return a.o.ID < b.o.ID
	})
	return candidates[0].o, true
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
