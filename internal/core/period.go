package core

import "time"

// Period is a closed interval of instants. End is inclusive, typically
// 23:59:59.999 of the last day.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Overlaps reports whether the two closed intervals share at least one instant.
func (p Period) Overlaps(o Period) bool {
	return !p.Start.After(o.End) && !p.End.Before(o.Start)
}

// UTC returns the period with both bounds converted to UTC.
func (p Period) UTC() Period {
	return Period{Start: p.Start.UTC(), End: p.End.UTC()}
}

func (p Period) Equal(o Period) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}
