package statcast

import (
	"fmt"
	"time"
)

// DateRange is an inclusive range of game dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

const dateLayout = "2006-01-02"

// Key identifies the range in caches and logs.
func (r DateRange) Key() string {
	return r.Start.Format(dateLayout) + "_" + r.End.Format(dateLayout)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s to %s", r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

// SeasonRanges returns one range per calendar month from fromMonth to toMonth
// of every year in [startYear, endYear]. Each range ends on the true last day
// of its month.
func SeasonRanges(startYear, endYear int, fromMonth, toMonth time.Month) []DateRange {
	var out []DateRange
	for y := startYear; y <= endYear; y++ {
		for m := fromMonth; m <= toMonth; m++ {
			start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
			end := time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
			out = append(out, DateRange{Start: start, End: end})
		}
	}
	return out
}

// SplitRange cuts r into consecutive ranges of at most days days.
// A non-positive days returns r unchanged.
func SplitRange(r DateRange, days int) []DateRange {
	if days <= 0 {
		return []DateRange{r}
	}
	var out []DateRange
	for s := r.Start; !s.After(r.End); s = s.AddDate(0, 0, days) {
		e := s.AddDate(0, 0, days-1)
		if e.After(r.End) {
			e = r.End
		}
		out = append(out, DateRange{Start: s, End: e})
	}
	return out
}
