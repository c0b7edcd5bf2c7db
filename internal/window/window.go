// Package window computes trailing rolling outcome rates over a player's
// timeline for every window size from 1 to a maximum, each paired with the
// outcome of the following event.
package window

import "github.com/pable/go-rollcorr/internal/model"

// Generate emits one observation per (position, window size) for window sizes
// 1..maxWindow, in window-major order. Rows whose trailing window or next event
// does not exist are still emitted with the matching validity flag cleared.
func Generate(tl model.Timeline, maxWindow int, emit func(model.Observation)) {
	evs := tl.Events
	n := len(evs)

	for w := 1; w <= maxWindow; w++ {
		var sums model.WindowSums
		for i := 0; i < n; i++ {
			cur := evs[i].Signals
			sums.Hits += cur.IsHit
			sums.OnBase += cur.IsOnBase
			sums.Bases += cur.TotalBases
			if i >= w {
				out := evs[i-w].Signals
				sums.Hits -= out.IsHit
				sums.OnBase -= out.IsOnBase
				sums.Bases -= out.TotalBases
			}

			obs := model.Observation{
				PlayerID:  tl.PlayerID,
				GameDate:  evs[i].GameDate,
				Window:    w,
				SumsValid: i >= w-1,
			}
			if obs.SumsValid {
				obs.Sums = sums
			}
			if i+1 < n {
				obs.Next = evs[i+1].Signals
				obs.NextValid = true
			}
			emit(obs)
		}
	}
}

// Collect returns only the complete observations of a timeline.
func Collect(tl model.Timeline, maxWindow int) []model.Observation {
	out := make([]model.Observation, 0, CompleteRows(tl.Len(), maxWindow))
	Generate(tl, maxWindow, func(o model.Observation) {
		if o.Complete() {
			out = append(out, o)
		}
	})
	return out
}

// Support returns how many positions of a length-n timeline have a defined
// rolling statistic for window w, and how many have a defined next target.
func Support(n, w int) (rolling, target int) {
	return max(0, n-w+1), max(0, n-1)
}

// CompleteRows returns the number of complete observations a length-n timeline
// yields across window sizes 1..maxWindow.
func CompleteRows(n, maxWindow int) int {
	total := 0
	for w := 1; w <= maxWindow; w++ {
		total += max(0, n-w)
	}
	return total
}
