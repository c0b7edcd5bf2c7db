package model

import "sort"

// Timeline is one player's events in chronological order.
type Timeline struct {
	PlayerID int64
	Events   []Event
}

// Len returns the number of events in the timeline.
func (t Timeline) Len() int { return len(t.Events) }

// GroupTimelines partitions events by player. Each timeline is stable-sorted
// by game date so same-day events keep their input order. Timelines are
// returned in ascending player id order.
func GroupTimelines(events []Event) []Timeline {
	byPlayer := make(map[int64][]Event)
	for _, e := range events {
		byPlayer[e.PlayerID] = append(byPlayer[e.PlayerID], e)
	}

	out := make([]Timeline, 0, len(byPlayer))
	for id, evs := range byPlayer {
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].GameDate.Before(evs[j].GameDate)
		})
		out = append(out, Timeline{PlayerID: id, Events: evs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}
