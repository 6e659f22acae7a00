package voice

import (
	"sort"

	"midi2psg/transform"
)

// Stats counts allocator outcomes. Every category stays separately
// queryable.
type Stats struct {
	Dropped   int
	Preempted int
}

// priority ranks an active note against a contender: duration dominates,
// velocity breaks ties.
func priority(n transform.FrameNote) int {
	return n.Duration<<8 + n.Velocity
}

// Allocate assigns frame notes to voices greedily: candidates in
// (start, velocity desc, key) order each take the first idle voice. When all
// voices are busy and preemption is on, the weakest covering note is
// truncated to make room if the contender outranks it; otherwise the
// contender is dropped.
func Allocate(notes []transform.FrameNote, voices int, preempt bool) ([][]transform.FrameNote, Stats) {
	if voices < 1 {
		voices = 1
	}
	byVoice := make([][]transform.FrameNote, voices)
	busyUntil := make([]int, voices)
	activeIdx := make([]int, voices)
	for i := range activeIdx {
		activeIdx[i] = -1
	}

	ordered := make([]transform.FrameNote, len(notes))
	copy(ordered, notes)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Velocity != b.Velocity {
			return a.Velocity > b.Velocity
		}
		return a.Key < b.Key
	})

	var stats Stats
	for _, n := range ordered {
		assigned := -1
		for i := range byVoice {
			if busyUntil[i] <= n.Start {
				assigned = i
				break
			}
		}
		if assigned >= 0 {
			byVoice[assigned] = append(byVoice[assigned], n)
			activeIdx[assigned] = len(byVoice[assigned]) - 1
			busyUntil[assigned] = n.Start + n.Duration
			continue
		}

		if !preempt {
			stats.Dropped++
			continue
		}

		// Find the weakest note whose span covers the new start.
		weakest, weakestScore := -1, 0
		for i := range byVoice {
			idx := activeIdx[i]
			if idx < 0 {
				continue
			}
			active := byVoice[i][idx]
			if active.Start <= n.Start && n.Start < active.Start+active.Duration {
				score := priority(active)
				if weakest < 0 || score < weakestScore {
					weakest = i
					weakestScore = score
				}
			}
		}
		if weakest < 0 || priority(n) <= weakestScore {
			stats.Dropped++
			continue
		}

		idx := activeIdx[weakest]
		newDur := n.Start - byVoice[weakest][idx].Start
		if newDur <= 0 {
			stats.Dropped++
			continue
		}
		byVoice[weakest][idx].Duration = newDur
		stats.Preempted++
		byVoice[weakest] = append(byVoice[weakest], n)
		activeIdx[weakest] = len(byVoice[weakest]) - 1
		busyUntil[weakest] = n.Start + n.Duration
	}

	return byVoice, stats
}
