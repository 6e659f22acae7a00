// Package voice decides which notes end up on which physical output stream:
// source-channel ranking, chord density thinning, mono reduction, greedy
// polyphonic allocation with optional preemption, and drum remapping.
package voice

import (
	"sort"

	"midi2psg/parse"
	"midi2psg/transform"
)

// PickChannels ranks source channels by note count (descending) and keeps
// the top max, never including excluded channels.
func PickChannels(notes []parse.Note, max int, exclude map[int]bool) map[int]bool {
	counts := make(map[int]int)
	for _, n := range notes {
		if !exclude[n.Channel] {
			counts[n.Channel]++
		}
	}
	channels := make([]int, 0, len(counts))
	for ch := range counts {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		if counts[channels[i]] != counts[channels[j]] {
			return counts[channels[i]] > counts[channels[j]]
		}
		return channels[i] < channels[j]
	})
	if len(channels) > max {
		channels = channels[:max]
	}
	picked := make(map[int]bool, len(channels))
	for _, ch := range channels {
		picked[ch] = true
	}
	return picked
}

// MaxPolyphony is the peak number of simultaneously sounding notes.
func MaxPolyphony(notes []transform.FrameNote) int {
	if len(notes) == 0 {
		return 0
	}
	type point struct {
		frame int
		delta int
	}
	points := make([]point, 0, len(notes)*2)
	for _, n := range notes {
		points = append(points, point{n.Start, 1}, point{n.Start + n.Duration, -1})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].frame != points[j].frame {
			return points[i].frame < points[j].frame
		}
		return points[i].delta > points[j].delta
	})
	cur, max := 0, 0
	for _, p := range points {
		cur += p.delta
		if cur > max {
			max = cur
		}
	}
	return max
}

// DensityScore ranks a note for chord thinning: longer, louder,
// lower-channel, lower-pitched notes score higher.
func DensityScore(n transform.FrameNote, channelBias, bassBias int) int {
	return 2*n.Duration + n.Velocity + channelBias*(15-n.Channel) + bassBias*(127-n.Key)
}

// LimitDensity keeps at most limit notes per start frame, ranked by
// DensityScore. Returns the survivors and the dropped count.
func LimitDensity(notes []transform.FrameNote, limit, channelBias, bassBias int) ([]transform.FrameNote, int) {
	if limit <= 0 {
		return notes, 0
	}
	byStart := make(map[int][]transform.FrameNote)
	for _, n := range notes {
		byStart[n.Start] = append(byStart[n.Start], n)
	}
	starts := make([]int, 0, len(byStart))
	for s := range byStart {
		starts = append(starts, s)
	}
	sort.Ints(starts)

	var kept []transform.FrameNote
	dropped := 0
	for _, s := range starts {
		group := byStart[s]
		if len(group) <= limit {
			kept = append(kept, group...)
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return DensityScore(group[i], channelBias, bassBias) > DensityScore(group[j], channelBias, bassBias)
		})
		kept = append(kept, group[:limit]...)
		dropped += len(group) - limit
	}
	transform.SortFrameNotes(kept)
	return kept, dropped
}

// Mono keeps one note per distinct start frame: highest velocity first,
// ties to the lower channel, then the lower key.
func Mono(notes []transform.FrameNote) []transform.FrameNote {
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
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Key < b.Key
	})
	var mono []transform.FrameNote
	cursor := -1
	for _, n := range ordered {
		if n.Start == cursor {
			continue
		}
		mono = append(mono, n)
		cursor = n.Start
	}
	return mono
}
