package transform

import (
	"sort"

	"midi2psg/parse"
	"midi2psg/tempo"
)

// FrameNote is a note in the hardware timebase, the unit every later stage
// consumes. Duration is always at least one frame.
type FrameNote struct {
	Start    int
	Duration int
	Key      int
	Channel  int
	Velocity int
}

// ToFrames converts tick-domain notes through the tempo map. Start and end
// round independently; a note that rounds to nothing keeps one frame.
func ToFrames(notes []parse.Note, tm *tempo.Map) []FrameNote {
	out := make([]FrameNote, 0, len(notes))
	for _, n := range notes {
		start := tm.ToFrame(n.Start)
		end := tm.ToFrame(n.Start + n.Duration)
		if end <= start {
			end = start + 1
		}
		out = append(out, FrameNote{
			Start:    start,
			Duration: end - start,
			Key:      n.Key,
			Channel:  n.Channel,
			Velocity: n.Velocity,
		})
	}
	SortFrameNotes(out)
	return out
}

// SortFrameNotes orders by (start, channel, key), the canonical frame
// ordering shared by every stage.
func SortFrameNotes(notes []FrameNote) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Key < b.Key
	})
}

// MaxEndFrame is the largest note end across the list, the stream's target
// length in frames.
func MaxEndFrame(notes []FrameNote) int {
	max := 0
	for _, n := range notes {
		if end := n.Start + n.Duration; end > max {
			max = end
		}
	}
	return max
}
