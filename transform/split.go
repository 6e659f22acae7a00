// Package transform turns extracted tick-domain notes into clamped,
// frame-domain notes through an ordered set of optional stages: controller
// splitting, quantization, pitch-bend application, transpose/clamp, and
// tick-to-frame conversion. Every stage consumes its input slice and returns
// a fresh ordered slice.
package transform

import (
	"math"
	"sort"

	"midi2psg/parse"
)

// SplitByBend cuts each note at the pitch-bend change ticks inside its span,
// so every sub-note carries the bend value active at its own start. Returns
// the number of extra segments produced.
func SplitByBend(notes []parse.Note, bends map[int][]parse.BendSample) ([]parse.Note, int) {
	if len(bends) == 0 {
		return notes, 0
	}
	var out []parse.Note
	splits := 0
	for _, n := range notes {
		chBends := bends[n.Channel]
		if len(chBends) == 0 {
			out = append(out, n)
			continue
		}
		start, end := n.Start, n.Start+n.Duration
		if end <= start {
			continue
		}

		bend := 0
		i := 0
		for i < len(chBends) && chBends[i].Tick <= start {
			bend = chBends[i].Value
			i++
		}
		cur := start
		for i < len(chBends) && chBends[i].Tick < end {
			s := chBends[i]
			if s.Tick > cur {
				sub := n
				sub.Start = cur
				sub.Duration = s.Tick - cur
				sub.Bend = bend
				out = append(out, sub)
				splits++
			}
			bend = s.Value
			cur = s.Tick
			i++
		}
		if cur < end {
			sub := n
			sub.Start = cur
			sub.Duration = end - cur
			sub.Bend = bend
			out = append(out, sub)
		}
	}
	sortNotes(out)
	return out, splits
}

// SplitByVolume cuts notes at CC7/CC11 change ticks and rescales each
// sub-note's velocity by the volume and expression active at its start.
// Returns the split count and the number of velocity-rescaled segments.
func SplitByVolume(notes []parse.Note, volumes map[int][]parse.VolumeSample) ([]parse.Note, int, int) {
	if len(volumes) == 0 {
		return notes, 0, 0
	}
	var out []parse.Note
	splits, scaled := 0, 0
	for _, n := range notes {
		chVols := volumes[n.Channel]
		if len(chVols) == 0 {
			out = append(out, n)
			continue
		}
		start, end := n.Start, n.Start+n.Duration
		if end <= start {
			continue
		}

		vol, expr := 127, 127
		i := 0
		for i < len(chVols) && chVols[i].Tick <= start {
			vol, expr = chVols[i].Volume, chVols[i].Expression
			i++
		}
		cur := start
		for i < len(chVols) && chVols[i].Tick < end {
			s := chVols[i]
			if s.Tick > cur {
				sub := n
				sub.Start = cur
				sub.Duration = s.Tick - cur
				sub.Velocity = scaleVelocity(n.Velocity, vol, expr)
				out = append(out, sub)
				splits++
				scaled++
			}
			vol, expr = s.Volume, s.Expression
			cur = s.Tick
			i++
		}
		if cur < end {
			sub := n
			sub.Start = cur
			sub.Duration = end - cur
			sub.Velocity = scaleVelocity(n.Velocity, vol, expr)
			out = append(out, sub)
			scaled++
		}
	}
	sortNotes(out)
	return out, splits, scaled
}

// scaleVelocity applies the CC7*CC11 product, clamped to the MIDI range.
func scaleVelocity(velocity, volume, expression int) int {
	v := int(math.Round(float64(velocity) * float64(volume) / 127.0 * float64(expression) / 127.0))
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}

// sortNotes orders by (start, channel, key), the canonical tick ordering.
func sortNotes(notes []parse.Note) {
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
