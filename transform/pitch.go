package transform

import (
	"math"

	"midi2psg/config"
	"midi2psg/parse"
	"midi2psg/t6w28"
)

// Quantize snaps note starts and ends independently to the nearest grid
// multiple (half rounds up). A note that collapses gets one grid unit back.
func Quantize(notes []parse.Note, grid int) []parse.Note {
	out := make([]parse.Note, 0, len(notes))
	for _, n := range notes {
		start := snap(n.Start, grid)
		end := snap(n.Start+n.Duration, grid)
		if end <= start {
			end = start + grid
		}
		q := n
		q.Start = start
		q.Duration = end - start
		out = append(out, q)
	}
	sortNotes(out)
	return out
}

// snap rounds to the nearest multiple of grid, half upward.
func snap(tick, grid int) int {
	return (2*tick + grid) / (2 * grid) * grid
}

// ApplyBend folds each note's onset bend value into its pitch:
// round(bend/8192 * bendRange) semitones. The noise channel is untouched.
// Returns the shifted-note count and the largest absolute shift.
func ApplyBend(notes []parse.Note, bendRange int, role func(int) config.ChannelRole) ([]parse.Note, int, int) {
	if bendRange <= 0 {
		return notes, 0, 0
	}
	out := make([]parse.Note, 0, len(notes))
	shifted, maxShift := 0, 0
	for _, n := range notes {
		if role(n.Channel) == config.RoleNoise {
			out = append(out, n)
			continue
		}
		semis := 0
		if n.Bend != 0 {
			semis = int(math.Round(float64(n.Bend) / 8192.0 * float64(bendRange)))
		}
		if semis != 0 {
			shifted++
			if a := abs(semis); a > maxShift {
				maxShift = a
			}
		}
		b := n
		b.Key += semis
		out = append(out, b)
	}
	return out, shifted, maxShift
}

// TransposeAndClamp finds the minimal whole-semitone shift (within ±48,
// ties to the negative side) that fits the non-noise pitch range inside the
// note table window, applies it uniformly, then optionally clips leftovers
// to the window edges. Noise-channel notes pass through unshifted.
func TransposeAndClamp(
	notes []parse.Note,
	baseNote int,
	autoTranspose, clamp bool,
	role func(int) config.ChannelRole,
) ([]parse.Note, int) {
	if len(notes) == 0 {
		return notes, 0
	}

	low := baseNote
	high := baseNote + t6w28.TableSize - 1

	minKey, maxKey := 0, 0
	haveTonal := false
	for _, n := range notes {
		if role(n.Channel) == config.RoleNoise {
			continue
		}
		if !haveTonal || n.Key < minKey {
			minKey = n.Key
		}
		if !haveTonal || n.Key > maxKey {
			maxKey = n.Key
		}
		haveTonal = true
	}
	if !haveTonal {
		return notes, 0
	}

	transpose := 0
	if autoTranspose {
		best, found := 0, false
		for t := -48; t <= 48; t++ {
			if minKey+t < low || maxKey+t > high {
				continue
			}
			if !found || abs(t) < abs(best) || (abs(t) == abs(best) && t < best) {
				best = t
				found = true
			}
		}
		if found {
			transpose = best
		}
	}

	out := make([]parse.Note, 0, len(notes))
	for _, n := range notes {
		if role(n.Channel) == config.RoleNoise {
			out = append(out, n)
			continue
		}
		key := n.Key + transpose
		if clamp {
			if key < low {
				key = low
			} else if key > high {
				key = high
			}
		}
		c := n
		c.Key = key
		out = append(out, c)
	}
	return out, transpose
}

// CountOutOfRange reports how many notes fall outside the table window.
// Used for the no-clamp warning.
func CountOutOfRange(notes []parse.Note, baseNote int) int {
	count := 0
	for _, n := range notes {
		if _, ok := t6w28.NoteIndex(n.Key, baseNote); !ok {
			count++
		}
	}
	return count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
