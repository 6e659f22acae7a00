// Package stream serializes per-voice frame notes (plus optional FX events)
// into the driver's byte-oriented run-length format and resolves loop
// positions within it.
package stream

import (
	"sort"

	"midi2psg/instrument"
	"midi2psg/t6w28"
	"midi2psg/transform"
)

// Options parameterize one encode pass.
type Options struct {
	BaseNote  int  // MIDI note of table index 1 (tone voices)
	LoopFrame int  // -1 = no loop
	Noise     bool // noise voice: keys map to generator indexes 1..8
}

// Stats are the per-stream diagnostic counters, each separately reported.
type Stats struct {
	DroppedOverlap int // notes starting before the cursor
	OutOfRange     int // tone notes outside the table window, encoded as rests
	Bytes          int
	LoopOffset     int // byte offset for loop re-entry (0 when no loop)
}

// Encode walks notes in start order, interleaving FX events ahead of notes
// at the same frame, bridging gaps with rest runs, and chunking every run at
// 255 frames. The stream ends with the end marker; the loop offset latches
// at the first emitted unit whose source frame reaches the loop frame.
func Encode(notes []transform.FrameNote, fx []instrument.FxEvent, opts Options) ([]byte, Stats) {
	var (
		out    []byte
		stats  Stats
		cursor int
	)
	loopOffset := -1

	fxSorted := make([]instrument.FxEvent, len(fx))
	copy(fxSorted, fx)
	sort.SliceStable(fxSorted, func(i, j int) bool { return fxSorted[i].Frame < fxSorted[j].Frame })
	fxIdx := 0

	maybeLoop := func(frame int) {
		if loopOffset < 0 && opts.LoopFrame >= 0 && frame >= opts.LoopFrame {
			loopOffset = len(out)
		}
	}

	// emitRun writes (value, length) pairs for run frames starting at frame,
	// chunked at the cap, latching the loop offset per chunk.
	emitRun := func(value byte, frames, frame int) {
		for frames > 0 {
			chunk := frames
			if chunk > t6w28.MaxRunLength {
				chunk = t6w28.MaxRunLength
			}
			maybeLoop(frame)
			out = append(out, value, byte(chunk))
			frames -= chunk
			frame += chunk
		}
	}

	for _, n := range notes {
		if n.Start < cursor {
			stats.DroppedOverlap++
			continue
		}

		// FX due at or before this note go out first, resting up to their
		// frame if needed.
		for fxIdx < len(fxSorted) && fxSorted[fxIdx].Frame <= n.Start {
			ev := fxSorted[fxIdx]
			if ev.Frame > cursor {
				emitRun(t6w28.RestCode, ev.Frame-cursor, cursor)
				cursor = ev.Frame
			}
			maybeLoop(cursor)
			out = append(out, ev.Ops...)
			fxIdx++
		}

		if n.Start > cursor {
			emitRun(t6w28.RestCode, n.Start-cursor, cursor)
			cursor = n.Start
		}

		dur := n.Duration
		if dur < 1 {
			dur = 1
		}
		if opts.Noise {
			emitRun(byte(n.Key&0x07)+1, dur, n.Start)
		} else if idx, ok := t6w28.NoteIndex(n.Key, opts.BaseNote); ok {
			emitRun(byte(idx), dur, n.Start)
		} else {
			stats.OutOfRange++
			emitRun(t6w28.RestCode, dur, n.Start)
		}
		cursor = n.Start + dur
	}

	if loopOffset < 0 && opts.LoopFrame >= 0 {
		loopOffset = len(out)
	}
	out = append(out, t6w28.EndMarker)

	stats.Bytes = len(out)
	if loopOffset >= 0 {
		stats.LoopOffset = loopOffset
	}
	return out, stats
}

// EmptyStream is the one-byte stream used for forced empty voices.
func EmptyStream() ([]byte, Stats) {
	return []byte{t6w28.EndMarker}, Stats{Bytes: 1}
}

// TotalFrames decodes a stream's run-length pairs back into its frame total,
// skipping FX opcode bytes by their widths. The inverse check of Encode.
func TotalFrames(data []byte) int {
	total := 0
	for i := 0; i < len(data); {
		b := data[i]
		if b == t6w28.EndMarker {
			break
		}
		if w := t6w28.OpcodeWidth(b); w > 0 {
			i += w
			continue
		}
		if i+1 >= len(data) {
			break
		}
		total += int(data[i+1])
		i += 2
	}
	return total
}
