package emit

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"midi2psg/instrument"
	"midi2psg/transform"
)

// TraceEntry is one voice's note list for the trace log.
type TraceEntry struct {
	Label string
	Notes []transform.FrameNote
}

// WriteTrace writes the per-voice trace log: header lines, the loop frame if
// set, then one section per voice with each note's timing, pitch, resolved
// program, and instrument parameters.
func WriteTrace(
	path string,
	header []string,
	entries []TraceEntry,
	timelines map[int]instrument.Timeline,
	imap *instrument.Map,
	loopFrame int,
) error {
	if path == "" {
		return nil
	}

	var lines []string
	lines = append(lines, header...)
	if loopFrame >= 0 {
		lines = append(lines, fmt.Sprintf("loop_start_frame=%d", loopFrame))
	}
	lines = append(lines, "")

	for _, entry := range entries {
		lines = append(lines, fmt.Sprintf("[%s]", entry.Label))
		notes := make([]transform.FrameNote, len(entry.Notes))
		copy(notes, entry.Notes)
		sort.SliceStable(notes, func(i, j int) bool {
			if notes[i].Start != notes[j].Start {
				return notes[i].Start < notes[j].Start
			}
			return notes[i].Key < notes[j].Key
		})
		for _, n := range notes {
			prog, instStr := resolveTrace(timelines, imap, n.Channel, n.Start)
			lines = append(lines, fmt.Sprintf(
				"frame=%d dur=%d note=%d ch=%d vel=%d prog=%d %s",
				n.Start, n.Duration, n.Key, n.Channel, n.Velocity, prog, instStr))
		}
		lines = append(lines, "")
	}

	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

// resolveTrace resolves the program and instrument text for one note, even
// when no instrument map was loaded.
func resolveTrace(timelines map[int]instrument.Timeline, imap *instrument.Map, channel, frame int) (int, string) {
	if imap == nil {
		return instrument.ProgramAt(timelines, channel, frame, 0), "inst=none"
	}
	prog := instrument.ProgramAt(timelines, channel, frame, imap.DefaultProgram)
	return prog, imap.Resolve(prog).String()
}
