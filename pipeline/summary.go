package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"midi2psg/parse"
)

// summaryPreview is how many extracted events the header lists.
const summaryPreview = 20

// formatSummary renders the header comment block: counters, channel usage,
// and a short event preview. notes are the tick-domain events after the
// transform stages, so the preview shows what actually gets encoded.
func formatSummary(notes []parse.Note, stats parse.Stats, comment string) string {
	perChannel := make(map[int]int)
	for _, n := range notes {
		perChannel[n.Channel]++
	}

	lines := []string{
		fmt.Sprintf("%s MIDI summary: ticks_per_beat=%d, total_ticks=%d, events=%d",
			comment, stats.TicksPerBeat, stats.TotalTicks, stats.NoteCount),
	}
	if stats.BendEvents > 0 {
		lines = append(lines, fmt.Sprintf("%s Pitch bend: events=%d, during_notes=%d",
			comment, stats.BendEvents, stats.BendDuringNote))
	}
	if stats.CCVolumeEvents > 0 || stats.CCExprEvents > 0 {
		lines = append(lines, fmt.Sprintf("%s CC volume/expression: cc7=%d cc11=%d",
			comment, stats.CCVolumeEvents, stats.CCExprEvents))
	}
	if stats.CCSustainEvents > 0 {
		lines = append(lines, fmt.Sprintf("%s CC sustain: events=%d", comment, stats.CCSustainEvents))
	}
	if stats.ProgramEvents > 0 {
		lines = append(lines, fmt.Sprintf("%s Program change: events=%d", comment, stats.ProgramEvents))
	}

	if len(perChannel) > 0 {
		channels := make([]int, 0, len(perChannel))
		for ch := range perChannel {
			channels = append(channels, ch)
		}
		sort.Ints(channels)
		usage := make([]string, 0, len(channels))
		for _, ch := range channels {
			usage = append(usage, fmt.Sprintf("ch%d:%d", ch, perChannel[ch]))
		}
		lines = append(lines, fmt.Sprintf("%s Channel usage: %s", comment, strings.Join(usage, " ")))
	}

	if len(notes) > 0 {
		lines = append(lines, fmt.Sprintf("%s First events (start/dur/note/ch/vel):", comment))
		preview := notes
		if len(preview) > summaryPreview {
			preview = preview[:summaryPreview]
		}
		for _, n := range preview {
			lines = append(lines, fmt.Sprintf("%s t=%6d d=%4d n=%3d ch=%2d v=%3d",
				comment, n.Start, n.Duration, n.Key, n.Channel, n.Velocity))
		}
	}

	return strings.Join(lines, "\n") + "\n"
}

// channelList renders a sorted channel set for the summary.
func channelList(channels map[int]bool) []int {
	out := make([]int, 0, len(channels))
	for ch := range channels {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

// joinInts renders "0, 3, 5".
func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}
