package instrument

import (
	"sort"

	"midi2psg/parse"
	"midi2psg/tempo"
	"midi2psg/transform"
)

// Timeline is a channel's program history in frames: Frames ascending,
// Programs[i] active from Frames[i] until the next entry.
type Timeline struct {
	Frames   []int
	Programs []int
}

// FxEvent is one scheduled opcode emission for a voice.
type FxEvent struct {
	Frame   int
	Ops     []byte
	Program int
	Inst    Instrument
	Channel int
}

// BuildTimelines quantizes program changes onto the note grid, converts to
// frames, and collapses duplicates landing on the same frame (last wins).
func BuildTimelines(programs map[int][]parse.ProgramSample, tm *tempo.Map, grid int) map[int]Timeline {
	timelines := make(map[int]Timeline)
	for ch, samples := range programs {
		if len(samples) == 0 {
			continue
		}
		sorted := make([]parse.ProgramSample, len(samples))
		copy(sorted, samples)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tick < sorted[j].Tick })

		var tl Timeline
		for _, s := range sorted {
			tick := s.Tick
			if grid > 1 {
				tick = (2*tick + grid) / (2 * grid) * grid
			}
			frame := tm.ToFrame(tick)
			if n := len(tl.Frames); n > 0 && tl.Frames[n-1] == frame {
				tl.Programs[n-1] = s.Program
			} else {
				tl.Frames = append(tl.Frames, frame)
				tl.Programs = append(tl.Programs, s.Program)
			}
		}
		timelines[ch] = tl
	}
	return timelines
}

// ProgramAt resolves the program active at a frame, or fallback when the
// timeline is empty or starts later.
func (t Timeline) ProgramAt(frame, fallback int) int {
	idx := sort.Search(len(t.Frames), func(i int) bool { return t.Frames[i] > frame }) - 1
	if idx < 0 {
		return fallback
	}
	return t.Programs[idx]
}

// ProgramAt looks a channel's timeline up, falling back to the map default.
func ProgramAt(timelines map[int]Timeline, channel, frame, fallback int) int {
	tl, ok := timelines[channel]
	if !ok {
		return fallback
	}
	return tl.ProgramAt(frame, fallback)
}

// VoiceFX walks a voice's notes in order and emits one FxEvent each time the
// resolved program differs from the previous emission. Strictly on-change:
// a voice playing one program the whole way gets exactly one event.
func VoiceFX(notes []transform.FrameNote, timelines map[int]Timeline, m *Map) []FxEvent {
	ordered := make([]transform.FrameNote, len(notes))
	copy(ordered, notes)
	transform.SortFrameNotes(ordered)

	var out []FxEvent
	lastProgram := -1
	first := true
	for _, n := range ordered {
		program := ProgramAt(timelines, n.Channel, n.Start, m.DefaultProgram)
		if !first && program == lastProgram {
			continue
		}
		inst := m.Resolve(program)
		out = append(out, FxEvent{
			Frame:   n.Start,
			Ops:     inst.Opcodes(),
			Program: program,
			Inst:    inst,
			Channel: n.Channel,
		})
		lastProgram = program
		first = false
	}
	return out
}

// LoopResetFX appends a forced snapshot at the loop frame so a looping
// stream re-enters with the right timbre, whatever changed since.
func LoopResetFX(fx []FxEvent, loopFrame int, timelines map[int]Timeline, m *Map, channel int) []FxEvent {
	if loopFrame < 0 {
		return fx
	}
	program := ProgramAt(timelines, channel, loopFrame, m.DefaultProgram)
	inst := m.Resolve(program)
	return append(fx, FxEvent{
		Frame:   loopFrame,
		Ops:     inst.Opcodes(),
		Program: program,
		Inst:    inst,
		Channel: channel,
	})
}
