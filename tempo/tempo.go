// Package tempo maps MIDI ticks onto hardware frames through a piecewise
// tempo timeline.
package tempo

import (
	"math"

	"midi2psg/parse"
)

// DefaultMicrosPerBeat is 120 BPM, inserted when a file carries no tempo
// event at tick zero.
const DefaultMicrosPerBeat = 500000

// Segment is one tempo span. EndTick < 0 means open-ended.
type Segment struct {
	StartTick      int
	EndTick        int
	MicrosPerBeat  int
	SecondsAtStart float64
}

// Map converts ticks to frames for one performance.
type Map struct {
	segments     []Segment
	ticksPerBeat int
	fps          int
}

// NewMap builds the segment timeline from sorted tempo changes. A default
// 120 BPM segment is prepended when the first change is not at tick zero.
func NewMap(changes []parse.TempoChange, ticksPerBeat, fps int) *Map {
	if len(changes) == 0 || changes[0].Tick != 0 {
		changes = append([]parse.TempoChange{{Tick: 0, MicrosPerBeat: DefaultMicrosPerBeat}}, changes...)
	}

	m := &Map{ticksPerBeat: ticksPerBeat, fps: fps}
	seconds := 0.0
	for i, ch := range changes {
		end := -1
		if i+1 < len(changes) {
			end = changes[i+1].Tick
		}
		m.segments = append(m.segments, Segment{
			StartTick:      ch.Tick,
			EndTick:        end,
			MicrosPerBeat:  ch.MicrosPerBeat,
			SecondsAtStart: seconds,
		})
		if end >= 0 {
			dticks := end - ch.Tick
			seconds += float64(ch.MicrosPerBeat) / 1e6 * float64(dticks) / float64(ticksPerBeat)
		}
	}
	return m
}

// ToFrame converts an absolute tick to a frame number, rounding half away
// from zero. Ticks beyond the last segment extend it.
func (m *Map) ToFrame(tick int) int {
	seg := m.segments[len(m.segments)-1]
	for _, s := range m.segments {
		if s.EndTick < 0 || tick < s.EndTick {
			seg = s
			break
		}
	}
	dticks := tick - seg.StartTick
	seconds := seg.SecondsAtStart + float64(seg.MicrosPerBeat)/1e6*float64(dticks)/float64(m.ticksPerBeat)
	return int(math.Round(seconds * float64(m.fps)))
}

// Segments returns the timeline, first segment always at tick zero.
func (m *Map) Segments() []Segment {
	return m.segments
}

// Changes is the number of tempo changes after the initial tempo.
func (m *Map) Changes() int {
	return len(m.segments) - 1
}

// FirstTempo and LastTempo report the boundary tempos for the summary.
func (m *Map) FirstTempo() int { return m.segments[0].MicrosPerBeat }
func (m *Map) LastTempo() int  { return m.segments[len(m.segments)-1].MicrosPerBeat }

// TicksPerBeat returns the source resolution the map was built with.
func (m *Map) TicksPerBeat() int { return m.ticksPerBeat }

// FPS returns the target frame rate the map was built with.
func (m *Map) FPS() int { return m.fps }
