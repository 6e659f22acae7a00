// Package parse reads a Standard MIDI File into an absolute-tick event model:
// closed notes, per-channel controller sample runs, tempo changes, and the
// counters the summary reports.
package parse

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

var (
	// ErrUnsupportedFormat is returned for SMF types other than 0 and 1.
	ErrUnsupportedFormat = errors.New("unsupported MIDI file type (need type 0 or 1)")
	// ErrNoTempoInformation is returned when no tick-per-beat timebase exists.
	ErrNoTempoInformation = errors.New("no tempo information in MIDI file")
	// ErrNoEvents is returned when extraction yields zero notes.
	ErrNoEvents = errors.New("no note events in MIDI file")
)

// Note is a closed note in absolute ticks. Bend carries the pitch-bend value
// active on its channel at onset.
type Note struct {
	Start    int
	Duration int
	Key      int
	Channel  int
	Velocity int
	Bend     int
}

// BendSample is one pitch-bend change, value in [-8192, 8191].
type BendSample struct {
	Tick  int
	Value int
}

// VolumeSample is the running (CC7, CC11) pair after a change of either.
type VolumeSample struct {
	Tick       int
	Volume     int
	Expression int
}

// ProgramSample is one program-change event.
type ProgramSample struct {
	Tick    int
	Program int
}

// TempoChange is one set-tempo event in microseconds per beat.
type TempoChange struct {
	Tick          int
	MicrosPerBeat int
}

// Stats are the extraction counters surfaced in the output summary.
type Stats struct {
	TicksPerBeat    int
	TotalTicks      int
	NoteCount       int
	BendEvents      int
	BendDuringNote  int
	CCVolumeEvents  int
	CCExprEvents    int
	CCSustainEvents int
	ProgramEvents   int
}

// Score is the loaded performance handed to the transform stages.
type Score struct {
	TicksPerBeat int
	Notes        []Note
	Tempos       []TempoChange
	Bends        map[int][]BendSample
	Volumes      map[int][]VolumeSample
	Programs     map[int][]ProgramSample
	Stats        Stats
}

// Options controls which controller data the extractor tracks.
type Options struct {
	UseSustain bool // honor CC64 gates when closing notes
}

// LoadFile reads and extracts a .mid file.
func LoadFile(path string, opts Options) (*Score, error) {
	mid, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Extract(mid, opts)
}

// Load reads and extracts SMF data from r.
func Load(r io.Reader, opts Options) (*Score, error) {
	mid, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read MIDI stream: %w", err)
	}
	return Extract(mid, opts)
}

// Extract builds a Score from an already-parsed SMF.
func Extract(mid *smf.SMF, opts Options) (*Score, error) {
	if f := mid.Format(); f != 0 && f != 1 {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedFormat, f)
	}
	ticks, ok := mid.TimeFormat.(smf.MetricTicks)
	if !ok || int(ticks) <= 0 {
		return nil, fmt.Errorf("%w: time format %v", ErrNoTempoInformation, mid.TimeFormat)
	}

	score := &Score{
		TicksPerBeat: int(ticks),
		Bends:        make(map[int][]BendSample),
		Volumes:      make(map[int][]VolumeSample),
		Programs:     make(map[int][]ProgramSample),
	}
	score.Stats.TicksPerBeat = score.TicksPerBeat

	score.Tempos = tempoChanges(mid)
	extractNotes(mid, opts, score)

	if len(score.Notes) == 0 {
		return nil, ErrNoEvents
	}
	return score, nil
}

// tempoChanges collects set-tempo events across all tracks in absolute ticks.
func tempoChanges(mid *smf.SMF) []TempoChange {
	var out []TempoChange
	for _, track := range mid.Tracks {
		tick := 0
		for _, ev := range track {
			tick += int(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				out = append(out, TempoChange{
					Tick:          tick,
					MicrosPerBeat: int(60_000_000.0/bpm + 0.5),
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out
}
