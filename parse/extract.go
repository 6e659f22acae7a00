package parse

import (
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// MIDI controller numbers the extractor cares about.
const (
	ccVolume     = 7
	ccExpression = 11
	ccSustain    = 64
)

// channelState is the running controller state of one source channel,
// threaded through extraction instead of living in globals.
type channelState struct {
	bend        int
	volume      int
	expression  int
	sustainOn   bool
	activeCount int
}

type noteKey struct {
	channel int
	key     int
}

type openNote struct {
	start    int
	velocity int
	bend     int
}

type mergedEvent struct {
	tick int
	msg  smf.Message
}

// mergeTracks flattens all tracks into one absolute-tick-ordered sequence.
func mergeTracks(mid *smf.SMF) ([]mergedEvent, int) {
	var merged []mergedEvent
	lastTick := 0
	for _, track := range mid.Tracks {
		tick := 0
		for _, ev := range track {
			tick += int(ev.Delta)
			merged = append(merged, mergedEvent{tick: tick, msg: ev.Message})
		}
		if tick > lastTick {
			lastTick = tick
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].tick < merged[j].tick })
	return merged, lastTick
}

// extractNotes walks the merged event stream, matching note-on/note-off pairs
// (with optional sustain deferral) and recording controller sample runs.
func extractNotes(mid *smf.SMF, opts Options, score *Score) {
	merged, lastTick := mergeTracks(mid)

	states := make(map[int]*channelState)
	stateFor := func(ch int) *channelState {
		s, ok := states[ch]
		if !ok {
			s = &channelState{volume: 127, expression: 127}
			states[ch] = s
		}
		return s
	}

	active := make(map[noteKey]openNote)
	sustained := make(map[noteKey]openNote)

	closeNote := func(k noteKey, open openNote, endTick int) {
		dur := endTick - open.start
		if dur < 0 {
			dur = 0
		}
		score.Notes = append(score.Notes, Note{
			Start:    open.start,
			Duration: dur,
			Key:      k.key,
			Channel:  k.channel,
			Velocity: open.velocity,
			Bend:     open.bend,
		})
	}

	for _, ev := range merged {
		var (
			ch, key, vel uint8
			cc, val      uint8
			prog         uint8
			rel          int16
			abs          uint16
		)

		switch {
		case ev.msg.GetPitchBend(&ch, &rel, &abs):
			s := stateFor(int(ch))
			s.bend = int(rel)
			score.Bends[int(ch)] = append(score.Bends[int(ch)], BendSample{Tick: ev.tick, Value: int(rel)})
			score.Stats.BendEvents++
			if s.activeCount > 0 {
				score.Stats.BendDuringNote++
			}

		case ev.msg.GetProgramChange(&ch, &prog):
			score.Programs[int(ch)] = append(score.Programs[int(ch)], ProgramSample{Tick: ev.tick, Program: int(prog)})
			score.Stats.ProgramEvents++

		case ev.msg.GetControlChange(&ch, &cc, &val):
			s := stateFor(int(ch))
			switch int(cc) {
			case ccVolume:
				s.volume = int(val)
				score.Stats.CCVolumeEvents++
				score.Volumes[int(ch)] = append(score.Volumes[int(ch)],
					VolumeSample{Tick: ev.tick, Volume: s.volume, Expression: s.expression})
			case ccExpression:
				s.expression = int(val)
				score.Stats.CCExprEvents++
				score.Volumes[int(ch)] = append(score.Volumes[int(ch)],
					VolumeSample{Tick: ev.tick, Volume: s.volume, Expression: s.expression})
			case ccSustain:
				if !opts.UseSustain {
					score.Stats.CCSustainEvents++
					break
				}
				score.Stats.CCSustainEvents++
				s.sustainOn = val >= 64
				if !s.sustainOn {
					// Pedal up: release everything this channel parked.
					for k, open := range sustained {
						if k.channel != int(ch) {
							continue
						}
						delete(sustained, k)
						closeNote(k, open, ev.tick)
						if s.activeCount > 0 {
							s.activeCount--
						}
					}
				}
			}

		case ev.msg.GetNoteOn(&ch, &key, &vel):
			s := stateFor(int(ch))
			k := noteKey{channel: int(ch), key: int(key)}
			if vel > 0 {
				// Retrigger: an already-ringing or sustained note of the
				// same key is force-closed, never silently overwritten.
				if open, ok := active[k]; ok {
					delete(active, k)
					if s.activeCount > 0 {
						s.activeCount--
					}
					closeNote(k, open, ev.tick)
				}
				if open, ok := sustained[k]; ok {
					delete(sustained, k)
					if s.activeCount > 0 {
						s.activeCount--
					}
					closeNote(k, open, ev.tick)
				}
				active[k] = openNote{start: ev.tick, velocity: int(vel), bend: s.bend}
				s.activeCount++
			} else {
				// Velocity 0 is a note-off.
				endNote(k, s, active, sustained, opts, ev.tick, closeNote)
			}

		case ev.msg.GetNoteOff(&ch, &key, &vel):
			s := stateFor(int(ch))
			k := noteKey{channel: int(ch), key: int(key)}
			endNote(k, s, active, sustained, opts, ev.tick, closeNote)
		}
	}

	// Close whatever is still ringing at end-of-stream.
	for k, open := range active {
		closeNote(k, open, lastTick)
	}
	for k, open := range sustained {
		closeNote(k, open, lastTick)
	}

	sort.SliceStable(score.Notes, func(i, j int) bool {
		a, b := score.Notes[i], score.Notes[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Key < b.Key
	})

	score.Stats.TotalTicks = lastTick
	score.Stats.NoteCount = len(score.Notes)
}

// endNote handles a note-off: park the note if sustain holds the channel,
// otherwise close it.
func endNote(
	k noteKey,
	s *channelState,
	active, sustained map[noteKey]openNote,
	opts Options,
	tick int,
	closeNote func(noteKey, openNote, int),
) {
	open, ok := active[k]
	if !ok {
		return
	}
	delete(active, k)
	if opts.UseSustain && s.sustainOn {
		sustained[k] = open
		return
	}
	if s.activeCount > 0 {
		s.activeCount--
	}
	closeNote(k, open, tick)
}
