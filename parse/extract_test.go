package parse

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// buildSMF assembles a single-track file at 480 ticks per beat. closeAt is
// the end-of-track position in ticks past the last event.
func buildSMF(t *testing.T, closeAt uint32, build func(tr *smf.Track)) *smf.SMF {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	build(&tr)
	tr.Close(closeAt)
	if err := s.Add(tr); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestExtractBasic(t *testing.T) {
	mid := buildSMF(t, 0, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(480, midi.NoteOff(0, 60))
	})
	score, err := Extract(mid, Options{UseSustain: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(score.Notes) != 1 {
		t.Fatalf("got %d notes, want 1", len(score.Notes))
	}
	n := score.Notes[0]
	if n.Start != 0 || n.Duration != 480 || n.Key != 60 || n.Channel != 0 || n.Velocity != 100 {
		t.Errorf("note = %+v", n)
	}
	if len(score.Tempos) != 1 || score.Tempos[0].MicrosPerBeat != 500000 {
		t.Errorf("tempos = %+v, want one 500000 us/beat change", score.Tempos)
	}
	if score.TicksPerBeat != 480 {
		t.Errorf("ticks per beat = %d", score.TicksPerBeat)
	}
}

func TestExtractRetrigger(t *testing.T) {
	mid := buildSMF(t, 0, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(240, midi.NoteOn(0, 60, 90)) // same key while ringing
		tr.Add(240, midi.NoteOff(0, 60))
	})
	score, err := Extract(mid, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(score.Notes) != 2 {
		t.Fatalf("got %d notes, want 2 (retrigger must close the first)", len(score.Notes))
	}
	first, second := score.Notes[0], score.Notes[1]
	if first.Start != 0 || first.Duration != 240 || first.Velocity != 100 {
		t.Errorf("first = %+v", first)
	}
	if second.Start != 240 || second.Duration != 240 || second.Velocity != 90 {
		t.Errorf("second = %+v", second)
	}
}

func TestExtractVelocityZeroIsNoteOff(t *testing.T) {
	mid := buildSMF(t, 0, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(2, 64, 80))
		tr.Add(120, midi.NoteOn(2, 64, 0))
	})
	score, err := Extract(mid, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(score.Notes) != 1 || score.Notes[0].Duration != 120 {
		t.Errorf("notes = %+v", score.Notes)
	}
}

func TestExtractSustain(t *testing.T) {
	build := func(tr *smf.Track) {
		tr.Add(0, midi.ControlChange(0, 64, 127)) // pedal down
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(240, midi.NoteOff(0, 60)) // parked, not closed
		tr.Add(240, midi.ControlChange(0, 64, 0))
	}

	t.Run("enabled", func(t *testing.T) {
		score, err := Extract(buildSMF(t, 0, build), Options{UseSustain: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(score.Notes) != 1 || score.Notes[0].Duration != 480 {
			t.Errorf("sustain should stretch the note to pedal-up: %+v", score.Notes)
		}
		if score.Stats.CCSustainEvents != 2 {
			t.Errorf("sustain events = %d, want 2", score.Stats.CCSustainEvents)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		score, err := Extract(buildSMF(t, 0, build), Options{UseSustain: false})
		if err != nil {
			t.Fatal(err)
		}
		if len(score.Notes) != 1 || score.Notes[0].Duration != 240 {
			t.Errorf("disabled sustain must not stretch: %+v", score.Notes)
		}
		// Still counted so the front end can warn.
		if score.Stats.CCSustainEvents != 2 {
			t.Errorf("sustain events = %d, want 2", score.Stats.CCSustainEvents)
		}
	})
}

func TestExtractEndOfStreamClose(t *testing.T) {
	mid := buildSMF(t, 960, func(tr *smf.Track) {
		tr.Add(0, midi.NoteOn(0, 60, 100)) // never released
	})
	score, err := Extract(mid, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(score.Notes) != 1 || score.Notes[0].Duration != 960 {
		t.Errorf("dangling note should close at end of stream: %+v", score.Notes)
	}
}

func TestExtractBendTracking(t *testing.T) {
	mid := buildSMF(t, 0, func(tr *smf.Track) {
		tr.Add(0, midi.Pitchbend(0, 4096))
		tr.Add(0, midi.NoteOn(0, 60, 100))
		tr.Add(120, midi.Pitchbend(0, 8191)) // during the note
		tr.Add(120, midi.NoteOff(0, 60))
	})
	score, err := Extract(mid, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if score.Notes[0].Bend != 4096 {
		t.Errorf("note should carry the onset bend, got %d", score.Notes[0].Bend)
	}
	if score.Stats.BendEvents != 2 || score.Stats.BendDuringNote != 1 {
		t.Errorf("bend stats = %+v", score.Stats)
	}
	if len(score.Bends[0]) != 2 {
		t.Errorf("bend samples = %+v", score.Bends[0])
	}
}

func TestExtractNoEvents(t *testing.T) {
	mid := buildSMF(t, 0, func(tr *smf.Track) {})
	if _, err := Extract(mid, Options{}); err != ErrNoEvents {
		t.Errorf("err = %v, want ErrNoEvents", err)
	}
}

func TestExtractVolumeTracking(t *testing.T) {
	mid := buildSMF(t, 0, func(tr *smf.Track) {
		tr.Add(0, midi.ControlChange(3, 7, 100))
		tr.Add(0, midi.NoteOn(3, 60, 100))
		tr.Add(60, midi.ControlChange(3, 11, 64))
		tr.Add(60, midi.NoteOff(3, 60))
	})
	score, err := Extract(mid, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if score.Stats.CCVolumeEvents != 1 || score.Stats.CCExprEvents != 1 {
		t.Errorf("cc stats = %+v", score.Stats)
	}
	samples := score.Volumes[3]
	if len(samples) != 2 {
		t.Fatalf("volume samples = %+v", samples)
	}
	if samples[1].Volume != 100 || samples[1].Expression != 64 {
		t.Errorf("second sample should combine running values: %+v", samples[1])
	}
}
