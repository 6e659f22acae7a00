package stream

import (
	"bytes"
	"testing"

	"midi2psg/instrument"
	"midi2psg/t6w28"
	"midi2psg/transform"
)

func TestEncodeSingleNote(t *testing.T) {
	notes := []transform.FrameNote{{Start: 0, Duration: 10, Key: 45}}
	data, st := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: -1})
	want := []byte{1, 10, t6w28.EndMarker}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
	if st.Bytes != 3 || st.OutOfRange != 0 || st.DroppedOverlap != 0 {
		t.Errorf("stats = %+v", st)
	}
	if TotalFrames(data) != 10 {
		t.Errorf("total frames = %d, want 10", TotalFrames(data))
	}
}

func TestEncodeRestBridging(t *testing.T) {
	notes := []transform.FrameNote{
		{Start: 5, Duration: 10, Key: 47},
		{Start: 20, Duration: 5, Key: 45},
	}
	data, _ := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: -1})
	want := []byte{
		t6w28.RestCode, 5,
		3, 10,
		t6w28.RestCode, 5,
		1, 5,
		t6w28.EndMarker,
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
	if TotalFrames(data) != 25 {
		t.Errorf("total frames = %d, want 25", TotalFrames(data))
	}
}

func TestEncodeRunChunking(t *testing.T) {
	notes := []transform.FrameNote{{Start: 0, Duration: 300, Key: 45}}
	data, _ := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: -1})
	want := []byte{1, 255, 1, 45, t6w28.EndMarker}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
	if TotalFrames(data) != 300 {
		t.Errorf("total frames = %d", TotalFrames(data))
	}
}

func TestEncodeOverlapDrop(t *testing.T) {
	notes := []transform.FrameNote{
		{Start: 0, Duration: 10, Key: 45},
		{Start: 5, Duration: 10, Key: 47}, // starts inside the first
	}
	data, st := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: -1})
	if st.DroppedOverlap != 1 {
		t.Errorf("overlap drops = %d, want 1", st.DroppedOverlap)
	}
	if !bytes.Equal(data, []byte{1, 10, t6w28.EndMarker}) {
		t.Errorf("data = %v", data)
	}
}

func TestEncodeOutOfRange(t *testing.T) {
	notes := []transform.FrameNote{{Start: 0, Duration: 8, Key: 20}}
	data, st := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: -1})
	if st.OutOfRange != 1 {
		t.Errorf("out of range = %d, want 1", st.OutOfRange)
	}
	// The note's time still passes as a rest, keeping streams in sync.
	if !bytes.Equal(data, []byte{t6w28.RestCode, 8, t6w28.EndMarker}) {
		t.Errorf("data = %v", data)
	}
}

func TestEncodeNoise(t *testing.T) {
	notes := []transform.FrameNote{{Start: 0, Duration: 4, Key: 2}}
	data, st := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: -1, Noise: true})
	// Noise keys map to generator index (key&7)+1, never the note table.
	if !bytes.Equal(data, []byte{3, 4, t6w28.EndMarker}) {
		t.Errorf("data = %v", data)
	}
	if st.OutOfRange != 0 {
		t.Errorf("noise should never be out of range: %+v", st)
	}
}

func TestEncodeLoopOffset(t *testing.T) {
	t.Run("unit start", func(t *testing.T) {
		notes := []transform.FrameNote{
			{Start: 0, Duration: 5, Key: 45},
			{Start: 5, Duration: 5, Key: 47},
		}
		data, st := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: 5})
		if st.LoopOffset != 2 {
			t.Errorf("loop offset = %d, want 2 (start of second pair)", st.LoopOffset)
		}
		// Never mid-pair.
		if st.LoopOffset%2 != 0 {
			t.Errorf("loop offset %d lands mid-pair", st.LoopOffset)
		}
		if !bytes.Equal(data, []byte{1, 5, 3, 5, t6w28.EndMarker}) {
			t.Errorf("data = %v", data)
		}
	})

	t.Run("past the end falls back to end marker", func(t *testing.T) {
		notes := []transform.FrameNote{{Start: 0, Duration: 5, Key: 45}}
		data, st := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: 100})
		if st.LoopOffset != len(data)-1 {
			t.Errorf("loop offset = %d, want %d", st.LoopOffset, len(data)-1)
		}
	})

	t.Run("inside chunked rest", func(t *testing.T) {
		notes := []transform.FrameNote{{Start: 400, Duration: 5, Key: 45}}
		data, st := Encode(notes, nil, Options{BaseNote: 45, LoopFrame: 300})
		// Rest chunks start at 0 and 255, both before the loop frame; the
		// note pair at frame 400 is the first unit at or past it.
		if st.LoopOffset != 4 {
			t.Errorf("loop offset = %d, want 4", st.LoopOffset)
		}
		if !bytes.Equal(data[:4], []byte{t6w28.RestCode, 255, t6w28.RestCode, 145}) {
			t.Errorf("data = %v", data)
		}
	})
}

func TestEncodeFX(t *testing.T) {
	fx := []instrument.FxEvent{
		{Frame: 0, Ops: []byte{t6w28.OpSetAttn, 2}},
		{Frame: 10, Ops: []byte{t6w28.OpSetAttn, 8}},
	}
	notes := []transform.FrameNote{
		{Start: 0, Duration: 10, Key: 45},
		{Start: 10, Duration: 5, Key: 46},
	}
	data, _ := Encode(notes, fx, Options{BaseNote: 45, LoopFrame: -1})
	want := []byte{
		t6w28.OpSetAttn, 2,
		1, 10,
		t6w28.OpSetAttn, 8,
		2, 5,
		t6w28.EndMarker,
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
	// Opcodes carry no time: the decoder walk must skip them.
	if TotalFrames(data) != 15 {
		t.Errorf("total frames = %d, want 15", TotalFrames(data))
	}
}

func TestEncodeFXBeforeNote(t *testing.T) {
	fx := []instrument.FxEvent{{Frame: 5, Ops: []byte{t6w28.OpSetAttn, 4}}}
	notes := []transform.FrameNote{{Start: 10, Duration: 5, Key: 45}}
	data, _ := Encode(notes, fx, Options{BaseNote: 45, LoopFrame: -1})
	want := []byte{
		t6w28.RestCode, 5,
		t6w28.OpSetAttn, 4,
		t6w28.RestCode, 5,
		1, 5,
		t6w28.EndMarker,
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
}

func TestEmptyStream(t *testing.T) {
	data, st := EmptyStream()
	if !bytes.Equal(data, []byte{t6w28.EndMarker}) || st.Bytes != 1 {
		t.Errorf("data = %v stats = %+v", data, st)
	}
	if TotalFrames(data) != 0 {
		t.Errorf("total frames = %d", TotalFrames(data))
	}
}

func TestFindCommonRest(t *testing.T) {
	voices := [][]transform.FrameNote{
		{{Start: 0, Duration: 10}, {Start: 15, Duration: 10}},
		{{Start: 0, Duration: 12}},
	}
	// Frames 12..14 are silent everywhere.
	frame, ok := FindCommonRest(voices, 30, 0)
	if !ok || frame != 12 {
		t.Errorf("rest = %d, %v, want 12", frame, ok)
	}

	t.Run("min frame respected", func(t *testing.T) {
		frame, ok := FindCommonRest(voices, 30, 20)
		if !ok || frame != 25 {
			t.Errorf("rest = %d, %v, want 25 (first silence past 20)", frame, ok)
		}
	})

	t.Run("no rest", func(t *testing.T) {
		busy := [][]transform.FrameNote{{{Start: 0, Duration: 30}}}
		if _, ok := FindCommonRest(busy, 30, 0); ok {
			t.Error("expected no rest frame")
		}
	})
}

func TestVelocityAttn(t *testing.T) {
	cases := []struct{ vel, min, max, want int }{
		{127, 0, 12, 0}, // loudest
		{1, 0, 12, 12},  // quietest
		{64, 0, 12, 6},  // midway
		{0, 0, 12, 12},  // floor to velocity 1
		{127, 3, 10, 3}, // offset range
		{200, 0, 15, 0}, // clamp high velocity
	}
	for _, c := range cases {
		if got := VelocityAttn(c.vel, c.min, c.max); got != c.want {
			t.Errorf("VelocityAttn(%d, %d, %d) = %d, want %d", c.vel, c.min, c.max, got, c.want)
		}
	}
}

func TestEncodeAttn(t *testing.T) {
	notes := []transform.FrameNote{
		{Start: 0, Duration: 10, Velocity: 127},
		{Start: 10, Duration: 300, Velocity: 1},
	}
	data := EncodeAttn(notes, 0, 12)
	want := []byte{0, 10, 12, 255, 12, 45, 0xFF}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %v, want %v", data, want)
	}
}
