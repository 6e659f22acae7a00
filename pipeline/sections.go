package pipeline

import (
	"fmt"

	"midi2psg/emit"
	"midi2psg/instrument"
	"midi2psg/stream"
	"midi2psg/transform"
)

// voiceSection renders one encoded voice: diagnostic comment lines, the loop
// constant when a loop is active, and the stream block itself.
type voiceSection struct {
	// commentLabel appears in comment lines; streamName is the emitted
	// symbol (they differ in per-channel mode, where comments carry the
	// source channel number).
	commentLabel string
	streamName   string
	notes        []transform.FrameNote
	fx           []instrument.FxEvent
	kept         int
	withDropped  int // mono-only extra "dropped=" figure, -1 to omit
	noise        bool

	// subtractOverlap reports kept minus the encoder's overlap drops, used
	// in per-channel mode where the input list still carries overlaps.
	subtractOverlap bool
}

// render encodes the voice and produces its output parts.
func (v voiceSection) render(c *converter) ([]string, stream.Stats) {
	data, st := stream.Encode(v.notes, v.fx, stream.Options{
		BaseNote:  c.cfg.BaseNote,
		LoopFrame: c.loopFrame,
		Noise:     v.noise,
	})
	return v.parts(c, data, st), st
}

// renderEmpty produces the forced one-byte stream for a silent voice.
func (v voiceSection) renderEmpty(c *converter) []string {
	data, st := stream.EmptyStream()
	comment := c.comment
	parts := []string{
		fmt.Sprintf("%s %s stream: bytes=%d kept=0 out_of_range=0 overlap_dropped=0\n",
			comment, v.commentLabel, st.Bytes),
		fmt.Sprintf("%s %s duration: 0 frames (~0.000s) target=0 delta=0\n",
			comment, v.commentLabel),
		emit.Stream(v.streamName, data, c.cfg.CArray),
	}
	return parts
}

func (v voiceSection) parts(c *converter, data []byte, st stream.Stats) []string {
	comment := c.comment
	total := stream.TotalFrames(data)
	target := transform.MaxEndFrame(v.notes)

	kept := v.kept
	if v.subtractOverlap {
		kept -= st.DroppedOverlap
	}

	var out []string
	if v.noise {
		out = append(out, fmt.Sprintf("%s %s stream: bytes=%d kept=%d overlap_dropped=%d\n",
			comment, v.commentLabel, st.Bytes, kept, st.DroppedOverlap))
	} else if v.withDropped >= 0 {
		out = append(out, fmt.Sprintf("%s %s stream: bytes=%d kept=%d dropped=%d out_of_range=%d overlap_dropped=%d\n",
			comment, v.commentLabel, st.Bytes, kept, v.withDropped, st.OutOfRange, st.DroppedOverlap))
	} else {
		out = append(out, fmt.Sprintf("%s %s stream: bytes=%d kept=%d out_of_range=%d overlap_dropped=%d\n",
			comment, v.commentLabel, st.Bytes, kept, st.OutOfRange, st.DroppedOverlap))
	}
	out = append(out, fmt.Sprintf("%s %s duration: %d frames (~%.3fs) target=%d delta=%d\n",
		comment, v.commentLabel, total, float64(total)/float64(c.cfg.FPS), target, total-target))

	if c.loopFrame >= 0 {
		out = append(out, fmt.Sprintf("%s %s loop_offset: %d\n", comment, v.commentLabel, st.LoopOffset))
		out = append(out, emit.WordConst(v.streamName+"_LOOP", st.LoopOffset, c.cfg.CArray))
	}

	out = append(out, emit.Stream(v.streamName, data, c.cfg.CArray))
	return out
}

// voiceFX builds the FX schedule for one voice, honoring the loop-reset
// setting. channel is the source channel used for the loop-reset lookup.
func (c *converter) voiceFX(notes []transform.FrameNote, channel int) []instrument.FxEvent {
	if !c.cfg.EmitOpcodes {
		return nil
	}
	fx := instrument.VoiceFX(notes, c.timelines, c.imap)
	if c.cfg.LoopResetFX {
		fx = instrument.LoopResetFX(fx, c.loopFrame, c.timelines, c.imap, channel)
	}
	return fx
}
