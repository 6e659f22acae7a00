package pipeline

import (
	"fmt"

	"midi2psg/emit"
	"midi2psg/instrument"
	"midi2psg/stream"
	"midi2psg/transform"
	"midi2psg/voice"
)

// convertPoly renders the polyphonic output: BGM_CH0..CHn tone streams plus
// BGM_CHN when noise is enabled.
func (c *converter) convertPoly(frames, noiseNotes []transform.FrameNote, picked map[int]bool, toneVoices int, noiseEnabled bool) {
	cfg := c.cfg

	var filtered []transform.FrameNote
	for _, n := range frames {
		if picked[n.Channel] {
			filtered = append(filtered, n)
		}
	}
	totalEvents := len(filtered)

	c.report.MaxPolyphony = voice.MaxPolyphony(filtered)
	if c.report.MaxPolyphony > toneVoices {
		c.warn("max polyphony %d exceeds voice count %d", c.report.MaxPolyphony, toneVoices)
	}

	if len(filtered) == 0 && cfg.ForceToneStreams {
		for idx := 0; idx < toneVoices; idx++ {
			sec := voiceSection{
				commentLabel: fmt.Sprintf("CH%d", idx),
				streamName:   fmt.Sprintf("BGM_CH%d", idx),
			}
			c.parts = append(c.parts, sec.renderEmpty(c)...)
		}
		if noiseEnabled {
			c.renderNoise(noiseNotes)
		}
		c.skipFooter = true
		return
	}

	if cfg.SplitVoices {
		voices, allocStats := voice.Allocate(filtered, toneVoices, cfg.Preempt)
		c.report.Alloc = allocStats

		scan := voices
		all := filtered
		if noiseEnabled {
			scan = append(append([][]transform.FrameNote{}, voices...), noiseNotes)
			all = append(append([]transform.FrameNote{}, filtered...), noiseNotes...)
		}
		c.resolveAutoLoop(scan, all)

		c.parts = append(c.parts, fmt.Sprintf("%s Poly voice split: voices=%d dropped=%d preempted=%d\n",
			c.comment, toneVoices, allocStats.Dropped, allocStats.Preempted))

		for idx, voiceNotes := range voices {
			label := fmt.Sprintf("CH%d", idx)
			c.traceEntries = append(c.traceEntries, emit.TraceEntry{Label: label, Notes: voiceNotes})
			channel := 0
			if len(voiceNotes) > 0 {
				channel = voiceNotes[0].Channel
			} else if len(c.report.Channels) > 0 {
				channel = c.report.Channels[idx%len(c.report.Channels)]
			}
			sec := voiceSection{
				commentLabel: label,
				streamName:   "BGM_" + label,
				notes:        voiceNotes,
				fx:           c.voiceFX(voiceNotes, channel),
				kept:         len(voiceNotes),
				withDropped:  -1,
			}
			parts, _ := sec.render(c)
			c.parts = append(c.parts, parts...)
		}
		if noiseEnabled {
			c.renderNoise(noiseNotes)
		}
		c.parts = append(c.parts, fmt.Sprintf("%s Poly report: total_events=%d kept=%d dropped=%d preempted=%d\n",
			c.comment, totalEvents, totalEvents-allocStats.Dropped, allocStats.Dropped, allocStats.Preempted))
		return
	}

	// Per-channel mode: each picked source channel keeps its own stream,
	// overlaps within a channel fall to the encoder.
	perChannel := make(map[int][]transform.FrameNote)
	for _, n := range filtered {
		perChannel[n.Channel] = append(perChannel[n.Channel], n)
	}
	chans := channelList(picked)

	scan := make([][]transform.FrameNote, 0, len(chans)+1)
	for _, ch := range chans {
		if len(perChannel[ch]) > 0 {
			scan = append(scan, perChannel[ch])
		}
	}
	all := filtered
	if noiseEnabled {
		scan = append(scan, noiseNotes)
		all = append(append([]transform.FrameNote{}, filtered...), noiseNotes...)
	}
	c.resolveAutoLoop(scan, all)

	idx := 0
	for _, ch := range chans {
		voiceNotes := perChannel[ch]
		if len(voiceNotes) == 0 {
			continue
		}
		c.traceEntries = append(c.traceEntries, emit.TraceEntry{
			Label: fmt.Sprintf("CH%d", idx),
			Notes: voiceNotes,
		})
		sec := voiceSection{
			commentLabel:    fmt.Sprintf("CH%d", ch),
			streamName:      fmt.Sprintf("BGM_CH%d", idx),
			notes:           voiceNotes,
			fx:              c.voiceFX(voiceNotes, ch),
			kept:            len(voiceNotes),
			withDropped:     -1,
			subtractOverlap: true,
		}
		parts, _ := sec.render(c)
		c.parts = append(c.parts, parts...)
		idx++
	}
	if cfg.ForceToneStreams {
		for ch := 0; ch < toneVoices; ch++ {
			if len(perChannel[ch]) > 0 {
				continue
			}
			sec := voiceSection{
				commentLabel: fmt.Sprintf("CH%d", ch),
				streamName:   fmt.Sprintf("BGM_CH%d", ch),
			}
			c.parts = append(c.parts, sec.renderEmpty(c)...)
		}
	}
	if noiseEnabled {
		c.renderNoise(noiseNotes)
	}
}

// renderNoise emits the BGM_CHN section.
func (c *converter) renderNoise(noiseNotes []transform.FrameNote) {
	c.traceEntries = append(c.traceEntries, emit.TraceEntry{Label: "CHN", Notes: noiseNotes})
	sec := voiceSection{
		commentLabel: "CHN",
		streamName:   "BGM_CHN",
		notes:        noiseNotes,
		fx:           c.voiceFX(noiseNotes, c.cfg.NoiseChannel),
		kept:         len(noiseNotes),
		withDropped:  -1,
		noise:        true,
	}
	parts, _ := sec.render(c)
	c.parts = append(c.parts, parts...)
}

// convertMono renders the single BGM_MONO stream plus the FPS and total
// frame constants, and the velocity attenuation stream when requested.
func (c *converter) convertMono(frames []transform.FrameNote, picked map[int]bool) {
	cfg := c.cfg

	var candidates []transform.FrameNote
	for _, n := range frames {
		if picked[n.Channel] {
			candidates = append(candidates, n)
		}
	}
	mono := voice.Mono(candidates)
	c.report.MonoDropped = len(candidates) - len(mono)

	c.resolveAutoLoop([][]transform.FrameNote{mono}, mono)
	c.traceEntries = append(c.traceEntries, emit.TraceEntry{Label: "MONO", Notes: mono})

	var fx []instrument.FxEvent
	if cfg.EmitOpcodes {
		fx = instrument.VoiceFX(mono, c.timelines, c.imap)
		if cfg.LoopResetFX && len(mono) > 0 {
			fx = instrument.LoopResetFX(fx, c.loopFrame, c.timelines, c.imap, mono[0].Channel)
		}
	}

	data, st := stream.Encode(mono, fx, stream.Options{
		BaseNote:  cfg.BaseNote,
		LoopFrame: c.loopFrame,
	})
	total := stream.TotalFrames(data)

	sec := voiceSection{
		commentLabel: "MONO",
		streamName:   "BGM_MONO",
		notes:        mono,
		kept:         len(mono),
		withDropped:  c.report.MonoDropped,
	}
	parts := sec.parts(c, data, st)

	// The FPS and total-frame constants sit between the loop constant and
	// the stream block.
	streamBlock := parts[len(parts)-1]
	c.parts = append(c.parts, parts[:len(parts)-1]...)
	c.parts = append(c.parts,
		emit.WordConst("BGM_BASE_FPS", cfg.FPS, cfg.CArray),
		emit.WordConst("BGM_TOTAL_FRAMES", total, cfg.CArray),
		streamBlock)

	if cfg.UseVelocity {
		c.parts = append(c.parts, fmt.Sprintf("%s MONO attn stream: min=%d max=%d\n",
			c.comment, cfg.AttnMin, cfg.AttnMax))
		attn := stream.EncodeAttn(mono, cfg.AttnMin, cfg.AttnMax)
		c.parts = append(c.parts, emit.Stream("BGM_MONO_ATTN", attn, cfg.CArray))
	}
}

// traceHeader builds the settings lines at the top of the trace log.
func (c *converter) traceHeader() []string {
	cfg := c.cfg
	autoLoop := "none"
	if cfg.AutoLoopRest >= 0 {
		autoLoop = fmt.Sprintf("%g", cfg.AutoLoopRest)
	}
	return []string{
		fmt.Sprintf("input=%s", cfg.Input),
		fmt.Sprintf("output=%s", cfg.Output),
		fmt.Sprintf("fps=%d", cfg.FPS),
		fmt.Sprintf("grid=%d", cfg.Grid),
		fmt.Sprintf("channels=%d", cfg.Voices),
		fmt.Sprintf("noise_channel=%d", cfg.NoiseChannel),
		fmt.Sprintf("instrument_map=%s", cfg.InstrumentMap),
		fmt.Sprintf("emit_opcodes=%v", cfg.EmitOpcodes),
		fmt.Sprintf("auto_loop_rest=%s", autoLoop),
		fmt.Sprintf("loop_reset_fx=%v", cfg.LoopResetFX),
	}
}

func (r *Result) writeTrace(path string) error {
	return emit.WriteTrace(path, r.traceHeader, r.traceEntries, r.timelines, r.imap, r.loopFrame)
}
