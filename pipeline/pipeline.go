// Package pipeline wires the conversion stages together: load, transform,
// allocate, schedule, encode, and render, accumulating warnings along the
// way. One Run converts one MIDI file into one generated source file.
package pipeline

import (
	"fmt"
	"os"
	"strings"

	"midi2psg/config"
	"midi2psg/debug"
	"midi2psg/emit"
	"midi2psg/instrument"
	"midi2psg/parse"
	"midi2psg/stream"
	"midi2psg/tempo"
	"midi2psg/transform"
	"midi2psg/voice"
)

// manyTempoChanges is the warning threshold for tempo-change count.
const manyTempoChanges = 5

// Report carries every diagnostic counter of a conversion, each category
// kept separate.
type Report struct {
	Transpose      int
	BendSplits     int
	CCSplits       int
	CCScaled       int
	BendShifted    int
	BendMaxShift   int
	DensityDropped int
	DrumDropped    int
	MonoDropped    int
	Alloc          voice.Stats
	OutOfRange     int
	MaxPolyphony   int
	Channels       []int
	ToneVoices     int
	NoiseEnabled   bool
	LoopFrame      int // -1 when no loop
	AutoLoopUsed   bool
}

// Result is a finished conversion: the generated text, the warnings (also
// embedded as comments), and the counters.
type Result struct {
	Output   string
	Warnings []string
	Report   Report

	traceHeader  []string
	traceEntries []emit.TraceEntry
	timelines    map[int]instrument.Timeline
	imap         *instrument.Map
	loopFrame    int
}

// converter is the per-run state threaded through the stages.
type converter struct {
	cfg     *config.Config
	score   *parse.Score
	imap    *instrument.Map
	tm      *tempo.Map
	comment string

	timelines    map[int]instrument.Timeline
	loopFrame    int
	autoLoopUsed bool

	warnings     []string
	parts        []string
	traceEntries []emit.TraceEntry
	report       Report

	// skipFooter is set by the forced-empty path, which writes its streams
	// and stops before the warnings block and loop comment.
	skipFooter bool
}

// Run performs a whole conversion: validate, read, convert, write.
func Run(cfg *config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.DebugLog != "" {
		if err := debug.Enable(cfg.DebugLog); err != nil {
			return nil, fmt.Errorf("open debug log: %w", err)
		}
		defer debug.Disable()
	}
	debug.Log("config", "%s", cfg)

	var imap *instrument.Map
	if cfg.InstrumentMap != "" {
		var err error
		imap, err = instrument.Load(cfg.InstrumentMap)
		if err != nil {
			return nil, err
		}
		debug.Log("instrument", "map loaded: %d programs, default_program=%d",
			len(imap.Programs), imap.DefaultProgram)
	}

	score, err := parse.LoadFile(cfg.Input, parse.Options{UseSustain: cfg.UseSustain})
	if err != nil {
		return nil, err
	}
	debug.Log("parse", "%d notes, %d ticks, tpb=%d",
		score.Stats.NoteCount, score.Stats.TotalTicks, score.TicksPerBeat)

	res, err := Convert(score, imap, cfg)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(cfg.Output, []byte(res.Output), 0644); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	if cfg.TraceOutput != "" {
		if err := res.writeTrace(cfg.TraceOutput); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Convert runs the in-memory stages on an already-loaded score.
func Convert(score *parse.Score, imap *instrument.Map, cfg *config.Config) (*Result, error) {
	if cfg.EmitOpcodes && imap == nil {
		return nil, fmt.Errorf("invalid configuration: FX opcodes require an instrument map")
	}

	c := &converter{
		cfg:       cfg,
		score:     score,
		imap:      imap,
		tm:        tempo.NewMap(score.Tempos, score.TicksPerBeat, cfg.FPS),
		comment:   emit.Comment(cfg.CArray),
		loopFrame: -1,
	}
	c.convert()

	res := &Result{
		Output:       strings.Join(c.parts, "\n"),
		Warnings:     c.warnings,
		Report:       c.report,
		traceHeader:  c.traceHeader(),
		traceEntries: c.traceEntries,
		timelines:    c.timelines,
		imap:         c.imap,
		loopFrame:    c.loopFrame,
	}
	return res, nil
}

func (c *converter) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *converter) convert() {
	cfg := c.cfg
	stats := c.score.Stats

	// Tick-domain transform chain.
	notes := c.score.Notes
	if cfg.BendRange > 0 && stats.BendEvents > 0 {
		notes, c.report.BendSplits = transform.SplitByBend(notes, c.score.Bends)
	}
	if cfg.UseCCVolume && (stats.CCVolumeEvents > 0 || stats.CCExprEvents > 0) {
		notes, c.report.CCSplits, c.report.CCScaled = transform.SplitByVolume(notes, c.score.Volumes)
	}
	quantized := transform.Quantize(notes, cfg.Grid)
	bent, shifted, maxShift := transform.ApplyBend(quantized, cfg.BendRange, cfg.Role)
	c.report.BendShifted, c.report.BendMaxShift = shifted, maxShift
	final, transposed := transform.TransposeAndClamp(bent, cfg.BaseNote, cfg.AutoTranspose, cfg.Clamp, cfg.Role)
	c.report.Transpose = transposed
	debug.Log("transform", "splits bend=%d cc=%d transpose=%d",
		c.report.BendSplits, c.report.CCSplits, transposed)

	// Frame domain.
	frames := transform.ToFrames(final, c.tm)
	if cfg.EmitOpcodes {
		c.timelines = instrument.BuildTimelines(c.score.Programs, c.tm, cfg.Grid)
	}

	c.loopFrame = cfg.LoopStartFrame
	if c.loopFrame < 0 && cfg.LoopStartTick >= 0 {
		c.loopFrame = c.tm.ToFrame(cfg.LoopStartTick)
	}

	// Split off the noise channel and remap drums.
	var noiseNotes []transform.FrameNote
	toneFrames := frames[:0:0]
	for _, n := range frames {
		if cfg.Role(n.Channel) == config.RoleNoise {
			noiseNotes = append(noiseNotes, n)
		} else {
			toneFrames = append(toneFrames, n)
		}
	}
	if len(noiseNotes) > 0 && cfg.DrumMode == config.DrumSNK {
		var drumTone []transform.FrameNote
		drumTone, noiseNotes, c.report.DrumDropped = voice.MapDrums(noiseNotes, cfg.BaseNote)
		toneFrames = append(toneFrames, drumTone...)
	}
	frames = append(append(frames[:0:0], toneFrames...), noiseNotes...)
	transform.SortFrameNotes(frames)

	noiseEnabled := cfg.Poly && cfg.Voices >= 4 && (len(noiseNotes) > 0 || cfg.ForceNoiseStream)
	toneVoices := cfg.Voices
	if noiseEnabled {
		toneVoices--
	}
	c.report.NoiseEnabled = noiseEnabled
	c.report.ToneVoices = toneVoices

	picked := voice.PickChannels(quantized, toneVoices, map[int]bool{cfg.NoiseChannel: true})
	c.report.Channels = channelList(picked)

	// Chord density thinning (polyphonic output only).
	if cfg.Poly && cfg.DensityMode != config.DensityOff {
		toneOnly := make([]transform.FrameNote, 0, len(frames))
		for _, n := range frames {
			if cfg.Role(n.Channel) == config.RoleTone {
				toneOnly = append(toneOnly, n)
			}
		}
		maxPoly := voice.MaxPolyphony(toneOnly)
		limit := 0
		switch cfg.DensityMode {
		case config.DensityHard:
			limit = max(1, toneVoices)
		case config.DensitySoft:
			limit = max(1, toneVoices*2)
		case config.DensityAuto:
			limit = max(1, toneVoices*2)
			if maxPoly <= limit {
				limit = 0 // already fits: leave the MIDI alone
			}
		}
		if limit > 0 {
			thinned, dropped := voice.LimitDensity(toneOnly, limit, cfg.DensityBias, cfg.DensityBass)
			c.report.DensityDropped = dropped
			frames = append(append(frames[:0:0], thinned...), noiseNotes...)
			transform.SortFrameNotes(frames)
			if dropped > 0 {
				c.warn("density thinning dropped %d notes (mode=%s)", dropped, cfg.DensityMode)
			}
		}
	}

	// Header summary.
	summary := formatSummary(final, stats, c.comment)
	summary += fmt.Sprintf("%s Quantize grid: %d ticks\n", c.comment, cfg.Grid)
	if shifted > 0 {
		summary += fmt.Sprintf("%s Pitch bend: shifted_notes=%d max_shift=%d semitone(s)\n",
			c.comment, shifted, maxShift)
	}
	if c.report.BendSplits > 0 {
		summary += fmt.Sprintf("%s Pitch bend: split_events=%d\n", c.comment, c.report.BendSplits)
	}
	if c.report.CCScaled > 0 {
		summary += fmt.Sprintf("%s CC7/11: scaled_events=%d split_events=%d\n",
			c.comment, c.report.CCScaled, c.report.CCSplits)
	}
	summary += fmt.Sprintf("%s Channels used: %s\n", c.comment, joinInts(c.report.Channels))
	if len(noiseNotes) > 0 {
		summary += fmt.Sprintf("%s Noise channel: %d (events=%d)\n",
			c.comment, cfg.NoiseChannel, len(noiseNotes))
	}
	if c.report.DrumDropped > 0 {
		summary += fmt.Sprintf("%s Drum map dropped: %d\n", c.comment, c.report.DrumDropped)
	}
	summary += fmt.Sprintf("%s Base MIDI note: %d (index 1)\n", c.comment, cfg.BaseNote)
	summary += fmt.Sprintf("%s Auto-transpose: %v (shift %d)\n", c.comment, cfg.AutoTranspose, transposed)
	summary += fmt.Sprintf("%s Clamp: %v\n", c.comment, cfg.Clamp)
	if cfg.EmitOpcodes {
		summary += fmt.Sprintf("%s FX opcodes: enabled (instrument_map=%s)\n", c.comment, cfg.InstrumentMap)
	}
	summary += fmt.Sprintf("%s Tempo: first=%d us/beat, last=%d us/beat, changes=%d, fps=%d\n",
		c.comment, c.tm.FirstTempo(), c.tm.LastTempo(), c.tm.Changes(), cfg.FPS)

	// Non-fatal observations.
	c.report.OutOfRange = transform.CountOutOfRange(final, cfg.BaseNote)
	if c.report.OutOfRange > 0 && !cfg.Clamp {
		c.warn("%d notes out of range (no clamp)", c.report.OutOfRange)
	}
	if c.tm.Changes() > manyTempoChanges {
		c.warn("many tempo changes (%d)", c.tm.Changes())
	}
	if c.score.TicksPerBeat%cfg.Grid != 0 {
		c.warn("grid not aligned with ticks_per_beat (quantization may drift)")
	}
	if c.report.BendSplits > 0 {
		c.warn("pitch bend changes split notes into segments (may increase density)")
	}
	if c.report.CCSplits > 0 {
		c.warn("CC7/CC11 changes split notes into segments (may increase density)")
	}
	if stats.CCSustainEvents > 0 && !cfg.UseSustain {
		c.warn("CC64 sustain present but disabled (--no-sustain)")
	}
	if (stats.CCVolumeEvents > 0 || stats.CCExprEvents > 0) && !cfg.UseCCVolume {
		c.warn("CC7/CC11 present but ignored (--use-cc-volume to apply)")
	}
	if stats.ProgramEvents > 0 && !cfg.EmitOpcodes {
		c.warn("Program Change present but FX opcodes disabled (--instrument-map to enable)")
	}

	c.parts = append(c.parts, summary)
	c.parts = append(c.parts, emit.NoteTable("NOTE_TABLE", cfg.CArray))

	if cfg.Poly {
		c.convertPoly(frames, noiseNotes, picked, toneVoices, noiseEnabled)
	} else {
		c.convertMono(frames, picked)
	}
	if c.skipFooter {
		c.report.LoopFrame = c.loopFrame
		return
	}

	if len(noiseNotes) > 0 && !noiseEnabled {
		c.warn("noise events present but noise disabled (need --poly with >=4 voices)")
	}
	if c.report.MonoDropped > 0 && !cfg.Poly {
		c.warn("mono drop count %d (dense overlaps)", c.report.MonoDropped)
	}

	c.report.LoopFrame = c.loopFrame
	c.report.AutoLoopUsed = c.autoLoopUsed
	if c.loopFrame >= 0 {
		c.parts[0] += fmt.Sprintf("%s Loop start frame: %d\n", c.comment, c.loopFrame)
		if c.autoLoopUsed {
			c.parts[0] += fmt.Sprintf("%s Loop auto-rest: yes\n", c.comment)
		}
	}

	if len(c.warnings) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s Warnings:\n", c.comment)
		for i, w := range c.warnings {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%s - %s", c.comment, w)
		}
		b.WriteString("\n")
		c.parts = append(c.parts[:1], append([]string{b.String()}, c.parts[1:]...)...)
	}
}

// resolveAutoLoop runs the common-rest scan once, if requested and no
// explicit loop position is set.
func (c *converter) resolveAutoLoop(voices [][]transform.FrameNote, all []transform.FrameNote) {
	if c.loopFrame >= 0 || c.cfg.AutoLoopRest < 0 {
		return
	}
	total := transform.MaxEndFrame(all)
	minFrame := int(float64(total) * c.cfg.AutoLoopRest)
	if frame, ok := stream.FindCommonRest(voices, total, minFrame); ok {
		c.loopFrame = frame
		c.autoLoopUsed = true
		debug.Log("loop", "auto-rest picked frame %d", frame)
	}
}
