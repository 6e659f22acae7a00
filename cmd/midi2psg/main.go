// Command midi2psg converts a Standard MIDI File into T6W28 driver streams
// for the Neo Geo Pocket, emitted as assembler data or C arrays.
//
// Usage:
//
//	midi2psg [flags] input.mid output.s
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"midi2psg/config"
	"midi2psg/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var (
		profile     string
		noBend      bool
		noSustain   bool
		opcodes     bool
		noOpcodes   bool
		mono        bool
		split       bool
		noSplit     bool
		preempt     bool
		noPreempt   bool
		transpose   bool
		noTranspose bool
		clamp       bool
		noClamp     bool
	)

	cmd := &cobra.Command{
		Use:   "midi2psg [flags] input.mid output.s",
		Short: "Convert a MIDI file to T6W28 PSG streams",
		Long: `Convert a Standard MIDI File (Type 0 or 1) into run-length encoded
T6W28 note streams for the Neo Geo Pocket sound driver.

The default output is a single mono stream (BGM_MONO). With --poly the
converter keeps several tone voices (BGM_CH0..CHn) and, given four or
more voices plus events on the noise channel, a noise stream (BGM_CHN).

Profiles:
  mono_strict  one voice, mono output
  poly2        two tone voices, note splitting with preemption
  timing       mono at grid 1 (no quantization)
  fidelity     four voices, per-channel streams, CC volume and sustain`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Input = args[0]
			cfg.Output = args[1]

			if noBend {
				cfg.BendRange = 0
			}
			// The affirmative flags default on; their --no-* twins win.
			cfg.UseSustain = !noSustain
			cfg.Poly = cfg.Poly || !mono
			cfg.SplitVoices = split && !noSplit
			cfg.Preempt = preempt && !noPreempt
			cfg.AutoTranspose = transpose && !noTranspose
			cfg.Clamp = clamp && !noClamp

			// Opcode emission defaults to on when a map is supplied; the
			// explicit flags win either way.
			cfg.EmitOpcodes = cfg.InstrumentMap != ""
			if opcodes {
				cfg.EmitOpcodes = true
			}
			if noOpcodes {
				cfg.EmitOpcodes = false
			}

			// Profiles override individual flags, same as the presets they
			// replace.
			if err := cfg.ApplyProfile(profile); err != nil {
				return err
			}

			res, err := pipeline.Run(cfg)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&profile, "profile", "", "quick preset: mono_strict, poly2, timing, fidelity")
	f.IntVar(&cfg.Grid, "grid", cfg.Grid, "quantize grid in ticks")
	f.IntVar(&cfg.FPS, "fps", cfg.FPS, "target playback FPS")
	f.IntVar(&cfg.Voices, "channels", cfg.Voices, "max voices to keep")
	f.IntVar(&cfg.BaseNote, "base-midi", cfg.BaseNote, "MIDI note of the first table entry")
	f.BoolVar(&cfg.Poly, "poly", false, "emit per-voice streams instead of mono")
	f.BoolVar(&mono, "mono", true, "emit the single mono stream (default)")
	f.BoolVar(&split, "split-voices", true, "reallocate notes across voices in poly mode (default)")
	f.BoolVar(&noSplit, "no-split-voices", false, "keep source channels intact in poly mode")
	f.BoolVar(&preempt, "preempt", true, "allow voice preemption in poly split (default)")
	f.BoolVar(&noPreempt, "no-preempt", false, "disable voice preemption in poly split")
	f.BoolVar(&transpose, "auto-transpose", true, "fit the pitch span by octave shifts (default)")
	f.BoolVar(&noTranspose, "no-auto-transpose", false, "disable automatic octave fitting")
	f.BoolVar(&clamp, "clamp", true, "clamp out-of-range notes to the table edges (default)")
	f.BoolVar(&noClamp, "no-clamp", false, "drop out-of-range notes instead of clamping")
	f.IntVar(&cfg.BendRange, "pitchbend-range", cfg.BendRange, "pitch bend range in semitones")
	f.BoolVar(&noBend, "no-pitchbend", false, "ignore pitch bend events")
	f.BoolVar(&cfg.UseCCVolume, "use-cc-volume", false, "apply CC7/CC11 to note velocity")
	f.BoolVar(&noSustain, "no-sustain", false, "ignore CC64 sustain pedal")
	f.IntVar(&cfg.NoiseChannel, "noise-channel", cfg.NoiseChannel, "MIDI channel treated as noise")
	f.StringVar((*string)(&cfg.DrumMode), "drum-mode", string(cfg.DrumMode), "noise channel handling: off or snk")
	f.BoolVar(&cfg.ForceNoiseStream, "force-noise-stream", false, "emit BGM_CHN even without noise events")
	f.BoolVar(&cfg.ForceToneStreams, "force-tone-streams", false, "emit tone streams even without tone events")
	f.StringVar((*string)(&cfg.DensityMode), "density-mode", string(cfg.DensityMode), "chord thinning: auto, off, soft, hard")
	f.IntVar(&cfg.DensityBias, "density-bias", cfg.DensityBias, "density weight for lower channel numbers")
	f.IntVar(&cfg.DensityBass, "density-bass", cfg.DensityBass, "density weight for lower pitches")
	f.StringVar(&cfg.InstrumentMap, "instrument-map", "", "instrument map file (JSON or YAML)")
	f.BoolVar(&opcodes, "opcodes", false, "emit FX opcodes (requires --instrument-map)")
	f.BoolVar(&noOpcodes, "no-opcodes", false, "disable FX opcodes")
	f.BoolVar(&cfg.LoopResetFX, "loop-reset-fx", false, "re-emit instrument FX at the loop point")
	f.IntVar(&cfg.LoopStartFrame, "loop-start-frame", cfg.LoopStartFrame, "loop start position in frames (-1 = none)")
	f.IntVar(&cfg.LoopStartTick, "loop-start-tick", cfg.LoopStartTick, "loop start position in MIDI ticks (-1 = none)")
	f.Float64Var(&cfg.AutoLoopRest, "auto-loop-rest", cfg.AutoLoopRest, "auto-pick loop start on a common rest past this fraction of the song (-1 = off)")
	f.BoolVar(&cfg.UseVelocity, "use-velocity", false, "emit mono attenuation stream from velocities")
	f.IntVar(&cfg.AttnMin, "attn-min", cfg.AttnMin, "loudest attenuation (0..15)")
	f.IntVar(&cfg.AttnMax, "attn-max", cfg.AttnMax, "quietest attenuation (0..15)")
	f.BoolVar(&cfg.CArray, "c-array", false, "emit C arrays instead of assembler data")
	f.StringVar(&cfg.TraceOutput, "trace-output", "", "write per-stream trace log to this file")
	f.StringVar(&cfg.DebugLog, "debug-log", "", "write stage debug log to this file")

	return cmd
}
