// Package config defines the conversion settings record. The CLI (or any
// other front end) fills it in; Validate runs before the pipeline touches any
// file.
package config

import (
	"encoding/json"
	"fmt"

	"midi2psg/t6w28"
)

// DensityMode selects how simultaneous chords are thinned before voice
// allocation.
type DensityMode string

const (
	DensityAuto DensityMode = "auto"
	DensityOff  DensityMode = "off"
	DensitySoft DensityMode = "soft"
	DensityHard DensityMode = "hard"
)

// DrumMode selects how notes on the noise channel are handled.
type DrumMode string

const (
	DrumOff DrumMode = "off"
	DrumSNK DrumMode = "snk" // kick->tone thump, snare/hat->noise
)

// ChannelRole tags a source channel as a tone or noise contributor.
type ChannelRole int

const (
	RoleTone ChannelRole = iota
	RoleNoise
)

// Baseline conversion settings.
const (
	DefaultGrid         = 48
	DefaultFPS          = 60
	DefaultVoices       = 3
	DefaultNoiseChannel = 9 // GM drums
	DefaultBendRange    = 2
)

// Config is the validated settings record consumed by the pipeline.
type Config struct {
	Input  string `json:"input"`
	Output string `json:"output"`

	Grid     int `json:"grid"`     // quantize grid in ticks
	FPS      int `json:"fps"`      // target playback frame rate
	Voices   int `json:"voices"`   // total voice budget (tone + optional noise)
	BaseNote int `json:"baseNote"` // MIDI note of table index 1

	Poly        bool `json:"poly"`
	SplitVoices bool `json:"splitVoices"`
	Preempt     bool `json:"preempt"`

	AutoTranspose bool `json:"autoTranspose"`
	Clamp         bool `json:"clamp"`

	BendRange   int  `json:"bendRange"` // semitones; 0 disables bend mapping
	UseCCVolume bool `json:"useCCVolume"`
	UseSustain  bool `json:"useSustain"`

	NoiseChannel     int      `json:"noiseChannel"`
	DrumMode         DrumMode `json:"drumMode"`
	ForceNoiseStream bool     `json:"forceNoiseStream"`
	ForceToneStreams bool     `json:"forceToneStreams"`

	DensityMode DensityMode `json:"densityMode"`
	DensityBias int         `json:"densityBias"` // weight for lower channel numbers
	DensityBass int         `json:"densityBass"` // weight for lower pitches

	InstrumentMap string `json:"instrumentMap,omitempty"`
	EmitOpcodes   bool   `json:"emitOpcodes"`
	LoopResetFX   bool   `json:"loopResetFX"`

	LoopStartFrame int     `json:"loopStartFrame"` // -1 = unset
	LoopStartTick  int     `json:"loopStartTick"`  // -1 = unset
	AutoLoopRest   float64 `json:"autoLoopRest"`   // <0 = disabled

	UseVelocity bool `json:"useVelocity"` // mono attenuation stream
	AttnMin     int  `json:"attnMin"`
	AttnMax     int  `json:"attnMax"`

	CArray      bool   `json:"cArray"` // C arrays instead of asm .db
	TraceOutput string `json:"traceOutput,omitempty"`
	DebugLog    string `json:"debugLog,omitempty"`
}

// Default returns the baseline config: mono output over three candidate tone
// channels, SNK drum mapping, sustain honored.
func Default() *Config {
	return &Config{
		Grid:           DefaultGrid,
		FPS:            DefaultFPS,
		Voices:         DefaultVoices,
		BaseNote:       t6w28.DefaultBaseNote,
		SplitVoices:    true,
		Preempt:        true,
		AutoTranspose:  true,
		Clamp:          true,
		BendRange:      DefaultBendRange,
		UseSustain:     true,
		NoiseChannel:   DefaultNoiseChannel,
		DrumMode:       DrumSNK,
		DensityMode:    DensityAuto,
		DensityBias:    6,
		DensityBass:    2,
		LoopStartFrame: -1,
		LoopStartTick:  -1,
		AutoLoopRest:   -1,
		AttnMin:        0,
		AttnMax:        12,
	}
}

// ApplyProfile mutates the config with one of the quick presets.
func (c *Config) ApplyProfile(name string) error {
	switch name {
	case "":
		return nil
	case "mono_strict":
		c.Poly = false
		c.Voices = 1
	case "poly2":
		c.Poly = true
		c.Voices = 2
		c.SplitVoices = true
		c.Preempt = true
	case "timing":
		c.Poly = false
		c.Voices = 1
		c.Grid = 1
	case "fidelity":
		c.Poly = true
		c.Voices = 4
		c.SplitVoices = false
		c.Preempt = false
		c.Grid = 1
		c.DensityMode = DensityOff
		c.UseCCVolume = true
		c.UseSustain = true
		c.ForceNoiseStream = true
		c.ForceToneStreams = true
	default:
		return fmt.Errorf("unknown profile %q", name)
	}
	return nil
}

// Validate checks the record before any file is opened.
func (c *Config) Validate() error {
	if c.Grid <= 0 {
		return fmt.Errorf("grid must be > 0, got %d", c.Grid)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be > 0, got %d", c.FPS)
	}
	if c.Voices <= 0 {
		return fmt.Errorf("voices must be > 0, got %d", c.Voices)
	}
	switch c.DensityMode {
	case DensityAuto, DensityOff, DensitySoft, DensityHard:
	default:
		return fmt.Errorf("unknown density mode %q", c.DensityMode)
	}
	switch c.DrumMode {
	case DrumOff, DrumSNK:
	default:
		return fmt.Errorf("unknown drum mode %q", c.DrumMode)
	}
	if c.EmitOpcodes && c.InstrumentMap == "" {
		return fmt.Errorf("FX opcodes require an instrument map")
	}
	if c.LoopResetFX && !c.EmitOpcodes {
		return fmt.Errorf("loop-reset FX requires FX opcodes and an instrument map")
	}
	return nil
}

// Role resolves a source channel to its output role. Resolved once here so
// later stages take the role, not the channel equality test.
func (c *Config) Role(channel int) ChannelRole {
	if channel == c.NoiseChannel {
		return RoleNoise
	}
	return RoleTone
}

// String renders the record as JSON for debug logs.
func (c *Config) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config{marshal error: %v}", err)
	}
	return string(data)
}
