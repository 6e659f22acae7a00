// Package instrument loads the program-to-timbre map and schedules the FX
// opcode emissions that keep each voice's timbre in sync with the source
// program changes.
package instrument

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-yaml"

	"midi2psg/t6w28"
)

// ErrBadMap wraps any instrument map document problem.
var ErrBadMap = errors.New("bad instrument map")

// Instrument is one resolved T6W28 timbre: attenuation, envelope, vibrato,
// and sweep parameters, all within driver ranges.
type Instrument struct {
	Attn     int
	EnvStep  int
	EnvSpeed int
	VibDepth int
	VibSpeed int
	VibDelay int
	// Sweep target divisor plus per-step delta and speed.
	SweepEnd   int
	SweepStep  int
	SweepSpeed int
}

// Map is the loaded document: a resolved default plus per-program overrides
// layered onto it.
type Map struct {
	Default        Instrument
	Programs       map[int]Instrument
	DefaultProgram int
}

// builtinDefault mirrors the driver's reset state.
func builtinDefault() Instrument {
	return Instrument{
		Attn:       2,
		EnvStep:    0,
		EnvSpeed:   1,
		VibDepth:   0,
		VibSpeed:   3,
		VibDelay:   0,
		SweepEnd:   1,
		SweepStep:  0,
		SweepSpeed: 1,
	}
}

// rawEnv, rawVib, rawSweep are the nested document spellings.
type rawEnv struct {
	Step  *int `json:"step" yaml:"step"`
	Speed *int `json:"speed" yaml:"speed"`
}

type rawVib struct {
	Depth *int `json:"depth" yaml:"depth"`
	Speed *int `json:"speed" yaml:"speed"`
	Delay *int `json:"delay" yaml:"delay"`
}

type rawSweep struct {
	End    *int `json:"end" yaml:"end"`
	EndIdx *int `json:"end_idx" yaml:"end_idx"`
	Step   *int `json:"step" yaml:"step"`
	Speed  *int `json:"speed" yaml:"speed"`
}

// rawInstrument accepts both nested and flat field spellings; flat wins.
type rawInstrument struct {
	Attn  *int      `json:"attn" yaml:"attn"`
	Env   *rawEnv   `json:"env" yaml:"env"`
	Vib   *rawVib   `json:"vib" yaml:"vib"`
	Sweep *rawSweep `json:"sweep" yaml:"sweep"`

	EnvStep  *int `json:"env_step" yaml:"env_step"`
	EnvSpeed *int `json:"env_speed" yaml:"env_speed"`

	VibDepth *int `json:"vib_depth" yaml:"vib_depth"`
	VibSpeed *int `json:"vib_speed" yaml:"vib_speed"`
	VibDelay *int `json:"vib_delay" yaml:"vib_delay"`

	SweepEnd    *int `json:"sweep_end" yaml:"sweep_end"`
	SweepEndIdx *int `json:"sweep_end_idx" yaml:"sweep_end_idx"`
	SweepStep   *int `json:"sweep_step" yaml:"sweep_step"`
	SweepSpeed  *int `json:"sweep_speed" yaml:"sweep_speed"`
}

type rawMap struct {
	Default        *rawInstrument           `json:"default" yaml:"default"`
	Programs       map[string]rawInstrument `json:"programs" yaml:"programs"`
	DefaultProgram int                      `json:"default_program" yaml:"default_program"`
}

// Load reads a JSON or YAML instrument map, dispatching on file extension.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instrument map: %w", err)
	}

	var raw rawMap
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadMap, path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadMap, path, err)
		}
	}

	m := &Map{
		Default:        normalize(raw.Default, builtinDefault()),
		Programs:       make(map[int]Instrument),
		DefaultProgram: raw.DefaultProgram,
	}
	for key, r := range raw.Programs {
		prog, err := strconv.Atoi(key)
		if err != nil {
			continue // non-numeric program keys are ignored
		}
		r := r
		m.Programs[prog] = normalize(&r, m.Default)
	}
	return m, nil
}

// Resolve returns the instrument for a program, falling back to the default.
func (m *Map) Resolve(program int) Instrument {
	if inst, ok := m.Programs[program]; ok {
		return inst
	}
	return m.Default
}

// normalize layers a partial record onto base, clamping every field to its
// driver range. Nested spellings apply first so flat ones can override.
func normalize(raw *rawInstrument, base Instrument) Instrument {
	inst := base
	if raw == nil {
		return inst
	}
	set := func(dst *int, src *int, lo, hi int) {
		if src != nil {
			*dst = clampInt(*src, lo, hi)
		}
	}

	set(&inst.Attn, raw.Attn, 0, 15)

	if raw.Env != nil {
		set(&inst.EnvStep, raw.Env.Step, 0, 4)
		set(&inst.EnvSpeed, raw.Env.Speed, 1, 10)
	}
	set(&inst.EnvStep, raw.EnvStep, 0, 4)
	set(&inst.EnvSpeed, raw.EnvSpeed, 1, 10)

	if raw.Vib != nil {
		set(&inst.VibDepth, raw.Vib.Depth, 0, 63)
		set(&inst.VibSpeed, raw.Vib.Speed, 1, 30)
		set(&inst.VibDelay, raw.Vib.Delay, 0, 255)
	}
	set(&inst.VibDepth, raw.VibDepth, 0, 63)
	set(&inst.VibSpeed, raw.VibSpeed, 1, 30)
	set(&inst.VibDelay, raw.VibDelay, 0, 255)

	if raw.Sweep != nil {
		set(&inst.SweepEnd, raw.Sweep.End, 1, 1023)
		if raw.Sweep.EndIdx != nil {
			inst.SweepEnd = t6w28.IndexToDivisor(clampInt(*raw.Sweep.EndIdx, 1, t6w28.TableSize))
		}
		set(&inst.SweepStep, raw.Sweep.Step, -127, 127)
		set(&inst.SweepSpeed, raw.Sweep.Speed, 1, 30)
	}
	set(&inst.SweepEnd, raw.SweepEnd, 1, 1023)
	if raw.SweepEndIdx != nil {
		inst.SweepEnd = t6w28.IndexToDivisor(clampInt(*raw.SweepEndIdx, 1, t6w28.TableSize))
	}
	set(&inst.SweepStep, raw.SweepStep, -127, 127)
	set(&inst.SweepSpeed, raw.SweepSpeed, 1, 30)

	return inst
}

// Opcodes renders the instrument as the 14-byte FX snapshot the driver
// executes: attenuation, envelope, vibrato, sweep.
func (i Instrument) Opcodes() []byte {
	return []byte{
		t6w28.OpSetAttn, byte(i.Attn),
		t6w28.OpSetEnv, byte(i.EnvStep), byte(i.EnvSpeed),
		t6w28.OpSetVib, byte(i.VibDepth), byte(i.VibSpeed), byte(i.VibDelay),
		t6w28.OpSetSweep, byte(i.SweepEnd & 0xFF), byte(i.SweepEnd >> 8 & 0xFF),
		byte(i.SweepStep & 0xFF), byte(i.SweepSpeed),
	}
}

// String renders the compact trace form.
func (i Instrument) String() string {
	return fmt.Sprintf("attn=%d env=%d/%d vib=%d/%d/%d sweep=%d,%d,%d",
		i.Attn, i.EnvStep, i.EnvSpeed,
		i.VibDepth, i.VibSpeed, i.VibDelay,
		i.SweepEnd, i.SweepStep, i.SweepSpeed)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
