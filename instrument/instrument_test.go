package instrument

import (
	"os"
	"path/filepath"
	"testing"

	"midi2psg/t6w28"
)

func writeMap(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeMap(t, "map.json", `{
		"default": {"attn": 3, "vib": {"depth": 10, "speed": 5}},
		"programs": {
			"80": {"attn": 1, "env_step": 2, "env_speed": 4},
			"xyz": {"attn": 9}
		},
		"default_program": 80
	}`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Default.Attn != 3 || m.Default.VibDepth != 10 || m.Default.VibSpeed != 5 {
		t.Errorf("default = %+v", m.Default)
	}
	if m.DefaultProgram != 80 {
		t.Errorf("default program = %d", m.DefaultProgram)
	}
	lead, ok := m.Programs[80]
	if !ok {
		t.Fatal("program 80 missing")
	}
	// Program entries layer onto the document default.
	if lead.Attn != 1 || lead.EnvStep != 2 || lead.EnvSpeed != 4 || lead.VibDepth != 10 {
		t.Errorf("program 80 = %+v", lead)
	}
	if _, ok := m.Programs[0]; ok {
		t.Error("non-numeric program key should be ignored, not mapped")
	}
	if len(m.Programs) != 1 {
		t.Errorf("programs = %+v", m.Programs)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeMap(t, "map.yaml", `
default:
  attn: 4
  sweep:
    end_idx: 1
    step: -3
    speed: 2
programs:
  "12":
    vib_depth: 20
default_program: 12
`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Default.Attn != 4 {
		t.Errorf("default attn = %d", m.Default.Attn)
	}
	if m.Default.SweepEnd != t6w28.IndexToDivisor(1) {
		t.Errorf("sweep end = %d, want divisor of index 1", m.Default.SweepEnd)
	}
	if m.Default.SweepStep != -3 || m.Default.SweepSpeed != 2 {
		t.Errorf("sweep = %+v", m.Default)
	}
	if m.Programs[12].VibDepth != 20 || m.Programs[12].Attn != 4 {
		t.Errorf("program 12 = %+v", m.Programs[12])
	}
}

func TestLoadClamping(t *testing.T) {
	path := writeMap(t, "map.json", `{
		"default": {"attn": 99, "vib_depth": 500, "env_speed": 0, "sweep_end": 0}
	}`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	d := m.Default
	if d.Attn != 15 || d.VibDepth != 63 || d.EnvSpeed != 1 || d.SweepEnd != 1 {
		t.Errorf("clamped default = %+v", d)
	}
}

func TestLoadBadDocument(t *testing.T) {
	path := writeMap(t, "map.json", `{not json`)
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestFlatOverridesNested(t *testing.T) {
	path := writeMap(t, "map.json", `{
		"default": {"env": {"speed": 3}, "env_speed": 7}
	}`)
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Default.EnvSpeed != 7 {
		t.Errorf("env speed = %d, want flat spelling to win", m.Default.EnvSpeed)
	}
}

func TestResolve(t *testing.T) {
	m := &Map{
		Default:  builtinDefault(),
		Programs: map[int]Instrument{5: {Attn: 9}},
	}
	if m.Resolve(5).Attn != 9 {
		t.Error("mapped program should resolve to its entry")
	}
	if m.Resolve(42) != m.Default {
		t.Error("unmapped program should fall back to the default")
	}
}

func TestOpcodes(t *testing.T) {
	inst := Instrument{
		Attn: 2, EnvStep: 1, EnvSpeed: 3,
		VibDepth: 10, VibSpeed: 4, VibDelay: 30,
		SweepEnd: 0x234, SweepStep: -2, SweepSpeed: 5,
	}
	ops := inst.Opcodes()
	want := []byte{
		t6w28.OpSetAttn, 2,
		t6w28.OpSetEnv, 1, 3,
		t6w28.OpSetVib, 10, 4, 30,
		t6w28.OpSetSweep, 0x34, 0x02, 0xFE, 5,
	}
	if len(ops) != 14 {
		t.Fatalf("opcode block = %d bytes, want 14", len(ops))
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("ops[%d] = %#x, want %#x", i, ops[i], want[i])
		}
	}
}
