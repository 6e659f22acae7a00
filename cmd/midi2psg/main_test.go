package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// writeTestSong writes a three-note single-track file and returns its path.
func writeTestSong(t *testing.T, dir string) string {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(480, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOn(0, 64, 90))
	tr.Add(480, midi.NoteOff(0, 64))
	tr.Add(0, midi.NoteOn(1, 67, 80))
	tr.Add(480, midi.NoteOff(1, 67))
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "song.mid")
	if err := s.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCommand(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	data, readErr := os.ReadFile(args[len(args)-1])
	if readErr != nil {
		return "", err
	}
	return string(data), err
}

func TestPairedFlagSurface(t *testing.T) {
	cmd := newRootCmd()
	pairs := []struct{ on, off string }{
		{"split-voices", "no-split-voices"},
		{"preempt", "no-preempt"},
		{"auto-transpose", "no-auto-transpose"},
		{"clamp", "no-clamp"},
	}
	for _, p := range pairs {
		on := cmd.Flags().Lookup(p.on)
		if on == nil {
			t.Errorf("flag --%s not registered", p.on)
			continue
		}
		if on.DefValue != "true" {
			t.Errorf("--%s default = %s, want true", p.on, on.DefValue)
		}
		if cmd.Flags().Lookup(p.off) == nil {
			t.Errorf("flag --%s not registered", p.off)
		}
	}
	mono := cmd.Flags().Lookup("mono")
	if mono == nil {
		t.Fatal("flag --mono not registered")
	}
	if mono.DefValue != "true" {
		t.Errorf("--mono default = %s, want true", mono.DefValue)
	}
}

func TestAffirmativeFlagsAccepted(t *testing.T) {
	dir := t.TempDir()
	in := writeTestSong(t, dir)
	out := filepath.Join(dir, "song.s")

	// All of these restate a default; the run must behave as if they were
	// absent.
	output, err := runCommand(t, []string{
		"--mono", "--split-voices", "--preempt", "--auto-transpose", "--clamp",
		in, out,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(output, "BGM_MONO:") {
		t.Error("output missing mono stream")
	}
}

func TestNegativeFlagWinsOverAffirmative(t *testing.T) {
	dir := t.TempDir()
	in := writeTestSong(t, dir)
	out := filepath.Join(dir, "song.s")

	output, err := runCommand(t, []string{
		"--poly", "--channels", "2",
		"--split-voices", "--no-split-voices",
		in, out,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(output, "Poly voice split:") {
		t.Error("--no-split-voices should override --split-voices")
	}
	if !strings.Contains(output, "BGM_CH0:") {
		t.Error("output missing per-channel stream")
	}
}
