// synth_backend_sf2_test.go - Tests for the SoundFont backend

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewSF2Backend_NoSoundFontConfigured(t *testing.T) {
	t.Setenv("VIREO_SOUNDFONT", "")
	_, err := NewSF2Backend(44100, SynthConfig{}, zap.NewNop())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("NewSF2Backend with no soundfont = %v, want ErrBackendUnavailable", err)
	}
}

func TestNewSF2Backend_UnresolvableName(t *testing.T) {
	t.Setenv("VIREO_BANK_DIR", "")
	cfg := SynthConfig{SF2: SF2Config{SoundFont: filepath.Join(t.TempDir(), "missing.sf2")}}
	_, err := NewSF2Backend(44100, cfg, zap.NewNop())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("NewSF2Backend(missing) = %v, want ErrBackendUnavailable", err)
	}
	if err == nil || !strings.Contains(err.Error(), "not resolvable") {
		t.Errorf("error = %v, want resolution failure", err)
	}
}

func TestNewSF2Backend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.sf2")
	if err := os.WriteFile(path, []byte("this is not a soundfont"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := SynthConfig{SF2: SF2Config{SoundFont: path}}
	_, err := NewSF2Backend(44100, cfg, zap.NewNop())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("NewSF2Backend(corrupt) = %v, want ErrBackendUnavailable", err)
	}
}

// A closed backend must stay inert rather than panic: the device can
// race a Close from teardown against a final render.
func TestSF2Backend_ClosedIsInert(t *testing.T) {
	b := &SF2Backend{}
	if err := b.Open(); !errors.Is(err, ErrBadState) {
		t.Errorf("Open on closed backend = %v, want ErrBadState", err)
	}
	b.HandleShortEvent(MIDI_NOTEON, 60, 100)
	b.HandleLongEvent([]byte{0xF0, 0x7E, 0xF7})

	buf := []float32{1, 2, 3, 4}
	b.Render(buf)
	for i, s := range buf {
		if s != 0 {
			t.Errorf("buf[%d] = %v, closed backend must render silence", i, s)
		}
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
	if b.Name() != "sf2" {
		t.Errorf("Name() = %q, want sf2", b.Name())
	}
}
