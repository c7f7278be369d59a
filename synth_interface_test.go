// synth_interface_test.go - Tests for the backend contract helpers

package main

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSynthError_Message(t *testing.T) {
	wrapped := errors.New("file vanished")
	tests := []struct {
		name string
		err  *SynthError
		want string
	}{
		{
			name: "with cause",
			err:  &SynthError{Operation: "bank load", Details: "doom2.wopl", Err: wrapped},
			want: "synth bank load failed: doom2.wopl: file vanished",
		},
		{
			name: "without cause",
			err:  &SynthError{Operation: "device open", Details: "running"},
			want: "synth device open failed: running",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSynthError_Unwrap(t *testing.T) {
	err := &SynthError{Operation: "play", Err: ErrBadState}
	if !errors.Is(err, ErrBadState) {
		t.Error("errors.Is should see through SynthError")
	}
	bare := &SynthError{Operation: "play"}
	if errors.Unwrap(bare) != nil {
		t.Error("Unwrap() of a causeless error should be nil")
	}
}

func TestSynthBackendByName(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"", SYNTH_BACKEND_ADL, false},
		{"adl", SYNTH_BACKEND_ADL, false},
		{"opl", SYNTH_BACKEND_ADL, false},
		{"opl3", SYNTH_BACKEND_ADL, false},
		{"opn", SYNTH_BACKEND_OPN, false},
		{"opn2", SYNTH_BACKEND_OPN, false},
		{"sf2", SYNTH_BACKEND_SF2, false},
		{"soundfont", SYNTH_BACKEND_SF2, false},
		{"port", SYNTH_BACKEND_PORT, false},
		{"midi", SYNTH_BACKEND_PORT, false},
		{"fluidsynth", 0, true},
		{"ADL", 0, true},
	}
	for _, tt := range tests {
		got, err := SynthBackendByName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("SynthBackendByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("SynthBackendByName(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestNewSynthBackend_BadArguments(t *testing.T) {
	if _, err := NewSynthBackend(SYNTH_BACKEND_SF2, 0, SynthConfig{}, zap.NewNop()); err == nil {
		t.Error("zero sample rate should fail")
	}
	_, err := NewSynthBackend(99, 48000, SynthConfig{}, zap.NewNop())
	if err == nil {
		t.Fatal("unknown backend type should fail")
	}
	if !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("error = %q, want mention of the unknown type", err)
	}
}

func TestGainForVolumeModel(t *testing.T) {
	tests := []struct {
		model int
		want  float32
	}{
		{VOLUME_MODEL_GENERIC, 2.0},
		{VOLUME_MODEL_9X, 2.0},
		{VOLUME_MODEL_9X_GENERIC_FM, 2.0},
		{VOLUME_MODEL_HMI, 2.5},
		{VOLUME_MODEL_HMI_OLD, 2.5},
		{VOLUME_MODEL_NATIVE_OPL3, 3.8},
		{VOLUME_MODEL_AUTO, 3.5},
		{VOLUME_MODEL_DMX, 3.5},
		{VOLUME_MODEL_APOGEE, 3.5},
		{VOLUME_MODEL_DMX_FIXED, 3.5},
		{VOLUME_MODEL_APOGEE_FIXED, 3.5},
		{VOLUME_MODEL_AIL, 3.5},
		{99, 3.5},
	}
	for _, tt := range tests {
		if got := gainForVolumeModel(tt.model); got != tt.want {
			t.Errorf("gainForVolumeModel(%d) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestApplyGain(t *testing.T) {
	buf := []float32{0.5, -0.25, 1}
	applyGain(buf, 1)
	if buf[0] != 0.5 || buf[1] != -0.25 || buf[2] != 1 {
		t.Errorf("gain 1 changed the buffer: %v", buf)
	}
	applyGain(buf, 2)
	if buf[0] != 1 || buf[1] != -0.5 || buf[2] != 2 {
		t.Errorf("gain 2 = %v, want doubled samples", buf)
	}
	applyGain(buf, 0)
	for i, s := range buf {
		if s != 0 {
			t.Errorf("buf[%d] = %v after gain 0, want 0", i, s)
		}
	}
}

func TestClearSamples(t *testing.T) {
	buf := []float32{1, 2, 3, 4}
	clearSamples(buf)
	for i, s := range buf {
		if s != 0 {
			t.Errorf("buf[%d] = %v, want 0", i, s)
		}
	}
}

func TestFlagInt(t *testing.T) {
	if flagInt(true) != 1 || flagInt(false) != 0 {
		t.Errorf("flagInt = %d/%d, want 1/0", flagInt(true), flagInt(false))
	}
}
