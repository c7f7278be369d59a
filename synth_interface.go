// synth_interface.go - synthesis backend contract shared by all adapters.

package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SynthError provides detailed error context for synthesis operations
type SynthError struct {
	Operation string // What operation was being attempted
	Details   string // Additional error context
	Err       error  // Underlying error if any
}

func (e *SynthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("synth %s failed: %s: %v", e.Operation, e.Details, e.Err)
	}
	return fmt.Sprintf("synth %s failed: %s", e.Operation, e.Details)
}

func (e *SynthError) Unwrap() error {
	return e.Err
}

var (
	// ErrBackendUnavailable means a backend failed to construct: engine
	// init failed or a required bank could not be loaded. Fatal for that
	// backend; callers fall back or abort.
	ErrBackendUnavailable = errors.New("synth backend unavailable")
	// ErrUnsupportedBackend means the backend was excluded at build time.
	ErrUnsupportedBackend = errors.New("synth backend not built in")
	// ErrInvalidSource means the input could not be decoded to a
	// playable stream.
	ErrInvalidSource = errors.New("invalid music source")
	// ErrBadState means the operation does not apply to the device's
	// current state.
	ErrBadState = errors.New("operation invalid in current state")
)

// SynthBackend is the contract between the softsynth device and a
// synthesis engine. The device owns the backend: all calls arrive from
// one goroutine, Open comes before any event or render call, and Close
// may arrive in any state.
type SynthBackend interface {
	// Open resets the engine to a clean state, ready for events
	Open() error
	// HandleShortEvent dispatches one channel message. Unknown and
	// system statuses are ignored silently, never an error.
	HandleShortEvent(status, parm1, parm2 byte)
	// HandleLongEvent accepts a complete system-exclusive message,
	// leading 0xF0 included. Non-sysex payloads are ignored.
	HandleLongEvent(data []byte)
	// Render overwrites buf with interleaved stereo float32 samples,
	// len(buf)/2 frames. Silence when no voices sound.
	Render(buf []float32)
	// Close releases the engine. Idempotent.
	Close() error
	// Name identifies the backend for logs and device listings
	Name() string
}

// Predefined synthesis backend types
const (
	SYNTH_BACKEND_ADL  = iota // OPL3 FM via libADLMIDI (cgo)
	SYNTH_BACKEND_OPN         // OPN2 FM via libOPNMIDI (cgo)
	SYNTH_BACKEND_SF2         // SoundFont rendering, pure Go
	SYNTH_BACKEND_PORT        // hardware MIDI output port
)

// Volume range models, numbered as libADLMIDI numbers them.
const (
	VOLUME_MODEL_AUTO          = 0
	VOLUME_MODEL_GENERIC       = 1
	VOLUME_MODEL_NATIVE_OPL3   = 2
	VOLUME_MODEL_DMX           = 3
	VOLUME_MODEL_APOGEE        = 4
	VOLUME_MODEL_9X            = 5
	VOLUME_MODEL_DMX_FIXED     = 6
	VOLUME_MODEL_APOGEE_FIXED  = 7
	VOLUME_MODEL_AIL           = 8
	VOLUME_MODEL_9X_GENERIC_FM = 9
	VOLUME_MODEL_HMI           = 10
	VOLUME_MODEL_HMI_OLD       = 11
)

// Adapter defaults matching the reference player configuration.
const (
	DEFAULT_ADL_BANK  = 14 // DMX (Doom 2) from the compiled-in bank set
	DEFAULT_ADL_CHIPS = 6
	DEFAULT_OPN_CHIPS = 8
	CHAN_ALLOC_AUTO   = -1
)

// ADLConfig configures the OPL3 adapter. Zero values select the
// defaults above; Bank may name a .wopl file for the resolver or hold a
// decimal built-in bank index.
type ADLConfig struct {
	Bank         string
	Emulator     int
	NumChips     int
	VolumeModel  int
	ChannelAlloc int
	RunAtPCMRate bool
	FullPan      bool
}

// OPNConfig configures the OPN2 adapter. Banks resolve by name only;
// BankData supplies an in-memory .wopn image and wins over Bank. With
// neither set the engine's embedded default bank plays.
type OPNConfig struct {
	Bank         string
	BankData     []byte
	Emulator     int
	NumChips     int
	VolumeModel  int
	ChannelAlloc int
	RunAtPCMRate bool
	FullPan      bool
	AutoArpeggio bool
}

// SF2Config configures the SoundFont adapter.
type SF2Config struct {
	SoundFont string
	Polyphony int
	Gain      float32
}

// PortConfig selects a hardware MIDI output port: empty for the first
// port, a decimal index, or a case-insensitive name fragment.
type PortConfig struct {
	Port string
}

// SynthConfig bundles the per-adapter configuration with the bank
// resolver. A nil Resolver selects the default lookup.
type SynthConfig struct {
	ADL      ADLConfig
	OPN      OPNConfig
	SF2      SF2Config
	Port     PortConfig
	Resolver BankResolver
}

// NewSynthBackend creates a synthesis backend of the given type. The
// sample rate is fixed for the backend's lifetime. Construction does the
// full engine and bank setup, so a backend that constructs will play.
func NewSynthBackend(backend, sampleRate int, cfg SynthConfig, log *zap.Logger) (SynthBackend, error) {
	if sampleRate <= 0 {
		return nil, &SynthError{
			Operation: "backend creation",
			Details:   fmt.Sprintf("sample rate %d out of range", sampleRate),
		}
	}
	switch backend {
	case SYNTH_BACKEND_ADL:
		return NewADLBackend(sampleRate, cfg, log)
	case SYNTH_BACKEND_OPN:
		return NewOPNBackend(sampleRate, cfg, log)
	case SYNTH_BACKEND_SF2:
		return NewSF2Backend(sampleRate, cfg, log)
	case SYNTH_BACKEND_PORT:
		return NewPortBackend(cfg.Port, log)
	}
	return nil, &SynthError{
		Operation: "backend creation",
		Details:   fmt.Sprintf("unknown backend type: %d", backend),
	}
}

// SynthBackendByName maps the CLI and API spelling of a backend to its
// constant. Empty means the default FM backend.
func SynthBackendByName(name string) (int, error) {
	switch name {
	case "", "adl", "opl", "opl3":
		return SYNTH_BACKEND_ADL, nil
	case "opn", "opn2":
		return SYNTH_BACKEND_OPN, nil
	case "sf2", "soundfont":
		return SYNTH_BACKEND_SF2, nil
	case "port", "midi":
		return SYNTH_BACKEND_PORT, nil
	}
	return 0, fmt.Errorf("unknown synth backend %q", name)
}

// gainForVolumeModel returns the fixed output gain applied after FM
// synthesis to normalise loudness across volume models. The values are
// calibrated against the OPL3 reference player, keyed by the effective
// model the engine reports after bank load.
func gainForVolumeModel(model int) float32 {
	switch model {
	case VOLUME_MODEL_GENERIC, VOLUME_MODEL_9X, VOLUME_MODEL_9X_GENERIC_FM:
		return 2.0
	case VOLUME_MODEL_HMI, VOLUME_MODEL_HMI_OLD:
		return 2.5
	case VOLUME_MODEL_NATIVE_OPL3:
		return 3.8
	default:
		return 3.5
	}
}

// applyGain scales every sample in place. A gain of 1 is a no-op.
func applyGain(buf []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i := range buf {
		buf[i] *= gain
	}
}

func clearSamples(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}

func flagInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
