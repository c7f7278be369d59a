// synth_backend_sf2.go - SoundFont rendering backend over meltysynth.

package main

import (
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"go.uber.org/zap"
)

func init() {
	registerSynthBackend(SYNTH_BACKEND_SF2, "sf2", "SoundFont rendering (meltysynth, pure Go)", true)
}

// SF2Backend renders through the pure-Go meltysynth SoundFont engine.
// It is always compiled in and serves as the fallback when the FM
// backends are excluded or fail to construct. A soundfont is required;
// there is no embedded default.
type SF2Backend struct {
	synth *meltysynth.Synthesizer
	gain  float32
	path  string
	left  []float32
	right []float32
	log   *zap.Logger
}

func NewSF2Backend(sampleRate int, cfg SynthConfig, log *zap.Logger) (SynthBackend, error) {
	name := cfg.SF2.SoundFont
	if name == "" {
		name = os.Getenv("VIREO_SOUNDFONT")
	}
	if name == "" {
		return nil, &SynthError{
			Operation: "sf2 load",
			Details:   "no soundfont configured (set --soundfont or VIREO_SOUNDFONT)",
			Err:       ErrBackendUnavailable,
		}
	}
	path, ok := resolveBank(cfg.Resolver, name, BANK_FORMAT_SF2)
	if !ok {
		return nil, &SynthError{
			Operation: "sf2 load",
			Details:   fmt.Sprintf("soundfont %q not resolvable", name),
			Err:       ErrBackendUnavailable,
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &SynthError{Operation: "sf2 load", Details: path, Err: err}
	}
	defer f.Close()
	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return nil, &SynthError{
			Operation: "sf2 load",
			Details:   fmt.Sprintf("%s: %v", path, err),
			Err:       ErrBackendUnavailable,
		}
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	if cfg.SF2.Polyphony > 0 {
		settings.MaximumPolyphony = int32(cfg.SF2.Polyphony)
	}
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, &SynthError{
			Operation: "sf2 init",
			Details:   fmt.Sprintf("%s: %v", path, err),
			Err:       ErrBackendUnavailable,
		}
	}
	gain := cfg.SF2.Gain
	if gain <= 0 {
		gain = 1.0
	}
	log.Info("sf2 backend ready",
		zap.Int("sample_rate", sampleRate),
		zap.String("soundfont", path),
		zap.Float32("gain", gain))
	return &SF2Backend{synth: synth, gain: gain, path: path, log: log}, nil
}

func (b *SF2Backend) Open() error {
	if b.synth == nil {
		return &SynthError{Operation: "sf2 open", Details: "backend closed", Err: ErrBadState}
	}
	b.synth.Reset()
	return nil
}

func (b *SF2Backend) HandleShortEvent(status, parm1, parm2 byte) {
	if b.synth == nil {
		return
	}
	ch := int32(status & 0x0F)
	switch status & 0xF0 {
	case MIDI_NOTEON:
		b.synth.NoteOn(ch, int32(parm1), int32(parm2))
	case MIDI_NOTEOFF:
		b.synth.NoteOff(ch, int32(parm1))
	case MIDI_CTRLCHANGE, MIDI_PRGMCHANGE, MIDI_PITCHBEND:
		b.synth.ProcessMidiMessage(ch, int32(status&0xF0), int32(parm1), int32(parm2))
	}
}

// HandleLongEvent is a no-op: the SoundFont engine has no sysex surface.
func (b *SF2Backend) HandleLongEvent(data []byte) {}

func (b *SF2Backend) Render(buf []float32) {
	frames := len(buf) / 2
	if b.synth == nil || frames == 0 {
		clearSamples(buf)
		return
	}
	if cap(b.left) < frames {
		b.left = make([]float32, frames)
		b.right = make([]float32, frames)
	}
	left := b.left[:frames]
	right := b.right[:frames]
	b.synth.Render(left, right)
	g := b.gain
	for i := 0; i < frames; i++ {
		buf[2*i] = left[i] * g
		buf[2*i+1] = right[i] * g
	}
}

func (b *SF2Backend) Close() error {
	b.synth = nil
	return nil
}

func (b *SF2Backend) Name() string { return "sf2" }
