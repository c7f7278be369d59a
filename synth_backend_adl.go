//go:build !noadl

// synth_backend_adl.go - OPL3 FM synthesis backend over libADLMIDI.

package main

/*
#cgo LDFLAGS: -lADLMIDI
#include <stdlib.h>
#include <adlmidi.h>

static const struct ADLMIDI_AudioFormat vireoADLFormat = {
	ADLMIDI_SampleType_F32, sizeof(float), 2 * sizeof(float)
};

static int vireoADLGenerate(struct ADL_MIDIPlayer *p, int sampleCount, float *buf) {
	return adl_generateFormat(p, sampleCount, (ADL_UInt8 *)buf,
		(ADL_UInt8 *)(buf + 1), &vireoADLFormat);
}
*/
import "C"
import (
	"fmt"
	"strconv"
	"unsafe"

	"go.uber.org/zap"
)

func init() {
	registerSynthBackend(SYNTH_BACKEND_ADL, "adl", "OPL3 FM synthesis (libADLMIDI)", true)
}

// ADLBackend renders through the libADLMIDI OPL3 emulation cores. The
// engine writes interleaved stereo float32 directly into the caller's
// buffer; a fixed per-volume-model gain is applied afterwards to match
// the loudness of the other backends.
type ADLBackend struct {
	renderer *C.struct_ADL_MIDIPlayer
	gain     float32
	bank     string
	log      *zap.Logger
}

func NewADLBackend(sampleRate int, cfg SynthConfig, log *zap.Logger) (SynthBackend, error) {
	acfg := cfg.ADL
	renderer := C.adl_init(C.long(sampleRate))
	if renderer == nil {
		return nil, &SynthError{
			Operation: "adl init",
			Details:   fmt.Sprintf("adl_init(%d) returned null", sampleRate),
			Err:       ErrBackendUnavailable,
		}
	}
	b := &ADLBackend{renderer: renderer, log: log}

	C.adl_switchEmulator(renderer, C.int(acfg.Emulator))
	C.adl_setRunAtPcmRate(renderer, C.int(flagInt(acfg.RunAtPCMRate)))

	if err := b.selectBank(acfg.Bank, cfg.Resolver); err != nil {
		C.adl_close(renderer)
		b.renderer = nil
		return nil, err
	}

	chips := acfg.NumChips
	if chips <= 0 {
		chips = DEFAULT_ADL_CHIPS
	}
	C.adl_setNumChips(renderer, C.int(chips))
	C.adl_setVolumeRangeModel(renderer, C.int(acfg.VolumeModel))
	alloc := acfg.ChannelAlloc
	if alloc == 0 {
		alloc = CHAN_ALLOC_AUTO
	}
	C.adl_setChannelAllocMode(renderer, C.int(alloc))
	C.adl_setSoftPanEnabled(renderer, C.int(flagInt(acfg.FullPan)))

	// The effective model depends on the loaded bank when the config
	// asks for auto, so the gain is read back rather than assumed.
	model := int(C.adl_getVolumeRangeModel(renderer))
	b.gain = gainForVolumeModel(model)

	log.Info("adl backend ready",
		zap.Int("sample_rate", sampleRate),
		zap.String("bank", b.bank),
		zap.Int("chips", chips),
		zap.Int("volume_model", model),
		zap.Float32("gain", b.gain))
	return b, nil
}

// selectBank applies the bank priority: a resolvable custom bank always
// wins; a decimal argument picks a compiled-in bank by index; empty
// falls back to the default compiled-in bank.
func (b *ADLBackend) selectBank(bank string, resolver BankResolver) error {
	if bank == "" {
		b.bank = fmt.Sprintf("builtin:%d", DEFAULT_ADL_BANK)
		return b.setBuiltinBank(DEFAULT_ADL_BANK)
	}
	if idx, err := strconv.Atoi(bank); err == nil {
		b.bank = fmt.Sprintf("builtin:%d", idx)
		return b.setBuiltinBank(idx)
	}
	path, ok := resolveBank(resolver, bank, BANK_FORMAT_WOPL)
	if !ok {
		return &SynthError{
			Operation: "adl bank load",
			Details:   fmt.Sprintf("bank %q not resolvable", bank),
			Err:       ErrBackendUnavailable,
		}
	}
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	if C.adl_openBankFile(b.renderer, cpath) != 0 {
		return &SynthError{
			Operation: "adl bank load",
			Details:   fmt.Sprintf("%s: %s", path, C.GoString(C.adl_errorInfo(b.renderer))),
			Err:       ErrBackendUnavailable,
		}
	}
	b.bank = path
	return nil
}

func (b *ADLBackend) setBuiltinBank(idx int) error {
	if C.adl_setBank(b.renderer, C.int(idx)) != 0 {
		return &SynthError{
			Operation: "adl bank select",
			Details:   fmt.Sprintf("index %d: %s", idx, C.GoString(C.adl_errorInfo(b.renderer))),
			Err:       ErrBackendUnavailable,
		}
	}
	return nil
}

func (b *ADLBackend) Open() error {
	if b.renderer == nil {
		return &SynthError{Operation: "adl open", Details: "backend closed", Err: ErrBadState}
	}
	C.adl_rt_resetState(b.renderer)
	return nil
}

func (b *ADLBackend) HandleShortEvent(status, parm1, parm2 byte) {
	if b.renderer == nil {
		return
	}
	ch := C.ADL_UInt8(status & 0x0F)
	switch status & 0xF0 {
	case MIDI_NOTEON:
		C.adl_rt_noteOn(b.renderer, ch, C.ADL_UInt8(parm1), C.ADL_UInt8(parm2))
	case MIDI_NOTEOFF:
		C.adl_rt_noteOff(b.renderer, ch, C.ADL_UInt8(parm1))
	case MIDI_POLYPRESS:
		C.adl_rt_noteAfterTouch(b.renderer, ch, C.ADL_UInt8(parm1), C.ADL_UInt8(parm2))
	case MIDI_CTRLCHANGE:
		C.adl_rt_controllerChange(b.renderer, ch, C.ADL_UInt8(parm1), C.ADL_UInt8(parm2))
	case MIDI_PRGMCHANGE:
		C.adl_rt_patchChange(b.renderer, ch, C.ADL_UInt8(parm1))
	case MIDI_CHANPRESS:
		C.adl_rt_channelAfterTouch(b.renderer, ch, C.ADL_UInt8(parm1))
	case MIDI_PITCHBEND:
		// MSB first, LSB second.
		C.adl_rt_pitchBendML(b.renderer, ch, C.ADL_UInt8(parm2), C.ADL_UInt8(parm1))
	}
}

func (b *ADLBackend) HandleLongEvent(data []byte) {
	if b.renderer == nil || len(data) == 0 {
		return
	}
	if data[0] != MIDI_SYSEX && data[0] != 0xF7 {
		return
	}
	C.adl_rt_systemExclusive(b.renderer, (*C.ADL_UInt8)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
}

func (b *ADLBackend) Render(buf []float32) {
	if len(buf) < 2 {
		return
	}
	if b.renderer == nil {
		clearSamples(buf)
		return
	}
	n := int(C.vireoADLGenerate(b.renderer, C.int(len(buf)&^1), (*C.float)(unsafe.Pointer(&buf[0]))))
	if n < 0 {
		n = 0
	}
	clearSamples(buf[n:])
	applyGain(buf, b.gain)
}

func (b *ADLBackend) Close() error {
	if b.renderer != nil {
		C.adl_close(b.renderer)
		b.renderer = nil
	}
	return nil
}

func (b *ADLBackend) Name() string { return "adl" }

// ADLBankNames lists the compiled-in FM bank catalogue.
func ADLBankNames() []string {
	count := int(C.adl_getBanksCount())
	if count <= 0 {
		return nil
	}
	names := C.adl_getBankNames()
	if names == nil {
		return nil
	}
	out := make([]string, count)
	for i, p := range unsafe.Slice(names, count) {
		out[i] = C.GoString(p)
	}
	return out
}
