//go:build !noopn

// synth_backend_opn.go - OPN2 FM synthesis backend over libOPNMIDI.

package main

/*
#cgo LDFLAGS: -lOPNMIDI
#include <stdlib.h>
#include <opnmidi.h>

static const struct OPNMIDI_AudioFormat vireoOPNFormat = {
	OPNMIDI_SampleType_F32, sizeof(float), 2 * sizeof(float)
};

static int vireoOPNGenerate(struct OPN2_MIDIPlayer *p, int sampleCount, float *buf) {
	return opn2_generateFormat(p, sampleCount, (OPN_UInt8 *)buf,
		(OPN_UInt8 *)(buf + 1), &vireoOPNFormat);
}
*/
import "C"
import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
)

func init() {
	registerSynthBackend(SYNTH_BACKEND_OPN, "opn", "OPN2 FM synthesis (libOPNMIDI)", true)
}

// OPNBackend renders through the libOPNMIDI YM2612 emulation cores.
// Banks resolve by name only; with no bank configured the engine's
// embedded default voice set plays, so the backend needs no external
// files. Output level is the engine's native level.
type OPNBackend struct {
	renderer *C.struct_OPN2_MIDIPlayer
	bank     string
	log      *zap.Logger
}

func NewOPNBackend(sampleRate int, cfg SynthConfig, log *zap.Logger) (SynthBackend, error) {
	ocfg := cfg.OPN
	renderer := C.opn2_init(C.long(sampleRate))
	if renderer == nil {
		return nil, &SynthError{
			Operation: "opn init",
			Details:   fmt.Sprintf("opn2_init(%d) returned null", sampleRate),
			Err:       ErrBackendUnavailable,
		}
	}
	b := &OPNBackend{renderer: renderer, log: log}

	if err := b.selectBank(ocfg, cfg.Resolver); err != nil {
		C.opn2_close(renderer)
		b.renderer = nil
		return nil, err
	}

	C.opn2_switchEmulator(renderer, C.int(ocfg.Emulator))
	C.opn2_setRunAtPcmRate(renderer, C.int(flagInt(ocfg.RunAtPCMRate)))
	chips := ocfg.NumChips
	if chips <= 0 {
		chips = DEFAULT_OPN_CHIPS
	}
	C.opn2_setNumChips(renderer, C.int(chips))
	C.opn2_setVolumeRangeModel(renderer, C.int(ocfg.VolumeModel))
	alloc := ocfg.ChannelAlloc
	if alloc == 0 {
		alloc = CHAN_ALLOC_AUTO
	}
	C.opn2_setChannelAllocMode(renderer, C.int(alloc))
	C.opn2_setSoftPanEnabled(renderer, C.int(flagInt(ocfg.FullPan)))
	C.opn2_setAutoArpeggio(renderer, C.int(flagInt(ocfg.AutoArpeggio)))

	log.Info("opn backend ready",
		zap.Int("sample_rate", sampleRate),
		zap.String("bank", b.bank),
		zap.Int("chips", chips))
	return b, nil
}

// selectBank loads, in priority order, a resolvable named bank, then
// caller-supplied bank bytes, then the engine's embedded default.
func (b *OPNBackend) selectBank(cfg OPNConfig, resolver BankResolver) error {
	if cfg.Bank != "" {
		path, ok := resolveBank(resolver, cfg.Bank, BANK_FORMAT_WOPN)
		if !ok {
			return &SynthError{
				Operation: "opn bank load",
				Details:   fmt.Sprintf("bank %q not resolvable", cfg.Bank),
				Err:       ErrBackendUnavailable,
			}
		}
		cpath := C.CString(path)
		defer C.free(unsafe.Pointer(cpath))
		if C.opn2_openBankFile(b.renderer, cpath) != 0 {
			return &SynthError{
				Operation: "opn bank load",
				Details:   fmt.Sprintf("%s: %s", path, C.GoString(C.opn2_errorInfo(b.renderer))),
				Err:       ErrBackendUnavailable,
			}
		}
		b.bank = path
		return nil
	}
	if len(cfg.BankData) > 0 {
		if C.opn2_openBankData(b.renderer, unsafe.Pointer(&cfg.BankData[0]), C.long(len(cfg.BankData))) != 0 {
			return &SynthError{
				Operation: "opn bank load",
				Details:   fmt.Sprintf("in-memory bank (%d bytes): %s", len(cfg.BankData), C.GoString(C.opn2_errorInfo(b.renderer))),
				Err:       ErrBackendUnavailable,
			}
		}
		b.bank = "memory"
		return nil
	}
	b.bank = "embedded"
	return nil
}

func (b *OPNBackend) Open() error {
	if b.renderer == nil {
		return &SynthError{Operation: "opn open", Details: "backend closed", Err: ErrBadState}
	}
	C.opn2_rt_resetState(b.renderer)
	return nil
}

func (b *OPNBackend) HandleShortEvent(status, parm1, parm2 byte) {
	if b.renderer == nil {
		return
	}
	ch := C.OPN_UInt8(status & 0x0F)
	switch status & 0xF0 {
	case MIDI_NOTEON:
		C.opn2_rt_noteOn(b.renderer, ch, C.OPN_UInt8(parm1), C.OPN_UInt8(parm2))
	case MIDI_NOTEOFF:
		C.opn2_rt_noteOff(b.renderer, ch, C.OPN_UInt8(parm1))
	case MIDI_POLYPRESS:
		C.opn2_rt_noteAfterTouch(b.renderer, ch, C.OPN_UInt8(parm1), C.OPN_UInt8(parm2))
	case MIDI_CTRLCHANGE:
		C.opn2_rt_controllerChange(b.renderer, ch, C.OPN_UInt8(parm1), C.OPN_UInt8(parm2))
	case MIDI_PRGMCHANGE:
		C.opn2_rt_patchChange(b.renderer, ch, C.OPN_UInt8(parm1))
	case MIDI_CHANPRESS:
		C.opn2_rt_channelAfterTouch(b.renderer, ch, C.OPN_UInt8(parm1))
	case MIDI_PITCHBEND:
		C.opn2_rt_pitchBendML(b.renderer, ch, C.OPN_UInt8(parm2), C.OPN_UInt8(parm1))
	}
}

func (b *OPNBackend) HandleLongEvent(data []byte) {
	if b.renderer == nil || len(data) == 0 {
		return
	}
	if data[0] != MIDI_SYSEX && data[0] != 0xF7 {
		return
	}
	C.opn2_rt_systemExclusive(b.renderer, (*C.OPN_UInt8)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
}

func (b *OPNBackend) Render(buf []float32) {
	if len(buf) < 2 {
		return
	}
	if b.renderer == nil {
		clearSamples(buf)
		return
	}
	n := int(C.vireoOPNGenerate(b.renderer, C.int(len(buf)&^1), (*C.float)(unsafe.Pointer(&buf[0]))))
	if n < 0 {
		n = 0
	}
	clearSamples(buf[n:])
}

func (b *OPNBackend) Close() error {
	if b.renderer != nil {
		C.opn2_close(b.renderer)
		b.renderer = nil
	}
	return nil
}

func (b *OPNBackend) Name() string { return "opn" }
