//go:build !headless

// synth_backend_port.go - hardware MIDI output port backend.

package main

import (
	"fmt"
	"strconv"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/zap"
)

func init() {
	registerSynthBackend(SYNTH_BACKEND_PORT, "port", "Hardware MIDI output (rtmidi)", true)
}

// PortBackend forwards the event stream to a hardware MIDI output
// port. Render produces silence: the receiving instrument makes the
// sound, so the device clock still paces delivery in real time.
type PortBackend struct {
	out  drivers.Out
	send func(gomidi.Message) error
	log  *zap.Logger
}

// NewPortBackend opens a hardware output port. An empty selector picks
// the first port, a decimal selector picks by index, anything else
// matches case-insensitively on the port name.
func NewPortBackend(cfg PortConfig, log *zap.Logger) (*PortBackend, error) {
	ports := gomidi.GetOutPorts()
	if len(ports) == 0 {
		return nil, &SynthError{
			Operation: "port backend creation",
			Details:   "no MIDI output ports present",
			Err:       ErrBackendUnavailable,
		}
	}

	var out drivers.Out
	switch {
	case cfg.Port == "":
		out = ports[0]
	default:
		if idx, err := strconv.Atoi(cfg.Port); err == nil {
			if idx < 0 || idx >= len(ports) {
				return nil, &SynthError{
					Operation: "port backend creation",
					Details:   fmt.Sprintf("port index %d out of range (%d ports)", idx, len(ports)),
					Err:       ErrBackendUnavailable,
				}
			}
			out = ports[idx]
			break
		}
		want := strings.ToLower(cfg.Port)
		for i, p := range ports {
			if strings.Contains(strings.ToLower(p.String()), want) {
				out = ports[i]
				break
			}
		}
		if out == nil {
			return nil, &SynthError{
				Operation: "port backend creation",
				Details:   fmt.Sprintf("no port matching %q", cfg.Port),
				Err:       ErrBackendUnavailable,
			}
		}
	}

	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, &SynthError{Operation: "port open", Details: out.String(), Err: err}
	}
	if log != nil {
		log.Info("hardware MIDI port opened", zap.String("port", out.String()))
	}
	return &PortBackend{out: out, send: send, log: log}, nil
}

// Open silences the port so a replay starts from a clean controller
// state.
func (b *PortBackend) Open() error {
	return b.silenceChannels()
}

func (b *PortBackend) HandleShortEvent(status, parm1, parm2 byte) {
	var msg []byte
	switch status & 0xF0 {
	case MIDI_PRGMCHANGE, MIDI_CHANPRESS:
		msg = []byte{status, parm1}
	case MIDI_NOTEOFF, MIDI_NOTEON, MIDI_POLYPRESS, MIDI_CTRLCHANGE, MIDI_PITCHBEND:
		msg = []byte{status, parm1, parm2}
	default:
		return
	}
	if err := b.send(gomidi.Message(msg)); err != nil && b.log != nil {
		b.log.Warn("port send failed", zap.Error(err))
	}
}

func (b *PortBackend) HandleLongEvent(data []byte) {
	if len(data) == 0 || (data[0] != 0xF0 && data[0] != 0xF7) {
		return
	}
	if err := b.send(gomidi.Message(data)); err != nil && b.log != nil {
		b.log.Warn("port sysex send failed", zap.Error(err))
	}
}

func (b *PortBackend) Render(buf []float32) {
	clearSamples(buf)
}

func (b *PortBackend) Close() error {
	if b.out == nil {
		return nil
	}
	b.silenceChannels()
	err := b.out.Close()
	b.out = nil
	b.send = nil
	return err
}

func (b *PortBackend) Name() string { return "port" }

func (b *PortBackend) silenceChannels() error {
	if b.send == nil {
		return nil
	}
	for ch := byte(0); ch < 16; ch++ {
		b.send(gomidi.Message([]byte{MIDI_CTRLCHANGE | ch, 120, 0}))
		b.send(gomidi.Message([]byte{MIDI_CTRLCHANGE | ch, 121, 0}))
	}
	return nil
}
