//go:build !headless

// midi_devices.go - playable device enumeration.

package main

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MidiDeviceInfo describes one playable destination: a built-in
// synthesis backend or a hardware MIDI output port.
type MidiDeviceInfo struct {
	ID        string
	Name      string
	Kind      string
	Available bool
}

// GetMidiDevices lists the built-in backends first and the hardware
// output ports after them, in port order.
func GetMidiDevices() []MidiDeviceInfo {
	devices := make([]MidiDeviceInfo, 0, 8)
	for _, b := range registeredSynthBackends() {
		devices = append(devices, MidiDeviceInfo{
			ID:        b.Name,
			Name:      b.Desc,
			Kind:      "synth",
			Available: b.Available,
		})
	}
	for i, out := range gomidi.GetOutPorts() {
		devices = append(devices, MidiDeviceInfo{
			ID:        fmt.Sprintf("port:%d", i),
			Name:      out.String(),
			Kind:      "port",
			Available: true,
		})
	}
	return devices
}
