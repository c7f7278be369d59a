//go:build headless

// midi_devices_headless.go - device enumeration without hardware MIDI support.

package main

type MidiDeviceInfo struct {
	ID        string
	Name      string
	Kind      string
	Available bool
}

func GetMidiDevices() []MidiDeviceInfo {
	devices := make([]MidiDeviceInfo, 0, 4)
	for _, b := range registeredSynthBackends() {
		devices = append(devices, MidiDeviceInfo{
			ID:        b.Name,
			Name:      b.Desc,
			Kind:      "synth",
			Available: b.Available,
		})
	}
	return devices
}
