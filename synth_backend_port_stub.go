//go:build headless

// synth_backend_port_stub.go - port backend stub for headless builds.

package main

import "go.uber.org/zap"

func init() {
	registerSynthBackend(SYNTH_BACKEND_PORT, "port", "Hardware MIDI output (rtmidi)", false)
}

func NewPortBackend(cfg PortConfig, log *zap.Logger) (SynthBackend, error) {
	return nil, &SynthError{
		Operation: "port backend creation",
		Details:   "not compiled in",
		Err:       ErrUnsupportedBackend,
	}
}
