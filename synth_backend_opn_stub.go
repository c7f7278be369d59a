//go:build noopn

// synth_backend_opn_stub.go - build without the libOPNMIDI dependency.

package main

import "go.uber.org/zap"

func init() {
	registerSynthBackend(SYNTH_BACKEND_OPN, "opn", "OPN2 FM synthesis (libOPNMIDI)", false)
}

func NewOPNBackend(sampleRate int, cfg SynthConfig, log *zap.Logger) (SynthBackend, error) {
	return nil, &SynthError{
		Operation: "backend creation",
		Details:   "OPN2 backend excluded from this build",
		Err:       ErrUnsupportedBackend,
	}
}
