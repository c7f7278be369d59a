//go:build noadl

// synth_backend_adl_stub.go - build without the libADLMIDI dependency.

package main

import "go.uber.org/zap"

func init() {
	registerSynthBackend(SYNTH_BACKEND_ADL, "adl", "OPL3 FM synthesis (libADLMIDI)", false)
}

func NewADLBackend(sampleRate int, cfg SynthConfig, log *zap.Logger) (SynthBackend, error) {
	return nil, &SynthError{
		Operation: "backend creation",
		Details:   "OPL3 backend excluded from this build",
		Err:       ErrUnsupportedBackend,
	}
}

func ADLBankNames() []string { return nil }
