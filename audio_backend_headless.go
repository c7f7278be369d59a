//go:build headless

// audio_backend_headless.go - stubs for builds without audio hardware support.

package main

import "go.uber.org/zap"

func NewOtoOutput(sampleRate int, src FrameSource, log *zap.Logger) (AudioOutput, error) {
	return nil, &AudioError{
		Operation: "oto init",
		Details:   "not compiled in",
		Err:       ErrUnsupportedOutput,
	}
}

func NewALSAOutput(device string, sampleRate int, src FrameSource, log *zap.Logger) (AudioOutput, error) {
	return nil, &AudioError{
		Operation: "alsa open",
		Details:   "not compiled in",
		Err:       ErrUnsupportedOutput,
	}
}
