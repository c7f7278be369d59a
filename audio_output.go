// audio_output.go - audio output abstraction layer and factory.

package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FrameSource supplies interleaved stereo float32 frames to an output
// backend. ReadFrames fills buf completely and returns the frame count;
// a source with nothing to play fills silence.
type FrameSource interface {
	ReadFrames(buf []float32) int
}

// AudioError provides structured error reporting for output backends.
type AudioError struct {
	Operation string
	Details   string
	Err       error
}

func (e *AudioError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Operation, e.Details)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return e.Operation
}

func (e *AudioError) Unwrap() error { return e.Err }

var (
	ErrOutputUnavailable = errors.New("audio output unavailable")
	ErrUnsupportedOutput = errors.New("unsupported audio output")
)

const (
	AUDIO_BACKEND_OTO = iota
	AUDIO_BACKEND_ALSA
	AUDIO_BACKEND_NULL
)

// AudioOutput pulls frames from a FrameSource and delivers them to the
// platform audio system.
type AudioOutput interface {
	Start() error
	Stop()
	Close() error
	Name() string
}

// NewAudioOutput creates an output of the requested type. The source is
// bound for the life of the output.
func NewAudioOutput(backend int, sampleRate int, src FrameSource, log *zap.Logger) (AudioOutput, error) {
	if src == nil {
		return nil, &AudioError{Operation: "output creation", Details: "nil frame source"}
	}
	if sampleRate <= 0 {
		return nil, &AudioError{
			Operation: "output creation",
			Details:   fmt.Sprintf("sample rate %d out of range", sampleRate),
		}
	}
	switch backend {
	case AUDIO_BACKEND_OTO:
		return NewOtoOutput(sampleRate, src, log)
	case AUDIO_BACKEND_ALSA:
		return NewALSAOutput("", sampleRate, src, log)
	case AUDIO_BACKEND_NULL:
		return NewNullOutput(sampleRate, src, log)
	default:
		return nil, &AudioError{
			Operation: "output creation",
			Details:   fmt.Sprintf("unknown backend %d", backend),
			Err:       ErrUnsupportedOutput,
		}
	}
}

// AudioOutputByName maps a user-facing output name to its backend
// constant. An empty name selects the default output.
func AudioOutputByName(name string) (int, error) {
	switch name {
	case "", "oto", "auto":
		return AUDIO_BACKEND_OTO, nil
	case "alsa":
		return AUDIO_BACKEND_ALSA, nil
	case "null", "none":
		return AUDIO_BACKEND_NULL, nil
	}
	return 0, &AudioError{
		Operation: "output selection",
		Details:   fmt.Sprintf("unknown output %q", name),
		Err:       ErrUnsupportedOutput,
	}
}
