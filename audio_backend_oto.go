//go:build !headless

// audio_backend_oto.go - oto v3 audio output implementation.

package main

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

func init() {
	registerFeature("Oto audio output")
}

// OtoOutput delivers frames through the oto portability layer. oto
// pulls bytes on its own mixer goroutine, so Read bridges the pull
// straight into the frame source.
type OtoOutput struct {
	ctx       *oto.Context
	player    *oto.Player
	src       FrameSource
	log       *zap.Logger
	sampleBuf []float32
	started   bool
	mutex     sync.Mutex
}

func NewOtoOutput(sampleRate int, src FrameSource, log *zap.Logger) (*OtoOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, &AudioError{Operation: "oto init", Err: err}
	}
	<-ready

	o := &OtoOutput{
		ctx:       ctx,
		src:       src,
		log:       log,
		sampleBuf: make([]float32, 8192),
	}
	o.player = ctx.NewPlayer(o)
	return o, nil
}

// Read satisfies io.Reader for the oto player. Whole frames only; any
// ragged tail bytes are zeroed.
func (o *OtoOutput) Read(p []byte) (int, error) {
	numFrames := len(p) / 8
	numSamples := numFrames * 2

	if len(o.sampleBuf) < numSamples {
		o.sampleBuf = make([]float32, numSamples)
	}
	samples := o.sampleBuf[:numSamples]

	if numFrames > 0 {
		o.src.ReadFrames(samples)
		copy(p, unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), numSamples*4))
	}
	for i := numFrames * 8; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (o *OtoOutput) Start() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.started && o.player != nil {
		o.player.Play()
		o.started = true
		if o.log != nil {
			o.log.Debug("oto output started")
		}
	}
	return nil
}

func (o *OtoOutput) Stop() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.started && o.player != nil {
		o.player.Pause()
		o.started = false
	}
}

func (o *OtoOutput) Close() error {
	o.Stop()
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			return &AudioError{Operation: "oto close", Err: err}
		}
		o.player = nil
	}
	return nil
}

func (o *OtoOutput) Name() string { return "oto" }

func (o *OtoOutput) IsStarted() bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.started
}
