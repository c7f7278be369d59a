// audio_backend_null.go - silent audio output for headless playback and tests.

package main

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const nullChunkFrames = 2048

// NullOutput consumes frames at wall-clock rate and discards them.
// Playback state, position and song-end behaviour all work as with a
// real output, which is what the headless builds and the test suite
// need.
type NullOutput struct {
	src        FrameSource
	log        *zap.Logger
	sampleRate int
	samples    []float32
	started    bool
	done       chan struct{}
	wg         sync.WaitGroup
	mutex      sync.Mutex
}

func NewNullOutput(sampleRate int, src FrameSource, log *zap.Logger) (*NullOutput, error) {
	return &NullOutput{
		src:        src,
		log:        log,
		sampleRate: sampleRate,
		samples:    make([]float32, nullChunkFrames*2),
	}, nil
}

func (no *NullOutput) Start() error {
	no.mutex.Lock()
	defer no.mutex.Unlock()

	if no.started {
		return nil
	}
	no.done = make(chan struct{})
	no.started = true
	no.wg.Add(1)
	go no.pump(no.done)
	return nil
}

func (no *NullOutput) pump(done chan struct{}) {
	defer no.wg.Done()
	interval := time.Duration(nullChunkFrames) * time.Second / time.Duration(no.sampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			no.src.ReadFrames(no.samples)
		}
	}
}

func (no *NullOutput) Stop() {
	no.mutex.Lock()
	if !no.started {
		no.mutex.Unlock()
		return
	}
	no.started = false
	close(no.done)
	no.mutex.Unlock()
	no.wg.Wait()
}

func (no *NullOutput) Close() error {
	no.Stop()
	return nil
}

func (no *NullOutput) Name() string { return "null" }
