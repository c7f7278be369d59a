//go:build !headless

// audio_backend_alsa.go - ALSA audio output implementation.

package main

/*
#cgo LDFLAGS: -lasound
#cgo CFLAGS: -Ofast -march=native -mtune=native -flto
#include <alsa/asoundlib.h>
#include <stdlib.h>

static snd_pcm_t* openPCM(const char* device, int* err) {
    snd_pcm_t* handle;
    *err = snd_pcm_open(&handle, device, SND_PCM_STREAM_PLAYBACK, 0);
    return handle;
}

static int setupPCM(snd_pcm_t* handle, unsigned int rate) {
    snd_pcm_hw_params_t* params;
    int err;

    snd_pcm_hw_params_alloca(&params);
    err = snd_pcm_hw_params_any(handle, params);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_access(handle, params, SND_PCM_ACCESS_RW_INTERLEAVED);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_format(handle, params, SND_PCM_FORMAT_FLOAT);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_channels(handle, params, 2);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_rate(handle, params, rate, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params(handle, params);
    if (err < 0) return err;

    return snd_pcm_prepare(handle);
}

static int writePCM(snd_pcm_t* handle, float* buffer, int frames) {
    return snd_pcm_writei(handle, buffer, frames);
}

static void closePCM(snd_pcm_t* handle) {
    if (handle != NULL) {
        snd_pcm_drain(handle);
        snd_pcm_close(handle);
    }
}
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

func init() {
	registerFeature("ALSA audio output")
}

const alsaChunkFrames = 1024

// ALSAOutput writes straight to ALSA. Unlike oto there is no library
// mixer goroutine, so the output runs its own pump that pulls from the
// frame source and blocks in snd_pcm_writei for pacing.
type ALSAOutput struct {
	handle  *C.snd_pcm_t
	src     FrameSource
	log     *zap.Logger
	samples []float32
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
	mutex   sync.Mutex
}

func NewALSAOutput(device string, sampleRate int, src FrameSource, log *zap.Logger) (*ALSAOutput, error) {
	if device == "" {
		device = "default"
	}
	cdev := C.CString(device)
	defer C.free(unsafe.Pointer(cdev))

	var cerr C.int
	handle := C.openPCM(cdev, &cerr)
	if cerr < 0 {
		return nil, &AudioError{
			Operation: "alsa open",
			Details:   fmt.Sprintf("%s: %s", device, C.GoString(C.snd_strerror(cerr))),
			Err:       ErrOutputUnavailable,
		}
	}

	if cerr = C.setupPCM(handle, C.uint(sampleRate)); cerr < 0 {
		C.closePCM(handle)
		return nil, &AudioError{
			Operation: "alsa setup",
			Details:   C.GoString(C.snd_strerror(cerr)),
			Err:       ErrOutputUnavailable,
		}
	}

	return &ALSAOutput{
		handle:  handle,
		src:     src,
		log:     log,
		samples: make([]float32, alsaChunkFrames*2),
	}, nil
}

func (ao *ALSAOutput) Start() error {
	ao.mutex.Lock()
	defer ao.mutex.Unlock()

	if ao.started || ao.handle == nil {
		return nil
	}
	ao.done = make(chan struct{})
	ao.started = true
	ao.wg.Add(1)
	go ao.pump(ao.done)
	return nil
}

func (ao *ALSAOutput) pump(done chan struct{}) {
	defer ao.wg.Done()
	for {
		select {
		case <-done:
			return
		default:
		}

		ao.src.ReadFrames(ao.samples)
		wrote := C.writePCM(ao.handle, (*C.float)(unsafe.Pointer(&ao.samples[0])), C.int(alsaChunkFrames))
		if wrote == -C.EPIPE {
			C.snd_pcm_prepare(ao.handle)
			wrote = C.writePCM(ao.handle, (*C.float)(unsafe.Pointer(&ao.samples[0])), C.int(alsaChunkFrames))
		}
		if wrote < 0 {
			if ao.log != nil {
				ao.log.Error("alsa write failed",
					zap.String("cause", C.GoString(C.snd_strerror(C.int(wrote)))))
			}
			return
		}
	}
}

func (ao *ALSAOutput) Stop() {
	ao.mutex.Lock()
	if !ao.started {
		ao.mutex.Unlock()
		return
	}
	ao.started = false
	close(ao.done)
	ao.mutex.Unlock()
	ao.wg.Wait()
}

func (ao *ALSAOutput) Close() error {
	ao.Stop()
	ao.mutex.Lock()
	defer ao.mutex.Unlock()

	if ao.handle != nil {
		C.closePCM(ao.handle)
		ao.handle = nil
	}
	return nil
}

func (ao *ALSAOutput) Name() string { return "alsa" }

func (ao *ALSAOutput) IsStarted() bool {
	ao.mutex.Lock()
	defer ao.mutex.Unlock()
	return ao.started
}
