// softsynth_device.go - generic software synthesis MIDI device.

package main

import (
	"fmt"
	"math/bits"
	"sync"

	"go.uber.org/zap"
)

// DeviceState tracks the softsynth device lifecycle.
type DeviceState int

const (
	DeviceClosed DeviceState = iota
	DeviceOpen
	DeviceRunning
	DeviceStopped
)

func (s DeviceState) String() string {
	switch s {
	case DeviceClosed:
		return "closed"
	case DeviceOpen:
		return "open"
	case DeviceRunning:
		return "running"
	case DeviceStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// maxStreamEvents is the triplet capacity of one MakeEvents refill.
const maxStreamEvents = 128

// clampFrames bounds a single inter-event gap to keep the tick-to-frame
// conversion inside 64 bits on hostile deltas. Several hundred hours.
const clampFrames = int64(1) << 40

// SoftSynthDevice drives a synthesis backend from a music source. It
// renders PCM in chunks bounded by the distance to the next due event,
// dispatching events on exact frame boundaries computed with integer
// rational arithmetic, so playback timing is bit-reproducible for a
// given source, sample rate and backend.
//
// One goroutine pulls audio through ServiceStream; the mutex serialises
// it against the control surface, so Stop and Close are safe at any
// moment. The steady state allocates nothing: the event queue and the
// long-message scratch are sized once at construction.
type SoftSynthDevice struct {
	mu      sync.Mutex
	backend SynthBackend
	log     *zap.Logger

	state      DeviceState
	src        MusicSource
	loop       bool
	paused     bool
	sampleRate int
	masterGain float32

	channelVolumes [16]int

	evBuf []uint32
	queue []uint32
	evPos int
	long  []byte

	haveHead bool
	headDue  int64
	ended    bool

	frameClock    int64
	frameRem      int64
	budgetRem     int64
	pendingBudget int64
	framesDone    int64
}

func NewSoftSynthDevice(backend SynthBackend, sampleRate int, log *zap.Logger) (*SoftSynthDevice, error) {
	if backend == nil {
		return nil, &SynthError{Operation: "device creation", Details: "nil backend"}
	}
	if sampleRate <= 0 {
		return nil, &SynthError{
			Operation: "device creation",
			Details:   fmt.Sprintf("sample rate %d out of range", sampleRate),
		}
	}
	return &SoftSynthDevice{
		backend:    backend,
		log:        log,
		state:      DeviceClosed,
		sampleRate: sampleRate,
		masterGain: 1,
		evBuf:      make([]uint32, maxStreamEvents*3),
		long:       make([]byte, maxStreamEvents*3*4),
	}, nil
}

// Open readies the backend and the channel defaults. Only a closed
// device opens.
func (d *SoftSynthDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DeviceClosed {
		return &SynthError{Operation: "device open", Details: d.state.String(), Err: ErrBadState}
	}
	if err := d.backend.Open(); err != nil {
		return err
	}
	d.resetChannelDefaults()
	d.state = DeviceOpen
	return nil
}

// Play starts or replays a source. The device must be open or stopped,
// and the source must have decoded to a playable stream.
func (d *SoftSynthDevice) Play(src MusicSource, loop bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != DeviceOpen && d.state != DeviceStopped {
		return &SynthError{Operation: "device play", Details: d.state.String(), Err: ErrBadState}
	}
	if src == nil || !src.IsValid() {
		return &SynthError{Operation: "device play", Details: "source did not decode", Err: ErrInvalidSource}
	}
	if err := d.backend.Open(); err != nil {
		return err
	}
	src.StartPlayback(loop)
	d.src = src
	d.loop = loop
	d.paused = false
	d.resetChannelDefaults()
	d.queue = nil
	d.evPos = 0
	d.haveHead = false
	d.headDue = 0
	d.ended = false
	d.frameClock = 0
	d.frameRem = 0
	d.budgetRem = 0
	d.pendingBudget = 0
	d.framesDone = 0
	d.state = DeviceRunning
	return nil
}

// Stop halts playback. Safe and idempotent in any state.
func (d *SoftSynthDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DeviceRunning {
		d.state = DeviceStopped
		d.paused = false
	}
}

// SetPaused freezes or resumes the song clock. A paused device stays
// Running and renders silence without consuming musical time.
func (d *SoftSynthDevice) SetPaused(paused bool) {
	d.mu.Lock()
	d.paused = paused
	d.mu.Unlock()
}

func (d *SoftSynthDevice) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Close stops playback and releases the backend. Idempotent.
func (d *SoftSynthDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DeviceClosed {
		return nil
	}
	d.state = DeviceClosed
	d.src = nil
	return d.backend.Close()
}

func (d *SoftSynthDevice) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// PositionFrames reports frames rendered since Play.
func (d *SoftSynthDevice) PositionFrames() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.framesDone
}

func (d *SoftSynthDevice) SampleRate() int { return d.sampleRate }

// ChannelVolume returns the tracked controller 7 value for a channel.
func (d *SoftSynthDevice) ChannelVolume(ch int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch < 0 || ch >= len(d.channelVolumes) {
		return 0
	}
	return d.channelVolumes[ch]
}

// SetMasterGain scales all rendered output. Clamped to 0..4, 1 is unity.
func (d *SoftSynthDevice) SetMasterGain(gain float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gain < 0 {
		gain = 0
	}
	if gain > 4 {
		gain = 4
	}
	d.masterGain = gain
}

func (d *SoftSynthDevice) resetChannelDefaults() {
	for i := range d.channelVolumes {
		d.channelVolumes[i] = 100
	}
}

// ReadFrames implements FrameSource for the audio output backends.
func (d *SoftSynthDevice) ReadFrames(buf []float32) int {
	return d.ServiceStream(buf)
}

// ServiceStream fills buf with interleaved stereo samples and returns
// the frame count. A device that is not running renders silence, so the
// output backend's pull loop never has to special-case state changes.
func (d *SoftSynthDevice) ServiceStream(buf []float32) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	frames := len(buf) / 2
	if len(buf)&1 == 1 {
		buf[len(buf)-1] = 0
	}
	if d.state != DeviceRunning || d.src == nil || d.paused {
		clearSamples(buf)
		return frames
	}

	// Grant this call's span of musical time to the source exactly once;
	// refills inside the loop draw on the banked balance.
	d.pendingBudget = d.microsForFrames(frames)

	done := 0
	for done < frames {
		if !d.haveHead && !d.ended {
			d.pullNextEvent()
		}
		if d.ended {
			if d.loop {
				d.restartSong()
				continue
			}
			clearSamples(buf[done*2:])
			d.framesDone += int64(frames - done)
			d.state = DeviceStopped
			if d.log != nil {
				d.log.Info("song finished", zap.Int64("frames", d.framesDone))
			}
			return frames
		}
		if d.haveHead && d.frameClock >= d.headDue {
			d.dispatchHead()
			continue
		}
		span := frames - done
		if d.haveHead {
			if due := d.headDue - d.frameClock; due < int64(span) {
				span = int(due)
			}
		}
		chunk := buf[done*2 : (done+span)*2]
		d.backend.Render(chunk)
		applyGain(chunk, d.masterGain)
		d.frameClock += int64(span)
		d.framesDone += int64(span)
		done += span
	}
	return frames
}

// pullNextEvent establishes the frame distance to the next queued
// event, refilling the queue from the source when it runs dry. With the
// queue empty and the source done the stream has ended; with the queue
// empty and budget still banked the head stays unset and the caller
// renders out the window.
func (d *SoftSynthDevice) pullNextEvent() {
	for {
		if d.evPos+3 <= len(d.queue) {
			delta := d.queue[d.evPos]
			d.headDue = d.samplesForTicks(delta)
			d.haveHead = true
			return
		}
		if d.src.CheckDone() {
			d.ended = true
			return
		}
		budget := d.pendingBudget
		d.pendingBudget = 0
		d.queue = d.src.MakeEvents(d.evBuf, budget)
		d.evPos = 0
		if len(d.queue) < 3 {
			// Nothing due inside this window.
			return
		}
	}
}

// dispatchHead delivers the event at the queue head to the backend and
// rebases the frame clock on its boundary.
func (d *SoftSynthDevice) dispatchHead() {
	w := d.queue[d.evPos+2]
	d.evPos += 3
	d.frameClock -= d.headDue
	if d.frameClock < 0 {
		d.frameClock = 0
	}
	d.haveHead = false

	switch MEventType(w) {
	case MEVENT_TEMPO:
		if parm := int(MEventParm(w)); parm > 0 {
			d.src.SetTempo(parm)
		}
	case MEVENT_NOP:
	case MEVENT_LONGMSG:
		n := int(MEventParm(w))
		nw := longPayloadWords(n)
		if n > len(d.long) || d.evPos+nw > len(d.queue) {
			d.evPos += nw
			return
		}
		unpackLongPayload(d.long[:n], d.queue[d.evPos:d.evPos+nw])
		d.evPos += nw
		d.backend.HandleLongEvent(d.long[:n])
	case MEVENT_SHORTMSG:
		status := byte(w)
		parm1 := byte(w>>8) & 0x7F
		parm2 := byte(w>>16) & 0x7F
		if status&0xF0 == MIDI_CTRLCHANGE && parm1 == 7 {
			d.channelVolumes[status&0x0F] = int(parm2)
		}
		d.backend.HandleShortEvent(status, parm1, parm2)
	}
}

// restartSong wraps a looping song back to its start. The source
// reseeds its tempo and budget state; the device resets the channel
// defaults and its own clock carries.
func (d *SoftSynthDevice) restartSong() {
	d.src.DoRestart()
	d.resetChannelDefaults()
	d.queue = nil
	d.evPos = 0
	d.haveHead = false
	d.ended = false
	d.frameClock = 0
	d.frameRem = 0
	if d.log != nil {
		d.log.Debug("song restarted", zap.Int64("frames", d.framesDone))
	}
}

// samplesForTicks converts a tick delta to a frame count at the current
// tempo: frames = ticks * sampleRate * tempo / (division * 1e6), exact,
// with the remainder carried into the next conversion. The remainder's
// denominator does not involve the tempo, so the carry stays valid
// across tempo changes.
func (d *SoftSynthDevice) samplesForTicks(delta uint32) int64 {
	den := uint64(d.src.Division()) * 1_000_000
	rateTempo := uint64(d.sampleRate) * uint64(d.src.Tempo())
	hi, lo := bits.Mul64(uint64(delta), rateTempo)
	var carry uint64
	lo, carry = bits.Add64(lo, uint64(d.frameRem), 0)
	hi += carry
	if hi >= den {
		d.frameRem = 0
		return clampFrames
	}
	q, r := bits.Div64(hi, lo, den)
	d.frameRem = int64(r)
	if q > uint64(clampFrames) {
		return clampFrames
	}
	return int64(q)
}

// microsForFrames converts a frame count to microseconds with the same
// carry discipline, so budget grants across calls never drop time.
func (d *SoftSynthDevice) microsForFrames(frames int) int64 {
	n := int64(frames)*1_000_000 + d.budgetRem
	us := n / int64(d.sampleRate)
	d.budgetRem = n % int64(d.sampleRate)
	return us
}
