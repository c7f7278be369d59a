// midi_player.go - Unified MIDI/MIDS playback controller.

package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// SongMetadata summarises a loaded song for status displays.
type SongMetadata struct {
	Path     string
	Format   string
	Division int
	Tempo    int
}

// StreamPlayer owns a softsynth device and an audio output, and maps
// container files onto the event-stream sources the device plays. It
// implements MusicPlayer.
type StreamPlayer struct {
	device *SoftSynthDevice
	output AudioOutput
	log    *zap.Logger

	mu   sync.Mutex
	src  MusicSource
	meta SongMetadata
	loop bool
}

func NewStreamPlayer(device *SoftSynthDevice, output AudioOutput, log *zap.Logger) *StreamPlayer {
	return &StreamPlayer{
		device: device,
		output: output,
		log:    log,
	}
}

// Load reads a song file and prepares it for playback. The format is
// detected from content, not the extension; the extension only breaks
// ties for formats without a magic.
func (p *StreamPlayer) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := p.LoadData(data); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	p.mu.Lock()
	p.meta.Path = path
	p.mu.Unlock()
	return nil
}

// loadMusicSource detects the container format by magic and decodes it
// to a playable source.
func loadMusicSource(data []byte) (MusicSource, string, error) {
	switch {
	case len(data) >= 4 && string(data[:4]) == "MThd":
		smf, err := ParseSMF(data)
		if err != nil {
			return nil, "", err
		}
		return smf, "smf", nil
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "MIDS":
		return ParseMIDS(data), "mids", nil
	}
	return nil, "", fmt.Errorf("unsupported song format")
}

// LoadData prepares an in-memory song for playback.
func (p *StreamPlayer) LoadData(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("song data empty")
	}
	src, format, err := loadMusicSource(data)
	if err != nil {
		return err
	}
	if !src.IsValid() {
		return fmt.Errorf("no playable events: %w", ErrInvalidSource)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.src = src
	p.meta = SongMetadata{
		Format:   format,
		Division: src.Division(),
		Tempo:    src.Tempo(),
	}
	if p.log != nil {
		p.log.Info("song loaded",
			zap.String("format", format),
			zap.Int("division", src.Division()))
		if m, ok := src.(*MIDSSong); ok && m.LostBytes() > 0 {
			p.log.Warn("song payload truncated", zap.Int("lost_bytes", m.LostBytes()))
		}
	}
	return nil
}

// SetLoop selects whether the next Play wraps at end of song.
func (p *StreamPlayer) SetLoop(loop bool) {
	p.mu.Lock()
	p.loop = loop
	p.mu.Unlock()
}

// Play starts the loaded song on the device and opens the output tap.
func (p *StreamPlayer) Play() error {
	p.mu.Lock()
	src := p.src
	loop := p.loop
	p.mu.Unlock()

	if src == nil {
		return fmt.Errorf("no song loaded")
	}
	if err := p.device.Play(src, loop); err != nil {
		return err
	}
	if p.output != nil {
		if err := p.output.Start(); err != nil {
			p.device.Stop()
			return err
		}
	}
	return nil
}

// Stop halts playback. The output keeps pulling silence so a following
// Play restarts without output renegotiation.
func (p *StreamPlayer) Stop() {
	p.device.Stop()
}

// Close tears down the device and the output.
func (p *StreamPlayer) Close() error {
	p.device.Stop()
	var firstErr error
	if p.output != nil {
		if err := p.output.Close(); err != nil {
			firstErr = err
		}
	}
	if err := p.device.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (p *StreamPlayer) IsPlaying() bool {
	return p.device.State() == DeviceRunning
}

func (p *StreamPlayer) Metadata() SongMetadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta
}

// SetMasterGain scales the rendered output.
func (p *StreamPlayer) SetMasterGain(gain float32) {
	p.device.SetMasterGain(gain)
}

// PositionSeconds reports the playback position in seconds.
func (p *StreamPlayer) PositionSeconds() float64 {
	return float64(p.device.PositionFrames()) / float64(p.device.SampleRate())
}

func (p *StreamPlayer) DurationSeconds() float64 {
	p.mu.Lock()
	src := p.src
	p.mu.Unlock()
	if src == nil {
		return 0
	}
	return float64(src.DurationMicros()) / 1e6
}

func (p *StreamPlayer) DurationText() string {
	return formatDuration(p.DurationSeconds())
}

func (p *StreamPlayer) PositionText() string {
	return formatDuration(p.PositionSeconds())
}

func formatDuration(secs float64) string {
	if secs <= 0 {
		return ""
	}
	mins := int(secs) / 60
	rem := int(math.Round(secs - float64(mins*60)))
	if rem == 60 {
		mins++
		rem = 0
	}
	return fmt.Sprintf("%d:%02d", mins, rem)
}
