package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Event type bytes of the MIDS stream format.
const (
	eventShort = 0
	eventTempo = 1
	eventNop   = 2
)

// midsEvent is one stream record before encoding: a tick delta and the
// packed event word.
type midsEvent struct {
	delta uint32
	word  uint32
}

// Generator converts songs into RIFF MIDS containers.
type Generator struct {
	compact     bool
	blockEvents int
	eventCount  int
	blockCount  int
}

func NewGenerator() *Generator {
	return &Generator{blockEvents: 64}
}

// ConvertSMF flattens a standard MIDI file to a MIDS container. Tracks
// merge by absolute tick; channel messages and tempo changes survive,
// end-of-track markers become NOPs so trailing silence keeps its
// length, and everything else is dropped.
func (g *Generator) ConvertSMF(data []byte) ([]byte, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("smf read: %w", err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported smf time format %s", s.TimeFormat)
	}
	division := int(mt.Resolution())
	if division <= 0 {
		return nil, fmt.Errorf("smf division %d out of range", division)
	}

	type rawEvent struct {
		tick uint64
		msg  []byte
	}
	var evs []rawEvent
	for _, track := range s.Tracks {
		var abs uint64
		for _, ev := range track {
			abs += uint64(ev.Delta)
			evs = append(evs, rawEvent{tick: abs, msg: []byte(ev.Message)})
		}
	}
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].tick < evs[j].tick })

	var events []midsEvent
	var prev uint64
	for _, re := range evs {
		msg := re.msg
		if len(msg) == 0 {
			continue
		}
		var w uint32
		switch {
		case msg[0] == 0xFF && len(msg) >= 6 && msg[1] == 0x51 && msg[2] == 0x03:
			tempo := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
			if tempo == 0 {
				continue
			}
			w = uint32(eventTempo)<<24 | tempo&0xffffff
		case msg[0] == 0xFF && len(msg) >= 2 && msg[1] == 0x2F:
			w = uint32(eventNop) << 24
		case msg[0] >= 0x80 && msg[0] < 0xF0:
			var p1, p2 byte
			if len(msg) > 1 {
				p1 = msg[1]
			}
			if len(msg) > 2 {
				p2 = msg[2]
			}
			w = uint32(msg[0]) | uint32(p1)<<8 | uint32(p2)<<16
		default:
			continue
		}
		events = append(events, midsEvent{delta: uint32(re.tick - prev), word: w})
		prev = re.tick
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no convertible events")
	}
	return g.encode(division, events), nil
}

// GeneratePattern builds a small test song. Every pattern opens with
// its tempo event so players pick the tempo up from the stream.
func (g *Generator) GeneratePattern(name string, division, tempo int) ([]byte, error) {
	if division <= 0 {
		return nil, fmt.Errorf("division %d out of range", division)
	}
	if tempo <= 0 || tempo > 0xffffff {
		return nil, fmt.Errorf("tempo %d out of range", tempo)
	}
	events := []midsEvent{{0, uint32(eventTempo)<<24 | uint32(tempo)}}

	switch name {
	case "scale":
		notes := []byte{60, 62, 64, 65, 67, 69, 71, 72, 71, 69, 67, 65, 64, 62, 60}
		for _, n := range notes {
			events = append(events,
				midsEvent{0, shortWord(0x90, n, 100)},
				midsEvent{uint32(division), shortWord(0x80, n, 0)})
		}
	case "chords":
		triads := [][]byte{{60, 64, 67}, {65, 69, 72}, {67, 71, 74}, {60, 64, 67}}
		for _, t := range triads {
			for _, n := range t {
				events = append(events, midsEvent{0, shortWord(0x90, n, 90)})
			}
			for i, n := range t {
				delta := uint32(0)
				if i == 0 {
					delta = uint32(4 * division)
				}
				events = append(events, midsEvent{delta, shortWord(0x80, n, 0)})
			}
		}
	default:
		return nil, fmt.Errorf("unknown pattern %q (scale, chords)", name)
	}
	return g.encode(division, events), nil
}

func shortWord(status, p1, p2 byte) uint32 {
	return uint32(status) | uint32(p1)<<8 | uint32(p2)<<16
}

// encode lays out the RIFF MIDS container: the fmt chunk carries the
// division, the largest block size and the format flags; the data chunk
// carries the block count and the blocks themselves, each prefixed with
// its start tick and byte length.
func (g *Generator) encode(division int, events []midsEvent) []byte {
	recordWords := 3
	flags := uint32(0)
	if g.compact {
		recordWords = 2
		flags = 1
	}

	perBlock := g.blockEvents
	if perBlock <= 0 {
		perBlock = 64
	}
	var blocks [][]midsEvent
	for i := 0; i < len(events); i += perBlock {
		end := i + perBlock
		if end > len(events) {
			end = len(events)
		}
		blocks = append(blocks, events[i:end])
	}

	cbMaxBuffer := 0
	for _, b := range blocks {
		if cb := len(b) * recordWords * 4; cb > cbMaxBuffer {
			cbMaxBuffer = cb
		}
	}
	cbData := 4
	for _, b := range blocks {
		cbData += 8 + len(b)*recordWords*4
	}

	buf := new(bytes.Buffer)
	put := func(v uint32) {
		binary.Write(buf, binary.LittleEndian, v)
	}

	buf.WriteString("RIFF")
	put(uint32(4 + 8 + 12 + 8 + cbData))
	buf.WriteString("MIDS")
	buf.WriteString("fmt ")
	put(12)
	put(uint32(division))
	put(uint32(cbMaxBuffer))
	put(flags)
	buf.WriteString("data")
	put(uint32(cbData))
	put(uint32(len(blocks)))

	tick := uint64(0)
	for _, b := range blocks {
		put(uint32(tick))
		put(uint32(len(b) * recordWords * 4))
		for _, ev := range b {
			put(ev.delta)
			if !g.compact {
				put(0)
			}
			put(ev.word)
			tick += uint64(ev.delta)
		}
	}

	g.eventCount = len(events)
	g.blockCount = len(blocks)
	return buf.Bytes()
}
