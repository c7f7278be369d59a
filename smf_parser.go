// smf_parser.go - Standard MIDI File decoding to the canonical stream.

package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// SMFSong flattens a multi-track Standard MIDI File into one canonical
// triplet stream. Channel messages become short-message words, tempo
// metas become tempo words, sysex becomes long-message records and each
// end-of-track marker becomes a NOP so trailing silence keeps its length.
// All other meta events are dropped; their time folds into the next
// emitted event because deltas are recomputed from absolute ticks.
type SMFSong struct {
	sourceClock
	words       []uint32
	cursor      int
	maxPosition int
	tickBalance int64
	numTracks   int
}

func ParseSMFFile(path string) (*SMFSong, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSMF(data)
}

// ParseSMF decodes a Standard MIDI File. Unlike the MIDS decoder this is
// strict: unreadable files and SMPTE time division are errors.
func ParseSMF(data []byte) (*SMFSong, error) {
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("smf read: %w", err)
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported smf time format %s", s.TimeFormat)
	}

	song := &SMFSong{numTracks: len(s.Tracks)}
	song.division = int(mt.Resolution())
	if song.division <= 0 {
		return nil, fmt.Errorf("smf division %d out of range", song.division)
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
	// Stable sort keeps track order for simultaneous events, so the
	// flattened stream is deterministic for a given file.
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].tick < evs[j].tick })

	var prev uint64
	for _, re := range evs {
		msg := re.msg
		if len(msg) == 0 {
			continue
		}
		var w uint32
		var long []byte
		switch {
		case msg[0] == 0xFF:
			switch {
			case len(msg) >= 6 && msg[1] == 0x51 && msg[2] == 0x03:
				tempo := uint32(msg[3])<<16 | uint32(msg[4])<<8 | uint32(msg[5])
				if tempo == 0 {
					continue
				}
				w = MakeMEvent(MEVENT_TEMPO, tempo)
				if re.tick == 0 && song.initialTempo == 0 {
					song.initialTempo = int(tempo)
				}
			case len(msg) >= 2 && msg[1] == 0x2F:
				w = MakeMEvent(MEVENT_NOP, 0)
			default:
				continue
			}
		case msg[0] == 0xF0 || msg[0] == 0xF7:
			w = MakeMEvent(MEVENT_LONGMSG, uint32(len(msg)))
			long = msg
		case msg[0] >= 0x80 && msg[0] < 0xF0:
			var p1, p2 byte
			if len(msg) > 1 {
				p1 = msg[1]
			}
			if len(msg) > 2 {
				p2 = msg[2]
			}
			w = MakeShortMEvent(msg[0], p1, p2)
		default:
			continue
		}
		song.words = append(song.words, uint32(re.tick-prev), 0, w)
		prev = re.tick
		if long != nil {
			song.words = appendLongPayload(song.words, long)
		}
	}
	song.maxPosition = len(song.words) - 1
	return song, nil
}

func (s *SMFSong) IsValid() bool {
	return s.division > 0 && s.maxPosition >= 0
}

func (s *SMFSong) NumTracks() int {
	return s.numTracks
}

func (s *SMFSong) StartPlayback(loop bool) {
	s.looping = loop
	s.DoRestart()
}

func (s *SMFSong) DoRestart() {
	s.cursor = 0
	s.tickBalance = 0
	s.resetClock()
}

func (s *SMFSong) CheckDone() bool {
	return s.cursor >= s.maxPosition
}

// MakeEvents copies whole records, long payloads included, under the
// same banked tick budget the MIDS source uses. A sysex too large for
// dst altogether is replaced by a NOP carrying its delta so the
// timeline survives.
func (s *SMFSong) MakeEvents(dst []uint32, budgetMicros int64) []uint32 {
	s.tickBalance += s.ticksForBudget(budgetMicros)
	n := 0
	for n+3 <= len(dst) && s.cursor < s.maxPosition {
		if s.cursor+3 > len(s.words) {
			s.cursor = len(s.words)
			break
		}
		delta := s.words[s.cursor]
		w := s.words[s.cursor+2]
		record := 3
		if MEventType(w) == MEVENT_LONGMSG {
			record += longPayloadWords(int(MEventParm(w)))
		}
		if s.cursor+record > len(s.words) {
			s.cursor = len(s.words)
			break
		}
		if int64(delta) > s.tickBalance {
			break
		}
		if record > len(dst) {
			s.tickBalance -= int64(delta)
			dst[n] = delta
			dst[n+1] = 0
			dst[n+2] = MakeMEvent(MEVENT_NOP, 0)
			n += 3
			s.cursor += record
			continue
		}
		if n+record > len(dst) {
			break
		}
		s.tickBalance -= int64(delta)
		copy(dst[n:n+record], s.words[s.cursor:s.cursor+record])
		n += record
		s.cursor += record
	}
	return dst[:n]
}

func (s *SMFSong) DurationMicros() int64 {
	if !s.IsValid() {
		return 0
	}
	return streamDurationMicros(s.words, s.division, s.initialTempo)
}
