// mids_parser.go - MIDS stream container parser.

package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// MIDS container layout, all fields little-endian. The header is a RIFF
// shell: "RIFF" at 0, form tag "MIDS" at 8, "fmt " chunk at 12 carrying
// the tick division at 20 and the format flags at 28, "data" chunk at 32
// with the block count at 40 and block records from 44. Each record is
// [start tick:4][byte length:4][payload]. Payloads hold event words; when
// the format flags are nonzero the stream-id word is omitted from every
// stored event.
const (
	midsHeaderSize   = 44
	midsDivisionOff  = 20
	midsFlagsOff     = 28
	midsNumBlocksOff = 40
)

type MIDSSong struct {
	sourceClock
	words       []uint32
	formatFlags uint32
	cursor      int
	maxPosition int
	tickBalance int64
	lostBytes   int
}

// midsDebugEnabled caches the VIREO_DEBUG environment variable at init time
var midsDebugEnabled = func() bool {
	value := strings.ToLower(os.Getenv("VIREO_DEBUG"))
	return value == "1" || value == "true" || value == "yes"
}()

func ParseMIDSFile(path string) (*MIDSSong, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMIDS(data), nil
}

// ParseMIDS decodes a MIDS container. It never fails: a malformed header
// yields an inert song whose CheckDone is immediately true and whose
// IsValid is false, so hostile input degrades to silence instead of an
// error path. Callers that need a hard failure check IsValid.
func ParseMIDS(data []byte) *MIDSSong {
	song := &MIDSSong{cursor: 0, maxPosition: -1}
	if len(data) < midsHeaderSize {
		return song
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "MIDS" {
		return song
	}
	if string(data[12:16]) != "fmt " {
		return song
	}
	song.division = int(binary.LittleEndian.Uint32(data[midsDivisionOff:]))
	song.formatFlags = binary.LittleEndian.Uint32(data[midsFlagsOff:])
	if string(data[32:36]) != "data" {
		return song
	}
	numBlocks := int(int32(binary.LittleEndian.Uint32(data[midsNumBlocksOff:])))

	blockData := data[midsHeaderSize:]
	for block := 0; block < numBlocks; block++ {
		if len(blockData) < 8 {
			song.lostBytes += len(blockData)
			break
		}
		byteLen := int(binary.LittleEndian.Uint32(blockData[4:]))
		payload := blockData[8:]
		if byteLen > len(payload) {
			song.lostBytes += byteLen - len(payload)
			byteLen = len(payload)
			blockData = nil
		} else {
			blockData = payload[byteLen:]
		}
		// Only whole words count; a ragged tail is dropped.
		wordLen := byteLen / 4
		song.lostBytes += byteLen - wordLen*4
		for i := 0; i < wordLen; i++ {
			song.words = append(song.words, binary.LittleEndian.Uint32(payload[i*4:]))
		}
	}
	song.maxPosition = len(song.words) - 1
	if midsDebugEnabled {
		fmt.Printf("[MIDS] division=%d flags=%#x blocks=%d words=%d lost=%d\n",
			song.division, song.formatFlags, numBlocks, len(song.words), song.lostBytes)
	}
	return song
}

func (s *MIDSSong) IsValid() bool {
	return s.division > 0 && s.maxPosition >= 0
}

// LostBytes reports payload bytes the parser had to drop: ragged block
// tails and declared lengths running past the end of the file.
func (s *MIDSSong) LostBytes() int {
	return s.lostBytes
}

func (s *MIDSSong) StartPlayback(loop bool) {
	s.looping = loop
	s.DoRestart()
}

// DoRestart rewinds the song and reseeds the tempo from the stream head.
func (s *MIDSSong) DoRestart() {
	s.cursor = 0
	s.tickBalance = 0
	s.resetClock()
	s.probeInitialTempo()
}

// probeInitialTempo checks whether the first stored event is a tempo
// event and applies it, so playback starts at the song's real tempo
// rather than the 120 BPM default.
func (s *MIDSSong) probeInitialTempo() {
	idx := 2
	if s.formatFlags != 0 {
		idx = 1
	}
	if idx >= len(s.words) {
		return
	}
	if MEventType(s.words[idx]) == MEVENT_TEMPO {
		s.SetTempo(int(MEventParm(s.words[idx])))
	}
}

func (s *MIDSSong) CheckDone() bool {
	return s.cursor >= s.maxPosition
}

// MakeEvents copies stored events into dst as full triplets, long
// payloads included, inserting a zero stream-id word when the container
// omitted them. The microsecond budget is converted to ticks and banked:
// an event is only emitted once enough budget has accumulated to cover
// its delta, so successive calls with budgets a and b always emit
// exactly the events of one a+b call. A long message too large for dst
// altogether becomes a NOP carrying its delta so the timeline survives.
func (s *MIDSSong) MakeEvents(dst []uint32, budgetMicros int64) []uint32 {
	s.tickBalance += s.ticksForBudget(budgetMicros)
	recordWords := 3
	if s.formatFlags != 0 {
		recordWords = 2
	}
	n := 0
	for n+3 <= len(dst) && s.cursor < s.maxPosition {
		if s.cursor+recordWords > len(s.words) {
			// Ragged tail that cannot form a whole event.
			s.cursor = len(s.words)
			break
		}
		delta := s.words[s.cursor]
		w := s.words[s.cursor+recordWords-1]
		payload := 0
		if MEventType(w) == MEVENT_LONGMSG {
			payload = longPayloadWords(int(MEventParm(w)))
			if s.cursor+recordWords+payload > len(s.words) {
				// Payload runs past the stream end.
				s.cursor = len(s.words)
				break
			}
		}
		if int64(delta) > s.tickBalance {
			break
		}
		if 3+payload > len(dst) {
			s.tickBalance -= int64(delta)
			dst[n] = delta
			dst[n+1] = 0
			dst[n+2] = MakeMEvent(MEVENT_NOP, 0)
			n += 3
			s.cursor += recordWords + payload
			continue
		}
		if n+3+payload > len(dst) {
			break
		}
		s.tickBalance -= int64(delta)
		dst[n] = delta
		s.cursor++
		if s.formatFlags != 0 {
			dst[n+1] = 0
		} else {
			dst[n+1] = s.words[s.cursor]
			s.cursor++
		}
		dst[n+2] = s.words[s.cursor]
		s.cursor++
		n += 3
		copy(dst[n:n+payload], s.words[s.cursor:s.cursor+payload])
		s.cursor += payload
		n += payload
	}
	return dst[:n]
}

func (s *MIDSSong) DurationMicros() int64 {
	if !s.IsValid() {
		return 0
	}
	tempo := s.initialTempo
	if tempo <= 0 {
		tempo = DEFAULT_TEMPO
	}
	// Duration walks the raw words directly since implicit-timing
	// streams store pairs rather than triplets.
	step := 3
	eventOff := 2
	if s.formatFlags != 0 {
		step = 2
		eventOff = 1
	}
	var total, rem int64
	t := int64(tempo)
	idx := 2
	if s.formatFlags != 0 {
		idx = 1
	}
	if idx < len(s.words) && MEventType(s.words[idx]) == MEVENT_TEMPO {
		if parm := MEventParm(s.words[idx]); parm > 0 {
			t = int64(parm)
		}
	}
	for i := 0; i+step-1 < len(s.words) && i < s.maxPosition; {
		n := int64(s.words[i])*t + rem
		total += n / int64(s.division)
		rem = n % int64(s.division)
		w := s.words[i+eventOff]
		i += step
		switch MEventType(w) {
		case MEVENT_TEMPO:
			if parm := MEventParm(w); parm > 0 {
				t = int64(parm)
			}
		case MEVENT_LONGMSG:
			i += longPayloadWords(int(MEventParm(w)))
		}
	}
	return total
}
