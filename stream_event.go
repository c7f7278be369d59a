// stream_event.go - canonical timed event stream shared by all music sources.

package main

// The stream is a flat sequence of uint32 word triplets:
//
//	[delta ticks] [stream id, always 0] [event word]
//
// An event word carries a type byte in its high 8 bits and a 24-bit
// parameter below it. Short channel messages use type 0 with the raw
// status/data bytes packed into the parameter. A long message word is
// followed by its payload bytes packed four to a word, little-endian,
// and the next triplet starts on the following word boundary.
const (
	MEVENT_SHORTMSG = 0
	MEVENT_TEMPO    = 1
	MEVENT_NOP      = 2
	MEVENT_LONGMSG  = 128
)

// MIDI channel message status bytes, channel bits zeroed.
const (
	MIDI_NOTEOFF    = 0x80
	MIDI_NOTEON     = 0x90
	MIDI_POLYPRESS  = 0xA0
	MIDI_CTRLCHANGE = 0xB0
	MIDI_PRGMCHANGE = 0xC0
	MIDI_CHANPRESS  = 0xD0
	MIDI_PITCHBEND  = 0xE0
	MIDI_SYSEX      = 0xF0
	MIDI_META       = 0xFF
)

// DEFAULT_TEMPO is the MIDI default of 120 BPM in microseconds per
// quarter note, used until a stream supplies its own tempo.
const DEFAULT_TEMPO = 500000

func MEventType(w uint32) byte {
	return byte(w >> 24)
}

func MEventParm(w uint32) uint32 {
	return w & 0xffffff
}

func MakeMEvent(typ byte, parm uint32) uint32 {
	return uint32(typ)<<24 | parm&0xffffff
}

func MakeShortMEvent(status, p1, p2 byte) uint32 {
	return uint32(status) | uint32(p1)<<8 | uint32(p2)<<16
}

// longPayloadWords reports how many stream words a long-message payload
// of byteLen occupies.
func longPayloadWords(byteLen int) int {
	return (byteLen + 3) / 4
}

// appendLongPayload packs payload bytes into words, little-endian within
// each word, padding the final word with zeros.
func appendLongPayload(dst []uint32, payload []byte) []uint32 {
	for i := 0; i < len(payload); i += 4 {
		var w uint32
		for j := 0; j < 4 && i+j < len(payload); j++ {
			w |= uint32(payload[i+j]) << (8 * uint(j))
		}
		dst = append(dst, w)
	}
	return dst
}

// unpackLongPayload is the inverse of appendLongPayload. The destination
// controls the byte count; words must hold at least longPayloadWords(len(dst))
// entries.
func unpackLongPayload(dst []byte, words []uint32) {
	for i := range dst {
		dst[i] = byte(words[i/4] >> (8 * uint(i%4)))
	}
}

// StreamEvent is one decoded triplet. The playback path dispatches from
// raw words and never materialises these; they serve inspection tools
// and tests.
type StreamEvent struct {
	Delta  uint32
	Type   byte
	Status byte
	Parm1  byte
	Parm2  byte
	Tempo  uint32
	Data   []byte
}

// DecodeStream expands triplet words into StreamEvents. Truncated
// trailing words that cannot form a whole triplet are ignored, as is a
// long-message payload shorter than its declared length.
func DecodeStream(words []uint32) []StreamEvent {
	var out []StreamEvent
	for i := 0; i+2 < len(words); {
		ev := StreamEvent{Delta: words[i], Type: MEventType(words[i+2])}
		w := words[i+2]
		i += 3
		switch ev.Type {
		case MEVENT_SHORTMSG:
			ev.Status = byte(w)
			ev.Parm1 = byte(w >> 8)
			ev.Parm2 = byte(w >> 16)
		case MEVENT_TEMPO:
			ev.Tempo = MEventParm(w)
		case MEVENT_LONGMSG:
			n := int(MEventParm(w))
			nw := longPayloadWords(n)
			if i+nw > len(words) {
				return out
			}
			ev.Data = make([]byte, n)
			unpackLongPayload(ev.Data, words[i:i+nw])
			i += nw
		}
		out = append(out, ev)
	}
	return out
}
