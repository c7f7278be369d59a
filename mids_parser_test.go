// mids_parser_test.go - Tests for the MIDS container parser

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildMIDSFile assembles a MIDS container around the given block
// payloads. Block start ticks are arbitrary; the parser ignores them.
func buildMIDSFile(division, flags uint32, payloads ...[]byte) []byte {
	var data bytes.Buffer
	put := func(v uint32) {
		binary.Write(&data, binary.LittleEndian, v)
	}
	cbData := 4
	maxBuf := 0
	for _, p := range payloads {
		cbData += 8 + len(p)
		if len(p) > maxBuf {
			maxBuf = len(p)
		}
	}
	data.WriteString("RIFF")
	put(uint32(4 + 8 + 12 + 8 + cbData))
	data.WriteString("MIDS")
	data.WriteString("fmt ")
	put(12)
	put(division)
	put(uint32(maxBuf))
	put(flags)
	data.WriteString("data")
	put(uint32(cbData))
	put(uint32(len(payloads)))
	for i, p := range payloads {
		put(uint32(i * 1000))
		put(uint32(len(p)))
		data.Write(p)
	}
	return data.Bytes()
}

func wordBytes(words ...uint32) []byte {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

// testSongWords is a small full-form stream: tempo, chord on, chord off
// after a quarter, NOP, then a final note-off a quarter later.
func testSongWords() []uint32 {
	return []uint32{
		0, 0, MakeMEvent(MEVENT_TEMPO, 500000),
		0, 0, MakeShortMEvent(0x90, 60, 100),
		96, 0, MakeShortMEvent(0x80, 60, 0),
		0, 0, MakeMEvent(MEVENT_NOP, 0),
		96, 0, MakeShortMEvent(0x80, 64, 0),
	}
}

func TestParseMIDS_Valid(t *testing.T) {
	words := testSongWords()
	data := buildMIDSFile(96, 0, wordBytes(words[:6]...), wordBytes(words[6:]...))

	song := ParseMIDS(data)
	if !song.IsValid() {
		t.Fatal("IsValid() = false for well formed container")
	}
	if song.Division() != 96 {
		t.Errorf("Division() = %d, want 96", song.Division())
	}
	if song.LostBytes() != 0 {
		t.Errorf("LostBytes() = %d, want 0", song.LostBytes())
	}
	if len(song.words) != len(words) {
		t.Errorf("parsed %d words, want %d", len(song.words), len(words))
	}
	song.StartPlayback(false)
	if song.CheckDone() {
		t.Error("CheckDone() = true before any events consumed")
	}
}

func TestParseMIDS_FieldByteOrder(t *testing.T) {
	// Container assembled by hand, low byte first, so the expected
	// values do not come from the same encoder the parser reads with.
	le32 := func(v uint32) []byte {
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	}
	var data []byte
	data = append(data, "RIFF"...)
	data = append(data, le32(4+8+12+8+4+8+12)...)
	data = append(data, "MIDS"...)
	data = append(data, "fmt "...)
	data = append(data, le32(12)...)
	data = append(data, le32(0x00012345)...) // division
	data = append(data, le32(12)...)         // max buffer
	data = append(data, le32(0)...)          // flags
	data = append(data, "data"...)
	data = append(data, le32(4+8+12)...)
	data = append(data, le32(1)...) // block count
	data = append(data, le32(0)...) // block start tick
	data = append(data, le32(12)...)
	data = append(data, le32(7)...)
	data = append(data, le32(0)...)
	data = append(data, le32(0x0107A120)...) // tempo 500000

	song := ParseMIDS(data)
	if !song.IsValid() {
		t.Fatal("IsValid() = false")
	}
	if got := song.Division(); got != 0x12345 {
		t.Errorf("Division() = %#x, want 0x12345", got)
	}
	if song.words[0] != 7 || song.words[1] != 0 || song.words[2] != 0x0107A120 {
		t.Errorf("words = %#x, want [7 0 0x0107A120]", song.words)
	}
}

func TestParseMIDS_MalformedHeaders(t *testing.T) {
	valid := buildMIDSFile(96, 0, wordBytes(testSongWords()...))

	badFmt := append([]byte(nil), valid...)
	copy(badFmt[12:16], "junk")
	badData := append([]byte(nil), valid...)
	copy(badData[32:36], "junk")

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", valid[:43]},
		{"bad fmt tag", badFmt},
		{"bad data tag", badData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song := ParseMIDS(tt.data)
			if song.IsValid() {
				t.Error("IsValid() = true for malformed container")
			}
			if !song.CheckDone() {
				t.Error("CheckDone() = false, inert song must be done immediately")
			}
			song.StartPlayback(true)
			dst := make([]uint32, 48)
			if got := song.MakeEvents(dst, 1<<30); len(got) != 0 {
				t.Errorf("MakeEvents() emitted %d words from inert song", len(got))
			}
			if got := song.DurationMicros(); got != 0 {
				t.Errorf("DurationMicros() = %d, want 0", got)
			}
		})
	}
}

func TestParseMIDS_TruncatedBlock(t *testing.T) {
	data := buildMIDSFile(96, 0, wordBytes(0, 0, MakeShortMEvent(0x90, 60, 100), 96, 0))
	data = data[:len(data)-3]

	song := ParseMIDS(data)
	// 3 bytes missing from the declared length plus a 1-byte ragged word.
	if song.LostBytes() != 4 {
		t.Errorf("LostBytes() = %d, want 4", song.LostBytes())
	}
	if len(song.words) != 4 {
		t.Errorf("parsed %d words, want 4 whole words", len(song.words))
	}
}

func TestParseMIDS_RaggedBlockTail(t *testing.T) {
	payload := wordBytes(0, 0, MakeShortMEvent(0x90, 60, 100))
	payload = append(payload, 0xAA, 0xBB)
	data := buildMIDSFile(96, 0, payload)

	song := ParseMIDS(data)
	if song.LostBytes() != 2 {
		t.Errorf("LostBytes() = %d, want 2", song.LostBytes())
	}
	if len(song.words) != 3 {
		t.Errorf("parsed %d words, want 3", len(song.words))
	}
}

func TestParseMIDS_BlockCountPastEnd(t *testing.T) {
	data := buildMIDSFile(96, 0, wordBytes(testSongWords()...))
	// Claim more blocks than the file holds.
	binary.LittleEndian.PutUint32(data[midsNumBlocksOff:], 7)

	song := ParseMIDS(data)
	if len(song.words) != len(testSongWords()) {
		t.Errorf("parsed %d words, want %d", len(song.words), len(testSongWords()))
	}
	if !song.IsValid() {
		t.Error("IsValid() = false, existing blocks should still parse")
	}
}

func TestParseMIDSFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mids")
	if err := os.WriteFile(path, buildMIDSFile(96, 0, wordBytes(testSongWords()...)), 0644); err != nil {
		t.Fatal(err)
	}
	song, err := ParseMIDSFile(path)
	if err != nil {
		t.Fatalf("ParseMIDSFile: %v", err)
	}
	if !song.IsValid() {
		t.Error("IsValid() = false")
	}

	if _, err := ParseMIDSFile(filepath.Join(t.TempDir(), "missing.mids")); err == nil {
		t.Error("ParseMIDSFile on missing file should return error")
	}
}

func TestMIDSSong_ProbesInitialTempo(t *testing.T) {
	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(testSongWords()...)))
	song.StartPlayback(false)
	if got := song.Tempo(); got != 500000 {
		t.Errorf("Tempo() = %d, want 500000 from the stream head", got)
	}

	// No leading tempo event: the default stands.
	noTempo := ParseMIDS(buildMIDSFile(96, 0, wordBytes(0, 0, MakeShortMEvent(0x90, 60, 100))))
	noTempo.StartPlayback(false)
	if got := noTempo.Tempo(); got != DEFAULT_TEMPO {
		t.Errorf("Tempo() = %d, want default", got)
	}
}

func TestMIDSSong_ProbesInitialTempo_Compact(t *testing.T) {
	words := []uint32{
		0, MakeMEvent(MEVENT_TEMPO, 300000),
		96, MakeShortMEvent(0x80, 60, 0),
	}
	song := ParseMIDS(buildMIDSFile(96, 1, wordBytes(words...)))
	song.StartPlayback(false)
	if got := song.Tempo(); got != 300000 {
		t.Errorf("Tempo() = %d, want 300000", got)
	}
}

func TestMIDSSong_MakeEvents_BudgetGate(t *testing.T) {
	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(testSongWords()...)))
	song.StartPlayback(false)
	dst := make([]uint32, 48)

	// Zero budget still releases the delta-zero head events.
	got := song.MakeEvents(dst, 0)
	if len(got) != 6 {
		t.Fatalf("MakeEvents(0) = %d words, want 6 (tempo + note-on)", len(got))
	}
	if MEventType(got[2]) != MEVENT_TEMPO || MEventType(got[5]) != MEVENT_SHORTMSG {
		t.Errorf("unexpected head events %08X %08X", got[2], got[5])
	}

	// 95 of the 96 ticks needed: nothing crosses the gate.
	if got := song.MakeEvents(dst, 499999); len(got) != 0 {
		t.Errorf("MakeEvents(499999) = %d words, want 0", len(got))
	}

	// The banked remainder tops up: note-off and NOP cross together.
	got = song.MakeEvents(dst, 10000)
	if len(got) != 6 {
		t.Fatalf("MakeEvents(10000) = %d words, want 6", len(got))
	}
	if got[0] != 96 {
		t.Errorf("note-off delta = %d, want 96", got[0])
	}
	if song.CheckDone() {
		t.Error("CheckDone() = true with final event still pending")
	}

	got = song.MakeEvents(dst, 1<<30)
	if len(got) != 3 {
		t.Fatalf("MakeEvents(final) = %d words, want 3", len(got))
	}
	if !song.CheckDone() {
		t.Error("CheckDone() = false after the stream is drained")
	}
}

func TestMIDSSong_MakeEvents_MinimalSong(t *testing.T) {
	// One note pair at the default tempo: a budget of one quarter note
	// drains the whole stream in a single call.
	words := []uint32{
		0, 0, MakeShortMEvent(0x90, 60, 100),
		120, 0, MakeShortMEvent(0x80, 60, 0),
	}
	song := ParseMIDS(buildMIDSFile(120, 0, wordBytes(words...)))
	song.StartPlayback(false)

	dst := make([]uint32, 48)
	got := song.MakeEvents(dst, 500000)
	if len(got) != 6 {
		t.Fatalf("MakeEvents() = %d words, want the full pair", len(got))
	}
	if got[0] != 0 || byte(got[2]) != 0x90 || got[3] != 120 || byte(got[5]) != 0x80 {
		t.Errorf("triplets = %v, want note-on at 0 and note-off at 120", got)
	}
	if !song.CheckDone() {
		t.Error("CheckDone() = false after the whole block was consumed")
	}
}

func TestMIDSSong_MakeEvents_SmallBuffer(t *testing.T) {
	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(testSongWords()...)))
	song.StartPlayback(false)

	dst := make([]uint32, 4)
	got := song.MakeEvents(dst, 0)
	if len(got) != 3 {
		t.Errorf("MakeEvents() = %d words, a 4-word buffer holds one triplet", len(got))
	}
}

func TestMIDSSong_MakeEvents_CompactExpands(t *testing.T) {
	words := []uint32{
		0, MakeMEvent(MEVENT_TEMPO, 500000),
		0, MakeShortMEvent(0x90, 60, 100),
		96, MakeShortMEvent(0x80, 60, 0),
	}
	song := ParseMIDS(buildMIDSFile(96, 1, wordBytes(words...)))
	song.StartPlayback(false)

	dst := make([]uint32, 48)
	got := song.MakeEvents(dst, 0)
	if len(got) != 6 {
		t.Fatalf("MakeEvents() = %d words, want 6", len(got))
	}
	for i := 1; i < len(got); i += 3 {
		if got[i] != 0 {
			t.Errorf("triplet %d stream id = %d, want inserted 0", i/3, got[i])
		}
	}
	if got[2] != MakeMEvent(MEVENT_TEMPO, 500000) || got[5] != MakeShortMEvent(0x90, 60, 100) {
		t.Errorf("expanded events %08X %08X do not match stored pairs", got[2], got[5])
	}
}

func TestMIDSSong_MakeEvents_RaggedStoredTail(t *testing.T) {
	// A lone delta and stream id word cannot form an event.
	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(0, 0, MakeShortMEvent(0x90, 60, 100), 96, 0)))
	song.StartPlayback(false)

	dst := make([]uint32, 48)
	got := song.MakeEvents(dst, 1<<30)
	if len(got) != 3 {
		t.Errorf("MakeEvents() = %d words, want 3", len(got))
	}
	if !song.CheckDone() {
		t.Error("CheckDone() = false, ragged tail must end the stream")
	}
}

func TestMIDSSong_MakeEvents_LongMessage(t *testing.T) {
	sysex := []byte{0xF0, 0x7E, 0x09, 0x01, 0xF7}
	words := []uint32{
		0, 0, MakeMEvent(MEVENT_TEMPO, 500000),
		0, 0, MakeMEvent(MEVENT_LONGMSG, uint32(len(sysex))),
	}
	words = appendLongPayload(words, sysex)
	words = append(words, 96, 0, MakeShortMEvent(0x80, 60, 0))

	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(words...)))
	if got := song.DurationMicros(); got != 500000 {
		t.Errorf("DurationMicros() = %d, want 500000", got)
	}
	song.StartPlayback(false)

	dst := make([]uint32, 48)
	got := song.MakeEvents(dst, 1<<30)
	if len(got) != len(words) {
		t.Fatalf("MakeEvents() = %d words, want %d", len(got), len(words))
	}
	evs := DecodeStream(got)
	if len(evs) != 3 {
		t.Fatalf("decoded %d events, want 3", len(evs))
	}
	if !bytes.Equal(evs[1].Data, sysex) {
		t.Errorf("long payload = % X, want % X", evs[1].Data, sysex)
	}
	if evs[2].Delta != 96 || evs[2].Status != 0x80 {
		t.Errorf("event after payload = delta %d status %#x, want 96 0x80", evs[2].Delta, evs[2].Status)
	}

	// A buffer that can never hold the payload drops the message but
	// keeps its delta.
	song.DoRestart()
	small := make([]uint32, 4)
	got = song.MakeEvents(small, 0)
	if len(got) != 3 || MEventType(got[2]) != MEVENT_TEMPO {
		t.Fatalf("first small read = %d words", len(got))
	}
	got = song.MakeEvents(small, 0)
	if len(got) != 3 || MEventType(got[2]) != MEVENT_NOP {
		t.Errorf("oversized long message should become a NOP, got %d words", len(got))
	}
}

func TestMIDSSong_Restart(t *testing.T) {
	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(testSongWords()...)))
	song.StartPlayback(false)

	dst := make([]uint32, 48)
	for !song.CheckDone() {
		if len(song.MakeEvents(dst, 1<<30)) == 0 {
			t.Fatal("MakeEvents stalled before CheckDone")
		}
	}
	song.SetTempo(123456)

	song.DoRestart()
	if song.CheckDone() {
		t.Error("CheckDone() = true after restart")
	}
	if got := song.Tempo(); got != 500000 {
		t.Errorf("Tempo() = %d after restart, want 500000 reprobed from the head", got)
	}
	got := song.MakeEvents(dst, 0)
	if len(got) != 6 {
		t.Errorf("MakeEvents() = %d words after restart, want 6", len(got))
	}
}

func TestMIDSSong_DurationMicros(t *testing.T) {
	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(testSongWords()...)))
	if got := song.DurationMicros(); got != 1000000 {
		t.Errorf("DurationMicros() = %d, want 1000000", got)
	}

	compact := []uint32{
		0, MakeMEvent(MEVENT_TEMPO, 500000),
		96, MakeShortMEvent(0x80, 60, 0),
		96, MakeShortMEvent(0x80, 64, 0),
	}
	song2 := ParseMIDS(buildMIDSFile(96, 1, wordBytes(compact...)))
	if got := song2.DurationMicros(); got != 1000000 {
		t.Errorf("compact DurationMicros() = %d, want 1000000", got)
	}
}

func TestMIDSSong_DurationHonorsTempoChange(t *testing.T) {
	words := []uint32{
		0, 0, MakeMEvent(MEVENT_TEMPO, 500000),
		96, 0, MakeMEvent(MEVENT_TEMPO, 250000),
		96, 0, MakeShortMEvent(0x80, 60, 0),
	}
	song := ParseMIDS(buildMIDSFile(96, 0, wordBytes(words...)))
	if got := song.DurationMicros(); got != 750000 {
		t.Errorf("DurationMicros() = %d, want 750000", got)
	}
}
