// music_source_test.go - Tests for the shared source clock

package main

import (
	"testing"
)

func TestSourceClock_TempoDefault(t *testing.T) {
	c := &sourceClock{division: 96}
	if got := c.Tempo(); got != DEFAULT_TEMPO {
		t.Errorf("Tempo() = %d, want %d before any tempo event", got, DEFAULT_TEMPO)
	}
	c.SetTempo(250000)
	if got := c.Tempo(); got != 250000 {
		t.Errorf("Tempo() = %d, want 250000", got)
	}
	c.SetTempo(0)
	if got := c.Tempo(); got != 250000 {
		t.Errorf("Tempo() = %d, zero tempo must be ignored", got)
	}
	c.SetTempo(-1)
	if got := c.Tempo(); got != 250000 {
		t.Errorf("Tempo() = %d, negative tempo must be ignored", got)
	}
}

func TestSourceClock_ResetClock(t *testing.T) {
	c := &sourceClock{division: 96, initialTempo: 400000}
	c.SetTempo(123456)
	c.budgetRem = 77
	c.resetClock()
	if c.Tempo() != 400000 {
		t.Errorf("Tempo() after reset = %d, want 400000", c.Tempo())
	}
	if c.budgetRem != 0 {
		t.Errorf("budgetRem after reset = %d, want 0", c.budgetRem)
	}

	c2 := &sourceClock{division: 96}
	c2.SetTempo(123456)
	c2.resetClock()
	if c2.Tempo() != DEFAULT_TEMPO {
		t.Errorf("Tempo() after reset = %d, want default", c2.Tempo())
	}
}

func TestTicksForBudget_Exact(t *testing.T) {
	tests := []struct {
		name     string
		division int
		tempo    int
		budget   int64
		ticks    int64
	}{
		{"one quarter", 96, 500000, 500000, 96},
		{"two quarters", 480, 500000, 1000000, 960},
		{"half tick rounds down", 96, 500000, 2604, 0},
		{"just under a tick", 480, 500000, 1041, 0},
		{"just over a tick", 480, 500000, 1042, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &sourceClock{division: tt.division}
			c.SetTempo(tt.tempo)
			if got := c.ticksForBudget(tt.budget); got != tt.ticks {
				t.Errorf("ticksForBudget(%d) = %d, want %d", tt.budget, got, tt.ticks)
			}
		})
	}
}

// Splitting a budget across calls must never gain or lose ticks against
// granting it in one piece.
func TestTicksForBudget_SplitInvariant(t *testing.T) {
	budgets := []int64{1, 10, 333, 7, 10000, 999999, 23, 500000}

	var total int64
	split := &sourceClock{division: 480}
	split.SetTempo(479999)
	var splitTicks int64
	for _, b := range budgets {
		splitTicks += split.ticksForBudget(b)
		total += b
	}

	whole := &sourceClock{division: 480}
	whole.SetTempo(479999)
	wholeTicks := whole.ticksForBudget(total)

	if splitTicks != wholeTicks {
		t.Errorf("split calls = %d ticks, one call = %d ticks", splitTicks, wholeTicks)
	}
	if split.budgetRem != whole.budgetRem {
		t.Errorf("split remainder = %d, whole remainder = %d", split.budgetRem, whole.budgetRem)
	}
}

func TestStreamDurationMicros(t *testing.T) {
	tests := []struct {
		name     string
		division int
		tempo    int
		words    []uint32
		want     int64
	}{
		{
			"one quarter note",
			96, 500000,
			[]uint32{96, 0, MakeShortMEvent(0x80, 60, 0)},
			500000,
		},
		{
			"tempo change mid stream",
			96, 500000,
			[]uint32{
				96, 0, MakeMEvent(MEVENT_TEMPO, 250000),
				96, 0, MakeShortMEvent(0x80, 60, 0),
			},
			750000,
		},
		{
			"tempo zero ignored",
			96, 500000,
			[]uint32{
				96, 0, MakeMEvent(MEVENT_TEMPO, 0),
				96, 0, MakeShortMEvent(0x80, 60, 0),
			},
			1000000,
		},
		{
			"zero division",
			0, 500000,
			[]uint32{96, 0, MakeShortMEvent(0x80, 60, 0)},
			0,
		},
		{
			"default tempo when unset",
			96, 0,
			[]uint32{96, 0, MakeShortMEvent(0x80, 60, 0)},
			500000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := streamDurationMicros(tt.words, tt.division, tt.tempo); got != tt.want {
				t.Errorf("streamDurationMicros() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreamDurationMicros_SkipsLongPayload(t *testing.T) {
	sysex := []byte{0xF0, 0x7E, 0x09, 0x01, 0xF7}
	words := []uint32{0, 0, MakeMEvent(MEVENT_LONGMSG, uint32(len(sysex)))}
	words = appendLongPayload(words, sysex)
	words = append(words, 96, 0, MakeShortMEvent(0x80, 60, 0))

	if got := streamDurationMicros(words, 96, 500000); got != 500000 {
		t.Errorf("streamDurationMicros() = %d, want 500000 (payload words are not triplets)", got)
	}
}

// Fractional ticks accumulate without loss: 7 ticks at 10us per 7-tick
// quarter must come to exactly 10us.
func TestStreamDurationMicros_RemainderCarry(t *testing.T) {
	var words []uint32
	for i := 0; i < 7; i++ {
		words = append(words, 1, 0, MakeShortMEvent(0x90, 60, 100))
	}
	if got := streamDurationMicros(words, 7, 10); got != 10 {
		t.Errorf("streamDurationMicros() = %d, want 10", got)
	}
}
