// music_source.go - common interfaces for music sources and players.

package main

// MusicSource is implemented by all stream decoders
// The softsynth device pulls canonical event triplets from it
type MusicSource interface {
	// StartPlayback rewinds to the start and seeds the initial tempo
	StartPlayback(loop bool)
	// CheckDone returns true once the cursor has consumed the stream
	CheckDone() bool
	// DoRestart performs the same rewind when a looping song wraps
	DoRestart()
	// MakeEvents fills dst with whole triplets covering at most
	// budgetMicros of musical time and returns the filled prefix
	MakeEvents(dst []uint32, budgetMicros int64) []uint32
	// Division returns ticks per quarter note
	Division() int
	// Tempo returns the current tempo in microseconds per quarter note
	Tempo() int
	// SetTempo is called by the device when it dispatches a tempo event
	SetTempo(usPerQuarter int)
	// IsValid reports whether the source decoded to a playable stream
	IsValid() bool
	// DurationMicros walks the full tempo map and returns total time
	DurationMicros() int64
}

// MusicPlayer is the playback control surface shared by the CLI, the
// terminal UI and the control API
type MusicPlayer interface {
	// Load loads a music file from the given path
	Load(path string) error
	// LoadData loads music data from a byte slice
	LoadData(data []byte) error
	// Play starts playback
	Play() error
	// Stop stops playback
	Stop()
	// IsPlaying returns true if currently playing
	IsPlaying() bool
	// DurationSeconds returns the duration in seconds (0 if unknown)
	DurationSeconds() float64
	// DurationText returns a formatted duration string (e.g., "3:45")
	DurationText() string
}

// sourceClock carries the timing state every source shares: the tick
// division, the running tempo and the remainder of the last budget
// conversion so that repeated MakeEvents calls never drop a microsecond.
type sourceClock struct {
	division     int
	tempo        int
	initialTempo int
	budgetRem    int64
	looping      bool
}

func (c *sourceClock) Division() int { return c.division }

func (c *sourceClock) Tempo() int {
	if c.tempo <= 0 {
		return DEFAULT_TEMPO
	}
	return c.tempo
}

func (c *sourceClock) SetTempo(usPerQuarter int) {
	if usPerQuarter > 0 {
		c.tempo = usPerQuarter
	}
}

// resetClock restores the initial tempo and clears the budget remainder.
func (c *sourceClock) resetClock() {
	c.tempo = c.initialTempo
	if c.tempo <= 0 {
		c.tempo = DEFAULT_TEMPO
	}
	c.budgetRem = 0
}

// ticksForBudget converts a microsecond budget to whole ticks using
// exact integer math. The truncated remainder is carried into the next
// call, so budgets a then b always cover the same span as one a+b.
func (c *sourceClock) ticksForBudget(budgetMicros int64) int64 {
	tempo := int64(c.Tempo())
	n := budgetMicros*int64(c.division) + c.budgetRem
	ticks := n / tempo
	c.budgetRem = n % tempo
	return ticks
}

// streamDurationMicros walks a full triplet stream, applying tempo
// events as it goes, and returns the total musical time.
func streamDurationMicros(words []uint32, division, initialTempo int) int64 {
	if division <= 0 {
		return 0
	}
	tempo := int64(initialTempo)
	if tempo <= 0 {
		tempo = DEFAULT_TEMPO
	}
	var total, rem int64
	for i := 0; i+2 < len(words); {
		delta := int64(words[i])
		w := words[i+2]
		i += 3
		n := delta*tempo + rem
		total += n / int64(division)
		rem = n % int64(division)
		switch MEventType(w) {
		case MEVENT_TEMPO:
			if parm := MEventParm(w); parm > 0 {
				tempo = int64(parm)
			}
		case MEVENT_LONGMSG:
			i += longPayloadWords(int(MEventParm(w)))
		}
	}
	return total
}
