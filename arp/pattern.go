// Package arp is the arpeggiator core: a cooperative, self-rescheduling
// clock that replays a pattern of pitch ratios through a channel-rotating
// MIDI allocator and an external audio voice sink.
package arp

// Step is one recorded pitch event in a pattern. Steps are immutable once
// recorded; the recording surface that produces them lives outside this
// package.
type Step struct {
	VoiceRef string
	Ratio    float64
	Muted    bool
}

// Pattern is an ordered sequence of steps. Insertion order is musically
// meaningful: it is what the "order" direction plays.
type Pattern []Step

// Direction selects how the derived playback queue is ordered.
type Direction string

const (
	DirectionOrder  Direction = "order"
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionUpDown Direction = "up_down"
	DirectionRandom Direction = "random"
)

// Valid reports whether d names a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOrder, DirectionUp, DirectionDown, DirectionUpDown, DirectionRandom:
		return true
	}
	return false
}

// Division is a tempo-relative step length.
type Division string

const (
	DivWhole         Division = "1/1"
	DivHalf          Division = "1/2"
	DivQuarter       Division = "1/4"
	DivEighth        Division = "1/8"
	DivSixteenth     Division = "1/16"
	DivThirtySecond  Division = "1/32"
	DivWholeT        Division = "1/1t"
	DivHalfT         Division = "1/2t"
	DivQuarterT      Division = "1/4t"
	DivEighthT       Division = "1/8t"
	DivSixteenthT    Division = "1/16t"
	DivThirtySecondT Division = "1/32t"
)

// Config is the playback shape applied to a pattern. All fields are assumed
// pre-validated (the config package clamps them); the clock re-clamps only
// the gate fraction because an out-of-range gate would swallow note-offs.
type Config struct {
	Direction     Direction `json:"direction"`
	OctaveSpan    int       `json:"octaveSpan"`    // 1-4
	SwingPercent  float64   `json:"swingPercent"`  // 0-100
	Division      Division  `json:"division"`
	GateFraction  float64   `json:"gateFraction"`  // 0.1-1.0
	Probability   float64   `json:"probability"`   // 0-1
	HumanizeMs    float64   `json:"humanizeMs"`    // 0-100
	PatternLength int       `json:"patternLength"` // >= 1
}

// DefaultConfig is a sensible straight-eighths starting point.
func DefaultConfig() Config {
	return Config{
		Direction:     DirectionOrder,
		OctaveSpan:    1,
		SwingPercent:  0,
		Division:      DivEighth,
		GateFraction:  0.8,
		Probability:   1.0,
		HumanizeMs:    0,
		PatternLength: 64,
	}
}
