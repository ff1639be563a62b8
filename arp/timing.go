package arp

import (
	"math/rand"
	"time"
)

// divisionMultipliers maps a division to its length in quarter notes.
// Triplet divisions run at 2/3 of their straight counterpart.
var divisionMultipliers = map[Division]float64{
	DivWhole:         4.0,
	DivHalf:          2.0,
	DivQuarter:       1.0,
	DivEighth:        0.5,
	DivSixteenth:     0.25,
	DivThirtySecond:  0.125,
	DivWholeT:        4.0 * 2 / 3,
	DivHalfT:         2.0 * 2 / 3,
	DivQuarterT:      1.0 * 2 / 3,
	DivEighthT:       0.5 * 2 / 3,
	DivSixteenthT:    0.25 * 2 / 3,
	DivThirtySecondT: 0.125 * 2 / 3,
}

// swingDepth is the fraction of a step shifted at 100% swing.
const swingDepth = 0.33

// minDelayMs floors the scheduled delay so swing and humanize can never
// vanish or negate a step.
const minDelayMs = 10.0

const minGate = 0.1

// Valid reports whether d names a known division.
func (d Division) Valid() bool {
	_, ok := divisionMultipliers[d]
	return ok
}

// StepDurationMs returns the straight duration of one step in milliseconds,
// before swing and humanize. Unknown divisions fall back to a quarter note.
func StepDurationMs(bpm float64, div Division) float64 {
	mult, ok := divisionMultipliers[div]
	if !ok {
		mult = 1.0
	}
	return 60000.0 / bpm * mult
}

// stepDelayMs turns a straight duration into the actual delay before the
// next step: swing shifts odd steps late and even steps early by the same
// amount, humanize adds a uniform jitter of ±humanizeMs/2, and the result
// never drops below minDelayMs.
func stepDelayMs(straight float64, stepIndex int, swingPercent, humanizeMs float64, rng *rand.Rand) float64 {
	swing := swingPercent / 100.0 * swingDepth * straight
	delay := straight
	if stepIndex%2 == 1 {
		delay += swing
	} else {
		delay -= swing
	}
	if humanizeMs > 0 {
		delay += (rng.Float64() - 0.5) * humanizeMs
	}
	if delay < minDelayMs {
		delay = minDelayMs
	}
	return delay
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func clampGate(gate float64) float64 {
	if gate < minGate {
		return minGate
	}
	if gate > 1.0 {
		return 1.0
	}
	return gate
}
