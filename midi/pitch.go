package midi

import "math"

// EncodePitch maps a pitch ratio over a base frequency onto the nearest MIDI
// note number plus a 14-bit bend value covering the microtonal remainder.
// Ratios beyond the 0..127 note range pin to the nearest end, with the bend
// saturated toward the true pitch. bendRange is the semitone span of
// full-scale bend travel and must be > 0 (the config layer clamps it before
// it reaches here).
func EncodePitch(ratio, baseFrequencyHz, bendRange float64) (note int, bend uint16) {
	exact := exactMidi(ratio, baseFrequencyHz)
	note = int(math.Round(exact))
	if note < 0 {
		note = 0
	} else if note > 127 {
		note = 127
	}
	bend = bendValue(exact-float64(note), bendRange)
	return note, bend
}

// RebendPitch computes the bend value for a ratio against an already-assigned
// note number. Used when a sustained voice's pitch moves without a new
// note-on: the note anchor stays, only the bend travels.
func RebendPitch(ratio, baseFrequencyHz float64, anchorNote int, bendRange float64) uint16 {
	exact := exactMidi(ratio, baseFrequencyHz)
	return bendValue(exact-float64(anchorNote), bendRange)
}

func exactMidi(ratio, baseFrequencyHz float64) float64 {
	freq := baseFrequencyHz * ratio
	return 69 + 12*math.Log2(freq/440)
}

func bendValue(semitones, bendRange float64) uint16 {
	normalized := semitones / bendRange
	v := math.Round(float64(BendCenter) + normalized*float64(BendCenter))
	if v < 0 {
		return 0
	}
	if v > float64(BendMax) {
		return BendMax
	}
	return uint16(v)
}
