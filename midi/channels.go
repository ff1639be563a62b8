package midi

import "sync"

// Sender delivers raw MIDI bytes to whatever transport is active.
type Sender func([]byte)

// Assignment records where a voice is currently sounding.
type Assignment struct {
	Channel uint8
	Note    int
}

// Allocator rotates voices across all 16 MIDI channels, MPE style, so each
// sounding note carries an independent pitch bend. Voices are keyed by an
// opaque id; releasing or rebending an unknown id is a no-op.
type Allocator struct {
	mu        sync.Mutex
	send      Sender
	baseFreq  float64
	bendRange float64
	cursor    uint8
	voices    map[string]Assignment
	byChannel map[uint8]string
}

// NewAllocator creates an allocator sending through send, encoding pitches
// against the given base frequency and bend range.
func NewAllocator(send Sender, baseFrequencyHz, bendRange float64) *Allocator {
	if send == nil {
		send = func([]byte) {}
	}
	return &Allocator{
		send:      send,
		baseFreq:  baseFrequencyHz,
		bendRange: bendRange,
		voices:    make(map[string]Assignment),
		byChannel: make(map[uint8]string),
	}
}

// SetTuning updates the base frequency and bend range used for new
// allocations and rebends. Already-sounding voices keep their anchors.
func (a *Allocator) SetTuning(baseFrequencyHz, bendRange float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.baseFreq = baseFrequencyHz
	a.bendRange = bendRange
}

// Allocate assigns the next channel in rotation to voiceID, sends the bend
// and note-on for ratio, and returns the assignment. Allocation always
// succeeds: if the rotation lands on a channel whose previous voice is still
// sounding, that voice is stolen with a forced note-off first. Re-allocating
// an id that is still sounding moves it, releasing its old assignment.
func (a *Allocator) Allocate(voiceID string, ratio float64) (channel uint8, note int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// A live id being re-allocated gives up its old slot first.
	if prev, live := a.voices[voiceID]; live {
		a.send(NoteOffBytes(prev.Channel, uint8(prev.Note)))
		delete(a.voices, voiceID)
		delete(a.byChannel, prev.Channel)
	}

	channel = a.cursor
	a.cursor = (a.cursor + 1) % 16

	if old, held := a.byChannel[channel]; held {
		prev := a.voices[old]
		a.send(NoteOffBytes(prev.Channel, uint8(prev.Note)))
		delete(a.voices, old)
		delete(a.byChannel, channel)
	}

	note, bend := EncodePitch(ratio, a.baseFreq, a.bendRange)
	a.voices[voiceID] = Assignment{Channel: channel, Note: note}
	a.byChannel[channel] = voiceID

	// Bend first so the note starts already in tune.
	a.send(PitchBendBytes(channel, bend))
	a.send(NoteOnBytes(channel, uint8(note)))
	return channel, note
}

// Release sends the note-off for voiceID and drops its assignment.
func (a *Allocator) Release(voiceID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	asn, ok := a.voices[voiceID]
	if !ok {
		return
	}
	a.send(NoteOffBytes(asn.Channel, uint8(asn.Note)))
	delete(a.voices, voiceID)
	delete(a.byChannel, asn.Channel)
}

// Rebend re-tunes a sounding voice to a new ratio without retriggering it.
// The stored note number stays as the anchor; only a bend is sent.
func (a *Allocator) Rebend(voiceID string, ratio float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	asn, ok := a.voices[voiceID]
	if !ok {
		return
	}
	bend := RebendPitch(ratio, a.baseFreq, asn.Note, a.bendRange)
	a.send(PitchBendBytes(asn.Channel, bend))
}

// Sustain broadcasts the sustain pedal state to all 16 channels so voices on
// rotated channels stay governed by a single pedal.
func (a *Allocator) Sustain(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var value uint8
	if on {
		value = 127
	}
	for ch := uint8(0); ch < 16; ch++ {
		a.send(CCBytes(ch, CCSustain, value))
	}
}

// Panic clears every assignment and silences all 16 channels: all notes off,
// all sound off, bend reset to center, sustain off. Safe to call repeatedly
// and with nothing sounding.
func (a *Allocator) Panic() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.voices = make(map[string]Assignment)
	a.byChannel = make(map[uint8]string)
	for ch := uint8(0); ch < 16; ch++ {
		a.send(CCBytes(ch, CCAllNotesOff, 0))
		a.send(CCBytes(ch, CCAllSoundOff, 0))
		a.send([]byte{PitchBend | ch, 0, 64})
		a.send(CCBytes(ch, CCSustain, 0))
	}
}

// Active returns a copy of the current channel occupancy (channel to note).
func (a *Allocator) Active() map[uint8]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[uint8]int, len(a.voices))
	for _, asn := range a.voices {
		out[asn.Channel] = asn.Note
	}
	return out
}
