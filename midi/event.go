package midi

// MIDI status nibbles
const (
	NoteOn    uint8 = 0x90
	NoteOff   uint8 = 0x80
	CC        uint8 = 0xB0
	PitchBend uint8 = 0xE0
)

// Controller numbers used by the engine
const (
	CCSustain     uint8 = 64
	CCAllSoundOff uint8 = 120
	CCAllNotesOff uint8 = 123
)

// BendCenter is the 14-bit pitch bend rest position.
const BendCenter uint16 = 8192

// BendMax is the largest encodable 14-bit bend value.
const BendMax uint16 = 16383

// NoteVelocity is the fixed velocity for every note-on the engine emits.
const NoteVelocity uint8 = 100

// NoteOnBytes builds a note-on message on the given channel (0-15).
func NoteOnBytes(channel, note uint8) []byte {
	return []byte{NoteOn | (channel & 0x0F), note & 0x7F, NoteVelocity}
}

// NoteOffBytes builds a note-off message on the given channel (0-15).
func NoteOffBytes(channel, note uint8) []byte {
	return []byte{NoteOff | (channel & 0x0F), note & 0x7F, 0}
}

// PitchBendBytes splits a 14-bit bend value into LSB/MSB data bytes.
func PitchBendBytes(channel uint8, value uint16) []byte {
	if value > BendMax {
		value = BendMax
	}
	return []byte{PitchBend | (channel & 0x0F), uint8(value & 0x7F), uint8((value >> 7) & 0x7F)}
}

// CCBytes builds a control change message.
func CCBytes(channel, controller, value uint8) []byte {
	return []byte{CC | (channel & 0x0F), controller & 0x7F, value & 0x7F}
}

// MessageKind classifies an inbound message for subscribers.
type MessageKind int

const (
	KindIgnored MessageKind = iota
	KindSustain
	KindMasterBend
)

// Message is a decoded inbound MIDI message. Only the fields for its Kind
// are meaningful: Sustain for KindSustain, Semitones for KindMasterBend.
type Message struct {
	Kind      MessageKind
	Sustain   bool
	Semitones float64
}

// masterBendRange is the fixed semitone span of full-scale inbound bend.
const masterBendRange = 2.0

// ParseMessage decodes a raw inbound (status, data1, data2) triple.
//
// Sustain pedal (CC 64 on any channel) and master pitch bend (channel 0
// only) are the two messages the engine reacts to; everything else decodes
// as KindIgnored.
func ParseMessage(status, data1, data2 uint8) Message {
	switch status & 0xF0 {
	case CC:
		if data1 == CCSustain {
			return Message{Kind: KindSustain, Sustain: data2 >= 64}
		}
	case PitchBend:
		if status&0x0F != 0 {
			break
		}
		value := int(data2)<<7 + int(data1)
		normalized := float64(value-int(BendCenter)) / float64(BendCenter)
		return Message{Kind: KindMasterBend, Semitones: normalized * masterBendRange}
	}
	return Message{Kind: KindIgnored}
}
