package midi

import (
	"math"
	"reflect"
	"testing"
)

func TestMessageBytes(t *testing.T) {
	cases := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"note on ch0", NoteOnBytes(0, 69), []byte{0x90, 69, 100}},
		{"note on ch15", NoteOnBytes(15, 60), []byte{0x9F, 60, 100}},
		{"note off", NoteOffBytes(3, 69), []byte{0x83, 69, 0}},
		{"bend center", PitchBendBytes(0, 8192), []byte{0xE0, 0x00, 0x40}},
		{"bend floor", PitchBendBytes(1, 0), []byte{0xE1, 0x00, 0x00}},
		{"bend ceiling", PitchBendBytes(2, 16383), []byte{0xE2, 0x7F, 0x7F}},
		{"sustain on", CCBytes(0, CCSustain, 127), []byte{0xB0, 64, 127}},
	}
	for _, c := range cases {
		if !reflect.DeepEqual(c.want, c.got) {
			t.Errorf("%s: got %v; want %v", c.name, c.got, c.want)
		}
	}
}

func TestParseMessage(t *testing.T) {
	cases := []struct {
		name                 string
		status, data1, data2 uint8
		want                 Message
	}{
		{"sustain on", 0xB0, 64, 127, Message{Kind: KindSustain, Sustain: true}},
		{"sustain threshold", 0xB0, 64, 64, Message{Kind: KindSustain, Sustain: true}},
		{"sustain off", 0xB0, 64, 0, Message{Kind: KindSustain, Sustain: false}},
		{"sustain other channel", 0xB5, 64, 127, Message{Kind: KindSustain, Sustain: true}},
		{"other controller", 0xB0, 1, 127, Message{Kind: KindIgnored}},
		{"bend wrong channel", 0xE1, 0x7F, 0x7F, Message{Kind: KindIgnored}},
		{"note on ignored", 0x90, 69, 100, Message{Kind: KindIgnored}},
	}
	for _, c := range cases {
		got := ParseMessage(c.status, c.data1, c.data2)
		if got != c.want {
			t.Errorf("%s: ParseMessage(%#x, %d, %d) = %+v; want %+v",
				c.name, c.status, c.data1, c.data2, got, c.want)
		}
	}
}

func TestParseMasterBend(t *testing.T) {
	cases := []struct {
		name         string
		data1, data2 uint8
		semitones    float64
	}{
		{"center", 0x00, 0x40, 0},
		{"full up", 0x7F, 0x7F, 2.0 * 8191 / 8192},
		{"full down", 0x00, 0x00, -2.0},
	}
	for _, c := range cases {
		got := ParseMessage(0xE0, c.data1, c.data2)
		if got.Kind != KindMasterBend {
			t.Fatalf("%s: kind = %v; want KindMasterBend", c.name, got.Kind)
		}
		if math.Abs(got.Semitones-c.semitones) > 1e-9 {
			t.Errorf("%s: semitones = %v; want %v", c.name, got.Semitones, c.semitones)
		}
	}
}
