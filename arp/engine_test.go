package arp

import (
	"math"
	"sync"
	"testing"
	"time"

	"microarp/midi"
	"microarp/transport"
)

// fakeTransport records outbound bytes and lets tests drive the inbound
// callbacks by hand.
type fakeTransport struct {
	mu       sync.Mutex
	sent     [][]byte
	receive  transport.ReceiveFunc
	info     transport.InfoFunc
	selected string
}

func (f *fakeTransport) Name() string     { return "fake" }
func (f *fakeTransport) Initialize() bool { return true }
func (f *fakeTransport) Close() error     { return nil }

func (f *fakeTransport) EnumerateOutputs() []transport.Output {
	return []transport.Output{{ID: "fake", DisplayName: "Fake"}}
}

func (f *fakeTransport) SelectOutput(id string) {
	f.selected = id
}

func (f *fakeTransport) SendBytes(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), b...))
}

func (f *fakeTransport) SetReceiveCallback(fn transport.ReceiveFunc) {
	f.receive = fn
}

func (f *fakeTransport) SetTransportCallback(fn transport.InfoFunc) {
	f.info = fn
}

func (f *fakeTransport) sentCopy() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func newTestEngine() (*Engine, *fakeTransport) {
	tr := &fakeTransport{}
	settings := Settings{
		TempoBPM:        240,
		BaseFrequencyHz: 440,
		BendRange:       2,
		Clock:           quarterConfig(0.5),
	}
	return NewEngine(tr, nil, settings), tr
}

func drainEvents(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestEngineSustainBroadcasts(t *testing.T) {
	e, tr := newTestEngine()

	e.Sustain(true)

	sent := tr.sentCopy()
	if len(sent) != 16 {
		t.Fatalf("sent %d messages; want 16", len(sent))
	}
	for ch, msg := range sent {
		if msg[0] != midi.CC|uint8(ch) || msg[1] != midi.CCSustain || msg[2] != 127 {
			t.Errorf("channel %d message = %v", ch, msg)
		}
	}
	events := drainEvents(e.Events())
	if countKind(events, EventSustain) != 1 {
		t.Errorf("sustain events = %d; want 1", countKind(events, EventSustain))
	}
}

func TestEngineRoutesInboundSustain(t *testing.T) {
	e, tr := newTestEngine()

	// Pedal messages count on any channel.
	tr.receive(midi.CC|5, midi.CCSustain, 127)

	if len(tr.sentCopy()) != 16 {
		t.Fatalf("pedal on sent %d messages; want 16", len(tr.sentCopy()))
	}
	events := drainEvents(e.Events())
	if len(events) != 1 || events[0].Kind != EventSustain || !events[0].Sustain {
		t.Fatalf("events = %+v; want one sustain-on", events)
	}

	tr.receive(midi.CC, midi.CCSustain, 0)
	events = drainEvents(e.Events())
	if len(events) != 1 || events[0].Sustain {
		t.Fatalf("events = %+v; want one sustain-off", events)
	}
}

func TestEngineRoutesMasterBend(t *testing.T) {
	e, tr := newTestEngine()

	// Full-down wheel on channel 0.
	tr.receive(midi.PitchBend, 0x00, 0x00)

	if got := e.MasterBend(); math.Abs(got-(-2.0)) > 1e-9 {
		t.Errorf("master bend = %v; want -2", got)
	}
	events := drainEvents(e.Events())
	if len(events) != 1 || events[0].Kind != EventMasterBend {
		t.Fatalf("events = %+v; want one master bend", events)
	}

	// Other channels' wheels are not the master bend.
	tr.receive(midi.PitchBend|1, 0x7F, 0x7F)
	if got := e.MasterBend(); math.Abs(got-(-2.0)) > 1e-9 {
		t.Errorf("master bend moved to %v on a non-master channel", got)
	}
	if events := drainEvents(e.Events()); len(events) != 0 {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestEngineIgnoresUnrelatedInbound(t *testing.T) {
	e, tr := newTestEngine()

	tr.receive(midi.NoteOn, 60, 100)
	tr.receive(midi.CC, 1, 64)

	if events := drainEvents(e.Events()); len(events) != 0 {
		t.Errorf("unexpected events %+v", events)
	}
	if sent := tr.sentCopy(); len(sent) != 0 {
		t.Errorf("unexpected sends %v", sent)
	}
}

func TestEngineHostInfo(t *testing.T) {
	e, tr := newTestEngine()

	tr.info(transport.Info{Playing: true, BPM: 123.5, Position: 4.25})

	got := e.HostInfo()
	if !got.Playing || got.BPM != 123.5 || got.Position != 4.25 {
		t.Errorf("host info = %+v", got)
	}
	events := drainEvents(e.Events())
	if len(events) != 1 || events[0].Kind != EventTransport || !events[0].Info.Playing {
		t.Fatalf("events = %+v; want one transport event", events)
	}
}

func TestEngineEventChannelNeverBlocks(t *testing.T) {
	e, _ := newTestEngine()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			e.Sustain(i%2 == 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine blocked on a full event channel")
	}
	if got := len(drainEvents(e.Events())); got != 64 {
		t.Errorf("drained %d events; want the channel bound of 64", got)
	}
}

func TestEnginePlaysPatternThroughTransport(t *testing.T) {
	e, tr := newTestEngine()
	e.SetPattern(fourStepPattern())

	e.Start()
	time.Sleep(300 * time.Millisecond)
	e.Stop()

	noteOns := 0
	for _, msg := range tr.sentCopy() {
		if msg[0]&0xF0 == midi.NoteOn {
			noteOns++
		}
	}
	if noteOns < 1 {
		t.Errorf("no note-ons reached the transport")
	}
	if countKind(drainEvents(e.Events()), EventStep) < 1 {
		t.Errorf("no step events emitted")
	}
	if e.Running() {
		t.Errorf("engine still running after stop")
	}
}

func TestEngineSetTempoClamps(t *testing.T) {
	e, _ := newTestEngine()

	e.SetTempo(5)
	if got := e.Settings().TempoBPM; got != 20 {
		t.Errorf("tempo = %v; want 20", got)
	}
	e.SetTempo(2000)
	if got := e.Settings().TempoBPM; got != 999 {
		t.Errorf("tempo = %v; want 999", got)
	}
	e.SetTempo(140)
	if got := e.Settings().TempoBPM; got != 140 {
		t.Errorf("tempo = %v; want 140", got)
	}
}

func TestEnginePanicSweepsAllChannels(t *testing.T) {
	e, tr := newTestEngine()

	e.Panic()

	if got := len(tr.sentCopy()); got != 64 {
		t.Errorf("panic sent %d messages; want 64", got)
	}
	if got := len(e.ActiveVoices()); got != 0 {
		t.Errorf("active voices after panic = %d; want 0", got)
	}
}
