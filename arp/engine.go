package arp

import (
	"sync"

	"microarp/debug"
	"microarp/midi"
	"microarp/transport"
)

// EventKind tags an engine event.
type EventKind int

const (
	EventStep EventKind = iota
	EventSustain
	EventMasterBend
	EventTransport
)

// Event is one observer notification. Only the fields for its Kind are
// meaningful.
type Event struct {
	Kind      EventKind
	StepIndex int            // EventStep: original pattern index
	Sustain   bool           // EventSustain
	Semitones float64        // EventMasterBend
	Info      transport.Info // EventTransport
}

// Settings is the live tunable state of an engine.
type Settings struct {
	TempoBPM        float64
	BaseFrequencyHz float64
	BendRange       float64
	Clock           Config
}

// Engine wires the clock, the channel allocator, and a transport into one
// constructible instance. Observers subscribe to a bounded event channel
// instead of registering callbacks; when nobody drains it, events are
// dropped rather than ever blocking the scheduler.
type Engine struct {
	mu       sync.Mutex
	settings Settings
	pattern  Pattern
	sustain  bool
	bend     float64
	hostInfo transport.Info

	tr     transport.Transport
	alloc  *midi.Allocator
	clock  *Clock
	events chan Event
}

// NewEngine builds an engine on the given transport and audio sink. sink may
// be nil when no audio collaborator is attached.
func NewEngine(tr transport.Transport, sink VoiceSink, settings Settings) *Engine {
	e := &Engine{
		settings: settings,
		tr:       tr,
		events:   make(chan Event, 64),
	}
	e.alloc = midi.NewAllocator(tr.SendBytes, settings.BaseFrequencyHz, settings.BendRange)
	e.clock = NewClock(e.snapshot, e.alloc, sink, e.onStep)
	tr.SetReceiveCallback(e.onReceive)
	tr.SetTransportCallback(e.onTransportInfo)
	return e
}

// Events is the engine's observer channel. Reads are optional; the channel
// is bounded and the engine never blocks on it.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Start plays the current pattern from the top.
func (e *Engine) Start() {
	e.mu.Lock()
	pattern := append(Pattern(nil), e.pattern...)
	e.mu.Unlock()
	e.clock.Start(pattern)
}

// Stop halts playback and releases the sounding voice.
func (e *Engine) Stop() {
	e.clock.Stop()
}

// Running reports playback state.
func (e *Engine) Running() bool {
	return e.clock.Running()
}

// StepIndex returns the next step's index.
func (e *Engine) StepIndex() int {
	return e.clock.StepIndex()
}

// SetPattern swaps the pattern; the running clock picks it up next tick.
func (e *Engine) SetPattern(p Pattern) {
	e.mu.Lock()
	e.pattern = append(Pattern(nil), p...)
	e.mu.Unlock()
	e.clock.SetPattern(p)
}

// Settings returns the current live settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SetTempo updates the tempo; the next tick uses it.
func (e *Engine) SetTempo(bpm float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bpm < 20 {
		bpm = 20
	}
	if bpm > 999 {
		bpm = 999
	}
	e.settings.TempoBPM = bpm
}

// SetClockConfig updates the playback shape; the next tick uses it.
func (e *Engine) SetClockConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings.Clock = cfg
}

// SetTuning updates the base frequency and bend range for new allocations.
func (e *Engine) SetTuning(baseFrequencyHz, bendRange float64) {
	e.mu.Lock()
	e.settings.BaseFrequencyHz = baseFrequencyHz
	e.settings.BendRange = bendRange
	e.mu.Unlock()
	e.alloc.SetTuning(baseFrequencyHz, bendRange)
}

// Sustain drives the pedal from the engine side (feet and UIs both end up
// here) and mirrors it to observers.
func (e *Engine) Sustain(on bool) {
	e.mu.Lock()
	e.sustain = on
	e.mu.Unlock()
	e.alloc.Sustain(on)
	e.emit(Event{Kind: EventSustain, Sustain: on})
}

// Panic silences all 16 channels and clears every assignment.
func (e *Engine) Panic() {
	e.alloc.Panic()
}

// ActiveVoices returns the allocator's channel occupancy for display.
func (e *Engine) ActiveVoices() map[uint8]int {
	return e.alloc.Active()
}

// BackendName names the frozen transport backend.
func (e *Engine) BackendName() string {
	return e.tr.Name()
}

// HostInfo returns the last transport state a bridge pushed in.
func (e *Engine) HostInfo() transport.Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hostInfo
}

// MasterBend returns the last inbound master bend in semitones.
func (e *Engine) MasterBend() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bend
}

// snapshot feeds the clock; one consistent read per tick.
func (e *Engine) snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Config:          e.settings.Clock,
		TempoBPM:        e.settings.TempoBPM,
		BaseFrequencyHz: e.settings.BaseFrequencyHz,
	}
}

func (e *Engine) onStep(originalIndex int) {
	e.emit(Event{Kind: EventStep, StepIndex: originalIndex})
}

// onReceive handles raw inbound MIDI from the transport goroutine.
func (e *Engine) onReceive(status, data1, data2 byte) {
	msg := midi.ParseMessage(status, data1, data2)
	switch msg.Kind {
	case midi.KindSustain:
		e.mu.Lock()
		e.sustain = msg.Sustain
		e.mu.Unlock()
		e.alloc.Sustain(msg.Sustain)
		e.emit(Event{Kind: EventSustain, Sustain: msg.Sustain})
	case midi.KindMasterBend:
		e.mu.Lock()
		e.bend = msg.Semitones
		e.mu.Unlock()
		e.emit(Event{Kind: EventMasterBend, Semitones: msg.Semitones})
	}
}

func (e *Engine) onTransportInfo(info transport.Info) {
	e.mu.Lock()
	e.hostInfo = info
	e.mu.Unlock()
	e.emit(Event{Kind: EventTransport, Info: info})
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		debug.LogEvery(100, "engine", "event dropped, consumer lagging")
	}
}
