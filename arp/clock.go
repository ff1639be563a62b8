package arp

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"microarp/debug"
)

// VoiceSink starts and stops audio voices. The audio engine itself lives
// outside this module; tests substitute a recorder.
type VoiceSink interface {
	StartVoice(id string, ratio, baseFrequencyHz float64)
	StopVoice(id string)
}

// NoteOutput is the MIDI side of a triggered voice. *midi.Allocator
// satisfies it.
type NoteOutput interface {
	Allocate(voiceID string, ratio float64) (channel uint8, note int)
	Release(voiceID string)
}

// Snapshot is the per-tick view of the live settings. The provider is
// queried exactly once per tick, so edits always land on the next step and
// a tick never sees a half-updated mix.
type Snapshot struct {
	Config          Config
	TempoBPM        float64
	BaseFrequencyHz float64
}

// SnapshotFunc supplies the current settings to each tick.
type SnapshotFunc func() Snapshot

// Clock is the arpeggiator scheduler. It is either Idle (no timers pending)
// or Running (exactly one scheduled tick pending); each tick derives the
// playback queue, triggers at most one voice, and schedules its successor.
//
// Every outside call is serialized under one mutex, and pending timers carry
// the generation they were armed in: Stop and Start bump the generation, so
// a timer that lost the race fires into a stale generation and does nothing.
type Clock struct {
	mu       sync.Mutex
	snapshot SnapshotFunc
	out      NoteOutput
	sink     VoiceSink
	onStep   func(originalIndex int)
	rng      *rand.Rand

	pattern    Pattern
	running    bool
	stepIndex  int
	lastVoice  string
	voiceSeq   uint64
	generation uint64
	tickTimer  *time.Timer
	gateTimer  *time.Timer
}

// NewClock creates an idle clock. snapshot must be non-nil; out, sink and
// onStep may be nil when that side is not wired (tests, probe tools).
func NewClock(snapshot SnapshotFunc, out NoteOutput, sink VoiceSink, onStep func(int)) *Clock {
	return &Clock{
		snapshot: snapshot,
		out:      out,
		sink:     sink,
		onStep:   onStep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins playback from step 0. An empty pattern stops the clock
// instead: there is nothing to schedule. Calling Start while running
// restarts from the top.
func (c *Clock) Start(pattern Pattern) {
	c.mu.Lock()
	c.generation++
	c.cancelTimersLocked()
	c.releaseVoiceLocked()
	c.stepIndex = 0
	if len(pattern) == 0 {
		c.running = false
		c.mu.Unlock()
		return
	}
	c.pattern = append(Pattern(nil), pattern...)
	c.running = true
	gen := c.generation
	c.mu.Unlock()

	debug.Log("clock", "start: %d steps", len(pattern))
	c.tick(gen)
}

// Stop cancels the pending tick and gate timers, releases the sounding
// voice, and returns to Idle. Safe to call from Idle.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.cancelTimersLocked()
	c.releaseVoiceLocked()
	c.stepIndex = 0
	c.running = false
}

// SetPattern replaces the pattern the next tick will derive from.
func (c *Clock) SetPattern(pattern Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pattern = append(Pattern(nil), pattern...)
}

// Running reports whether a tick is scheduled.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// StepIndex returns the index of the next step to play.
func (c *Clock) StepIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepIndex
}

// tick runs one derive, trigger, schedule cycle. It runs to completion under
// the clock mutex; the only suspension between ticks is the armed timer.
func (c *Clock) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || !c.running {
		return
	}

	snap := c.snapshot()
	cfg := snap.Config

	queue := deriveQueue(c.pattern, cfg, c.rng)
	if len(queue) == 0 {
		// Pattern cleared mid-playback: nothing left to schedule. The
		// generation stays valid so a pending gate timer can still
		// release the final voice.
		debug.Log("clock", "empty queue, auto-stop")
		c.running = false
		return
	}

	entry := queue[c.stepIndex%loopLength(len(queue), cfg.PatternLength)]

	// The clock never owns two sounding voices: the previous one goes
	// before the next begins.
	c.releaseVoiceLocked()

	straight := StepDurationMs(snap.TempoBPM, cfg.Division)

	if !entry.muted && c.rng.Float64() < cfg.Probability {
		c.voiceSeq++
		id := fmt.Sprintf("arp-%d", c.voiceSeq)
		c.lastVoice = id
		if c.sink != nil {
			c.sink.StartVoice(id, entry.effectiveRatio, snap.BaseFrequencyHz)
		}
		if c.out != nil {
			c.out.Allocate(id, entry.effectiveRatio)
		}
		gateDelay := msToDuration(straight * clampGate(cfg.GateFraction))
		c.gateTimer = time.AfterFunc(gateDelay, func() {
			c.gateOff(gen, id)
		})
	}

	// A skipped or muted step still holds its slot and still pulses the
	// observer, so UI feedback keeps the cadence.
	if c.onStep != nil {
		c.onStep(entry.originalIndex)
	}

	delay := stepDelayMs(straight, c.stepIndex, cfg.SwingPercent, cfg.HumanizeMs, c.rng)
	c.stepIndex++
	c.tickTimer = time.AfterFunc(msToDuration(delay), func() {
		c.tick(gen)
	})
}

// gateOff ends a voice early, at the gate fraction of its step. By the time
// it fires the voice may already have been displaced by the next tick or by
// Stop; both leave it nothing to do.
func (c *Clock) gateOff(gen uint64, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.lastVoice != id {
		return
	}
	c.releaseVoiceLocked()
}

func (c *Clock) releaseVoiceLocked() {
	if c.gateTimer != nil {
		c.gateTimer.Stop()
		c.gateTimer = nil
	}
	if c.lastVoice == "" {
		return
	}
	if c.sink != nil {
		c.sink.StopVoice(c.lastVoice)
	}
	if c.out != nil {
		c.out.Release(c.lastVoice)
	}
	c.lastVoice = ""
}

func (c *Clock) cancelTimersLocked() {
	if c.tickTimer != nil {
		c.tickTimer.Stop()
		c.tickTimer = nil
	}
	if c.gateTimer != nil {
		c.gateTimer.Stop()
		c.gateTimer = nil
	}
}
