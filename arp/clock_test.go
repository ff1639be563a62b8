package arp

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

type outputCall struct {
	kind string
	id   string
	at   time.Time
}

// recordingOutput stands in for the channel allocator.
type recordingOutput struct {
	mu    sync.Mutex
	calls []outputCall
}

func (r *recordingOutput) Allocate(voiceID string, ratio float64) (uint8, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, outputCall{"allocate", voiceID, time.Now()})
	return 0, 69
}

func (r *recordingOutput) Release(voiceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, outputCall{"release", voiceID, time.Now()})
}

func (r *recordingOutput) snapshot() []outputCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outputCall(nil), r.calls...)
}

func (r *recordingOutput) count(kind string) int {
	n := 0
	for _, c := range r.snapshot() {
		if c.kind == kind {
			n++
		}
	}
	return n
}

// recordingSink stands in for the audio engine.
type recordingSink struct {
	mu     sync.Mutex
	starts []float64
	base   float64
	stops  int
}

func (r *recordingSink) StartVoice(id string, ratio, baseFrequencyHz float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, ratio)
	r.base = baseFrequencyHz
}

func (r *recordingSink) StopVoice(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *recordingSink) ratios() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.starts...)
}

type stepRecorder struct {
	mu      sync.Mutex
	indices []int
}

func (s *stepRecorder) record(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indices = append(s.indices, i)
}

func (s *stepRecorder) snapshot() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.indices...)
}

func fixedSnapshot(cfg Config, bpm float64) SnapshotFunc {
	return func() Snapshot {
		return Snapshot{Config: cfg, TempoBPM: bpm, BaseFrequencyHz: 440}
	}
}

func quarterConfig(gate float64) Config {
	return Config{
		Direction:     DirectionUp,
		OctaveSpan:    1,
		Division:      DivQuarter,
		GateFraction:  gate,
		Probability:   1.0,
		PatternLength: 64,
	}
}

func TestClockPlaysEveryStepOnce(t *testing.T) {
	out := &recordingOutput{}
	sink := &recordingSink{}
	steps := &stepRecorder{}
	cfg := quarterConfig(0.5)
	cfg.PatternLength = 4
	// 240 bpm quarters: a step every 250ms, gate off after 125ms.
	c := NewClock(fixedSnapshot(cfg, 240), out, sink, steps.record)

	c.Start(fourStepPattern())
	time.Sleep(860 * time.Millisecond)
	c.Stop()

	if got := out.count("allocate"); got != 4 {
		t.Fatalf("allocations = %d; want 4", got)
	}
	if got := out.count("release"); got != 4 {
		t.Errorf("releases = %d; want 4", got)
	}
	seen := map[string]bool{}
	for _, call := range out.snapshot() {
		if call.kind == "allocate" {
			if seen[call.id] {
				t.Errorf("voice id %q allocated twice", call.id)
			}
			seen[call.id] = true
		}
	}
	if want := []float64{1.0, 1.25, 1.5, 2.0}; !reflect.DeepEqual(sink.ratios(), want) {
		t.Errorf("sink ratios = %v; want %v", sink.ratios(), want)
	}
	if sink.base != 440 {
		t.Errorf("sink base frequency = %v; want 440", sink.base)
	}
	// Ascending order visits the pattern's 1.25 entry (index 2) second.
	if want := []int{0, 2, 1, 3}; !reflect.DeepEqual(steps.snapshot(), want) {
		t.Errorf("step indices = %v; want %v", steps.snapshot(), want)
	}

	// The cancelled tick never fires.
	before := len(out.snapshot())
	time.Sleep(400 * time.Millisecond)
	if after := len(out.snapshot()); after != before {
		t.Errorf("calls after stop grew from %d to %d", before, after)
	}
}

func TestClockGateReleasesAtGateFraction(t *testing.T) {
	out := &recordingOutput{}
	cfg := quarterConfig(0.8)
	cfg.PatternLength = 4
	// 240 bpm quarters: a step every 250ms, gate off 200ms after each onset.
	c := NewClock(fixedSnapshot(cfg, 240), out, nil, nil)

	c.Start(fourStepPattern())
	time.Sleep(1080 * time.Millisecond)
	c.Stop()

	calls := out.snapshot()
	onsets := map[string]time.Time{}
	last := ""
	for _, call := range calls {
		if call.kind == "allocate" {
			onsets[call.id] = call.at
			last = call.id
		}
	}
	if len(onsets) < 4 {
		t.Fatalf("allocations = %d; want at least 4", len(onsets))
	}

	timed := 0
	for _, call := range calls {
		if call.kind != "release" {
			continue
		}
		if call.id == last {
			// Stop force-releases the newest voice whatever its gate.
			continue
		}
		onset, ok := onsets[call.id]
		if !ok {
			t.Fatalf("release of %q without an onset", call.id)
		}
		held := call.at.Sub(onset)
		if held < 180*time.Millisecond || held > 245*time.Millisecond {
			t.Errorf("voice %q held for %v; want about 200ms", call.id, held)
		}
		timed++
	}
	if timed < 3 {
		t.Fatalf("gate-timed releases = %d; want at least 3", timed)
	}
}

func TestClockProbabilityZeroStillPulsesObserver(t *testing.T) {
	out := &recordingOutput{}
	sink := &recordingSink{}
	steps := &stepRecorder{}
	cfg := quarterConfig(0.5)
	cfg.Probability = 0
	c := NewClock(fixedSnapshot(cfg, 240), out, sink, steps.record)

	c.Start(fourStepPattern())
	time.Sleep(600 * time.Millisecond)
	c.Stop()

	if got := out.count("allocate"); got != 0 {
		t.Errorf("allocations = %d; want 0", got)
	}
	if got := len(sink.ratios()); got != 0 {
		t.Errorf("sink starts = %d; want 0", got)
	}
	if got := len(steps.snapshot()); got < 2 {
		t.Errorf("step events = %d; want at least 2", got)
	}
	if c.Running() {
		t.Errorf("clock still running after stop")
	}
}

func TestClockStopSilencesImmediately(t *testing.T) {
	out := &recordingOutput{}
	sink := &recordingSink{}
	// Gate 1.0 holds the voice for the whole step.
	c := NewClock(fixedSnapshot(quarterConfig(1.0), 240), out, sink, nil)

	c.Start(fourStepPattern())
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	if got := out.count("allocate"); got != 1 {
		t.Fatalf("allocations = %d; want 1", got)
	}
	if got := out.count("release"); got != 1 {
		t.Errorf("releases after stop = %d; want 1", got)
	}
	before := len(out.snapshot())
	time.Sleep(500 * time.Millisecond)
	if after := len(out.snapshot()); after != before {
		t.Errorf("calls after stop grew from %d to %d", before, after)
	}
	if c.Running() {
		t.Errorf("clock reports running after stop")
	}
}

func TestClockEmptyPatternStaysIdle(t *testing.T) {
	out := &recordingOutput{}
	c := NewClock(fixedSnapshot(quarterConfig(0.5), 240), out, nil, nil)

	c.Start(Pattern{})

	if c.Running() {
		t.Errorf("clock running after starting empty pattern")
	}
	if got := len(out.snapshot()); got != 0 {
		t.Errorf("calls = %d; want 0", got)
	}
	if got := c.StepIndex(); got != 0 {
		t.Errorf("step index = %d; want 0", got)
	}
}

func TestClockAutoStopsWhenPatternCleared(t *testing.T) {
	out := &recordingOutput{}
	c := NewClock(fixedSnapshot(quarterConfig(0.5), 240), out, nil, nil)

	c.Start(fourStepPattern())
	time.Sleep(120 * time.Millisecond)
	c.SetPattern(Pattern{})
	time.Sleep(300 * time.Millisecond)

	if c.Running() {
		t.Errorf("clock still running after pattern cleared")
	}
	if got := out.count("allocate"); got != 1 {
		t.Errorf("allocations = %d; want 1", got)
	}
	if got := out.count("release"); got != 1 {
		t.Errorf("releases = %d; want 1", got)
	}
}

func TestClockRestartBeginsAtStepZero(t *testing.T) {
	steps := &stepRecorder{}
	// 200 bpm quarters: a step every 300ms.
	c := NewClock(fixedSnapshot(quarterConfig(0.5), 200), &recordingOutput{}, nil, steps.record)

	c.Start(fourStepPattern())
	time.Sleep(450 * time.Millisecond)
	c.Start(fourStepPattern())
	c.Stop()

	if want := []int{0, 2, 0}; !reflect.DeepEqual(steps.snapshot(), want) {
		t.Errorf("step indices = %v; want %v", steps.snapshot(), want)
	}
}

func TestClockNeverOverlapsVoices(t *testing.T) {
	out := &recordingOutput{}
	// Gate 1.0 makes the gate timer race the next tick on purpose.
	cfg := quarterConfig(1.0)
	// 600 bpm quarters: a step every 100ms.
	c := NewClock(fixedSnapshot(cfg, 600), out, nil, nil)

	c.Start(fourStepPattern())
	time.Sleep(550 * time.Millisecond)
	c.Stop()

	active := 0
	for i, call := range out.snapshot() {
		switch call.kind {
		case "allocate":
			active++
		case "release":
			active--
		}
		if active > 1 {
			t.Fatalf("call %d: %d voices sounding at once", i, active)
		}
		if active < 0 {
			t.Fatalf("call %d: release without a matching allocate", i)
		}
	}
}
