package arp

import (
	"math/rand"
	"sort"
)

// queueEntry is one playable slot in the derived queue. The queue is
// recomputed from pattern and config on every tick so live edits land on the
// very next step; nothing here is ever persisted.
type queueEntry struct {
	voiceRef       string
	effectiveRatio float64
	originalIndex  int
	muted          bool
}

// deriveQueue expands the pattern across the octave span and orders it by
// direction. up_down concatenates the ascending pass with the descending
// pass, so a full traversal is twice the expanded length. random reshuffles
// on every call.
func deriveQueue(p Pattern, cfg Config, rng *rand.Rand) []queueEntry {
	if len(p) == 0 {
		return nil
	}

	span := cfg.OctaveSpan
	if span < 1 {
		span = 1
	}
	queue := make([]queueEntry, 0, len(p)*span)
	octave := 1.0
	for oct := 0; oct < span; oct++ {
		for i, s := range p {
			queue = append(queue, queueEntry{
				voiceRef:       s.VoiceRef,
				effectiveRatio: s.Ratio * octave,
				originalIndex:  i,
				muted:          s.Muted,
			})
		}
		octave *= 2
	}

	switch cfg.Direction {
	case DirectionUp:
		sortByRatio(queue, true)
	case DirectionDown:
		sortByRatio(queue, false)
	case DirectionUpDown:
		sortByRatio(queue, true)
		down := make([]queueEntry, len(queue))
		for i, e := range queue {
			down[len(queue)-1-i] = e
		}
		queue = append(queue, down...)
	case DirectionRandom:
		rng.Shuffle(len(queue), func(i, j int) {
			queue[i], queue[j] = queue[j], queue[i]
		})
	}
	return queue
}

func sortByRatio(queue []queueEntry, ascending bool) {
	sort.SliceStable(queue, func(i, j int) bool {
		if ascending {
			return queue[i].effectiveRatio < queue[j].effectiveRatio
		}
		return queue[i].effectiveRatio > queue[j].effectiveRatio
	})
}

// loopLength crops the queue to the configured pattern length.
func loopLength(queueLen, patternLength int) int {
	if patternLength >= 1 && patternLength < queueLen {
		return patternLength
	}
	return queueLen
}
