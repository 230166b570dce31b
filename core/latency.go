package session

import (
	"sync"
	"time"
)

// LatencySnapshot is the per-turn latency bookkeeping. Advisory only; it
// never affects control flow.
type LatencySnapshot struct {
	// LastSpeechEnd is when the user's utterance was finalized.
	LastSpeechEnd time.Time
	// ResponseStart is when the backend announced audio_start.
	ResponseStart time.Time
	// TTFA is the backend-reported time to first audio. The backend is
	// authoritative: it can see its own generation pipeline.
	TTFA time.Duration
	// FirstUnitDecoded is when the first playable unit of the turn was
	// decoded locally.
	FirstUnitDecoded time.Time
	// EndToEnd is ready minus last speech end, filled when the turn
	// completes.
	EndToEnd time.Duration
}

// latencyTracker recomputes one snapshot per turn. The snapshot is
// discarded wholesale on the next final transcript.
type latencyTracker struct {
	mu       sync.Mutex
	snapshot LatencySnapshot
}

func newLatencyTracker() *latencyTracker {
	return &latencyTracker{}
}

// MarkSpeechEnd starts a new turn measurement, discarding the previous
// snapshot.
func (l *latencyTracker) MarkSpeechEnd(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshot = LatencySnapshot{LastSpeechEnd: t}
}

func (l *latencyTracker) MarkResponseStart(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshot.ResponseStart = t
}

func (l *latencyTracker) MarkFirstUnitDecoded(t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.snapshot.FirstUnitDecoded.IsZero() {
		l.snapshot.FirstUnitDecoded = t
	}
}

func (l *latencyTracker) RecordTTFA(millis float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshot.TTFA = time.Duration(millis * float64(time.Millisecond))
}

// CompleteTurn derives the end-to-end latency. Reports false when no
// speech-end timestamp exists for the current turn, which happens when
// ready arrives outside a measured turn.
func (l *latencyTracker) CompleteTurn(t time.Time) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.snapshot.LastSpeechEnd.IsZero() || l.snapshot.EndToEnd != 0 {
		return 0, false
	}
	l.snapshot.EndToEnd = t.Sub(l.snapshot.LastSpeechEnd)
	return l.snapshot.EndToEnd, true
}

func (l *latencyTracker) Snapshot() LatencySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot
}
