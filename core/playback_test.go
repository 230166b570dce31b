package session

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxcal/voxcal-core/core/audio"
)

type stubDecoder struct {
	fn func(frame []byte) ([]byte, error)
}

func (d stubDecoder) Decode(frame []byte) ([]byte, error) {
	if d.fn == nil {
		return frame, nil
	}
	return d.fn(frame)
}

// recordingSink records playback traffic. With autoMark set, marks fire
// as soon as they are registered so units play back to back; otherwise
// marks accumulate until fireNextMark, letting tests hold a unit
// "audible" for as long as they need.
type recordingSink struct {
	mu       sync.Mutex
	sent     [][]byte
	marks    []func(string)
	cleared  int
	autoMark bool
}

func (s *recordingSink) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, bytes.Clone(pcm))
	return nil
}

func (s *recordingSink) Mark(name string, callback func(string)) error {
	s.mu.Lock()
	auto := s.autoMark
	if !auto {
		s.marks = append(s.marks, callback)
	}
	s.mu.Unlock()

	if auto {
		callback(name)
	}
	return nil
}

func (s *recordingSink) ClearBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	s.marks = nil
}

func (s *recordingSink) EncodingInfo() audio.EncodingInfo {
	return audio.GetPlaybackEncodingInfo()
}

func (s *recordingSink) sentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

func (s *recordingSink) clearedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

func (s *recordingSink) fireNextMark() bool {
	s.mu.Lock()
	if len(s.marks) == 0 {
		s.mu.Unlock()
		return false
	}
	callback := s.marks[0]
	s.marks = s.marks[1:]
	s.mu.Unlock()

	callback("mark")
	return true
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func newTestEngine(decoder FrameDecoder, sink PlaybackSink) *playbackEngine {
	return newPlaybackEngine(decoder, newPlaybackOutput(sink))
}

func TestPlaybackPlaysFramesInArrivalOrder(t *testing.T) {
	sink := &recordingSink{autoMark: true}
	engine := newTestEngine(stubDecoder{}, sink)

	frames := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, frame := range frames {
		engine.Append(frame)
	}
	engine.FinishInput()

	waitFor(t, time.Second, func() bool { return len(sink.sentFrames()) == len(frames) })
	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })

	for i, sent := range sink.sentFrames() {
		if !bytes.Equal(sent, frames[i]) {
			t.Fatalf("frame %d played out of order: got %q, expected %q", i, sent, frames[i])
		}
	}
}

func TestPlaybackSkipsUndecodableFrames(t *testing.T) {
	decoder := stubDecoder{fn: func(frame []byte) ([]byte, error) {
		if bytes.Equal(frame, []byte("bad")) {
			return nil, errors.New("not a decodable unit")
		}
		return frame, nil
	}}
	sink := &recordingSink{autoMark: true}
	engine := newTestEngine(decoder, sink)

	engine.Append([]byte("good"))
	engine.Append([]byte("bad"))
	engine.Append([]byte("also good"))
	engine.FinishInput()

	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })

	sent := sink.sentFrames()
	if len(sent) != 2 {
		t.Fatalf("expected 2 played units, got %d", len(sent))
	}
	if !bytes.Equal(sent[0], []byte("good")) || !bytes.Equal(sent[1], []byte("also good")) {
		t.Fatalf("unexpected played units: %q", sent)
	}
}

func TestStopDiscardsQueuedAudioImmediately(t *testing.T) {
	sink := &recordingSink{}
	engine := newTestEngine(stubDecoder{}, sink)

	for range 5 {
		engine.Append([]byte("unit"))
	}
	// The first unit is now held "audible" by the unfired mark.
	waitFor(t, time.Second, func() bool { return len(sink.sentFrames()) == 1 })

	engine.Stop()

	if queued := engine.QueuedFrames(); queued != 0 {
		t.Fatalf("expected empty queue after stop, got %d frames", queued)
	}
	if sink.clearedCount() == 0 {
		t.Fatalf("expected sink buffer to be cleared on stop")
	}
	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })

	// Nothing further plays from the stopped turn.
	time.Sleep(20 * time.Millisecond)
	if sent := len(sink.sentFrames()); sent != 1 {
		t.Fatalf("expected no playback after stop, got %d units", sent)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	engine := newTestEngine(stubDecoder{}, &recordingSink{autoMark: true})

	engine.Append([]byte("unit"))
	engine.Stop()
	engine.Stop()
	engine.Stop()

	if queued := engine.QueuedFrames(); queued != 0 {
		t.Fatalf("expected empty queue, got %d frames", queued)
	}
}

func TestFramesAfterStopAreDropped(t *testing.T) {
	sink := &recordingSink{autoMark: true}
	engine := newTestEngine(stubDecoder{}, sink)

	engine.Stop()
	engine.Append([]byte("late"))

	if queued := engine.QueuedFrames(); queued != 0 {
		t.Fatalf("expected post-stop frame to be dropped, got %d queued", queued)
	}
	time.Sleep(20 * time.Millisecond)
	if sent := len(sink.sentFrames()); sent != 0 {
		t.Fatalf("expected nothing played after stop, got %d units", sent)
	}
}

func TestResetStartsFreshTurnAfterStop(t *testing.T) {
	sink := &recordingSink{autoMark: true}
	engine := newTestEngine(stubDecoder{}, sink)

	engine.Append([]byte("interrupted unit"))
	engine.Stop()
	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })

	engine.Reset()
	engine.Append([]byte("next turn"))
	engine.FinishInput()

	waitFor(t, time.Second, func() bool {
		sent := sink.sentFrames()
		return len(sent) > 0 && bytes.Equal(sent[len(sent)-1], []byte("next turn"))
	})
}

func TestResetWhileDrainingDropsPreviousTurn(t *testing.T) {
	sink := &recordingSink{}
	engine := newTestEngine(stubDecoder{}, sink)

	engine.Append([]byte("old turn"))
	waitFor(t, time.Second, func() bool { return len(sink.sentFrames()) == 1 })

	// The loop is suspended on the old turn's mark; Reset must force it
	// out and the new turn's frames must still play.
	engine.Reset()
	sink.mu.Lock()
	sink.autoMark = true
	sink.mu.Unlock()

	engine.Append([]byte("new turn"))
	engine.FinishInput()

	waitFor(t, time.Second, func() bool {
		sent := sink.sentFrames()
		return len(sent) == 2 && bytes.Equal(sent[1], []byte("new turn"))
	})
	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })
}

func TestFirstUnitCallbackFiresOncePerTurn(t *testing.T) {
	sink := &recordingSink{autoMark: true}
	engine := newTestEngine(stubDecoder{}, sink)

	var fired atomic.Int64
	engine.SetOnFirstUnit(func() { fired.Add(1) })

	engine.Append([]byte("one"))
	engine.Append([]byte("two"))
	engine.FinishInput()
	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })

	if got := fired.Load(); got != 1 {
		t.Fatalf("expected first-unit callback once, fired %d times", got)
	}

	engine.Reset()
	engine.Append([]byte("three"))
	engine.FinishInput()
	waitFor(t, time.Second, func() bool { return fired.Load() == 2 })
}

func TestMarkWaitUnblocksOnStop(t *testing.T) {
	sink := &recordingSink{}
	engine := newTestEngine(stubDecoder{}, sink)

	engine.Append([]byte("unit"))
	waitFor(t, time.Second, func() bool { return len(sink.sentFrames()) == 1 })

	done := make(chan struct{})
	go func() {
		engine.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("stop blocked behind an unfired mark")
	}
	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })
}

func TestSequentialMarksGateOneUnitAtATime(t *testing.T) {
	sink := &recordingSink{}
	engine := newTestEngine(stubDecoder{}, sink)

	engine.Append([]byte("a"))
	engine.Append([]byte("b"))
	engine.FinishInput()

	waitFor(t, time.Second, func() bool { return len(sink.sentFrames()) == 1 })
	time.Sleep(20 * time.Millisecond)
	if sent := len(sink.sentFrames()); sent != 1 {
		t.Fatalf("second unit played before the first finished: %d sent", sent)
	}

	if !sink.fireNextMark() {
		t.Fatalf("expected a pending mark for the first unit")
	}
	waitFor(t, time.Second, func() bool { return len(sink.sentFrames()) == 2 })

	if !sink.fireNextMark() {
		t.Fatalf("expected a pending mark for the second unit")
	}
	waitFor(t, time.Second, func() bool { return !engine.isLoopRunning() })
}
