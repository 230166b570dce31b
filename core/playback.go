package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// idlePollInterval bounds how long the playback loop sleeps when the
// queue is empty but more frames may still arrive. The producer signal
// normally wakes the loop immediately; the timer is the backstop.
const idlePollInterval = 100 * time.Millisecond

// FrameDecoder converts one inbound frame into a playable PCM unit.
// Frames that are not self-contained decodable units must error; the
// playback loop skips them and keeps going.
type FrameDecoder interface {
	Decode(frame []byte) ([]byte, error)
}

// playbackEngine drains inbound audio frames through one continuous
// decode-and-play loop.
//
// Frames are queued in arrival order and played one at a time: the loop
// decodes the head frame, hands the PCM to the sink, and suspends on a
// position mark until that unit has audibly finished. The loop starts
// lazily on the first frame of a turn and exits once the queue is empty
// and the input-done flag (set by audio_complete) is up.
//
// The queue has exactly two actors: the frame-arrival handler appends,
// the loop removes. Both go through mu; the buffered signal channel wakes
// the loop on appends so the empty-queue wait is notify-based rather than
// a pure poll.
type playbackEngine struct {
	mu sync.Mutex

	frames      [][]byte
	inputDone   bool
	stopped     bool
	loopRunning bool
	// stopCh belongs to the current turn; Stop closes it to yank the loop
	// out of an in-flight mark wait.
	stopCh chan struct{}

	firstUnitDecoded bool

	updateSignal chan struct{}

	decoder FrameDecoder
	output  *playbackOutput

	// onFirstUnit fires when the first unit of a turn decodes; latency
	// bookkeeping only.
	onFirstUnit func()
}

func newPlaybackEngine(decoder FrameDecoder, output *playbackOutput) *playbackEngine {
	return &playbackEngine{
		decoder:      decoder,
		output:       output,
		stopCh:       make(chan struct{}),
		updateSignal: make(chan struct{}, 1),
		onFirstUnit:  func() {},
	}
}

func (e *playbackEngine) SetOnFirstUnit(onFirstUnit func()) {
	if e == nil {
		return
	}

	if onFirstUnit != nil {
		e.onFirstUnit = onFirstUnit
	}
}

// Append enqueues one frame and starts the loop if it is not running.
// Frames arriving after a stop are discarded until the next Reset.
func (e *playbackEngine) Append(frame []byte) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.frames = append(e.frames, frame)
	start := !e.loopRunning
	if start {
		e.loopRunning = true
	}
	stopCh := e.stopCh
	e.mu.Unlock()

	if start {
		go e.run(stopCh)
	}
	e.signalUpdate()
}

// FinishInput marks that no more frames are coming this turn. The queue
// keeps draining; the loop exits once it runs dry.
func (e *playbackEngine) FinishInput() {
	e.mu.Lock()
	e.inputDone = true
	e.mu.Unlock()
	e.signalUpdate()
}

// Stop is the barge-in path: it discards all queued frames, clears the
// sink's buffered audio, and unblocks any in-flight mark wait. Once Stop
// returns, no further audio from the interrupted turn will play.
// Idempotent.
func (e *playbackEngine) Stop() {
	e.mu.Lock()
	alreadyStopped := e.stopped
	e.stopped = true
	e.inputDone = true
	e.frames = nil
	e.firstUnitDecoded = false
	if !alreadyStopped {
		close(e.stopCh)
	}
	e.mu.Unlock()

	e.output.Clear()
	e.signalUpdate()
}

// Reset prepares the engine for a new turn: fresh queue, flags, stop
// channel, and first-unit latch. A loop still draining the previous turn
// is forced out first.
func (e *playbackEngine) Reset() {
	e.mu.Lock()
	if e.loopRunning && !e.stopped {
		close(e.stopCh)
	}
	e.frames = nil
	e.inputDone = false
	e.stopped = false
	e.firstUnitDecoded = false
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	e.output.Clear()
	e.signalUpdate()
}

// QueuedFrames reports the number of frames awaiting decode.
func (e *playbackEngine) QueuedFrames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames)
}

func (e *playbackEngine) isLoopRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loopRunning
}

func (e *playbackEngine) run(stopCh chan struct{}) {
	defer e.loopExit(stopCh)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		frame, ok := e.dequeue()
		if !ok {
			if e.drained() {
				return
			}
			select {
			case <-e.updateSignal:
			case <-stopCh:
				return
			case <-time.After(idlePollInterval):
			}
			continue
		}

		pcm, err := e.decoder.Decode(frame)
		if err != nil {
			// Malformed or incomplete fragment; skip it, keep the loop.
			logger.Warn("skipping undecodable audio frame", "size", len(frame), "error", err)
			continue
		}

		if e.markFirstUnit() {
			e.onFirstUnit()
		}

		select {
		case <-stopCh:
			// Stopped while decoding; the decoded unit must not play.
			return
		default:
		}

		e.play(pcm, stopCh)
	}
}

// play hands one decoded unit to the sink and suspends until the sink
// confirms the unit has audibly finished, or the turn is stopped. One
// unit is audible at a time; units never overlap.
func (e *playbackEngine) play(pcm []byte, stopCh chan struct{}) {
	if err := e.output.SendAudio(pcm); err != nil {
		logger.Warn("failed to hand playback unit to sink", "error", err)
		return
	}

	done := make(chan struct{})
	e.output.Mark(uuid.NewString(), func(string) { close(done) })

	select {
	case <-done:
	case <-stopCh:
		// Cleared marks never fire; the stop channel is the way out.
	}
}

func (e *playbackEngine) dequeue() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || len(e.frames) == 0 {
		return nil, false
	}

	frame := e.frames[0]
	e.frames = e.frames[1:]
	return frame, true
}

func (e *playbackEngine) drained() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped || (e.inputDone && len(e.frames) == 0)
}

func (e *playbackEngine) markFirstUnit() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.firstUnitDecoded {
		return false
	}
	e.firstUnitDecoded = true
	return true
}

// loopExit retires the loop, restarting it when a new turn queued frames
// while this one was winding down.
func (e *playbackEngine) loopExit(stopCh chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loopRunning = false
	if len(e.frames) > 0 && !e.stopped && e.stopCh != stopCh {
		e.loopRunning = true
		nextStopCh := e.stopCh
		go e.run(nextStopCh)
	}
}

func (e *playbackEngine) signalUpdate() {
	select {
	case e.updateSignal <- struct{}{}:
	default:
	}
}
