// Package session implements the real-time duplex voice session of the
// scheduling assistant client.
//
// A Session simultaneously transmits microphone frames over a persistent
// channel, consumes the backend's mixed stream of control events and
// audio frames, drives the turn-taking state machine, and plays
// synthesized speech back with ordered, interruptible playback. The
// surrounding application (text chat, authentication, rendering) talks to
// it only through [Callbacks].
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/voxcal/voxcal-core/core/audio"
	"github.com/voxcal/voxcal-core/core/audio/mp3"
	"github.com/voxcal/voxcal-core/core/transport"
)

const (
	endpointEnv   = "VOXCAL_ENDPOINT"
	credentialEnv = "VOXCAL_TOKEN"

	defaultEndpoint = "ws://localhost:8080/ws/voice"
)

// Session is one connected voice channel and everything it owns: the
// capture pipeline's recording handle, the playback engine's queue, the
// turn phase, and the latency bookkeeping. At most one Session should be
// live per client instance; closure is terminal.
type Session struct {
	// ID identifies this client instance. The backend assigns its own
	// session id, reported through the connected event.
	ID string

	endpoint          string
	credential        string
	keepAliveInterval time.Duration

	channel  *transport.Channel
	capture  *captureInput
	output   *playbackOutput
	playback *playbackEngine
	decoder  FrameDecoder
	latency  *latencyTracker

	callbacks Callbacks

	phase    TurnPhase
	remoteID string
	mu       sync.Mutex

	framesDropped int64

	baseContext context.Context
	closeOnce   sync.Once
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		output:      newPlaybackOutput(nil),
		latency:     newLatencyTracker(),
		phase:       PhaseIdle,
		baseContext: context.Background(),
	}
	s.capture = newCaptureInput(nil, s.sendFrame)

	for _, opt := range opts {
		opt(s)
	}

	if s.decoder == nil {
		s.decoder = mp3.NewDecoder()
	}
	s.playback = newPlaybackEngine(s.decoder, s.output)
	s.playback.SetOnFirstUnit(func() {
		now := time.Now()
		s.latency.MarkFirstUnitDecoded(now)
		snapshot := s.latency.Snapshot()
		if !snapshot.ResponseStart.IsZero() {
			logger.Debug("first playback unit decoded",
				"since_response_start", now.Sub(snapshot.ResponseStart))
		}
	})

	return s
}

// Connect opens the voice channel and starts the capture pipeline.
//
// The credential is appended to the channel URL; without one the
// connection is refused with [transport.ErrAuthRequired] before any
// resource is acquired. A missing or denied microphone is not fatal: the
// session stays up text-only and the UI sink gets a warning.
//
// ctx outlives the call; its cancellation closes the session.
func (s *Session) Connect(ctx context.Context, opts ...ConnectOption) error {
	ctx, span := tracer.Start(ctx, "connect voice session")
	defer span.End()

	options := ConnectOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.callbacks = options.callbacks
	s.baseContext = ctx

	endpoint := s.endpoint
	if endpoint == "" {
		endpoint, _ = os.LookupEnv(endpointEnv)
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	credential := s.credential
	if credential == "" {
		credential, _ = os.LookupEnv(credentialEnv)
	}

	var channelOpts []transport.Option
	if s.keepAliveInterval > 0 {
		channelOpts = append(channelOpts, transport.WithKeepAliveInterval(s.keepAliveInterval))
	}

	channel, err := transport.Open(ctx, endpoint, credential, transport.Handlers{
		OnEvent:  s.respondToEvent,
		OnFrame:  s.handleFrame,
		OnClosed: s.handleChannelClosed,
	}, channelOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.channel = channel

	s.setPhase(PhaseIdle)
	s.callbacks.connectionChange(true)

	// Capture starts with the connection and runs for its whole lifetime.
	if s.capture.IsConfigured() {
		if err := s.capture.Start(ctx); err != nil {
			recordedErr := fmt.Errorf("failed to start capture: %w", err)
			span.RecordError(recordedErr)
			logger.Warn("voice input unavailable, session continues text-only", "error", err)
			if errors.Is(err, audio.ErrDeviceUnavailable) {
				s.callbacks.warning("Microphone unavailable - voice input disabled")
			} else {
				s.callbacks.warning("Could not start voice capture")
			}
		}
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return nil
}

// Interrupt is the local barge-in control: it stops playback immediately
// and tells the backend to abandon the in-progress turn.
func (s *Session) Interrupt() error {
	s.playback.Stop()
	if s.Phase() == PhaseAISpeaking {
		s.setPhase(PhaseInterrupted)
	}

	if s.channel == nil {
		return transport.ErrNotConnected
	}
	return s.channel.Interrupt()
}

// StopTurn stops playback and asks the backend to stop both speaking and
// processing.
func (s *Session) StopTurn() error {
	s.playback.Stop()
	s.setPhase(PhaseIdle)

	if s.channel == nil {
		return transport.ErrNotConnected
	}
	return s.channel.StopTurn()
}

// Close tears the session down: capture released, playback stopped and
// discarded, channel closed. Safe to call more than once; closure is
// terminal, a closed session is never reconnected.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_, span := tracer.Start(s.baseContext, "close voice session")
		defer span.End()

		s.playback.Stop()

		if err := s.capture.Close(); err != nil {
			recordedErr := fmt.Errorf("failed to close capture: %w", err)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}

		if s.channel != nil {
			_ = s.channel.Close()
		}

		s.setPhase(PhaseIdle)
		s.callbacks.connectionChange(false)
	})
}

// IsConnected reports whether the voice channel is up.
func (s *Session) IsConnected() bool {
	return s.channel != nil && s.channel.IsConnected()
}

// Phase returns the current turn-taking phase.
func (s *Session) Phase() TurnPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// RemoteID returns the backend-assigned session id, empty until the
// connected event arrives.
func (s *Session) RemoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

// Latency returns the current turn's latency snapshot.
func (s *Session) Latency() LatencySnapshot {
	return s.latency.Snapshot()
}

// FramesDropped reports how many capture frames were dropped because the
// channel was down.
func (s *Session) FramesDropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesDropped
}

// sendFrame transmits one capture frame. Fire-and-forget: while the
// channel is down the frame is dropped and recorded, never queued.
func (s *Session) sendFrame(frame []byte) {
	if s.channel == nil {
		s.recordDroppedFrame()
		return
	}

	if err := s.channel.Send(frame); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			s.recordDroppedFrame()
			return
		}
		logger.Warn("failed to transmit capture frame", "error", err)
	}
}

func (s *Session) recordDroppedFrame() {
	s.mu.Lock()
	s.framesDropped++
	dropped := s.framesDropped
	s.mu.Unlock()
	logger.Debug("dropped capture frame, channel not connected", "dropped_total", dropped)
}

// handleFrame enqueues one inbound audio frame. Phase is never inferred
// from frame arrival; that is the state machine's job.
func (s *Session) handleFrame(frame []byte) {
	s.playback.Append(frame)
}

// handleChannelClosed reacts to unexpected channel closure. Closure is
// terminal for the session.
func (s *Session) handleChannelClosed(err error) {
	if err != nil {
		logger.Error("voice channel failed", "error", err)
		s.callbacks.error("Voice connection lost")
	}
	s.Close()
}

func (s *Session) setPhase(phase TurnPhase) {
	s.mu.Lock()
	changed := s.phase != phase
	s.phase = phase
	s.mu.Unlock()

	if changed {
		s.callbacks.status(phase.StatusText())
	}
}

func (s *Session) setRemoteID(remoteID string) {
	s.mu.Lock()
	s.remoteID = remoteID
	s.mu.Unlock()
}
