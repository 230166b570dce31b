package session

import (
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/voxcal/voxcal-core/core/events"
)

// respondToEvent is the single dispatch point for inbound control events.
// It runs on the channel's read goroutine, so events are handled strictly
// in arrival order and phase transitions never race each other.
func (s *Session) respondToEvent(event events.Event) {
	_, span := tracer.Start(s.baseContext, "handle voice event")
	defer span.End()
	span.SetAttributes(attribute.String("event.kind", string(event.Kind())))

	switch event := event.(type) {
	case events.Connected:
		s.setRemoteID(event.SessionID)
		logger.Info("voice session established", "remote_session_id", event.SessionID)
		s.setPhase(PhaseIdle)

	case events.PartialTranscript:
		// Speech evidence moves the session to listening from any phase,
		// including while the assistant is thinking or speaking; the
		// backend emits partials during playback as part of barge-in
		// detection.
		s.setPhase(PhaseUserSpeaking)
		s.callbacks.transcript(event.Text(), false)

	case events.Transcript:
		// The final transcript ends user speech and opens the thinking
		// phase; end-to-end latency for the turn is measured from this
		// instant. However many partials preceded it, this is the turn's
		// single speech-end stamp and single thinking transition.
		s.latency.MarkSpeechEnd(time.Now())
		s.callbacks.transcript(event.Text(), true)
		s.setPhase(PhaseThinking)

	case events.Thinking:
		// Presentation only; the phase already moved at the final
		// transcript.
		s.callbacks.thinkingStart()

	case events.AudioStart:
		s.latency.MarkResponseStart(time.Now())
		s.playback.Reset()
		s.callbacks.thinkingEnd()
		s.setPhase(PhaseAISpeaking)

	case events.LatencyMetric:
		s.latency.RecordTTFA(event.TTFAMillis)
		logger.Info("time to first audio reported", "ttfa_ms", event.TTFAMillis)
		s.callbacks.latencyMetric(event.TTFAMillis)

	case events.AssistantResponse:
		s.callbacks.assistantMessage(event.Text, event.ToolsUsed)

	case events.AudioComplete:
		// No more frames this turn; playback keeps draining what is queued.
		s.playback.FinishInput()

	case events.Interrupted:
		s.playback.Stop()
		if s.Phase() == PhaseAISpeaking {
			s.setPhase(PhaseInterrupted)
		}

	case events.Ready:
		if elapsed, ok := s.latency.CompleteTurn(time.Now()); ok {
			logger.Info("turn completed", "end_to_end", elapsed)
		}
		s.setPhase(PhaseIdle)

	case events.SilenceWarning:
		s.callbacks.warning(event.Message)

	case events.Timeout:
		logger.Warn("voice session timed out", "message", event.Message)
		s.callbacks.error(event.Message)
		s.Close()

	case events.Error:
		logger.Error("voice backend reported an error", "message", event.Message)
		s.playback.Stop()
		s.setPhase(PhaseIdle)
		s.callbacks.error(event.Message)

	case events.Pong:
		logger.Debug("keepalive acknowledged")

	default:
		logger.Debug("ignoring unhandled control event", "kind", event.Kind())
	}
}
