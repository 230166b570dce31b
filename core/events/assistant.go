package events

const (
	// KindThinking identifies the start of response generation.
	KindThinking Kind = "thinking"
	// KindAudioStart identifies that synthesized speech frames will follow.
	KindAudioStart Kind = "audio_start"
	// KindLatencyMetric identifies the server-measured time to first audio.
	KindLatencyMetric Kind = "latency_metric"
	// KindAudioComplete identifies that no further frames follow this turn.
	KindAudioComplete Kind = "audio_complete"
	// KindInterrupted identifies a user barge-in during assistant speech.
	KindInterrupted Kind = "interrupted"
	// KindAssistantResponse identifies the assembled response text.
	KindAssistantResponse Kind = "response_text"
)

// Thinking marks the start of response generation.
type Thinking struct{ Base }

func NewThinking() Thinking {
	return Thinking{Base: NewBase(KindThinking)}
}

// AudioStart announces the first synthesized speech frame of the turn.
type AudioStart struct{ Base }

func NewAudioStart() AudioStart {
	return AudioStart{Base: NewBase(KindAudioStart)}
}

// LatencyMetric carries the backend's time-to-first-audio measurement.
// The backend is authoritative for this value; it has visibility into its
// own generation pipeline where the client does not.
type LatencyMetric struct {
	Base
	TTFAMillis float64
}

func NewLatencyMetric(ttfaMillis float64) LatencyMetric {
	return LatencyMetric{Base: NewBase(KindLatencyMetric), TTFAMillis: ttfaMillis}
}

// AudioComplete marks the end of the turn's frame stream. Queued frames
// keep draining after it arrives.
type AudioComplete struct{ Base }

func NewAudioComplete() AudioComplete {
	return AudioComplete{Base: NewBase(KindAudioComplete)}
}

// Interrupted reports a barge-in; any in-flight playback must stop
// immediately.
type Interrupted struct{ Base }

func NewInterrupted() Interrupted {
	return Interrupted{Base: NewBase(KindInterrupted)}
}

// AssistantResponse carries the assembled response text and the names of
// the scheduling tools invoked to produce it.
type AssistantResponse struct {
	Base
	Text      string
	ToolsUsed []string
}

func NewAssistantResponse(text string, toolsUsed []string) AssistantResponse {
	return AssistantResponse{Base: NewBase(KindAssistantResponse), Text: text, ToolsUsed: toolsUsed}
}
