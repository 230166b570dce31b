package session

// TurnPhase is the session's turn-taking state. Exactly one phase is
// active at a time, and transitions are driven only by control events —
// never by audio-frame arrival.
type TurnPhase int

const (
	PhaseIdle TurnPhase = iota
	PhaseUserSpeaking
	PhaseThinking
	PhaseAISpeaking
	PhaseInterrupted
)

func (p TurnPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseUserSpeaking:
		return "user_speaking"
	case PhaseThinking:
		return "thinking"
	case PhaseAISpeaking:
		return "ai_speaking"
	case PhaseInterrupted:
		return "interrupted"
	}
	return "unknown"
}

// StatusText is the presentation string surfaced through the status
// callback when the phase changes.
func (p TurnPhase) StatusText() string {
	switch p {
	case PhaseIdle:
		return "Ready"
	case PhaseUserSpeaking:
		return "Listening..."
	case PhaseThinking:
		return "Thinking..."
	case PhaseAISpeaking:
		return "Speaking..."
	case PhaseInterrupted:
		return "Interrupted"
	}
	return ""
}
