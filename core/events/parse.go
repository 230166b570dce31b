package events

import (
	"encoding/json"
	"fmt"
)

// wireMessage is the flat shape of every textual payload on the voice
// channel. Fields beyond type are populated per tag.
type wireMessage struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Text      string   `json:"text"`
	Message   string   `json:"message"`
	ToolsUsed []string `json:"tools_used"`
	TTFAMs    float64  `json:"ttfa_ms"`
}

// Parse converts one textual channel payload into a typed event.
//
// Unknown tags return (nil, nil): the caller must treat a nil event as
// "ignore", which keeps the client forward compatible. Malformed payloads
// return an error.
func Parse(payload []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal control payload: %w", err)
	}

	switch Kind(msg.Type) {
	case KindConnected:
		return NewConnected(msg.SessionID, msg.Message), nil
	case KindPartialTranscript:
		return NewPartialTranscript(msg.Text), nil
	case KindTranscript:
		return NewTranscript(msg.Text), nil
	case KindThinking:
		return NewThinking(), nil
	case KindAudioStart:
		return NewAudioStart(), nil
	case KindLatencyMetric:
		return NewLatencyMetric(msg.TTFAMs), nil
	case KindAudioComplete:
		return NewAudioComplete(), nil
	case KindInterrupted:
		return NewInterrupted(), nil
	case KindReady:
		return NewReady(), nil
	case KindError:
		return NewError(msg.Message), nil
	case KindSilenceWarning:
		return NewSilenceWarning(msg.Message), nil
	case KindTimeout:
		return NewTimeout(msg.Message), nil
	case KindAssistantResponse:
		return NewAssistantResponse(msg.Text, msg.ToolsUsed), nil
	case KindPong:
		return NewPong(), nil
	}

	return nil, nil
}
