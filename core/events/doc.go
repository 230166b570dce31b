// Package events defines the typed control-event contract of the voice
// channel.
//
// Each event mirrors one tagged record the backend sends on the textual
// branch of the channel. Kinds are the wire tags themselves, so the
// contract test doubles as a wire-compatibility check.
//
// Connection lifecycle
//
//   - Connected (connected): channel established, session id assigned.
//   - Ready (ready): turn finished, backend is listening again.
//   - Pong (pong): keepalive acknowledgement.
//   - Error (error): server-side failure, non-fatal to the channel.
//   - SilenceWarning (silence_warning): prolonged inactivity warning.
//   - Timeout (timeout): inactivity limit reached, channel will close.
//
// User speech
//
//   - PartialTranscript (partial_transcript): mutable interim transcript.
//   - Transcript (transcript): final transcript for the utterance.
//
// Assistant turn
//
//   - Thinking (thinking): response generation started.
//   - AudioStart (audio_start): synthesized speech frames will follow.
//   - LatencyMetric (latency_metric): server-measured time to first audio.
//   - AudioComplete (audio_complete): no further frames for this turn.
//   - Interrupted (interrupted): the user barged in; playback must stop.
//   - AssistantResponse (response_text): full response text and the tools
//     used to produce it.
//
// Unknown tags parse to nil and are ignored, keeping the client forward
// compatible with newer backends.
package events
