package session

import (
	"context"
	"time"

	"github.com/jinzhu/copier"

	"github.com/voxcal/voxcal-core/core/audio"
)

type SessionOption func(*Session)

// CaptureClient is a microphone backend. StartCapture must not block;
// frames arrive on the callback at the device's period cadence until
// StopCapture.
type CaptureClient interface {
	StartCapture(ctx context.Context, onFrame func(frame []byte)) error
	StopCapture() error
	Close()
	EncodingInfo() audio.EncodingInfo
}

func WithCaptureClient(client CaptureClient) SessionOption {
	return func(s *Session) { s.capture.Set(client) }
}

type playbackSinkBase interface {
	SendAudio(pcm []byte) error
	ClearBuffer()
	EncodingInfo() audio.EncodingInfo
}

// PlaybackSink is a speaker backend that confirms position marks through
// callbacks.
type PlaybackSink interface {
	playbackSinkBase
	Mark(name string, callback func(string)) error
}

func WithPlaybackSink(client PlaybackSink) SessionOption {
	return func(s *Session) { s.output.Set(client) }
}

// PlaybackSinkLegacy is a speaker backend that only exposes a blocking
// mark wait.
type PlaybackSinkLegacy interface {
	playbackSinkBase
	AwaitMark() error
}

func WithLegacyPlaybackSink(client PlaybackSinkLegacy) SessionOption {
	return func(s *Session) { s.output.Set(client) }
}

// WithFrameDecoder replaces the default MP3 frame decoder.
func WithFrameDecoder(decoder FrameDecoder) SessionOption {
	return func(s *Session) { s.decoder = decoder }
}

// WithEndpoint sets the voice channel endpoint. Defaults to the
// VOXCAL_ENDPOINT environment variable.
func WithEndpoint(endpoint string) SessionOption {
	return func(s *Session) { s.endpoint = endpoint }
}

// WithCredential sets the session token appended to the channel URL.
// Defaults to the VOXCAL_TOKEN environment variable.
func WithCredential(credential string) SessionOption {
	return func(s *Session) { s.credential = credential }
}

func WithKeepAliveInterval(interval time.Duration) SessionOption {
	return func(s *Session) { s.keepAliveInterval = interval }
}

// Callbacks is the external UI sink. All callbacks are optional and
// fire-and-forget; no return value is expected and none may block for
// long, they are invoked from the channel's dispatch goroutine.
type Callbacks struct {
	OnStatus           func(text string)
	OnWarning          func(text string)
	OnError            func(text string)
	OnTranscript       func(text string, isFinal bool)
	OnThinkingStart    func()
	OnThinkingEnd      func()
	OnAssistantMessage func(text string, tools []string)
	OnConnectionChange func(connected bool)
	OnLatencyMetric    func(millis float64)
}

type ConnectOptions struct {
	callbacks Callbacks
}

type ConnectOption func(*ConnectOptions)

// WithCallbacks registers the UI sink for this connection. The set is
// copied so later mutation of the caller's struct does not change a live
// session.
func WithCallbacks(callbacks Callbacks) ConnectOption {
	return func(o *ConnectOptions) {
		_ = copier.Copy(&o.callbacks, &callbacks)
	}
}

func WithStatusCallback(callback func(text string)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.OnStatus = callback }
}

func WithWarningCallback(callback func(text string)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.OnWarning = callback }
}

func WithErrorCallback(callback func(text string)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.OnError = callback }
}

func WithTranscriptCallback(callback func(text string, isFinal bool)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.OnTranscript = callback }
}

func WithThinkingCallbacks(onStart, onEnd func()) ConnectOption {
	return func(o *ConnectOptions) {
		o.callbacks.OnThinkingStart = onStart
		o.callbacks.OnThinkingEnd = onEnd
	}
}

func WithAssistantMessageCallback(callback func(text string, tools []string)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.OnAssistantMessage = callback }
}

func WithConnectionChangeCallback(callback func(connected bool)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.OnConnectionChange = callback }
}

func WithLatencyMetricCallback(callback func(millis float64)) ConnectOption {
	return func(o *ConnectOptions) { o.callbacks.OnLatencyMetric = callback }
}

func (c Callbacks) status(text string) {
	if c.OnStatus != nil {
		c.OnStatus(text)
	}
}

func (c Callbacks) warning(text string) {
	if c.OnWarning != nil {
		c.OnWarning(text)
	}
}

func (c Callbacks) error(text string) {
	if c.OnError != nil {
		c.OnError(text)
	}
}

func (c Callbacks) transcript(text string, isFinal bool) {
	if c.OnTranscript != nil {
		c.OnTranscript(text, isFinal)
	}
}

func (c Callbacks) thinkingStart() {
	if c.OnThinkingStart != nil {
		c.OnThinkingStart()
	}
}

func (c Callbacks) thinkingEnd() {
	if c.OnThinkingEnd != nil {
		c.OnThinkingEnd()
	}
}

func (c Callbacks) assistantMessage(text string, tools []string) {
	if c.OnAssistantMessage != nil {
		c.OnAssistantMessage(text, tools)
	}
}

func (c Callbacks) connectionChange(connected bool) {
	if c.OnConnectionChange != nil {
		c.OnConnectionChange(connected)
	}
}

func (c Callbacks) latencyMetric(millis float64) {
	if c.OnLatencyMetric != nil {
		c.OnLatencyMetric(millis)
	}
}
