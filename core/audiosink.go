package session

import (
	"reflect"

	"github.com/voxcal/voxcal-core/core/audio"
)

// playbackOutput normalizes mark-capable and legacy await-mark sinks
// behind one facade used by the playback engine.
//
// The facade caches typed capabilities derived from base so the hot
// playback path can route without repeated type assertions.
//
// NOTE: methods do best-effort forwarding; the playback engine treats
// sink failures as non-fatal side effects and keeps draining.
type playbackOutput struct {
	// base stores the configured sink regardless of mark protocol.
	base playbackSinkBase
	// markCapable is set when the sink confirms marks through callbacks.
	markCapable PlaybackSink
	// legacy is set when the sink only supports a blocking mark wait.
	legacy PlaybackSinkLegacy

	// supportsCallbackMarks reports whether marks invoke callbacks directly.
	supportsCallbackMarks bool
}

func newPlaybackOutput(client playbackSinkBase) *playbackOutput {
	output := playbackOutput{}
	output.Set(client)
	return &output
}

// Set replaces the configured sink and recomputes capabilities. Nil and
// typed-nil clients are treated as unconfigured.
func (o *playbackOutput) Set(client playbackSinkBase) {
	if o == nil {
		return
	}

	o.base = nil
	o.markCapable = nil
	o.legacy = nil
	o.supportsCallbackMarks = false

	if isNilPlaybackSink(client) {
		return
	}
	o.base = client

	if markCapable, ok := client.(PlaybackSink); ok {
		o.markCapable = markCapable
		o.supportsCallbackMarks = true
		return
	}

	if legacy, ok := client.(PlaybackSinkLegacy); ok {
		o.legacy = legacy
	}
}

func (o *playbackOutput) isConfigured() bool {
	if o == nil {
		return false
	}

	return o.markCapable != nil || o.legacy != nil
}

// SendAudio forwards a decoded unit to the configured sink. Without a
// usable sink the unit is dropped.
func (o *playbackOutput) SendAudio(pcm []byte) error {
	if o.markCapable != nil {
		return o.markCapable.SendAudio(pcm)
	} else if o.legacy != nil {
		return o.legacy.SendAudio(pcm)
	}
	return nil
}

// Mark arranges for callback to fire once everything sent before it has
// audibly played.
//
// For legacy sinks the blocking wait is bridged to a callback in a
// goroutine so the playback loop stays callback-driven. Without a sink
// configured, the callback fires immediately so the loop keeps
// progressing.
func (o *playbackOutput) Mark(mark string, callback func(string)) {
	if o.markCapable != nil {
		_ = o.markCapable.Mark(mark, callback)
	} else if o.legacy != nil {
		go func() {
			_ = o.legacy.AwaitMark()
			callback(mark)
		}()
	} else {
		callback(mark)
	}
}

// Clear flushes buffered output and unfired marks on the configured sink.
func (o *playbackOutput) Clear() {
	if o.base != nil {
		o.base.ClearBuffer()
	}
}

func (o *playbackOutput) EncodingInfo() audio.EncodingInfo {
	if o.base != nil {
		return o.base.EncodingInfo()
	}

	return audio.GetPlaybackEncodingInfo()
}

// isNilPlaybackSink detects nil and typed-nil interface values so Set
// does not store unusable interface wrappers as configured sinks.
func isNilPlaybackSink(client playbackSinkBase) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
