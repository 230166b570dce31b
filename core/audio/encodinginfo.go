package audio

import "errors"

const (
	// DefaultSampleRate is the capture sample rate expected by the voice
	// backend's transcription pipeline.
	DefaultSampleRate = 16000
	// DefaultFormat is the capture encoding sent over the voice channel.
	DefaultFormat = "linear16"

	// PlaybackSampleRate is the sample rate of PCM produced by decoding the
	// backend's synthesized speech frames.
	PlaybackSampleRate = 44100
	// PlaybackChannels is the channel count of decoded playback PCM.
	PlaybackChannels = 2
)

// ErrDeviceUnavailable reports that no usable audio device could be
// acquired, either because none exists or because access was denied.
// Capture backends wrap their initialization failures in it.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

// GetPlaybackEncodingInfo returns the PCM profile playback sinks are
// expected to accept.
func GetPlaybackEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: PlaybackSampleRate, Format: EncodingLinear16, Channels: PlaybackChannels}
}

// EncodingInfo describes a PCM or compressed audio stream. Channels of 0 is
// treated as mono for backwards compatibility with capture-side callers.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
	Channels   int
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) ChannelCount() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// BytesPerSecond returns the PCM byte rate, or -1 for compressed formats
// whose rate is not derivable from the encoding alone.
func (e EncodingInfo) BytesPerSecond() int {
	size := e.Format.ByteSize()
	if size < 0 {
		return -1
	}
	return e.SampleRate * e.ChannelCount() * size
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

// ByteSize returns the per-sample byte size, or -1 for compressed formats.
func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
	// EncodingMP3 is the compressed format of inbound synthesized speech
	// frames. Frame boundaries are transport-level; a frame is decoded as an
	// independent MP3 stream.
	EncodingMP3 encodingFormat = "mp3"
)
