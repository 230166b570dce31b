package mp3

import (
	"testing"

	"github.com/voxcal/voxcal-core/core/audio"
)

func TestDecodeRejectsEmptyFrame(t *testing.T) {
	decoder := NewDecoder()

	if _, err := decoder.Decode(nil); err == nil {
		t.Fatalf("expected error for empty frame")
	}
	if _, err := decoder.Decode([]byte{}); err == nil {
		t.Fatalf("expected error for zero-length frame")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	decoder := NewDecoder()

	if _, err := decoder.Decode([]byte("definitely not mpeg audio")); err == nil {
		t.Fatalf("expected error for undecodable payload")
	}
}

func TestDecoderReportsPlaybackEncoding(t *testing.T) {
	decoder := NewDecoder()

	info := decoder.EncodingInfo()
	if info.SampleRate != audio.PlaybackSampleRate {
		t.Fatalf("unexpected sample rate %d", info.SampleRate)
	}
	if info.Channels != audio.PlaybackChannels {
		t.Fatalf("unexpected channel count %d", info.Channels)
	}
	if decoder.SampleRate() != 0 {
		t.Fatalf("expected zero sample rate before first decode, got %d", decoder.SampleRate())
	}
}
