// Package mp3 decodes the voice backend's synthesized speech frames into
// playable PCM. Every transport frame is treated as a self-contained MP3
// stream; frames that are not decodable on their own surface an error and
// are skipped by the playback loop.
package mp3

import (
	"bytes"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/voxcal/voxcal-core/core/audio"
)

// Decoder converts MP3 frames to 16-bit little-endian stereo PCM.
//
// Each frame is decoded as a self-contained stream; the only state kept
// between frames is the most recently observed sample rate. A Decoder is
// reusable between turns but not safe for concurrent use; the playback
// loop is its only caller.
type Decoder struct {
	sampleRate int
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes one frame into PCM. The returned buffer is owned by the
// caller.
func (d *Decoder) Decode(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty audio frame")
	}

	stream, err := gomp3.NewDecoder(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to parse audio frame: %w", err)
	}

	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio frame: %w", err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("audio frame decoded to no samples")
	}

	d.sampleRate = stream.SampleRate()
	return pcm, nil
}

// SampleRate reports the sample rate of the most recently decoded frame,
// or 0 before the first successful decode.
func (d *Decoder) SampleRate() int {
	return d.sampleRate
}

// EncodingInfo returns the PCM profile of decoded output. The decoder
// always produces 16-bit stereo; the sample rate follows the stream, with
// the playback default assumed until a frame has been decoded.
func (d *Decoder) EncodingInfo() audio.EncodingInfo {
	info := audio.GetPlaybackEncodingInfo()
	if d.sampleRate != 0 {
		info.SampleRate = d.sampleRate
	}
	return info
}
