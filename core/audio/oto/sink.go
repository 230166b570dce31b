// Package oto provides a playback sink backend over oto/v3 for hosts
// where the miniaudio playback device is unavailable. It implements the
// same pending-buffer and position-mark contract as the miniaudio
// backend.
package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/voxcal/voxcal-core/core/audio"
)

// Sink plays decoded PCM through oto. The player pulls from the pending
// buffer; silence is produced on underrun so the player never starves,
// and marks advance as real audio is consumed.
//
// oto allows a single context per process, so at most one Sink may be
// created.
type Sink struct {
	otoCtx *oto.Context
	player *oto.Player

	pending []byte
	bufMu   sync.Mutex

	marks   []sinkMark
	marksMu sync.Mutex
}

type sinkMark struct {
	name     string
	position int
	callback func(string)
}

func NewSink() (*Sink, error) {
	encoding := audio.GetPlaybackEncodingInfo()

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   encoding.SampleRate,
		ChannelCount: encoding.ChannelCount(),
		Format:       oto.FormatSignedInt16LE,
		// Small buffer keeps barge-in latency low at the cost of underrun
		// tolerance.
		BufferSize: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize playback: %v", audio.ErrDeviceUnavailable, err)
	}
	<-ready

	sink := &Sink{otoCtx: otoCtx}
	sink.player = otoCtx.NewPlayer(sink)
	sink.player.Play()

	return sink, nil
}

// Read feeds the oto player. Underruns are padded with silence so the
// player keeps pulling; marks only advance by real audio bytes.
func (s *Sink) Read(p []byte) (int, error) {
	s.bufMu.Lock()
	n := copy(p, s.pending)
	if n == len(s.pending) {
		s.pending = nil
	} else {
		s.pending = s.pending[n:]
	}
	s.bufMu.Unlock()

	s.advanceMarks(n)

	if n == 0 {
		fill := len(p)
		if fill > 256 {
			fill = 256
		}
		for i := range fill {
			p[i] = 0
		}
		return fill, nil
	}

	return n, nil
}

func (s *Sink) SendAudio(pcm []byte) error {
	s.bufMu.Lock()
	s.pending = append(s.pending, pcm...)
	s.bufMu.Unlock()
	return nil
}

// Mark registers a callback at the current buffer tail; it fires once
// everything appended before it has been pulled by the player.
func (s *Sink) Mark(name string, callback func(string)) error {
	s.bufMu.Lock()
	position := len(s.pending)
	s.bufMu.Unlock()

	s.marksMu.Lock()
	s.marks = append(s.marks, sinkMark{name: name, position: position, callback: callback})
	s.marksMu.Unlock()
	return nil
}

// ClearBuffer drops pending audio and unfired marks.
func (s *Sink) ClearBuffer() {
	s.bufMu.Lock()
	s.pending = nil
	s.bufMu.Unlock()

	s.marksMu.Lock()
	s.marks = nil
	s.marksMu.Unlock()
}

func (s *Sink) EncodingInfo() audio.EncodingInfo {
	return audio.GetPlaybackEncodingInfo()
}

func (s *Sink) Close() {
	if s.player != nil {
		_ = s.player.Close()
		s.player = nil
	}
	s.ClearBuffer()
}

func (s *Sink) advanceMarks(consumed int) {
	s.marksMu.Lock()
	for i := range s.marks {
		s.marks[i].position -= consumed
		if s.marks[i].position < 0 {
			s.marks[i].position = 0
		}
	}
	fired := 0
	for fired < len(s.marks) && s.marks[fired].position == 0 {
		fired++
	}
	toFire := s.marks[:fired:fired]
	s.marks = s.marks[fired:]
	s.marksMu.Unlock()

	if len(toFire) > 0 {
		go func() {
			for _, mark := range toFire {
				mark.callback(mark.name)
			}
		}()
	}
}
