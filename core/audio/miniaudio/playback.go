package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxcal/voxcal-core/core/audio"
)

// Playback drains decoded PCM through the default output device.
//
// Audio is appended to a pending buffer that the device callback consumes;
// position marks registered at the current buffer tail fire once the
// device has drained past them, which is how the playback loop learns a
// unit finished playing audibly rather than merely being handed to the
// device.
type Playback struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	pending []byte
	bufMu   sync.Mutex

	marks   []playbackMark
	marksMu sync.Mutex

	mu sync.Mutex
}

type playbackMark struct {
	name string
	// position is the bytes of pending audio still ahead of the mark.
	position int
	callback func(string)
}

func (p *Playback) init(audioContext *malgo.AllocatedContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	encoding := audio.GetPlaybackEncodingInfo()
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * encoding.ChannelCount()

	p.config = malgo.DefaultDeviceConfig(malgo.Playback)
	p.config.SampleRate = uint32(encoding.SampleRate)
	p.config.Playback.Format = format
	p.config.Playback.Channels = uint32(encoding.ChannelCount())
	p.config.Alsa.NoMMap = 1
	p.config.PeriodSizeInFrames = uint32(encoding.SampleRate / 10)
	p.config.Periods = 4

	p.audioContext = audioContext

	device, err := malgo.InitDevice(
		p.audioContext.Context,
		p.config,
		malgo.DeviceCallbacks{Data: p.drain(bytesPerFrame)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	p.device = device

	return nil
}

func (p *Playback) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device == nil {
		return fmt.Errorf("%w: playback device not initialized", audio.ErrDeviceUnavailable)
	}

	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

// SendAudio appends decoded PCM to the pending buffer.
func (p *Playback) SendAudio(pcm []byte) error {
	if p.device == nil {
		return fmt.Errorf("%w: playback device not initialized", audio.ErrDeviceUnavailable)
	}

	p.bufMu.Lock()
	p.pending = append(p.pending, pcm...)
	p.bufMu.Unlock()
	return nil
}

// Mark registers a callback at the current buffer tail. It fires, with the
// given name, once everything appended before it has been drained by the
// device.
func (p *Playback) Mark(name string, callback func(string)) error {
	p.bufMu.Lock()
	position := len(p.pending)
	p.bufMu.Unlock()

	p.marksMu.Lock()
	p.marks = append(p.marks, playbackMark{name: name, position: position, callback: callback})
	p.marksMu.Unlock()
	return nil
}

// ClearBuffer drops all pending audio and unfired marks. Mark callbacks
// for cleared audio never fire; interruption handling must not wait on
// them.
func (p *Playback) ClearBuffer() {
	p.bufMu.Lock()
	p.pending = nil
	p.bufMu.Unlock()

	p.marksMu.Lock()
	p.marks = nil
	p.marksMu.Unlock()
}

func (p *Playback) EncodingInfo() audio.EncodingInfo {
	return audio.GetPlaybackEncodingInfo()
}

func (p *Playback) uninit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		p.device.Uninit()
		p.device = nil
	}
	p.ClearBuffer()
	return nil
}

func (p *Playback) drain(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		p.bufMu.Lock()
		n := copy(pOutput, p.pending)
		if n == len(p.pending) {
			p.pending = nil
		} else {
			p.pending = p.pending[n:]
		}
		p.bufMu.Unlock()

		// Underrun: pad the period with silence instead of replaying stale
		// device memory.
		for i := n; i < need && i < len(pOutput); i++ {
			pOutput[i] = 0
		}

		p.advanceMarks(n)
	}
}

// advanceMarks moves every registered mark forward by the drained byte
// count and fires those whose audio has fully played. Marks registered at
// an already-empty buffer fire on the next device period.
func (p *Playback) advanceMarks(consumed int) {
	p.marksMu.Lock()
	fired := 0
	for i := range p.marks {
		p.marks[i].position -= consumed
		if p.marks[i].position < 0 {
			p.marks[i].position = 0
		}
	}
	for fired < len(p.marks) && p.marks[fired].position == 0 {
		fired++
	}
	toFire := p.marks[:fired:fired]
	p.marks = p.marks[fired:]
	p.marksMu.Unlock()

	if len(toFire) > 0 {
		go func() {
			for _, mark := range toFire {
				mark.callback(mark.name)
			}
		}()
	}
}
