package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxcal/voxcal-core/core/audio"
)

// Capture acquires the default microphone at the channel's upload profile
// (16kHz mono s16le) and emits one frame per device period, roughly every
// 100ms. Frames go out continuously while capturing; the client never
// gates its own microphone during assistant playback.
type Capture struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	onFrame func(frame []byte)

	mu sync.Mutex
}

func (c *Capture) init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	// One period per transmitted frame.
	c.config.PeriodSizeInFrames = sampleRate / 10
	c.config.Periods = 3

	c.audioContext = audioContext

	device, err := malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(pInput) < n {
				return
			}
			if c.onFrame != nil {
				frame := make([]byte, n)
				copy(frame, pInput[:n])
				c.onFrame(frame)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	c.device = device

	return nil
}

// StartCapture begins frame emission. Calling it while already capturing
// is a no-op.
func (c *Capture) StartCapture(_ context.Context, onFrame func(frame []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("%w: capture device not initialized", audio.ErrDeviceUnavailable)
	} else if c.device.IsStarted() {
		return nil
	}

	c.onFrame = onFrame
	if err := c.device.Start(); err != nil {
		c.onFrame = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

// StopCapture halts frame emission and releases the running device.
// Idempotent.
func (c *Capture) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil || !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	c.onFrame = nil
	return nil
}

func (c *Capture) Close() {
	_ = c.uninit()
}

func (c *Capture) uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.onFrame = nil
	return nil
}

func (c *Capture) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
