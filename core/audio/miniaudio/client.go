// Package miniaudio provides the default capture and playback device
// backend, built on malgo. Capture produces ~100ms PCM frames at the
// channel's upload profile; playback accepts decoded PCM and confirms
// position marks as the device drains them.
package miniaudio

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/voxcal/voxcal-core/core/audio"
)

type Client struct {
	// audioContext is only held for ownership; it must outlive both
	// devices.
	audioContext *malgo.AllocatedContext

	capture  Capture
	playback Playback
}

// NewClient acquires the platform audio context and initializes both
// devices. Device acquisition failures are reported as
// [audio.ErrDeviceUnavailable] so the session can degrade to text-only.
func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize audio context: %v", audio.ErrDeviceUnavailable, err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.capture.init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	if err := client.playback.init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	if err := client.playback.start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	return &client, nil
}

// Capture returns the microphone side of the client.
func (c *Client) Capture() *Capture {
	return &c.capture
}

// Playback returns the speaker side of the client.
func (c *Client) Playback() *Playback {
	return &c.playback
}

func (c *Client) Close() {
	_ = c.capture.uninit()
	_ = c.playback.uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
