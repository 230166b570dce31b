package session

import (
	"context"
	"sync/atomic"

	"github.com/voxcal/voxcal-core/core/audio"
)

// captureInput is the microphone facade. The session transmits
// continuously and unconditionally while connected: there is no gating of
// the microphone during assistant playback, echo handling belongs to the
// device stack and the remote endpoint.
type captureInput struct {
	// base stores the configured capture client.
	base CaptureClient

	// configured reports whether a concrete client is set.
	configured atomic.Bool
	// capturing reports whether frames are currently being emitted.
	capturing atomic.Bool

	// onFrame receives each captured frame.
	onFrame func(frame []byte)
}

func newCaptureInput(client CaptureClient, onFrame func(frame []byte)) *captureInput {
	if onFrame == nil {
		onFrame = func([]byte) {}
	}

	input := captureInput{onFrame: onFrame}
	input.Set(client)
	return &input
}

func (c *captureInput) Set(client CaptureClient) {
	if c == nil {
		return
	}

	c.base = client
	c.configured.Store(client != nil)
	c.capturing.Store(false)
}

func (c *captureInput) IsConfigured() bool { return c != nil && c.configured.Load() }
func (c *captureInput) IsCapturing() bool  { return c != nil && c.capturing.Load() }

// Start begins continuous frame emission. Device acquisition failures
// propagate so the session can degrade to text-only.
func (c *captureInput) Start(ctx context.Context) error {
	if c == nil || !c.IsConfigured() {
		return nil
	}

	if !c.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.base.StartCapture(ctx, c.onFrame); err != nil {
		c.capturing.Store(false)
		return err
	}
	return nil
}

// Stop halts frame emission. Idempotent.
func (c *captureInput) Stop() error {
	if c == nil || !c.IsConfigured() {
		return nil
	}

	if !c.capturing.CompareAndSwap(true, false) {
		return nil
	}
	return c.base.StopCapture()
}

func (c *captureInput) Close() error {
	if c == nil || !c.IsConfigured() {
		return nil
	}

	err := c.base.StopCapture()
	c.base.Close()
	c.capturing.Store(false)
	c.configured.Store(false)
	return err
}

func (c *captureInput) EncodingInfo() audio.EncodingInfo {
	if c == nil || c.base == nil {
		return audio.GetDefaultEncodingInfo()
	}

	return c.base.EncodingInfo()
}
