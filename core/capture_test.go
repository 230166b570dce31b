package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/voxcal/voxcal-core/core/audio"
)

type fakeCaptureClient struct {
	starts   atomic.Int64
	stops    atomic.Int64
	closes   atomic.Int64
	startErr error
	onFrame  func(frame []byte)
}

func (c *fakeCaptureClient) StartCapture(_ context.Context, onFrame func(frame []byte)) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.starts.Add(1)
	c.onFrame = onFrame
	return nil
}

func (c *fakeCaptureClient) StopCapture() error {
	c.stops.Add(1)
	return nil
}

func (c *fakeCaptureClient) Close() {
	c.closes.Add(1)
}

func (c *fakeCaptureClient) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func TestCaptureInputForwardsFrames(t *testing.T) {
	var received [][]byte
	client := &fakeCaptureClient{}
	input := newCaptureInput(client, func(frame []byte) { received = append(received, frame) })

	if err := input.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !input.IsCapturing() {
		t.Fatalf("expected capturing after start")
	}

	client.onFrame([]byte("mic frame"))
	if len(received) != 1 || string(received[0]) != "mic frame" {
		t.Fatalf("unexpected forwarded frames: %q", received)
	}
}

func TestCaptureInputStartIsIdempotent(t *testing.T) {
	client := &fakeCaptureClient{}
	input := newCaptureInput(client, nil)

	for range 3 {
		if err := input.Start(context.Background()); err != nil {
			t.Fatalf("start failed: %v", err)
		}
	}
	if got := client.starts.Load(); got != 1 {
		t.Fatalf("expected one device start, got %d", got)
	}
}

func TestCaptureInputStopIsIdempotent(t *testing.T) {
	client := &fakeCaptureClient{}
	input := newCaptureInput(client, nil)

	if err := input.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for range 3 {
		if err := input.Stop(); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	}
	if got := client.stops.Load(); got != 1 {
		t.Fatalf("expected one device stop, got %d", got)
	}
}

func TestCaptureInputStartFailurePropagates(t *testing.T) {
	deviceErr := audio.ErrDeviceUnavailable
	client := &fakeCaptureClient{startErr: deviceErr}
	input := newCaptureInput(client, nil)

	err := input.Start(context.Background())
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
	if input.IsCapturing() {
		t.Fatalf("expected not capturing after failed start")
	}
}

func TestCaptureInputUnconfiguredIsNoop(t *testing.T) {
	input := newCaptureInput(nil, nil)

	if input.IsConfigured() {
		t.Fatalf("expected unconfigured input")
	}
	if err := input.Start(context.Background()); err != nil {
		t.Fatalf("expected nil error without a device, got %v", err)
	}
	if err := input.Stop(); err != nil {
		t.Fatalf("expected nil error without a device, got %v", err)
	}
	if err := input.Close(); err != nil {
		t.Fatalf("expected nil error without a device, got %v", err)
	}
}

func TestCaptureInputCloseReleasesDevice(t *testing.T) {
	client := &fakeCaptureClient{}
	input := newCaptureInput(client, nil)

	if err := input.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := input.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if client.closes.Load() != 1 {
		t.Fatalf("expected device close")
	}
	if input.IsConfigured() || input.IsCapturing() {
		t.Fatalf("expected input released after close")
	}
}

func TestCaptureInputEncodingFallback(t *testing.T) {
	input := newCaptureInput(nil, nil)

	info := input.EncodingInfo()
	if info.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("unexpected fallback encoding: %+v", info)
	}
}
