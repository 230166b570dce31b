// Package portaudio provides an alternative microphone backend for hosts
// where miniaudio is unavailable. Capture only; playback goes through a
// mark-capable sink backend.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/voxcal/voxcal-core/core/audio"
)

type Client struct {
	stream          *portaudio.Stream
	in              []int16
	framesPerBuffer int

	stop chan struct{}
	mu   sync.Mutex
}

// NewClient acquires the default input device at the channel's upload
// profile. One buffer holds ~100ms, so frames are emitted at the
// transmission cadence.
func NewClient() (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize portaudio: %v", audio.ErrDeviceUnavailable, err)
	}

	framesPerBuffer := audio.DefaultSampleRate / 10
	in := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.DefaultSampleRate), framesPerBuffer, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: failed to open capture stream: %v", audio.ErrDeviceUnavailable, err)
	}

	return &Client{
		stream:          stream,
		in:              in,
		framesPerBuffer: framesPerBuffer,
	}, nil
}

// StartCapture begins emitting frames to onFrame until StopCapture or
// context cancellation. Calling it while already capturing is a no-op.
func (c *Client) StartCapture(ctx context.Context, onFrame func(frame []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return fmt.Errorf("%w: capture stream not initialized", audio.ErrDeviceUnavailable)
	}
	if c.stop != nil {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	stop := make(chan struct{})
	c.stop = stop
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
				if err := c.stream.Read(); err != nil {
					log.Printf("Failed to read from capture stream: %v", err)
					continue
				}

				frame := bytes.Buffer{}
				if err := binary.Write(&frame, binary.LittleEndian, c.in); err != nil {
					log.Printf("Failed to encode capture frame: %v", err)
					continue
				}
				onFrame(frame.Bytes())
			}
		}
	}()

	return nil
}

// StopCapture halts frame emission. Idempotent.
func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return nil
	}

	close(c.stop)
	c.stop = nil
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture stream: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.stream != nil {
		c.stream.Close()
		c.stream = nil
		portaudio.Terminate()
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
