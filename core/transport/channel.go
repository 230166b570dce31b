// Package transport carries the persistent bidirectional voice channel.
//
// One channel exists per session. Textual payloads are parsed into control
// events and binary payloads are forwarded as opaque audio frames, both in
// arrival order from a single read loop. Closure is terminal: the channel
// never reconnects on its own.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxcal/voxcal-core/core/events"
)

var (
	// ErrAuthRequired reports that no credential was available when opening
	// the channel. The connection is refused before any dial happens.
	ErrAuthRequired = errors.New("voice channel credential required")
	// ErrNotConnected reports a send attempted while the channel is down.
	// The payload is dropped; the condition is not fatal.
	ErrNotConnected = errors.New("voice channel not connected")
)

const defaultKeepAliveInterval = 15 * time.Second

// Handlers receives inbound traffic and lifecycle notifications. OnEvent
// and OnFrame are invoked sequentially from the read loop, so handler code
// observes control events and audio frames in arrival order. OnClosed is
// invoked once when the channel goes down unexpectedly; err is nil for a
// server-initiated normal close.
type Handlers struct {
	OnEvent  func(event events.Event)
	OnFrame  func(frame []byte)
	OnClosed func(err error)
}

type Channel struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	connected atomic.Bool

	handlers          Handlers
	keepAliveInterval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

type Option func(*Channel)

func WithKeepAliveInterval(interval time.Duration) Option {
	return func(c *Channel) {
		if interval > 0 {
			c.keepAliveInterval = interval
		}
	}
}

// Open establishes the voice channel, appending the credential as a query
// parameter. There is no re-authentication mid-session. On success the
// channel is connected and its read and keepalive loops are running.
func Open(ctx context.Context, endpoint, credential string, handlers Handlers, opts ...Option) (*Channel, error) {
	if credential == "" {
		return nil, ErrAuthRequired
	}

	channelURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid voice channel endpoint: %w", err)
	}
	queryParams := channelURL.Query()
	queryParams.Set("token", credential)
	channelURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, channelURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open voice channel: %w", err)
	}

	channel := &Channel{
		conn:              conn,
		handlers:          handlers,
		keepAliveInterval: defaultKeepAliveInterval,
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(channel)
	}
	channel.connected.Store(true)

	go channel.readLoop()
	go channel.keepAlive(ctx)

	return channel, nil
}

func (c *Channel) IsConnected() bool {
	return c != nil && c.connected.Load()
}

// Send transmits one outbound audio frame. Fire-and-forget: while the
// channel is down the frame is dropped and ErrNotConnected returned for
// the caller to record.
func (c *Channel) Send(frame []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write audio frame: %w", err)
	}
	return nil
}

// Interrupt asks the backend to abandon the in-progress assistant turn.
func (c *Channel) Interrupt() error {
	return c.sendControl("interrupt")
}

// StopTurn asks the backend to stop both speaking and processing.
func (c *Channel) StopTurn() error {
	return c.sendControl("stop")
}

func (c *Channel) sendControl(kind string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if err := c.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: kind}); err != nil {
		return fmt.Errorf("failed to write %s control message: %w", kind, err)
	}
	return nil
}

// Close tears the channel down. Always succeeds and is safe to call more
// than once; a best-effort close frame is sent before the connection drops.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.done)

		c.connMu.Lock()
		defer c.connMu.Unlock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
	return nil
}

func (c *Channel) readLoop() {
	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			wasConnected := c.connected.Swap(false)

			select {
			case <-c.done:
				// Locally initiated close; the owner already knows.
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			} else {
				logger.Error("voice channel read failed", "error", err)
			}
			if wasConnected && c.handlers.OnClosed != nil {
				c.handlers.OnClosed(err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if c.handlers.OnFrame != nil {
				c.handlers.OnFrame(payload)
			}
		case websocket.TextMessage:
			event, err := events.Parse(payload)
			if err != nil {
				logger.Warn("dropping malformed control payload", "error", err)
				continue
			}
			if event == nil {
				// Unknown tag from a newer backend.
				continue
			}
			if c.handlers.OnEvent != nil {
				c.handlers.OnEvent(event)
			}
		}
	}
}

func (c *Channel) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendControl("ping"); err != nil {
				if !errors.Is(err, ErrNotConnected) {
					logger.Warn("keepalive ping failed", "error", err)
				}
				return
			}
		}
	}
}
