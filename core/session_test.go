package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxcal/voxcal-core/core/audio"
	"github.com/voxcal/voxcal-core/core/transport"
)

func startVoiceBackend(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade connection: %v", err)
			return
		}
		serve(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConnectRequiresCredential(t *testing.T) {
	t.Setenv("VOXCAL_TOKEN", "")

	session := NewSession(WithEndpoint("ws://localhost/ws/voice"))
	err := session.Connect(context.Background())
	if !errors.Is(err, transport.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestSessionPlaysFullTurnFromBackend(t *testing.T) {
	endpoint := startVoiceBackend(t, func(conn *websocket.Conn) {
		send := func(payload string) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				t.Errorf("backend write failed: %v", err)
			}
		}

		send(`{"type":"connected","session_id":"srv-7","message":"Voice connection established"}`)
		send(`{"type":"partial_transcript","text":"resche"}`)
		send(`{"type":"transcript","text":"reschedule my 3pm"}`)
		send(`{"type":"thinking"}`)
		send(`{"type":"audio_start"}`)
		send(`{"type":"latency_metric","ttfa_ms":410}`)
		for _, frame := range []string{"unit-1", "unit-2", "unit-3"} {
			_ = conn.WriteMessage(websocket.BinaryMessage, []byte(frame))
		}
		send(`{"type":"response_text","text":"Moved it to 4pm.","tools_used":["reschedule_event"]}`)
		send(`{"type":"audio_complete"}`)
		send(`{"type":"ready"}`)

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	recorder := &callbackRecorder{}
	sink := &recordingSink{autoMark: true}
	session := NewSession(
		WithEndpoint(endpoint),
		WithCredential("session-jwt"),
		WithFrameDecoder(stubDecoder{}),
		WithPlaybackSink(sink),
	)
	defer session.Close()

	if err := session.Connect(context.Background(), WithCallbacks(recorder.callbacks())); err != nil {
		t.Fatalf("expected session to connect, got %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(sink.sentFrames()) == 3 })
	waitFor(t, 2*time.Second, func() bool { return session.Phase() == PhaseIdle && session.RemoteID() == "srv-7" })

	for i, expected := range []string{"unit-1", "unit-2", "unit-3"} {
		if got := string(sink.sentFrames()[i]); got != expected {
			t.Fatalf("unit %d played out of order: got %q", i, got)
		}
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.finals) != 1 || recorder.finals[0] != "reschedule my 3pm" {
		t.Fatalf("unexpected final transcripts: %q", recorder.finals)
	}
	if recorder.thinkingStarts != 1 || recorder.thinkingEnds != 1 {
		t.Fatalf("expected one thinking start/end pair, got %d/%d",
			recorder.thinkingStarts, recorder.thinkingEnds)
	}
	if len(recorder.messages) != 1 || recorder.messages[0] != "Moved it to 4pm." {
		t.Fatalf("unexpected assistant messages: %q", recorder.messages)
	}
	if len(recorder.connections) == 0 || !recorder.connections[0] {
		t.Fatalf("expected connect notification, got %v", recorder.connections)
	}
	if len(recorder.ttfas) != 1 || recorder.ttfas[0] != 410 {
		t.Fatalf("unexpected latency metrics: %v", recorder.ttfas)
	}

	snapshot := session.Latency()
	if snapshot.EndToEnd <= 0 {
		t.Fatalf("expected end-to-end latency, got %v", snapshot.EndToEnd)
	}
	if snapshot.FirstUnitDecoded.IsZero() {
		t.Fatalf("expected first-unit decode timestamp")
	}
}

func TestCaptureFailureDegradesToTextOnly(t *testing.T) {
	endpoint := startVoiceBackend(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	recorder := &callbackRecorder{}
	session := NewSession(
		WithEndpoint(endpoint),
		WithCredential("session-jwt"),
		WithFrameDecoder(stubDecoder{}),
		WithCaptureClient(&fakeCaptureClient{startErr: audio.ErrDeviceUnavailable}),
	)
	defer session.Close()

	if err := session.Connect(context.Background(), WithCallbacks(recorder.callbacks())); err != nil {
		t.Fatalf("capture failure must not fail the connection, got %v", err)
	}
	if !session.IsConnected() {
		t.Fatalf("expected session to stay connected without a microphone")
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.warnings) != 1 || !strings.Contains(recorder.warnings[0], "Microphone unavailable") {
		t.Fatalf("expected microphone warning, got %q", recorder.warnings)
	}
}

func TestBackendDisconnectClosesSession(t *testing.T) {
	endpoint := startVoiceBackend(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	recorder := &callbackRecorder{}
	session := NewSession(
		WithEndpoint(endpoint),
		WithCredential("session-jwt"),
		WithFrameDecoder(stubDecoder{}),
	)
	defer session.Close()

	if err := session.Connect(context.Background(), WithCallbacks(recorder.callbacks())); err != nil {
		t.Fatalf("expected session to connect, got %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		return len(recorder.connections) == 2 && !recorder.connections[1]
	})

	if session.IsConnected() {
		t.Fatalf("expected session disconnected after backend hangup")
	}
}

func TestContextCancellationClosesSession(t *testing.T) {
	endpoint := startVoiceBackend(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	recorder := &callbackRecorder{}
	session := NewSession(
		WithEndpoint(endpoint),
		WithCredential("session-jwt"),
		WithFrameDecoder(stubDecoder{}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	if err := session.Connect(ctx, WithCallbacks(recorder.callbacks())); err != nil {
		t.Fatalf("expected session to connect, got %v", err)
	}

	cancel()
	waitFor(t, 2*time.Second, func() bool { return !session.IsConnected() })
}

func TestInterruptSendsControlAndStopsPlayback(t *testing.T) {
	interrupts := make(chan string, 1)
	endpoint := startVoiceBackend(t, func(conn *websocket.Conn) {
		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage && strings.Contains(string(payload), "interrupt") {
				select {
				case interrupts <- string(payload):
				default:
				}
			}
		}
	})

	sink := &recordingSink{}
	session := NewSession(
		WithEndpoint(endpoint),
		WithCredential("session-jwt"),
		WithFrameDecoder(stubDecoder{}),
		WithPlaybackSink(sink),
	)
	defer session.Close()

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("expected session to connect, got %v", err)
	}

	session.handleFrame([]byte("speech"))
	waitFor(t, 2*time.Second, func() bool { return len(sink.sentFrames()) == 1 })

	if err := session.Interrupt(); err != nil {
		t.Fatalf("expected interrupt to send, got %v", err)
	}
	if queued := session.playback.QueuedFrames(); queued != 0 {
		t.Fatalf("expected queue discarded on interrupt, got %d frames", queued)
	}

	select {
	case <-interrupts:
	case <-time.After(2 * time.Second):
		t.Fatalf("backend never received the interrupt control message")
	}
}
