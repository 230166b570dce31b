package events

const (
	// KindConnected identifies successful channel establishment.
	KindConnected Kind = "connected"
	// KindReady identifies the end of a turn; the backend is listening again.
	KindReady Kind = "ready"
	// KindPong identifies a keepalive acknowledgement.
	KindPong Kind = "pong"
	// KindError identifies a server-reported failure.
	KindError Kind = "error"
	// KindSilenceWarning identifies a prolonged-inactivity warning.
	KindSilenceWarning Kind = "silence_warning"
	// KindTimeout identifies an inactivity disconnect notice.
	KindTimeout Kind = "timeout"
)

// Connected reports that the voice channel is established.
type Connected struct {
	Base
	SessionID string
	Message   string
}

func NewConnected(sessionID, message string) Connected {
	return Connected{Base: NewBase(KindConnected), SessionID: sessionID, Message: message}
}

// Ready marks the end of a turn.
type Ready struct{ Base }

func NewReady() Ready {
	return Ready{Base: NewBase(KindReady)}
}

// Pong acknowledges a client keepalive ping.
type Pong struct{ Base }

func NewPong() Pong {
	return Pong{Base: NewBase(KindPong)}
}

// Error carries a server-reported failure message. The channel stays up.
type Error struct {
	Base
	Message string
}

func NewError(message string) Error {
	return Error{Base: NewBase(KindError), Message: message}
}

// SilenceWarning warns about prolonged inactivity.
type SilenceWarning struct {
	Base
	Message string
}

func NewSilenceWarning(message string) SilenceWarning {
	return SilenceWarning{Base: NewBase(KindSilenceWarning), Message: message}
}

// Timeout announces that the backend is closing the channel for
// inactivity.
type Timeout struct {
	Base
	Message string
}

func NewTimeout(message string) Timeout {
	return Timeout{Base: NewBase(KindTimeout), Message: message}
}
