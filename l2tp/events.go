package l2tp

// EventHandler is an interface for receiving engine events.  Handlers
// are called from the engine goroutine and must not block.
type EventHandler interface {
	// HandleEvent is called when an event occurs.  The event
	// argument is a pointer to one of the event types below.
	HandleEvent(event interface{})
}

// ConnectionUpEvent is raised when a control connection reaches the
// established state.
type ConnectionUpEvent struct {
	// ConnectionID is the locally assigned connection id.
	ConnectionID uint32
	// PeerConnectionID is the connection id assigned by the peer.
	PeerConnectionID uint32
	// PeerHostName is the host name advertised by the peer.
	PeerHostName string
	// PeerRouterID is the router id advertised by the peer.
	PeerRouterID uint32
	// PeerAddr is the peer's transport address.
	PeerAddr string
}

// ConnectionDownEvent is raised when a control connection is torn
// down, whether by the peer, locally, or due to transport failure.
type ConnectionDownEvent struct {
	ConnectionID     uint32
	PeerConnectionID uint32
	PeerHostName     string
	PeerRouterID     uint32
	PeerAddr         string
	// Reason describes why the connection closed.
	Reason string
}

// SessionUpEvent is raised when a session nested inside an established
// connection completes its handshake.
type SessionUpEvent struct {
	ConnectionID uint32
	// SessionID is the locally assigned session id, which is also
	// the id carried by inbound data-plane frames for the session.
	SessionID uint32
	// PeerSessionID is the session id assigned by the peer.
	PeerSessionID uint32
	// Pseudowire is the pseudowire type requested by the peer.
	Pseudowire PseudowireType
	// RemoteEndID identifies the circuit at the remote end, as
	// advertised by the peer.
	RemoteEndID string
}

// SessionDownEvent is raised when an established session is torn down.
type SessionDownEvent struct {
	ConnectionID  uint32
	SessionID     uint32
	PeerSessionID uint32
	Pseudowire    PseudowireType
	RemoteEndID   string
}
