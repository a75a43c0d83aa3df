package l2tp

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// TrafficRelay forwards established sessions' data-plane frames to
// local consumers.  All methods are called from the engine goroutine
// and must not block.
type TrafficRelay interface {
	// SessionUp is called when a session completes its handshake.
	// An error fails the session setup.
	SessionUp(sessionID, peerSessionID uint32, remoteEndID string) error
	// SessionDown is called when an established session goes away.
	SessionDown(sessionID uint32)
	// ForwardFrame hands over an inbound data-plane frame for an
	// established session.  The frame buffer is owned by the relay
	// after the call.
	ForwardFrame(sessionID uint32, frame []byte)
	// Close releases the relay's resources.
	Close()
}

// nullRelay discards all traffic.  It is used when the daemon runs the
// control protocol only.
type nullRelay struct {
	logger log.Logger
}

func newNullRelay(logger log.Logger) *nullRelay {
	return &nullRelay{logger: log.With(logger, "relay", "null")}
}

func (r *nullRelay) SessionUp(sessionID, peerSessionID uint32, remoteEndID string) error {
	level.Debug(r.logger).Log(
		"message", "session up",
		"session_id", sessionID,
		"peer_session_id", peerSessionID,
		"remote_end_id", remoteEndID)
	return nil
}

func (r *nullRelay) SessionDown(sessionID uint32) {
	level.Debug(r.logger).Log("message", "session down", "session_id", sessionID)
}

func (r *nullRelay) ForwardFrame(sessionID uint32, frame []byte) {
	level.Debug(r.logger).Log(
		"message", "frame discarded",
		"session_id", sessionID,
		"frame_len", len(frame))
}

func (r *nullRelay) Close() {}
