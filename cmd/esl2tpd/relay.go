package main

import (
	"fmt"
	"net"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/pwlink/esl2tpd/config"
)

// relayChannel is one local endpoint frames can be relayed to.  A
// channel carries at most one session at a time.
type relayChannel struct {
	cfg       config.NamedChannel
	conn      *net.UnixConn
	sessionID uint32
}

// channelRelay relays established sessions' frames to local datagram
// sockets.  Sessions are bound to channels by remote end id, falling
// back to the first unbound channel without one.  All methods are
// called from the protocol engine goroutine, so no locking is needed.
type channelRelay struct {
	logger    log.Logger
	channels  []*relayChannel
	bySession map[uint32]*relayChannel
}

func newChannelRelay(channels []config.NamedChannel, logger log.Logger) *channelRelay {
	r := &channelRelay{
		logger:    log.With(logger, "relay", "channel"),
		bySession: make(map[uint32]*relayChannel),
	}
	for _, cfg := range channels {
		r.channels = append(r.channels, &relayChannel{cfg: cfg})
	}
	return r
}

func (r *channelRelay) pickChannel(remoteEndID string) *relayChannel {
	if remoteEndID != "" {
		for _, ch := range r.channels {
			if ch.sessionID == 0 && ch.cfg.RemoteEndID == remoteEndID {
				return ch
			}
		}
	}
	for _, ch := range r.channels {
		if ch.sessionID == 0 && ch.cfg.RemoteEndID == "" {
			return ch
		}
	}
	return nil
}

func (r *channelRelay) SessionUp(sessionID, peerSessionID uint32, remoteEndID string) error {
	ch := r.pickChannel(remoteEndID)
	if ch == nil {
		return fmt.Errorf("no relay channel available for remote end id %q", remoteEndID)
	}
	conn, err := net.DialUnix("unixgram", nil,
		&net.UnixAddr{Name: ch.cfg.SocketPath, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("failed to connect relay channel %v: %v", ch.cfg.Name, err)
	}
	ch.conn = conn
	ch.sessionID = sessionID
	r.bySession[sessionID] = ch
	level.Info(r.logger).Log(
		"message", "session bound to channel",
		"session_id", sessionID,
		"channel", ch.cfg.Name)
	return nil
}

func (r *channelRelay) SessionDown(sessionID uint32) {
	ch, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	delete(r.bySession, sessionID)
	ch.conn.Close()
	ch.conn = nil
	ch.sessionID = 0
	level.Info(r.logger).Log(
		"message", "session unbound from channel",
		"session_id", sessionID,
		"channel", ch.cfg.Name)
}

func (r *channelRelay) ForwardFrame(sessionID uint32, frame []byte) {
	ch, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	if _, err := ch.conn.Write(frame); err != nil {
		level.Debug(r.logger).Log(
			"message", "frame relay failed",
			"channel", ch.cfg.Name,
			"error", err)
	}
}

func (r *channelRelay) Close() {
	for _, ch := range r.channels {
		if ch.conn != nil {
			ch.conn.Close()
			ch.conn = nil
			ch.sessionID = 0
		}
	}
	r.bySession = make(map[uint32]*relayChannel)
}
