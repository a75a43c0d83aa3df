package l2tp

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// session represents a single pseudowire circuit nested inside an
// established control connection.  A session is owned exclusively by
// its parent connection and dies with it.
type session struct {
	conn   *connection
	logger log.Logger
	// id is the locally assigned session id, unique across all
	// connections owned by the Context.
	id uint32
	// peerID is the session id assigned by the peer.
	peerID      uint32
	pwType      PseudowireType
	remoteEndID string
	fsm         fsm
	established bool
}

func newSession(conn *connection, id uint32) *session {
	s := &session{
		conn:   conn,
		logger: log.With(conn.logger, "session_id", id),
		id:     id,
	}
	s.fsm = fsm{
		current: "idle",
		table: []eventDesc{
			{from: "idle", events: []string{"icrq"}, cb: s.fsmActOnIcrq, to: "waitcallconfirm"},
			{from: "waitcallconfirm", events: []string{"iccn"}, cb: s.fsmActOnIccn, to: "established"},
			{from: "idle", events: []string{"cdn", "kill"}, cb: s.fsmActClose, to: "dead"},
			{from: "waitcallconfirm", events: []string{"cdn", "kill"}, cb: s.fsmActClose, to: "dead"},
			{from: "established", events: []string{"cdn", "kill"}, cb: s.fsmActClose, to: "dead"},
		},
	}
	return s
}

// fsmActOnIcrq handles a peer's incoming-call request: record the
// peer's identifiers and reply with an ICRP advertising the local
// session id, circuit up, the default layer 2 specific sublayer, and
// mandatory data sequencing.
func (s *session) fsmActOnIcrq(args []interface{}) {
	avps := args[0].([]avp)

	peerID, err := findUint32Avp(avps, vendorIDIetf, avpTypeLocalSessionID)
	if err != nil {
		level.Error(s.logger).Log(
			"message", "call request lacks a session id",
			"error", err)
		s.abort()
		return
	}
	s.peerID = peerID

	if pw, err := findUint16Avp(avps, vendorIDIetf, avpTypePseudowireType); err == nil {
		s.pwType = PseudowireType(pw)
	}
	if reid, err := findBytesAvp(avps, vendorIDIetf, avpTypeRemoteEndID); err == nil {
		s.remoteEndID = string(reid)
	}

	localID, err := newAvp(vendorIDIetf, avpTypeLocalSessionID, s.id)
	if err == nil {
		var remoteID, circuit, sublayer, sequencing *avp
		remoteID, err = newAvp(vendorIDIetf, avpTypeRemoteSessionID, s.peerID)
		if err == nil {
			circuit, err = newAvp(vendorIDIetf, avpTypeCircuitStatus, icrpCircuitStatus)
		}
		if err == nil {
			sublayer, err = newAvp(vendorIDIetf, avpTypeL2SpecificSublayer, icrpL2SpecificSublayer)
		}
		if err == nil {
			sequencing, err = newAvp(vendorIDIetf, avpTypeDataSequencing, icrpDataSequencing)
		}
		if err == nil {
			err = s.conn.sendMessage(vendorIDIetf, avpMsgTypeIcrp,
				[]avp{*localID, *remoteID, *circuit, *sublayer, *sequencing})
		}
	}
	if err != nil {
		level.Error(s.logger).Log("message", "failed to send icrp", "error", err)
		s.abort()
		return
	}

	level.Debug(s.logger).Log(
		"message", "call requested",
		"peer_session_id", s.peerID,
		"pseudowire_type", uint16(s.pwType),
		"remote_end_id", s.remoteEndID)
}

// fsmActOnIccn completes the call handshake: the session becomes
// operational and the traffic relay is told about it so data-plane
// frames can start flowing to the local consumer.
func (s *session) fsmActOnIccn(args []interface{}) {
	if err := s.conn.ctx.relay.SessionUp(s.id, s.peerID, s.remoteEndID); err != nil {
		level.Error(s.logger).Log(
			"message", "traffic relay rejected session",
			"error", err)
		s.abort()
		return
	}
	s.established = true

	level.Info(s.logger).Log(
		"message", "session up",
		"peer_session_id", s.peerID,
		"remote_end_id", s.remoteEndID)

	s.conn.ctx.handleUserEvent(&SessionUpEvent{
		ConnectionID:  s.conn.id,
		SessionID:     s.id,
		PeerSessionID: s.peerID,
		Pseudowire:    s.pwType,
		RemoteEndID:   s.remoteEndID,
	})
}

func (s *session) fsmActClose(args []interface{}) {
	if s.established {
		s.established = false
		s.conn.ctx.relay.SessionDown(s.id)
		s.conn.ctx.handleUserEvent(&SessionDownEvent{
			ConnectionID:  s.conn.id,
			SessionID:     s.id,
			PeerSessionID: s.peerID,
			Pseudowire:    s.pwType,
			RemoteEndID:   s.remoteEndID,
		})
	}
	s.conn.removeSession(s)
	level.Info(s.logger).Log("message", "session closed")
}

// kill tears the session down without any protocol exchange.  Used on
// parent connection teardown.
func (s *session) kill() {
	if s.fsm.state() == "dead" {
		return
	}
	_ = s.fsm.handleEvent("kill")
}

// abort rejects session establishment: the peer gets a CDN naming its
// session id, and the session is released.
func (s *session) abort() {
	if err := s.conn.sendCdn(s.id, s.peerID, avpCDNResultCodeGeneralError); err != nil {
		level.Error(s.logger).Log("message", "failed to send cdn", "error", err)
	}
	if s.fsm.state() != "dead" {
		_ = s.fsm.handleEvent("kill")
	}
}
