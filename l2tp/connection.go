package l2tp

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sys/unix"
)

// peerIdentity captures what is known about the remote end of a
// control connection.  The address is learned from the first datagram
// (or given on OpenConnection); the rest arrives in the peer's SCCRQ
// or SCCRP.
type peerIdentity struct {
	addr unix.Sockaddr
	// key is the string form of addr, used for routing inbound
	// control messages since the profile carries no connection id in
	// the header.
	key      string
	hostName string
	routerID uint32
	// ccid is the connection id the peer assigned to this
	// connection, echoed in the header of every transmitted message.
	ccid uint32
}

// connection is a single control connection with one peer.  All fields
// are owned by the engine goroutine.
type connection struct {
	ctx    *Context
	logger log.Logger
	// id is the locally assigned connection id, advertised to the
	// peer in the Assigned Connection ID AVP.
	id    uint32
	peer  peerIdentity
	fsm   fsm
	conf  fsm
	xport *transport
	// sessions maps local session id to session.
	sessions map[uint32]*session

	ackTimer   *time.Timer
	retryTimer *time.Timer
	helloTimer *time.Timer
	retryDelay time.Duration

	// txCount counts transmissions, used to detect whether handling
	// a received message produced a reply.
	txCount uint64
}

func newConnection(ctx *Context, id uint32, peerAddr unix.Sockaddr) *connection {
	c := &connection{
		ctx:      ctx,
		logger:   log.With(ctx.logger, "connection_id", id),
		id:       id,
		sessions: make(map[uint32]*session),
		xport: newTransport(transportConfig{
			HelloTimeout: ctx.cfg.HelloTimeout,
			MaxRetries:   ctx.cfg.MaxRetries,
			RetryTimeout: ctx.cfg.RetryTimeout,
			AckTimeout:   ctx.cfg.AckTimeout,
		}),
	}
	c.peer.addr = peerAddr
	c.peer.key = sockaddrKey(peerAddr)
	c.fsm = fsm{
		current: "idle",
		table: []eventDesc{
			// Responder path.
			{from: "idle", events: []string{"sccrq"}, cb: c.fsmActOnSccrq, to: "waitconnconfirm"},
			{from: "waitconnconfirm", events: []string{"scccn"}, cb: c.fsmActOnScccn, to: "established"},

			// Initiator path.
			{from: "idle", events: []string{"open"}, cb: c.fsmActOpen, to: "waitconnreply"},
			{from: "waitconnreply", events: []string{"sccrp"}, cb: c.fsmActOnSccrp, to: "established"},

			// Teardown.  The stopccn transitions run the teardown
			// callback; close transitions are used by down() which
			// performs the teardown itself.
			{from: "idle", events: []string{"stopccn"}, cb: c.fsmActOnStopccn, to: "dead"},
			{from: "waitconnconfirm", events: []string{"stopccn"}, cb: c.fsmActOnStopccn, to: "dead"},
			{from: "waitconnreply", events: []string{"stopccn"}, cb: c.fsmActOnStopccn, to: "dead"},
			{from: "established", events: []string{"stopccn"}, cb: c.fsmActOnStopccn, to: "dead"},
			{from: "idle", events: []string{"close"}, to: "dead"},
			{from: "waitconnconfirm", events: []string{"close"}, to: "dead"},
			{from: "waitconnreply", events: []string{"close"}, to: "dead"},
			{from: "established", events: []string{"close"}, to: "dead"},
		},
	}
	c.conf = fsm{
		current: "idle",
		table: []eventDesc{
			// Our own transport configuration exchange, started once
			// the connection establishes as responder.
			{from: "idle", events: []string{"start"}, cb: c.confActSendTcrq, to: "waittcrp"},
			{from: "waittcrp", events: []string{"tcrp"}, cb: c.confActSendAltcrq, to: "waitaltcrp"},
			{from: "waitaltcrp", events: []string{"altcrp"}, cb: c.confActComplete, to: "done"},

			// The peer may run its own exchange at any point; answer
			// its requests from whatever state we are in.
			{from: "idle", events: []string{"tcrq"}, cb: c.confActOnTcrq, to: "idle"},
			{from: "idle", events: []string{"altcrq"}, cb: c.confActOnAltcrq, to: "idle"},
			{from: "waittcrp", events: []string{"tcrq"}, cb: c.confActOnTcrq, to: "waittcrp"},
			{from: "waittcrp", events: []string{"altcrq"}, cb: c.confActOnAltcrq, to: "waittcrp"},
			{from: "waitaltcrp", events: []string{"tcrq"}, cb: c.confActOnTcrq, to: "waitaltcrp"},
			{from: "waitaltcrp", events: []string{"altcrq"}, cb: c.confActOnAltcrq, to: "waitaltcrp"},
			{from: "done", events: []string{"tcrq"}, cb: c.confActOnTcrq, to: "done"},
			{from: "done", events: []string{"altcrq"}, cb: c.confActOnAltcrq, to: "done"},
		},
	}
	return c
}

// handleMessage dispatches a validated, parsed control message.
func (c *connection) handleMessage(m *controlMessage, vendorID avpVendorID, mt avpMsgType) {
	advanced, duplicate := c.xport.recvSeq(m.ns())
	if _, remaining := c.xport.ackedBy(m.nr()); !remaining {
		c.stopRetryTimer()
	}
	c.touchHelloTimer()
	c.ctx.metrics.ControlRx(c.peer.key)

	level.Debug(c.logger).Log(
		"message", "rx",
		"message_type", msgTypeName(vendorID, mt),
		"ns", m.ns(), "nr", m.nr())

	isAck := vendorID == vendorIDIetf && mt == avpMsgTypeAck

	if duplicate {
		// Peer retransmission of a message already handled.  Any
		// reply it lost will go out again from the retry queue; make
		// sure an acknowledgement reaches the peer either way.
		if !isAck {
			c.scheduleAck()
		}
		return
	}

	txBefore := c.txCount

	var err error
	switch {
	case vendorID == vendorIDEricsson:
		if c.fsm.state() != "established" {
			err = fmt.Errorf("%v received while connection is %v",
				msgTypeName(vendorID, mt), c.fsm.state())
		} else {
			err = c.conf.handleEvent(msgTypeName(vendorID, mt), m.avps)
		}
	case isAck:
		// Sequence bookkeeping above is all an ACK carries.
	case mt == avpMsgTypeHello:
		// Keepalive, acknowledged below.
	case mt == avpMsgTypeSccrq, mt == avpMsgTypeSccrp,
		mt == avpMsgTypeScccn, mt == avpMsgTypeStopccn:
		err = c.fsm.handleEvent(msgTypeName(vendorID, mt), m.avps)
	case mt == avpMsgTypeIcrq, mt == avpMsgTypeIcrp,
		mt == avpMsgTypeIccn, mt == avpMsgTypeCdn:
		err = c.handleSessionMessage(mt, m.avps)
	default:
		err = fmt.Errorf("unhandled message type %v", uint16(mt))
	}

	if err != nil {
		c.ctx.metrics.ProtocolError(c.peer.key)
		level.Error(c.logger).Log(
			"message", "protocol error",
			"message_type", msgTypeName(vendorID, mt),
			"error", err)
		// A protocol error during the handshake aborts the attempt.
		if c.fsm.state() != "established" && c.fsm.state() != "dead" {
			c.down(fmt.Sprintf("protocol error: %v", err), false)
			return
		}
	}

	// If the message advanced the receive window and handling it
	// produced no reply carrying the updated nr, send an explicit
	// acknowledgement once the ack timer fires.
	if advanced && !isAck && c.txCount == txBefore && c.fsm.state() != "dead" {
		c.scheduleAck()
	}
}

func (c *connection) handleSessionMessage(mt avpMsgType, avps []avp) error {
	if c.fsm.state() != "established" {
		return fmt.Errorf("%v received while connection is %v",
			msgTypeName(vendorIDIetf, mt), c.fsm.state())
	}
	switch mt {
	case avpMsgTypeIcrq:
		return c.handleIcrq(avps)
	case avpMsgTypeIccn:
		s, err := c.findSessionForMessage(avps)
		if err != nil {
			return err
		}
		return s.fsm.handleEvent("iccn", avps)
	case avpMsgTypeCdn:
		s, err := c.findSessionForMessage(avps)
		if err != nil {
			return err
		}
		return s.fsm.handleEvent("cdn", avps)
	}
	// ICRP: this profile never places outgoing calls.
	return fmt.Errorf("unexpected session message %v", msgTypeName(vendorIDIetf, mt))
}

// handleIcrq instantiates a session for a peer's incoming-call request.
// If no session id can be allocated the call is rejected with a CDN.
func (c *connection) handleIcrq(avps []avp) error {
	id, err := c.ctx.allocSessionID()
	if err != nil {
		peerID, _ := findUint32Avp(avps, vendorIDIetf, avpTypeLocalSessionID)
		if cdnErr := c.sendCdn(0, peerID, avpCDNResultCodeNoResources); cdnErr != nil {
			level.Error(c.logger).Log("message", "failed to send cdn", "error", cdnErr)
		}
		return err
	}
	s := newSession(c, id)
	c.sessions[id] = s
	c.ctx.registerSession(s)
	return s.fsm.handleEvent("icrq", avps)
}

func (c *connection) findSessionForMessage(avps []avp) (*session, error) {
	sid, err := findUint32Avp(avps, vendorIDIetf, avpTypeRemoteSessionID)
	if err != nil {
		return nil, fmt.Errorf("message carries no remote session id: %v", err)
	}
	s, ok := c.sessions[sid]
	if !ok {
		return nil, fmt.Errorf("no session with id %v", sid)
	}
	return s, nil
}

func (c *connection) removeSession(s *session) {
	delete(c.sessions, s.id)
	c.ctx.unregisterSession(s)
}

// sendMessage serialises and transmits a control message: the
// control-message-type AVP first, the digest AVP second, then the
// payload AVPs.  Reliable messages are retained for retransmission
// until the peer acknowledges them.
func (c *connection) sendMessage(vendorID avpVendorID, mt avpMsgType, payload []avp) error {
	var msgType *avp
	var err error
	if vendorID == vendorIDEricsson {
		msgType, err = newAvp(vendorIDEricsson, avpTypeVendorMessage, mt)
	} else {
		msgType, err = newAvp(vendorIDIetf, avpTypeMessage, mt)
	}
	if err != nil {
		return err
	}
	digest, err := newAvp(vendorIDIetf, avpTypeMessageDigest, make([]byte, digestAvpValueLen))
	if err != nil {
		return err
	}

	avps := make([]avp, 0, 2+len(payload))
	avps = append(avps, *msgType, *digest)
	avps = append(avps, payload...)

	msg := newControlMessage(c.peer.ccid, avps)
	c.xport.assignSeq(msg)
	b, err := msg.toBytes()
	if err != nil {
		return err
	}
	if err = digestUpdateInPlace(b); err != nil {
		return err
	}

	reliable := !(vendorID == vendorIDIetf && mt == avpMsgTypeAck)
	if reliable {
		c.xport.retain(msg.ns(), b)
		c.armRetryTimer()
	}

	// Every transmission carries the current nr, so any pending
	// explicit acknowledgement is now covered.
	c.xport.ackPending = false
	c.stopAckTimer()
	c.touchHelloTimer()
	c.txCount++

	level.Debug(c.logger).Log(
		"message", "tx",
		"message_type", msgTypeName(vendorID, mt),
		"ns", msg.ns(), "nr", msg.nr())
	c.ctx.metrics.ControlTx(c.peer.key)

	return c.ctx.sendFrame(c.peer.addr, b)
}

func (c *connection) sendCdn(localID, peerID uint32, result avpResultCode) error {
	rcAvp, err := newAvp(vendorIDIetf, avpTypeResultCode, resultCode{result: result})
	if err != nil {
		return err
	}
	local, err := newAvp(vendorIDIetf, avpTypeLocalSessionID, localID)
	if err != nil {
		return err
	}
	remote, err := newAvp(vendorIDIetf, avpTypeRemoteSessionID, peerID)
	if err != nil {
		return err
	}
	return c.sendMessage(vendorIDIetf, avpMsgTypeCdn, []avp{*rcAvp, *local, *remote})
}

// fsmActOnSccrq handles the peer's connection request: learn the
// peer's identity and reply with an SCCRP advertising ours.
func (c *connection) fsmActOnSccrq(args []interface{}) {
	avps := args[0].([]avp)

	ccid, err := findUint32Avp(avps, vendorIDIetf, avpTypeAssignedConnID)
	if err != nil {
		level.Error(c.logger).Log(
			"message", "connection request lacks an assigned connection id",
			"error", err)
		c.down("malformed sccrq", false)
		return
	}
	c.peer.ccid = ccid
	if hostName, err := findStringAvp(avps, vendorIDIetf, avpTypeHostName); err == nil {
		c.peer.hostName = hostName
	}
	if routerID, err := findUint32Avp(avps, vendorIDIetf, avpTypeRouterID); err == nil {
		c.peer.routerID = routerID
	}

	level.Info(c.logger).Log(
		"message", "connection requested",
		"peer_connection_id", c.peer.ccid,
		"peer_host_name", c.peer.hostName,
		"peer_router_id", c.peer.routerID)

	if err := c.sendSccrp(); err != nil {
		level.Error(c.logger).Log("message", "failed to send sccrp", "error", err)
		c.down("transmit failure", false)
	}
}

func (c *connection) sendSccrp() error {
	assignedID, err := newAvp(vendorIDIetf, avpTypeAssignedConnID, c.id)
	if err != nil {
		return err
	}
	protoVer, err := newAvp(vendorIDEricsson, avpTypeVendorProtocolVersion, vendorProtocolVersion)
	if err != nil {
		return err
	}
	hostName, err := newAvp(vendorIDIetf, avpTypeHostName, c.ctx.cfg.HostName)
	if err != nil {
		return err
	}
	routerID, err := newAvp(vendorIDIetf, avpTypeRouterID, c.ctx.cfg.RouterID)
	if err != nil {
		return err
	}
	pwCaps, err := newAvp(vendorIDIetf, avpTypePseudowireCaps, pseudowireCapsList)
	if err != nil {
		return err
	}
	return c.sendMessage(vendorIDIetf, avpMsgTypeSccrp,
		[]avp{*assignedID, *protoVer, *hostName, *routerID, *pwCaps})
}

// fsmActOnScccn completes the handshake as responder.  The connection
// is up; kick off the transport configuration exchange.
func (c *connection) fsmActOnScccn(args []interface{}) {
	avps := args[0].([]avp)

	// The connection-confirm may repeat the peer's identity.  A
	// mismatch with the request is suspicious but not fatal.
	if hostName, err := findStringAvp(avps, vendorIDIetf, avpTypeHostName); err == nil &&
		c.peer.hostName != "" && hostName != c.peer.hostName {
		level.Warn(c.logger).Log(
			"message", "peer host name changed during handshake",
			"old", c.peer.hostName, "new", hostName)
	}

	c.up()

	if err := c.conf.handleEvent("start"); err != nil {
		level.Error(c.logger).Log("message", "failed to start configuration exchange", "error", err)
	}
}

// fsmActOpen starts the handshake as initiator.
func (c *connection) fsmActOpen(args []interface{}) {
	assignedID, err := newAvp(vendorIDIetf, avpTypeAssignedConnID, c.id)
	if err == nil {
		var hostName, routerID, pwCaps *avp
		hostName, err = newAvp(vendorIDIetf, avpTypeHostName, c.ctx.cfg.HostName)
		if err == nil {
			routerID, err = newAvp(vendorIDIetf, avpTypeRouterID, c.ctx.cfg.RouterID)
		}
		if err == nil {
			pwCaps, err = newAvp(vendorIDIetf, avpTypePseudowireCaps, pseudowireCapsList)
		}
		if err == nil {
			err = c.sendMessage(vendorIDIetf, avpMsgTypeSccrq,
				[]avp{*assignedID, *hostName, *routerID, *pwCaps})
		}
	}
	if err != nil {
		level.Error(c.logger).Log("message", "failed to send sccrq", "error", err)
		c.down("transmit failure", false)
	}
}

// fsmActOnSccrp completes the handshake as initiator.
func (c *connection) fsmActOnSccrp(args []interface{}) {
	avps := args[0].([]avp)

	ccid, err := findUint32Avp(avps, vendorIDIetf, avpTypeAssignedConnID)
	if err != nil {
		level.Error(c.logger).Log(
			"message", "connection reply lacks an assigned connection id",
			"error", err)
		c.down("malformed sccrp", false)
		return
	}
	c.peer.ccid = ccid
	if hostName, err := findStringAvp(avps, vendorIDIetf, avpTypeHostName); err == nil {
		c.peer.hostName = hostName
	}
	if routerID, err := findUint32Avp(avps, vendorIDIetf, avpTypeRouterID); err == nil {
		c.peer.routerID = routerID
	}

	if err := c.sendMessage(vendorIDIetf, avpMsgTypeScccn, nil); err != nil {
		level.Error(c.logger).Log("message", "failed to send scccn", "error", err)
		c.down("transmit failure", false)
		return
	}

	// As initiator we answer the peer's configuration exchange but
	// do not run one of our own.
	c.up()
}

func (c *connection) fsmActOnStopccn(args []interface{}) {
	avps := args[0].([]avp)
	reason := "closed by peer"
	if rcAvp, err := findAvp(avps, vendorIDIetf, avpTypeResultCode); err == nil {
		if rc, err := rcAvp.decodeResultCode(); err == nil {
			reason = fmt.Sprintf("closed by peer: result %v", uint16(rc.result))
		}
	}
	// Acknowledge before releasing state: with the connection gone the
	// peer's StopCCN retransmissions would otherwise go unanswered
	// until its retry budget expired.
	if err := c.sendMessage(vendorIDIetf, avpMsgTypeAck, nil); err != nil {
		level.Error(c.logger).Log("message", "failed to ack stopccn", "error", err)
	}
	c.teardown(reason)
}

// up marks the connection established and notifies subscribers.
func (c *connection) up() {
	level.Info(c.logger).Log(
		"message", "connection up",
		"peer_connection_id", c.peer.ccid,
		"peer_host_name", c.peer.hostName,
		"peer_router_id", c.peer.routerID,
		"peer_addr", c.peer.key)

	c.touchHelloTimer()

	c.ctx.handleUserEvent(&ConnectionUpEvent{
		ConnectionID:     c.id,
		PeerConnectionID: c.peer.ccid,
		PeerHostName:     c.peer.hostName,
		PeerRouterID:     c.peer.routerID,
		PeerAddr:         c.peer.key,
	})
}

// down closes the connection locally.  When sendStop is set and the
// handshake has progressed far enough for the peer to know us, a
// StopCCN is sent first.
func (c *connection) down(reason string, sendStop bool) {
	if c.fsm.state() == "dead" {
		return
	}
	if sendStop && c.fsm.state() != "idle" {
		rcAvp, err := newAvp(vendorIDIetf, avpTypeResultCode,
			resultCode{result: avpStopCCNResultCodeClearConnection})
		if err == nil {
			err = c.sendMessage(vendorIDIetf, avpMsgTypeStopccn, []avp{*rcAvp})
		}
		if err != nil {
			level.Error(c.logger).Log("message", "failed to send stopccn", "error", err)
		}
	}
	_ = c.fsm.handleEvent("close")
	c.teardown(reason)
}

// teardown releases everything the connection owns.  The fsm is
// already in the dead state when this runs.
func (c *connection) teardown(reason string) {
	for _, s := range c.sessions {
		s.kill()
	}
	c.xport.reset()
	c.stopAckTimer()
	c.stopRetryTimer()
	c.stopHelloTimer()
	c.ctx.unregisterConnection(c)

	level.Info(c.logger).Log("message", "connection down", "reason", reason)

	c.ctx.handleUserEvent(&ConnectionDownEvent{
		ConnectionID:     c.id,
		PeerConnectionID: c.peer.ccid,
		PeerHostName:     c.peer.hostName,
		PeerRouterID:     c.peer.routerID,
		PeerAddr:         c.peer.key,
		Reason:           reason,
	})
}

// Vendor configuration exchange callbacks.

func (c *connection) confActSendTcrq(args []interface{}) {
	cfgAvp, err := newAvp(vendorIDEricsson, avpTypeVendorTransportCfg, defaultTransportConfigDesc)
	if err == nil {
		err = c.sendMessage(vendorIDEricsson, vendorMsgTypeTcrq, []avp{*cfgAvp})
	}
	if err != nil {
		level.Error(c.logger).Log("message", "failed to send tcrq", "error", err)
	}
}

func (c *connection) confActSendAltcrq(args []interface{}) {
	mapAvp, err := newAvp(vendorIDEricsson, avpTypeVendorTeiSubchannelMap, defaultTeiSubchannelMap)
	if err == nil {
		err = c.sendMessage(vendorIDEricsson, vendorMsgTypeAltcrq, []avp{*mapAvp})
	}
	if err != nil {
		level.Error(c.logger).Log("message", "failed to send altcrq", "error", err)
	}
}

func (c *connection) confActComplete(args []interface{}) {
	level.Info(c.logger).Log("message", "traffic channel configuration complete")
}

// confActOnTcrq answers a peer's transport configuration request by
// echoing the configuration back.
func (c *connection) confActOnTcrq(args []interface{}) {
	avps := args[0].([]avp)
	cfg := defaultTransportConfigDesc
	if b, err := findBytesAvp(avps, vendorIDEricsson, avpTypeVendorTransportCfg); err == nil {
		cfg = b
	}
	cfgAvp, err := newAvp(vendorIDEricsson, avpTypeVendorTransportCfg, cfg)
	if err == nil {
		err = c.sendMessage(vendorIDEricsson, vendorMsgTypeTcrp, []avp{*cfgAvp})
	}
	if err != nil {
		level.Error(c.logger).Log("message", "failed to send tcrp", "error", err)
	}
}

func (c *connection) confActOnAltcrq(args []interface{}) {
	avps := args[0].([]avp)
	teiMap := defaultTeiSubchannelMap
	if b, err := findBytesAvp(avps, vendorIDEricsson, avpTypeVendorTeiSubchannelMap); err == nil {
		teiMap = b
	}
	mapAvp, err := newAvp(vendorIDEricsson, avpTypeVendorTeiSubchannelMap, teiMap)
	if err == nil {
		err = c.sendMessage(vendorIDEricsson, vendorMsgTypeAltcrp, []avp{*mapAvp})
	}
	if err != nil {
		level.Error(c.logger).Log("message", "failed to send altcrp", "error", err)
	}
}

// Timer management.  Timers post events to the engine loop rather than
// running their callbacks on the runtime timer goroutine.

func (c *connection) scheduleAck() {
	c.xport.ackPending = true
	if c.ackTimer == nil {
		c.ackTimer = c.ctx.afterFunc(c.id, timerAck, c.xport.cfg.AckTimeout)
	}
}

func (c *connection) stopAckTimer() {
	if c.ackTimer != nil {
		c.ackTimer.Stop()
		c.ackTimer = nil
	}
}

func (c *connection) armRetryTimer() {
	if c.retryTimer == nil {
		c.retryDelay = c.xport.cfg.RetryTimeout
		c.retryTimer = c.ctx.afterFunc(c.id, timerRetry, c.retryDelay)
	}
}

func (c *connection) stopRetryTimer() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

// touchHelloTimer pushes back the keepalive deadline on any control
// message exchange.  Keepalives only run on established connections
// with a configured hello timeout.
func (c *connection) touchHelloTimer() {
	if c.xport.cfg.HelloTimeout == 0 || c.fsm.state() != "established" {
		return
	}
	c.stopHelloTimer()
	c.helloTimer = c.ctx.afterFunc(c.id, timerHello, c.xport.cfg.HelloTimeout)
}

func (c *connection) stopHelloTimer() {
	if c.helloTimer != nil {
		c.helloTimer.Stop()
		c.helloTimer = nil
	}
}

func (c *connection) onAckTimeout() {
	c.ackTimer = nil
	if !c.xport.ackPending || c.fsm.state() == "dead" {
		return
	}
	if err := c.sendMessage(vendorIDIetf, avpMsgTypeAck, nil); err != nil {
		level.Error(c.logger).Log("message", "failed to send ack", "error", err)
	}
}

// onRetryTimeout retransmits the oldest unacknowledged message
// byte-identical, backing off exponentially.  When the retry budget is
// spent the peer is deemed unresponsive and the connection closed.
func (c *connection) onRetryTimeout() {
	c.retryTimer = nil
	if c.fsm.state() == "dead" {
		return
	}
	b, exhausted := c.xport.retryHead()
	if exhausted {
		level.Error(c.logger).Log(
			"message", "peer unresponsive",
			"retries", c.xport.cfg.MaxRetries)
		c.down("peer unresponsive", false)
		return
	}
	if b == nil {
		return
	}
	c.ctx.metrics.Retransmit(c.peer.key)
	level.Debug(c.logger).Log("message", "retransmit", "frame_len", len(b))
	if err := c.ctx.sendFrame(c.peer.addr, b); err != nil {
		level.Error(c.logger).Log("message", "retransmit failed", "error", err)
	}
	c.retryDelay *= 2
	c.retryTimer = c.ctx.afterFunc(c.id, timerRetry, c.retryDelay)
}

func (c *connection) onHelloTimeout() {
	c.helloTimer = nil
	if c.fsm.state() != "established" {
		return
	}
	if err := c.sendMessage(vendorIDIetf, avpMsgTypeHello, nil); err != nil {
		level.Error(c.logger).Log("message", "failed to send hello", "error", err)
	}
}
