package l2tp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sys/unix"

	l2tpmetrics "github.com/pwlink/esl2tpd/internal/metrics"
)

// ContextConfig encodes top-level configuration for a Context.
type ContextConfig struct {
	// Listen is the local IP address to bind the control socket to.
	// An empty string binds the IPv4 wildcard address.
	Listen string
	// HostName is advertised to peers during connection setup.
	HostName string
	// RouterID is advertised to peers during connection setup.
	RouterID uint32
	// HelloTimeout enables keepalives on established connections
	// when non-zero.
	HelloTimeout time.Duration
	// RetryTimeout is the delay before the first retransmission of
	// an unacknowledged message.  Zero selects the default.
	RetryTimeout time.Duration
	// AckTimeout is the delay before sending an explicit
	// acknowledgement.  Zero selects the default.
	AckTimeout time.Duration
	// MaxRetries bounds retransmissions of a single message.  Zero
	// selects the default.
	MaxRetries uint
	// Metrics receives protocol counters.  May be nil.
	Metrics *l2tpmetrics.Collector
}

// wireWriter sends an encapsulated frame to a peer.  It exists to
// allow tests to capture transmissions without a real socket.
type wireWriter interface {
	sendTo(b []byte, addr unix.Sockaddr) error
}

type timerKind int

const (
	timerRetry timerKind = iota
	timerAck
	timerHello
)

type timerEvent struct {
	ccid uint32
	kind timerKind
}

type rawFrame struct {
	b    []byte
	from unix.Sockaddr
}

// Context is an instance of the control protocol engine.  All protocol
// state is owned by the single goroutine running Run: socket reads,
// timer expiries and administrative commands are funneled into it over
// channels.
type Context struct {
	logger  log.Logger
	cfg     ContextConfig
	w       wireWriter
	cp      *controlPlane
	relay   TrafficRelay
	metrics *l2tpmetrics.Collector

	conns        map[uint32]*connection
	connsByPeer  map[string]*connection
	sessionsByID map[uint32]*session
	nextCcid     uint32
	nextSid      uint32

	handlerMu     sync.Mutex
	eventHandlers []EventHandler

	rxChan    chan rawFrame
	timerChan chan timerEvent
	cmdChan   chan func()
	closeChan chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewContext creates a new context, binding the control socket to the
// configured listen address.  Call Run to start the engine and Close
// to shut it down.  A nil relay discards all data-plane traffic; a nil
// logger suppresses all logging.
func NewContext(cfg ContextConfig, relay TrafficRelay, logger log.Logger) (*Context, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	listen := cfg.Listen
	if listen == "" {
		listen = "0.0.0.0"
	}
	cp, err := newControlPlane(listen)
	if err != nil {
		return nil, fmt.Errorf("failed to open control socket on %v: %v", listen, err)
	}
	ctx := newContext(cfg, cp, relay, logger)
	ctx.cp = cp
	return ctx, nil
}

func newContext(cfg ContextConfig, w wireWriter, relay TrafficRelay, logger log.Logger) *Context {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if relay == nil {
		relay = newNullRelay(logger)
	}
	return &Context{
		logger:       logger,
		cfg:          cfg,
		w:            w,
		relay:        relay,
		metrics:      cfg.Metrics,
		conns:        make(map[uint32]*connection),
		connsByPeer:  make(map[string]*connection),
		sessionsByID: make(map[uint32]*session),
		nextCcid:     1,
		nextSid:      1,
		rxChan:       make(chan rawFrame, 16),
		timerChan:    make(chan timerEvent, 64),
		cmdChan:      make(chan func()),
		closeChan:    make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// RegisterEventHandler adds an event handler to be notified of
// connection and session lifecycle events.
func (ctx *Context) RegisterEventHandler(handler EventHandler) {
	ctx.handlerMu.Lock()
	defer ctx.handlerMu.Unlock()
	ctx.eventHandlers = append(ctx.eventHandlers, handler)
}

func (ctx *Context) handleUserEvent(event interface{}) {
	ctx.handlerMu.Lock()
	handlers := ctx.eventHandlers
	ctx.handlerMu.Unlock()
	for _, handler := range handlers {
		handler.HandleEvent(event)
	}
}

// Run is the engine loop.  It blocks until Close is called, processing
// received frames, timer expiries and administrative commands in a
// single goroutine.
func (ctx *Context) Run() {
	defer close(ctx.doneChan)

	if ctx.cp != nil {
		go ctx.readLoop()
	}

	for {
		select {
		case frame := <-ctx.rxChan:
			ctx.handleFrame(frame.b, frame.from)
		case ev := <-ctx.timerChan:
			ctx.handleTimer(ev)
		case cmd := <-ctx.cmdChan:
			cmd()
		case <-ctx.closeChan:
			ctx.teardownAll()
			if ctx.cp != nil {
				ctx.cp.close()
			}
			ctx.relay.Close()
			return
		}
	}
}

// Close shuts the engine down, closing all connections with a StopCCN.
// It blocks until Run has returned.  Close must not be called before
// Run has been started.
func (ctx *Context) Close() {
	ctx.closeOnce.Do(func() { close(ctx.closeChan) })
	<-ctx.doneChan
}

func (ctx *Context) readLoop() {
	for {
		buf := make([]byte, 4096)
		n, from, err := ctx.cp.recvFrom(buf)
		if err != nil {
			select {
			case <-ctx.closeChan:
			default:
				level.Error(ctx.logger).Log("message", "control socket read failed", "error", err)
			}
			return
		}
		select {
		case ctx.rxChan <- rawFrame{b: buf[:n], from: from}:
		case <-ctx.closeChan:
			return
		}
	}
}

// OpenConnection initiates a control connection towards the given peer
// IP address, returning the locally assigned connection id.  The
// handshake proceeds asynchronously; subscribe an EventHandler to
// learn its outcome.
func (ctx *Context) OpenConnection(peerAddr string) (uint32, error) {
	sa, err := peerSockaddr(peerAddr)
	if err != nil {
		return 0, err
	}
	type result struct {
		id  uint32
		err error
	}
	resCh := make(chan result, 1)
	err = ctx.do(func() {
		id, err := ctx.openConnection(sa)
		resCh <- result{id: id, err: err}
	})
	if err != nil {
		return 0, err
	}
	res := <-resCh
	return res.id, res.err
}

// CloseConnection closes a control connection administratively,
// sending a StopCCN to the peer.
func (ctx *Context) CloseConnection(id uint32) error {
	errCh := make(chan error, 1)
	err := ctx.do(func() {
		conn, ok := ctx.conns[id]
		if !ok {
			errCh <- fmt.Errorf("no connection with id %v", id)
			return
		}
		conn.down("administratively closed", true)
		errCh <- nil
	})
	if err != nil {
		return err
	}
	return <-errCh
}

// do runs a command on the engine goroutine.
func (ctx *Context) do(cmd func()) error {
	select {
	case ctx.cmdChan <- cmd:
		return nil
	case <-ctx.closeChan:
		return errors.New("context is closed")
	}
}

func (ctx *Context) openConnection(peerAddr unix.Sockaddr) (uint32, error) {
	key := sockaddrKey(peerAddr)
	if _, ok := ctx.connsByPeer[key]; ok {
		return 0, fmt.Errorf("connection with peer %v already exists", key)
	}
	id, err := ctx.allocConnectionID()
	if err != nil {
		return 0, err
	}
	conn := newConnection(ctx, id, peerAddr)
	ctx.registerConnection(conn)
	if err := conn.fsm.handleEvent("open"); err != nil {
		return 0, err
	}
	return id, nil
}

// handleFrame demultiplexes one received datagram.  The first four
// octets carry the session id: zero means a control message, anything
// else a data-plane frame for an established session.
func (ctx *Context) handleFrame(b []byte, from unix.Sockaddr) {
	if len(b) < 4 {
		level.Debug(ctx.logger).Log("message", "runt frame dropped", "frame_len", len(b))
		return
	}
	sid := binary.BigEndian.Uint32(b[:4])
	if sid != 0 {
		if s, ok := ctx.sessionsByID[sid]; ok && s.established {
			ctx.relay.ForwardFrame(sid, b[4:])
		} else {
			level.Debug(ctx.logger).Log(
				"message", "data frame for unknown session dropped",
				"session_id", sid)
		}
		return
	}

	peer := sockaddrKey(from)
	cb := b[4:]

	hdr, err := parseControlHeader(cb)
	if err != nil {
		ctx.metrics.ProtocolError(peer)
		level.Error(ctx.logger).Log(
			"message", "invalid control header",
			"peer_addr", peer, "error", err)
		return
	}
	if hdr.Ccid != 0 {
		ctx.metrics.ProtocolError(peer)
		level.Error(ctx.logger).Log(
			"message", "control header carries a non-zero connection id",
			"peer_addr", peer, "ccid", hdr.Ccid)
		return
	}
	cb = cb[:hdr.Len]

	if err := digestVerify(cb); err != nil {
		ctx.metrics.DigestFailure(peer)
		level.Error(ctx.logger).Log(
			"message", "message digest check failed",
			"peer_addr", peer, "error", err)
		return
	}

	msg, err := parseControlMessage(cb)
	if err != nil {
		ctx.metrics.ProtocolError(peer)
		level.Error(ctx.logger).Log(
			"message", "malformed control message",
			"peer_addr", peer, "error", err)
		return
	}
	vendorID, mt, err := msg.classify()
	if err != nil {
		ctx.metrics.ProtocolError(peer)
		level.Error(ctx.logger).Log(
			"message", "unclassifiable control message",
			"peer_addr", peer, "error", err)
		return
	}

	conn, ok := ctx.connsByPeer[peer]
	if !ok {
		// Only a connection request may instantiate state for an
		// unknown peer.
		if vendorID != vendorIDIetf || mt != avpMsgTypeSccrq {
			ctx.metrics.ProtocolError(peer)
			level.Error(ctx.logger).Log(
				"message", "control message from unknown peer dropped",
				"peer_addr", peer,
				"message_type", msgTypeName(vendorID, mt))
			return
		}
		id, err := ctx.allocConnectionID()
		if err != nil {
			level.Error(ctx.logger).Log(
				"message", "cannot accept connection",
				"peer_addr", peer, "error", err)
			return
		}
		conn = newConnection(ctx, id, from)
		ctx.registerConnection(conn)
	}

	conn.handleMessage(msg, vendorID, mt)
}

func (ctx *Context) handleTimer(ev timerEvent) {
	conn, ok := ctx.conns[ev.ccid]
	if !ok {
		return
	}
	switch ev.kind {
	case timerRetry:
		conn.onRetryTimeout()
	case timerAck:
		conn.onAckTimeout()
	case timerHello:
		conn.onHelloTimeout()
	}
}

// afterFunc arms a timer which posts an event to the engine loop on
// expiry, keeping all protocol state mutation on the engine goroutine.
func (ctx *Context) afterFunc(ccid uint32, kind timerKind, d time.Duration) *time.Timer {
	return time.AfterFunc(d, func() {
		select {
		case ctx.timerChan <- timerEvent{ccid: ccid, kind: kind}:
		case <-ctx.closeChan:
		}
	})
}

// sendFrame encapsulates a control message for the wire by prepending
// the zero session id.
func (ctx *Context) sendFrame(addr unix.Sockaddr, b []byte) error {
	frame := make([]byte, 4+len(b))
	copy(frame[4:], b)
	return ctx.w.sendTo(frame, addr)
}

func (ctx *Context) allocConnectionID() (uint32, error) {
	id := ctx.nextCcid
	if id == 0 {
		return 0, errors.New("connection ids exhausted")
	}
	ctx.nextCcid++
	return id, nil
}

func (ctx *Context) allocSessionID() (uint32, error) {
	id := ctx.nextSid
	if id == 0 {
		return 0, errors.New("session ids exhausted")
	}
	ctx.nextSid++
	return id, nil
}

func (ctx *Context) registerConnection(conn *connection) {
	ctx.conns[conn.id] = conn
	ctx.connsByPeer[conn.peer.key] = conn
	ctx.metrics.ConnectionUp()
}

func (ctx *Context) unregisterConnection(conn *connection) {
	if _, ok := ctx.conns[conn.id]; !ok {
		return
	}
	delete(ctx.conns, conn.id)
	delete(ctx.connsByPeer, conn.peer.key)
	ctx.metrics.ConnectionDown()
}

func (ctx *Context) registerSession(s *session) {
	ctx.sessionsByID[s.id] = s
	ctx.metrics.SessionUp()
}

func (ctx *Context) unregisterSession(s *session) {
	if _, ok := ctx.sessionsByID[s.id]; !ok {
		return
	}
	delete(ctx.sessionsByID, s.id)
	ctx.metrics.SessionDown()
}

func (ctx *Context) teardownAll() {
	for _, conn := range ctx.conns {
		conn.down("context closed", true)
	}
}
