package l2tp

import "time"

// transportConfig represents the tunable parameters governing the
// behaviour of the reliable transport algorithm.
type transportConfig struct {
	// Duration to wait after the last message exchange before
	// sending a HELLO keepalive message.  If set to 0, no HELLO
	// messages are transmitted.
	HelloTimeout time.Duration
	// Maximum number of retransmits of an unacknowledged control
	// message before the connection is deemed failed.
	MaxRetries uint
	// Duration to wait before the first retransmit of an
	// unacknowledged message.  Subsequent retransmits back off
	// exponentially.
	RetryTimeout time.Duration
	// Duration to wait after accepting an in-sequence message
	// before sending an explicit acknowledgement if no substantive
	// reply has gone out in the meantime.
	AckTimeout time.Duration
}

func defaultTransportConfig() transportConfig {
	return transportConfig{
		MaxRetries:   defaultMaxRetries,
		RetryTimeout: defaultRetryTimeout,
		AckTimeout:   defaultAckTimeout,
	}
}

func sanitiseTransportConfig(cfg *transportConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryTimeout == 0 {
		cfg.RetryTimeout = defaultRetryTimeout
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = defaultAckTimeout
	}
}

// pendingCtlMsg is a transmitted control message retained until the
// peer acknowledges it.  Retransmission reuses the stored bytes: the
// message goes out byte-identical, same Ns and same digest.
type pendingCtlMsg struct {
	ns    uint16
	b     []byte
	nretx uint
}

// transport tracks the sequence number, acknowledgement and
// retransmission state for one control connection.  All methods are
// called from the engine goroutine only.
type transport struct {
	cfg transportConfig
	// ns is the sequence number of the next message to transmit.
	ns uint16
	// nr is the sequence number expected in the next message from
	// the peer, echoed in every transmitted header.
	nr uint16
	// txQueue holds transmitted messages awaiting acknowledgement,
	// oldest first.
	txQueue []*pendingCtlMsg
	// ackPending is set when an in-sequence message has been
	// accepted and no reply carrying the updated nr has gone out.
	ackPending bool
}

func newTransport(cfg transportConfig) *transport {
	sanitiseTransportConfig(&cfg)
	return &transport{cfg: cfg}
}

func seqIncrement(v uint16) uint16 {
	return v + 1
}

// seqCompare returns -1, 0 or 1 depending on whether a precedes,
// equals or follows b in modulo-65536 sequence space.
func seqCompare(a, b uint16) int {
	if a == b {
		return 0
	}
	if b-a < 0x8000 {
		return -1
	}
	return 1
}

// assignSeq stamps the message with the current send and receive
// sequence numbers and advances the send sequence.  Every transmission
// consumes an Ns value, explicit acknowledgements included.
func (t *transport) assignSeq(msg *controlMessage) {
	msg.setSeq(t.ns, t.nr)
	t.ns = seqIncrement(t.ns)
}

// retain queues a transmitted message for retransmission until the
// peer acknowledges it.
func (t *transport) retain(ns uint16, b []byte) {
	t.txQueue = append(t.txQueue, &pendingCtlMsg{ns: ns, b: b})
}

// recvSeq processes the send sequence number of a received message.
// An in-sequence message advances nr and returns (true, false).  A
// duplicate of an already-received message returns (false, true) and
// must not be dispatched again.  An out-of-order message from the
// future returns (false, false): it is processed without advancing nr.
func (t *transport) recvSeq(ns uint16) (advanced, duplicate bool) {
	switch seqCompare(ns, t.nr) {
	case 0:
		t.nr = seqIncrement(t.nr)
		return true, false
	case -1:
		return false, true
	}
	return false, false
}

// ackedBy releases queued messages acknowledged by a received nr:
// every pending message whose ns precedes nr has been seen by the
// peer.  Returns the number of messages released and whether any
// remain queued.
func (t *transport) ackedBy(nr uint16) (released int, remaining bool) {
	for len(t.txQueue) > 0 && seqCompare(t.txQueue[0].ns, nr) < 0 {
		t.txQueue = t.txQueue[1:]
		released++
	}
	return released, len(t.txQueue) > 0
}

// retryHead prepares the oldest unacknowledged message for
// retransmission.  Returns nil if the retry budget is exhausted or
// nothing is queued.
func (t *transport) retryHead() (b []byte, exhausted bool) {
	if len(t.txQueue) == 0 {
		return nil, false
	}
	head := t.txQueue[0]
	if head.nretx >= t.cfg.MaxRetries {
		return nil, true
	}
	head.nretx++
	return head.b, false
}

func (t *transport) pending() int {
	return len(t.txQueue)
}

// reset drops all queued messages.  Called on connection teardown.
func (t *transport) reset() {
	t.txQueue = nil
	t.ackPending = false
}
