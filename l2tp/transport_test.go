package l2tp

import (
	"testing"
)

func TestSeqCompare(t *testing.T) {
	cases := []struct {
		a, b uint16
		want int
	}{
		{0, 0, 0},
		{0, 1, -1},
		{1, 0, 1},
		{32767, 0, 1},
		{32768, 0, -1},
		{0xffff, 0, -1},
		{0, 0xffff, 1},
		{0x8000, 0x8001, -1},
	}
	for _, c := range cases {
		if got := seqCompare(c.a, c.b); got != c.want {
			t.Errorf("seqCompare(%d, %d): expected %d, got %d", c.a, c.b, c.want, got)
		}
	}
}

func TestSeqIncrementWraps(t *testing.T) {
	if got := seqIncrement(0xffff); got != 0 {
		t.Errorf("seqIncrement(0xffff): expected 0, got %d", got)
	}
}

func TestRecvSeq(t *testing.T) {
	xport := newTransport(defaultTransportConfig())

	advanced, duplicate := xport.recvSeq(0)
	if !advanced || duplicate {
		t.Fatalf("in-sequence message: got advanced %v duplicate %v", advanced, duplicate)
	}
	if xport.nr != 1 {
		t.Fatalf("nr: expected 1, got %d", xport.nr)
	}

	// The same ns again is a peer retransmission.
	advanced, duplicate = xport.recvSeq(0)
	if advanced || !duplicate {
		t.Fatalf("duplicate message: got advanced %v duplicate %v", advanced, duplicate)
	}
	if xport.nr != 1 {
		t.Fatalf("nr moved on a duplicate: got %d", xport.nr)
	}

	// A message from the future is processed without moving nr.
	advanced, duplicate = xport.recvSeq(5)
	if advanced || duplicate {
		t.Fatalf("future message: got advanced %v duplicate %v", advanced, duplicate)
	}
	if xport.nr != 1 {
		t.Fatalf("nr moved on an out-of-order message: got %d", xport.nr)
	}
}

func TestAckedBy(t *testing.T) {
	xport := newTransport(defaultTransportConfig())
	for i := uint16(0); i < 3; i++ {
		xport.retain(i, []byte{byte(i)})
	}

	released, remaining := xport.ackedBy(0)
	if released != 0 || !remaining {
		t.Fatalf("nr 0: expected nothing released, got %d released remaining %v", released, remaining)
	}

	released, remaining = xport.ackedBy(2)
	if released != 2 || !remaining {
		t.Fatalf("nr 2: expected 2 released, got %d released remaining %v", released, remaining)
	}

	released, remaining = xport.ackedBy(3)
	if released != 1 || remaining {
		t.Fatalf("nr 3: expected 1 released, got %d released remaining %v", released, remaining)
	}
}

func TestRetryHeadExhaustion(t *testing.T) {
	cfg := defaultTransportConfig()
	cfg.MaxRetries = 2
	xport := newTransport(cfg)

	msg := []byte{0x01, 0x02, 0x03}
	xport.retain(0, msg)

	for i := uint(0); i < cfg.MaxRetries; i++ {
		b, exhausted := xport.retryHead()
		if exhausted {
			t.Fatalf("retry %d: budget exhausted early", i)
		}
		if string(b) != string(msg) {
			t.Fatalf("retry %d: stored bytes changed", i)
		}
	}

	if _, exhausted := xport.retryHead(); !exhausted {
		t.Fatal("expected the retry budget to be exhausted")
	}
}

func TestRetryHeadEmptyQueue(t *testing.T) {
	xport := newTransport(defaultTransportConfig())
	b, exhausted := xport.retryHead()
	if b != nil || exhausted {
		t.Fatalf("empty queue: got %v, exhausted %v", b, exhausted)
	}
}

func TestAssignSeqConsumesNs(t *testing.T) {
	xport := newTransport(defaultTransportConfig())
	xport.nr = 9

	msgType, err := newAvp(vendorIDIetf, avpTypeMessage, avpMsgTypeAck)
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}

	for want := uint16(0); want < 3; want++ {
		msg := newControlMessage(0, []avp{*msgType})
		xport.assignSeq(msg)
		if msg.ns() != want || msg.nr() != 9 {
			t.Fatalf("expected ns %d nr 9, got ns %d nr %d", want, msg.ns(), msg.nr())
		}
	}
}
