package l2tp

import (
	"bytes"
	"testing"
)

// buildDigestedMessage serialises a control message with a zeroed
// digest AVP in second position and fills the digest in.
func buildDigestedMessage(t *testing.T, mt avpMsgType, payload []avp) []byte {
	t.Helper()

	msgType, err := newAvp(vendorIDIetf, avpTypeMessage, mt)
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	digest, err := newAvp(vendorIDIetf, avpTypeMessageDigest, make([]byte, digestAvpValueLen))
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}

	avps := append([]avp{*msgType, *digest}, payload...)
	msg := newControlMessage(0, avps)
	b, err := msg.toBytes()
	if err != nil {
		t.Fatalf("toBytes: %v", err)
	}
	if err = digestUpdateInPlace(b); err != nil {
		t.Fatalf("digestUpdateInPlace: %v", err)
	}
	return b
}

func TestDigestVerifyAcceptsUpdatedMessage(t *testing.T) {
	hostName, err := newAvp(vendorIDIetf, avpTypeHostName, "basilbrush.local")
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	b := buildDigestedMessage(t, avpMsgTypeSccrq, []avp{*hostName})
	if err := digestVerify(b); err != nil {
		t.Fatalf("digestVerify: %v", err)
	}
}

func TestDigestAvpIsMandatory(t *testing.T) {
	b := buildDigestedMessage(t, avpMsgTypeHello, nil)
	msg, err := parseControlMessage(b)
	if err != nil {
		t.Fatalf("parseControlMessage: %v", err)
	}
	if len(msg.avps) < 2 {
		t.Fatalf("expected at least 2 AVPs, got %d", len(msg.avps))
	}
	digest := msg.avps[1]
	if digest.getType() != avpTypeMessageDigest {
		t.Fatalf("second AVP is %v, not the digest", digest.getType())
	}
	if !digest.isMandatory() {
		t.Error("digest AVP transmitted without the mandatory flag")
	}
}

func TestDigestIsDeterministic(t *testing.T) {
	b1 := buildDigestedMessage(t, avpMsgTypeHello, nil)
	b2 := buildDigestedMessage(t, avpMsgTypeHello, nil)
	if !bytes.Equal(b1, b2) {
		t.Fatal("identical messages produced different digests")
	}
}

func TestDigestCoversWholeMessage(t *testing.T) {
	hostName, err := newAvp(vendorIDIetf, avpTypeHostName, "basilbrush.local")
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	b := buildDigestedMessage(t, avpMsgTypeSccrq, []avp{*hostName})

	// Flip one bit in the header.
	b[8] ^= 0x01
	if err := digestVerify(b); err != errDigestMismatch {
		t.Fatalf("header mutation: expected %v, got %v", errDigestMismatch, err)
	}
	b[8] ^= 0x01

	// Flip one bit in the trailing payload AVP.
	b[len(b)-1] ^= 0x01
	if err := digestVerify(b); err != errDigestMismatch {
		t.Fatalf("payload mutation: expected %v, got %v", errDigestMismatch, err)
	}
	b[len(b)-1] ^= 0x01

	// Corrupt the stored digest itself.
	offset, err := digestOffset(b)
	if err != nil {
		t.Fatalf("digestOffset: %v", err)
	}
	b[offset] ^= 0x01
	if err := digestVerify(b); err != errDigestMismatch {
		t.Fatalf("digest mutation: expected %v, got %v", errDigestMismatch, err)
	}
}

func TestDigestRequiresSecondAvp(t *testing.T) {
	// A message whose second AVP is not the digest AVP must be
	// rejected outright.
	msgType, err := newAvp(vendorIDIetf, avpTypeMessage, avpMsgTypeSccrq)
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	hostName, err := newAvp(vendorIDIetf, avpTypeHostName, "basilbrush.local")
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	msg := newControlMessage(0, []avp{*msgType, *hostName})
	b, err := msg.toBytes()
	if err != nil {
		t.Fatalf("toBytes: %v", err)
	}
	if err := digestVerify(b); err != errMissingDigestAvp {
		t.Fatalf("expected %v, got %v", errMissingDigestAvp, err)
	}
}
