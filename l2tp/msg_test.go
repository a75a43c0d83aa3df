package l2tp

import (
	"encoding/binary"
	"testing"
)

func encodeRawHeader(flagsVer, length uint16, ccid uint32, ns, nr uint16, tail int) []byte {
	b := make([]byte, controlHeaderLen+tail)
	binary.BigEndian.PutUint16(b[0:], flagsVer)
	binary.BigEndian.PutUint16(b[2:], length)
	binary.BigEndian.PutUint32(b[4:], ccid)
	binary.BigEndian.PutUint16(b[8:], ns)
	binary.BigEndian.PutUint16(b[10:], nr)
	return b
}

func TestParseControlHeader(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{
			name: "valid",
			in:   encodeRawHeader(0xc803, 12, 0, 0, 0, 0),
			want: nil,
		},
		{
			name: "too short",
			in:   encodeRawHeader(0xc803, 12, 0, 0, 0, 0)[:11],
			want: errHeaderTooShort,
		},
		{
			name: "wrong version",
			in:   encodeRawHeader(0xc802, 12, 0, 0, 0, 0),
			want: errBadProtocolVersion,
		},
		{
			// The sequence flag alone is not enough: T, L and S
			// must all be present.
			name: "missing type and length flags",
			in:   encodeRawHeader(0x0803, 12, 0, 0, 0, 0),
			want: errBadHeaderFlags,
		},
		{
			name: "missing sequence flag",
			in:   encodeRawHeader(0xc003, 12, 0, 0, 0, 0),
			want: errBadHeaderFlags,
		},
		{
			name: "reserved bits set",
			in:   encodeRawHeader(0xc813, 12, 0, 0, 0, 0),
			want: errBadHeaderReservedBits,
		},
		{
			name: "length below header size",
			in:   encodeRawHeader(0xc803, 11, 0, 0, 0, 0),
			want: errHeaderLenOutOfBounds,
		},
		{
			name: "length beyond buffer",
			in:   encodeRawHeader(0xc803, 64, 0, 0, 0, 8),
			want: errHeaderLenOutOfBounds,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := parseControlHeader(c.in)
			if err != c.want {
				t.Fatalf("parseControlHeader: expected %v, got %v", c.want, err)
			}
		})
	}
}

func TestControlMessageRoundTrip(t *testing.T) {
	msgType, err := newAvp(vendorIDIetf, avpTypeMessage, avpMsgTypeSccrp)
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	assignedID, err := newAvp(vendorIDIetf, avpTypeAssignedConnID, uint32(90210))
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}

	msg := newControlMessage(42, []avp{*msgType, *assignedID})
	msg.setSeq(3, 7)

	b, err := msg.toBytes()
	if err != nil {
		t.Fatalf("toBytes: %v", err)
	}
	if len(b) != int(msg.header.Len) {
		t.Fatalf("encoded length %d does not match header length %d", len(b), msg.header.Len)
	}

	out, err := parseControlMessage(b)
	if err != nil {
		t.Fatalf("parseControlMessage: %v", err)
	}
	if out.header.FlagsVer != cmFlagsVerTx {
		t.Errorf("FlagsVer: expected %#x, got %#x", cmFlagsVerTx, out.header.FlagsVer)
	}
	if out.header.Ccid != 42 {
		t.Errorf("Ccid: expected 42, got %d", out.header.Ccid)
	}
	if out.ns() != 3 || out.nr() != 7 {
		t.Errorf("sequence: expected ns 3 nr 7, got ns %d nr %d", out.ns(), out.nr())
	}

	vendorID, mt, err := out.classify()
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if vendorID != vendorIDIetf || mt != avpMsgTypeSccrp {
		t.Errorf("classify: expected IETF sccrp, got %v %v", vendorID, mt)
	}
	if v, err := findUint32Avp(out.avps, vendorIDIetf, avpTypeAssignedConnID); err != nil || v != 90210 {
		t.Errorf("assigned connection id: got %v, %v", v, err)
	}
}

func TestClassifyVendorMessage(t *testing.T) {
	msgType, err := newAvp(vendorIDEricsson, avpTypeVendorMessage, vendorMsgTypeTcrq)
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	msg := newControlMessage(0, []avp{*msgType})

	vendorID, mt, err := msg.classify()
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if vendorID != vendorIDEricsson || mt != vendorMsgTypeTcrq {
		t.Errorf("classify: expected Ericsson tcrq, got %v %v", vendorID, mt)
	}
}

func TestClassifyRequiresLeadingMsgTypeAvp(t *testing.T) {
	hostName, err := newAvp(vendorIDIetf, avpTypeHostName, "nobody")
	if err != nil {
		t.Fatalf("newAvp: %v", err)
	}
	msg := newControlMessage(0, []avp{*hostName})
	if _, _, err := msg.classify(); err != errNotAControlMessage {
		t.Fatalf("expected %v, got %v", errNotAControlMessage, err)
	}
}
