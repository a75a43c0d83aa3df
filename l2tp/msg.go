package l2tp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// controlHeader is the fixed 12-byte header prepended to every
// control message, per RFC3931 section 3.2.1.
//
// Don't be tempted to try to make the fields in this structure private:
// doing so breaks the reflection properties which binary.Read depends
// upon for extracting the header from the bytearray.
type controlHeader struct {
	FlagsVer uint16
	Len      uint16
	Ccid     uint32
	Ns       uint16
	Nr       uint16
}

const (
	controlHeaderLen = 12

	cmFlagType     uint16 = 0x8000
	cmFlagLength   uint16 = 0x4000
	cmFlagSequence uint16 = 0x0800
	cmZBitMask     uint16 = 0x37f0
	cmVersionMask  uint16 = 0x000f

	protocolVersion3 uint16 = 3

	// cmFlagsVerTx is the FlagsVer value for every transmitted
	// control message: T, L and S set, version 3.
	cmFlagsVerTx uint16 = cmFlagType | cmFlagLength | cmFlagSequence | protocolVersion3
)

var (
	errHeaderTooShort        = errors.New("control message shorter than the fixed header")
	errBadProtocolVersion    = errors.New("control header version is not 3")
	errBadHeaderFlags        = errors.New("control header T, L and S flags must all be set")
	errBadHeaderReservedBits = errors.New("control header reserved bits must be zero")
	errHeaderLenOutOfBounds  = errors.New("control header length field exceeds buffer bounds")
)

// parseControlHeader decodes and validates the fixed control message
// header at the start of the buffer.  On success the header's length
// field is guaranteed to be within the buffer's bounds.
func parseControlHeader(b []byte) (*controlHeader, error) {
	var hdr controlHeader

	if len(b) < controlHeaderLen {
		return nil, errHeaderTooShort
	}

	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, err
	}

	if hdr.FlagsVer&cmVersionMask != protocolVersion3 {
		return nil, errBadProtocolVersion
	}
	// All of T, L and S must be set on a control message.
	if hdr.FlagsVer&(cmFlagType|cmFlagLength|cmFlagSequence) !=
		cmFlagType|cmFlagLength|cmFlagSequence {
		return nil, errBadHeaderFlags
	}
	if hdr.FlagsVer&cmZBitMask != 0 {
		return nil, errBadHeaderReservedBits
	}
	if int(hdr.Len) < controlHeaderLen || int(hdr.Len) > len(b) {
		return nil, errHeaderLenOutOfBounds
	}

	return &hdr, nil
}

// controlMessage represents a single control message: the fixed
// header plus the message's AVPs.
type controlMessage struct {
	header controlHeader
	avps   []avp
}

// newControlMessage builds a control message from the given AVPs.
// The sequence numbers are zero until assigned at transmission time.
func newControlMessage(ccid uint32, avps []avp) *controlMessage {
	return &controlMessage{
		header: controlHeader{
			FlagsVer: cmFlagsVerTx,
			Len:      uint16(controlHeaderLen + avpsLengthBytes(avps)),
			Ccid:     ccid,
		},
		avps: avps,
	}
}

// parseControlMessage parses a received buffer into a control message.
// The caller is expected to have validated the header first in order
// to trim the buffer to the header's length field.
func parseControlMessage(b []byte) (*controlMessage, error) {
	hdr, err := parseControlHeader(b)
	if err != nil {
		return nil, err
	}
	avps, err := parseAVPBuffer(b[controlHeaderLen:hdr.Len])
	if err != nil {
		return nil, fmt.Errorf("failed to parse message AVPs: %v", err)
	}
	return &controlMessage{
		header: *hdr,
		avps:   avps,
	}, nil
}

func (m *controlMessage) ns() uint16 {
	return m.header.Ns
}

func (m *controlMessage) nr() uint16 {
	return m.header.Nr
}

// setSeq assigns the transport sequence numbers in the header.
func (m *controlMessage) setSeq(ns, nr uint16) {
	m.header.Ns = ns
	m.header.Nr = nr
}

// toBytes encodes the message for transmission.  The digest AVP, if
// present, must be updated in the returned buffer before the message
// hits the wire.
func (m *controlMessage) toBytes() ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.BigEndian, m.header); err != nil {
		return nil, err
	}
	for i := range m.avps {
		if err := m.avps[i].appendTo(buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

var errNotAControlMessage = errors.New("first AVP is not a control-message-type AVP")

// classify determines the message type of a control message from its
// first AVP, which must be a control-message-type AVP in either the
// IETF or the vendor extension namespace.
func (m *controlMessage) classify() (vendorID avpVendorID, mt avpMsgType, err error) {
	first := &m.avps[0]
	switch {
	case first.vendorID() == vendorIDIetf && first.getType() == avpTypeMessage:
	case first.vendorID() == vendorIDEricsson && first.getType() == avpTypeVendorMessage:
	default:
		return 0, avpMsgTypeIllegal, errNotAControlMessage
	}
	mt, err = first.decodeMsgType()
	if err != nil {
		return 0, avpMsgTypeIllegal, err
	}
	return first.vendorID(), mt, nil
}
