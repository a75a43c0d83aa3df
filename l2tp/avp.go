package l2tp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

type avpFlagLen uint16

// avpVendorID is the Vendor ID from the AVP header as per RFC3931 section 5.1
type avpVendorID uint16

// avpType is the attribute type from the AVP header as per RFC3931 section 5.1
type avpType uint16

// avpMsgType stores the value of a control-message-type AVP
type avpMsgType uint16

// avpDataType indicates the type of the data value carried by the AVP
type avpDataType int

type avpInfo struct {
	avpType     avpType
	vendorID    avpVendorID
	isMandatory bool
	dataType    avpDataType
}

// Don't be tempted to try to make the fields in this structure private:
// doing so breaks the reflection properties which binary.Read depends upon
// for extracting the header from the bytearray.
type avpHeader struct {
	FlagLen  avpFlagLen
	VendorID avpVendorID
	AvpType  avpType
}

type avpPayload struct {
	dataType avpDataType
	data     []byte
}

// avp represents a single AVP in a control message
type avp struct {
	header  avpHeader
	payload avpPayload
}

// avpResultCode represents an RFC3931 result code
type avpResultCode uint16

// avpErrorCode represents an RFC3931 error code
type avpErrorCode uint16

// resultCode represents an RFC3931 result code AVP value
type resultCode struct {
	result  avpResultCode
	errCode avpErrorCode
	errMsg  string
}

const (
	avpHeaderLen = 6
	// avpMaxValueLen is the largest value an AVP can carry: the wire
	// length field is 10 bits and covers the header too.
	avpMaxValueLen = 1023 - avpHeaderLen
	// vendorIDIetf is the namespace used for standard AVPs described
	// by RFC3931.
	vendorIDIetf avpVendorID = 0
)

var (
	errAvpTruncatedHeader = errors.New("truncated AVP header")
	errAvpInvalidLength   = errors.New("AVP length field is smaller than the AVP header")
	errAvpTruncatedValue  = errors.New("AVP value exceeds buffer bounds")
	errAvpValueTooLong    = errors.New("AVP value exceeds maximum encodable length")
	errAvpBufferEmpty     = errors.New("no AVPs present in the input buffer")

	errInvalidMsgTypeLength = errors.New("message type AVP value must be exactly 2 bytes")
)

const (
	// avpDataTypeEmpty represents an AVP with no value
	avpDataTypeEmpty avpDataType = iota
	// avpDataTypeUint16 represents an AVP carrying a single uint16 value
	avpDataTypeUint16
	// avpDataTypeUint32 represents an AVP carrying a single uint32 value
	avpDataTypeUint32
	// avpDataTypeString represents an AVP carrying an ASCII string
	avpDataTypeString
	// avpDataTypeBytes represents an AVP carrying a raw byte array
	avpDataTypeBytes
	// avpDataTypeResultCode represents an AVP carrying an RFC3931 result code
	avpDataTypeResultCode
	// avpDataTypeMsgID represents an AVP carrying a control-message-type identifier
	avpDataTypeMsgID
)

// avpInfoTable lists the AVPs this profile transmits or consumes.
// AVPs outside the table are skipped on receive unless flagged
// mandatory, per RFC3931 section 5.2.
var avpInfoTable = [...]avpInfo{
	{avpType: avpTypeMessage, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeMsgID},
	{avpType: avpTypeResultCode, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeResultCode},
	{avpType: avpTypeHostName, vendorID: vendorIDIetf, isMandatory: false, dataType: avpDataTypeString},
	{avpType: avpTypeMessageDigest, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeBytes},
	{avpType: avpTypeRouterID, vendorID: vendorIDIetf, isMandatory: false, dataType: avpDataTypeUint32},
	{avpType: avpTypeAssignedConnID, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint32},
	{avpType: avpTypePseudowireCaps, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint16},
	{avpType: avpTypeLocalSessionID, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint32},
	{avpType: avpTypeRemoteSessionID, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint32},
	{avpType: avpTypeRemoteEndID, vendorID: vendorIDIetf, isMandatory: false, dataType: avpDataTypeBytes},
	{avpType: avpTypePseudowireType, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint16},
	{avpType: avpTypeL2SpecificSublayer, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint16},
	{avpType: avpTypeDataSequencing, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint16},
	{avpType: avpTypeCircuitStatus, vendorID: vendorIDIetf, isMandatory: true, dataType: avpDataTypeUint16},
	{avpType: avpTypeVendorMessage, vendorID: vendorIDEricsson, isMandatory: true, dataType: avpDataTypeMsgID},
	{avpType: avpTypeVendorTransportCfg, vendorID: vendorIDEricsson, isMandatory: true, dataType: avpDataTypeBytes},
	{avpType: avpTypeVendorProtocolVersion, vendorID: vendorIDEricsson, isMandatory: true, dataType: avpDataTypeBytes},
	{avpType: avpTypeVendorTeiSubchannelMap, vendorID: vendorIDEricsson, isMandatory: true, dataType: avpDataTypeBytes},
}

// AVP type identifiers as per RFC3931, representing the value held by
// a given AVP.
const (
	avpTypeMessage            avpType = 0
	avpTypeResultCode         avpType = 1
	avpTypeHostName           avpType = 7
	avpTypeMessageDigest      avpType = 59
	avpTypeRouterID           avpType = 60
	avpTypeAssignedConnID     avpType = 61
	avpTypePseudowireCaps     avpType = 62
	avpTypeLocalSessionID     avpType = 63
	avpTypeRemoteSessionID    avpType = 64
	avpTypeRemoteEndID        avpType = 66
	avpTypePseudowireType     avpType = 68
	avpTypeL2SpecificSublayer avpType = 69
	avpTypeDataSequencing     avpType = 70
	avpTypeCircuitStatus      avpType = 71
)

// AVP type identifiers in the vendor extension namespace.
const (
	avpTypeVendorMessage          avpType = 0
	avpTypeVendorTransportCfg     avpType = 1
	avpTypeVendorProtocolVersion  avpType = 2
	avpTypeVendorTeiSubchannelMap avpType = 3
)

// Control message types as per RFC3931.
const (
	avpMsgTypeIllegal avpMsgType = 0
	avpMsgTypeSccrq   avpMsgType = 1
	avpMsgTypeSccrp   avpMsgType = 2
	avpMsgTypeScccn   avpMsgType = 3
	avpMsgTypeStopccn avpMsgType = 4
	avpMsgTypeHello   avpMsgType = 6
	avpMsgTypeIcrq    avpMsgType = 10
	avpMsgTypeIcrp    avpMsgType = 11
	avpMsgTypeIccn    avpMsgType = 12
	avpMsgTypeCdn     avpMsgType = 14
	avpMsgTypeAck     avpMsgType = 20
)

// StopCCN result codes as per RFC3931.
const (
	avpStopCCNResultCodeReserved        avpResultCode = 0
	avpStopCCNResultCodeClearConnection avpResultCode = 1
	avpStopCCNResultCodeGeneralError    avpResultCode = 2
)

// CDN result codes as per RFC3931.
const (
	avpCDNResultCodeReserved     avpResultCode = 0
	avpCDNResultCodeLostCarrier  avpResultCode = 1
	avpCDNResultCodeGeneralError avpResultCode = 2
	avpCDNResultCodeNoResources  avpResultCode = 4
)

func (t avpType) String() string {
	switch t {
	case avpTypeMessage:
		return "avpTypeMessage"
	case avpTypeResultCode:
		return "avpTypeResultCode"
	case avpTypeHostName:
		return "avpTypeHostName"
	case avpTypeMessageDigest:
		return "avpTypeMessageDigest"
	case avpTypeRouterID:
		return "avpTypeRouterID"
	case avpTypeAssignedConnID:
		return "avpTypeAssignedConnID"
	case avpTypePseudowireCaps:
		return "avpTypePseudowireCaps"
	case avpTypeLocalSessionID:
		return "avpTypeLocalSessionID"
	case avpTypeRemoteSessionID:
		return "avpTypeRemoteSessionID"
	case avpTypeRemoteEndID:
		return "avpTypeRemoteEndID"
	case avpTypePseudowireType:
		return "avpTypePseudowireType"
	case avpTypeL2SpecificSublayer:
		return "avpTypeL2SpecificSublayer"
	case avpTypeDataSequencing:
		return "avpTypeDataSequencing"
	case avpTypeCircuitStatus:
		return "avpTypeCircuitStatus"
	}
	return fmt.Sprintf("AVP %d", uint16(t))
}

func (v avpVendorID) String() string {
	if v == vendorIDIetf {
		return "IETF"
	}
	if v == vendorIDEricsson {
		return "Ericsson"
	}
	return fmt.Sprintf("Vendor %d", uint16(v))
}

func (avp avp) String() string {
	if avp.header.VendorID == vendorIDIetf {
		return fmt.Sprintf("%v (%d bytes)", avp.header.AvpType, len(avp.payload.data))
	}
	return fmt.Sprintf("%v AVP %d (%d bytes)",
		avp.header.VendorID, uint16(avp.header.AvpType), len(avp.payload.data))
}

func (hdr *avpHeader) isMandatory() bool {
	return (0x8000 & hdr.FlagLen) == 0x8000
}

func (hdr *avpHeader) isHidden() bool {
	return (0x4000 & hdr.FlagLen) == 0x4000
}

func (hdr *avpHeader) totalLen() int {
	return int(0x3ff & hdr.FlagLen)
}

func (hdr *avpHeader) dataLen() int {
	return hdr.totalLen() - avpHeaderLen
}

func newAvpHeader(isMandatory, isHidden bool,
	payloadBytes uint,
	vid avpVendorID,
	typ avpType) *avpHeader {
	var flagLen avpFlagLen
	if isMandatory {
		flagLen = flagLen | 0x8000
	}
	if isHidden {
		flagLen = flagLen | 0x4000
	}
	flagLen = flagLen | avpFlagLen(0x3ff&(payloadBytes+avpHeaderLen))
	return &avpHeader{
		FlagLen:  flagLen,
		VendorID: vid,
		AvpType:  typ,
	}
}

// isMandatory returns true if a given AVP is flagged as being mandatory.
// RFC3931 states that if an unrecognised AVP with the mandatory flag set
// is received, the associated connection or session must be terminated.
func (avp *avp) isMandatory() bool {
	return avp.header.isMandatory()
}

// isHidden returns true if a given AVP has been obscured using the
// hiding algorithm of RFC3931 section 5.3.
func (avp *avp) isHidden() bool {
	return avp.header.isHidden()
}

func (avp *avp) getType() avpType {
	return avp.header.AvpType
}

func (avp *avp) vendorID() avpVendorID {
	return avp.header.VendorID
}

// totalLen returns the number of bytes the AVP occupies on the wire,
// inclusive of the AVP header.
func (avp *avp) totalLen() int {
	return avp.header.totalLen()
}

func getAVPInfo(avpType avpType, vendorID avpVendorID) (*avpInfo, error) {
	for _, info := range avpInfoTable {
		if info.avpType == avpType && info.vendorID == vendorID {
			return &info, nil
		}
	}
	return nil, fmt.Errorf("unrecognised AVP %v in %v namespace", uint16(avpType), vendorID)
}

func decodeAvpHeader(b []byte, offset int) (avpHeader, error) {
	if len(b)-offset < avpHeaderLen {
		return avpHeader{}, errAvpTruncatedHeader
	}
	return avpHeader{
		FlagLen:  avpFlagLen(binary.BigEndian.Uint16(b[offset:])),
		VendorID: avpVendorID(binary.BigEndian.Uint16(b[offset+2:])),
		AvpType:  avpType(binary.BigEndian.Uint16(b[offset+4:])),
	}, nil
}

// parseAVP decodes the AVP at the given offset in the buffer,
// returning the decoded AVP and the offset of the next AVP.
// The AVP's value is a view into the input buffer, not a copy.
// Unrecognised AVPs without the mandatory flag are skipped, per
// RFC3931 section 5.2: a nil AVP is returned with the cursor advanced.
func parseAVP(b []byte, offset int) (out *avp, next int, err error) {
	h, err := decodeAvpHeader(b, offset)
	if err != nil {
		return nil, offset, err
	}
	if h.totalLen() < avpHeaderLen {
		return nil, offset, errAvpInvalidLength
	}
	if offset+h.totalLen() > len(b) {
		return nil, offset, errAvpTruncatedValue
	}

	next = offset + h.totalLen()

	info, err := getAVPInfo(h.AvpType, h.VendorID)
	if err != nil {
		if h.isMandatory() {
			return nil, offset, fmt.Errorf("failed to parse mandatory AVP: %v", err)
		}
		return nil, next, nil
	}

	return &avp{
		header: h,
		payload: avpPayload{
			dataType: info.dataType,
			data:     b[offset+avpHeaderLen : next],
		},
	}, next, nil
}

// parseAVPBuffer takes a byte slice of encoded AVP data and parses it
// into an array of AVP instances.
func parseAVPBuffer(b []byte) (avps []avp, err error) {
	if len(b) == 0 {
		return nil, errAvpBufferEmpty
	}
	for offset := 0; offset < len(b); {
		var a *avp
		a, offset, err = parseAVP(b, offset)
		if err != nil {
			return nil, err
		}
		if a != nil {
			avps = append(avps, *a)
		}
	}
	if len(avps) == 0 {
		return nil, errAvpBufferEmpty
	}
	return avps, nil
}

func encodeResultCode(rc *resultCode) ([]byte, error) {
	encBuf := new(bytes.Buffer)
	err := binary.Write(encBuf, binary.BigEndian, rc.result)
	if err != nil {
		return nil, err
	}
	err = binary.Write(encBuf, binary.BigEndian, rc.errCode)
	if err != nil {
		return nil, err
	}
	if rc.errMsg != "" {
		err = binary.Write(encBuf, binary.BigEndian, []byte(rc.errMsg))
		if err != nil {
			return nil, err
		}
	}
	return encBuf.Bytes(), nil
}

func encodePayload(info *avpInfo, value interface{}) ([]byte, error) {
	var ok bool

	switch info.dataType {
	case avpDataTypeEmpty:
		ok = value == nil
	case avpDataTypeUint16:
		_, ok = value.(uint16)
	case avpDataTypeUint32:
		_, ok = value.(uint32)
	case avpDataTypeString:
		var s string
		s, ok = value.(string)
		value = []byte(s)
	case avpDataTypeBytes:
		_, ok = value.([]byte)
	case avpDataTypeMsgID:
		_, ok = value.(avpMsgType)
	case avpDataTypeResultCode:
		var rc resultCode
		rc, ok = value.(resultCode)
		if ok {
			return encodeResultCode(&rc)
		}
	}

	if !ok {
		return nil, fmt.Errorf("wrong data type %T passed for %v", value, info.avpType)
	}

	if value == nil {
		return nil, nil
	}

	encBuf := new(bytes.Buffer)
	err := binary.Write(encBuf, binary.BigEndian, value)
	if err != nil {
		return nil, err
	}
	return encBuf.Bytes(), nil
}

// newAvp builds an AVP containing the specified data.
// The mandatory flag is derived from the AVP info table.
func newAvp(vendorID avpVendorID, avpType avpType, value interface{}) (a *avp, err error) {

	info, err := getAVPInfo(avpType, vendorID)
	if err != nil {
		return nil, err
	}

	buf, err := encodePayload(info, value)
	if err != nil {
		return nil, err
	}

	if len(buf) > avpMaxValueLen {
		return nil, errAvpValueTooLong
	}

	return &avp{
		header: *newAvpHeader(info.isMandatory, false, uint(len(buf)), vendorID, avpType),
		payload: avpPayload{
			dataType: info.dataType,
			data:     buf,
		},
	}, nil
}

// appendAvp serialises the AVP into the buffer in wire format.
func (avp *avp) appendTo(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.BigEndian, avp.header); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, avp.payload.data); err != nil {
		return err
	}
	return nil
}

func (avp *avp) isDataType(dt avpDataType) bool {
	return avp.payload.dataType == dt
}

func (p *avpPayload) toUint16() (out uint16, err error) {
	if len(p.data) > 2 {
		return 0, fmt.Errorf("AVP payload length %v exceeds expected length 2", len(p.data))
	}
	r := bytes.NewReader(p.data)
	if err = binary.Read(r, binary.BigEndian, &out); err != nil {
		return 0, err
	}
	return out, err
}

func (p *avpPayload) toUint32() (out uint32, err error) {
	if len(p.data) > 4 {
		return 0, fmt.Errorf("AVP payload length %v exceeds expected length 4", len(p.data))
	}
	r := bytes.NewReader(p.data)
	if err = binary.Read(r, binary.BigEndian, &out); err != nil {
		return 0, err
	}
	return out, err
}

func (p *avpPayload) toString() (out string, err error) {
	return string(p.data), nil
}

func (p *avpPayload) toResultCode() (out resultCode, err error) {
	var resCode, errCode uint16
	var errMsg string

	r := bytes.NewReader(p.data)

	if err = binary.Read(r, binary.BigEndian, &resCode); err != nil {
		return resultCode{}, err
	}
	if r.Len() > 0 {
		if err = binary.Read(r, binary.BigEndian, &errCode); err != nil {
			return resultCode{}, err
		}
		if r.Len() > 0 {
			errMsg = string(p.data[4:])
		}
	}
	return resultCode{
		result:  avpResultCode(resCode),
		errCode: avpErrorCode(errCode),
		errMsg:  errMsg,
	}, nil
}

// decodeUint16Data decodes an AVP holding a uint16 value.
func (avp *avp) decodeUint16Data() (value uint16, err error) {
	if !avp.isDataType(avpDataTypeUint16) {
		return 0, errors.New("AVP data is not of type uint16, cannot decode")
	}
	return avp.payload.toUint16()
}

// decodeUint32Data decodes an AVP holding a uint32 value.
func (avp *avp) decodeUint32Data() (value uint32, err error) {
	if !avp.isDataType(avpDataTypeUint32) {
		return 0, errors.New("AVP data is not of type uint32, cannot decode")
	}
	return avp.payload.toUint32()
}

// decodeStringData decodes an AVP holding a string value.
func (avp *avp) decodeStringData() (value string, err error) {
	if !avp.isDataType(avpDataTypeString) {
		return "", errors.New("AVP data is not of type string, cannot decode")
	}
	return avp.payload.toString()
}

// decodeResultCode decodes an AVP holding an RFC3931 result code.
func (avp *avp) decodeResultCode() (value resultCode, err error) {
	if !avp.isDataType(avpDataTypeResultCode) {
		return resultCode{}, errors.New("AVP is not of type result code, cannot decode")
	}
	return avp.payload.toResultCode()
}

// decodeMsgType decodes an AVP holding a control-message-type
// identifier.  The value must be exactly two bytes long.
func (avp *avp) decodeMsgType() (value avpMsgType, err error) {
	if !avp.isDataType(avpDataTypeMsgID) {
		return avpMsgTypeIllegal, errors.New("AVP is not of type message ID, cannot decode")
	}
	if len(avp.payload.data) != 2 {
		return avpMsgTypeIllegal, errInvalidMsgTypeLength
	}
	out, err := avp.payload.toUint16()
	return avpMsgType(out), err
}

// avpsLengthBytes returns the length of a slice of AVPs in bytes
func avpsLengthBytes(avps []avp) int {
	var nb int
	for _, avp := range avps {
		nb += avp.totalLen()
	}
	return nb
}

// findAvp looks up a specific AVP in a slice of AVPs.
// An error will be returned if the requested AVP isn't present.
func findAvp(avps []avp, vendorID avpVendorID, typ avpType) (*avp, error) {
	for i := range avps {
		if avps[i].vendorID() == vendorID && avps[i].getType() == typ {
			return &avps[i], nil
		}
	}
	return nil, fmt.Errorf("AVP %v %v not found", vendorID, typ)
}

// findUint16Avp looks up a specific AVP in a slice of AVPs and decodes as uint16.
func findUint16Avp(avps []avp, vendorID avpVendorID, typ avpType) (uint16, error) {
	avp, err := findAvp(avps, vendorID, typ)
	if err != nil {
		return 0, err
	}
	val, err := avp.decodeUint16Data()
	if err != nil {
		return 0, fmt.Errorf("failed to decode %v: %v", typ, err)
	}
	return val, nil
}

// findUint32Avp looks up a specific AVP in a slice of AVPs and decodes as uint32.
func findUint32Avp(avps []avp, vendorID avpVendorID, typ avpType) (uint32, error) {
	avp, err := findAvp(avps, vendorID, typ)
	if err != nil {
		return 0, err
	}
	val, err := avp.decodeUint32Data()
	if err != nil {
		return 0, fmt.Errorf("failed to decode %v: %v", typ, err)
	}
	return val, nil
}

// findStringAvp looks up a specific AVP in a slice of AVPs and decodes as a string.
func findStringAvp(avps []avp, vendorID avpVendorID, typ avpType) (string, error) {
	avp, err := findAvp(avps, vendorID, typ)
	if err != nil {
		return "", err
	}
	val, err := avp.decodeStringData()
	if err != nil {
		return "", fmt.Errorf("failed to decode %v: %v", typ, err)
	}
	return val, nil
}

// findBytesAvp looks up a specific AVP in a slice of AVPs and returns
// its raw value bytes.
func findBytesAvp(avps []avp, vendorID avpVendorID, typ avpType) ([]byte, error) {
	avp, err := findAvp(avps, vendorID, typ)
	if err != nil {
		return nil, err
	}
	return avp.payload.data, nil
}
