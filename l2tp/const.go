package l2tp

import "time"

// PseudowireType identifies the type of layer 2 frames carried by a
// session, as advertised in the Pseudowire Type AVP.
type PseudowireType uint16

const (
	// pseudowireCapsList is the value advertised in the Pseudowire
	// Capabilities List AVP of the SCCRP for this profile.
	pseudowireCapsList uint16 = 0x0006

	// icrpCircuitStatus indicates the circuit is new and up.
	icrpCircuitStatus uint16 = 0x0001
	// icrpL2SpecificSublayer selects the default layer 2 specific
	// sublayer for data packets.
	icrpL2SpecificSublayer uint16 = 0x0001
	// icrpDataSequencing requires sequencing for all incoming data.
	icrpDataSequencing uint16 = 0x0002
)

// vendorIDEricsson is the private enterprise number scoping the vendor
// extension AVP and message type namespace used by this profile.
const vendorIDEricsson avpVendorID = 193

// Vendor extension message types carried in the vendor-scoped
// control-message-type AVP.
const (
	vendorMsgTypeTcrq   avpMsgType = 1
	vendorMsgTypeTcrp   avpMsgType = 2
	vendorMsgTypeAltcrq avpMsgType = 3
	vendorMsgTypeAltcrp avpMsgType = 4
)

// vendorProtocolVersion is the value of the vendor Protocol Version
// AVP sent in the SCCRP: a 32-bit version word (3) followed by eight
// reserved octets.
var vendorProtocolVersion = []byte{
	0x00, 0x00, 0x00, 0x03,
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// defaultTransportConfigDesc is the traffic channel group descriptor
// advertised in the Transport Configuration AVP of the TCRQ: one
// group of five subchannels with their bundling identifiers and the
// group's transport address and discriminator.
var defaultTransportConfigDesc = []byte{
	0x00, 0x19, 0x01, 0x1f, 0x05,
	0x00, 0x0a, 0x0b, 0x0c, 0x3e,
	0x0a, 0xfb, 0x86, 0x01,
	0x00, 0x01, 0x05, 0x05, 0xb9,
}

// defaultTeiSubchannelMap is the TEI-to-subchannel mapping advertised
// in the ALTCRQ once the peer has confirmed the transport
// configuration.
var defaultTeiSubchannelMap = []byte{
	0x02, 0x00, 0x00, 0x00, 0x3e, 0x3e, 0x00,
}

// Transport defaults applied when the corresponding ContextConfig
// fields are left at zero.
const (
	defaultRetryTimeout = 1 * time.Second
	defaultAckTimeout   = 100 * time.Millisecond
	defaultMaxRetries   = 3
)

func msgTypeName(vendorID avpVendorID, mt avpMsgType) string {
	if vendorID == vendorIDEricsson {
		switch mt {
		case vendorMsgTypeTcrq:
			return "tcrq"
		case vendorMsgTypeTcrp:
			return "tcrp"
		case vendorMsgTypeAltcrq:
			return "altcrq"
		case vendorMsgTypeAltcrp:
			return "altcrp"
		}
		return "unknown vendor message"
	}
	switch mt {
	case avpMsgTypeSccrq:
		return "sccrq"
	case avpMsgTypeSccrp:
		return "sccrp"
	case avpMsgTypeScccn:
		return "scccn"
	case avpMsgTypeStopccn:
		return "stopccn"
	case avpMsgTypeHello:
		return "hello"
	case avpMsgTypeIcrq:
		return "icrq"
	case avpMsgTypeIcrp:
		return "icrp"
	case avpMsgTypeIccn:
		return "iccn"
	case avpMsgTypeCdn:
		return "cdn"
	case avpMsgTypeAck:
		return "ack"
	}
	return "unknown message"
}
