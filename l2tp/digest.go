package l2tp

import (
	"crypto/hmac"
	"crypto/md5"
	"errors"
)

// digestKey is the fixed shared key used for the message digest AVP.
// The profile does not negotiate keys: both peers are provisioned with
// this constant.
var digestKey = []byte{
	0x7b, 0x60, 0x85, 0xfb, 0xf4, 0x59, 0x33, 0x67,
	0x0a, 0xbc, 0xb0, 0x7a, 0x27, 0xfc, 0xea, 0x5e,
}

const (
	// digestAvpValueLen is the length of the digest AVP's value:
	// a one-byte digest type octet plus the 16-byte HMAC-MD5 output.
	digestAvpValueLen = 17
	digestLen         = md5.Size
)

var (
	errMissingDigestAvp = errors.New("second AVP is not a well-formed message digest AVP")
	errDigestMismatch   = errors.New("message digest mismatch")
)

// digestOffset locates the value of the digest AVP within a serialised
// control message.  The digest AVP must be the second AVP in the
// message, immediately following the control-message-type AVP.
func digestOffset(b []byte) (int, error) {
	first, err := decodeAvpHeader(b, controlHeaderLen)
	if err != nil {
		return 0, errMissingDigestAvp
	}
	if first.totalLen() < avpHeaderLen {
		return 0, errMissingDigestAvp
	}
	second, err := decodeAvpHeader(b, controlHeaderLen+first.totalLen())
	if err != nil {
		return 0, errMissingDigestAvp
	}
	if second.VendorID != vendorIDIetf ||
		second.AvpType != avpTypeMessageDigest ||
		second.dataLen() != digestAvpValueLen {
		return 0, errMissingDigestAvp
	}
	offset := controlHeaderLen + first.totalLen() + avpHeaderLen
	if offset+digestAvpValueLen > len(b) {
		return 0, errMissingDigestAvp
	}
	return offset, nil
}

// digestCompute computes the keyed digest over a full serialised
// control message.  The caller must have zeroed the digest AVP value.
func digestCompute(b []byte) []byte {
	mac := hmac.New(md5.New, digestKey)
	mac.Write(b)
	return mac.Sum(nil)
}

// digestUpdateInPlace computes the message digest over the serialised
// message and writes it into the digest AVP's value.  The message is
// digested with the digest value zeroed, so the caller must not have
// written anything into the digest AVP beforehand.
func digestUpdateInPlace(b []byte) error {
	offset, err := digestOffset(b)
	if err != nil {
		return err
	}
	for i := 0; i < digestAvpValueLen; i++ {
		b[offset+i] = 0
	}
	digest := digestCompute(b)
	copy(b[offset:offset+digestLen], digest)
	return nil
}

// digestVerify recomputes the digest of a received message and
// compares it against the digest AVP's stored value.  The input buffer
// is not modified.
func digestVerify(b []byte) error {
	offset, err := digestOffset(b)
	if err != nil {
		return err
	}

	scratch := make([]byte, len(b))
	copy(scratch, b)
	for i := 0; i < digestAvpValueLen; i++ {
		scratch[offset+i] = 0
	}

	want := digestCompute(scratch)
	if !hmac.Equal(want, b[offset:offset+digestLen]) {
		return errDigestMismatch
	}
	return nil
}
