package lnwire

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// NewSigFromSignature converts a parsed ECDSA signature into the fixed
// 64-byte raw (r, s) encoding BOLT #1 uses on the wire, rather than the
// variable-length DER encoding the rest of the Bitcoin ecosystem signs
// transactions with.
func NewSigFromSignature(sig *ecdsa.Signature) (Sig, error) {
	if sig == nil {
		return Sig{}, fmt.Errorf("cannot encode nil signature")
	}
	return sigFromDER(sig.Serialize())
}

// ToSignature parses the fixed 64-byte raw encoding back into a standard
// DER-encoded ECDSA signature, suitable for txscript/ecdsa verification.
func (s Sig) ToSignature() (*ecdsa.Signature, error) {
	return ecdsa.ParseDERSignature(derFromSig(s[:32], s[32:]))
}

// sigFromDER extracts the (r, s) pair from a DER-encoded signature
// (0x30 len 0x02 rLen r... 0x02 sLen s...) into the fixed 64-byte raw
// encoding, left-padding each component to 32 bytes.
func sigFromDER(der []byte) (Sig, error) {
	if len(der) < 8 || der[0] != 0x30 {
		return Sig{}, fmt.Errorf("lnwire: malformed DER signature")
	}

	rLen := int(der[3])
	rStart := 4
	if rStart+rLen > len(der) {
		return Sig{}, fmt.Errorf("lnwire: malformed DER signature")
	}
	rBytes := trimLeadingZero(der[rStart : rStart+rLen])

	sLenIdx := rStart + rLen + 1
	if sLenIdx >= len(der) {
		return Sig{}, fmt.Errorf("lnwire: malformed DER signature")
	}
	sLen := int(der[sLenIdx])
	sStart := sLenIdx + 1
	if sStart+sLen > len(der) {
		return Sig{}, fmt.Errorf("lnwire: malformed DER signature")
	}
	sBytes := trimLeadingZero(der[sStart : sStart+sLen])

	if len(rBytes) > 32 || len(sBytes) > 32 {
		return Sig{}, fmt.Errorf("lnwire: signature component too large")
	}

	var out Sig
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	return out, nil
}

// derFromSig re-encodes a 32-byte r and 32-byte s as a minimal DER
// signature, the inverse of sigFromDER.
func derFromSig(r, s []byte) []byte {
	rEnc := asn1Int(r)
	sEnc := asn1Int(s)

	body := make([]byte, 0, len(rEnc)+len(sEnc)+4)
	body = append(body, 0x02, byte(len(rEnc)))
	body = append(body, rEnc...)
	body = append(body, 0x02, byte(len(sEnc)))
	body = append(body, sEnc...)

	return append([]byte{0x30, byte(len(body))}, body...)
}

// asn1Int minimally encodes b as a DER INTEGER's content: strip leading
// zero bytes, then prepend one back if the high bit would otherwise flip
// the sign.
func asn1Int(b []byte) []byte {
	b = trimLeadingZero(b)
	if len(b) == 0 {
		return []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		padded := make([]byte, 0, len(b)+1)
		padded = append(padded, 0x00)
		padded = append(padded, b...)
		return padded
	}
	return b
}

func trimLeadingZero(b []byte) []byte {
	for len(b) > 1 && b[0] == 0x00 {
		b = b[1:]
	}
	return b
}
