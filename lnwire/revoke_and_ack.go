package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// RevokeAndAck both reveals the preimage that revokes the sender's
// now-superseded commitment and supplies the point needed to build the
// next one, completing the two-phase commit of the receiveRevocation
// operation.
type RevokeAndAck struct {
	ChanID ChannelID

	// Revocation is the per-commitment secret for the commitment being
	// revoked, stored and validated against shachain's parent-consistency
	// invariant on the receiving side.
	Revocation [32]byte

	NextPerCommitmentPoint *btcec.PublicKey
}

var _ Message = (*RevokeAndAck)(nil)

func (c *RevokeAndAck) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChanID,
		c.Revocation[:],
		&c.NextPerCommitmentPoint,
	)
}

func (c *RevokeAndAck) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		c.Revocation[:],
		c.NextPerCommitmentPoint,
	)
}

func (c *RevokeAndAck) MsgType() MessageType {
	return MsgRevokeAndAck
}

func (c *RevokeAndAck) MaxPayloadLength(uint32) uint32 {
	return 32 + 32 + 33
}
