package lnwire

import "io"

// UpdateFee is sent by the channel funder to propose a new feerate for the
// commitment transaction, applied the same way an HTLC update is: staged,
// then locked in by the next CommitSig (the sendFee/receiveFee operation).
type UpdateFee struct {
	ChanID       ChannelID
	FeeratePerKw uint32
}

var _ Message = (*UpdateFee)(nil)

func (c *UpdateFee) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &c.ChanID, &c.FeeratePerKw)
}

func (c *UpdateFee) Encode(w io.Writer, pver uint32) error {
	return writeElements(w, c.ChanID, c.FeeratePerKw)
}

func (c *UpdateFee) MsgType() MessageType {
	return MsgUpdateFee
}

func (c *UpdateFee) MaxPayloadLength(uint32) uint32 {
	return 32 + 4
}
