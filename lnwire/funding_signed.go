package lnwire

import "io"

// FundingSigned completes the funding flow: the fundee's signature on the
// funder's initial commitment transaction. Once the funder has this, the
// funding transaction may be broadcast.
type FundingSigned struct {
	ChanID    ChannelID
	CommitSig Sig
}

var _ Message = (*FundingSigned)(nil)

func (c *FundingSigned) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &c.ChanID, &c.CommitSig)
}

func (c *FundingSigned) Encode(w io.Writer, pver uint32) error {
	return writeElements(w, c.ChanID, c.CommitSig)
}

func (c *FundingSigned) MsgType() MessageType {
	return MsgFundingSigned
}

func (c *FundingSigned) MaxPayloadLength(uint32) uint32 {
	return 32 + 64
}
