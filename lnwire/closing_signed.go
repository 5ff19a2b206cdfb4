package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcutil"
)

// ClosingSigned proposes (or counter-proposes) a fee for the cooperative
// closing transaction, iterating with the peer's own ClosingSigned until
// both fees agree.
type ClosingSigned struct {
	ChanID   ChannelID
	FeeSatoshis btcutil.Amount
	Sig      Sig
}

var _ Message = (*ClosingSigned)(nil)

func (c *ClosingSigned) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &c.ChanID, &c.FeeSatoshis, &c.Sig)
}

func (c *ClosingSigned) Encode(w io.Writer, pver uint32) error {
	return writeElements(w, c.ChanID, c.FeeSatoshis, c.Sig)
}

func (c *ClosingSigned) MsgType() MessageType {
	return MsgClosingSigned
}

func (c *ClosingSigned) MaxPayloadLength(uint32) uint32 {
	return 32 + 8 + 64
}
