package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcutil"
)

// OnionPacketSize is the fixed size of the Sphinx onion routing packet
// carried by update_add_htlc.
const OnionPacketSize = 1366

// UpdateAddHTLC proposes adding a new HTLC to the commitment ledger,
// mirroring the sendAdd/receiveAdd commitment-ledger operation.
type UpdateAddHTLC struct {
	ChanID      ChannelID
	ID          uint64
	Amount      btcutil.Amount
	PaymentHash [32]byte
	Expiry      uint32
	OnionBlob   [OnionPacketSize]byte
}

var _ Message = (*UpdateAddHTLC)(nil)

func (c *UpdateAddHTLC) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChanID,
		&c.ID,
		&c.Amount,
		c.PaymentHash[:],
		&c.Expiry,
		c.OnionBlob[:],
	)
}

func (c *UpdateAddHTLC) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		c.ID,
		c.Amount,
		c.PaymentHash[:],
		c.Expiry,
		c.OnionBlob[:],
	)
}

func (c *UpdateAddHTLC) MsgType() MessageType {
	return MsgUpdateAddHTLC
}

func (c *UpdateAddHTLC) MaxPayloadLength(uint32) uint32 {
	return 32 + 8 + 8 + 32 + 4 + OnionPacketSize
}
