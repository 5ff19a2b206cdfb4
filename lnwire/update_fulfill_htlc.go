package lnwire

import "io"

// UpdateFulfillHTLC is sent to settle a particular HTLC referenced by ID,
// revealing the preimage that satisfies its payment hash (the
// sendFulfill/receiveFulfill operation).
type UpdateFulfillHTLC struct {
	ChanID          ChannelID
	ID              uint64
	PaymentPreimage [32]byte
}

// NewUpdateFulfillHTLC returns a new UpdateFulfillHTLC.
func NewUpdateFulfillHTLC(chanID ChannelID, id uint64,
	preimage [32]byte) *UpdateFulfillHTLC {

	return &UpdateFulfillHTLC{
		ChanID:          chanID,
		ID:              id,
		PaymentPreimage: preimage,
	}
}

var _ Message = (*UpdateFulfillHTLC)(nil)

func (c *UpdateFulfillHTLC) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChanID,
		&c.ID,
		c.PaymentPreimage[:],
	)
}

func (c *UpdateFulfillHTLC) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		c.ID,
		c.PaymentPreimage[:],
	)
}

func (c *UpdateFulfillHTLC) MsgType() MessageType {
	return MsgUpdateFulfillHTLC
}

func (c *UpdateFulfillHTLC) MaxPayloadLength(uint32) uint32 {
	return 32 + 8 + 32
}
