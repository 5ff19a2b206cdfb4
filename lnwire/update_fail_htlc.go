package lnwire

import "io"

// UpdateFailHTLC is sent to fail a particular HTLC referenced by ID,
// carrying an onion-encrypted failure reason (the sendFail/receiveFail
// operation).
type UpdateFailHTLC struct {
	ChanID ChannelID
	ID     uint64
	Reason []byte
}

var _ Message = (*UpdateFailHTLC)(nil)

func (c *UpdateFailHTLC) Decode(r io.Reader, pver uint32) error {
	if err := readElements(r, &c.ChanID, &c.ID); err != nil {
		return err
	}
	var l uint16
	if err := readElements(r, &l); err != nil {
		return err
	}
	c.Reason = make([]byte, l)
	return readElements(r, c.Reason)
}

func (c *UpdateFailHTLC) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		c.ID,
		uint16(len(c.Reason)),
		c.Reason,
	)
}

func (c *UpdateFailHTLC) MsgType() MessageType {
	return MsgUpdateFailHTLC
}

func (c *UpdateFailHTLC) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}

// UpdateFailMalformedHTLC is sent instead of UpdateFailHTLC when the
// receiver could not even parse the onion packet well enough to construct
// a proper encrypted failure (BOLT #2's malformed-onion case).
type UpdateFailMalformedHTLC struct {
	ChanID       ChannelID
	ID           uint64
	SHA256OfOnion [32]byte
	FailureCode  uint16
}

var _ Message = (*UpdateFailMalformedHTLC)(nil)

func (c *UpdateFailMalformedHTLC) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChanID,
		&c.ID,
		c.SHA256OfOnion[:],
		&c.FailureCode,
	)
}

func (c *UpdateFailMalformedHTLC) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		c.ID,
		c.SHA256OfOnion[:],
		c.FailureCode,
	)
}

func (c *UpdateFailMalformedHTLC) MsgType() MessageType {
	return MsgUpdateFailMalformedHTLC
}

func (c *UpdateFailMalformedHTLC) MaxPayloadLength(uint32) uint32 {
	return 32 + 8 + 32 + 2
}
