package lnwire

import "io"

// Error is sent by either node to signal a protocol-level failure. A
// channel_id of all-zeros applies to the connection as a whole rather than
// to a single channel.
type Error struct {
	ChanID ChannelID
	Data   []byte
}

// NewError creates a new Error message.
func NewError(chanID ChannelID, msg string) *Error {
	return &Error{ChanID: chanID, Data: []byte(msg)}
}

var _ Message = (*Error)(nil)

func (c *Error) Decode(r io.Reader, pver uint32) error {
	if err := readElements(r, &c.ChanID); err != nil {
		return err
	}
	var dataLen uint16
	if err := readElements(r, &dataLen); err != nil {
		return err
	}
	c.Data = make([]byte, dataLen)
	return readElements(r, c.Data)
}

func (c *Error) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChanID,
		uint16(len(c.Data)),
		c.Data,
	)
}

func (c *Error) MsgType() MessageType {
	return MsgError
}

func (c *Error) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}

// String returns the error's payload interpreted as a UTF-8 string, for
// logging; the protocol does not guarantee the payload is printable.
func (c *Error) String() string {
	return string(c.Data)
}
