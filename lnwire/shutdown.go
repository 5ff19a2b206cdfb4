package lnwire

import "io"

// Shutdown initiates or acknowledges the cooperative close of a channel,
// carrying the script that the final settlement transaction should pay
// into during a cooperative close.
type Shutdown struct {
	ChanID      ChannelID
	ScriptToPay PkScript
}

var _ Message = (*Shutdown)(nil)

func (c *Shutdown) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &c.ChanID, &c.ScriptToPay)
}

func (c *Shutdown) Encode(w io.Writer, pver uint32) error {
	return writeElements(w, c.ChanID, c.ScriptToPay)
}

func (c *Shutdown) MsgType() MessageType {
	return MsgShutdown
}

func (c *Shutdown) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
