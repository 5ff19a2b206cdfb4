package lnwire

import "io"

// Ping is sent periodically to check that the connection to a peer is still
// alive and, via NumPongBytes, to exercise traffic shaping.
type Ping struct {
	NumPongBytes uint16
	PaddingBytes []byte
}

// NewPing creates a new Ping message requesting a pong with the given
// padding length.
func NewPing(numPongBytes uint16) *Ping {
	return &Ping{NumPongBytes: numPongBytes}
}

var _ Message = (*Ping)(nil)

func (p *Ping) Decode(r io.Reader, pver uint32) error {
	if err := readElements(r, &p.NumPongBytes); err != nil {
		return err
	}
	var padLen uint16
	if err := readElements(r, &padLen); err != nil {
		return err
	}
	p.PaddingBytes = make([]byte, padLen)
	return readElements(r, p.PaddingBytes)
}

func (p *Ping) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		p.NumPongBytes,
		uint16(len(p.PaddingBytes)),
		p.PaddingBytes,
	)
}

func (p *Ping) MsgType() MessageType {
	return MsgPing
}

func (p *Ping) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}

// Pong answers a Ping, carrying the number of padding bytes the sender of
// the Ping requested.
type Pong struct {
	PongBytes []byte
}

// NewPong creates a new Pong carrying numBytes of zero padding.
func NewPong(numBytes uint16) *Pong {
	return &Pong{PongBytes: make([]byte, numBytes)}
}

var _ Message = (*Pong)(nil)

func (p *Pong) Decode(r io.Reader, pver uint32) error {
	var l uint16
	if err := readElements(r, &l); err != nil {
		return err
	}
	p.PongBytes = make([]byte, l)
	return readElements(r, p.PongBytes)
}

func (p *Pong) Encode(w io.Writer, pver uint32) error {
	return writeElements(w, uint16(len(p.PongBytes)), p.PongBytes)
}

func (p *Pong) MsgType() MessageType {
	return MsgPong
}

func (p *Pong) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
