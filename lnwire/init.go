package lnwire

import "io"

// Init is the first message exchanged on a connection, revealing the
// features supported or required by this node. Nodes wait for receipt of
// the other's Init message before sending any other messages.
type Init struct {
	// GlobalFeatures is a feature vector historically used for features
	// that affect the routing of gossip messages; kept for wire
	// compatibility and always empty for the peer core.
	GlobalFeatures []byte

	// LocalFeatures advertises the set of features this node supports
	// for its direct peers.
	LocalFeatures []byte
}

// NewInitMessage creates a new Init message.
func NewInitMessage(gf, lf []byte) *Init {
	return &Init{GlobalFeatures: gf, LocalFeatures: lf}
}

var _ Message = (*Init)(nil)

func (c *Init) Decode(r io.Reader, pver uint32) error {
	var gfLen, lfLen uint16
	if err := readElements(r, &gfLen); err != nil {
		return err
	}
	c.GlobalFeatures = make([]byte, gfLen)
	if err := readElements(r, c.GlobalFeatures); err != nil {
		return err
	}

	if err := readElements(r, &lfLen); err != nil {
		return err
	}
	c.LocalFeatures = make([]byte, lfLen)
	return readElements(r, c.LocalFeatures)
}

func (c *Init) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		uint16(len(c.GlobalFeatures)), c.GlobalFeatures,
		uint16(len(c.LocalFeatures)), c.LocalFeatures,
	)
}

func (c *Init) MsgType() MessageType {
	return MsgInit
}

func (c *Init) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
