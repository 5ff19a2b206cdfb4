package shachain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Serialization format: one byte node count, then that many fixed-size
// records, each 1 byte height, 8 byte index, 32 byte secret -- 41 bytes
// per node, at most 49 nodes, so the wire form never exceeds
// 1 + 49*41 = 2010 bytes.
const nodeSize = 1 + 8 + 32

// Bytes serializes the chain as a node count followed by that many
// (height, index, secret) records, ordered as stored.
func (c *Chain) Bytes() ([]byte, error) {
	numNodes := len(c.nodes)
	if numNodes > int(maxHeight)+1 {
		return nil, fmt.Errorf("corrupt shachain: %d nodes stored, max %d",
			numNodes, maxHeight+1)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint8(numNodes)); err != nil {
		return nil, err
	}

	for _, n := range c.nodes {
		if err := binary.Write(&buf, binary.BigEndian, n.height); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, n.index); err != nil {
			return nil, err
		}
		if _, err := buf.Write(n.secret[:]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// FromBytes deserializes a chain previously produced by Bytes.
func FromBytes(b []byte) (*Chain, error) {
	if len(b) == 0 {
		return New(), nil
	}

	r := bytes.NewReader(b)
	numNodes, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if numNodes > maxHeight+1 {
		return nil, fmt.Errorf("invalid node count %d, max %d",
			numNodes, maxHeight+1)
	}
	if r.Len() != int(numNodes)*nodeSize {
		return nil, fmt.Errorf("malformed shachain buffer: have %d "+
			"trailing bytes, want %d", r.Len(), int(numNodes)*nodeSize)
	}

	c := New()
	c.nodes = make([]node, numNodes)
	for i := range c.nodes {
		if err := binary.Read(r, binary.BigEndian, &c.nodes[i].height); err != nil {
			return nil, err
		}
		if c.nodes[i].height > maxHeight {
			return nil, fmt.Errorf("node %d: invalid height %d", i,
				c.nodes[i].height)
		}
		if err := binary.Read(r, binary.BigEndian, &c.nodes[i].index); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, c.nodes[i].secret[:]); err != nil {
			return nil, err
		}
	}

	if numNodes > 0 {
		c.known = true
		// Nodes are appended in insertion order by AddNext, so the
		// last stored node carries the last-inserted index.
		c.last = c.nodes[numNodes-1].index
	}

	return c, nil
}
