package lnwire

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// NewChanIDFromOutPoint derives the permanent channel_id from the funding
// outpoint: the funding txid XORed in its last two bytes with the output
// index.
func NewChanIDFromOutPoint(op *wire.OutPoint) ChannelID {
	var cid ChannelID
	copy(cid[:], op.Hash[:])

	indexBytes := make([]byte, 2)
	indexBytes[0] = byte(op.Index >> 8)
	indexBytes[1] = byte(op.Index)

	cid[30] ^= indexBytes[0]
	cid[31] ^= indexBytes[1]
	return cid
}

// String returns the hex-encoded, byte-reversed form used for logging,
// matching the convention used for chainhash.Hash.
func (c ChannelID) String() string {
	h, _ := chainhash.NewHash(c[:])
	return h.String()
}
