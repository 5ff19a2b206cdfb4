package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// FundingCreated is sent by the funder once the funding transaction has
// been constructed (but not yet broadcast), carrying the funder's signature
// on the fundee's initial commitment transaction.
type FundingCreated struct {
	PendingChannelID ChannelID
	FundingTxID      chainhash.Hash
	FundingOutputIdx uint16
	CommitSig        Sig
}

var _ Message = (*FundingCreated)(nil)

func (c *FundingCreated) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.PendingChannelID,
		&c.FundingTxID,
		&c.FundingOutputIdx,
		&c.CommitSig,
	)
}

func (c *FundingCreated) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.PendingChannelID,
		c.FundingTxID,
		c.FundingOutputIdx,
		c.CommitSig,
	)
}

func (c *FundingCreated) MsgType() MessageType {
	return MsgFundingCreated
}

func (c *FundingCreated) MaxPayloadLength(uint32) uint32 {
	return 32 + 32 + 2 + 64
}
