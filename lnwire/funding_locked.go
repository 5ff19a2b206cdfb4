package lnwire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// FundingLocked is sent by both parties once they have observed the funding
// transaction reach the required number of confirmations. It carries the
// first per-commitment point the sender will use to revoke its next
// commitment, letting the channel transition into the Normal state
// once both sides have sent it.
type FundingLocked struct {
	ChanID ChannelID

	// NextPerCommitmentPoint is used by the remote party to derive the
	// point needed to revoke the sender's current commitment once it
	// has been superseded.
	NextPerCommitmentPoint *btcec.PublicKey
}

// NewFundingLocked creates a new FundingLocked message.
func NewFundingLocked(cid ChannelID, npcp *btcec.PublicKey) *FundingLocked {
	return &FundingLocked{ChanID: cid, NextPerCommitmentPoint: npcp}
}

var _ Message = (*FundingLocked)(nil)

func (c *FundingLocked) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &c.ChanID, &c.NextPerCommitmentPoint)
}

func (c *FundingLocked) Encode(w io.Writer, pver uint32) error {
	return writeElements(w, c.ChanID, c.NextPerCommitmentPoint)
}

func (c *FundingLocked) MsgType() MessageType {
	return MsgFundingLocked
}

func (c *FundingLocked) MaxPayloadLength(uint32) uint32 {
	return 32 + 33
}

// Validate checks that the mandatory per-commitment point is present.
func (c *FundingLocked) Validate() error {
	if c.NextPerCommitmentPoint == nil {
		return fmt.Errorf("next per commitment point must be non-nil")
	}
	return nil
}
