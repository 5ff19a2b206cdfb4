package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/tlv"
)

// nextFundingTxIDType is the BOLT #2 TLV type carrying NextFundingTxID in
// channel_reestablish's optional extension stream.
const nextFundingTxIDType tlv.Type = 0

// ChannelReestablish is exchanged immediately after reconnecting on a
// channel that survived a disconnect, letting each side detect whether its
// peer has fallen behind (or ahead) in the commitment-ledger state machine
// and recover lost revocation secrets from shachain if so.
type ChannelReestablish struct {
	ChanID ChannelID

	// NextLocalCommitmentNumber is the index of the next local
	// commitment the sender expects to receive a CommitSig for.
	NextLocalCommitmentNumber uint64

	// NextRemoteRevocationNumber is the commitment index of the next
	// revocation the sender expects to receive.
	NextRemoteRevocationNumber uint64

	// YourLastPerCommitmentSecret, when non-zero, proves the sender
	// already has the revocation secret for the peer's last commitment,
	// letting the peer verify nothing was lost.
	YourLastPerCommitmentSecret [32]byte

	// MyCurrentPerCommitmentPoint is the sender's current per-commitment
	// point, letting the peer re-derive outputs for a unilateral close
	// if the two sides turn out to disagree on commitment state.
	MyCurrentPerCommitmentPoint *btcec.PublicKey

	// NextFundingTxID is set only when an interactive funding
	// negotiation was still in flight at disconnect, so the peer can
	// tell whether to resume or abandon it. Carried as an optional TLV
	// extension record rather than a fixed field, per BOLT #2.
	NextFundingTxID *[32]byte
}

var _ Message = (*ChannelReestablish)(nil)

func (c *ChannelReestablish) Decode(r io.Reader, pver uint32) error {
	if err := readElements(r,
		&c.ChanID,
		&c.NextLocalCommitmentNumber,
		&c.NextRemoteRevocationNumber,
		c.YourLastPerCommitmentSecret[:],
		&c.MyCurrentPerCommitmentPoint,
	); err != nil {
		return err
	}

	var txid [32]byte
	stream, err := tlv.NewStream(tlv.MakePrimitiveRecord(nextFundingTxIDType, &txid))
	if err != nil {
		return err
	}
	parsedTypes, err := stream.DecodeWithParsedTypes(r)
	if err != nil {
		return err
	}
	if _, ok := parsedTypes[nextFundingTxIDType]; ok {
		c.NextFundingTxID = &txid
	}
	return nil
}

func (c *ChannelReestablish) Encode(w io.Writer, pver uint32) error {
	if err := writeElements(w,
		c.ChanID,
		c.NextLocalCommitmentNumber,
		c.NextRemoteRevocationNumber,
		c.YourLastPerCommitmentSecret[:],
		c.MyCurrentPerCommitmentPoint,
	); err != nil {
		return err
	}

	if c.NextFundingTxID == nil {
		return nil
	}
	stream, err := tlv.NewStream(tlv.MakePrimitiveRecord(nextFundingTxIDType, c.NextFundingTxID))
	if err != nil {
		return err
	}
	return stream.Encode(w)
}

func (c *ChannelReestablish) MsgType() MessageType {
	return MsgChannelReestablish
}

func (c *ChannelReestablish) MaxPayloadLength(uint32) uint32 {
	return 32 + 8 + 8 + 32 + 33 + 40
}
