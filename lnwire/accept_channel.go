package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

// AcceptChannel is the fundee's response to OpenChannel, completing the
// exchange of LocalParams/RemoteParams needed before funding_created can be
// sent.
type AcceptChannel struct {
	PendingChannelID  ChannelID
	DustLimit         btcutil.Amount
	MaxValueInFlight  btcutil.Amount
	ChannelReserve    btcutil.Amount
	HtlcMinimum       btcutil.Amount
	MinimumDepth      uint32
	ToSelfDelay       uint16
	MaxAcceptedHTLCs  uint16

	FundingKey          *btcec.PublicKey
	RevocationPoint     *btcec.PublicKey
	PaymentPoint        *btcec.PublicKey
	DelayedPaymentPoint *btcec.PublicKey
	HtlcPoint           *btcec.PublicKey
	FirstPerCommitPoint *btcec.PublicKey
}

var _ Message = (*AcceptChannel)(nil)

func (c *AcceptChannel) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.PendingChannelID,
		&c.DustLimit,
		&c.MaxValueInFlight,
		&c.ChannelReserve,
		&c.HtlcMinimum,
		&c.MinimumDepth,
		&c.ToSelfDelay,
		&c.MaxAcceptedHTLCs,
		&c.FundingKey,
		&c.RevocationPoint,
		&c.PaymentPoint,
		&c.DelayedPaymentPoint,
		&c.HtlcPoint,
		&c.FirstPerCommitPoint,
	)
}

func (c *AcceptChannel) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.PendingChannelID,
		c.DustLimit,
		c.MaxValueInFlight,
		c.ChannelReserve,
		c.HtlcMinimum,
		c.MinimumDepth,
		c.ToSelfDelay,
		c.MaxAcceptedHTLCs,
		c.FundingKey,
		c.RevocationPoint,
		c.PaymentPoint,
		c.DelayedPaymentPoint,
		c.HtlcPoint,
		c.FirstPerCommitPoint,
	)
}

func (c *AcceptChannel) MsgType() MessageType {
	return MsgAcceptChannel
}

func (c *AcceptChannel) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
