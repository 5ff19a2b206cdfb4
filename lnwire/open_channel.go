package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// OpenChannel is the first message of the funding flow, sent by the funder
// to propose a new channel and stake out its LocalParams, matching the
// fields a channel's LocalParams/RemoteParams require to be exchanged.
type OpenChannel struct {
	ChainHash            chainhash.Hash
	PendingChannelID     ChannelID
	FundingAmount        btcutil.Amount
	PushAmount           btcutil.Amount
	DustLimit            btcutil.Amount
	MaxValueInFlight     btcutil.Amount
	ChannelReserve       btcutil.Amount
	HtlcMinimum          btcutil.Amount
	FeeratePerKw         uint32
	ToSelfDelay          uint16
	MaxAcceptedHTLCs     uint16

	FundingKey            *btcec.PublicKey
	RevocationPoint       *btcec.PublicKey
	PaymentPoint          *btcec.PublicKey
	DelayedPaymentPoint   *btcec.PublicKey
	HtlcPoint             *btcec.PublicKey
	FirstPerCommitPoint   *btcec.PublicKey

	ChannelFlags byte
}

var _ Message = (*OpenChannel)(nil)

func (c *OpenChannel) Decode(r io.Reader, pver uint32) error {
	return readElements(r,
		&c.ChainHash,
		&c.PendingChannelID,
		&c.FundingAmount,
		&c.PushAmount,
		&c.DustLimit,
		&c.MaxValueInFlight,
		&c.ChannelReserve,
		&c.HtlcMinimum,
		&c.FeeratePerKw,
		&c.ToSelfDelay,
		&c.MaxAcceptedHTLCs,
		&c.FundingKey,
		&c.RevocationPoint,
		&c.PaymentPoint,
		&c.DelayedPaymentPoint,
		&c.HtlcPoint,
		&c.FirstPerCommitPoint,
		&c.ChannelFlags,
	)
}

func (c *OpenChannel) Encode(w io.Writer, pver uint32) error {
	return writeElements(w,
		c.ChainHash,
		c.PendingChannelID,
		c.FundingAmount,
		c.PushAmount,
		c.DustLimit,
		c.MaxValueInFlight,
		c.ChannelReserve,
		c.HtlcMinimum,
		c.FeeratePerKw,
		c.ToSelfDelay,
		c.MaxAcceptedHTLCs,
		c.FundingKey,
		c.RevocationPoint,
		c.PaymentPoint,
		c.DelayedPaymentPoint,
		c.HtlcPoint,
		c.FirstPerCommitPoint,
		c.ChannelFlags,
	)
}

func (c *OpenChannel) MsgType() MessageType {
	return MsgOpenChannel
}

func (c *OpenChannel) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
