package lnwire

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func randPubKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func randHash() (h [32]byte) {
	rand.Read(h[:])
	return h
}

// roundTrip encodes msg, decodes it back through WriteMessage/ReadMessage,
// and returns the decoded copy. This exercises the full wire framing
// including the 2-byte message type header.
func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()

	var buf bytes.Buffer
	_, err := WriteMessage(&buf, msg, 0)
	require.NoError(t, err)

	got, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, msg.MsgType(), got.MsgType())
	return got
}

func TestInitRoundTrip(t *testing.T) {
	msg := NewInitMessage([]byte{0x01}, []byte{0xff, 0x00})
	got := roundTrip(t, msg).(*Init)
	require.Equal(t, msg.GlobalFeatures, got.GlobalFeatures)
	require.Equal(t, msg.LocalFeatures, got.LocalFeatures)
}

func TestPingPongRoundTrip(t *testing.T) {
	ping := NewPing(32)
	ping.PaddingBytes = make([]byte, 5)
	got := roundTrip(t, ping).(*Ping)
	require.Equal(t, ping.NumPongBytes, got.NumPongBytes)
	require.Equal(t, ping.PaddingBytes, got.PaddingBytes)

	pong := NewPong(5)
	gotPong := roundTrip(t, pong).(*Pong)
	require.Equal(t, pong.PongBytes, gotPong.PongBytes)
}

func TestErrorRoundTrip(t *testing.T) {
	var chanID ChannelID
	rand.Read(chanID[:])
	msg := NewError(chanID, "internal error")
	got := roundTrip(t, msg).(*Error)
	require.Equal(t, msg.ChanID, got.ChanID)
	require.Equal(t, "internal error", got.String())
}

func TestOpenChannelRoundTrip(t *testing.T) {
	msg := &OpenChannel{
		ChainHash:           chainhash.Hash(randHash()),
		PendingChannelID:    ChannelID(randHash()),
		FundingAmount:       btcutil.Amount(100_000),
		PushAmount:          btcutil.Amount(1_000),
		DustLimit:           btcutil.Amount(573),
		MaxValueInFlight:    btcutil.Amount(100_000),
		ChannelReserve:      btcutil.Amount(1_000),
		HtlcMinimum:         btcutil.Amount(1),
		FeeratePerKw:        253,
		ToSelfDelay:         144,
		MaxAcceptedHTLCs:    30,
		FundingKey:          randPubKey(t),
		RevocationPoint:     randPubKey(t),
		PaymentPoint:        randPubKey(t),
		DelayedPaymentPoint: randPubKey(t),
		HtlcPoint:           randPubKey(t),
		FirstPerCommitPoint: randPubKey(t),
		ChannelFlags:        1,
	}
	got := roundTrip(t, msg).(*OpenChannel)
	require.Equal(t, msg.FundingAmount, got.FundingAmount)
	require.Equal(t, msg.ToSelfDelay, got.ToSelfDelay)
	require.True(t, msg.FundingKey.IsEqual(got.FundingKey))
	require.Equal(t, msg.ChannelFlags, got.ChannelFlags)
}

func TestUpdateAddHTLCRoundTrip(t *testing.T) {
	msg := &UpdateAddHTLC{
		ChanID:      ChannelID(randHash()),
		ID:          7,
		Amount:      btcutil.Amount(50_000),
		PaymentHash: randHash(),
		Expiry:      500_000,
	}
	got := roundTrip(t, msg).(*UpdateAddHTLC)
	require.Equal(t, msg.ID, got.ID)
	require.Equal(t, msg.Amount, got.Amount)
	require.Equal(t, msg.PaymentHash, got.PaymentHash)
	require.Equal(t, msg.OnionBlob, got.OnionBlob)
}

func TestUpdateFulfillHTLCRoundTrip(t *testing.T) {
	msg := NewUpdateFulfillHTLC(ChannelID(randHash()), 3, randHash())
	got := roundTrip(t, msg).(*UpdateFulfillHTLC)
	require.Equal(t, msg.ID, got.ID)
	require.Equal(t, msg.PaymentPreimage, got.PaymentPreimage)
}

func TestUpdateFailHTLCRoundTrip(t *testing.T) {
	msg := &UpdateFailHTLC{
		ChanID: ChannelID(randHash()),
		ID:     9,
		Reason: []byte("onion failure blob"),
	}
	got := roundTrip(t, msg).(*UpdateFailHTLC)
	require.Equal(t, msg.Reason, got.Reason)
}

func TestCommitSigRoundTrip(t *testing.T) {
	msg := &CommitSig{
		ChanID:   ChannelID(randHash()),
		HtlcSigs: []Sig{{0x01}, {0x02}, {0x03}},
	}
	got := roundTrip(t, msg).(*CommitSig)
	require.Equal(t, msg.HtlcSigs, got.HtlcSigs)
}

func TestRevokeAndAckRoundTrip(t *testing.T) {
	msg := &RevokeAndAck{
		ChanID:                  ChannelID(randHash()),
		Revocation:              randHash(),
		NextPerCommitmentPoint:  randPubKey(t),
	}
	got := roundTrip(t, msg).(*RevokeAndAck)
	require.Equal(t, msg.Revocation, got.Revocation)
	require.True(t, msg.NextPerCommitmentPoint.IsEqual(got.NextPerCommitmentPoint))
}

func TestChannelReestablishRoundTrip(t *testing.T) {
	msg := &ChannelReestablish{
		ChanID:                      ChannelID(randHash()),
		NextLocalCommitmentNumber:   4,
		NextRemoteRevocationNumber:  3,
		MyCurrentPerCommitmentPoint: randPubKey(t),
	}
	got := roundTrip(t, msg).(*ChannelReestablish)
	require.Equal(t, msg.NextLocalCommitmentNumber, got.NextLocalCommitmentNumber)
	require.Equal(t, msg.NextRemoteRevocationNumber, got.NextRemoteRevocationNumber)
	require.True(t, msg.MyCurrentPerCommitmentPoint.IsEqual(got.MyCurrentPerCommitmentPoint))
	require.Nil(t, got.NextFundingTxID)
}

// TestChannelReestablishWithNextFundingTxID checks the optional TLV
// extension round-trips when present.
func TestChannelReestablishWithNextFundingTxID(t *testing.T) {
	txid := randHash()
	msg := &ChannelReestablish{
		ChanID:                      ChannelID(randHash()),
		NextLocalCommitmentNumber:   1,
		NextRemoteRevocationNumber:  0,
		MyCurrentPerCommitmentPoint: randPubKey(t),
		NextFundingTxID:             &txid,
	}
	got := roundTrip(t, msg).(*ChannelReestablish)
	require.NotNil(t, got.NextFundingTxID)
	require.Equal(t, txid, *got.NextFundingTxID)
}

func TestUnknownMessageType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff})
	_, err := ReadMessage(&buf, 0)
	require.Error(t, err)
}
