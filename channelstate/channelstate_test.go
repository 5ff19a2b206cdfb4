package channelstate

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/peercore/lnwallet"
	"github.com/lightningnetwork/peercore/lnwire"
)

// fakeKeyManager derives every per-commitment point as the generator point
// times index+1, so tests can assert on a deterministic value without
// caring about the real derivation scheme.
type fakeKeyManager struct{}

func (fakeKeyManager) NextPerCommitmentPoint(_ lnwire.ChannelID, index uint64) (*btcec.PublicKey, error) {
	var priv btcec.ModNScalar
	priv.SetInt(uint32(index) + 1)
	var pub btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&priv, &pub)
	pub.ToAffine()
	return btcec.NewPublicKey(&pub.X, &pub.Y), nil
}

func (fakeKeyManager) RevokePerCommitmentSecret(_ lnwire.ChannelID, index uint64) ([32]byte, error) {
	var secret [32]byte
	secret[31] = byte(index) + 1
	return secret, nil
}

func (fakeKeyManager) SignCommitTx(_ lnwire.ChannelID, _ *wire.MsgTx) (lnwire.Sig, error) {
	var sig lnwire.Sig
	sig[0] = 1
	return sig, nil
}

func (fakeKeyManager) SignHtlcTx(_ lnwire.ChannelID, _ *wire.MsgTx, _ int,
	_ []byte, _ btcutil.Amount) (lnwire.Sig, error) {

	var sig lnwire.Sig
	sig[0] = 1
	return sig, nil
}

type fakeInvoices struct {
	amounts map[[32]byte]uint64
}

func (f fakeInvoices) LookupAmount(paymentHash [32]byte) (uint64, bool) {
	amt, ok := f.amounts[paymentHash]
	return amt, ok
}

func testLocalParams(isFunder bool) lnwallet.LocalParams {
	return lnwallet.LocalParams{
		DustLimit:            btcutil.Amount(573),
		MaxHTLCValueInFlight: btcutil.Amount(1 << 30),
		ChannelReserve:       btcutil.Amount(10000),
		HtlcMinimum:          btcutil.Amount(1),
		ToSelfDelay:          144,
		MaxAcceptedHTLCs:     30,
		IsFunder:             isFunder,
	}
}

func testRemoteParams() lnwallet.RemoteParams {
	return lnwallet.RemoteParams{
		DustLimit:            btcutil.Amount(573),
		MaxHTLCValueInFlight: btcutil.Amount(1 << 30),
		ChannelReserve:       btcutil.Amount(10000),
		HtlcMinimum:          btcutil.Amount(1),
		ToSelfDelay:          144,
		MaxAcceptedHTLCs:     30,
	}
}

func TestFunderSendsOpenChannel(t *testing.T) {
	t.Parallel()

	s := State{
		Phase:       WaitForInit,
		IsFunder:    true,
		TempChanID:  lnwire.ChannelID{0xaa},
		LocalParams: testLocalParams(true),
	}
	deps := Deps{KeyManager: fakeKeyManager{}}

	next, actions, err := Process(s, ExecuteCommand{Cmd: CmdOpenChannel{
		FundingAmount: btcutil.Amount(1000000),
		FeeratePerKw:  253,
	}}, deps)
	require.NoError(t, err)
	require.Equal(t, WaitForAcceptChannel, next.Phase)
	require.Len(t, actions, 1)

	sendMsg, ok := actions[0].(SendMessage)
	require.True(t, ok)
	open, ok := sendMsg.Msg.(*lnwire.OpenChannel)
	require.True(t, ok)
	require.Equal(t, btcutil.Amount(1000000), open.FundingAmount)
}

func TestFundeeRespondsToOpenChannel(t *testing.T) {
	t.Parallel()

	s := State{
		Phase:       WaitForInit,
		IsFunder:    false,
		LocalParams: testLocalParams(false),
	}
	deps := Deps{KeyManager: fakeKeyManager{}}

	open := &lnwire.OpenChannel{
		PendingChannelID: lnwire.ChannelID{0xbb},
		FundingAmount:    btcutil.Amount(1000000),
		DustLimit:        btcutil.Amount(573),
		ToSelfDelay:      144,
		MaxAcceptedHTLCs: 30,
	}

	next, actions, err := Process(s, MessageReceived{Msg: open}, deps)
	require.NoError(t, err)
	require.Equal(t, WaitForFundingCreated, next.Phase)
	require.Equal(t, open.PendingChannelID, next.TempChanID)
	require.Len(t, actions, 1)

	sendMsg, ok := actions[0].(SendMessage)
	require.True(t, ok)
	_, ok = sendMsg.Msg.(*lnwire.AcceptChannel)
	require.True(t, ok)
}

func TestFundeeRejectsOpenChannelWhenFunder(t *testing.T) {
	t.Parallel()

	s := State{Phase: WaitForInit, IsFunder: true}
	_, _, err := Process(s, MessageReceived{Msg: &lnwire.OpenChannel{}}, Deps{})
	require.Error(t, err)
}

func normalState(t *testing.T, isFunder bool) State {
	t.Helper()

	chanID := lnwire.ChannelID{0x01}
	return State{
		Phase:        Normal,
		ChanID:       chanID,
		IsFunder:     isFunder,
		LocalParams:  testLocalParams(isFunder),
		RemoteParams: testRemoteParams(),
		Commitments: &lnwallet.Commitments{
			ChannelID:    chanID,
			LocalParams:  testLocalParams(isFunder),
			RemoteParams: testRemoteParams(),
			LocalCommit: lnwallet.LocalCommit{
				Spec: lnwallet.CommitmentSpec{
					FeeratePerKw: 253,
					ToLocal:      btcutil.Amount(500000),
					ToRemote:     btcutil.Amount(500000),
				},
			},
			RemoteCommit: lnwallet.RemoteCommit{
				Spec: lnwallet.CommitmentSpec{
					FeeratePerKw: 253,
					ToLocal:      btcutil.Amount(500000),
					ToRemote:     btcutil.Amount(500000),
				},
			},
			OriginMap: make(map[uint64]lnwallet.Origin),
		},
	}
}

func TestNormalAddHtlcCommand(t *testing.T) {
	t.Parallel()

	s := normalState(t, true)
	deps := Deps{KeyManager: fakeKeyManager{}}

	cmd := CmdAddHtlc{
		CmdAddHtlc: lnwallet.CmdAddHtlc{
			Amount:      btcutil.Amount(10000),
			PaymentHash: sha256.Sum256([]byte("preimage")),
			Expiry:      100,
		},
		MaxExpiry: 500000,
	}

	next, actions, err := Process(s, ExecuteCommand{Cmd: cmd}, deps)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	sendMsg, ok := actions[0].(SendMessage)
	require.True(t, ok)
	add, ok := sendMsg.Msg.(*lnwire.UpdateAddHTLC)
	require.True(t, ok)
	require.Equal(t, uint64(0), add.ID)
	require.Equal(t, uint64(1), next.Commitments.LocalNextHtlcID)
}

func TestNormalIllegalCommandDuringShutdown(t *testing.T) {
	t.Parallel()

	s := normalState(t, true)
	s.Phase = Shutdown

	_, _, err := Process(s, ExecuteCommand{Cmd: CmdAddHtlc{}}, Deps{KeyManager: fakeKeyManager{}})
	require.Error(t, err)
	require.IsType(t, &ErrIllegalCommand{}, err)
}

func TestInvalidAddForcesClose(t *testing.T) {
	t.Parallel()

	s := normalState(t, false)
	deps := Deps{KeyManager: fakeKeyManager{}}

	// Out-of-order htlc id triggers ErrCommitmentSyncError inside
	// ReceiveAdd, which handleNormalMessage maps to a forced close.
	badAdd := &lnwire.UpdateAddHTLC{ChanID: s.ChanID, ID: 7, Amount: 1000, Expiry: 100}

	next, actions, err := Process(s, MessageReceived{Msg: badAdd}, deps)
	require.NoError(t, err)
	require.Equal(t, Closing, next.Phase)
	require.NotEmpty(t, actions)

	_, ok := actions[0].(SendMessage)
	require.True(t, ok)
}

func TestDisconnectWrapsOfflineAndReconnectSendsReestablish(t *testing.T) {
	t.Parallel()

	s := normalState(t, true)
	deps := Deps{KeyManager: fakeKeyManager{}}

	offline, actions, err := Process(s, Disconnected{}, deps)
	require.NoError(t, err)
	require.Equal(t, Offline, offline.Phase)
	require.Equal(t, Normal, offline.OfflinePhase)
	require.Nil(t, actions)

	reconnected, actions, err := Process(offline, Connected{}, deps)
	require.NoError(t, err)
	require.Equal(t, Normal, reconnected.Phase)
	require.Len(t, actions, 1)

	sendMsg, ok := actions[0].(SendMessage)
	require.True(t, ok)
	reestablish, ok := sendMsg.Msg.(*lnwire.ChannelReestablish)
	require.True(t, ok)
	require.Equal(t, uint64(1), reestablish.NextLocalCommitmentNumber)
}

func TestDeliverNewlyAckedRejectsOutOfRangeAmount(t *testing.T) {
	t.Parallel()

	paymentHash := sha256.Sum256([]byte("invoice"))
	invoices := fakeInvoices{amounts: map[[32]byte]uint64{paymentHash: 1000}}

	add := &lnwire.UpdateAddHTLC{ID: 0, Amount: btcutil.Amount(5000), PaymentHash: paymentHash}
	next := lnwallet.Commitments{
		RemoteChanges: lnwallet.PendingChanges{Acked: []lnwallet.Change{add}},
	}
	prev := State{Commitments: &lnwallet.Commitments{}}

	actions := deliverNewlyAcked(next, prev, invoices)
	require.Empty(t, actions)
}

func TestDeliverNewlyAckedAcceptsInRangeAmount(t *testing.T) {
	t.Parallel()

	paymentHash := sha256.Sum256([]byte("invoice"))
	invoices := fakeInvoices{amounts: map[[32]byte]uint64{paymentHash: 1000}}

	add := &lnwire.UpdateAddHTLC{ID: 0, Amount: btcutil.Amount(1500), PaymentHash: paymentHash}
	next := lnwallet.Commitments{
		RemoteChanges: lnwallet.PendingChanges{Acked: []lnwallet.Change{add}},
	}
	prev := State{Commitments: &lnwallet.Commitments{}}

	actions := deliverNewlyAcked(next, prev, invoices)
	require.Len(t, actions, 1)
	_, ok := actions[0].(ProcessAdd)
	require.True(t, ok)
}
