package lnwallet

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightningnetwork/peercore/lnwire"
	"github.com/lightningnetwork/peercore/shachain"
)

// fakeKeyManager is a deterministic stand-in for the real signing
// collaborator: every per-commitment point is the generator point times
// index+1, and SignCommitTx produces a real ECDSA signature over
// the funding output's 2-of-2 script using fixed test keys, so
// verifyCommitSig's real signature check accepts it.
type fakeKeyManager struct {
	signKey       *btcec.PrivateKey
	fundingScript []byte
	fundingAmt    btcutil.Amount
}

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

func (km fakeKeyManager) SignCommitTx(_ lnwire.ChannelID, tx *wire.MsgTx) (lnwire.Sig, error) {
	hashCache := txscript.NewTxSigHashes(
		tx, txscript.NewCannedPrevOutputFetcher(km.fundingScript, int64(km.fundingAmt)),
	)
	rawSig, err := txscript.RawTxInWitnessSignature(
		tx, hashCache, 0, int64(km.fundingAmt), km.fundingScript,
		txscript.SigHashAll, km.signKey,
	)
	if err != nil {
		return lnwire.Sig{}, err
	}

	// RawTxInWitnessSignature appends the sighash type byte; strip it
	// before parsing the DER-encoded signature underneath.
	parsed, err := ecdsa.ParseDERSignature(rawSig[:len(rawSig)-1])
	if err != nil {
		return lnwire.Sig{}, err
	}
	return lnwire.NewSigFromSignature(parsed)
}

func (km fakeKeyManager) SignHtlcTx(_ lnwire.ChannelID, _ *wire.MsgTx, _ int,
	_ []byte, _ btcutil.Amount) (lnwire.Sig, error) {

	var sig lnwire.Sig
	sig[0] = 1
	return sig, nil
}

func testParams(isFunder bool, localPub, remotePub *btcec.PublicKey) (LocalParams, RemoteParams) {
	local := LocalParams{
		DustLimit:            btcutil.Amount(573),
		MaxHTLCValueInFlight: btcutil.Amount(1 << 30),
		ChannelReserve:       btcutil.Amount(10000),
		HtlcMinimum:          btcutil.Amount(1),
		ToSelfDelay:          144,
		MaxAcceptedHTLCs:     30,
		IsFunder:             isFunder,
		FundingKey:           localPub,
	}
	remote := RemoteParams{
		DustLimit:            btcutil.Amount(573),
		MaxHTLCValueInFlight: btcutil.Amount(1 << 30),
		ChannelReserve:       btcutil.Amount(10000),
		HtlcMinimum:          btcutil.Amount(1),
		ToSelfDelay:          144,
		MaxAcceptedHTLCs:     30,
		FundingKey:           remotePub,
	}
	return local, remote
}

// testFundingKeys returns a fixed, deterministic local/remote funding
// keypair so commitment-signature tests don't need real randomness.
func testFundingKeys(t *testing.T) (localPriv, remotePriv *btcec.PrivateKey) {
	t.Helper()

	var localScalar, remoteScalar btcec.ModNScalar
	localScalar.SetInt(11)
	remoteScalar.SetInt(22)
	return btcec.PrivKeyFromScalar(&localScalar), btcec.PrivKeyFromScalar(&remoteScalar)
}

func testCommitments(t *testing.T, isFunder bool) (Commitments, fakeKeyManager) {
	t.Helper()

	localPriv, remotePriv := testFundingKeys(t)
	localPub, remotePub := localPriv.PubKey(), remotePriv.PubKey()

	local, remote := testParams(isFunder, localPub, remotePub)

	fundingScript, fundingOut, err := GenFundingPkScript(
		localPub.SerializeCompressed(), remotePub.SerializeCompressed(), 1_000_000,
	)
	require.NoError(t, err)

	c := Commitments{
		ChannelID:    lnwire.ChannelID{0x01},
		LocalParams:  local,
		RemoteParams: remote,
		CommitInput:  fundingOut,
		LocalCommit: LocalCommit{
			Spec: CommitmentSpec{
				FeeratePerKw: 253,
				ToLocal:      btcutil.Amount(500000),
				ToRemote:     btcutil.Amount(500000),
			},
		},
		RemoteCommit: RemoteCommit{
			Spec: CommitmentSpec{
				FeeratePerKw: 253,
				ToLocal:      btcutil.Amount(500000),
				ToRemote:     btcutil.Amount(500000),
			},
		},
		OriginMap: make(map[uint64]Origin),
	}

	// The peer's CommitSig is signed with the remote funding key, since it
	// is the remote party's signature over our local commitment tx that
	// ReceiveCommit verifies.
	km := fakeKeyManager{
		signKey:       remotePriv,
		fundingScript: fundingScript,
		fundingAmt:    btcutil.Amount(fundingOut.Value),
	}

	return c, km
}

func TestSendAddIncreasesHtlcIDAndReducesBalance(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, true)

	cmd := CmdAddHtlc{
		Amount:      btcutil.Amount(10000),
		PaymentHash: sha256.Sum256([]byte("preimage")),
		Expiry:      100,
	}

	next, add, err := c.SendAdd(cmd, 500000)
	require.NoError(t, err)
	require.Equal(t, uint64(0), add.ID)
	require.Equal(t, uint64(1), next.LocalNextHtlcID)
	require.Len(t, next.LocalChanges.Proposed, 1)
	require.Equal(t, btcutil.Amount(500000)-cmd.Amount, next.localView().ToLocal)

	// The original commitments value must be untouched.
	require.Equal(t, uint64(0), c.LocalNextHtlcID)
	require.Len(t, c.LocalChanges.Proposed, 0)
}

func TestSendAddRejectsBelowMinimum(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, true)
	cmd := CmdAddHtlc{Amount: btcutil.Amount(0), Expiry: 100}

	_, _, err := c.SendAdd(cmd, 500000)
	require.Error(t, err)
	require.IsType(t, &ErrHtlcValueTooSmall{}, err)
}

func TestSendAddRejectsExpiryTooBig(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, true)
	cmd := CmdAddHtlc{Amount: btcutil.Amount(1000), Expiry: 900000}

	_, _, err := c.SendAdd(cmd, 500000)
	require.Error(t, err)
	require.IsType(t, &ErrExpiryTooBig{}, err)
}

func TestSendAddRejectsInsufficientFunds(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, true)
	cmd := CmdAddHtlc{Amount: btcutil.Amount(10000000), Expiry: 100}

	_, _, err := c.SendAdd(cmd, 500000)
	require.Error(t, err)
	require.IsType(t, &ErrInsufficientFunds{}, err)
}

func TestReceiveAddRejectsOutOfOrderID(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, false)
	add := &lnwire.UpdateAddHTLC{
		ID:     5,
		Amount: btcutil.Amount(1000),
		Expiry: 100,
	}

	_, err := c.ReceiveAdd(add, 500000)
	require.Error(t, err)
	require.IsType(t, &ErrCommitmentSyncError{}, err)
}

func TestSendFulfillRequiresMatchingPreimage(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, true)
	preimage := sha256.Sum256([]byte("secret"))
	paymentHash := sha256.Sum256(preimage[:])

	cmd := CmdAddHtlc{Amount: btcutil.Amount(10000), PaymentHash: paymentHash, Expiry: 100}
	next, add, err := c.SendAdd(cmd, 500000)
	require.NoError(t, err)

	// Fold the add into RemoteCommit.Spec as if it had already been
	// signed and acked, since findAdd also checks the committed specs.
	next.RemoteCommit.Spec.Htlcs = append(next.RemoteCommit.Spec.Htlcs, HtlcDesc{
		Direction: DirectionOffered,
		Add:       add,
	})

	_, _, err = next.SendFulfill(add.ID, preimage)
	require.NoError(t, err)

	var wrongPreimage [32]byte
	_, _, err = next.SendFulfill(add.ID, wrongPreimage)
	require.Error(t, err)
	require.IsType(t, &ErrInvalidHtlcPreimage{}, err)
}

func TestSendFeeOnlyPermittedForFunder(t *testing.T) {
	t.Parallel()

	nonFunder, _ := testCommitments(t, false)
	_, _, err := nonFunder.SendFee(300)
	require.Error(t, err)
	require.IsType(t, &ErrFeeratePrecondition{}, err)

	funder, _ := testCommitments(t, true)
	next, msg, err := funder.SendFee(300)
	require.NoError(t, err)
	require.Equal(t, uint32(300), msg.FeeratePerKw)
	require.Len(t, next.LocalChanges.Proposed, 1)
}

func TestSendCommitFailsWithNothingPending(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, true)
	_, _, err := c.SendCommit(fakeKeyManager{})
	require.Error(t, err)
	require.IsType(t, &ErrCannotSignWithoutChanges{}, err)
}

func TestCommitmentRoundTrip(t *testing.T) {
	t.Parallel()

	c, km := testCommitments(t, true)
	point, err := km.NextPerCommitmentPoint(c.ChannelID, 1)
	require.NoError(t, err)
	c.RemoteNextCommitInfo.NextPoint = point

	cmd := CmdAddHtlc{
		Amount:      btcutil.Amount(10000),
		PaymentHash: sha256.Sum256([]byte("preimage")),
		Expiry:      100,
	}
	withAdd, add, err := c.SendAdd(cmd, 500000)
	require.NoError(t, err)
	_ = add

	// SendCommit signs the peer's view, which needs the add folded into
	// remoteChanges before it shows up in the spec being signed.
	signed, sig, err := withAdd.SendCommit(km)
	require.NoError(t, err)
	require.NotNil(t, sig)
	require.Len(t, signed.RemoteChanges.Proposed, 0)
	require.NotNil(t, signed.RemoteNextCommitInfo.Pending)

	// Build a CommitSig as if the peer had signed our localView: compute
	// the exact same commitment transaction ReceiveCommit will build
	// internally and sign it with the remote funding key, so
	// verifyCommitSig accepts it.
	localSpec := signed.localView()
	commitTx, err := buildCommitTx(localSpec, signed.FundingOutpoint)
	require.NoError(t, err)
	peerSig, err := km.SignCommitTx(signed.ChannelID, commitTx)
	require.NoError(t, err)

	htlcSigs := make([]lnwire.Sig, len(localSpec.Htlcs))
	for i := range localSpec.Htlcs {
		htlcSigs[i] = peerSig
	}

	commitSig := &lnwire.CommitSig{
		ChanID:    signed.ChannelID,
		CommitSig: peerSig,
		HtlcSigs:  htlcSigs,
	}

	acked, revoke, err := signed.ReceiveCommit(commitSig, km)
	require.NoError(t, err)
	require.NotNil(t, revoke)
	require.Equal(t, uint64(1), acked.LocalCommit.Index)
	require.Len(t, acked.LocalCommit.Spec.Htlcs, 1)
}

func TestReceiveRevocationRequiresPendingCommit(t *testing.T) {
	t.Parallel()

	c, _ := testCommitments(t, true)
	revoke := &lnwire.RevokeAndAck{ChanID: c.ChannelID}

	_, err := c.ReceiveRevocation(revoke)
	require.Error(t, err)
	require.IsType(t, &ErrCommitmentSyncError{}, err)
}

// receiveSimulatedCommit builds a CommitSig as if the peer had signed c's
// localView and delivers it via ReceiveCommit.
func receiveSimulatedCommit(t *testing.T, c Commitments, km fakeKeyManager) Commitments {
	t.Helper()

	localSpec := c.localView()
	commitTx, err := buildCommitTx(localSpec, c.FundingOutpoint)
	require.NoError(t, err)

	peerSig, err := km.SignCommitTx(c.ChannelID, commitTx)
	require.NoError(t, err)

	htlcSigs := make([]lnwire.Sig, len(localSpec.Htlcs))
	for i := range localSpec.Htlcs {
		htlcSigs[i] = peerSig
	}

	next, _, err := c.ReceiveCommit(&lnwire.CommitSig{
		ChanID:    c.ChannelID,
		CommitSig: peerSig,
		HtlcSigs:  htlcSigs,
	}, km)
	require.NoError(t, err)
	return next
}

// receiveSimulatedRevocation derives the secret for revokedHeight from seed
// and delivers a RevokeAndAck revoking it, advancing c's RemoteCommit and
// handing back the per-commitment point for nextPointIndex.
func receiveSimulatedRevocation(
	t *testing.T, c Commitments, km fakeKeyManager,
	seed shachain.Secret, revokedHeight, nextPointIndex uint64,
) Commitments {
	t.Helper()

	secret := shachain.DeriveSecret(seed, shachain.MaxIndex-revokedHeight)

	nextPoint, err := km.NextPerCommitmentPoint(c.ChannelID, nextPointIndex)
	require.NoError(t, err)

	next, err := c.ReceiveRevocation(&lnwire.RevokeAndAck{
		ChanID:                 c.ChannelID,
		Revocation:             [32]byte(secret),
		NextPerCommitmentPoint: nextPoint,
	})
	require.NoError(t, err)
	return next
}

// TestCommitmentTwoCyclesDoNotDoubleCount drives two full add/sign/revoke
// cycles and checks that the second cycle's HTLCs and balance reflect
// exactly what was proposed across both cycles, not the first cycle's
// changes folded in a second time by a change queue that was never pruned.
func TestCommitmentTwoCyclesDoNotDoubleCount(t *testing.T) {
	t.Parallel()

	c, km := testCommitments(t, true)

	var seed shachain.Secret
	for i := range seed {
		seed[i] = byte(i)
	}

	point1, err := km.NextPerCommitmentPoint(c.ChannelID, 1)
	require.NoError(t, err)
	c.RemoteNextCommitInfo.NextPoint = point1

	const amount1 = btcutil.Amount(10000)
	const amount2 = btcutil.Amount(20000)

	// Cycle 1.
	withAdd1, add1, err := c.SendAdd(CmdAddHtlc{
		Amount:      amount1,
		PaymentHash: sha256.Sum256([]byte("preimage-1")),
		Expiry:      100,
	}, 500000)
	require.NoError(t, err)

	signed1, _, err := withAdd1.SendCommit(km)
	require.NoError(t, err)

	acked1 := receiveSimulatedCommit(t, signed1, km)
	require.Len(t, acked1.LocalCommit.Spec.Htlcs, 1)
	require.Equal(t, btcutil.Amount(500000)-amount1, acked1.LocalCommit.Spec.ToLocal)

	revoked1 := receiveSimulatedRevocation(t, acked1, km, seed, 0, 2)

	// Cycle 2.
	withAdd2, _, err := revoked1.SendAdd(CmdAddHtlc{
		Amount:      amount2,
		PaymentHash: sha256.Sum256([]byte("preimage-2")),
		Expiry:      100,
	}, 500000)
	require.NoError(t, err)

	signed2, _, err := withAdd2.SendCommit(km)
	require.NoError(t, err)

	acked2 := receiveSimulatedCommit(t, signed2, km)

	// The second LocalCommit must carry both HTLCs exactly once each and
	// debit both amounts exactly once — not the first HTLC/amount baked
	// in again by a stale, un-pruned change queue.
	require.Len(t, acked2.LocalCommit.Spec.Htlcs, 2)
	require.Equal(t, uint64(2), acked2.LocalCommit.Index)
	require.Equal(t,
		btcutil.Amount(500000)-amount1-amount2,
		acked2.LocalCommit.Spec.ToLocal,
	)

	revoked2 := receiveSimulatedRevocation(t, acked2, km, seed, 1, 3)

	// The first cycle's add is fully baked into both LocalCommit.Spec and
	// RemoteCommit.Spec by now, so it must have been pruned from the
	// queue; only the second add, not yet folded into a RemoteCommit.Spec,
	// remains pending. A queue that was never pruned would still carry
	// both.
	require.Len(t, revoked2.RemoteChanges.All(), 0)
	require.Len(t, revoked2.LocalChanges.All(), 1)
	remaining, ok := revoked2.LocalChanges.All()[0].(*lnwire.UpdateAddHTLC)
	require.True(t, ok)
	require.Equal(t, amount2, remaining.Amount)
	require.NotEqual(t, add1.ID, remaining.ID)
}
