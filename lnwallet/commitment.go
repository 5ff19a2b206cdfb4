package lnwallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/peercore/lnwire"
	"github.com/lightningnetwork/peercore/shachain"
)

// LocalParams holds the static, locally-controlled parameters negotiated at
// channel open. They never change for the lifetime of the channel.
type LocalParams struct {
	DustLimit        btcutil.Amount
	MaxHTLCValueInFlight btcutil.Amount
	ChannelReserve   btcutil.Amount
	HtlcMinimum      btcutil.Amount
	ToSelfDelay      uint16
	MaxAcceptedHTLCs uint16

	FundingKey          *btcec.PublicKey
	RevocationBasePoint *btcec.PublicKey
	PaymentBasePoint    *btcec.PublicKey
	DelayedPaymentBasePoint *btcec.PublicKey
	HtlcBasePoint       *btcec.PublicKey

	IsFunder bool
}

// RemoteParams mirrors LocalParams for the channel counterparty.
type RemoteParams struct {
	DustLimit        btcutil.Amount
	MaxHTLCValueInFlight btcutil.Amount
	ChannelReserve   btcutil.Amount
	HtlcMinimum      btcutil.Amount
	ToSelfDelay      uint16
	MaxAcceptedHTLCs uint16

	FundingKey          *btcec.PublicKey
	RevocationBasePoint *btcec.PublicKey
	PaymentBasePoint    *btcec.PublicKey
	DelayedPaymentBasePoint *btcec.PublicKey
	HtlcBasePoint       *btcec.PublicKey
}

// Direction indicates which side of the channel offered an HTLC.
type Direction uint8

const (
	DirectionOffered Direction = iota
	DirectionReceived
)

// HtlcDesc is one live HTLC as it appears within a CommitmentSpec.
type HtlcDesc struct {
	Direction   Direction
	Add         *lnwire.UpdateAddHTLC
	CommitFee   btcutil.Amount
}

// CommitmentSpec is the fully-reduced view of one side's commitment
// transaction: the set of live HTLCs plus the non-HTLC balances, before
// dust-trimming and signing.
type CommitmentSpec struct {
	FeeratePerKw uint32

	ToLocal  btcutil.Amount
	ToRemote btcutil.Amount

	Htlcs []HtlcDesc
}

// Copy returns a deep copy of the spec, safe for independent mutation.
func (s CommitmentSpec) Copy() CommitmentSpec {
	htlcs := make([]HtlcDesc, len(s.Htlcs))
	copy(htlcs, s.Htlcs)
	s.Htlcs = htlcs
	return s
}

// TotalHtlcAmount sums the amounts of every live HTLC in the spec.
func (s CommitmentSpec) TotalHtlcAmount() btcutil.Amount {
	var total btcutil.Amount
	for _, h := range s.Htlcs {
		total += h.Add.Amount
	}
	return total
}

// LocalCommit is the local party's most recent signed commitment: the
// reduced spec, the transaction that spec produces, and the remote's
// per-commitment point used to derive its keys.
type LocalCommit struct {
	Index                 uint64
	Spec                   CommitmentSpec
	CommitTx               *wire.MsgTx
	RemotePerCommitPoint   *btcec.PublicKey
}

// RemoteCommit mirrors LocalCommit for the counterparty's latest commitment
// that the local side has signed off on.
type RemoteCommit struct {
	Index                uint64
	Spec                  CommitmentSpec
	CommitTx              *wire.MsgTx
	RemotePerCommitPoint  *btcec.PublicKey
}

// Change is any of the five update messages that mutate a commitment's
// HTLC set or fee, reusing the wire message itself rather than duplicating
// its fields in a parallel ledger type.
type Change = lnwire.Message

// PendingChanges tracks the three stages a change passes through before it
// is irrevocably committed: proposed (received/generated, not yet covered
// by a CommitSig), signed (covered by a sent CommitSig, awaiting the
// peer's revocation), and acked (covered by a received, revoked commit).
type PendingChanges struct {
	Proposed []Change
	Signed   []Change
	Acked    []Change
}

// All returns every change across all three stages, in the order they were
// appended: acked, then signed, then proposed — oldest-applied first.
func (p PendingChanges) All() []Change {
	all := make([]Change, 0, len(p.Acked)+len(p.Signed)+len(p.Proposed))
	all = append(all, p.Acked...)
	all = append(all, p.Signed...)
	all = append(all, p.Proposed...)
	return all
}

// RemoteCommitInfo is either a pending RemoteCommit awaiting the peer's
// revocation, or — once revoked — just the next per-commitment point to
// use when building the following commitment.
type RemoteCommitInfo struct {
	Pending   *RemoteCommit
	NextPoint *btcec.PublicKey

	// pendingFoldedRemoteChanges and pendingFoldedLocalAcked are the
	// lengths of RemoteChanges.All() and LocalChanges.Acked at the
	// moment Pending.Spec was folded together. The matching
	// ReceiveRevocation adopts them as the new remote-baked cursors for
	// each queue, so neither gets re-folded into a later RemoteCommit.Spec.
	pendingFoldedRemoteChanges int
	pendingFoldedLocalAcked    int
}

// changeCursors tracks how much of a change queue's history (in
// PendingChanges.All() order) has already been folded into each side's
// base commitment spec. localView() and remoteView() retire entries on
// independent schedules — one side's view may need an entry long after
// the other has already baked it in — so an entry is only dropped from
// the queue once both cursors have passed it.
type changeCursors struct {
	bakedLocal  int
	bakedRemote int
}

// retire returns the prefix length both cursors have passed: it's safe
// to physically drop that many leading entries from the queue.
func (c changeCursors) retire() int {
	if c.bakedLocal < c.bakedRemote {
		return c.bakedLocal
	}
	return c.bakedRemote
}

// advance rebases both cursors after n leading entries are dropped from
// the queue they describe.
func (c changeCursors) advance(n int) changeCursors {
	return changeCursors{bakedLocal: c.bakedLocal - n, bakedRemote: c.bakedRemote - n}
}

// Origin records where a forwarded HTLC came from, so a downstream
// fulfill/fail can be routed back to its upstream channel.
type Origin struct {
	ChannelID lnwire.ChannelID
	HtlcID    uint64
}

// Commitments is the full per-channel commitment ledger: both sides'
// static parameters, both sides' latest signed commitments, the pending
// change queues, HTLC id counters, the forwarding origin map, and the
// shachain of secrets received from the remote party.
type Commitments struct {
	ChannelID lnwire.ChannelID

	LocalParams  LocalParams
	RemoteParams RemoteParams

	LocalCommit  LocalCommit
	RemoteCommit RemoteCommit

	LocalChanges  PendingChanges
	RemoteChanges PendingChanges

	// localChangesCursor and remoteChangesCursor track, for
	// LocalChanges and RemoteChanges respectively, how much of that queue
	// has been folded into LocalCommit.Spec (bakedLocal) and into
	// RemoteCommit.Spec (bakedRemote), so localView()/remoteView() never
	// re-fold an entry a base spec already accounts for.
	localChangesCursor  changeCursors
	remoteChangesCursor changeCursors

	LocalNextHtlcID  uint64
	RemoteNextHtlcID uint64

	OriginMap map[uint64]Origin

	RemoteNextCommitInfo RemoteCommitInfo

	// FundingOutpoint is the outpoint of the 2-of-2 funding output every
	// commitment transaction spends.
	FundingOutpoint wire.OutPoint

	CommitInput *wire.TxOut

	RemotePerCommitmentSecrets *shachain.Chain
}
