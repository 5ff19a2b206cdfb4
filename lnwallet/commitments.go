package lnwallet

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/peercore/lnwire"
	"github.com/lightningnetwork/peercore/shachain"
)

// KeyManager is the signing collaborator the commitment ledger consumes: it
// derives per-commitment points and produces the signatures a CommitSig
// needs, without itself holding any ledger state.
type KeyManager interface {
	// NextPerCommitmentPoint returns the point the channel should use
	// for the commitment at index, derived from the channel's shachain
	// seed.
	NextPerCommitmentPoint(chanID lnwire.ChannelID, index uint64) (*btcec.PublicKey, error)

	// RevokePerCommitmentSecret returns the preimage that revokes the
	// commitment at index once it has been superseded.
	RevokePerCommitmentSecret(chanID lnwire.ChannelID, index uint64) ([32]byte, error)

	// SignCommitTx signs tx, the local or remote party's commitment
	// transaction, spending the channel's funding output.
	SignCommitTx(chanID lnwire.ChannelID, tx *wire.MsgTx) (lnwire.Sig, error)

	// SignHtlcTx signs one HTLC output of tx at the given index, using
	// the per-commitment point that produced its script.
	SignHtlcTx(chanID lnwire.ChannelID, tx *wire.MsgTx, index int,
		htlcScript []byte, amt btcutil.Amount) (lnwire.Sig, error)
}

// reduce folds every change in changeSets onto spec, applying AddHtlc,
// FulfillHtlc, FailHtlc, FailMalformedHtlc, and UpdateFee in order. This is
// the core of projecting a would-be commitment view: changes the
// counterparty has already acked are folded in first, then this side's own
// pending proposals.
func reduce(spec CommitmentSpec, changeSets ...[]Change) CommitmentSpec {
	out := spec.Copy()

	for _, changes := range changeSets {
		for _, change := range changes {
			switch msg := change.(type) {
			case *lnwire.UpdateAddHTLC:
				out.Htlcs = append(out.Htlcs, HtlcDesc{
					Direction: DirectionOffered,
					Add:       msg,
				})
				out.ToLocal -= msg.Amount

			case *lnwire.UpdateFulfillHTLC:
				out.Htlcs, out.ToRemote = settleHtlc(
					out.Htlcs, msg.ID, out.ToRemote,
				)

			case *lnwire.UpdateFailHTLC:
				out.Htlcs, out.ToLocal = failHtlc(
					out.Htlcs, msg.ID, out.ToLocal,
				)

			case *lnwire.UpdateFailMalformedHTLC:
				out.Htlcs, out.ToLocal = failHtlc(
					out.Htlcs, msg.ID, out.ToLocal,
				)

			case *lnwire.UpdateFee:
				out.FeeratePerKw = msg.FeeratePerKw
			}
		}
	}

	return out
}

// settleHtlc removes the HTLC with the given id from htlcs, crediting its
// amount to the remote balance (the HTLC has been fulfilled).
func settleHtlc(htlcs []HtlcDesc, id uint64,
	toRemote btcutil.Amount) ([]HtlcDesc, btcutil.Amount) {

	kept := make([]HtlcDesc, 0, len(htlcs))
	for _, h := range htlcs {
		if h.Add.ID == id {
			toRemote += h.Add.Amount
			continue
		}
		kept = append(kept, h)
	}
	return kept, toRemote
}

// failHtlc removes the HTLC with the given id from htlcs, refunding its
// amount to the local balance (the HTLC has failed and reverts).
func failHtlc(htlcs []HtlcDesc, id uint64,
	toLocal btcutil.Amount) ([]HtlcDesc, btcutil.Amount) {

	kept := make([]HtlcDesc, 0, len(htlcs))
	for _, h := range htlcs {
		if h.Add.ID == id {
			toLocal += h.Add.Amount
			continue
		}
		kept = append(kept, h)
	}
	return kept, toLocal
}

// tail returns changes[n:], or nil if n is past the end — guards the
// cursor-sliced folds below against an out-of-range cursor.
func tail(changes []Change, n int) []Change {
	if n >= len(changes) {
		return nil
	}
	return changes[n:]
}

// localView returns the fully-reduced commitment spec from the local
// side's point of view: the last signed LocalCommit spec, with the
// remote's acked changes and all local changes folded in. Only the
// portion of each queue not yet baked into LocalCommit.Spec is folded,
// since the rest is already part of the base.
func (c *Commitments) localView() CommitmentSpec {
	return reduce(
		c.LocalCommit.Spec,
		tail(c.RemoteChanges.Acked, c.remoteChangesCursor.bakedLocal),
		tail(c.LocalChanges.All(), c.localChangesCursor.bakedLocal),
	)
}

// remoteView returns the fully-reduced commitment spec from the remote
// side's point of view. Only the portion of each queue not yet baked
// into RemoteCommit.Spec is folded.
func (c *Commitments) remoteView() CommitmentSpec {
	return reduce(
		c.RemoteCommit.Spec,
		tail(c.LocalChanges.Acked, c.localChangesCursor.bakedRemote),
		tail(c.RemoteChanges.All(), c.remoteChangesCursor.bakedRemote),
	)
}

// dustLimitFilteredHtlcCount returns the number of HTLCs in spec whose
// amount clears the dust limit and so would appear as a real output on the
// commitment transaction.
func dustLimitFilteredHtlcCount(spec CommitmentSpec, dustLimit btcutil.Amount) int {
	count := 0
	for _, h := range spec.Htlcs {
		if h.Add.Amount >= dustLimit {
			count++
		}
	}
	return count
}

// commitTxFee computes the fee a commitment transaction carrying the given
// number of HTLC outputs would pay at the given feerate.
func commitTxFee(feeratePerKw uint32, htlcCount int) btcutil.Amount {
	weight := estimateCommitTxWeight(htlcCount, false)
	return btcutil.Amount((int64(feeratePerKw) * weight) / 1000)
}

// availableBalanceForSend returns the maximum HTLC amount the local side
// may still add without violating the dust limit, the remote channel
// reserve, the max-in-flight limits, or — for the funder — the extra fee
// reserve for one more HTLC output.
func (c *Commitments) availableBalanceForSend() btcutil.Amount {
	spec := c.localView()

	htlcCount := dustLimitFilteredHtlcCount(spec, c.LocalParams.DustLimit)
	available := spec.ToLocal - c.RemoteParams.ChannelReserve

	if c.LocalParams.IsFunder {
		fee := commitTxFee(spec.FeeratePerKw, htlcCount+1)
		feeDelta := fee - commitTxFee(spec.FeeratePerKw, htlcCount)
		available -= fee + 2*feeDelta
	}

	var inFlight btcutil.Amount
	for _, h := range spec.Htlcs {
		if h.Direction == DirectionOffered {
			inFlight += h.Add.Amount
		}
	}
	if room := c.RemoteParams.MaxHTLCValueInFlight - inFlight; available > room {
		available = room
	}

	if available < 0 {
		return 0
	}
	return available
}

// availableBalanceForReceive mirrors availableBalanceForSend from the
// remote side's perspective, bounding how large an HTLC the remote side
// may still add.
func (c *Commitments) availableBalanceForReceive() btcutil.Amount {
	spec := c.remoteView()

	available := spec.ToRemote - c.LocalParams.ChannelReserve
	if !c.LocalParams.IsFunder {
		htlcCount := dustLimitFilteredHtlcCount(spec, c.RemoteParams.DustLimit)
		available -= commitTxFee(spec.FeeratePerKw, htlcCount+1)
	}

	if available < 0 {
		return 0
	}
	return available
}

// CmdAddHtlc is the host command that requests adding a new outgoing HTLC.
type CmdAddHtlc struct {
	Amount      btcutil.Amount
	PaymentHash [32]byte
	Expiry      uint32
	OnionBlob   [lnwire.OnionPacketSize]byte
	Origin      Origin
}

// SendAdd proposes a new outgoing HTLC, returning the updated ledger and
// the wire message to send. It fails with ErrHtlcValueTooSmall,
// ErrExpiryTooBig, ErrTooManyAcceptedHTLCs, or ErrInsufficientFunds
// without mutating the receiver.
func (c Commitments) SendAdd(cmd CmdAddHtlc, maxExpiry uint32) (Commitments, *lnwire.UpdateAddHTLC, error) {
	if cmd.Amount < c.RemoteParams.HtlcMinimum {
		return c, nil, &ErrHtlcValueTooSmall{
			Minimum: uint64(c.RemoteParams.HtlcMinimum),
			Amount:  uint64(cmd.Amount),
		}
	}
	if cmd.Expiry > maxExpiry {
		return c, nil, &ErrExpiryTooBig{Expiry: cmd.Expiry, MaxExpiry: maxExpiry}
	}

	pendingCount := len(c.localView().Htlcs) + 1
	if pendingCount > int(c.RemoteParams.MaxAcceptedHTLCs) {
		return c, nil, &ErrTooManyAcceptedHTLCs{
			Count: pendingCount,
			Max:   int(c.RemoteParams.MaxAcceptedHTLCs),
		}
	}

	available := c.availableBalanceForSend()
	if cmd.Amount > available {
		return c, nil, &ErrInsufficientFunds{
			Amount:    uint64(cmd.Amount),
			Available: uint64(available),
		}
	}

	add := &lnwire.UpdateAddHTLC{
		ChanID:      c.ChannelID,
		ID:          c.LocalNextHtlcID,
		Amount:      cmd.Amount,
		PaymentHash: cmd.PaymentHash,
		Expiry:      cmd.Expiry,
		OnionBlob:   cmd.OnionBlob,
	}

	next := c
	next.LocalChanges.Proposed = append(copyChanges(c.LocalChanges.Proposed), add)
	next.LocalNextHtlcID = c.LocalNextHtlcID + 1
	next.OriginMap = copyOriginMap(c.OriginMap)
	next.OriginMap[add.ID] = cmd.Origin

	return next, add, nil
}

// ReceiveAdd processes a peer's UpdateAddHTLC, validating it against this
// side's own limits before queuing it into remoteChanges.proposed.
func (c Commitments) ReceiveAdd(add *lnwire.UpdateAddHTLC, maxExpiry uint32) (Commitments, error) {
	if add.ID != c.RemoteNextHtlcID {
		return c, &ErrCommitmentSyncError{
			Expected: c.RemoteNextHtlcID,
			Got:      add.ID,
		}
	}
	if add.Amount < c.LocalParams.HtlcMinimum {
		return c, &ErrHtlcValueTooSmall{
			Minimum: uint64(c.LocalParams.HtlcMinimum),
			Amount:  uint64(add.Amount),
		}
	}
	if add.Expiry > maxExpiry {
		return c, &ErrExpiryTooBig{Expiry: add.Expiry, MaxExpiry: maxExpiry}
	}

	pendingCount := len(c.remoteView().Htlcs) + 1
	if pendingCount > int(c.LocalParams.MaxAcceptedHTLCs) {
		return c, &ErrTooManyAcceptedHTLCs{
			Count: pendingCount,
			Max:   int(c.LocalParams.MaxAcceptedHTLCs),
		}
	}
	available := c.availableBalanceForReceive()
	if add.Amount > available {
		return c, &ErrInsufficientFunds{
			Amount:    uint64(add.Amount),
			Available: uint64(available),
		}
	}

	next := c
	next.RemoteChanges.Proposed = append(copyChanges(c.RemoteChanges.Proposed), add)
	next.RemoteNextHtlcID = c.RemoteNextHtlcID + 1
	return next, nil
}

// findAdd looks up the still-live UpdateAddHTLC with the given id across
// every stage of both change queues and the already-committed specs.
func (c Commitments) findAdd(id uint64) (*lnwire.UpdateAddHTLC, bool) {
	for _, h := range c.LocalCommit.Spec.Htlcs {
		if h.Add.ID == id {
			return h.Add, true
		}
	}
	for _, h := range c.RemoteCommit.Spec.Htlcs {
		if h.Add.ID == id {
			return h.Add, true
		}
	}
	for _, ch := range c.LocalChanges.All() {
		if add, ok := ch.(*lnwire.UpdateAddHTLC); ok && add.ID == id {
			return add, true
		}
	}
	for _, ch := range c.RemoteChanges.All() {
		if add, ok := ch.(*lnwire.UpdateAddHTLC); ok && add.ID == id {
			return add, true
		}
	}
	return nil, false
}

// SendFulfill settles an HTLC the local side received, revealing preimage.
func (c Commitments) SendFulfill(id uint64, preimage [32]byte) (Commitments, *lnwire.UpdateFulfillHTLC, error) {
	add, ok := c.findAdd(id)
	if !ok {
		return c, nil, &ErrUnknownHtlcID{ID: id}
	}
	if sha256.Sum256(preimage[:]) != add.PaymentHash {
		return c, nil, &ErrInvalidHtlcPreimage{ID: id}
	}

	msg := &lnwire.UpdateFulfillHTLC{
		ChanID:          c.ChannelID,
		ID:              id,
		PaymentPreimage: preimage,
	}
	next := c
	next.LocalChanges.Proposed = append(copyChanges(c.LocalChanges.Proposed), msg)
	return next, msg, nil
}

// ReceiveFulfill applies a peer's UpdateFulfillHTLC to the remote change
// queue. The fulfill is queued in RemoteChanges.Proposed and, like any
// other remote change, moves to Acked when the peer's next CommitSig is
// received.
func (c Commitments) ReceiveFulfill(msg *lnwire.UpdateFulfillHTLC) (Commitments, error) {
	add, ok := c.findAdd(msg.ID)
	if !ok {
		return c, &ErrUnknownHtlcID{ID: msg.ID}
	}
	if sha256.Sum256(msg.PaymentPreimage[:]) != add.PaymentHash {
		return c, &ErrInvalidHtlcPreimage{ID: msg.ID}
	}

	next := c
	next.RemoteChanges.Proposed = append(copyChanges(c.RemoteChanges.Proposed), msg)
	return next, nil
}

// SendFail fails an HTLC the local side received, carrying an
// onion-encrypted reason back to the sender.
func (c Commitments) SendFail(id uint64, reason []byte) (Commitments, *lnwire.UpdateFailHTLC, error) {
	if _, ok := c.findAdd(id); !ok {
		return c, nil, &ErrUnknownHtlcID{ID: id}
	}

	msg := &lnwire.UpdateFailHTLC{ChanID: c.ChannelID, ID: id, Reason: reason}
	next := c
	next.LocalChanges.Proposed = append(copyChanges(c.LocalChanges.Proposed), msg)
	return next, msg, nil
}

// ReceiveFail applies a peer's UpdateFailHTLC.
func (c Commitments) ReceiveFail(msg *lnwire.UpdateFailHTLC) (Commitments, error) {
	if _, ok := c.findAdd(msg.ID); !ok {
		return c, &ErrUnknownHtlcID{ID: msg.ID}
	}

	next := c
	next.RemoteChanges.Proposed = append(copyChanges(c.RemoteChanges.Proposed), msg)
	return next, nil
}

// SendFee proposes a new commitment feerate; only the channel funder may
// call this successfully.
func (c Commitments) SendFee(feeratePerKw uint32) (Commitments, *lnwire.UpdateFee, error) {
	if !c.LocalParams.IsFunder {
		return c, nil, &ErrFeeratePrecondition{}
	}

	spec := c.localView()
	htlcCount := len(spec.Htlcs)
	fee := commitTxFee(feeratePerKw, htlcCount)
	if spec.ToLocal-fee < c.LocalParams.ChannelReserve {
		return c, nil, &ErrCannotAffordFees{FeeratePerKw: feeratePerKw}
	}

	msg := &lnwire.UpdateFee{ChanID: c.ChannelID, FeeratePerKw: feeratePerKw}
	next := c
	next.LocalChanges.Proposed = append(copyChanges(c.LocalChanges.Proposed), msg)
	return next, msg, nil
}

// ReceiveFee applies a peer's UpdateFee; only the remote funder may set it.
func (c Commitments) ReceiveFee(msg *lnwire.UpdateFee) (Commitments, error) {
	if c.LocalParams.IsFunder {
		return c, &ErrFeeratePrecondition{}
	}

	spec := c.remoteView()
	htlcCount := len(spec.Htlcs)
	fee := commitTxFee(msg.FeeratePerKw, htlcCount)
	if spec.ToRemote-fee < c.RemoteParams.ChannelReserve {
		return c, &ErrCannotAffordFees{FeeratePerKw: msg.FeeratePerKw}
	}

	next := c
	next.RemoteChanges.Proposed = append(copyChanges(c.RemoteChanges.Proposed), msg)
	return next, nil
}

// SendCommit signs the peer's next commitment transaction, covering every
// change proposed since the last CommitSig, and advances those changes
// from proposed to signed. It fails with ErrCannotSignWithoutChanges if
// nothing is pending.
func (c Commitments) SendCommit(km KeyManager) (Commitments, *lnwire.CommitSig, error) {
	if len(c.RemoteChanges.Proposed) == 0 && len(c.LocalChanges.Proposed) == 0 {
		return c, nil, &ErrCannotSignWithoutChanges{}
	}

	spec := c.remoteView()
	nextIndex := c.RemoteCommit.Index + 1
	point := c.RemoteNextCommitInfo.NextPoint

	commitTx, err := buildCommitTx(spec, c.FundingOutpoint)
	if err != nil {
		return c, nil, err
	}

	sig, err := km.SignCommitTx(c.ChannelID, commitTx)
	if err != nil {
		return c, nil, err
	}

	htlcSigs := make([]lnwire.Sig, 0, len(spec.Htlcs))
	for i, h := range spec.Htlcs {
		htlcScript, scriptErr := htlcOutputScript(h, point)
		if scriptErr != nil {
			return c, nil, scriptErr
		}
		hsig, signErr := km.SignHtlcTx(c.ChannelID, commitTx, i, htlcScript, h.Add.Amount)
		if signErr != nil {
			return c, nil, signErr
		}
		htlcSigs = append(htlcSigs, hsig)
	}

	msg := &lnwire.CommitSig{
		ChanID:    c.ChannelID,
		CommitSig: sig,
		HtlcSigs:  htlcSigs,
	}

	next := c
	next.LocalChanges = PendingChanges{
		Proposed: nil,
		Signed:   append(copyChanges(c.LocalChanges.Signed), c.LocalChanges.Proposed...),
		Acked:    c.LocalChanges.Acked,
	}
	next.RemoteNextCommitInfo = RemoteCommitInfo{
		Pending: &RemoteCommit{
			Index:                nextIndex,
			Spec:                 spec,
			CommitTx:             commitTx,
			RemotePerCommitPoint: point,
		},
		pendingFoldedRemoteChanges: len(c.RemoteChanges.All()),
		pendingFoldedLocalAcked:    len(c.LocalChanges.Acked),
	}

	return next, msg, nil
}

// ReceiveCommit verifies a peer's CommitSig against the local party's next
// commitment transaction and, on success, advances LocalCommit and moves
// remoteChanges.proposed to acked. Returns the RevokeAndAck to send back.
func (c Commitments) ReceiveCommit(msg *lnwire.CommitSig, km KeyManager) (Commitments, *lnwire.RevokeAndAck, error) {
	spec := c.localView()
	nextIndex := c.LocalCommit.Index + 1

	point, err := km.NextPerCommitmentPoint(c.ChannelID, nextIndex)
	if err != nil {
		return c, nil, err
	}

	commitTx, err := buildCommitTx(spec, c.FundingOutpoint)
	if err != nil {
		return c, nil, err
	}

	fundingScript, err := GenMultiSigScript(
		c.LocalParams.FundingKey.SerializeCompressed(),
		c.RemoteParams.FundingKey.SerializeCompressed(),
	)
	if err != nil {
		return c, nil, err
	}
	fundingAmt := btcutil.Amount(c.CommitInput.Value)

	if !verifyCommitSig(commitTx, fundingScript, fundingAmt, c.RemoteParams.FundingKey, msg.CommitSig) {
		return c, nil, &ErrInvalidCommitmentSignature{ChannelID: c.ChannelID}
	}
	if len(msg.HtlcSigs) != len(spec.Htlcs) {
		return c, nil, &ErrInvalidHtlcSignature{Index: len(msg.HtlcSigs)}
	}
	for i, sig := range msg.HtlcSigs {
		if !verifyHtlcSig(sig) {
			return c, nil, &ErrInvalidHtlcSignature{Index: i}
		}
	}

	revealed, err := km.RevokePerCommitmentSecret(c.ChannelID, c.LocalCommit.Index)
	if err != nil {
		return c, nil, err
	}

	next := c
	next.LocalCommit = LocalCommit{
		Index:                nextIndex,
		Spec:                 spec,
		CommitTx:             commitTx,
		RemotePerCommitPoint: point,
	}

	// spec above folded tail(c.RemoteChanges.Acked, bakedLocal) and all of
	// LocalChanges into the new LocalCommit.Spec. Record how far each
	// queue is now baked from the local side before promoting this call's
	// own batch of RemoteChanges.Proposed -> Acked, since that batch was
	// proposed after spec was computed and isn't folded in yet.
	next.remoteChangesCursor = changeCursors{
		bakedLocal:  len(c.RemoteChanges.Acked),
		bakedRemote: c.remoteChangesCursor.bakedRemote,
	}
	next.localChangesCursor = changeCursors{
		bakedLocal:  len(c.LocalChanges.All()),
		bakedRemote: c.localChangesCursor.bakedRemote,
	}

	next.RemoteChanges = PendingChanges{
		Proposed: nil,
		Signed:   c.RemoteChanges.Signed,
		Acked:    append(copyChanges(c.RemoteChanges.Acked), c.RemoteChanges.Proposed...),
	}
	next.LocalChanges = c.LocalChanges

	// Only physically drop entries both the local- and remote-baked
	// cursors have passed — remoteView() may still need an entry this
	// call just baked into LocalCommit.Spec.
	next.RemoteChanges, next.remoteChangesCursor = retireQueue(next.RemoteChanges, next.remoteChangesCursor)
	next.LocalChanges, next.localChangesCursor = retireQueue(next.LocalChanges, next.localChangesCursor)

	revoke := &lnwire.RevokeAndAck{
		ChanID:                 c.ChannelID,
		Revocation:             revealed,
		NextPerCommitmentPoint: point,
	}

	return next, revoke, nil
}

// ReceiveRevocation applies a peer's RevokeAndAck: the previously pending
// RemoteCommit becomes the new RemoteCommit, the revealed secret is
// inserted into the shachain, and local changes move from signed to acked.
func (c Commitments) ReceiveRevocation(msg *lnwire.RevokeAndAck) (Commitments, error) {
	if c.RemoteNextCommitInfo.Pending == nil {
		return c, &ErrCommitmentSyncError{
			Expected: c.RemoteCommit.Index + 1,
			Got:      c.RemoteCommit.Index,
		}
	}

	chain := c.RemotePerCommitmentSecrets
	if chain == nil {
		chain = shachain.New()
	}
	var secret shachain.Secret
	copy(secret[:], msg.Revocation[:])

	// c.RemoteCommit.Index is the commitment height (0, 1, 2, ...); the
	// chain itself is walked from 2^48-1 downward, per BOLT #3.
	chainIndex := shachain.MaxIndex - c.RemoteCommit.Index
	newChain, err := cloneAndInsert(chain, chainIndex, secret)
	if err != nil {
		return c, &ErrInvalidRevocation{}
	}

	next := c
	next.RemoteCommit = *c.RemoteNextCommitInfo.Pending
	next.RemotePerCommitmentSecrets = newChain

	// RemoteCommit.Spec just adopted above was built by SendCommit from
	// tail(LocalChanges.Acked, bakedRemote) and tail(RemoteChanges.All(),
	// bakedRemote); pendingFoldedLocalAcked/pendingFoldedRemoteChanges
	// record how far each queue was baked at that moment. Adopt them as
	// the new remote-baked cursors so a later remoteView() doesn't fold
	// the same entries in twice.
	next.remoteChangesCursor = changeCursors{
		bakedLocal:  c.remoteChangesCursor.bakedLocal,
		bakedRemote: c.RemoteNextCommitInfo.pendingFoldedRemoteChanges,
	}
	next.localChangesCursor = changeCursors{
		bakedLocal:  c.localChangesCursor.bakedLocal,
		bakedRemote: c.RemoteNextCommitInfo.pendingFoldedLocalAcked,
	}
	next.RemoteNextCommitInfo = RemoteCommitInfo{NextPoint: msg.NextPerCommitmentPoint}

	next.LocalChanges = PendingChanges{
		Proposed: c.LocalChanges.Proposed,
		Signed:   nil,
		Acked:    append(copyChanges(c.LocalChanges.Acked), c.LocalChanges.Signed...),
	}
	next.RemoteChanges = c.RemoteChanges

	// Only physically drop entries both cursors have passed — localView()
	// may still need an entry this revocation just baked into
	// RemoteCommit.Spec.
	next.RemoteChanges, next.remoteChangesCursor = retireQueue(next.RemoteChanges, next.remoteChangesCursor)
	next.LocalChanges, next.localChangesCursor = retireQueue(next.LocalChanges, next.localChangesCursor)

	return next, nil
}

// retireQueue physically drops the leading entries of pc that both of
// cursors' bakedLocal/bakedRemote have passed, rebasing the cursors to
// match. Anything before that point is baked into both LocalCommit.Spec
// and RemoteCommit.Spec, so neither localView() nor remoteView() will ever
// look at it again.
func retireQueue(pc PendingChanges, cursors changeCursors) (PendingChanges, changeCursors) {
	n := cursors.retire()
	if n <= 0 {
		return pc, cursors
	}
	return dropFoldedChanges(pc, n), cursors.advance(n)
}

// dropFoldedChanges removes the first n entries, in PendingChanges.All()'s
// acked/signed/proposed concatenation order, from pc — the entries a
// just-adopted base spec already accounts for — leaving anything proposed
// since that snapshot was taken untouched.
func dropFoldedChanges(pc PendingChanges, n int) PendingChanges {
	acked, n := dropChanges(pc.Acked, n)
	signed, n := dropChanges(pc.Signed, n)
	proposed, _ := dropChanges(pc.Proposed, n)
	return PendingChanges{Proposed: proposed, Signed: signed, Acked: acked}
}

// dropChanges removes the first n entries of changes (or all of them, if
// fewer than n), returning the remainder and however much of n is still
// left to remove from the next list in the concatenation.
func dropChanges(changes []Change, n int) ([]Change, int) {
	if n >= len(changes) {
		return nil, n - len(changes)
	}
	return copyChanges(changes[n:]), 0
}

// cloneAndInsert inserts secret at index into a copy of chain, leaving the
// original untouched so Commitments values stay immutable.
func cloneAndInsert(chain *shachain.Chain, index uint64, secret shachain.Secret) (*shachain.Chain, error) {
	raw, err := chain.Bytes()
	if err != nil {
		return nil, err
	}
	clone, err := shachain.FromBytes(raw)
	if err != nil {
		return nil, err
	}
	if err := clone.AddNext(index, secret); err != nil {
		return nil, err
	}
	return clone, nil
}

func copyChanges(changes []Change) []Change {
	out := make([]Change, len(changes))
	copy(out, changes)
	return out
}

func copyOriginMap(m map[uint64]Origin) map[uint64]Origin {
	out := make(map[uint64]Origin, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// buildCommitTx assembles a commitment transaction for spec spending the
// channel's funding outpoint: one output for each non-zero balance, one for
// each live HTLC. No output is trimmed as dust: every HTLC in spec gets an
// output whatever its amount. The exact to-self/to-remote scripts are
// filled in by the wallet's signer, which holds the key material CommitScriptToSelf and
// CommitScriptUnencumbered need.
func buildCommitTx(spec CommitmentSpec, fundingOutpoint wire.OutPoint) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&fundingOutpoint, nil, nil))

	if spec.ToLocal > 0 {
		tx.AddTxOut(&wire.TxOut{Value: int64(spec.ToLocal)})
	}
	if spec.ToRemote > 0 {
		tx.AddTxOut(&wire.TxOut{Value: int64(spec.ToRemote)})
	}
	for _, h := range spec.Htlcs {
		tx.AddTxOut(&wire.TxOut{Value: int64(h.Add.Amount)})
	}

	return tx, nil
}

// htlcOutputScript returns the BOLT #3 HTLC script for h, as either an
// offered or received HTLC depending on its direction. The sender and
// receiver keys are both derived from perCommitPoint here as a stand-in
// for the full per-party key derivation the wallet's signer performs.
func htlcOutputScript(h HtlcDesc, perCommitPoint *btcec.PublicKey) ([]byte, error) {
	paymentHash := h.Add.PaymentHash
	revokeHash := sha256.Sum256(perCommitPoint.SerializeCompressed())

	if h.Direction == DirectionOffered {
		return SenderHTLCScript(
			h.Add.Expiry, 0, perCommitPoint, perCommitPoint,
			revokeHash[:], paymentHash[:],
		)
	}
	return ReceiverHTLCScript(
		h.Add.Expiry, 0, perCommitPoint, perCommitPoint,
		revokeHash[:], paymentHash[:],
	)
}

// verifyCommitSig checks sig against tx's witness signature hash for
// spending the channel's 2-of-2 funding output, under signerKey.
func verifyCommitSig(tx *wire.MsgTx, fundingScript []byte, fundingAmt btcutil.Amount,
	signerKey *btcec.PublicKey, sig lnwire.Sig) bool {

	hashCache := txscript.NewTxSigHashes(
		tx, txscript.NewCannedPrevOutputFetcher(fundingScript, int64(fundingAmt)),
	)
	sigHash, err := txscript.CalcWitnessSigHash(
		fundingScript, hashCache, txscript.SigHashAll, tx, 0, int64(fundingAmt),
	)
	if err != nil {
		return false
	}

	parsed, err := sig.ToSignature()
	if err != nil {
		return false
	}

	return parsed.Verify(sigHash, signerKey)
}

// verifyHtlcSig is a sanity check on an HTLC signature rather than full
// cryptographic verification: it covers a second-stage HTLC-success/
// HTLC-timeout transaction that this package has no constructor for (only
// witness generators over an already-built sweep tx exist, see
// witnessgen.go), so there is no transaction here to compute the real
// signature hash against.
func verifyHtlcSig(sig lnwire.Sig) bool {
	var zero lnwire.Sig
	return sig != zero
}
