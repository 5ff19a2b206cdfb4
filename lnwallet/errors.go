package lnwallet

import "fmt"

// ErrInsufficientFunds is returned by sendAdd when the available balance
// cannot cover the proposed HTLC once reserve, dust, and fee requirements
// are accounted for.
type ErrInsufficientFunds struct {
	Amount    uint64
	Available uint64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: amount %d msat exceeds "+
		"available balance %d msat", e.Amount, e.Available)
}

// ErrHtlcValueTooSmall is returned when a proposed HTLC is below the
// counterparty's advertised htlc_minimum_msat.
type ErrHtlcValueTooSmall struct {
	Minimum uint64
	Amount  uint64
}

func (e *ErrHtlcValueTooSmall) Error() string {
	return fmt.Sprintf("htlc amount %d msat below minimum %d msat",
		e.Amount, e.Minimum)
}

// ErrExpiryTooBig is returned when a proposed HTLC's CLTV expiry exceeds
// the locally configured maximum.
type ErrExpiryTooBig struct {
	Expiry, MaxExpiry uint32
}

func (e *ErrExpiryTooBig) Error() string {
	return fmt.Sprintf("htlc expiry %d exceeds maximum %d",
		e.Expiry, e.MaxExpiry)
}

// ErrTooManyAcceptedHTLCs is returned when adding an HTLC would exceed the
// counterparty's max_accepted_htlcs limit.
type ErrTooManyAcceptedHTLCs struct {
	Count, Max int
}

func (e *ErrTooManyAcceptedHTLCs) Error() string {
	return fmt.Sprintf("number of pending htlcs (%d) would exceed limit (%d)",
		e.Count, e.Max)
}

// ErrUnknownHtlcID is returned when a fulfill/fail references an HTLC id
// that is not present in the relevant change set.
type ErrUnknownHtlcID struct {
	ID uint64
}

func (e *ErrUnknownHtlcID) Error() string {
	return fmt.Sprintf("unknown htlc id %d", e.ID)
}

// ErrInvalidHtlcPreimage is returned when a fulfill's preimage does not
// hash to the HTLC's payment hash.
type ErrInvalidHtlcPreimage struct {
	ID uint64
}

func (e *ErrInvalidHtlcPreimage) Error() string {
	return fmt.Sprintf("preimage for htlc %d does not match payment hash", e.ID)
}

// ErrCannotAffordFees is returned when a proposed feerate would leave the
// funder's balance below its channel reserve.
type ErrCannotAffordFees struct {
	FeeratePerKw uint32
}

func (e *ErrCannotAffordFees) Error() string {
	return fmt.Sprintf("cannot afford fees at feerate %d sat/kw", e.FeeratePerKw)
}

// ErrFeeratePrecondition is returned when sendFee/receiveFee is invoked by
// the non-funder, who is not permitted to set the channel's feerate.
type ErrFeeratePrecondition struct{}

func (e *ErrFeeratePrecondition) Error() string {
	return "only the channel funder may update the feerate"
}

// ErrCannotSignWithoutChanges is a benign precondition failure: sendCommit
// was invoked with nothing new to sign.
type ErrCannotSignWithoutChanges struct{}

func (e *ErrCannotSignWithoutChanges) Error() string {
	return "no changes to sign"
}

// ErrInvalidCommitmentSignature is a fatal cryptographic fault: the
// peer's CommitSig does not verify against the expected commitment
// transaction.
type ErrInvalidCommitmentSignature struct {
	ChannelID fmt.Stringer
}

func (e *ErrInvalidCommitmentSignature) Error() string {
	return fmt.Sprintf("invalid commitment signature for channel %v", e.ChannelID)
}

// ErrInvalidHtlcSignature is a fatal cryptographic fault: one of the
// per-HTLC signatures accompanying a CommitSig does not verify.
type ErrInvalidHtlcSignature struct {
	Index int
}

func (e *ErrInvalidHtlcSignature) Error() string {
	return fmt.Sprintf("invalid htlc signature at index %d", e.Index)
}

// ErrInvalidRevocation is a fatal cryptographic fault: the secret a
// RevokeAndAck reveals is rejected by the shachain of previously received
// secrets (it is inconsistent with them or arrives at the wrong index).
type ErrInvalidRevocation struct{}

func (e *ErrInvalidRevocation) Error() string {
	return "revocation secret rejected by the stored shachain of earlier secrets"
}

// ErrCommitmentSyncError signals that a received RevokeAndAck or CommitSig
// references a commitment index inconsistent with the local ledger's
// expectation, or that an UpdateAddHTLC carries an HTLC id other than the
// next expected one, most often after a missed message during a reconnect.
type ErrCommitmentSyncError struct {
	Expected, Got uint64
}

func (e *ErrCommitmentSyncError) Error() string {
	return fmt.Sprintf("commitment index mismatch: expected %d, got %d",
		e.Expected, e.Got)
}
