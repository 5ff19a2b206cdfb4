package channelstate

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/peercore/lnwallet"
	"github.com/lightningnetwork/peercore/lnwire"
)

// Phase names one of the fixed states a channel occupies across its
// lifetime. It is the tag of the State tagged variant: only the fields
// relevant to the current Phase are ever populated or read, which is
// enforced by convention (each phase's process function) rather than by
// the type system, the same tradeoff the wire message catalogue makes for
// its own type switch.
type Phase int

const (
	WaitForInit Phase = iota
	WaitForOpenChannel
	WaitForAcceptChannel
	WaitForFundingCreated
	WaitForFundingSigned
	WaitForFundingLocked
	Normal
	Shutdown
	Negotiating
	Closing
	Closed
	ErrorInformationLeak
	Offline
)

func (p Phase) String() string {
	switch p {
	case WaitForInit:
		return "WaitForInit"
	case WaitForOpenChannel:
		return "WaitForOpenChannel"
	case WaitForAcceptChannel:
		return "WaitForAcceptChannel"
	case WaitForFundingCreated:
		return "WaitForFundingCreated"
	case WaitForFundingSigned:
		return "WaitForFundingSigned"
	case WaitForFundingLocked:
		return "WaitForFundingLocked"
	case Normal:
		return "Normal"
	case Shutdown:
		return "Shutdown"
	case Negotiating:
		return "Negotiating"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	case ErrorInformationLeak:
		return "ErrorInformationLeak"
	case Offline:
		return "Offline"
	default:
		return "Unknown"
	}
}

// State is a channel's complete view of its own lifecycle. Phase tags which
// subset of the remaining fields is meaningful; process() is the only
// function that interprets them, dispatching on Phase rather than on the
// state's Go type, which keeps State a plain value instead of an
// interface-based class hierarchy.
type State struct {
	Phase Phase

	// OfflinePhase is the Phase a channel was in before it went Offline;
	// it is restored on Connected. Only meaningful when Phase == Offline.
	OfflinePhase Phase

	ChanID     lnwire.ChannelID
	TempChanID lnwire.ChannelID

	IsFunder bool

	FundingOutpoint wire.OutPoint

	LocalParams  lnwallet.LocalParams
	RemoteParams lnwallet.RemoteParams

	// Commitments is nil until the funding flow enters
	// WaitForFundingLocked; that phase and every phase from Normal
	// onward require it to be non-nil.
	Commitments *lnwallet.Commitments

	// LocalFirstPerCommitPoint and RemoteFirstPerCommitPoint hold the
	// first per-commitment points exchanged
	// during the funding flow, before they can be folded into
	// Commitments.
	LocalFirstPerCommitPoint  *btcec.PublicKey
	RemoteFirstPerCommitPoint *btcec.PublicKey

	// LocalFundingLockedSent and RemoteFundingLockedReceived mark each
	// direction of the FundingLocked exchange independently, since the
	// two can arrive in either order; WaitForFundingLocked only advances
	// to Normal once both are true.
	LocalFundingLockedSent      bool
	RemoteFundingLockedReceived bool

	LocalShutdownScript  lnwire.PkScript
	RemoteShutdownScript lnwire.PkScript

	// ClosingTxProposedFee is the last fee this side offered during
	// Negotiating; nil before any ClosingSigned has been sent.
	ClosingTxProposedFee *btcutil.Amount

	MaxAcceptedExpiry uint32
}

// Deps bundles the collaborators process() consults but does not own:
// signing/key-derivation, and upstream invoice-amount bounds checking. Both
// are pure with respect to channel id, matching the external KeyManager
// contract.
type Deps struct {
	KeyManager lnwallet.KeyManager
	Invoices   InvoiceLookup
}

// InvoiceLookup resolves the invoice amount a payment hash was generated
// for, so ProcessAdd can enforce that a received HTLC's amount falls in
// [invoiceAmount, 2*invoiceAmount] before delivering it upstream.
type InvoiceLookup interface {
	LookupAmount(paymentHash [32]byte) (amount uint64, ok bool)
}
