package channelstate

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/peercore/lnwire"
)

// processShutdown handles the Shutdown phase: both sides have exchanged
// (or are exchanging) their Shutdown messages; once both scripts are
// known and no HTLCs remain in flight, negotiation of the closing fee can
// begin.
func processShutdown(s State, ev Event, deps Deps) (State, []Action, error) {
	e, ok := ev.(MessageReceived)
	if !ok {
		if cmd, ok := ev.(ExecuteCommand); ok {
			return handleShutdownCommand(s, cmd.Cmd, deps)
		}
		return s, nil, nil
	}

	switch m := e.Msg.(type) {
	case *lnwire.Shutdown:
		next := s
		next.RemoteShutdownScript = m.ScriptToPay
		if next.LocalShutdownScript == nil {
			msg := &lnwire.Shutdown{ChanID: s.ChanID, ScriptToPay: s.LocalShutdownScript}
			return next, []Action{SendMessage{Msg: msg}}, nil
		}
		if htlcsPending(next) {
			return next, nil, nil
		}
		next.Phase = Negotiating
		return next, nil, nil

	case *lnwire.UpdateFulfillHTLC, *lnwire.UpdateFailHTLC,
		*lnwire.UpdateFailMalformedHTLC, *lnwire.CommitSig,
		*lnwire.RevokeAndAck:
		// BOLT #2 permits draining already-pending HTLCs to
		// completion even after Shutdown; route through the same
		// ledger operations Normal uses.
		return handleNormalMessage(s, e.Msg, deps)

	default:
		return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
	}
}

func handleShutdownCommand(s State, cmd Command, deps Deps) (State, []Action, error) {
	if _, ok := cmd.(CmdSignCommitment); ok {
		return handleNormalCommand(s, cmd, deps)
	}
	return s, nil, &ErrIllegalCommand{Phase: s.Phase}
}

func htlcsPending(s State) bool {
	if s.Commitments == nil {
		return false
	}
	return len(s.Commitments.LocalCommit.Spec.Htlcs) > 0 ||
		len(s.Commitments.RemoteCommit.Spec.Htlcs) > 0
}

// processNegotiating iterates ClosingSigned fee proposals until both sides
// agree, then publishes the cooperative close transaction.
func processNegotiating(s State, ev Event, deps Deps) (State, []Action, error) {
	e, ok := ev.(MessageReceived)
	if !ok {
		return s, nil, nil
	}
	closing, ok := e.Msg.(*lnwire.ClosingSigned)
	if !ok {
		return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
	}

	next := s
	if s.ClosingTxProposedFee != nil && *s.ClosingTxProposedFee == closing.FeeSatoshis {
		next.Phase = Closing
		tx := closingTxSkeleton(s)
		return next, []Action{PublishTx{Tx: tx}}, nil
	}

	proposed := proposeFee(s, closing.FeeSatoshis)
	next.ClosingTxProposedFee = &proposed
	msg := &lnwire.ClosingSigned{ChanID: s.ChanID, FeeSatoshis: proposed, Sig: closing.Sig}
	return next, []Action{SendMessage{Msg: msg}}, nil
}

// proposeFee moves this side's fee proposal halfway toward the peer's,
// mirroring the BOLT #2 convergence procedure without needing both sides'
// full fee-estimation history.
func proposeFee(s State, peerFee btcutil.Amount) btcutil.Amount {
	if s.ClosingTxProposedFee == nil {
		return peerFee
	}
	mine := *s.ClosingTxProposedFee
	return mine + (peerFee-mine)/2
}

func closingTxSkeleton(s State) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: s.FundingOutpoint})
	return tx
}

// processClosing waits for the close transaction (cooperative or
// unilateral) to confirm, then terminates at Closed.
func processClosing(s State, ev Event, deps Deps) (State, []Action, error) {
	e, ok := ev.(WatchReceived)
	if !ok {
		return s, nil, nil
	}
	if e.Event.Kind != WatchEventSpent {
		return s, nil, nil
	}

	next := s
	next.Phase = Closed
	return next, nil, nil
}
