package channelstate

import (
	"github.com/lightningnetwork/peercore/lnwire"
)

// Process is the single state-transition function for a channel: given its
// current State and one Event, it returns the State's successor and the
// Actions the driver must carry out. It never performs I/O and never
// panics on a malformed event; illegal combinations come back as a
// returned error with the State left unchanged, matching the "local
// precondition failure" / "protocol validation error" taxonomy.
//
// Process dispatches purely on Phase, not on any Go type for State itself,
// so adding a phase never requires touching every existing call site the
// way adding a method to a class hierarchy would.
func Process(s State, ev Event, deps Deps) (State, []Action, error) {
	// Offline wraps whatever phase the channel was in before the
	// transport dropped; only Connected, Disconnected (no-op), Restore,
	// and a WatchReceived funding spend are meaningful while Offline.
	if s.Phase == Offline {
		return processOffline(s, ev, deps)
	}

	if _, ok := ev.(Disconnected); ok {
		next := s
		next.OfflinePhase = s.Phase
		next.Phase = Offline
		return next, nil, nil
	}

	switch s.Phase {
	case WaitForInit:
		return processWaitForInit(s, ev, deps)
	case WaitForOpenChannel:
		return processWaitForOpenChannel(s, ev, deps)
	case WaitForAcceptChannel:
		return processWaitForAcceptChannel(s, ev, deps)
	case WaitForFundingCreated:
		return processWaitForFundingCreated(s, ev, deps)
	case WaitForFundingSigned:
		return processWaitForFundingSigned(s, ev, deps)
	case WaitForFundingLocked:
		return processWaitForFundingLocked(s, ev, deps)
	case Normal:
		return processNormal(s, ev, deps)
	case Shutdown:
		return processShutdown(s, ev, deps)
	case Negotiating:
		return processNegotiating(s, ev, deps)
	case Closing:
		return processClosing(s, ev, deps)
	case Closed:
		return s, nil, nil
	case ErrorInformationLeak:
		return s, nil, nil
	default:
		return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
	}
}

// forceClose transitions to Closing, publishing the local commitment and
// sending an Error to the peer; used for both protocol violations and
// cryptographic faults, per the fatal-fault handling policy.
func forceClose(s State, reason string) (State, []Action, error) {
	next := s
	next.Phase = Closing

	actions := []Action{
		SendMessage{Msg: lnwire.NewError(s.ChanID, reason)},
	}
	if s.Commitments != nil && s.Commitments.LocalCommit.CommitTx != nil {
		actions = append(actions, PublishTx{Tx: s.Commitments.LocalCommit.CommitTx})
	}
	return next, actions, nil
}
