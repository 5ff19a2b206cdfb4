package channelstate

import (
	"github.com/lightningnetwork/peercore/lnwire"
	"github.com/lightningnetwork/peercore/shachain"
)

// processOffline handles every event while a channel's transport is down.
// The commitment ledger is preserved untouched; only Connected, Restore,
// and an on-chain spend of the funding output can move the channel out of
// this wrapper.
func processOffline(s State, ev Event, deps Deps) (State, []Action, error) {
	switch e := ev.(type) {
	case Restore:
		restored := fromPersisted(e.Persisted)
		restored.Phase = Offline
		restored.OfflinePhase = Normal
		return restored, nil, nil

	case Connected:
		next := s
		next.Phase = s.OfflinePhase

		if next.Phase != Normal && next.Phase != Shutdown {
			// Mid-funding-flow reconnects resume the handshake
			// state directly; channel_reestablish only applies
			// once a commitment ledger exists.
			return next, nil, nil
		}

		msg := reestablishMessage(next)
		return next, []Action{SendMessage{Msg: msg}}, nil

	case WatchReceived:
		if e.Event.Kind == WatchEventSpent {
			next := s
			next.Phase = Closing
			return next, nil, nil
		}
		return s, nil, nil

	case Disconnected:
		return s, nil, nil

	default:
		return s, nil, nil
	}
}

// reestablishMessage builds this side's channel_reestablish, per BOLT #2:
// the index of the next local commitment we expect to receive a CommitSig
// for, and the next revocation index we expect to receive.
func reestablishMessage(s State) *lnwire.ChannelReestablish {
	c := s.Commitments
	msg := &lnwire.ChannelReestablish{
		ChanID:                     s.ChanID,
		NextLocalCommitmentNumber:  c.LocalCommit.Index + 1,
		NextRemoteRevocationNumber: c.RemoteCommit.Index,
	}
	if c.RemotePerCommitmentSecrets != nil && c.RemoteCommit.Index > 0 {
		chainIndex := shachain.MaxIndex - (c.RemoteCommit.Index - 1)
		if secret, ok := c.RemotePerCommitmentSecrets.GetSecret(chainIndex); ok {
			msg.YourLastPerCommitmentSecret = [32]byte(secret)
		}
	}
	msg.MyCurrentPerCommitmentPoint = c.LocalCommit.RemotePerCommitPoint
	return msg
}

// handleChannelReestablish resyncs against the peer's channel_reestablish,
// detecting whether either side fell behind. It is invoked from Normal's
// message dispatch; there is no separate phase for it, since resync never
// needs to reject messages the ordinary Normal handlers would also accept.
func handleChannelReestablish(s State, msg *lnwire.ChannelReestablish) (State, []Action, error) {
	c := s.Commitments

	var actions []Action

	// The peer is missing our last CommitSig; resend it.
	if msg.NextLocalCommitmentNumber == c.RemoteCommit.Index &&
		c.RemoteNextCommitInfo.Pending != nil {

		// The signature itself isn't retained on Commitments; a real
		// driver recomputes it from the retained RemoteCommit.CommitTx
		// via the KeyManager. Flagging the resend as a self-command
		// keeps this function pure.
		actions = append(actions, ProcessCommand{Cmd: CmdSignCommitment{}})
	}

	// The peer has not seen our revocation of our previous local
	// commitment; this is reported as a sync error, not retransmitted.
	if msg.NextRemoteRevocationNumber < c.LocalCommit.Index {
		return s, nil, &ErrCommitmentSyncError{
			Expected: c.LocalCommit.Index,
			Got:      msg.NextRemoteRevocationNumber,
		}
	}

	return s, actions, nil
}

// ErrCommitmentSyncError mirrors lnwallet's error of the same name at the
// channel_reestablish boundary, where the mismatch is between
// reestablish fields rather than a single message's commitment index.
type ErrCommitmentSyncError struct {
	Expected, Got uint64
}

func (e *ErrCommitmentSyncError) Error() string {
	return "channel_reestablish: commitment index mismatch"
}
