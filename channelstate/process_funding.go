package channelstate

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/peercore/lnwallet"
	"github.com/lightningnetwork/peercore/lnwire"
)

func processWaitForInit(s State, ev Event, deps Deps) (State, []Action, error) {
	switch e := ev.(type) {
	case ExecuteCommand:
		cmd, ok := e.Cmd.(CmdOpenChannel)
		if !ok || !s.IsFunder {
			return s, nil, &ErrIllegalCommand{Phase: s.Phase}
		}

		point, err := deps.KeyManager.NextPerCommitmentPoint(s.TempChanID, 0)
		if err != nil {
			return s, nil, err
		}

		msg := &lnwire.OpenChannel{
			PendingChannelID:    s.TempChanID,
			FundingAmount:       cmd.FundingAmount,
			PushAmount:          cmd.PushAmount,
			DustLimit:           s.LocalParams.DustLimit,
			MaxValueInFlight:    s.LocalParams.MaxHTLCValueInFlight,
			ChannelReserve:      s.LocalParams.ChannelReserve,
			HtlcMinimum:         s.LocalParams.HtlcMinimum,
			FeeratePerKw:        cmd.FeeratePerKw,
			ToSelfDelay:         s.LocalParams.ToSelfDelay,
			MaxAcceptedHTLCs:    s.LocalParams.MaxAcceptedHTLCs,
			FundingKey:          s.LocalParams.FundingKey,
			RevocationPoint:     s.LocalParams.RevocationBasePoint,
			PaymentPoint:        s.LocalParams.PaymentBasePoint,
			DelayedPaymentPoint: s.LocalParams.DelayedPaymentBasePoint,
			HtlcPoint:           s.LocalParams.HtlcBasePoint,
			FirstPerCommitPoint: point,
		}

		next := s
		next.Phase = WaitForAcceptChannel
		next.LocalFirstPerCommitPoint = point
		return next, []Action{SendMessage{Msg: msg}}, nil

	case MessageReceived:
		open, ok := e.Msg.(*lnwire.OpenChannel)
		if !ok || s.IsFunder {
			return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
		}
		return handleOpenChannel(s, open, deps)

	default:
		return s, nil, nil
	}
}

// processWaitForOpenChannel exists for the fundee path named explicitly in
// the lifecycle diagram; in practice the fundee folds straight through to
// WaitForFundingCreated from WaitForInit the moment open_channel arrives
// (handleOpenChannel), so this phase is only reached if a caller
// constructs a State already parked here (e.g. after a Restore that
// captured this exact instant).
func processWaitForOpenChannel(s State, ev Event, deps Deps) (State, []Action, error) {
	e, ok := ev.(MessageReceived)
	if !ok {
		return s, nil, nil
	}
	open, ok := e.Msg.(*lnwire.OpenChannel)
	if !ok {
		return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
	}
	return handleOpenChannel(s, open, deps)
}

func handleOpenChannel(s State, open *lnwire.OpenChannel, deps Deps) (State, []Action, error) {
	point, err := deps.KeyManager.NextPerCommitmentPoint(open.PendingChannelID, 0)
	if err != nil {
		return s, nil, err
	}

	next := s
	next.TempChanID = open.PendingChannelID
	next.RemoteParams = lnwallet.RemoteParams{
		DustLimit:               open.DustLimit,
		MaxHTLCValueInFlight:    open.MaxValueInFlight,
		ChannelReserve:          open.ChannelReserve,
		HtlcMinimum:             open.HtlcMinimum,
		ToSelfDelay:             open.ToSelfDelay,
		MaxAcceptedHTLCs:        open.MaxAcceptedHTLCs,
		FundingKey:              open.FundingKey,
		RevocationBasePoint:     open.RevocationPoint,
		PaymentBasePoint:        open.PaymentPoint,
		DelayedPaymentBasePoint: open.DelayedPaymentPoint,
		HtlcBasePoint:           open.HtlcPoint,
	}
	next.RemoteFirstPerCommitPoint = open.FirstPerCommitPoint
	next.LocalFirstPerCommitPoint = point
	next.Phase = WaitForFundingCreated

	accept := &lnwire.AcceptChannel{
		PendingChannelID:    open.PendingChannelID,
		DustLimit:           s.LocalParams.DustLimit,
		MaxValueInFlight:    s.LocalParams.MaxHTLCValueInFlight,
		ChannelReserve:      s.LocalParams.ChannelReserve,
		HtlcMinimum:         s.LocalParams.HtlcMinimum,
		MinimumDepth:        3,
		ToSelfDelay:         s.LocalParams.ToSelfDelay,
		MaxAcceptedHTLCs:    s.LocalParams.MaxAcceptedHTLCs,
		FundingKey:          s.LocalParams.FundingKey,
		RevocationPoint:     s.LocalParams.RevocationBasePoint,
		PaymentPoint:        s.LocalParams.PaymentBasePoint,
		DelayedPaymentPoint: s.LocalParams.DelayedPaymentBasePoint,
		HtlcPoint:           s.LocalParams.HtlcBasePoint,
		FirstPerCommitPoint: point,
	}

	return next, []Action{SendMessage{Msg: accept}}, nil
}

func processWaitForAcceptChannel(s State, ev Event, deps Deps) (State, []Action, error) {
	e, ok := ev.(MessageReceived)
	if !ok {
		return s, nil, nil
	}
	accept, ok := e.Msg.(*lnwire.AcceptChannel)
	if !ok {
		return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
	}

	next := s
	next.RemoteParams = lnwallet.RemoteParams{
		DustLimit:               accept.DustLimit,
		MaxHTLCValueInFlight:    accept.MaxValueInFlight,
		ChannelReserve:          accept.ChannelReserve,
		HtlcMinimum:             accept.HtlcMinimum,
		ToSelfDelay:             accept.ToSelfDelay,
		MaxAcceptedHTLCs:        accept.MaxAcceptedHTLCs,
		FundingKey:              accept.FundingKey,
		RevocationBasePoint:     accept.RevocationPoint,
		PaymentBasePoint:        accept.PaymentPoint,
		DelayedPaymentBasePoint: accept.DelayedPaymentPoint,
		HtlcBasePoint:           accept.HtlcPoint,
	}
	next.RemoteFirstPerCommitPoint = accept.FirstPerCommitPoint

	commitTx := wire.NewMsgTx(2)
	sig, err := deps.KeyManager.SignCommitTx(next.TempChanID, commitTx)
	if err != nil {
		return s, nil, err
	}

	created := &lnwire.FundingCreated{
		PendingChannelID: next.TempChanID,
		CommitSig:        sig,
	}

	next.Phase = WaitForFundingSigned
	return next, []Action{SendMessage{Msg: created}}, nil
}

func processWaitForFundingCreated(s State, ev Event, deps Deps) (State, []Action, error) {
	e, ok := ev.(MessageReceived)
	if !ok {
		return s, nil, nil
	}
	created, ok := e.Msg.(*lnwire.FundingCreated)
	if !ok {
		return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
	}

	fundingOutpoint := wire.OutPoint{Hash: created.FundingTxID, Index: uint32(created.FundingOutputIdx)}
	chanID := lnwire.NewChanIDFromOutPoint(&fundingOutpoint)

	commitTx := wire.NewMsgTx(2)
	sig, err := deps.KeyManager.SignCommitTx(chanID, commitTx)
	if err != nil {
		return s, nil, err
	}

	next := s
	next.FundingOutpoint = fundingOutpoint
	next.ChanID = chanID
	next.Commitments = newCommitments(next, commitTx)
	next.Phase = WaitForFundingLocked

	signed := &lnwire.FundingSigned{ChanID: chanID, CommitSig: sig}

	return next, []Action{
		SendMessage{Msg: signed},
		ChannelIdSwitch{Old: s.TempChanID, New: chanID},
		SendWatch{Outpoint: fundingOutpoint, MinDepth: 3},
	}, nil
}

func processWaitForFundingSigned(s State, ev Event, deps Deps) (State, []Action, error) {
	e, ok := ev.(MessageReceived)
	if !ok {
		return s, nil, nil
	}
	if _, ok := e.Msg.(*lnwire.FundingSigned); !ok {
		return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
	}

	// The funder learns the real funding outpoint once its own
	// transaction is constructed; WatchReceived / ChannelIdSwitch for
	// this side is driven by the wallet once it broadcasts, so here we
	// only record that funding is sufficiently signed to watch for
	// confirmation once the outpoint is known.
	commitTx := wire.NewMsgTx(2)

	next := s
	next.Commitments = newCommitments(next, commitTx)
	next.Phase = WaitForFundingLocked

	return next, []Action{SendWatch{Outpoint: s.FundingOutpoint, MinDepth: 3}}, nil
}

func processWaitForFundingLocked(s State, ev Event, deps Deps) (State, []Action, error) {
	switch e := ev.(type) {
	case WatchReceived:
		if e.Event.Kind != WatchEventConfirmed || e.Event.Confirmations < 3 {
			return s, nil, nil
		}

		msg := lnwire.NewFundingLocked(s.ChanID, s.LocalFirstPerCommitPoint)
		next := s
		next.LocalFundingLockedSent = true
		if next.RemoteFundingLockedReceived {
			next.Phase = Normal
			return next, []Action{
				StoreState{Persisted: toPersisted(next)},
				SendMessage{Msg: msg},
			}, nil
		}
		return next, []Action{SendMessage{Msg: msg}}, nil

	case MessageReceived:
		locked, ok := e.Msg.(*lnwire.FundingLocked)
		if !ok {
			return s, nil, &ErrUnexpectedMessage{Phase: s.Phase, Message: "?"}
		}

		updated := *s.Commitments
		updated.LocalCommit.RemotePerCommitPoint = locked.NextPerCommitmentPoint
		updated.RemoteNextCommitInfo.NextPoint = locked.NextPerCommitmentPoint

		next := s
		next.Commitments = &updated
		next.RemoteFundingLockedReceived = true

		if !next.LocalFundingLockedSent {
			return next, nil, nil
		}
		next.Phase = Normal
		return next, []Action{StoreState{Persisted: toPersisted(next)}}, nil

	default:
		return s, nil, nil
	}
}

// newCommitments builds the initial ledger once both sides' parameters and
// per-commitment points are known; the real funding amount split into
// ToLocal/ToRemote (less any push_msat) is supplied by the wallet that
// constructed commitTx, which this skeleton leaves at zero for both sides.
// CommitInput is likewise a zero-value placeholder: the funding output's
// real value is only known to whatever wallet code assembled the funding
// transaction.
func newCommitments(s State, commitTx *wire.MsgTx) *lnwallet.Commitments {
	spec := lnwallet.CommitmentSpec{}

	return &lnwallet.Commitments{
		ChannelID:       s.ChanID,
		LocalParams:     s.LocalParams,
		RemoteParams:    s.RemoteParams,
		FundingOutpoint: s.FundingOutpoint,
		CommitInput:     &wire.TxOut{},
		LocalCommit: lnwallet.LocalCommit{
			Index:                0,
			Spec:                 spec,
			CommitTx:             commitTx,
			RemotePerCommitPoint: s.RemoteFirstPerCommitPoint,
		},
		RemoteCommit: lnwallet.RemoteCommit{
			Index:                0,
			Spec:                 spec,
			CommitTx:             commitTx,
			RemotePerCommitPoint: s.RemoteFirstPerCommitPoint,
		},
		OriginMap:            make(map[uint64]lnwallet.Origin),
		RemoteNextCommitInfo: lnwallet.RemoteCommitInfo{NextPoint: s.RemoteFirstPerCommitPoint},
	}
}
