package channelstate

import (
	"github.com/lightningnetwork/peercore/lnwallet"
	"github.com/lightningnetwork/peercore/lnwire"
)

const maxCltvExpiry = 500000

func processNormal(s State, ev Event, deps Deps) (State, []Action, error) {
	switch e := ev.(type) {
	case MessageReceived:
		return handleNormalMessage(s, e.Msg, deps)
	case ExecuteCommand:
		return handleNormalCommand(s, e.Cmd, deps)
	case WatchReceived:
		if e.Event.Kind == WatchEventSpent {
			return forceClose(s, "funding output spent unexpectedly")
		}
		return s, nil, nil
	default:
		return s, nil, nil
	}
}

func handleNormalMessage(s State, msg lnwire.Message, deps Deps) (State, []Action, error) {
	c := *s.Commitments

	switch m := msg.(type) {
	case *lnwire.UpdateAddHTLC:
		next, err := c.ReceiveAdd(m, maxCltvExpiry)
		if err != nil {
			return forceClose(s, err.Error())
		}
		return withCommitments(s, next), nil, nil

	case *lnwire.UpdateFulfillHTLC:
		next, err := c.ReceiveFulfill(m)
		if err != nil {
			return forceClose(s, err.Error())
		}
		return withCommitments(s, next),
			[]Action{ProcessFulfill{ID: m.ID, Preimage: m.PaymentPreimage}}, nil

	case *lnwire.UpdateFailHTLC:
		next, err := c.ReceiveFail(m)
		if err != nil {
			return forceClose(s, err.Error())
		}
		return withCommitments(s, next), nil, nil

	case *lnwire.UpdateFailMalformedHTLC:
		asFail := &lnwire.UpdateFailHTLC{ChanID: m.ChanID, ID: m.ID}
		next, err := c.ReceiveFail(asFail)
		if err != nil {
			return forceClose(s, err.Error())
		}
		return withCommitments(s, next), nil, nil

	case *lnwire.UpdateFee:
		next, err := c.ReceiveFee(m)
		if err != nil {
			return forceClose(s, err.Error())
		}
		return withCommitments(s, next), nil, nil

	case *lnwire.CommitSig:
		next, revoke, err := c.ReceiveCommit(m, deps.KeyManager)
		if err != nil {
			return forceClose(s, err.Error())
		}

		nextState := withCommitments(s, next)
		actions := []Action{
			StoreState{Persisted: toPersisted(nextState)},
			SendMessage{Msg: revoke},
		}
		actions = append(actions, deliverNewlyAcked(next, s, deps.Invoices)...)

		return nextState, actions, nil

	case *lnwire.RevokeAndAck:
		next, err := c.ReceiveRevocation(m)
		if err != nil {
			return forceClose(s, err.Error())
		}

		next2 := withCommitments(s, next)
		actions := []Action{StoreState{Persisted: toPersisted(next2)}}

		// If there's more to sign (e.g. our own proposals queued
		// behind a prior CommitSig), re-enter immediately.
		if len(next.LocalChanges.Proposed) > 0 || len(next.RemoteChanges.Proposed) > 0 {
			actions = append(actions, ProcessCommand{Cmd: CmdSignCommitment{}})
		}
		return next2, actions, nil

	case *lnwire.Shutdown:
		next := s
		next.Phase = Shutdown
		next.RemoteShutdownScript = m.ScriptToPay
		return next, nil, nil

	case *lnwire.ChannelReestablish:
		next, actions, err := handleChannelReestablish(s, m)
		if err != nil {
			return forceClose(s, err.Error())
		}
		return next, actions, nil

	case *lnwire.Error:
		return forceClose(s, "peer reported protocol error")

	default:
		return s, nil, nil
	}
}

func handleNormalCommand(s State, cmd Command, deps Deps) (State, []Action, error) {
	c := *s.Commitments

	switch cm := cmd.(type) {
	case CmdAddHtlc:
		next, add, err := c.SendAdd(cm.CmdAddHtlc, cm.MaxExpiry)
		if err != nil {
			return s, nil, err
		}
		return withCommitments(s, next), []Action{SendMessage{Msg: add}}, nil

	case CmdFulfillHtlc:
		next, msg, err := c.SendFulfill(cm.ID, cm.Preimage)
		if err != nil {
			return s, nil, err
		}
		return withCommitments(s, next), []Action{SendMessage{Msg: msg}}, nil

	case CmdFailHtlc:
		next, msg, err := c.SendFail(cm.ID, cm.Reason)
		if err != nil {
			return s, nil, err
		}
		return withCommitments(s, next), []Action{SendMessage{Msg: msg}}, nil

	case CmdUpdateFee:
		next, msg, err := c.SendFee(cm.FeeratePerKw)
		if err != nil {
			return s, nil, err
		}
		return withCommitments(s, next), []Action{SendMessage{Msg: msg}}, nil

	case CmdSignCommitment:
		next, sig, err := c.SendCommit(deps.KeyManager)
		if err != nil {
			if _, ok := err.(*lnwallet.ErrCannotSignWithoutChanges); ok {
				return s, nil, nil
			}
			return s, nil, err
		}
		nextState := withCommitments(s, next)
		return nextState, []Action{
			StoreState{Persisted: toPersisted(nextState)},
			SendMessage{Msg: sig},
		}, nil

	case CmdClose:
		next := s
		next.Phase = Shutdown
		next.LocalShutdownScript = cm.ScriptToPay
		msg := &lnwire.Shutdown{ChanID: s.ChanID, ScriptToPay: cm.ScriptToPay}
		return next, []Action{SendMessage{Msg: msg}}, nil

	default:
		return s, nil, &ErrIllegalCommand{Phase: s.Phase}
	}
}

// deliverNewlyAcked emits ProcessAdd for every HTLC that ReceiveCommit just
// folded from remoteChanges.proposed into acked, enforcing the
// invoice-amount bounds check at this upstream-delivery boundary. An HTLC
// failing that check is simply not delivered upstream here; the upstream
// payment layer's own timeout eventually drives the corresponding SendFail.
func deliverNewlyAcked(next lnwallet.Commitments, prev State, invoices InvoiceLookup) []Action {
	var actions []Action
	for _, ch := range next.RemoteChanges.Acked {
		add, ok := ch.(*lnwire.UpdateAddHTLC)
		if !ok {
			continue
		}
		if containsAdd(prev.Commitments.RemoteChanges.Acked, add.ID) {
			continue
		}
		if invoices != nil {
			if err := validateInvoiceAmount(add, invoices); err != nil {
				continue
			}
		}
		actions = append(actions, ProcessAdd{Add: add})
	}
	return actions
}

func containsAdd(changes []lnwallet.Change, id uint64) bool {
	for _, ch := range changes {
		if add, ok := ch.(*lnwire.UpdateAddHTLC); ok && add.ID == id {
			return true
		}
	}
	return false
}

// validateInvoiceAmount enforces invoiceAmount <= htlc.Amount <=
// 2*invoiceAmount at the ProcessAdd upstream-delivery boundary, per the
// amount-validation requirement on HTLC reception.
func validateInvoiceAmount(add *lnwire.UpdateAddHTLC, invoices InvoiceLookup) error {
	invoiceAmount, ok := invoices.LookupAmount(add.PaymentHash)
	if !ok {
		return &ErrNoMatchingInvoice{PaymentHash: add.PaymentHash}
	}
	htlcAmount := uint64(add.Amount)
	if htlcAmount < invoiceAmount || htlcAmount > 2*invoiceAmount {
		return &ErrHtlcAmountOutOfInvoiceRange{
			InvoiceAmount: invoiceAmount,
			HtlcAmount:    htlcAmount,
		}
	}
	return nil
}

func withCommitments(s State, c lnwallet.Commitments) State {
	next := s
	next.Commitments = &c
	return next
}
