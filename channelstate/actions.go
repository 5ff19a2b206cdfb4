package channelstate

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/peercore/channeldb"
	"github.com/lightningnetwork/peercore/lnwire"
)

// Action is one side effect process() asks its driver to perform. The state
// machine itself never performs I/O; it only returns a list of these for
// the peer driver to carry out.
type Action interface {
	isAction()
}

// SendMessage asks the driver to write Msg to the peer over the transport.
type SendMessage struct {
	Msg lnwire.Message
}

func (SendMessage) isAction() {}

// SendWatch asks the driver to register interest in an on-chain outpoint
// with the Watcher collaborator.
type SendWatch struct {
	Outpoint   wire.OutPoint
	MinDepth   uint32
}

func (SendWatch) isAction() {}

// PublishTx asks the driver to broadcast a transaction (a unilateral-close
// commitment, a cooperative-close transaction, or an HTLC
// timeout/success transaction).
type PublishTx struct {
	Tx *wire.MsgTx
}

func (PublishTx) isAction() {}

// StoreState asks the driver to durably persist the channel's new snapshot
// via the ChannelsDb collaborator before any of the other actions in the
// same batch that irrevocably change the peer's view are carried out.
type StoreState struct {
	Persisted *channeldb.PersistedChannel
}

func (StoreState) isAction() {}

// ProcessCommand re-enters the state machine with Cmd once the current
// event's actions have been carried out, e.g. re-issuing CmdSignCommitment
// after an ack frees up room to cover more pending changes.
type ProcessCommand struct {
	Cmd Command
}

func (ProcessCommand) isAction() {}

// ChannelIdSwitch tells the driver the channel's addressable id changed
// from the temporary, pre-funding id to the permanent, funding-derived one,
// so the driver can re-key whatever dispatch table routes messages to this
// channel.
type ChannelIdSwitch struct {
	Old, New lnwire.ChannelID
}

func (ChannelIdSwitch) isAction() {}

// ProcessAdd delivers a newly-committed incoming HTLC upstream (to the
// forwarding/payment layer), having already passed the invoice-amount
// bounds check.
type ProcessAdd struct {
	Add *lnwire.UpdateAddHTLC
}

func (ProcessAdd) isAction() {}

// ProcessFulfill delivers a settled outgoing HTLC's preimage upstream.
type ProcessFulfill struct {
	ID       uint64
	Preimage [32]byte
}

func (ProcessFulfill) isAction() {}
