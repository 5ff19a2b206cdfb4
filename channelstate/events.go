package channelstate

import (
	"github.com/btcsuite/btcd/btcutil"

	"github.com/lightningnetwork/peercore/channeldb"
	"github.com/lightningnetwork/peercore/lnwallet"
	"github.com/lightningnetwork/peercore/lnwire"
)

// WatchEventKind distinguishes the two on-chain events the Watcher
// collaborator delivers for a channel's watched outpoint.
type WatchEventKind int

const (
	WatchEventConfirmed WatchEventKind = iota
	WatchEventSpent
)

// WatchEvent is an on-chain notification for the outpoint a channel asked
// its Watcher to observe.
type WatchEvent struct {
	Kind WatchEventKind

	// Confirmations is populated for WatchEventConfirmed.
	Confirmations uint32
}

// Command is a host-issued request to act on the channel; only
// ExecuteCommand events carry one.
type Command interface {
	isCommand()
}

// CmdOpenChannel kicks off the funder side of the funding flow; issuing it
// while IsFunder and Phase == WaitForInit sends OpenChannel and advances to
// WaitForAcceptChannel.
type CmdOpenChannel struct {
	FundingAmount btcutil.Amount
	PushAmount    btcutil.Amount
	FeeratePerKw  uint32
}

func (CmdOpenChannel) isCommand() {}

// CmdAddHtlc requests adding a new outgoing HTLC.
type CmdAddHtlc struct {
	lnwallet.CmdAddHtlc
	MaxExpiry uint32
}

func (CmdAddHtlc) isCommand() {}

// CmdFulfillHtlc requests settling a received HTLC by id.
type CmdFulfillHtlc struct {
	ID       uint64
	Preimage [32]byte
}

func (CmdFulfillHtlc) isCommand() {}

// CmdFailHtlc requests failing a received HTLC by id.
type CmdFailHtlc struct {
	ID     uint64
	Reason []byte
}

func (CmdFailHtlc) isCommand() {}

// CmdSignCommitment requests that any pending changes be covered by a new
// CommitSig; re-issued by ProcessCommand after an ack unblocks more sends.
type CmdSignCommitment struct{}

func (CmdSignCommitment) isCommand() {}

// CmdUpdateFee requests a new commitment feerate; only legal for the funder.
type CmdUpdateFee struct {
	FeeratePerKw uint32
}

func (CmdUpdateFee) isCommand() {}

// CmdClose requests a cooperative close, paying out to ScriptToPay.
type CmdClose struct {
	ScriptToPay lnwire.PkScript
}

func (CmdClose) isCommand() {}

// Event is one of the small fixed set of things process() reacts to.
type Event interface {
	isEvent()
}

// MessageReceived carries a wire message from the peer.
type MessageReceived struct {
	Msg lnwire.Message
}

func (MessageReceived) isEvent() {}

// ExecuteCommand carries a host-issued command.
type ExecuteCommand struct {
	Cmd Command
}

func (ExecuteCommand) isEvent() {}

// WatchReceived carries an on-chain notification for this channel's
// watched outpoint.
type WatchReceived struct {
	Event WatchEvent
}

func (WatchReceived) isEvent() {}

// NewBlock notifies of chain tip advancement, used to drive CLTV-based
// timeouts and minimum-depth confirmation counting.
type NewBlock struct {
	Height uint32
}

func (NewBlock) isEvent() {}

// Connected signals the transport came up (or came back up), carrying both
// sides' Init so feature negotiation can be checked before resuming.
type Connected struct {
	LocalInit, RemoteInit *lnwire.Init
}

func (Connected) isEvent() {}

// Disconnected signals the transport went down; channels move to their
// Offline wrapper but keep their ledger state intact.
type Disconnected struct{}

func (Disconnected) isEvent() {}

// Restore reloads a channel from its persisted snapshot after a process
// restart, re-entering Normal (or Offline(Normal), if not yet reconnected).
type Restore struct {
	Persisted *channeldb.PersistedChannel
}

func (Restore) isEvent() {}
