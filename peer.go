package main

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"

	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lightningnetwork/peercore/brontide"
	"github.com/lightningnetwork/peercore/channeldb"
	"github.com/lightningnetwork/peercore/channelstate"
	"github.com/lightningnetwork/peercore/lnwallet"
	"github.com/lightningnetwork/peercore/lnwire"
)

const (
	// pingInterval is how often we send a ping to the remote peer while
	// idle, both to keep the connection alive and to sample round-trip
	// time.
	pingInterval = 30 * time.Second

	// outgoingQueueBuffer sizes the internal buffer queue.ConcurrentQueue
	// keeps between callers proposing messages and the writeHandler
	// draining them, matching outgoingQueueLen's role in the original
	// single-channel design.
	outgoingQueueBuffer = 50
)

// Transport is the framed-record collaborator a peer reads whole messages
// from and writes whole messages to; brontide.Conn satisfies it once the
// Noise_XK handshake has completed, but any framing layer with this shape
// (send(bytes), receiveFully(), close()) can stand in for it, e.g. in
// tests.
type Transport interface {
	WriteMessage(payload []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

var _ Transport = (*brontide.Conn)(nil)

// Watcher subscribes to on-chain events for a channel's funding outpoint,
// delivering confirmation and spend notifications on the returned channel.
type Watcher interface {
	Subscribe(outpoint wire.OutPoint, minDepth uint32) (<-chan channelstate.WatchEvent, error)
}

// outgoingMsg packages an lnwire.Message destined for the wire along with a
// buffered channel that is closed once the write completes, letting a
// caller optionally synchronize on delivery.
type outgoingMsg struct {
	msg      lnwire.Message
	sentChan chan struct{}
}

// peer drives a single Noise_XK session end to end: it owns the transport,
// multiplexes wire traffic across every channel open with this remote
// party, and feeds each channel's events through channelstate.Process,
// carrying out whatever Actions come back. It performs no on-chain
// broadcasting, HTLC forwarding, or invoice bookkeeping itself; those are
// reached only through the Watcher, ChannelsDb, and InvoiceLookup
// collaborators it is constructed with.
type peer struct {
	bytesReceived uint64
	bytesSent     uint64

	started    int32
	disconnect int32

	transport   Transport
	identityKey *btcec.PublicKey

	db       channeldb.ChannelsDb
	keyMgr   lnwallet.KeyManager
	invoices channelstate.InvoiceLookup
	watcher  Watcher

	localInit  *lnwire.Init
	remoteInit *lnwire.Init

	chanMtx   sync.Mutex
	channels  map[lnwire.ChannelID]channelstate.State
	watchSubs map[wire.OutPoint]lnwire.ChannelID

	outgoingQueue *queue.ConcurrentQueue
	sendQueue     chan outgoingMsg

	pingTicker *ticker.Ticker
	pingTime   int64
	pingSentAt int64

	quit chan struct{}
	wg   sync.WaitGroup
}

// newPeer constructs a peer around an already-handshaked Transport. No
// goroutines are started until Start is called.
func newPeer(transport Transport, identityKey *btcec.PublicKey,
	db channeldb.ChannelsDb, keyMgr lnwallet.KeyManager,
	invoices channelstate.InvoiceLookup, watcher Watcher) *peer {

	return &peer{
		transport:     transport,
		identityKey:   identityKey,
		db:            db,
		keyMgr:        keyMgr,
		invoices:      invoices,
		watcher:       watcher,
		channels:      make(map[lnwire.ChannelID]channelstate.State),
		watchSubs:     make(map[wire.OutPoint]lnwire.ChannelID),
		outgoingQueue: queue.NewConcurrentQueue(outgoingQueueBuffer),
		sendQueue:     make(chan outgoingMsg),
		pingTicker:    ticker.New(pingInterval),
		quit:          make(chan struct{}),
	}
}

// Start exchanges Init messages, restores any persisted channels, and
// launches the steady-state handler goroutines.
func (p *peer) Start() error {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return nil
	}

	p.outgoingQueue.Start()
	p.pingTicker.Resume()

	if err := p.sendInitMsg(); err != nil {
		return fmt.Errorf("unable to send init: %w", err)
	}
	if err := p.awaitInitMsg(); err != nil {
		return fmt.Errorf("unable to read init: %w", err)
	}

	if err := p.restoreChannels(); err != nil {
		return fmt.Errorf("unable to restore channels: %w", err)
	}

	p.wg.Add(4)
	go p.readHandler()
	go p.writeHandler()
	go p.queueHandler()
	go p.pingHandler()

	return nil
}

// Stop signals every handler goroutine to exit and closes the transport.
func (p *peer) Stop() {
	if !atomic.CompareAndSwapInt32(&p.disconnect, 0, 1) {
		return
	}

	close(p.quit)
	p.outgoingQueue.Stop()
	p.pingTicker.Stop()
	p.transport.Close()
	p.wg.Wait()
}

func (p *peer) deps() channelstate.Deps {
	return channelstate.Deps{KeyManager: p.keyMgr, Invoices: p.invoices}
}

func (p *peer) sendInitMsg() error {
	p.localInit = lnwire.NewInitMessage(nil, nil)
	return p.writeMessage(p.localInit)
}

func (p *peer) awaitInitMsg() error {
	msg, err := p.readNextMessage()
	if err != nil {
		return err
	}
	init, ok := msg.(*lnwire.Init)
	if !ok {
		return errors.Errorf("very first message between nodes "+
			"must be init, got %T", msg)
	}
	p.remoteInit = init
	return nil
}

// restoreChannels loads every channel this peer previously persisted,
// re-enters each into the Offline wrapper via a Restore event, and then
// immediately fires Connected so any that reach Normal send their
// channel_reestablish before the first real message is processed.
func (p *peer) restoreChannels() error {
	persisted, err := p.db.ListLocalChannels()
	if err != nil && err != channeldb.ErrNoActiveChannels {
		return err
	}

	p.chanMtx.Lock()
	defer p.chanMtx.Unlock()

	for _, pc := range persisted {
		restored, _, err := channelstate.Process(
			channelstate.State{Phase: channelstate.Offline},
			channelstate.Restore{Persisted: pc},
			p.deps(),
		)
		if err != nil {
			return err
		}

		reconnected, actions, err := channelstate.Process(restored, channelstate.Connected{
			LocalInit:  p.localInit,
			RemoteInit: p.remoteInit,
		}, p.deps())
		if err != nil {
			return err
		}

		p.channels[pc.ChanID] = reconnected
		p.carryOut(pc.ChanID, actions)
	}

	return nil
}

// OpenChannel starts the funder side of the funding flow for a brand new
// channel, picking a random temporary channel id as BOLT #2 requires.
func (p *peer) OpenChannel(local lnwallet.LocalParams, fundingAmt, pushAmt btcutil.Amount,
	feeratePerKw uint32) error {

	var tempChanID lnwire.ChannelID
	if _, err := rand.Read(tempChanID[:]); err != nil {
		return err
	}
	local.IsFunder = true

	s := channelstate.State{
		Phase:       channelstate.WaitForInit,
		IsFunder:    true,
		TempChanID:  tempChanID,
		LocalParams: local,
	}

	next, actions, err := channelstate.Process(s, channelstate.ExecuteCommand{
		Cmd: channelstate.CmdOpenChannel{
			FundingAmount: fundingAmt,
			PushAmount:    pushAmt,
			FeeratePerKw:  feeratePerKw,
		},
	}, p.deps())
	if err != nil {
		return err
	}

	p.chanMtx.Lock()
	p.channels[tempChanID] = next
	p.chanMtx.Unlock()

	p.carryOut(tempChanID, actions)
	return nil
}

// readNextMessage blocks for the next framed record and decodes it as an
// lnwire.Message.
func (p *peer) readNextMessage() (lnwire.Message, error) {
	payload, err := p.transport.ReadMessage()
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&p.bytesReceived, uint64(len(payload)))

	msg, err := lnwire.ReadMessage(bytes.NewReader(payload), 0)
	if err != nil {
		return nil, err
	}
	logWireMessage("readMessage from peer", msg)
	return msg, nil
}

// readHandler is the peer's single reader goroutine: messages are decoded
// in series and dispatched to the channel (or funding flow) they target.
//
// NOTE: must be run as a goroutine.
func (p *peer) readHandler() {
	defer p.wg.Done()
	defer p.Stop()

	for atomic.LoadInt32(&p.disconnect) == 0 {
		msg, err := p.readNextMessage()
		if err != nil {
			return
		}

		switch m := msg.(type) {
		case *lnwire.Ping:
			p.queueMsg(lnwire.NewPong(m.NumPongBytes), nil)
			continue
		case *lnwire.Pong:
			sent := atomic.LoadInt64(&p.pingSentAt)
			atomic.StoreInt64(&p.pingTime, time.Now().UnixNano()-sent)
			continue
		}

		chanID, ok := chanIDForMessage(msg)
		if !ok {
			continue
		}

		p.dispatch(chanID, channelstate.MessageReceived{Msg: msg})
	}
}

// dispatch re-enters the state machine for the channel keyed by chanID
// (creating a fresh fundee-side State the first time open_channel arrives)
// and carries out whatever Actions come back.
func (p *peer) dispatch(chanID lnwire.ChannelID, ev channelstate.Event) {
	p.chanMtx.Lock()
	s, ok := p.channels[chanID]
	if !ok {
		if _, isOpen := ev.(channelstate.MessageReceived); !isOpen {
			p.chanMtx.Unlock()
			return
		}
		s = channelstate.State{
			Phase:      channelstate.WaitForInit,
			TempChanID: chanID,
		}
	}
	p.chanMtx.Unlock()

	next, actions, err := channelstate.Process(s, ev, p.deps())
	if err != nil {
		return
	}

	p.chanMtx.Lock()
	p.channels[chanID] = next
	p.chanMtx.Unlock()

	p.carryOut(chanID, actions)
}

// carryOut performs each Action channelstate.Process returned, in order;
// StoreState always happens before the SendMessage that depends on it
// having been durable, since the slice order channelstate returns already
// reflects that requirement.
func (p *peer) carryOut(chanID lnwire.ChannelID, actions []channelstate.Action) {
	for _, action := range actions {
		switch a := action.(type) {
		case channelstate.SendMessage:
			p.queueMsg(a.Msg, nil)

		case channelstate.StoreState:
			if err := p.db.AddOrUpdateChannel(a.Persisted); err != nil {
				p.queueMsg(lnwire.NewError(chanID, "unable to persist channel state"), nil)
			}

		case channelstate.SendWatch:
			if p.watcher == nil {
				continue
			}
			events, err := p.watcher.Subscribe(a.Outpoint, a.MinDepth)
			if err != nil {
				continue
			}
			p.chanMtx.Lock()
			p.watchSubs[a.Outpoint] = chanID
			p.chanMtx.Unlock()
			go p.watchHandler(a.Outpoint, events)

		case channelstate.ChannelIdSwitch:
			p.chanMtx.Lock()
			if s, ok := p.channels[a.Old]; ok {
				delete(p.channels, a.Old)
				p.channels[a.New] = s
			}
			p.chanMtx.Unlock()

		case channelstate.ProcessCommand:
			p.dispatch(chanID, channelstate.ExecuteCommand{Cmd: a.Cmd})

		case channelstate.PublishTx:
			// Broadcasting is the wallet's concern; nothing upstream
			// of this driver is wired to a chain backend yet.

		case channelstate.ProcessAdd, channelstate.ProcessFulfill:
			// Forwarding/settling upstream is outside the peer
			// core; a payment layer would subscribe to these here.
		}
	}
}

// watchHandler relays Watcher notifications for one outpoint into the
// owning channel's event stream until the subscription channel closes.
func (p *peer) watchHandler(outpoint wire.OutPoint, events <-chan channelstate.WatchEvent) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.chanMtx.Lock()
			chanID, ok := p.watchSubs[outpoint]
			p.chanMtx.Unlock()
			if !ok {
				continue
			}
			p.dispatch(chanID, channelstate.WatchReceived{Event: ev})

		case <-p.quit:
			return
		}
	}
}

// writeMessage encodes and writes a single lnwire.Message over the
// transport.
func (p *peer) writeMessage(msg lnwire.Message) error {
	var buf bytes.Buffer
	if _, err := lnwire.WriteMessage(&buf, msg, 0); err != nil {
		return err
	}
	logWireMessage("writeMessage to peer", msg)

	if err := p.transport.WriteMessage(buf.Bytes()); err != nil {
		return err
	}
	atomic.AddUint64(&p.bytesSent, uint64(buf.Len()))
	return nil
}

// writeHandler drains the bounded sendQueue and writes each message to the
// wire in order, keeping the queueHandler free to accept new callers
// without blocking on socket I/O.
//
// NOTE: must be run as a goroutine.
func (p *peer) writeHandler() {
	defer p.wg.Done()

	for {
		select {
		case out := <-p.sendQueue:
			if _, isPing := out.msg.(*lnwire.Ping); isPing {
				atomic.StoreInt64(&p.pingSentAt, time.Now().UnixNano())
			}

			err := p.writeMessage(out.msg)
			if out.sentChan != nil {
				close(out.sentChan)
			}
			if err != nil {
				p.Stop()
				return
			}

		case <-p.quit:
			return
		}
	}
}

// queueHandler drains queue.ConcurrentQueue's unbounded buffer into the
// bounded sendQueue the writeHandler reads from, so queueMsg callers never
// block on a slow connection.
//
// NOTE: must be run as a goroutine.
func (p *peer) queueHandler() {
	defer p.wg.Done()

	for {
		select {
		case next, ok := <-p.outgoingQueue.ChanOut():
			if !ok {
				return
			}
			select {
			case p.sendQueue <- next.(outgoingMsg):
			case <-p.quit:
				return
			}

		case <-p.quit:
			return
		}
	}
}

// pingHandler periodically queues a ping to keep the connection alive and
// to refresh the round-trip estimate in PingTime.
//
// NOTE: must be run as a goroutine.
func (p *peer) pingHandler() {
	defer p.wg.Done()

	for {
		select {
		case <-p.pingTicker.Ticks():
			p.queueMsg(lnwire.NewPing(0), nil)
		case <-p.quit:
			return
		}
	}
}

// PingTime returns the last measured round-trip time, in nanoseconds.
func (p *peer) PingTime() int64 {
	return atomic.LoadInt64(&p.pingTime)
}

// queueMsg hands msg to the outgoing queue; sentChan, if non-nil, is
// closed once the message has actually been written.
func (p *peer) queueMsg(msg lnwire.Message, sentChan chan struct{}) {
	if atomic.LoadInt32(&p.disconnect) != 0 {
		if sentChan != nil {
			close(sentChan)
		}
		return
	}

	select {
	case p.outgoingQueue.ChanIn() <- outgoingMsg{msg: msg, sentChan: sentChan}:
	case <-p.quit:
		if sentChan != nil {
			close(sentChan)
		}
	}
}

// chanIDForMessage extracts the channel id a message is addressed to,
// accounting for the funding flow's temporary id before FundingSigned
// assigns the permanent, funding-derived one.
func chanIDForMessage(msg lnwire.Message) (lnwire.ChannelID, bool) {
	switch m := msg.(type) {
	case *lnwire.OpenChannel:
		return m.PendingChannelID, true
	case *lnwire.AcceptChannel:
		return m.PendingChannelID, true
	case *lnwire.FundingCreated:
		return m.PendingChannelID, true
	case *lnwire.FundingSigned:
		return m.ChanID, true
	case *lnwire.FundingLocked:
		return m.ChanID, true
	case *lnwire.UpdateAddHTLC:
		return m.ChanID, true
	case *lnwire.UpdateFulfillHTLC:
		return m.ChanID, true
	case *lnwire.UpdateFailHTLC:
		return m.ChanID, true
	case *lnwire.UpdateFailMalformedHTLC:
		return m.ChanID, true
	case *lnwire.UpdateFee:
		return m.ChanID, true
	case *lnwire.CommitSig:
		return m.ChanID, true
	case *lnwire.RevokeAndAck:
		return m.ChanID, true
	case *lnwire.Shutdown:
		return m.ChanID, true
	case *lnwire.ClosingSigned:
		return m.ChanID, true
	case *lnwire.ChannelReestablish:
		return m.ChanID, true
	case *lnwire.Error:
		return m.ChanID, true
	default:
		return lnwire.ChannelID{}, false
	}
}
