package channeldb

import (
	"sync"

	"github.com/btcsuite/btcd/wire"

	"github.com/lightningnetwork/peercore/lnwallet"
	"github.com/lightningnetwork/peercore/lnwire"
)

// PersistedChannel is the on-disk snapshot of a single channel: enough to
// rebuild its commitment ledger and resume the state machine after a
// restart, via Restore.
type PersistedChannel struct {
	ChanID          lnwire.ChannelID
	FundingOutpoint wire.OutPoint
	IsFunder        bool

	LocalParams  lnwallet.LocalParams
	RemoteParams lnwallet.RemoteParams

	Commitments lnwallet.Commitments
}

// ChannelsDb is the persistence collaborator the peer core consumes. It
// never participates in the commitment ledger's arithmetic; it only durably
// records the ledger's shape so a restart can call Restore.
type ChannelsDb interface {
	AddOrUpdateChannel(c *PersistedChannel) error
	ListLocalChannels() ([]*PersistedChannel, error)
	RemoveChannel(id lnwire.ChannelID) error
}

// MemoryChannelsDb is an in-memory ChannelsDb, useful for tests and for
// driving the state machine before a durable backend is wired in.
type MemoryChannelsDb struct {
	mu       sync.Mutex
	channels map[lnwire.ChannelID]*PersistedChannel
}

// NewMemoryChannelsDb returns an empty MemoryChannelsDb.
func NewMemoryChannelsDb() *MemoryChannelsDb {
	return &MemoryChannelsDb{
		channels: make(map[lnwire.ChannelID]*PersistedChannel),
	}
}

func (m *MemoryChannelsDb) AddOrUpdateChannel(c *PersistedChannel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.channels[c.ChanID] = &cp
	return nil
}

func (m *MemoryChannelsDb) ListLocalChannels() ([]*PersistedChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.channels) == 0 {
		return nil, ErrNoActiveChannels
	}

	out := make([]*PersistedChannel, 0, len(m.channels))
	for _, c := range m.channels {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryChannelsDb) RemoveChannel(id lnwire.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.channels[id]; !ok {
		return ErrChannelNoExist
	}
	delete(m.channels, id)
	return nil
}
