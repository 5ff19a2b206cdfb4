package channelstate

import "github.com/lightningnetwork/peercore/channeldb"

// toPersisted captures the subset of State that must survive a restart:
// the ledger plus enough of the negotiated parameters to rebuild it.
func toPersisted(s State) *channeldb.PersistedChannel {
	p := &channeldb.PersistedChannel{
		ChanID:          s.ChanID,
		FundingOutpoint: s.FundingOutpoint,
		IsFunder:        s.IsFunder,
		LocalParams:     s.LocalParams,
		RemoteParams:    s.RemoteParams,
	}
	if s.Commitments != nil {
		p.Commitments = *s.Commitments
	}
	return p
}

// fromPersisted rebuilds the Normal-phase State a channel should resume at
// after a Restore event.
func fromPersisted(p *channeldb.PersistedChannel) State {
	commitments := p.Commitments
	return State{
		Phase:           Normal,
		ChanID:          p.ChanID,
		FundingOutpoint: p.FundingOutpoint,
		IsFunder:        p.IsFunder,
		LocalParams:     p.LocalParams,
		RemoteParams:    p.RemoteParams,
		Commitments:     &commitments,
	}
}
