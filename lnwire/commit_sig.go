package lnwire

import "io"

// CommitSig is sent to sign the receiver's next commitment transaction,
// locking in every change proposed since the last CommitSig. HtlcSigs
// carries one signature per HTLC output on that commitment, in
// output-index order.
type CommitSig struct {
	ChanID    ChannelID
	CommitSig Sig
	HtlcSigs  []Sig
}

var _ Message = (*CommitSig)(nil)

func (c *CommitSig) Decode(r io.Reader, pver uint32) error {
	if err := readElements(r, &c.ChanID, &c.CommitSig); err != nil {
		return err
	}

	var numSigs uint16
	if err := readElements(r, &numSigs); err != nil {
		return err
	}

	c.HtlcSigs = make([]Sig, numSigs)
	for i := range c.HtlcSigs {
		if err := readElements(r, &c.HtlcSigs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *CommitSig) Encode(w io.Writer, pver uint32) error {
	if err := writeElements(w, c.ChanID, c.CommitSig); err != nil {
		return err
	}

	if err := writeElements(w, uint16(len(c.HtlcSigs))); err != nil {
		return err
	}
	for _, sig := range c.HtlcSigs {
		if err := writeElements(w, sig); err != nil {
			return err
		}
	}
	return nil
}

func (c *CommitSig) MsgType() MessageType {
	return MsgCommitSig
}

func (c *CommitSig) MaxPayloadLength(uint32) uint32 {
	return MaxMessagePayload
}
