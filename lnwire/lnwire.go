package lnwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ChannelID uniquely identifies a channel; before the funding outpoint is
// known it is the temporary_channel_id, afterwards it is derived from the
// funding outpoint.
type ChannelID [32]byte

// PkScript is a variable-length, length-prefixed (BOLT #1) output script.
type PkScript []byte

// Sig is an ECDSA signature as carried on the wire: the fixed 64-byte raw
// (r, s) encoding, not DER (see sig.go for the conversions).
type Sig [64]byte

// readElement reads a single wire element from r according to its
// concrete, pointed-to type, dispatching on the full set of field types
// the BOLT #1/#2 message catalogue needs.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *uint8:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = b[0]
	case *uint16:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint16(b[:])
	case *uint32:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint32(b[:])
	case *uint64:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		*e = binary.BigEndian.Uint64(b[:])
	case *btcutil.Amount:
		var v uint64
		if err := readElement(r, &v); err != nil {
			return err
		}
		*e = btcutil.Amount(v)
	case *ChannelID:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case *chainhash.Hash:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case *[32]byte:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case *Sig:
		if _, err := io.ReadFull(r, e[:]); err != nil {
			return err
		}
	case **btcec.PublicKey:
		var b [33]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		pub, err := btcec.ParsePubKey(b[:])
		if err != nil {
			return err
		}
		*e = pub
	case *PkScript:
		var l uint16
		if err := readElement(r, &l); err != nil {
			return err
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		*e = buf
	case *[]byte:
		// Caller must have sized the slice already (fixed-length
		// fields such as payment preimages/hashes).
		if _, err := io.ReadFull(r, *e); err != nil {
			return err
		}
	case []byte:
		// A slice taken from an already-sized array field (e.g.
		// c.PaymentHash[:]); read directly into its backing array.
		if _, err := io.ReadFull(r, e); err != nil {
			return err
		}
	case *bool:
		var b uint8
		if err := readElement(r, &b); err != nil {
			return err
		}
		*e = b != 0
	default:
		return fmt.Errorf("lnwire: unknown type %T for readElement", e)
	}
	return nil
}

func readElements(r io.Reader, elements ...interface{}) error {
	for _, e := range elements {
		if err := readElement(r, e); err != nil {
			return err
		}
	}
	return nil
}

func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case uint8:
		_, err := w.Write([]byte{e})
		return err
	case uint16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], e)
		_, err := w.Write(b[:])
		return err
	case uint32:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e)
		_, err := w.Write(b[:])
		return err
	case uint64:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], e)
		_, err := w.Write(b[:])
		return err
	case btcutil.Amount:
		return writeElement(w, uint64(e))
	case ChannelID:
		_, err := w.Write(e[:])
		return err
	case chainhash.Hash:
		_, err := w.Write(e[:])
		return err
	case [32]byte:
		_, err := w.Write(e[:])
		return err
	case Sig:
		_, err := w.Write(e[:])
		return err
	case *btcec.PublicKey:
		if e == nil {
			return fmt.Errorf("lnwire: nil public key")
		}
		_, err := w.Write(e.SerializeCompressed())
		return err
	case PkScript:
		if len(e) > 65535 {
			return fmt.Errorf("lnwire: pkscript too long: %d", len(e))
		}
		if err := writeElement(w, uint16(len(e))); err != nil {
			return err
		}
		_, err := w.Write(e)
		return err
	case []byte:
		_, err := w.Write(e)
		return err
	case bool:
		var b uint8
		if e {
			b = 1
		}
		return writeElement(w, b)
	default:
		return fmt.Errorf("lnwire: unknown type %T for writeElement", e)
	}
}

func writeElements(w io.Writer, elements ...interface{}) error {
	for _, e := range elements {
		if err := writeElement(w, e); err != nil {
			return err
		}
	}
	return nil
}
