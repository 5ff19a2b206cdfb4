package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// WitnessType determines how an output's witness will be generated. The
// default CommitmentTimeLock type generates a witness that spends a
// time-locked output enforced by OP_CHECKSEQUENCEVERIFY.
type WitnessType uint16

const (
	// CommitmentTimeLock spends the output of a commitment transaction
	// after a relative lock-time lockout.
	CommitmentTimeLock WitnessType = 0

	// CommitmentNoDelay spends a settled no-delay output immediately on
	// a counterparty's commitment transaction.
	CommitmentNoDelay WitnessType = 1

	// CommitmentRevoke sweeps the settled output of a counterparty who
	// broadcast a revoked commitment transaction.
	CommitmentRevoke WitnessType = 2
)

// WitnessGenerator generates the final witness for a particular public key
// script on a sweep transaction, hiding the details of the underlying
// script from callers that only need to finish a spend.
type WitnessGenerator func(tx *wire.MsgTx, inputIndex int) (wire.TxWitness, error)

// genWitnessFunc returns a WitnessGenerator for the given witness type,
// script, and output amount, signing with privKey and the extra
// parameters particular to that witness type.
func (wt WitnessType) genWitnessFunc(privKey *btcec.PrivateKey,
	commitScript []byte, outputAmt btcutil.Amount,
	csvDelay uint32) WitnessGenerator {

	return func(tx *wire.MsgTx, inputIndex int) (wire.TxWitness, error) {
		switch wt {
		case CommitmentTimeLock:
			return CommitSpendTimeout(
				commitScript, outputAmt, csvDelay, privKey, tx,
			)
		case CommitmentNoDelay:
			return nil, fmt.Errorf("commitment no-delay output is a " +
				"plain p2wkh spend; use the wallet's standard signer")
		case CommitmentRevoke:
			return CommitSpendRevoke(commitScript, outputAmt, privKey, tx)
		default:
			return nil, fmt.Errorf("unknown witness type: %v", wt)
		}
	}
}
