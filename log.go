package main

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/davecgh/go-spew/spew"
)

// peerLog is this driver's logger, set up the same way every subsystem in
// the base daemon wires its own: one btclog.Logger per package, backed by
// a single process-wide backend.
var peerLog btclog.Logger

func init() {
	backend := btclog.NewBackend(os.Stderr)
	peerLog = backend.Logger("PEER")
	peerLog.SetLevel(btclog.LevelInfo)
}

// logClosure defers formatting a log line's arguments until (and unless)
// the configured level actually prints it, avoiding the cost of
// spew.Sdump-ing a message nobody will read.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}

// logWireMessage traces a message's full contents at the peer's configured
// trace level, mirroring the base driver's own logWireMessage. spew.Sdump
// prints the message field by field, including the internal fields of any
// embedded public key.
func logWireMessage(prefix string, v interface{}) {
	peerLog.Tracef("%v: %v", prefix, newLogClosure(func() string {
		return spew.Sdump(v)
	}))
}
