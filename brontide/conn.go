package brontide

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

// lengthHeaderSize is the size of the first AEAD chunk of a record: a
// 2-byte big-endian payload length plus its 16-byte Poly1305 tag.
const lengthHeaderSize = 2 + 16

// Conn wraps a net.Conn with the BOLT #8 handshake and steady-state framing.
// It satisfies net.Conn, and also WriteMessage/ReadMessage/Close so it can
// be used anywhere a peer transport is expected.
type Conn struct {
	net.Conn

	noise *HandshakeState

	// remotePub is populated once the handshake completes; nil before
	// then and always nil on the responder side until act three.
	remotePub *btcec.PublicKey

	readMu  sync.Mutex
	writeMu sync.Mutex
}

// Dial performs the initiator side of the handshake over conn and returns a
// framed Conn on success.
func Dial(localStatic *btcec.PrivateKey, conn net.Conn,
	remoteStatic *btcec.PublicKey, genEphemeral func() (*btcec.PrivateKey, error)) (*Conn, error) {

	ephemeral, err := genEphemeral()
	if err != nil {
		return nil, err
	}

	hs, err := InitiatorHandshake(conn, localStatic, remoteStatic, ephemeral)
	if err != nil {
		return nil, err
	}

	return &Conn{Conn: conn, noise: hs, remotePub: remoteStatic}, nil
}

// Accept performs the responder side of the handshake over conn and returns
// a framed Conn; the remote's now-authenticated static pubkey is available
// from its RemotePub method.
func Accept(localStatic *btcec.PrivateKey, conn net.Conn,
	genEphemeral func() (*btcec.PrivateKey, error)) (*Conn, error) {

	ephemeral, err := genEphemeral()
	if err != nil {
		return nil, err
	}

	hs, remotePub, err := ResponderHandshake(conn, localStatic, ephemeral)
	if err != nil {
		return nil, err
	}

	return &Conn{Conn: conn, noise: hs, remotePub: remotePub}, nil
}

// RemotePub returns the remote party's static public key, authenticated by
// the completed handshake.
func (c *Conn) RemotePub() *btcec.PublicKey {
	return c.remotePub
}

// WriteMessage frames and encrypts a single application-layer payload as two
// AEAD chunks: a length+tag chunk, then a payload+tag
// chunk, both advancing the same per-direction nonce counter.
func (c *Conn) WriteMessage(payload []byte) error {
	if len(payload) > MaxMessageLength {
		return &ErrFrameTooLarge{Length: uint16(len(payload))}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var lengthBytes [2]byte
	binary.BigEndian.PutUint16(lengthBytes[:], uint16(len(payload)))

	lengthChunk, err := c.noise.SendCipher.encrypt(nil, lengthBytes[:])
	if err != nil {
		return err
	}
	if _, err := c.Conn.Write(lengthChunk); err != nil {
		return err
	}

	payloadChunk, err := c.noise.SendCipher.encrypt(nil, payload)
	if err != nil {
		return err
	}
	_, err = c.Conn.Write(payloadChunk)
	return err
}

// ReadMessage blocks until a full framed record has been read, decrypted,
// and authenticated, returning its payload.
func (c *Conn) ReadMessage() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	var lengthChunk [lengthHeaderSize]byte
	if _, err := io.ReadFull(c.Conn, lengthChunk[:]); err != nil {
		return nil, err
	}
	lengthBytes, err := c.noise.RecvCipher.decrypt(nil, lengthChunk[:])
	if err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(lengthBytes)
	if int(length) > MaxMessageLength {
		return nil, &ErrFrameTooLarge{Length: length}
	}

	payloadChunk := make([]byte, int(length)+16)
	if _, err := io.ReadFull(c.Conn, payloadChunk); err != nil {
		return nil, err
	}
	return c.noise.RecvCipher.decrypt(nil, payloadChunk)
}

// SetHandshakeDeadline applies a deadline covering the entire three-act
// handshake.
func (c *Conn) SetHandshakeDeadline(d time.Duration) error {
	return c.Conn.SetDeadline(time.Now().Add(d))
}
