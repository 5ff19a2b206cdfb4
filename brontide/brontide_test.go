package brontide

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func genKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

func genEphemeral() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// TestHandshakeAndFraming runs a full Noise_XK handshake over an in-memory
// pipe and exchanges a few framed records in both directions.
func TestHandshakeAndFraming(t *testing.T) {
	initStatic := genKey(t)
	respStatic := genKey(t)

	clientConn, serverConn := net.Pipe()

	type result struct {
		conn *Conn
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		c, err := Dial(initStatic, clientConn, respStatic.PubKey(), genEphemeral)
		clientCh <- result{c, err}
	}()
	go func() {
		c, err := Accept(respStatic, serverConn, genEphemeral)
		serverCh <- result{c, err}
	}()

	clientRes := <-clientCh
	serverRes := <-serverCh
	require.NoError(t, clientRes.err)
	require.NoError(t, serverRes.err)

	client := clientRes.conn
	server := serverRes.conn

	require.True(t, server.RemotePub().IsEqual(initStatic.PubKey()))

	// Client -> server.
	msg := []byte("lightning network, bolt#8 test payload")
	errCh := make(chan error, 1)
	go func() { errCh <- client.WriteMessage(msg) }()

	got, err := server.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, msg, got)

	// Server -> client.
	reply := []byte("pong")
	go func() { errCh <- server.WriteMessage(reply) }()

	got, err = client.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, reply, got)
}

// TestHandshakeWrongStaticKeyFails checks that the initiator's assumption
// about the responder's static key is authenticated: connecting to the
// wrong static key must fail the handshake rather than silently succeed.
func TestHandshakeWrongStaticKeyFails(t *testing.T) {
	initStatic := genKey(t)
	respStatic := genKey(t)
	wrongStatic := genKey(t)

	clientConn, serverConn := net.Pipe()

	type result struct {
		conn *Conn
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		c, err := Dial(initStatic, clientConn, wrongStatic.PubKey(), genEphemeral)
		clientCh <- result{c, err}
	}()
	go func() {
		c, err := Accept(respStatic, serverConn, genEphemeral)
		serverCh <- result{c, err}
	}()

	serverRes := <-serverCh

	// The responder gives up after act one without closing its end of
	// the pipe; close it so the initiator's read of act two returns.
	serverConn.Close()
	clientRes := <-clientCh

	require.Error(t, serverRes.err)
	_ = clientRes
}

// TestCipherStateRotation exercises key rotation across the
// rotationThreshold boundary and confirms encryption/decryption stay in
// sync across the rotation point.
func TestCipherStateRotation(t *testing.T) {
	var key, ck [32]byte
	rand.Read(key[:])
	rand.Read(ck[:])

	send := newCipherState(key, ck)
	recv := newCipherState(key, ck)

	for i := 0; i < rotationThreshold+5; i++ {
		pt := []byte("message")
		ct, err := send.encrypt(nil, pt)
		require.NoError(t, err)

		got, err := recv.decrypt(nil, ct)
		require.NoError(t, err, "failed at message %d", i)
		require.Equal(t, pt, got)
	}
}
