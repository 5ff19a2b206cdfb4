// Package brontide implements the BOLT #8 Noise_XK handshake and the
// steady-state encrypted framing used to carry Lightning wire messages over
// an authenticated, confidential transport. The name and the act-based
// handshake layout mirror lnd's brontide connection, which wraps exactly
// this kind of transport for the peer layer.
package brontide

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// protocolName and prologue are fixed by BOLT #8.
var (
	protocolName = []byte("Noise_XK_secp256k1_ChaChaPoly_SHA256")
	prologue     = []byte("lightning")
)

// handshakeVersion is the single prefix byte prepended to all three
// handshake messages. Steady-state frames do not carry it.
const handshakeVersion = 0x00

const (
	actOneSize   = 50
	actTwoSize   = 50
	actThreeSize = 66
)

// ErrHandshakeFailure wraps every malformed-message or failed-AEAD condition
// encountered while running the three handshake acts.
type ErrHandshakeFailure struct {
	reason string
}

func (e *ErrHandshakeFailure) Error() string {
	return fmt.Sprintf("brontide handshake failed: %s", e.reason)
}

func handshakeErr(format string, args ...interface{}) error {
	return &ErrHandshakeFailure{reason: fmt.Sprintf(format, args...)}
}

// handshakeState tracks the running chaining key and handshake digest (h)
// shared by both the initiator and responder as they mix in each act.
type handshakeState struct {
	ck [32]byte
	h  [32]byte

	localStatic     *btcec.PrivateKey
	localEphemeral  *btcec.PrivateKey
	remoteStatic    *btcec.PublicKey
	remoteEphemeral *btcec.PublicKey
}

func newHandshakeState(localStatic *btcec.PrivateKey, remoteStatic *btcec.PublicKey) *handshakeState {
	h := &handshakeState{
		ck:           sha256.Sum256(protocolName),
		localStatic:  localStatic,
		remoteStatic: remoteStatic,
	}
	h.h = sha256.Sum256(append(h.ck[:], prologue...))
	return h
}

func (h *handshakeState) mixHash(data []byte) {
	d := sha256.Sum256(append(h.h[:], data...))
	h.h = d
}

// mixKey runs the Noise HKDF round: ck' , k = HKDF(ck, ikm), returning the
// freshly derived temporary key and updating h.ck in place.
func (h *handshakeState) mixKey(ikm []byte) (k [32]byte) {
	var ck [32]byte
	ck, k = hkdf2(h.ck[:], ikm)
	h.ck = ck
	return k
}

// hkdf2 implements the two-output Noise HKDF: expand(extract(salt, ikm)).
func hkdf2(salt, ikm []byte) (out1, out2 [32]byte) {
	reader := hkdf.New(sha256.New, ikm, salt, nil)
	io.ReadFull(reader, out1[:])
	io.ReadFull(reader, out2[:])
	return out1, out2
}

func ecdh(priv *btcec.PrivateKey, pub *btcec.PublicKey) [32]byte {
	var point, result btcec.JacobianPoint
	pub.AsJacobian(&point)
	btcec.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()
	sharedPub := btcec.NewPublicKey(&result.X, &result.Y)
	return sha256.Sum256(sharedPub.SerializeCompressed())
}

// encryptWithAD runs ChaCha20-Poly1305 with h as associated data. Noise
// nonces for the handshake acts are always zero: each temporary key is
// derived fresh per DH round and used exactly once.
func encryptWithAD(key [32]byte, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	var nonce [12]byte
	return aead.Seal(nil, nonce[:], plaintext, ad), nil
}

func decryptWithAD(key [32]byte, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	var nonce [12]byte
	pt, err := aead.Open(nil, nonce[:], ciphertext, ad)
	if err != nil {
		return nil, handshakeErr("AEAD authentication failed: %v", err)
	}
	return pt, nil
}

// HandshakeState is a completed handshake's outcome: the two cipher
// directions, ready to be handed to a Conn for steady-state framing.
type HandshakeState struct {
	SendCipher *CipherState
	RecvCipher *CipherState
}

// InitiatorHandshake drives all three acts for the initiator side of the
// connection, given the responder's known static public key. rw is the
// underlying, otherwise-unauthenticated transport (e.g. a net.Conn).
func InitiatorHandshake(rw io.ReadWriter, localStatic *btcec.PrivateKey,
	remoteStatic *btcec.PublicKey, ephemeral *btcec.PrivateKey) (*HandshakeState, error) {

	hs := newHandshakeState(localStatic, remoteStatic)
	hs.mixHash(remoteStatic.SerializeCompressed())
	hs.localEphemeral = ephemeral

	// Act One: e, es.
	actOne, _, err := genActOne(hs)
	if err != nil {
		return nil, err
	}
	if _, err := rw.Write(actOne); err != nil {
		return nil, err
	}

	// Act Two: receive re, ee.
	var actTwoBuf [actTwoSize]byte
	if _, err := io.ReadFull(rw, actTwoBuf[:]); err != nil {
		return nil, err
	}
	tempK2, err := recvActTwo(hs, actTwoBuf[:])
	if err != nil {
		return nil, err
	}

	// Act Three: encrypt and send our static key, then derive final keys.
	actThree, err := genActThree(hs, tempK2)
	if err != nil {
		return nil, err
	}
	if _, err := rw.Write(actThree); err != nil {
		return nil, err
	}

	sendKey, recvKey := finalKeys(hs)
	return &HandshakeState{
		SendCipher: newCipherState(sendKey, hs.ck),
		RecvCipher: newCipherState(recvKey, hs.ck),
	}, nil
}

// ResponderHandshake drives all three acts for the responder side.
func ResponderHandshake(rw io.ReadWriter, localStatic *btcec.PrivateKey,
	ephemeral *btcec.PrivateKey) (*HandshakeState, *btcec.PublicKey, error) {

	hs := newHandshakeState(localStatic, nil)
	hs.mixHash(localStatic.PubKey().SerializeCompressed())
	hs.localEphemeral = ephemeral

	var actOneBuf [actOneSize]byte
	if _, err := io.ReadFull(rw, actOneBuf[:]); err != nil {
		return nil, nil, err
	}
	if err := recvActOne(hs, actOneBuf[:]); err != nil {
		return nil, nil, err
	}

	actTwo, tempK2, err := genActTwo(hs)
	if err != nil {
		return nil, nil, err
	}
	if _, err := rw.Write(actTwo); err != nil {
		return nil, nil, err
	}

	var actThreeBuf [actThreeSize]byte
	if _, err := io.ReadFull(rw, actThreeBuf[:]); err != nil {
		return nil, nil, err
	}
	remoteStatic, err := recvActThreeWithKey(hs, tempK2, actThreeBuf[:])
	if err != nil {
		return nil, nil, err
	}

	// The responder's send/recv keys are the initiator's recv/send keys.
	keyA, keyB := finalKeys(hs)
	return &HandshakeState{
		SendCipher: newCipherState(keyB, hs.ck),
		RecvCipher: newCipherState(keyA, hs.ck),
	}, remoteStatic, nil
}

func genActOne(hs *handshakeState) (msg []byte, tempK1 [32]byte, err error) {
	e := hs.localEphemeral.PubKey()
	hs.mixHash(e.SerializeCompressed())

	es := ecdh(hs.localEphemeral, hs.remoteStatic)
	tempK1 = hs.mixKey(es[:])

	c, err := encryptWithAD(tempK1, hs.h[:], nil)
	if err != nil {
		return nil, tempK1, err
	}
	hs.mixHash(c)

	msg = make([]byte, 0, actOneSize)
	msg = append(msg, handshakeVersion)
	msg = append(msg, e.SerializeCompressed()...)
	msg = append(msg, c...)
	if len(msg) != actOneSize {
		return nil, tempK1, handshakeErr("act one wrong size: %d", len(msg))
	}
	return msg, tempK1, nil
}

func recvActOne(hs *handshakeState, buf []byte) error {
	if buf[0] != handshakeVersion {
		return handshakeErr("act one: bad version byte %d", buf[0])
	}
	reBytes := buf[1:34]
	c := buf[34:50]

	re, err := btcec.ParsePubKey(reBytes)
	if err != nil {
		return handshakeErr("act one: malformed ephemeral: %v", err)
	}
	hs.remoteEphemeral = re
	hs.mixHash(reBytes)

	es := ecdh(hs.localStatic, re)
	tempK1 := hs.mixKey(es[:])

	if _, err := decryptWithAD(tempK1, hs.h[:], c); err != nil {
		return handshakeErr("act one: %v", err)
	}
	hs.mixHash(c)
	return nil
}

func genActTwo(hs *handshakeState) (msg []byte, tempK2 [32]byte, err error) {
	e := hs.localEphemeral.PubKey()
	hs.mixHash(e.SerializeCompressed())

	ee := ecdh(hs.localEphemeral, hs.remoteEphemeral)
	tempK2 = hs.mixKey(ee[:])

	c, err := encryptWithAD(tempK2, hs.h[:], nil)
	if err != nil {
		return nil, tempK2, err
	}
	hs.mixHash(c)

	msg = make([]byte, 0, actTwoSize)
	msg = append(msg, handshakeVersion)
	msg = append(msg, e.SerializeCompressed()...)
	msg = append(msg, c...)
	if len(msg) != actTwoSize {
		return nil, tempK2, handshakeErr("act two wrong size: %d", len(msg))
	}
	return msg, tempK2, nil
}

func recvActTwo(hs *handshakeState, buf []byte) (tempK2 [32]byte, err error) {
	if buf[0] != handshakeVersion {
		return tempK2, handshakeErr("act two: bad version byte %d", buf[0])
	}
	reBytes := buf[1:34]
	c := buf[34:50]

	re, err := btcec.ParsePubKey(reBytes)
	if err != nil {
		return tempK2, handshakeErr("act two: malformed ephemeral: %v", err)
	}
	hs.remoteEphemeral = re
	hs.mixHash(reBytes)

	ee := ecdh(hs.localEphemeral, re)
	tempK2 = hs.mixKey(ee[:])

	if _, err := decryptWithAD(tempK2, hs.h[:], c); err != nil {
		return tempK2, handshakeErr("act two: %v", err)
	}
	hs.mixHash(c)
	return tempK2, nil
}

func genActThree(hs *handshakeState, tempK2 [32]byte) ([]byte, error) {
	ourStatic := hs.localStatic.PubKey().SerializeCompressed()

	c, err := encryptWithAD(tempK2, hs.h[:], ourStatic)
	if err != nil {
		return nil, err
	}
	hs.mixHash(c)

	se := ecdh(hs.localStatic, hs.remoteEphemeral)
	tempK3 := hs.mixKey(se[:])

	t, err := encryptWithAD(tempK3, hs.h[:], nil)
	if err != nil {
		return nil, err
	}

	msg := make([]byte, 0, actThreeSize)
	msg = append(msg, handshakeVersion)
	msg = append(msg, c...)
	msg = append(msg, t...)
	if len(msg) != actThreeSize {
		return nil, handshakeErr("act three wrong size: %d", len(msg))
	}
	return msg, nil
}

// recvActThreeWithKey completes the responder's handshake using the tempK2
// produced while generating act two.
func recvActThreeWithKey(hs *handshakeState, tempK2 [32]byte, buf []byte) (*btcec.PublicKey, error) {
	if buf[0] != handshakeVersion {
		return nil, handshakeErr("act three: bad version byte %d", buf[0])
	}
	c := buf[1:50]
	t := buf[50:66]

	rsBytes, err := decryptWithAD(tempK2, hs.h[:], c)
	if err != nil {
		return nil, handshakeErr("act three: %v", err)
	}
	remoteStatic, err := btcec.ParsePubKey(rsBytes)
	if err != nil {
		return nil, handshakeErr("act three: malformed static key: %v", err)
	}
	hs.mixHash(c)

	se := ecdh(hs.localEphemeral, remoteStatic)
	tempK3 := hs.mixKey(se[:])

	if _, err := decryptWithAD(tempK3, hs.h[:], t); err != nil {
		return nil, handshakeErr("act three: %v", err)
	}

	return remoteStatic, nil
}

// finalKeys derives the pair of session keys from the final chaining key,
// per BOLT #8: sk, rk = HKDF(ck, zero-length).
func finalKeys(hs *handshakeState) (keyA, keyB [32]byte) {
	return hkdf2(hs.ck[:], nil)
}
