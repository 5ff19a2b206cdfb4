package brontide

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// rotationThreshold is the number of messages a direction's key may encrypt
// before it must be rotated, per BOLT #8's cipher nonce rotation rule.
const rotationThreshold = 1000

// ErrDecryptionFailure is returned when an AEAD tag fails to verify.
type ErrDecryptionFailure struct {
	cause error
}

func (e *ErrDecryptionFailure) Error() string {
	return fmt.Sprintf("brontide: decryption failed: %v", e.cause)
}

// ErrFrameTooLarge is returned when a received length prefix exceeds the
// maximum allowed record payload.
type ErrFrameTooLarge struct {
	Length uint16
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("brontide: frame length %d exceeds maximum %d",
		e.Length, MaxMessageLength)
}

// MaxMessageLength is the largest payload a single record may carry.
const MaxMessageLength = 65535

// CipherState is one direction (encrypt or decrypt) of an established Noise
// session: a 32-byte key, a monotonically incrementing 64-bit nonce, and the
// chaining key used to rekey once the nonce approaches exhaustion.
type CipherState struct {
	key         [32]byte
	chainingKey [32]byte
	nonce       uint64
}

func newCipherState(key, chainingKey [32]byte) *CipherState {
	return &CipherState{key: key, chainingKey: chainingKey}
}

// maybeRotate rekeys once the nonce has reached rotationThreshold (1000):
// ck, k = HKDF(ck, k), and the nonce restarts at zero.
func (c *CipherState) maybeRotate() {
	if c.nonce < rotationThreshold {
		return
	}
	ck, newKey := hkdf2(c.chainingKey[:], c.key[:])
	c.chainingKey = ck
	c.key = newKey
	c.nonce = 0
}

// encrypt seals plaintext with ad as associated data, using and then
// incrementing the current nonce, rotating the key first if needed.
func (c *CipherState) encrypt(ad, plaintext []byte) ([]byte, error) {
	c.maybeRotate()

	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, err
	}

	var nonce [12]byte
	binary.LittleEndian.PutUint64(nonce[4:], c.nonce)

	ct := aead.Seal(nil, nonce[:], plaintext, ad)
	c.nonce++
	return ct, nil
}

// decrypt opens ciphertext with ad as associated data, incrementing the
// nonce on success. A failed tag never advances the nonce: the caller
// should treat the connection as compromised and close it.
func (c *CipherState) decrypt(ad, ciphertext []byte) ([]byte, error) {
	c.maybeRotate()

	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, err
	}

	var nonce [12]byte
	binary.LittleEndian.PutUint64(nonce[4:], c.nonce)

	pt, err := aead.Open(nil, nonce[:], ciphertext, ad)
	if err != nil {
		return nil, &ErrDecryptionFailure{cause: err}
	}
	c.nonce++
	return pt, nil
}
