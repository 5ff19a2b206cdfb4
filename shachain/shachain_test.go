package shachain

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustSecret(t *testing.T, h string) Secret {
	t.Helper()
	b, err := hex.DecodeString(h)
	require.NoError(t, err)
	require.Len(t, b, 32)
	var s Secret
	copy(s[:], b)
	return s
}

// TestDeriveSecretZeroSeed checks the all-zero-seed BOLT #3 test vector.
func TestDeriveSecretZeroSeed(t *testing.T) {
	var seed Secret // all zero
	got := DeriveSecret(seed, startIndex)
	want := mustSecret(t,
		"02a40c85b6f28da08dfdbe0926c53fab2de6d28c10301f8f7c4073d5e42e3148")
	require.Equal(t, want, got)
}

// TestAddNextValidSequence inserts a long decreasing run of real derived
// secrets and checks every previously inserted index is still retrievable,
// with no more than 49 stored nodes.
func TestAddNextValidSequence(t *testing.T) {
	var seed Secret
	for i := range seed {
		seed[i] = byte(i)
	}

	chain := New()

	indexes := []uint64{
		startIndex, startIndex - 1, startIndex - 2, startIndex - 3,
		startIndex - 4, startIndex - 5, startIndex - 6, startIndex - 7,
	}

	inserted := make(map[uint64]Secret)
	for _, idx := range indexes {
		secret := DeriveSecret(seed, idx)
		require.Equal(t, idx, chain.ExpectedNext())
		require.NoError(t, chain.AddNext(idx, secret))
		inserted[idx] = secret

		require.LessOrEqual(t, chain.Size(), 49)
	}

	for idx, want := range inserted {
		got, ok := chain.GetSecret(idx)
		require.True(t, ok, "index %d should be retrievable", idx)
		require.Equal(t, want, got)
	}
}

// TestGetSecretUnknown ensures an index outside every stored sub-tree
// reports not-found rather than an incorrect derivation.
func TestGetSecretUnknown(t *testing.T) {
	chain := New()
	var seed Secret
	require.NoError(t, chain.AddNext(startIndex, DeriveSecret(seed, startIndex)))

	// startIndex has height 0 (odd, no trailing zero bits): its sub-tree
	// is the single index itself.
	_, ok := chain.GetSecret(startIndex - 1)
	require.False(t, ok)
}

// TestAddNextOutOfOrder enforces Invariant A: strictly decreasing index.
func TestAddNextOutOfOrder(t *testing.T) {
	chain := New()
	var seed Secret

	err := chain.AddNext(startIndex-1, DeriveSecret(seed, startIndex-1))
	require.Error(t, err)
	var outOfOrder *ErrOutOfOrder
	require.ErrorAs(t, err, &outOfOrder)
	require.Equal(t, uint64(startIndex-1), outOfOrder.Got)
	require.Equal(t, uint64(startIndex), outOfOrder.Expected)
}

// TestAddNextInvalidSecret checks that a zero-seed secret at 2^48-1 followed
// by an unrelated secret at 2^48-2 is rejected, since the parent doesn't
// derive the child.
func TestAddNextInvalidSecret(t *testing.T) {
	chain := New()

	zero := mustSecret(t,
		"02a40c85b6f28da08dfdbe0926c53fab2de6d28c10301f8f7c4073d5e42e3148")
	require.NoError(t, chain.AddNext(startIndex, zero))

	// A secret from an unrelated seed: won't derive from `zero`.
	var other Secret
	for i := range other {
		other[i] = 0xAA
	}
	unrelated := DeriveSecret(other, startIndex-1)

	err := chain.AddNext(startIndex-1, unrelated)
	require.Error(t, err)
	var invalid *ErrInvalidSecret
	require.ErrorAs(t, err, &invalid)

	// The chain must not have mutated on failure.
	require.Equal(t, 1, chain.Size())
}

// TestExpectedNextEmpty checks the starting expectation on a fresh chain.
func TestExpectedNextEmpty(t *testing.T) {
	chain := New()
	require.Equal(t, uint64(startIndex), chain.ExpectedNext())
}

// TestBytesRoundTripEmpty checks that an empty chain serializes to a single
// zero-count byte and deserializes back to an empty, unknown chain.
func TestBytesRoundTripEmpty(t *testing.T) {
	chain := New()

	b, err := chain.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, b)

	got, err := FromBytes(b)
	require.NoError(t, err)
	require.Equal(t, 0, got.Size())
	_, ok := got.GetSecret(startIndex)
	require.False(t, ok)
}

// TestBytesRoundTrip inserts a run of real derived secrets, serializes the
// chain, and checks the deserialized copy retrieves the same secrets at the
// same indexes and agrees on the next expected index.
func TestBytesRoundTrip(t *testing.T) {
	var seed Secret
	for i := range seed {
		seed[i] = byte(i)
	}

	chain := New()
	indexes := []uint64{
		startIndex, startIndex - 1, startIndex - 2, startIndex - 3,
	}
	for _, idx := range indexes {
		require.NoError(t, chain.AddNext(idx, DeriveSecret(seed, idx)))
	}

	b, err := chain.Bytes()
	require.NoError(t, err)

	got, err := FromBytes(b)
	require.NoError(t, err)
	require.Equal(t, chain.Size(), got.Size())
	require.Equal(t, chain.ExpectedNext(), got.ExpectedNext())

	for _, idx := range indexes {
		want, ok := chain.GetSecret(idx)
		require.True(t, ok)
		gotSecret, ok := got.GetSecret(idx)
		require.True(t, ok)
		require.Equal(t, want, gotSecret)
	}
}

// TestFromBytesRejectsTruncated checks that a buffer claiming more nodes
// than it actually carries is rejected rather than read out of bounds.
func TestFromBytesRejectsTruncated(t *testing.T) {
	_, err := FromBytes([]byte{0x02, 0x00})
	require.Error(t, err)
}
