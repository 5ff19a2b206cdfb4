// Package shachain implements the compact per-commitment secret storage
// structure described in BOLT #3. A single 32-byte seed can derive any of
// 2^48 per-commitment secrets; this package stores at most 49 intermediate
// hashes and can still reproduce every secret that was ever inserted.
package shachain

import (
	"crypto/sha256"
	"fmt"
)

// maxHeight is the number of bits in a shachain index, and therefore the
// maximum number of nodes ever held in a chain.
const maxHeight uint8 = 48

// startIndex is the first index ever inserted into a chain: 2^48 - 1.
const startIndex = (uint64(1) << maxHeight) - 1

// MaxIndex is startIndex, exported so callers can convert a commitment
// height (0, 1, 2, ...) into the chain index BOLT #3 actually walks:
// commitment N's secret lives at chain index MaxIndex-N.
const MaxIndex = startIndex

// ErrInvalidSecret is returned by AddNext when the inserted secret (at
// ParentIndex, height ParentHeight) does not re-derive the secret already
// stored for the node at Index, which it would replace. This is a
// cryptographic fault: the remote party has revealed an inconsistent
// per-commitment secret.
type ErrInvalidSecret struct {
	Index         uint64
	ParentIndex   uint64
	ParentHeight  uint8
}

func (e *ErrInvalidSecret) Error() string {
	return fmt.Sprintf("secret for index %d (height %d) does not derive "+
		"the value stored for index %d",
		e.ParentIndex, e.ParentHeight, e.Index)
}

// ErrOutOfOrder is returned by AddNext when index is not the expected next
// index for the chain (Invariant A: strictly decreasing insertion order).
type ErrOutOfOrder struct {
	Got      uint64
	Expected uint64
}

func (e *ErrOutOfOrder) Error() string {
	return fmt.Sprintf("out-of-order secret insertion: got index %d, "+
		"expected %d", e.Got, e.Expected)
}

// Secret is a 32-byte per-commitment secret.
type Secret [32]byte

// node is a single stored (index, secret, height) tuple. height equals the
// number of trailing zero bits in index, i.e. the size of the sub-tree of
// indexes this node's secret can regenerate.
type node struct {
	index  uint64
	secret Secret
	height uint8
}

// subtreeContains reports whether the sub-tree rooted at (n.index, n.height)
// contains target: the two share their high (48-height) bits.
func (n node) subtreeContains(target uint64) bool {
	if n.height == maxHeight {
		return true
	}
	mask := ^(uint64(1)<<n.height - 1)
	return n.index&mask == target&mask
}

// Chain is an ordered, at-most-49-element store of per-commitment secrets.
// AddNext mutates the Chain in place; callers that need the previous state
// kept intact work on a copy.
type Chain struct {
	// nodes holds the stored nodes in insertion order, which is also
	// order of increasing height (0..48); at most one node occupies each
	// height, per the BOLT #3 replace-on-insert rule.
	nodes []node

	// known is true once at least one secret has been inserted.
	known bool

	// last is the index of the most recently inserted secret.
	last uint64
}

// New returns an empty Chain, ready to receive its first secret at index
// 2^48-1.
func New() *Chain {
	return &Chain{nodes: make([]node, 0, maxHeight+1)}
}

// trailingZeros returns the number of trailing zero bits of a 48-bit index.
func trailingZeros(index uint64) uint8 {
	if index == 0 {
		return maxHeight
	}
	var h uint8
	for index&1 == 0 && h < maxHeight {
		index >>= 1
		h++
	}
	return h
}

// DeriveSecret derives the per-commitment secret for index from seed,
// following BOLT #3: starting with the seed, for each bit position 47 down
// to 0 where the bit in index is 1, flip the corresponding bit of the
// low byte addressed by that bit position, then SHA-256 the whole buffer.
func DeriveSecret(seed Secret, index uint64) Secret {
	b := seed
	for i := int(maxHeight) - 1; i >= 0; i-- {
		if index&(uint64(1)<<uint(i)) != 0 {
			b[i/8] ^= 1 << uint(i%8)
			b = sha256.Sum256(b[:])
		}
	}
	return b
}

// deriveSubtree derives the secret at a descendant index from an ancestor's
// (secret, index) pair. fromIndex must share its high bits with the
// ancestor's sub-tree; only the differing low bits are walked.
func deriveSubtree(secret Secret, fromIndex, toIndex uint64) Secret {
	b := secret
	for i := int(trailingZeros(fromIndex)) - 1; i >= 0; i-- {
		if toIndex&(uint64(1)<<uint(i)) != 0 {
			b[i/8] ^= 1 << uint(i%8)
			b = sha256.Sum256(b[:])
		}
	}
	return b
}

// ExpectedNext returns the index that the next AddNext call must use:
// 2^48-1 on an empty chain, otherwise lastIndex-1.
func (c *Chain) ExpectedNext() uint64 {
	if !c.known {
		return startIndex
	}
	return c.last - 1
}

// AddNext inserts the secret for index, replacing every stored node whose
// sub-tree height is below the new node's height. Returns ErrOutOfOrder if
// index isn't ExpectedNext(), and ErrInvalidSecret if any replaced node's
// secret does not re-derive from the new secret (a cheating or buggy peer).
func (c *Chain) AddNext(index uint64, secret Secret) error {
	if index != c.ExpectedNext() {
		return &ErrOutOfOrder{Got: index, Expected: c.ExpectedNext()}
	}

	height := trailingZeros(index)

	kept := make([]node, 0, len(c.nodes)+1)
	for _, n := range c.nodes {
		if n.height < height {
			// This node will be replaced by the new one; verify
			// it is consistent with the secret being inserted
			// before discarding it.
			derived := deriveSubtree(secret, index, n.index)
			if derived != n.secret {
				return &ErrInvalidSecret{
					Index:        n.index,
					ParentIndex:  index,
					ParentHeight: height,
				}
			}
			continue
		}
		kept = append(kept, n)
	}

	c.nodes = append(kept, node{index: index, secret: secret, height: height})
	c.known = true
	c.last = index
	return nil
}

// GetSecret returns the secret for index if it lies within a stored
// sub-tree, and false otherwise.
func (c *Chain) GetSecret(index uint64) (Secret, bool) {
	for _, n := range c.nodes {
		if n.subtreeContains(index) {
			return deriveSubtree(n.secret, n.index, index), true
		}
	}
	return Secret{}, false
}

// Size returns the number of stored nodes (never more than 49).
func (c *Chain) Size() int {
	return len(c.nodes)
}
