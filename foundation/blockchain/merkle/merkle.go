// Package merkle provides an implementation of a merkle tree for committing
// to the ordered set of transactions in a block.
//
// The protocol rules for the root are fixed:
//
//	[]          -> ZeroHash sentinel
//	[h]         -> DoubleHash(h)
//	[h1 h2 ...] -> pairs hashed left to right as DoubleHash(left ++ right),
//	               an odd last hash is paired with itself, repeated until one
//	               hash remains.
//
// Hashes are the 0x prefixed hex strings produced by the signature package
// and are concatenated in that textual form.
package merkle

import (
	"errors"
	"fmt"

	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// EmptyRoot is the root of a tree with no leaves.
const EmptyRoot = signature.ZeroHash

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable interface {
	Hash() string
}

// =============================================================================

// Root calculates the merkle root of the sequence of hashes.
func Root(hashes []string) string {
	switch len(hashes) {
	case 0:
		return EmptyRoot
	case 1:
		return signature.DoubleHashString(hashes[0])
	}

	level := hashes
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		level = next
	}

	return level[0]
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits
// the behavior defined by the Hashable interface. Levels[0] holds the leaf
// hashes and the last level holds the root.
type Tree[T Hashable] struct {
	Levels     [][]string
	MerkleRoot string
	values     []T
}

// NewTree constructs a new merkle tree from the specified values.
func NewTree[T Hashable](values []T) *Tree[T] {
	t := Tree[T]{
		values: append([]T(nil), values...),
	}
	t.generate()

	return &t
}

// Values returns a copy of the values stored in the tree.
func (t *Tree[T]) Values() []T {
	return append([]T(nil), t.values...)
}

// RootHex returns the merkle root.
func (t *Tree[T]) RootHex() string {
	return t.MerkleRoot
}

// ProofStep is one sibling hash on the path from a leaf to the root.
// Left reports whether the sibling is concatenated before the running hash.
type ProofStep struct {
	Hash string `json:"hash"`
	Left bool   `json:"left"`
}

// Proof returns the set of sibling hashes needed to recompute the root from
// the leaf at the specified index. A tree with a single leaf has an empty
// proof since its root is the double hash of the leaf itself.
func (t *Tree[T]) Proof(index int) ([]ProofStep, error) {
	if index < 0 || index >= len(t.values) {
		return nil, fmt.Errorf("leaf index %d out of range, leafs %d", index, len(t.values))
	}

	if len(t.values) == 1 {
		return []ProofStep{}, nil
	}

	var proof []ProofStep
	for _, level := range t.Levels[:len(t.Levels)-1] {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index
		}

		proof = append(proof, ProofStep{
			Hash: level[sibling],
			Left: sibling < index,
		})
		index /= 2
	}

	return proof, nil
}

// VerifyProof recomputes the root from a leaf hash and its proof and
// compares it against the expected root.
func VerifyProof(leaf string, proof []ProofStep, root string) error {
	if len(proof) == 0 {
		if signature.DoubleHashString(leaf) != root {
			return errors.New("merkle root does not match single leaf")
		}
		return nil
	}

	hash := leaf
	for _, step := range proof {
		if step.Left {
			hash = hashPair(step.Hash, hash)
			continue
		}
		hash = hashPair(hash, step.Hash)
	}

	if hash != root {
		return errors.New("merkle root is not equivalent to the merkle root calculated on the critical path")
	}

	return nil
}

// String returns a string representation of the tree. Only leaf hashes are
// included in the output.
func (t *Tree[T]) String() string {
	s := ""
	if len(t.Levels) == 0 {
		return s
	}

	for _, h := range t.Levels[0] {
		s += h
		s += "\n"
	}

	return s
}

// =============================================================================

// generate builds every level of the tree from the stored values.
func (t *Tree[T]) generate() {
	t.Levels = nil

	leafs := make([]string, len(t.values))
	for i, v := range t.values {
		leafs[i] = v.Hash()
	}

	switch len(leafs) {
	case 0:
		t.MerkleRoot = EmptyRoot
		return
	case 1:
		t.Levels = [][]string{leafs, {signature.DoubleHashString(leafs[0])}}
		t.MerkleRoot = t.Levels[1][0]
		return
	}

	t.Levels = append(t.Levels, leafs)
	level := leafs
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := i
			if i+1 < len(level) {
				right = i + 1
			}
			next = append(next, hashPair(level[i], level[right]))
		}
		t.Levels = append(t.Levels, next)
		level = next
	}

	t.MerkleRoot = level[0]
}

// hashPair returns the parent hash for two child hashes.
func hashPair(left, right string) string {
	return signature.DoubleHashString(left + right)
}
