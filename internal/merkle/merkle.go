// Package merkle provides a generic merkle tree whose default pairwise hash
// is double-SHA-256, matching the hash LogiChain uses for block and
// transaction identifiers. Adapted from the generic merkle implementation
// cbergoon/merkletree, refactored with Go generics.
package merkle

import (
	"bytes"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable is implemented by anything that can be placed in a merkle tree:
// transactions, checkpoints, or any other content-addressed record.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// Tree holds the merkle tree nodes and root computed from a set of leaves.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	merkleRoot   []byte
	Leafs        []*Node[T]
	hashStrategy func() hash.Hash
}

// Node is a single node (leaf or intermediate) of a Tree.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	leaf   bool
	dup    bool
	Hash   []byte
	Value  T
}

// WithHashStrategy overrides the tree's default double-SHA-256 pairwise
// hash. Tests use this to swap in a stub strategy.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a Tree over the given leaves, applying any options.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := &Tree[T]{
		hashStrategy: newDoubleSHA256,
	}

	for _, opt := range options {
		opt(t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return t, nil
}

// Generate builds the leaf set and internal tree from values, duplicating
// the final leaf when the count is odd so every level pairs evenly.
func (t *Tree[T]) Generate(values []T) error {
	if len(values) == 0 {
		return errors.New("merkle: cannot generate a tree with no leaves")
	}

	var leafs []*Node[T]
	for _, v := range values {
		hashValue, err := v.Hash()
		if err != nil {
			return err
		}

		leafs = append(leafs, &Node[T]{
			Tree:  t,
			Hash:  hashValue,
			Value: v,
			leaf:  true,
		})
	}

	if len(leafs)%2 == 1 {
		duplicate := &Node[T]{
			Tree:  t,
			Hash:  leafs[len(leafs)-1].Hash,
			Value: leafs[len(leafs)-1].Value,
			leaf:  true,
			dup:   true,
		}
		leafs = append(leafs, duplicate)
	}

	root, err := t.buildIntermediate(leafs)
	if err != nil {
		return err
	}

	t.Root = root
	t.Leafs = leafs
	t.merkleRoot = root.Hash

	return nil
}

// Rebuild recalculates the tree from its current leaves' values. Call this
// after mutating a leaf's Value in place.
func (t *Tree[T]) Rebuild() error {
	values := make([]T, 0, len(t.Leafs))
	for _, leaf := range t.Leafs {
		values = append(values, leaf.Value)
	}
	return t.Generate(values)
}

// buildIntermediate recursively pairs adjacent nodes, hashing each pair's
// concatenated hashes to produce the parent, until a single root remains.
func (t *Tree[T]) buildIntermediate(nl []*Node[T]) (*Node[T], error) {
	if len(nl) == 1 {
		return nl[0], nil
	}

	var nodes []*Node[T]
	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if right == len(nl) {
			right = i
		}

		h := t.hashStrategy()
		chash := append(append([]byte{}, nl[left].Hash...), nl[right].Hash...)
		if _, err := h.Write(chash); err != nil {
			return nil, err
		}

		n := &Node[T]{
			Tree:  t,
			Left:  nl[left],
			Right: nl[right],
			Hash:  h.Sum(nil),
		}
		nodes = append(nodes, n)
		nl[left].Parent = n
		nl[right].Parent = n

		if len(nl) == 1 {
			return n, nil
		}
	}

	return t.buildIntermediate(nodes)
}

// MerkleRoot returns the computed root hash.
func (t *Tree[T]) MerkleRoot() []byte {
	return t.merkleRoot
}

// RootHex returns the root hash as a 0x-prefixed hex string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.merkleRoot)
}

// Values returns the original leaf values, dropping the synthetic
// duplicate inserted for an odd leaf count.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, leaf := range t.Leafs {
		if leaf.dup {
			continue
		}
		values = append(values, leaf.Value)
	}
	return values
}

// Proof returns the sibling hashes and left/right order bits needed to walk
// value's leaf up to the root.
func (t *Tree[T]) Proof(value T) ([][]byte, []int64, error) {
	for _, leaf := range t.Leafs {
		if !leaf.Value.Equals(value) {
			continue
		}

		var merklePath [][]byte
		var index []int64
		current := leaf
		for current.Parent != nil {
			if bytes.Equal(current.Hash, current.Parent.Left.Hash) {
				merklePath = append(merklePath, current.Parent.Right.Hash)
				index = append(index, 1)
			} else {
				merklePath = append(merklePath, current.Parent.Left.Hash)
				index = append(index, 0)
			}
			current = current.Parent
		}
		return merklePath, index, nil
	}

	return nil, nil, errors.New("merkle: value not found in tree")
}

// Verify recomputes the root from the current leaves and checks it still
// matches the stored root, detecting any tampering with leaf order/content.
func (t *Tree[T]) Verify() (bool, error) {
	calculatedRoot, err := t.calculateRoot()
	if err != nil {
		return false, err
	}
	return bytes.Equal(calculatedRoot, t.merkleRoot), nil
}

// VerifyData confirms value is present in the tree and that its leaf hash
// still matches its recomputed hash.
func (t *Tree[T]) VerifyData(value T) (bool, error) {
	for _, leaf := range t.Leafs {
		if !leaf.Value.Equals(value) {
			continue
		}

		currentParent := leaf.Parent
		for currentParent != nil {
			h := t.hashStrategy()
			leftBytes, err := currentParent.Left.calculateNodeHash()
			if err != nil {
				return false, err
			}
			rightBytes, err := currentParent.Right.calculateNodeHash()
			if err != nil {
				return false, err
			}

			if _, err := h.Write(append(append([]byte{}, leftBytes...), rightBytes...)); err != nil {
				return false, err
			}
			if !bytes.Equal(h.Sum(nil), currentParent.Hash) {
				return false, nil
			}
			currentParent = currentParent.Parent
		}
		return true, nil
	}

	return false, nil
}

func (t *Tree[T]) calculateRoot() ([]byte, error) {
	leafs := make([]*Node[T], 0, len(t.Leafs))
	for _, leaf := range t.Leafs {
		leafs = append(leafs, &Node[T]{
			Tree:  t,
			Hash:  leaf.Hash,
			Value: leaf.Value,
			leaf:  true,
			dup:   leaf.dup,
		})
	}

	root, err := t.buildIntermediate(leafs)
	if err != nil {
		return nil, err
	}
	return root.Hash, nil
}

func (n *Node[T]) calculateNodeHash() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	h := n.Tree.hashStrategy()
	if _, err := h.Write(append(append([]byte{}, n.Left.Hash...), n.Right.Hash...)); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// String renders the root as hex for logging.
func (t *Tree[T]) String() string {
	return t.RootHex()
}

// MarshalText intentionally panics: the tree is a derived index, not a
// record to persist. Persist Values() and rebuild the tree on load.
func (t *Tree[T]) MarshalText() ([]byte, error) {
	panic("merkle: do not marshal the tree directly, persist Values() and call Generate on load")
}
