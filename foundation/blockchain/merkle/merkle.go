// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides an implementation of a merkel tree for validation
// support for the blockchain. Transactions and receipts are committed into
// block headers through the root of these trees.
package merkle

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNotFound is returned when a value is not a leaf of the tree.
var ErrNotFound = errors.New("unable to find data in tree")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable interface {
	Hash() common.Hash
}

// HashStrategy combines a left and right node hash into the parent hash.
type HashStrategy func(left common.Hash, right common.Hash) common.Hash

// Keccak256 is the default hash strategy.
func Keccak256(left common.Hash, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   common.Hash
	hashStrategy HashStrategy
}

// WithHashStrategy is used to change the default hash strategy of using
// keccak256 when constructing a new tree.
func WithHashStrategy[T Hashable](hashStrategy HashStrategy) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface. A tree with no
// values has a zero merkle root.
func NewTree[T Hashable](values []T, options ...func(t *Tree[T])) *Tree[T] {
	t := Tree[T]{
		hashStrategy: Keccak256,
	}

	for _, option := range options {
		option(&t)
	}

	t.Generate(values)

	return &t
}

// Generate constructs the leafs and nodes of the tree from the specified
// data. If the tree has been generated previously, the tree is re-generated
// from scratch.
func (t *Tree[T]) Generate(values []T) {
	t.Root = nil
	t.Leafs = nil
	t.MerkleRoot = common.Hash{}

	if len(values) == 0 {
		return
	}

	leafs := make([]*Node[T], 0, len(values)+1)
	for _, value := range values {
		leafs = append(leafs, &Node[T]{
			Hash:  value.Hash(),
			Value: value,
			leaf:  true,
			Tree:  t,
		})
	}

	if len(leafs) == 1 {
		t.Root = leafs[0]
		t.Leafs = leafs
		t.MerkleRoot = leafs[0].Hash
		return
	}

	if len(leafs)%2 == 1 {
		last := leafs[len(leafs)-1]
		leafs = append(leafs, &Node[T]{
			Hash:  last.Hash,
			Value: last.Value,
			leaf:  true,
			dup:   true,
			Tree:  t,
		})
	}

	t.Root = buildIntermediate(leafs, t)
	t.Leafs = leafs
	t.MerkleRoot = t.Root.Hash
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree. An order of 0 says the proof
// hash comes first, an order of 1 says it comes second.
func (t *Tree[T]) Proof(data T) ([]common.Hash, []int64, error) {
	hash := data.Hash()

	for _, node := range t.Leafs {
		if node.Hash != hash {
			continue
		}

		var merkleProof []common.Hash
		var order []int64
		nodeParent := node.Parent

		for nodeParent != nil {
			if nodeParent.Left == node {
				merkleProof = append(merkleProof, nodeParent.Right.Hash)
				order = append(order, 1)
			} else {
				merkleProof = append(merkleProof, nodeParent.Left.Hash)
				order = append(order, 0)
			}
			node = nodeParent
			nodeParent = nodeParent.Parent
		}

		return merkleProof, order, nil
	}

	return nil, nil, ErrNotFound
}

// Verify validates the hashes at each level of the tree and returns an error
// if the resulting hash at the root of the tree does not match the root hash.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		if t.MerkleRoot != (common.Hash{}) {
			return errors.New("empty tree with non zero root")
		}
		return nil
	}

	if t.Root.verify() != t.MerkleRoot {
		return errors.New("root hash invalid")
	}

	return nil
}

// Values returns a slice of unique values stores in the tree.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, node := range t.Leafs {
		if node.dup {
			continue
		}
		values = append(values, node.Value)
	}

	return values
}

// RootHex converts the merkle root hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return t.MerkleRoot.Hex()
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	s := ""

	for _, l := range t.Leafs {
		s += fmt.Sprint(l)
		s += "\n"
	}

	return s
}

// MarshalText implements the TextMarshaler interface and produces a panic
// if anyone tries to marshal the Merkle tree. I don't want this to happen.
// Use the Values function to return a slice that can be marshaled.
func (t *Tree[T]) MarshalText() (text []byte, err error) {
	panic("do not marshal the merkle tree, use Values")
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   common.Hash
	Value  T
	leaf   bool
	dup    bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() common.Hash {
	if n.leaf {
		return n.Value.Hash()
	}

	return n.Tree.hashStrategy(n.Left.verify(), n.Right.verify())
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %t %s %v", n.leaf, n.dup, n.Hash.Hex(), n.Value)
}

// =============================================================================

// Root calculates the merkle root over a list of already computed hashes.
func Root(hashes []common.Hash) common.Hash {
	values := make([]hashValue, len(hashes))
	for i, h := range hashes {
		values[i] = hashValue(h)
	}

	return NewTree(values).MerkleRoot
}

// VerifyProof checks a proof produced by Proof against the expected root.
func VerifyProof(leaf common.Hash, proof []common.Hash, order []int64, root common.Hash) bool {
	if len(proof) != len(order) {
		return false
	}

	hash := leaf
	for i := range proof {
		switch order[i] {
		case 0:
			hash = Keccak256(proof[i], hash)
		default:
			hash = Keccak256(hash, proof[i])
		}
	}

	return hash == root
}

// hashValue lets a raw hash act as its own leaf.
type hashValue common.Hash

// Hash implements the Hashable interface.
func (h hashValue) Hash() common.Hash {
	return common.Hash(h)
}

// buildIntermediate is a helper function that for a given list of leaf nodes,
// constructs the intermediate and root levels of the tree. Returns the resulting
// root node of the tree.
func buildIntermediate[T Hashable](nl []*Node[T], t *Tree[T]) *Node[T] {
	nodes := make([]*Node[T], 0, (len(nl)+1)/2)

	for i := 0; i < len(nl); i += 2 {
		left, right := i, i+1
		if i+1 == len(nl) {
			right = i
		}

		n := Node[T]{
			Left:  nl[left],
			Right: nl[right],
			Hash:  t.hashStrategy(nl[left].Hash, nl[right].Hash),
			Tree:  t,
		}

		nodes = append(nodes, &n)
		nl[left].Parent = &n
		nl[right].Parent = &n

		if len(nl) == 2 {
			return &n
		}
	}

	return buildIntermediate(nodes, t)
}
