// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.

package merkle_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data uses the keccak256 hashing algorithm for the merkle tree.
type Data struct {
	x string
}

// Hash hashes the values using keccak256.
func (d Data) Hash() common.Hash {
	return crypto.Keccak256Hash([]byte(d.x))
}

func h(s string) common.Hash {
	return crypto.Keccak256Hash([]byte(s))
}

func pair(l, r common.Hash) common.Hash {
	return crypto.Keccak256Hash(l[:], r[:])
}

// =============================================================================

func Test_MerkleRoot(t *testing.T) {
	type table struct {
		name string
		data []Data
		exp  common.Hash
	}

	tt := []table{
		{
			name: "empty",
			exp:  common.Hash{},
		},
		{
			name: "single",
			data: []Data{{x: "Hello"}},
			exp:  h("Hello"),
		},
		{
			name: "even",
			data: []Data{{x: "Hello"}, {x: "Hi"}, {x: "Hey"}, {x: "Hola"}},
			exp:  pair(pair(h("Hello"), h("Hi")), pair(h("Hey"), h("Hola"))),
		},
		{
			name: "odd",
			data: []Data{{x: "Hello"}, {x: "Hi"}, {x: "Hey"}},
			exp:  pair(pair(h("Hello"), h("Hi")), pair(h("Hey"), h("Hey"))),
		},
		{
			name: "odd intermediate",
			data: []Data{{x: "1"}, {x: "2"}, {x: "3"}, {x: "4"}, {x: "5"}},
			exp: func() common.Hash {
				l := pair(pair(h("1"), h("2")), pair(h("3"), h("4")))
				r := pair(pair(h("5"), h("5")), pair(h("5"), h("5")))
				return pair(l, r)
			}(),
		},
	}

	t.Log("Given the need to calculate merkle roots.")
	{
		for testID, test := range tt {
			f := func(t *testing.T) {
				tree := merkle.NewTree(test.data)

				if tree.MerkleRoot != test.exp {
					t.Logf("\t\tTest %d:\tgot: %s", testID, tree.MerkleRoot)
					t.Logf("\t\tTest %d:\texp: %s", testID, test.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get back the right root.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the right root.", success, testID)

				if err := tree.Verify(); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to verify the tree: %s", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to verify the tree.", success, testID)

				if got := len(tree.Values()); got != len(test.data) {
					t.Fatalf("\t%s\tTest %d:\tShould get back %d values, got %d.", failed, testID, len(test.data), got)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the original values.", success, testID)
			}

			t.Run(test.name, f)
		}
	}
}

func Test_Proof(t *testing.T) {
	data := []Data{{x: "123"}, {x: "234"}, {x: "345"}, {x: "456"}, {x: "1123"}, {x: "2234"}, {x: "3345"}}
	tree := merkle.NewTree(data)

	t.Log("Given the need to prove values are in the tree.")
	{
		for i, d := range data {
			proof, order, err := tree.Proof(d)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to produce a proof: %s", failed, i, err)
			}

			if !merkle.VerifyProof(d.Hash(), proof, order, tree.MerkleRoot) {
				t.Fatalf("\t%s\tTest %d:\tShould be able to verify the proof.", failed, i)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to verify the proof.", success, i)
		}

		if _, _, err := tree.Proof(Data{x: "NotInTestTable"}); err == nil {
			t.Fatalf("\t%s\tShould not produce a proof for missing data.", failed)
		}
		t.Logf("\t%s\tShould not produce a proof for missing data.", success)
	}
}

func Test_VerifyDetectsTampering(t *testing.T) {
	tree := merkle.NewTree([]Data{{x: "Hello"}, {x: "Hi"}, {x: "Hey"}, {x: "Hola"}})
	tree.MerkleRoot = h("tampered")

	if err := tree.Verify(); err == nil {
		t.Fatalf("\t%s\tShould detect a tampered root.", failed)
	}
	t.Logf("\t%s\tShould detect a tampered root.", success)
}

func Test_Root(t *testing.T) {
	hashes := []common.Hash{h("a"), h("b"), h("c")}

	exp := merkle.NewTree([]Data{{x: "a"}, {x: "b"}, {x: "c"}}).MerkleRoot
	if got := merkle.Root(hashes); got != exp {
		t.Logf("\t\tgot: %s", got)
		t.Logf("\t\texp: %s", exp)
		t.Fatalf("\t%s\tShould build the same root from raw hashes.", failed)
	}
	t.Logf("\t%s\tShould build the same root from raw hashes.", success)
}
