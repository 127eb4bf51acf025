package merkle_test

import (
	"fmt"
	"testing"

	"github.com/siertrichain/siertrichain/foundation/blockchain/merkle"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data implements the merkle Hashable interface.
type Data struct {
	x string
}

// Hash returns the double hash of the data.
func (d Data) Hash() string {
	return signature.DoubleHashString(d.x)
}

// =============================================================================

func Test_Root(t *testing.T) {
	dh := signature.DoubleHashString
	h1, h2, h3 := dh("tx1"), dh("tx2"), dh("tx3")

	tt := []struct {
		name   string
		hashes []string
		exp    string
	}{
		{"empty", nil, signature.ZeroHash},
		{"single", []string{h1}, dh(h1)},
		{"pair", []string{h1, h2}, dh(h1 + h2)},
		{"odd", []string{h1, h2, h3}, dh(dh(h1+h2) + dh(h3+h3))},
		{"four", []string{h1, h2, h3, h1}, dh(dh(h1+h2) + dh(h3+h1))},
	}

	t.Log("Given the need to compute merkle roots.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				got := merkle.Root(tst.hashes)
				if got != tst.exp {
					t.Logf("\t\tgot: %s", got)
					t.Logf("\t\texp: %s", tst.exp)
					t.Fatalf("\t%s\tTest %d:\tShould get the expected root.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get the expected root.", success, testID)

				if tst.name == "single" && got == h1 {
					t.Fatalf("\t%s\tTest %d:\tShould not return a single leaf unchanged.", failed, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_TreeMatchesRoot(t *testing.T) {
	t.Log("Given the need for the tree to agree with the root function.")
	{
		for n := 0; n <= 9; n++ {
			var data []Data
			var hashes []string
			for i := 0; i < n; i++ {
				d := Data{x: fmt.Sprintf("tx%d", i)}
				data = append(data, d)
				hashes = append(hashes, d.Hash())
			}

			tree := merkle.NewTree(data)
			if tree.RootHex() != merkle.Root(hashes) {
				t.Fatalf("\t%s\tTest %d:\tShould build the same root as Root.", failed, n)
			}
			if len(tree.Values()) != n {
				t.Fatalf("\t%s\tTest %d:\tShould return every value, got %d.", failed, n, len(tree.Values()))
			}
		}
		t.Logf("\t%s\tShould build the same root as Root for 0 to 9 leafs.", success)
	}
}

func Test_Proof(t *testing.T) {
	t.Log("Given the need to prove a transaction is part of a tree.")
	{
		for n := 1; n <= 7; n++ {
			var data []Data
			for i := 0; i < n; i++ {
				data = append(data, Data{x: fmt.Sprintf("tx%d", i)})
			}
			tree := merkle.NewTree(data)

			for i, d := range data {
				proof, err := tree.Proof(i)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould get a proof for leaf %d: %v", failed, n, i, err)
				}

				if err := merkle.VerifyProof(d.Hash(), proof, tree.RootHex()); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould verify the proof for leaf %d: %v", failed, n, i, err)
				}

				if err := merkle.VerifyProof(Data{x: "bogus"}.Hash(), proof, tree.RootHex()); err == nil {
					t.Fatalf("\t%s\tTest %d:\tShould reject a proof for the wrong data at leaf %d.", failed, n, i)
				}
			}
		}
		t.Logf("\t%s\tShould verify proofs for every leaf in trees of 1 to 7 leafs.", success)

		tree := merkle.NewTree([]Data{{x: "a"}})
		if _, err := tree.Proof(1); err == nil {
			t.Fatalf("\t%s\tShould reject an out of range leaf.", failed)
		}
		t.Logf("\t%s\tShould reject an out of range leaf.", success)
	}
}
